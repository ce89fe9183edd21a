package cellscope

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// loaded is one file parsed by a LoadFiles worker.
type loaded struct {
	path string
	cell *cell
	err  error
}

// LoadFiles reads every path as one cell, in the order given. Cell ids are
// the file base names without extension. Loading runs in two phases:
//
//	Phase A (parallel): read and parse each file into its own document.
//	Phase B (serial):   analyse and install the cells in path order.
//
// A file that cannot be read or parsed is skipped; the others still load
// and the failures are returned together.
func (e *Engine) LoadFiles(ctx context.Context, paths []string) error {
	results := make([]loaded, len(paths))

	// ---- Phase A: parallel parse ----
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(runtime.NumCPU(), len(paths))))
	for i, path := range paths {
		g.Go(func() error {
			results[i] = e.loadFile(gctx, path)
			// Per-file failures are collected, not propagated, so one bad
			// file does not cancel the rest.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			if r.cell != nil {
				r.cell.doc.Close()
			}
		}
		return fmt.Errorf("cellscope: load files: %w", err)
	}

	// ---- Phase B: serial install ----
	var errs []error
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range results {
		if r.err != nil {
			e.logger.Warn("engine.load", "path", r.path, "error", r.err)
			errs = append(errs, fmt.Errorf("load %s: %w", r.path, r.err))
			continue
		}
		st, _ := r.cell.cache.Lookup(r.cell.tree())
		e.install(r.cell)
		e.logger.Debug("engine.load", "path", r.path, "cell", r.cell.id, "definitions", len(st.Definitions))
	}

	if len(errs) > 0 {
		return fmt.Errorf("loading had %d error(s): %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (e *Engine) loadFile(ctx context.Context, path string) loaded {
	src, err := os.ReadFile(path)
	if err != nil {
		return loaded{path: path, err: fmt.Errorf("read file: %w", err)}
	}
	c := e.newCell(CellID(path))
	c.path = path
	if _, err := c.doc.Update(ctx, src); err != nil {
		c.doc.Close()
		return loaded{path: path, err: fmt.Errorf("parse: %w", err)}
	}
	return loaded{path: path, cell: c}
}

// CellID returns the cell id LoadFiles gives the file at path.
func CellID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
