package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jward/cellscope"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>...",
	Short: "Re-analyse cells as their files change",
	Long:  "Loads the notebook, then re-analyses each file after it is written and prints whether the previous analysis could be reused. Changes are debounced (debounce_ms in the config).",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEngine(ctx, args)
	if err != nil {
		return outputError(cmd, err)
	}
	defer e.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return outputError(cmd, fmt.Errorf("creating watcher: %w", err))
	}
	defer w.Close()

	// Editors that replace files drop watches on the file itself; watch
	// the directories.
	watched := map[string]string{}
	dirs := map[string]bool{}
	for _, id := range e.Cells() {
		path := e.Path(id)
		abs, err := filepath.Abs(path)
		if err != nil {
			return outputError(cmd, fmt.Errorf("resolving %s: %w", path, err))
		}
		watched[abs] = id
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return outputError(cmd, fmt.Errorf("watching %s: %w", dir, err))
		}
	}
	logger.Info("cli.watch", "cells", len(watched), "debounce", cfg.EffectiveDebounce())

	return watchLoop(ctx, w, watched, func(paths []string) {
		for _, abs := range paths {
			u := refresh(ctx, e, watched[abs], abs)
			if err := outputResult(cmd, CLIResult{Command: "watch", Results: u}); err != nil {
				logger.Warn("cli.watch", "error", err)
			}
		}
	})
}

// watchLoop feeds write events on watched files through a debouncer and
// hands each batch of changed paths to handle, on the calling goroutine.
// It returns when ctx is done or the watcher closes.
func watchLoop(ctx context.Context, w *fsnotify.Watcher, watched map[string]string, handle func(paths []string)) error {
	batches := make(chan []string, 1)
	d := cellscope.NewDebouncer(cfg.EffectiveDebounce(), func(paths []string) {
		select {
		case batches <- paths:
		case <-ctx.Done():
		}
	})
	defer d.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := watched[abs]; ok {
				d.Trigger(abs)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("cli.watch", "error", err)
		case paths := <-batches:
			handle(paths)
		}
	}
}

// refresh re-reads the file of cell id and reports whether its analysis
// was reused.
func refresh(ctx context.Context, e *cellscope.Engine, id, path string) CLIUpdate {
	u := CLIUpdate{Cell: id, Path: path}
	src, err := os.ReadFile(path)
	if err != nil {
		u.Error = err.Error()
		return u
	}
	st, err := e.SetCell(ctx, id, src)
	if err != nil {
		u.Error = err.Error()
		return u
	}
	diags, err := e.Diagnostics(id)
	if err != nil {
		u.Error = err.Error()
		return u
	}
	u.Reused = e.Reused(id)
	u.Available = !st.Unavailable()
	u.Definitions = len(st.Definitions)
	u.Diagnostics = len(diags)
	return u
}
