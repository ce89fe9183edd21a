package cellscope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jward/cellscope/internal/scope"
	"github.com/jward/cellscope/internal/syntax"
)

// ErrUnknownCell is returned for operations on a cell id the Engine does
// not hold.
var ErrUnknownCell = errors.New("cellscope: unknown cell")

// Engine holds an ordered notebook of cells. Each cell keeps its
// incremental parse and the cache of its analysis, so a cell whose tree
// did not change is never re-analysed.
type Engine struct {
	mu     sync.RWMutex
	cells  map[string]*cell
	order  []string
	parser *syntax.Parser
	logger *slog.Logger
	config *Config

	// verbose overrides config.VerboseMatch when set.
	verbose *bool
}

type cell struct {
	id       string
	path     string
	doc      *syntax.Document
	cache    *scope.Cache
	disabled bool
	reused   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger the Engine and its analyses report to.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithConfig sets the configuration. nil keeps the defaults.
func WithConfig(c *Config) Option {
	return func(e *Engine) {
		if c != nil {
			e.config = c
		}
	}
}

// WithVerbose logs template mismatches at debug level, regardless of the
// configuration.
func WithVerbose(v bool) Option {
	return func(e *Engine) {
		e.verbose = &v
	}
}

// WithParser replaces the process-wide Julia parser.
func WithParser(p *syntax.Parser) Option {
	return func(e *Engine) {
		if p != nil {
			e.parser = p
		}
	}
}

// New creates an empty Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		cells:  map[string]*cell{},
		parser: syntax.Default(),
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close releases the parse trees of every cell.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.cells {
		c.doc.Close()
	}
	e.cells = map[string]*cell{}
	e.order = nil
}

// Config returns the Engine's configuration.
func (e *Engine) Config() *Config { return e.config }

// Query returns a QueryBuilder over the Engine's cells.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{engine: e}
}

func (e *Engine) scopeOptions() []scope.Option {
	verbose := e.config.EffectiveVerboseMatch()
	if e.verbose != nil {
		verbose = *e.verbose
	}
	return []scope.Option{scope.WithLogger(e.logger), scope.WithVerbose(verbose)}
}

func (e *Engine) newCell(id string) *cell {
	return &cell{
		id:    id,
		doc:   e.parser.NewDocument(),
		cache: scope.NewCache(e.scopeOptions()...),
	}
}

// install adds c at the end of the notebook, or replaces the cell with the
// same id in place. Callers hold e.mu.
func (e *Engine) install(c *cell) {
	if old, ok := e.cells[c.id]; ok {
		if old != c {
			old.doc.Close()
		}
	} else {
		e.order = append(e.order, c.id)
	}
	e.cells[c.id] = c
}

// SetCell replaces the source of cell id, creating the cell at the end of
// the notebook if it does not exist. The cell is reparsed incrementally
// and its analysis refreshed.
func (e *Engine) SetCell(ctx context.Context, id string, src []byte) (*State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.cells[id]
	if !ok {
		c = e.newCell(id)
	}
	tree, err := c.doc.Update(ctx, src)
	if err != nil {
		if !ok {
			c.doc.Close()
		}
		return nil, fmt.Errorf("cellscope: set cell %s: %w", id, err)
	}
	e.install(c)
	st, reused := c.cache.Lookup(tree)
	c.reused = reused
	e.logger.Debug("engine.set_cell",
		slog.String("cell", id),
		slog.Bool("reused", reused),
		slog.Bool("parse_error", tree.HasError()))
	return st, nil
}

// RemoveCell deletes cell id from the notebook.
func (e *Engine) RemoveCell(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.cells[id]
	if !ok {
		return fmt.Errorf("cellscope: remove cell %s: %w", id, ErrUnknownCell)
	}
	c.doc.Close()
	delete(e.cells, id)
	for i, other := range e.order {
		if other == id {
			e.order = append(e.order[:i:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Cells returns the cell ids in notebook order.
func (e *Engine) Cells() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

// Source returns the current text of cell id.
func (e *Engine) Source(id string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.cells[id]
	if !ok {
		return nil, fmt.Errorf("cellscope: source %s: %w", id, ErrUnknownCell)
	}
	return c.doc.Source(), nil
}

// Path returns the file cell id was loaded from, or "".
func (e *Engine) Path(id string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c, ok := e.cells[id]; ok {
		return c.path
	}
	return ""
}

// State returns the analysis of cell id. It is scope.Empty() when the
// analysis failed.
func (e *Engine) State(id string) (*State, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.cells[id]
	if !ok {
		return nil, fmt.Errorf("cellscope: state %s: %w", id, ErrUnknownCell)
	}
	return c.state(), nil
}

// Reused reports whether the last refresh of cell id reused the previous
// analysis.
func (e *Engine) Reused(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.cells[id]
	return ok && c.reused
}

func (c *cell) state() *State {
	if st := c.cache.Current(); st != nil {
		return st
	}
	if tree := c.doc.Tree(); tree != nil {
		return c.cache.State(tree)
	}
	return scope.Empty()
}

func (c *cell) tree() *syntax.Tree { return c.doc.Tree() }

// SetDisabled marks cell id inactive or active again. Disabled cells take
// no part in diagnostics.
func (e *Engine) SetDisabled(id string, disabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.cells[id]
	if !ok {
		return fmt.Errorf("cellscope: disable %s: %w", id, ErrUnknownCell)
	}
	c.disabled = disabled
	return nil
}

// Disabled reports whether cell id is inactive.
func (e *Engine) Disabled(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.cells[id]
	return ok && c.disabled
}

// lookup returns cell id. Callers hold e.mu.
func (e *Engine) lookup(id string) (*cell, bool) {
	c, ok := e.cells[id]
	return c, ok
}
