package scope

import (
	"log/slog"
	"sync/atomic"

	"github.com/jward/cellscope/internal/syntax"
)

// Cache keeps the State of the last tree it saw. A tree with the same
// fingerprint as the previous one gets the previous State back by
// reference; any other tree is explored from scratch and replaces it.
// The slot is swapped atomically, so concurrent readers see either the old
// or the new complete State.
type Cache struct {
	opts    options
	explore func(*syntax.Tree, ...Option) (*State, error)
	slot    atomic.Pointer[cached]
}

type cached struct {
	fingerprint uint64
	state       *State
}

// NewCache returns an empty cache. Options are passed on to Explore.
func NewCache(opts ...Option) *Cache {
	return &Cache{opts: buildOptions(opts), explore: Explore}
}

// State returns the analysis of tree, reusing the cached one when the tree
// did not change. A failed analysis is logged and yields Empty.
func (c *Cache) State(tree *syntax.Tree) *State {
	st, _ := c.Lookup(tree)
	return st
}

// Lookup is State that also reports whether the cached state was reused.
func (c *Cache) Lookup(tree *syntax.Tree) (*State, bool) {
	fp := tree.Fingerprint()
	if prev := c.slot.Load(); prev != nil && prev.fingerprint == fp {
		return prev.state, true
	}

	st, err := c.explore(tree, WithLogger(c.opts.logger), WithVerbose(c.opts.verbose))
	if err != nil {
		c.opts.logger.Error("cache.explore", slog.Any("error", err), slog.Uint64("fingerprint", fp))
		st = Empty()
	} else {
		c.opts.logger.Debug("cache.recompute",
			slog.Uint64("fingerprint", fp),
			slog.Int("definitions", len(st.Definitions)),
			slog.Int("usages", len(st.Usages)))
	}
	c.slot.Store(&cached{fingerprint: fp, state: st})
	return st, false
}

// Current returns the last computed State, or nil before the first call
// to State.
func (c *Cache) Current() *State {
	if prev := c.slot.Load(); prev != nil {
		return prev.state
	}
	return nil
}

// Reset drops the cached State.
func (c *Cache) Reset() {
	c.slot.Store(nil)
}
