package scope

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cellscope/internal/syntax"
)

// assignTree builds `name = 1` without the grammar.
func assignTree(name string) *syntax.Tree {
	src := name + " = 1"
	n := len(name)
	b := syntax.NewBuilder([]byte(src))
	b.Open("source_file", 0, len(src))
	b.Open(kindAssignment, 0, len(src))
	b.Leaf(kindIdentifier, 0, n)
	b.Leaf(kindOperator, n+1, n+2)
	b.Leaf("integer_literal", n+3, n+4)
	b.Close()
	b.Close()
	return b.Tree()
}

func TestCache_ReusesUnchangedTree(t *testing.T) {
	t.Parallel()
	c := NewCache()
	assert.Nil(t, c.Current())

	first, reused := c.Lookup(assignTree("x"))
	assert.False(t, reused)
	assert.Equal(t, []string{"x"}, first.Names())

	again, reused := c.Lookup(assignTree("x"))
	assert.True(t, reused)
	assert.Same(t, first, again)
	assert.Same(t, first, c.Current())
}

func TestCache_RecomputesChangedTree(t *testing.T) {
	t.Parallel()
	c := NewCache()
	first := c.State(assignTree("x"))
	second, reused := c.Lookup(assignTree("y"))
	assert.False(t, reused)
	assert.NotSame(t, first, second)
	assert.Equal(t, []string{"y"}, second.Names())

	// Only the previous tree is remembered.
	third, reused := c.Lookup(assignTree("x"))
	assert.False(t, reused)
	assert.True(t, first.Equal(third))
}

func TestCache_FailureYieldsEmpty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c := NewCache(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	calls := 0
	c.explore = func(*syntax.Tree, ...Option) (*State, error) {
		calls++
		return nil, errors.New("boom")
	}

	st := c.State(assignTree("x"))
	require.NotNil(t, st)
	assert.True(t, st.Unavailable())
	assert.Empty(t, st.Definitions)
	assert.Contains(t, buf.String(), "cache.explore")
	assert.Contains(t, buf.String(), "boom")

	_, reused := c.Lookup(assignTree("x"))
	assert.True(t, reused, "a failed tree is not retried until it changes")
	assert.Equal(t, 1, calls)
}

func TestCache_Reset(t *testing.T) {
	t.Parallel()
	c := NewCache()
	c.State(assignTree("x"))
	c.Reset()
	assert.Nil(t, c.Current())

	_, reused := c.Lookup(assignTree("x"))
	assert.False(t, reused)
}

func TestCache_ConcurrentReaders(t *testing.T) {
	t.Parallel()
	c := NewCache()
	trees := []*syntax.Tree{assignTree("a"), assignTree("b")}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := c.State(trees[i%2])
			assert.Len(t, st.Definitions, 1)
		}()
	}
	wg.Wait()
	require.NotNil(t, c.Current())
}

func TestCache_SeparatorChangesAnalysis(t *testing.T) {
	t.Parallel()
	// The same named nodes in both; only the newline after catch turns e
	// from the caught exception into a usage in the handler body.
	bound, err := syntax.Default().ParseString("try\n  x\ncatch e\n  e\nend")
	require.NoError(t, err)
	unbound, err := syntax.Default().ParseString("try\n  x\ncatch\ne\n  e\nend")
	require.NoError(t, err)

	c := NewCache()
	first := c.State(bound)
	got, reused := c.Lookup(unbound)
	assert.False(t, reused)

	fresh, err := Explore(unbound)
	require.NoError(t, err)
	assert.True(t, fresh.Equal(got))
	assert.False(t, first.Equal(got))
}
