package template

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cellscope/internal/syntax"
)

// toyParser parses a small call language so that matcher tests do not
// depend on the shape of the Julia grammar:
//
//	expr := ident | number | ident "(" [expr {"," expr}] ")" | "[" [expr {"," expr}] "]"
//
// The identifier ERR parses as an ERROR node.
type toyParser struct{}

type toyNode struct {
	kind     string
	from, to int
	children []*toyNode
}

func (toyParser) ParseString(src string) (*syntax.Tree, error) {
	p := &toyState{src: src}
	root := &toyNode{kind: "source_file", from: 0, to: len(src)}
	for {
		p.skip()
		if p.pos >= len(src) {
			break
		}
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		root.children = append(root.children, n)
	}
	b := syntax.NewBuilder([]byte(src))
	var emit func(n *toyNode)
	emit = func(n *toyNode) {
		b.Open(n.kind, n.from, n.to)
		for _, c := range n.children {
			emit(c)
		}
		b.Close()
	}
	emit(root)
	return b.Tree(), nil
}

type toyState struct {
	src string
	pos int
}

func (p *toyState) skip() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *toyState) expr() (*toyNode, error) {
	p.skip()
	start := p.pos
	switch {
	case p.pos < len(p.src) && p.src[p.pos] == '[':
		n := &toyNode{kind: "vector", from: start}
		items, err := p.list(']')
		if err != nil {
			return nil, err
		}
		n.children, n.to = items, p.pos
		return n, nil
	case p.pos < len(p.src) && isDigit(p.src[p.pos]):
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
		}
		return &toyNode{kind: "number", from: start, to: p.pos}, nil
	case p.pos < len(p.src) && isIdent(p.src[p.pos]):
		for p.pos < len(p.src) && (isIdent(p.src[p.pos]) || isDigit(p.src[p.pos])) {
			p.pos++
		}
		id := &toyNode{kind: "identifier", from: start, to: p.pos}
		if p.src[start:p.pos] == "ERR" {
			id.kind = syntax.ErrorKind
		}
		if p.pos < len(p.src) && p.src[p.pos] == '(' {
			args := &toyNode{kind: "args", from: p.pos}
			items, err := p.list(')')
			if err != nil {
				return nil, err
			}
			args.children, args.to = items, p.pos
			return &toyNode{kind: "call", from: start, to: p.pos, children: []*toyNode{id, args}}, nil
		}
		return id, nil
	}
	return nil, fmt.Errorf("toy: unexpected input at %d", p.pos)
}

// list parses a bracketed, comma separated list; the opening bracket is at
// p.pos.
func (p *toyState) list(closer byte) ([]*toyNode, error) {
	p.pos++
	var items []*toyNode
	for {
		p.skip()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("toy: unclosed list")
		}
		if p.src[p.pos] == closer {
			p.pos++
			return items, nil
		}
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
		p.skip()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdent(c byte) bool { return c == '_' || (c|0x20) >= 'a' && (c|0x20) <= 'z' }

var toy = &toyParser{}

// first parses src with the toy parser and returns a cursor on its first
// top-level node.
func first(t *testing.T, src string) syntax.Cursor {
	t.Helper()
	tree, err := toy.ParseString(src)
	require.NoError(t, err)
	c := tree.Root()
	require.True(t, c.FirstChild(), "empty source %q", src)
	return c
}

func texts(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Node.Text()
	}
	return out
}

func TestCompile_PatternShape(t *testing.T) {
	t.Parallel()
	tmpl := New(As("callee", Identifier()), "(", Many("args"), ")").WithParser(toy)

	assert.Equal(t, "__slot0__(__slot1__)", tmpl.String())
	p, err := tmpl.Compile()
	require.NoError(t, err)
	assert.Equal(t, "(call $callee:<identifier> (args $args:_*))", p.String())
}

func TestMatch_Captures(t *testing.T) {
	t.Parallel()
	tmpl := New(As("callee", Identifier()), "(", Many("args"), ")").WithParser(toy)

	m := tmpl.Match(first(t, "g(x, y, 1)"), false)
	require.NotNil(t, m)
	callee, ok := m.Node("callee")
	require.True(t, ok)
	assert.Equal(t, "g", callee.Text())
	assert.Equal(t, []string{"x", "y", "1"}, texts(m.Items("args")))

	_, ok = m.Node("args")
	assert.False(t, ok, "list captures are not single nodes")

	assert.Nil(t, tmpl.Match(first(t, "[x]"), false))
}

func TestMatchLogged_WritesMismatchToLogger(t *testing.T) {
	t.Parallel()
	tmpl := New(As("callee", Identifier()), "(", Many("args"), ")").WithParser(toy)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	assert.Nil(t, tmpl.MatchLogged(first(t, "[x]"), logger))
	assert.Contains(t, buf.String(), "template.mismatch")
	assert.Contains(t, buf.String(), "want=call")

	buf.Reset()
	require.NotNil(t, tmpl.MatchLogged(first(t, "g(x)"), nil))
	assert.Empty(t, buf.String())
}

func TestMatch_EmptyMany(t *testing.T) {
	t.Parallel()
	tmpl := New(As("callee", Identifier()), "(", Many("args"), ")").WithParser(toy)

	m := tmpl.Match(first(t, "g()"), false)
	require.NotNil(t, m)
	assert.True(t, m.Has("args"))
	assert.Empty(t, m.Items("args"))
}

func TestMatch_ManyIsGreedy(t *testing.T) {
	t.Parallel()
	tmpl := New("f(", Many("ids", Identifier()), ", ", As("last", OfKind("number", "0")), ")").WithParser(toy)

	m := tmpl.Match(first(t, "f(a, b, 7)"), false)
	require.NotNil(t, m)
	assert.Equal(t, []string{"a", "b"}, texts(m.Items("ids")))
	last, _ := m.Node("last")
	assert.Equal(t, "7", last.Text())

	// Many stops at the first non-identifier and never gives nodes back.
	assert.Nil(t, tmpl.Match(first(t, "f(a, b)"), false))
}

func TestMatch_ManyItemsKeepTheirCaptures(t *testing.T) {
	t.Parallel()
	pair := New(As("name", Identifier()), "(", As("value"), ")")
	tmpl := New("[", Many("pairs", pair), "]").WithParser(toy)

	m := tmpl.Match(first(t, "[a(1), b(x), c(2)]"), false)
	require.NotNil(t, m)
	items := m.Items("pairs")
	require.Len(t, items, 3)
	for i, want := range [][2]string{{"a", "1"}, {"b", "x"}, {"c", "2"}} {
		name, _ := items[i].Match.Node("name")
		value, _ := items[i].Match.Node("value")
		assert.Equal(t, want[0], name.Text())
		assert.Equal(t, want[1], value.Text())
	}
	assert.False(t, m.Has("name"), "item captures stay inside their item")
}

func TestMatch_ManyStopsAtMismatchAndRewinds(t *testing.T) {
	t.Parallel()
	pair := New(As("name", Identifier()), "(", As("value", OfKind("number", "0")), ")")
	tmpl := New("[", Many("pairs", pair), ", ", As("rest"), "]").WithParser(toy)

	m := tmpl.Match(first(t, "[a(1), b(x)]"), false)
	require.NotNil(t, m)
	assert.Equal(t, []string{"a(1)"}, texts(m.Items("pairs")))
	rest, _ := m.Node("rest")
	assert.Equal(t, "b(x)", rest.Text(), "the failed repetition is left for the next pattern")
}

func TestMatch_Maybe(t *testing.T) {
	t.Parallel()
	tmpl := New("f(", Maybe(As("a", Identifier())), ")").WithParser(toy)

	m := tmpl.Match(first(t, "f()"), false)
	require.NotNil(t, m)
	assert.False(t, m.Has("a"))

	m = tmpl.Match(first(t, "f(z)"), false)
	require.NotNil(t, m)
	a, _ := m.Node("a")
	assert.Equal(t, "z", a.Text())

	assert.Nil(t, tmpl.Match(first(t, "f(1)"), false), "an unconsumed sibling fails the match")
}

func TestMatch_ErrorIsWildcard(t *testing.T) {
	t.Parallel()
	tmpl := Snippet("f(x)").WithParser(toy)

	assert.NotNil(t, tmpl.Match(first(t, "f(ERR)"), false))
	assert.NotNil(t, tmpl.Match(first(t, "g(y)"), false), "literal nodes match by kind")
	assert.Nil(t, tmpl.Match(first(t, "g(1)"), false))
	assert.NotNil(t, tmpl.Match(first(t, "ERR"), false))
}

func TestMatch_SameTypeAsAndAnythingThatFits(t *testing.T) {
	t.Parallel()
	vector := New("f(", As("v", SameTypeAs(Snippet("[1]"))), ")").WithParser(toy)
	p, err := vector.Compile()
	require.NoError(t, err)
	assert.Equal(t, "(call (identifier) (args $v:<vector>))", p.String())

	assert.NotNil(t, vector.Match(first(t, "f([a, b])"), false))
	assert.Nil(t, vector.Match(first(t, "f(a)"), false))

	fits := New("f(", As("v", AnythingThatFits(Snippet("[1]"))), ")").WithParser(toy)
	assert.NotNil(t, fits.Match(first(t, "f(a)"), false))
}

func TestMatch_FollowingSiblingsUntouched(t *testing.T) {
	t.Parallel()
	tmpl := New(As("callee", Identifier()), "(", Many("args"), ")").WithParser(toy)

	c := first(t, "f(a) g(b)")
	require.NotNil(t, tmpl.Match(c, false))
	assert.Equal(t, "f(a)", c.Text(), "the cursor is not moved")
	require.True(t, c.NextSibling())
	assert.Equal(t, "g(b)", c.Text())
}

func TestCompile_InContext(t *testing.T) {
	t.Parallel()
	tmpl := New(As("x", Identifier())).In("f(", ")").WithParser(toy)

	p, err := tmpl.Compile()
	require.NoError(t, err)
	assert.Equal(t, "$x:<identifier>", p.String())
}

func TestCompile_ShapeErrors(t *testing.T) {
	t.Parallel()

	t.Run("placeholder inside a token", func(t *testing.T) {
		t.Parallel()
		tmpl := New("f", As("x", OfKind("number", "12")), "(a)").WithParser(toy)
		_, err := tmpl.Compile()
		assert.True(t, errors.Is(err, ErrTemplateShape), "got %v", err)
		assert.Panics(t, func() { MustCompile(tmpl) })
	})

	t.Run("not a single node", func(t *testing.T) {
		t.Parallel()
		_, err := Snippet("a b").WithParser(toy).Compile()
		assert.True(t, errors.Is(err, ErrTemplateShape), "got %v", err)
	})

	t.Run("unparseable", func(t *testing.T) {
		t.Parallel()
		_, err := Snippet("f(").WithParser(toy).Compile()
		assert.Error(t, err)
	})
}

func TestCompile_StructuralCache(t *testing.T) {
	t.Parallel()
	a, err := New("h(", As("y"), ")").WithParser(toy).Compile()
	require.NoError(t, err)
	b, err := New("h(", As("y"), ")").WithParser(toy).Compile()
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestCompile_CacheKeyIncludesPlaceholderText(t *testing.T) {
	t.Parallel()
	one, err := New("k(", As("v", OfKind("number", "0")), ")").WithParser(toy).Compile()
	require.NoError(t, err)
	require.NotNil(t, one)

	// "0, 1" spans two arguments, so no single node sits at the slot.
	_, err = New("k(", As("v", OfKind("number", "0, 1")), ")").WithParser(toy).Compile()
	require.ErrorIs(t, err, ErrTemplateShape)
}

func TestJulia_MissingTokenIsShapeError(t *testing.T) {
	t.Parallel()
	_, err := Snippet("f(x").Compile()
	assert.ErrorIs(t, err, ErrTemplateShape)
}

func TestJulia_Assignment(t *testing.T) {
	t.Parallel()
	assign := New(As("lhs", Identifier()), " = ", As("rhs"))

	tree, err := syntax.Default().ParseString("y = x + 1")
	require.NoError(t, err)
	c := tree.Root()
	require.True(t, c.FirstChild())

	m := assign.Match(c, false)
	require.NotNil(t, m)
	lhs, _ := m.Node("lhs")
	rhs, _ := m.Node("rhs")
	assert.Equal(t, "y", lhs.Text())
	assert.Equal(t, "x + 1", rhs.Text())
}

func TestJulia_CallArguments(t *testing.T) {
	t.Parallel()
	call := New(As("callee", Identifier()), "(", Many("args"), ")")

	tree, err := syntax.Default().ParseString("println(a, b)")
	require.NoError(t, err)
	c := tree.Root()
	require.True(t, c.FirstChild())

	m := call.Match(c, false)
	require.NotNil(t, m)
	callee, _ := m.Node("callee")
	assert.Equal(t, "println", callee.Text())
	assert.Equal(t, []string{"a", "b"}, texts(m.Items("args")))
}
