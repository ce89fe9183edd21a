package syntax

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// ErrorKind is the kind tree-sitter assigns to input it could not parse.
const ErrorKind = "ERROR"

const none int32 = -1

// Range is a half-open byte interval [From, To).
type Range struct {
	From int
	To   int
}

// Contains reports whether o lies entirely inside r.
func (r Range) Contains(o Range) bool {
	return r.From <= o.From && o.To <= r.To
}

// ContainsOffset reports whether offset lies inside r. The end offset is
// included so a caret placed right after a name still hits it.
func (r Range) ContainsOffset(offset int) bool {
	return r.From <= offset && offset <= r.To
}

// Len returns the number of bytes covered by r.
func (r Range) Len() int { return r.To - r.From }

type node struct {
	kind        string
	from, to    int
	parent      int32
	firstChild  int32
	lastChild   int32
	nextSibling int32
	prevSibling int32
	missing     bool
}

// Tree is an immutable arena of named syntax nodes. Node 0 is the root.
// Trees are safe for concurrent readers.
type Tree struct {
	nodes       []node
	src         []byte
	fingerprint uint64
	hasError    bool
}

// Root returns a cursor positioned at the root node.
func (t *Tree) Root() Cursor {
	return Cursor{tree: t, idx: 0}
}

// Source returns the text the tree was parsed from.
func (t *Tree) Source() []byte { return t.src }

// Text slices the source by r, clamping to the source bounds.
func (t *Tree) Text(r Range) string {
	from, to := max(r.From, 0), min(r.To, len(t.src))
	if from >= to {
		return ""
	}
	return string(t.src[from:to])
}

// Fingerprint identifies everything an analysis of the tree can observe:
// node kinds, ranges and the source between the first and the last
// non-root node, which includes the whitespace and punctuation between
// them. The root's own extent is left out, since trailing comments and
// whitespace stretch it without moving any node. Two trees with equal
// fingerprints analyse identically.
func (t *Tree) Fingerprint() uint64 { return t.fingerprint }

// HasError reports whether the parser produced any ERROR or missing node.
func (t *Tree) HasError() bool { return t.hasError }

// NodeCount returns the number of nodes in the arena.
func (t *Tree) NodeCount() int { return len(t.nodes) }

// NodeAt returns the innermost node whose range contains offset.
func (t *Tree) NodeAt(offset int) Node {
	c := t.Root()
	if !c.Range().ContainsOffset(offset) {
		return Node{}
	}
	for {
		found := false
		if c.FirstChild() {
			for {
				if c.Range().ContainsOffset(offset) {
					found = true
					break
				}
				if !c.NextSibling() {
					break
				}
			}
			if !found {
				c.Parent()
			}
		}
		if !found {
			return c.Node()
		}
	}
}

func (t *Tree) computeFingerprint() {
	h := xxh3.New()
	var buf [8]byte
	word := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	lo, hi := len(t.src), 0
	for i := range t.nodes {
		n := &t.nodes[i]
		h.WriteString(n.kind)
		h.Write([]byte{0})
		if i == 0 {
			continue
		}
		word(n.from)
		word(n.to)
		if n.missing {
			h.Write([]byte{1})
		}
		lo, hi = min(lo, n.from), max(hi, n.to)
	}
	if lo < hi {
		h.WriteString(t.Text(Range{lo, hi}))
	}
	if t.hasError {
		h.Write([]byte{1})
	}
	t.fingerprint = h.Sum64()
}

// Node is a persistent handle to one node of a Tree. The zero Node is
// invalid.
type Node struct {
	tree *Tree
	idx  int32
}

// IsZero reports whether n refers to no node.
func (n Node) IsZero() bool { return n.tree == nil }

// Kind returns the node kind, e.g. "identifier".
func (n Node) Kind() string { return n.tree.nodes[n.idx].kind }

// Range returns the node's byte range.
func (n Node) Range() Range {
	nd := &n.tree.nodes[n.idx]
	return Range{nd.from, nd.to}
}

// Text returns the source text covered by the node.
func (n Node) Text() string { return n.tree.Text(n.Range()) }

// IsMissing reports whether the parser inserted this node to recover
// from an error.
func (n Node) IsMissing() bool { return n.tree.nodes[n.idx].missing }

// Cursor returns a cursor positioned at n.
func (n Node) Cursor() Cursor { return Cursor{tree: n.tree, idx: n.idx} }

// Tree returns the tree that owns n.
func (n Node) Tree() *Tree { return n.tree }

// Parent returns the parent node, or the zero Node at the root.
func (n Node) Parent() Node {
	p := n.tree.nodes[n.idx].parent
	if p == none {
		return Node{}
	}
	return Node{tree: n.tree, idx: p}
}

// Children returns the node's children in order.
func (n Node) Children() []Node {
	var out []Node
	for i := n.tree.nodes[n.idx].firstChild; i != none; i = n.tree.nodes[i].nextSibling {
		out = append(out, Node{tree: n.tree, idx: i})
	}
	return out
}

// ChildCount returns the number of children.
func (n Node) ChildCount() int {
	count := 0
	for i := n.tree.nodes[n.idx].firstChild; i != none; i = n.tree.nodes[i].nextSibling {
		count++
	}
	return count
}

// FirstChild returns the first child, or the zero Node for a leaf.
func (n Node) FirstChild() Node {
	i := n.tree.nodes[n.idx].firstChild
	if i == none {
		return Node{}
	}
	return Node{tree: n.tree, idx: i}
}

// LastChild returns the last child, or the zero Node for a leaf.
func (n Node) LastChild() Node {
	i := n.tree.nodes[n.idx].lastChild
	if i == none {
		return Node{}
	}
	return Node{tree: n.tree, idx: i}
}

// ChildOfKind returns the first child with the given kind.
func (n Node) ChildOfKind(kinds ...string) Node {
	for i := n.tree.nodes[n.idx].firstChild; i != none; i = n.tree.nodes[i].nextSibling {
		for _, k := range kinds {
			if n.tree.nodes[i].kind == k {
				return Node{tree: n.tree, idx: i}
			}
		}
	}
	return Node{}
}

// Cursor is a position inside a Tree. Moving a cursor never allocates and
// copying one forks it, so a saved copy is a rewind point.
type Cursor struct {
	tree *Tree
	idx  int32
}

// Tree returns the tree the cursor walks.
func (c Cursor) Tree() *Tree { return c.tree }

// Node returns a handle to the current node.
func (c Cursor) Node() Node { return Node{tree: c.tree, idx: c.idx} }

// Kind returns the kind of the current node.
func (c Cursor) Kind() string { return c.tree.nodes[c.idx].kind }

// Range returns the byte range of the current node.
func (c Cursor) Range() Range {
	nd := &c.tree.nodes[c.idx]
	return Range{nd.from, nd.to}
}

// Text returns the source text of the current node.
func (c Cursor) Text() string { return c.tree.Text(c.Range()) }

// FirstChild moves to the first child. It reports false, without moving,
// on a leaf.
func (c *Cursor) FirstChild() bool {
	i := c.tree.nodes[c.idx].firstChild
	if i == none {
		return false
	}
	c.idx = i
	return true
}

// NextSibling moves to the next sibling if there is one.
func (c *Cursor) NextSibling() bool {
	i := c.tree.nodes[c.idx].nextSibling
	if i == none {
		return false
	}
	c.idx = i
	return true
}

// PrevSibling moves to the previous sibling if there is one.
func (c *Cursor) PrevSibling() bool {
	i := c.tree.nodes[c.idx].prevSibling
	if i == none {
		return false
	}
	c.idx = i
	return true
}

// Parent moves to the parent node. It reports false at the root.
func (c *Cursor) Parent() bool {
	i := c.tree.nodes[c.idx].parent
	if i == none {
		return false
	}
	c.idx = i
	return true
}
