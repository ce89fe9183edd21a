package syntax

// Builder assembles a Tree node by node in pre-order. Parsers use it to
// copy their own trees into the arena; tests use it to build trees by hand.
type Builder struct {
	t     *Tree
	stack []int32
}

// NewBuilder returns a Builder for a tree over src.
func NewBuilder(src []byte) *Builder {
	return &Builder{t: &Tree{src: src}}
}

// Open starts a node; children added until the matching Close belong to it.
func (b *Builder) Open(kind string, from, to int) {
	b.stack = append(b.stack, b.add(kind, from, to, false))
}

// OpenMissing is Open for a node the parser inserted during recovery.
func (b *Builder) OpenMissing(kind string, from, to int) {
	b.stack = append(b.stack, b.add(kind, from, to, true))
}

// Close finishes the innermost open node.
func (b *Builder) Close() {
	b.stack = b.stack[:len(b.stack)-1]
}

// Leaf adds a childless node.
func (b *Builder) Leaf(kind string, from, to int) {
	b.add(kind, from, to, false)
}

// MarkError flags the tree as containing parse errors that have no node
// of their own.
func (b *Builder) MarkError() {
	b.t.hasError = true
}

// Tree finishes construction. The Builder must not be used afterwards.
func (b *Builder) Tree() *Tree {
	t := b.t
	if len(t.nodes) == 0 {
		b.add("source_file", 0, len(t.src), false)
	}
	t.computeFingerprint()
	b.t = nil
	return t
}

func (b *Builder) add(kind string, from, to int, missing bool) int32 {
	t := b.t
	idx := int32(len(t.nodes))
	parent := none
	if len(b.stack) > 0 {
		parent = b.stack[len(b.stack)-1]
	}
	n := node{
		kind:        kind,
		from:        from,
		to:          to,
		parent:      parent,
		firstChild:  none,
		lastChild:   none,
		nextSibling: none,
		prevSibling: none,
		missing:     missing,
	}
	if kind == ErrorKind || missing {
		t.hasError = true
	}
	if parent != none {
		p := &t.nodes[parent]
		if p.lastChild == none {
			p.firstChild = idx
		} else {
			t.nodes[p.lastChild].nextSibling = idx
			n.prevSibling = p.lastChild
		}
		p.lastChild = idx
	}
	t.nodes = append(t.nodes, n)
	return idx
}
