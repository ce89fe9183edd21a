package cellscope

import (
	"bytes"

	"github.com/jward/cellscope/internal/syntax"
)

// QueryBuilder answers editor queries over the Engine's cells. Every query
// answers nothing for a cell whose analysis is unavailable.
type QueryBuilder struct {
	engine *Engine
}

// Location is a range of one cell's source. Line and Col are 1-based and
// point at From.
type Location struct {
	Cell  string `json:"cell"`
	Range Range  `json:"range"`
	Line  int    `json:"line"`
	Col   int    `json:"col"`
}

func newLocation(id string, src []byte, r Range) Location {
	line, col := LineCol(src, r.From)
	return Location{Cell: id, Range: r, Line: line, Col: col}
}

// LineCol converts a byte offset of src to a 1-based line and column.
func LineCol(src []byte, offset int) (line, col int) {
	offset = min(max(offset, 0), len(src))
	before := src[:offset]
	line = bytes.Count(before, []byte("\n")) + 1
	col = offset - (bytes.LastIndexByte(before, '\n') + 1) + 1
	return line, col
}

// Offset converts a 1-based line and column of src to a byte offset, or -1
// when the line does not exist.
func Offset(src []byte, line, col int) int {
	if line < 1 || col < 1 {
		return -1
	}
	off := 0
	for l := 1; l < line; l++ {
		i := bytes.IndexByte(src[off:], '\n')
		if i < 0 {
			return -1
		}
		off += i + 1
	}
	end := len(src)
	if i := bytes.IndexByte(src[off:], '\n'); i >= 0 {
		end = off + i
	}
	return min(off+col-1, end)
}

// DefinitionAt finds the binding the name at offset of cell id refers to.
// It reports false for free names, for positions that are not on a name
// and for cells whose analysis is unavailable.
func (q *QueryBuilder) DefinitionAt(id string, offset int) (*Location, bool) {
	e := q.engine
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.lookup(id)
	if !ok {
		return nil, false
	}
	st := c.state()
	if st.Unavailable() {
		return nil, false
	}
	u, ok := st.UsageAt(offset)
	if !ok || !u.Resolved() {
		return nil, false
	}
	loc := newLocation(id, c.doc.Source(), *u.Definition)
	return &loc, true
}

// ReferencesAt returns every usage in cell id that resolves to the same
// binding as the name at offset, including the binding site itself.
func (q *QueryBuilder) ReferencesAt(id string, offset int) []Location {
	e := q.engine
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.lookup(id)
	if !ok {
		return nil
	}
	st := c.state()
	if st.Unavailable() {
		return nil
	}
	at, ok := st.UsageAt(offset)
	if !ok || !at.Resolved() {
		return nil
	}
	var locs []Location
	for _, u := range st.UsagesOf(at.Name) {
		if u.Resolved() && *u.Definition == *at.Definition {
			locs = append(locs, newLocation(id, c.doc.Source(), u.Range))
		}
	}
	return locs
}

// DocLookup returns the name whose documentation should be shown for the
// cursor at offset of cell id: the identifier, qualified name, macro name
// or type under the cursor, or the callee of the call the cursor is in.
// Names that resolve to a local binding have no documentation.
func (q *QueryBuilder) DocLookup(id string, offset int) (string, bool) {
	e := q.engine
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.lookup(id)
	if !ok || c.tree() == nil {
		return "", false
	}
	st := c.state()
	if st.Unavailable() {
		return "", false
	}
	n := documentable(c.tree().NodeAt(offset))
	if n.IsZero() {
		return "", false
	}
	head := leftmostName(n)
	if u, ok := st.UsageAt(head.Range().From); ok && u.Range == head.Range() {
		if _, local := st.LocalFor(u); local {
			return "", false
		}
	}
	return n.Text(), true
}

// documentable walks up from n to the nearest node with documentation of
// its own.
func documentable(n syntax.Node) syntax.Node {
	for ; !n.IsZero(); n = n.Parent() {
		switch n.Kind() {
		case "identifier", "operator":
			if p := n.Parent(); !p.IsZero() && p.Kind() == "field_expression" && p.LastChild() == n {
				return p
			}
			return n
		case "macro_identifier", "field_expression":
			return n
		case "parametrized_type_expression":
			return documentable(n.FirstChild())
		case "call_expression", "macrocall_expression":
			return documentable(n.FirstChild())
		case "source_file":
			return syntax.Node{}
		}
	}
	return syntax.Node{}
}

// leftmostName returns the identifier a qualified name starts with.
func leftmostName(n syntax.Node) syntax.Node {
	for n.Kind() == "field_expression" && !n.FirstChild().IsZero() {
		n = n.FirstChild()
	}
	return n
}
