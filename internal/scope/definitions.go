package scope

import (
	"github.com/jward/cellscope/internal/syntax"
	t "github.com/jward/cellscope/internal/template"
)

// typeDefinition handles struct, abstract type and primitive type
// definitions. The type name is bound in e; type parameters, the supertype
// and field types live in an inner scope spanning the definition, so
// synthetic type variables never leak into top-level lookups.
func (w *walker) typeDefinition(n syntax.Node, e env, heads typeHeads, fields bool) {
	head := n.FirstChild()
	if head.IsZero() {
		return
	}
	name, params, super := w.typeHead(head, heads)
	if name.IsZero() {
		w.unrecognized(n, "type head")
		return
	}

	w.bind(name, name.Text(), e, false)
	inner := e.push(n.Range())
	for _, p := range params {
		w.typeParam(p.Node, inner)
	}
	w.explore(super, inner)

	for _, ch := range children(n, 1) {
		if fields {
			w.field(ch, inner)
		} else {
			w.explore(ch, inner)
		}
	}
}

// typeHead splits `Name`, `Name{T...}` and either of them `<: Super`.
func (w *walker) typeHead(head syntax.Node, heads typeHeads) (name syntax.Node, params []t.Item, super syntax.Node) {
	nameTmpl, paramsTmpl := heads.name, heads.params
	if nodes, ok := captured(w.match(heads.super, head), "head", "super"); ok {
		head, super = nodes[0], nodes[1]
		nameTmpl, paramsTmpl = heads.nestedName, heads.nestedParams
	}
	if m := w.match(paramsTmpl, head); m != nil {
		if nodes, ok := captured(m, "name"); ok {
			return nodes[0], m.Items("params"), super
		}
	}
	if nodes, ok := captured(w.match(nameTmpl, head), "name"); ok {
		return nodes[0], nil, super
	}
	return syntax.Node{}, nil, super
}

// field explores one line of a struct body. Field names are neither
// definitions nor usages; their types and defaults are usages.
func (w *walker) field(n syntax.Node, e env) {
	switch n.Kind() {
	case kindIdentifier:
	case kindBlock:
		for _, ch := range n.Children() {
			w.field(ch, e)
		}
	case kindTypedExpression:
		for _, ch := range children(n, 1) {
			w.explore(ch, e)
		}
	case kindAssignment:
		if !signatureCall(n.FirstChild()).IsZero() {
			w.explore(n, e)
			return
		}
		w.explore(n.LastChild(), e)
		w.field(n.FirstChild(), e)
	default:
		w.explore(n, e)
	}
}

// module binds the module name in e; the body is a scope of its own.
func (w *walker) module(n syntax.Node, e env) {
	name := n.FirstChild()
	if name.IsZero() || name.Kind() != kindIdentifier {
		w.unrecognized(n, "module name")
		return
	}
	w.bind(name, name.Text(), e, false)
	inner := e.push(n.Range())
	for _, ch := range children(n, 1) {
		w.explore(ch, inner)
	}
}

// imports defines every name an import or using statement brings in.
// Imported names get no usage record.
func (w *walker) imports(n syntax.Node, e env) {
	for _, ch := range n.Children() {
		if m := w.match(selectedImport, ch); m != nil && m.Has("names") {
			for _, item := range m.Items("names") {
				w.imported(item.Node)
			}
			continue
		}
		w.imported(ch)
	}
}

func (w *walker) imported(n syntax.Node) {
	if nodes, ok := captured(w.matchAny(n, importAlias, selectedAlias), "alias"); ok {
		w.define(nodes[0], nodes[0].Text())
		return
	}
	if last := lastName(n); !last.IsZero() {
		w.define(last, last.Text())
	}
}

// lastName returns the rightmost identifier or macro name under n: `B` in
// `A.B`, `@m` in `A.@m`.
func lastName(n syntax.Node) syntax.Node {
	switch n.Kind() {
	case kindIdentifier, kindMacroIdentifier:
		return n
	}
	ch := n.Children()
	for i := len(ch) - 1; i >= 0; i-- {
		if found := lastName(ch[i]); !found.IsZero() {
			return found
		}
	}
	return syntax.Node{}
}
