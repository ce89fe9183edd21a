package scope

import (
	"github.com/jward/cellscope/internal/syntax"
	t "github.com/jward/cellscope/internal/template"
)

// assignment handles `lhs = rhs` and `lhs op= rhs`. The right side is
// explored before the left side is bound, so `x = x + 1` reads the old x.
func (w *walker) assignment(n syntax.Node, e env) {
	lhs, rhs := n.FirstChild(), n.LastChild()
	if lhs.IsZero() || n.ChildCount() < 2 {
		w.exploreChildren(n, e)
		return
	}
	if n.Kind() == kindAssignment && !signatureCall(lhs).IsZero() {
		w.method(n, lhs, []syntax.Node{rhs}, e, false)
		return
	}
	w.explore(rhs, e)
	w.bindTargets(lhs, e, false)
}

// bindTargets binds every leaf identifier of an assignment target.
// Indexing and field access on the left mutate an existing object, so they
// are explored as usages.
func (w *walker) bindTargets(n syntax.Node, e env, fresh bool) {
	switch n.Kind() {
	case kindIdentifier:
		w.bind(n, n.Text(), e, fresh)
	case kindIndexExpression, kindFieldExpression, kindCallExpression, kindInterpolation:
		w.explore(n, e)
	case kindOperator:
	case kindTypedExpression:
		for _, ch := range children(n, 1) {
			w.explore(ch, e)
		}
		w.bindTargets(n.FirstChild(), e, fresh)
	default:
		c := n.Cursor()
		for ok := c.FirstChild(); ok; ok = c.NextSibling() {
			w.bindTargets(c.Node(), e, fresh)
		}
	}
}

// declaration handles `global ...` and `local ...`; e carries the mode.
func (w *walker) declaration(n syntax.Node, e env) {
	for _, ch := range n.Children() {
		switch ch.Kind() {
		case kindIdentifier:
			w.bind(ch, ch.Text(), e, false)
		case kindTypedExpression, kindTupleExpression:
			w.bindTargets(ch, e, false)
		default:
			w.explore(ch, e)
		}
	}
}

// let handles `let a = 1, b; body end`. Bindings are on the `let` line and
// are processed in order, each seeing the ones before it.
func (w *walker) let(n syntax.Node, e env) {
	inner := e.push(n.Range())
	end := w.headerEnd(n.Range().From + len("let"))
	for _, ch := range n.Children() {
		if ch.Range().From >= end {
			w.explore(ch, inner)
			continue
		}
		if ch.Kind() == kindIdentifier {
			w.bind(ch, ch.Text(), inner, true)
			continue
		}
		if nodes, ok := captured(w.match(letAssign, ch), "lhs", "rhs"); ok {
			w.explore(nodes[1], inner)
			w.bindTargets(nodes[0], inner, true)
			continue
		}
		w.explore(ch, inner)
	}
}

// forLoop handles `for i in xs, j in ys; body end`.
func (w *walker) forLoop(n syntax.Node, e env) {
	inner := e.push(n.Range())
	end := w.headerEnd(n.Range().From + len("for"))
	for _, ch := range n.Children() {
		if ch.Range().From < end && w.iteration(ch, inner, forIn, forEq, forElem) {
			continue
		}
		w.explore(ch, inner)
	}
}

// iteration handles one `target in iterable` binding: the iterable is
// explored first, then the target is bound. It reports false when n is no
// such binding.
func (w *walker) iteration(n syntax.Node, e env, tmpls ...*t.Template) bool {
	nodes, ok := captured(w.matchAny(n, tmpls...), "target", "iter")
	if !ok {
		if n.Kind() == kindForBinding {
			w.unrecognized(n, "loop binding")
			return true
		}
		return false
	}
	w.explore(nodes[1], e)
	w.bindTargets(nodes[0], e, true)
	return true
}

// comprehension handles `[expr for x in xs if cond]` and generators. The
// clauses run left to right; the yielded expression is explored last.
func (w *walker) comprehension(n syntax.Node, e env) {
	inner := e.push(n.Range())
	var yielded []syntax.Node
	for _, ch := range n.Children() {
		switch ch.Kind() {
		case kindForClause:
			w.forClause(ch, inner)
		case kindIfClause:
			w.explore(ch, inner)
		default:
			yielded = append(yielded, ch)
		}
	}
	for _, y := range yielded {
		w.explore(y, inner)
	}
}

func (w *walker) forClause(n syntax.Node, e env) {
	for _, ch := range n.Children() {
		if w.iteration(ch, e, clauseIn, clauseEq, clauseEl, forIn, forEq, forElem) {
			continue
		}
		w.explore(ch, e)
	}
}

// try handles try/catch/else/finally; every part is its own scope.
func (w *walker) try(n syntax.Node, e env) {
	body := e.push(n.Range())
	for _, ch := range n.Children() {
		switch ch.Kind() {
		case kindCatch:
			w.catch(ch, e)
		case kindFinally, kindElse:
			w.exploreChildren(ch, e.push(ch.Range()))
		default:
			w.explore(ch, body)
		}
	}
}

// catch binds the exception name written on the `catch` line.
func (w *walker) catch(n syntax.Node, e env) {
	inner := e.push(n.Range())
	end := w.headerEnd(n.Range().From + len("catch"))
	for i, ch := range n.Children() {
		if i == 0 && ch.Kind() == kindIdentifier && ch.Range().From < end {
			w.bind(ch, ch.Text(), inner, true)
			continue
		}
		w.explore(ch, inner)
	}
}

// interpolations skips a quoted body, exploring only the `$x` and `$(...)`
// splices inside it, in the surrounding scope.
func (w *walker) interpolations(n syntax.Node, e env) {
	c := n.Cursor()
	for ok := c.FirstChild(); ok; ok = c.NextSibling() {
		ch := c.Node()
		if ch.Kind() == kindInterpolation {
			w.exploreChildren(ch, e)
			continue
		}
		w.interpolations(ch, e)
	}
}
