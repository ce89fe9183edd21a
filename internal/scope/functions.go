package scope

import (
	"github.com/jward/cellscope/internal/syntax"
)

// functionDefinition handles `function ... end` and `macro ... end`.
func (w *walker) functionDefinition(n syntax.Node, e env) {
	head := n.FirstChild()
	if head.IsZero() {
		return
	}
	w.method(n, head, children(n, 1), e, n.Kind() == kindMacro)
}

// shortFunction handles a grammar node for `f(x) = body`, when the grammar
// has one; otherwise the form arrives as an assignment.
func (w *walker) shortFunction(n syntax.Node, e env) {
	head := n.FirstChild()
	if head.IsZero() || n.ChildCount() < 2 {
		w.exploreChildren(n, e)
		return
	}
	w.method(n, head, []syntax.Node{n.LastChild()}, e, false)
}

// signatureCall returns the call at the heart of a method signature,
// looking through `::ReturnType` and `where` wrappers, or the zero Node.
func signatureCall(n syntax.Node) syntax.Node {
	for !n.IsZero() {
		switch n.Kind() {
		case kindCallExpression:
			return n
		case kindTypedExpression, kindWhereExpression, kindSignature:
			n = n.FirstChild()
		default:
			return syntax.Node{}
		}
	}
	return n
}

// method analyses one method. head is its signature; the name is bound in
// e, parameters in a new scope spanning def. Default values and type
// annotations are explored before any parameter is bound, so they see
// outer names and where-parameters but never sibling parameters.
func (w *walker) method(def, head syntax.Node, body []syntax.Node, e env, macro bool) {
	var wheres, returnTypes []syntax.Node
	sig := head
unwrap:
	for {
		switch sig.Kind() {
		case kindSignature:
			sig = sig.FirstChild()
		case kindWhereExpression:
			wheres = append(children(sig, 1), wheres...)
			sig = sig.FirstChild()
		case kindTypedExpression:
			if signatureCall(sig).IsZero() {
				break unwrap
			}
			returnTypes = append(returnTypes, children(sig, 1)...)
			sig = sig.FirstChild()
		default:
			break unwrap
		}
		if sig.IsZero() {
			w.unrecognized(def, "function signature")
			return
		}
	}

	inner := e.push(def.Range())
	var paramLists []syntax.Node
	switch {
	case sig.Kind() == kindCallExpression:
		callee := sig.FirstChild()
		paramLists = children(sig, 1)
		switch callee.Kind() {
		case kindIdentifier, kindOperator:
			name := callee.Text()
			if macro {
				name = "@" + name
			}
			w.bind(callee, name, e, false)
		case kindFieldExpression:
			// Base.show(io, x): extends a method owned elsewhere.
			w.explore(callee, e)
		default:
			// (f::Functor)(x): the callee is a parameter too.
			paramLists = append([]syntax.Node{callee}, paramLists...)
		}
	case sig.Kind() == kindIdentifier:
		// function f end
		name := sig.Text()
		if macro {
			name = "@" + name
		}
		w.bind(sig, name, e, false)
	case anonymousParams[sig.Kind()]:
		paramLists = []syntax.Node{sig}
	default:
		w.unrecognized(def, "function signature")
		return
	}

	for _, p := range wheres {
		w.typeParam(p, inner)
	}
	var params []syntax.Node
	for _, list := range paramLists {
		w.params(list, inner, &params)
	}
	for _, rt := range returnTypes {
		w.explore(rt, inner)
	}
	for _, p := range params {
		w.bind(p, p.Text(), inner, true)
	}
	for _, b := range body {
		w.explore(b, inner)
	}
}

// params collects the parameter names under n into out and explores
// default values and type annotations in e.
func (w *walker) params(n syntax.Node, e env, out *[]syntax.Node) {
	if n.IsZero() {
		return
	}
	if n.Kind() == kindIdentifier {
		*out = append(*out, n)
		return
	}
	if nodes, ok := captured(w.matchAny(n, paramDefault, kwParamDefault), "param", "value"); ok {
		w.explore(nodes[1], e)
		w.params(nodes[0], e, out)
		return
	}
	if nodes, ok := captured(w.match(paramTyped, n), "param", "type"); ok {
		w.explore(nodes[1], e)
		w.params(nodes[0], e, out)
		return
	}
	if nodes, ok := captured(w.match(paramTypeOnly, n), "type"); ok {
		w.explore(nodes[0], e)
		return
	}
	if nodes, ok := captured(w.matchAny(n, paramSplat, kwParamSplat), "param"); ok {
		w.params(nodes[0], e, out)
		return
	}
	// Parameter lists, keyword sections and destructured tuples.
	c := n.Cursor()
	for ok := c.FirstChild(); ok; ok = c.NextSibling() {
		w.params(c.Node(), e, out)
	}
}

// typeParam binds one type parameter, as in `where T`, `where {T<:Real}`
// or `struct S{T}`. Bounds are explored first.
func (w *walker) typeParam(p syntax.Node, e env) {
	switch p.Kind() {
	case kindIdentifier:
		w.bind(p, p.Text(), e, true)
	case kindCurlyExpression:
		for _, ch := range p.Children() {
			w.typeParam(ch, e)
		}
	default:
		first := p.FirstChild()
		if first.IsZero() || first.Kind() != kindIdentifier {
			w.explore(p, e)
			return
		}
		for _, ch := range children(p, 1) {
			w.explore(ch, e)
		}
		w.bind(first, first.Text(), e, true)
	}
}

// where handles a `where` clause outside a method signature, as in
// `Vector{T} where T`.
func (w *walker) where(n syntax.Node, e env) {
	inner := e.push(n.Range())
	for _, p := range children(n, 1) {
		w.typeParam(p, inner)
	}
	w.explore(n.FirstChild(), inner)
}

// arrowFunction handles `x -> body` and `(x, y) -> body`.
func (w *walker) arrowFunction(n syntax.Node, e env) {
	head := n.FirstChild()
	if head.IsZero() {
		return
	}
	inner := e.push(n.Range())
	var params []syntax.Node
	w.params(head, inner, &params)
	for _, p := range params {
		w.bind(p, p.Text(), inner, true)
	}
	for _, b := range children(n, 1) {
		w.explore(b, inner)
	}
}

// doClause handles `f(xs) do x ... end`; the parameters are on the line of
// `do`.
func (w *walker) doClause(n syntax.Node, e env) {
	inner := e.push(n.Range())
	end := w.headerEnd(n.Range().From + len("do"))
	var params, body []syntax.Node
	for _, ch := range n.Children() {
		if ch.Range().From < end {
			w.params(ch, inner, &params)
		} else {
			body = append(body, ch)
		}
	}
	for _, p := range params {
		w.bind(p, p.Text(), inner, true)
	}
	for _, b := range body {
		w.explore(b, inner)
	}
}

// call explores a call, treating keyword arguments as names rather than
// bindings.
func (w *walker) call(n syntax.Node, e env) {
	c := n.Cursor()
	for ok := c.FirstChild(); ok; ok = c.NextSibling() {
		ch := c.Node()
		if ch.Kind() == kindArgumentList {
			for _, arg := range ch.Children() {
				w.argument(arg, e)
			}
			continue
		}
		w.explore(ch, e)
	}
}

func (w *walker) argument(n syntax.Node, e env) {
	if nodes, ok := captured(w.matchAny(n, callKeyword, callKeywordSemi), "value"); ok {
		w.explore(nodes[0], e)
		return
	}
	switch n.Kind() {
	case kindAssignment, kindNamedArgument:
		// `f(a = 1)` passes a keyword, it never assigns.
		w.explore(n.LastChild(), e)
		return
	}
	if w.startsWith(n, ';') {
		for _, ch := range n.Children() {
			w.argument(ch, e)
		}
		return
	}
	w.explore(n, e)
}

// tuple explores a tuple; `(a = 1, b = 2)` names fields instead of binding.
func (w *walker) tuple(n syntax.Node, e env) {
	for _, ch := range n.Children() {
		w.tupleField(ch, e)
	}
}

func (w *walker) tupleField(n syntax.Node, e env) {
	if nodes, ok := captured(w.matchAny(n, namedTupleField, callKeywordSemi), "value"); ok {
		w.explore(nodes[0], e)
		return
	}
	if w.startsWith(n, ';') {
		for _, ch := range n.Children() {
			w.tupleField(ch, e)
		}
		return
	}
	w.explore(n, e)
}

// stringMacro records `r"..."` as a usage of the macro @r_str.
func (w *walker) stringMacro(n syntax.Node, e env) {
	prefix := n.FirstChild()
	if prefix.IsZero() || prefix.Kind() != kindIdentifier {
		w.exploreChildren(n, e)
		return
	}
	w.use(prefix, "@"+prefix.Text()+"_str")
	for _, ch := range children(n, 1) {
		w.explore(ch, e)
	}
}
