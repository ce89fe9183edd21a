package scope

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/jward/cellscope/internal/syntax"
	t "github.com/jward/cellscope/internal/template"
)

// bindMode selects where a binding is recorded.
type bindMode int

const (
	// bindAssign binds at top level when outside any hard scope, otherwise
	// reuses a visible local or creates one in the innermost scope.
	bindAssign bindMode = iota
	// bindGlobal always binds at top level (`global x`).
	bindGlobal
	// bindLocal always creates a local in the innermost scope (`local x`).
	bindLocal
)

// env is the part of the walk that depends on the position in the tree. It
// is passed by value; push never aliases the caller's stack.
type env struct {
	scopes []Range
	mode   bindMode
}

func (e env) push(r Range) env {
	e.scopes = append(slices.Clip(e.scopes), r)
	e.mode = bindAssign
	return e
}

func (e env) with(mode bindMode) env {
	e.mode = mode
	return e
}

func (e env) topLevel() bool { return len(e.scopes) == 0 }

func (e env) innermost() Range { return e.scopes[len(e.scopes)-1] }

// Option configures Explore and Cache.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	verbose bool
}

// WithLogger sets the logger unrecognised constructs are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithVerbose logs template mismatches at debug level.
func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type walker struct {
	src     []byte
	logger  *slog.Logger
	verbose bool

	defs   map[string]Definition
	usages []Usage
	locals []Local
	byName map[string][]int
}

// Explore analyses tree and returns its State. A panic inside the walk is
// returned as an error.
func Explore(tree *syntax.Tree, opts ...Option) (*State, error) {
	o := buildOptions(opts)
	w := &walker{
		src:     tree.Source(),
		logger:  o.logger,
		verbose: o.verbose,
		defs:    map[string]Definition{},
		byName:  map[string][]int{},
	}
	if err := guard(func() { w.exploreChildren(tree.Root().Node(), env{}) }); err != nil {
		return nil, err
	}

	sort.SliceStable(w.usages, func(i, j int) bool {
		return w.usages[i].Range.From < w.usages[j].Range.From
	})
	return &State{Definitions: w.defs, Usages: w.usages, Locals: w.locals}, nil
}

// guard runs fn and turns a panic into an error.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scope: explore: %v", r)
		}
	}()
	fn()
	return nil
}

func (w *walker) explore(n syntax.Node, e env) {
	if n.IsZero() {
		return
	}
	switch n.Kind() {
	case kindIdentifier:
		w.use(n, n.Text())
	case kindMacroIdentifier:
		w.use(n, n.Text())
	case kindOperator:
	case kindFieldExpression:
		// a.b reads a; b is a property name.
		w.explore(n.FirstChild(), e)
	case kindAssignment, kindCompoundAssign:
		w.assignment(n, e)
	case kindShortFunction:
		w.shortFunction(n, e)
	case kindFunction, kindMacro:
		w.functionDefinition(n, e)
	case kindArrowFunction:
		w.arrowFunction(n, e)
	case kindDoClause:
		w.doClause(n, e)
	case kindStruct:
		w.typeDefinition(n, e, structHeads, true)
	case kindAbstract:
		w.typeDefinition(n, e, abstractHeads, false)
	case kindPrimitive:
		w.typeDefinition(n, e, primitiveHeads, false)
	case kindModule:
		w.module(n, e)
	case kindLet:
		w.let(n, e)
	case kindFor:
		w.forLoop(n, e)
	case kindWhile:
		w.exploreChildren(n, e.push(n.Range()))
	case kindTry:
		w.try(n, e)
	case kindComprehension, kindTypedComp, kindGenerator, kindGeneratorExpr:
		w.comprehension(n, e)
	case kindQuoteStatement, kindQuoteExpression:
		w.interpolations(n, e)
	case kindImport, kindUsing:
		w.imports(n, e)
	case kindGlobal:
		w.declaration(n, e.with(bindGlobal))
	case kindLocal:
		w.declaration(n, e.with(bindLocal))
	case kindCallExpression:
		w.call(n, e)
	case kindTupleExpression:
		w.tuple(n, e)
	case kindWhereExpression:
		w.where(n, e)
	case kindPrefixedString, kindPrefixedCommand:
		w.stringMacro(n, e)
	default:
		w.exploreChildren(n, e)
	}
}

func (w *walker) exploreChildren(n syntax.Node, e env) {
	c := n.Cursor()
	for ok := c.FirstChild(); ok; ok = c.NextSibling() {
		w.explore(c.Node(), e)
	}
}

// use records a usage of name at n, resolved against the locals bound so
// far.
func (w *walker) use(n syntax.Node, name string) {
	w.usages = append(w.usages, Usage{Name: name, Range: n.Range(), Definition: w.resolve(name, n.Range())})
}

// resolve finds the local that name refers to at r: the innermost validity
// containing r, and among equal validities the most recent binding.
func (w *walker) resolve(name string, r Range) *Range {
	best := -1
	for _, i := range w.byName[name] {
		l := &w.locals[i]
		if !l.Validity.Contains(r) {
			continue
		}
		if best < 0 || l.Validity.Len() <= w.locals[best].Validity.Len() {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	def := w.locals[best].Definition
	return &def
}

// bind records a binding of name at n. fresh forces a new local even when
// one with the same name is visible, as parameters and loop variables do.
func (w *walker) bind(n syntax.Node, name string, e env, fresh bool) {
	r := n.Range()
	if e.mode == bindGlobal || e.topLevel() {
		w.defs[name] = Definition{Name: name, Range: r}
		w.selfUsage(name, r)
		return
	}
	if !fresh && e.mode != bindLocal {
		if def := w.resolve(name, r); def != nil {
			w.usages = append(w.usages, Usage{Name: name, Range: r, Definition: def})
			return
		}
	}
	w.byName[name] = append(w.byName[name], len(w.locals))
	w.locals = append(w.locals, Local{Name: name, Definition: r, Validity: e.innermost()})
	w.selfUsage(name, r)
}

func (w *walker) selfUsage(name string, r Range) {
	def := r
	w.usages = append(w.usages, Usage{Name: name, Range: r, Definition: &def})
}

// define records a top-level definition without a usage, as imports do.
func (w *walker) define(n syntax.Node, name string) {
	w.defs[name] = Definition{Name: name, Range: n.Range()}
}

// unrecognized reports a construct whose shape the walker does not know.
// Its subtree is left unanalysed.
func (w *walker) unrecognized(n syntax.Node, what string) {
	w.logger.Warn("scope.unrecognized",
		slog.String("construct", what),
		slog.String("kind", n.Kind()),
		slog.Int("from", n.Range().From),
		slog.Int("to", n.Range().To))
}

// headerEnd returns the offset of the first newline or semicolon at bracket
// depth zero from offset from on. Constructs like `let`, `for`, `catch`
// and `do` take their bindings from this header line.
func (w *walker) headerEnd(from int) int {
	depth := 0
	for i := from; i < len(w.src); i++ {
		switch c := w.src[i]; c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '"':
			for i++; i < len(w.src) && w.src[i] != '"'; i++ {
				if w.src[i] == '\\' {
					i++
				}
			}
		case '\n', ';':
			if depth <= 0 {
				return i
			}
		}
	}
	return len(w.src)
}

// startsWith reports whether the source of n begins with c. Keyword
// sections of argument lists start with ';'.
func (w *walker) startsWith(n syntax.Node, c byte) bool {
	from := n.Range().From
	return from < len(w.src) && w.src[from] == c
}

// captured returns the named nodes of m, or false when m is nil or any is
// missing, as happens when an ERROR node stood in for the whole pattern.
func captured(m t.Match, names ...string) ([]syntax.Node, bool) {
	if m == nil {
		return nil, false
	}
	out := make([]syntax.Node, len(names))
	for i, name := range names {
		n, ok := m.Node(name)
		if !ok || n.IsZero() {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// children returns n's children after the first skip of them.
func children(n syntax.Node, skip int) []syntax.Node {
	all := n.Children()
	if skip >= len(all) {
		return nil
	}
	return all[skip:]
}
