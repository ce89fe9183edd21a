// Package template compiles snippets of Julia source with embedded
// directives into patterns, and matches those patterns against syntax
// trees.
//
// A template is written as real source. Each directive contributes a
// placeholder (usually a fresh identifier) to the text; the text is parsed
// once with the real grammar, and every node sitting exactly at a
// placeholder's byte range is replaced by the directive's matcher. The
// grammar therefore decides the pattern's shape, wrapper nodes included:
//
//	call := template.New(template.As("callee", template.Identifier()), "(", template.Many("args"), ")")
//	if m := call.Match(cursor, false); m != nil {
//		callee, _ := m.Node("callee")
//		args := m.Items("args")
//	}
package template

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jward/cellscope/internal/syntax"
)

// ErrTemplateShape reports a template whose text does not parse into the
// shape it was written for. It is a programming error in the template.
var ErrTemplateShape = errors.New("template: shape error")

// Parser is the grammar front end templates are compiled with.
type Parser interface {
	ParseString(src string) (*syntax.Tree, error)
}

// Template is a snippet with directives. Templates are immutable once
// built and compile lazily, once, on first use.
type Template struct {
	parts  []any
	prefix string
	suffix string
	parser Parser

	once    sync.Once
	pattern Pattern
	err     error
}

// New builds a template from literal source strings interleaved with
// directives (including other templates).
func New(parts ...any) *Template {
	for _, p := range parts {
		switch p.(type) {
		case string, Directive:
		default:
			panic(fmt.Sprintf("template: unsupported part %T", p))
		}
	}
	return &Template{parts: parts}
}

// Snippet is a template of literal source only.
func Snippet(src string) *Template {
	return New(src)
}

// In returns a copy of t compiled inside the given syntactic context, so
// that the snippet takes the shape it has in that position. For example a
// parameter pattern is written In("function f(", ") end").
func (t *Template) In(prefix, suffix string) *Template {
	return &Template{parts: t.parts, prefix: prefix, suffix: suffix, parser: t.parser}
}

// WithParser returns a copy of t compiled with p instead of the default
// Julia parser.
func (t *Template) WithParser(p Parser) *Template {
	return &Template{parts: t.parts, prefix: t.prefix, suffix: t.suffix, parser: p}
}

// String renders the snippet with its placeholders.
func (t *Template) String() string {
	b := newBuilder()
	t.emit(b)
	return b.buf.String()
}

// Compile parses the template and builds its pattern. The result is
// memoised on t and in a process-wide cache keyed by the rendered snippet.
func (t *Template) Compile() (Pattern, error) {
	t.once.Do(func() {
		t.pattern, t.err = compile(t)
	})
	return t.pattern, t.err
}

// MustCompile compiles t and panics on a shape error. Use it for
// package-level templates so that broken ones fail at init.
func MustCompile(t *Template) *Template {
	if _, err := t.Compile(); err != nil {
		panic(err)
	}
	return t
}

// Match matches the template against the node under c. It returns the
// captures, or nil when the node does not fit. c is not moved. With
// verbose set, mismatches are logged to slog.Default.
func (t *Template) Match(c syntax.Cursor, verbose bool) Match {
	var log *slog.Logger
	if verbose {
		log = slog.Default()
	}
	return t.MatchLogged(c, log)
}

// MatchLogged is Match logging mismatches to log, or nowhere when log is
// nil.
func (t *Template) MatchLogged(c syntax.Cursor, log *slog.Logger) Match {
	p, err := t.Compile()
	if err != nil {
		panic(err)
	}
	return MatchPattern(p, c, log)
}

// MatchNode is Match for a node handle.
func (t *Template) MatchNode(n syntax.Node, verbose bool) Match {
	if n.IsZero() {
		return nil
	}
	return t.Match(n.Cursor(), verbose)
}

// Nested templates contribute their text and let the enclosing parse
// decide their shape.
func (t *Template) emit(b *builder) {
	for _, p := range t.parts {
		switch p := p.(type) {
		case string:
			b.buf.WriteString(p)
			b.sig.WriteString(p)
		case Directive:
			p.emit(b)
		}
	}
}

// compiled caches patterns across Template values with identical text.
var compiled sync.Map // string -> Pattern

func compile(t *Template) (Pattern, error) {
	parser := t.parser
	if parser == nil {
		parser = syntax.Default()
	}

	b := newBuilder()
	b.buf.WriteString(t.prefix)
	start := b.buf.Len()
	t.emit(b)
	end := b.buf.Len()
	b.buf.WriteString(t.suffix)
	src := b.buf.String()

	key := fmt.Sprintf("%p\x00%s\x00%s\x00%s", parser, t.prefix, t.suffix, b.sig.String())
	if p, ok := compiled.Load(key); ok {
		return p.(Pattern), nil
	}

	tree, err := parser.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("template: parse %q: %w", src, err)
	}
	b.index()

	snippet := trimmedRange(src, start, end)
	root := findRoot(tree, snippet)
	if root.IsZero() {
		return nil, fmt.Errorf("%w: %q does not parse as a single node in context %q...%q",
			ErrTemplateShape, src[start:end], t.prefix, t.suffix)
	}
	if tree.HasError() || hasError(root) {
		return nil, fmt.Errorf("%w: %q does not parse cleanly", ErrTemplateShape, src)
	}

	p, err := b.convert(root)
	if err != nil {
		return nil, err
	}
	for _, s := range b.slots {
		if !s.used {
			return nil, fmt.Errorf("%w: placeholder %q at %d-%d never matched a node in %q",
				ErrTemplateShape, src[s.r.From:s.r.To], s.r.From, s.r.To, src)
		}
	}

	compiled.Store(key, p)
	return p, nil
}

// trimmedRange shrinks [start, end) past surrounding whitespace.
func trimmedRange(src string, start, end int) syntax.Range {
	for start < end && isSpace(src[start]) {
		start++
	}
	for end > start && isSpace(src[end-1]) {
		end--
	}
	return syntax.Range{From: start, To: end}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// findRoot returns the outermost node below the tree root spanning
// exactly r.
func findRoot(tree *syntax.Tree, r syntax.Range) syntax.Node {
	var found syntax.Node
	var visit func(n syntax.Node) bool
	visit = func(n syntax.Node) bool {
		nr := n.Range()
		if !nr.Contains(r) {
			return false
		}
		if nr == r {
			found = n
			return true
		}
		for _, ch := range n.Children() {
			if visit(ch) {
				return true
			}
		}
		return false
	}
	for _, ch := range tree.Root().Node().Children() {
		if visit(ch) {
			break
		}
	}
	return found
}

func hasError(n syntax.Node) bool {
	if n.Kind() == syntax.ErrorKind || n.IsMissing() {
		return true
	}
	for _, ch := range n.Children() {
		if hasError(ch) {
			return true
		}
	}
	return false
}

// builder carries both compilation passes: emission records placeholder
// ranges, conversion attaches slot matchers to the parsed nodes.
type builder struct {
	buf     strings.Builder
	sig     strings.Builder
	slots   []*slot
	byRange map[syntax.Range][]*slot
	depth   int
	counter int
}

type slot struct {
	r     syntax.Range
	depth int
	used  bool
	build func(b *builder, n syntax.Node) (Pattern, error)
}

func newBuilder() *builder {
	return &builder{}
}

// placeholder writes a fresh identifier that cannot collide with user text.
func (b *builder) placeholder() {
	fmt.Fprintf(&b.buf, "__slot%d__", b.counter)
	b.counter++
}

// wrap records the range written by inner as a slot built by build.
func (b *builder) wrap(sig string, inner func(), build func(b *builder, n syntax.Node) (Pattern, error)) {
	b.sig.WriteString("${")
	b.sig.WriteString(sig)
	b.sig.WriteString(":")
	start := b.buf.Len()
	b.depth++
	inner()
	b.depth--
	b.sig.WriteString("}")
	b.slots = append(b.slots, &slot{
		r:     syntax.Range{From: start, To: b.buf.Len()},
		depth: b.depth,
		build: build,
	})
}

func (b *builder) index() {
	b.byRange = make(map[syntax.Range][]*slot, len(b.slots))
	for _, s := range b.slots {
		b.byRange[s.r] = append(b.byRange[s.r], s)
	}
	for _, list := range b.byRange {
		for i := 1; i < len(list); i++ {
			for j := i; j > 0 && list[j].depth < list[j-1].depth; j-- {
				list[j], list[j-1] = list[j-1], list[j]
			}
		}
	}
}

// pending returns the outermost unused slot attached to n. Slots attach
// to the innermost node of their range, so a wrapper that spans the same
// bytes as its only child stays a structural pattern.
func (b *builder) pending(n syntax.Node) *slot {
	r := n.Range()
	list := b.byRange[r]
	if len(list) == 0 {
		return nil
	}
	for _, ch := range n.Children() {
		if ch.Range() == r {
			return nil
		}
	}
	for _, s := range list {
		if !s.used {
			return s
		}
	}
	return nil
}

// convert turns the parsed node n into a pattern.
func (b *builder) convert(n syntax.Node) (Pattern, error) {
	if s := b.pending(n); s != nil {
		s.used = true
		return s.build(b, n)
	}
	p := &kindPattern{kind: n.Kind()}
	for _, ch := range n.Children() {
		cp, err := b.convert(ch)
		if err != nil {
			return nil, err
		}
		p.children = append(p.children, cp)
	}
	return p, nil
}

// discard marks every slot inside r as used; directives that swallow a
// whole node call it so the placeholders of their sub-snippet count as
// attached.
func (b *builder) discard(r syntax.Range) {
	for _, s := range b.slots {
		if r.Contains(s.r) {
			s.used = true
		}
	}
}
