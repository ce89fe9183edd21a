package template

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jward/cellscope/internal/syntax"
)

// Pattern is a compiled template. Patterns are immutable and safe for
// concurrent matching.
type Pattern interface {
	match(s *stream, m Match, log *slog.Logger) bool
	String() string
}

// Match holds the captures of one successful match, by name.
type Match map[string]Capture

// Capture is one named capture. Single captures carry Node; Many captures
// carry Items, one per repetition, in order.
type Capture struct {
	Node   syntax.Node
	Items  []Item
	IsList bool
}

// Item is one repetition of a Many capture, with the captures made inside
// that repetition.
type Item struct {
	Node  syntax.Node
	Match Match
}

// Node returns the node captured under name.
func (m Match) Node(name string) (syntax.Node, bool) {
	c, ok := m[name]
	if !ok || c.IsList {
		return syntax.Node{}, false
	}
	return c.Node, true
}

// Items returns the repetitions captured under name.
func (m Match) Items(name string) []Item {
	return m[name].Items
}

// Has reports whether name was captured.
func (m Match) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// MatchPattern matches p against the node under c. The node's following
// siblings are never consumed. With a non-nil log, the first mismatch is
// logged at debug level.
func MatchPattern(p Pattern, c syntax.Cursor, log *slog.Logger) Match {
	s := stream{c: c, ok: true}
	m := Match{}
	if !p.match(&s, m, log) {
		return nil
	}
	return m
}

// stream is a position in a sibling list; ok is false past its end.
type stream struct {
	c  syntax.Cursor
	ok bool
}

func (s *stream) advance() {
	s.ok = s.c.NextSibling()
}

func (s *stream) children() stream {
	child := stream{c: s.c}
	child.ok = child.c.FirstChild()
	return child
}

// kindPattern matches a node of one kind whose children match children in
// lockstep, with none left over. ERROR nodes match any kindPattern.
type kindPattern struct {
	kind     string
	children []Pattern
}

func (p *kindPattern) match(s *stream, m Match, log *slog.Logger) bool {
	if !s.ok {
		if log != nil {
			log.Debug("template.mismatch", "want", p.kind, "got", "end of siblings")
		}
		return false
	}
	got := s.c.Kind()
	if got == syntax.ErrorKind {
		s.advance()
		return true
	}
	if got != p.kind {
		if log != nil {
			log.Debug("template.mismatch", "want", p.kind, "got", got, "at", s.c.Range())
		}
		return false
	}
	child := s.children()
	for _, cp := range p.children {
		if !cp.match(&child, m, log) {
			return false
		}
	}
	if child.ok {
		if log != nil {
			log.Debug("template.mismatch", "want", "end of "+p.kind, "got", child.c.Kind(), "at", child.c.Range())
		}
		return false
	}
	s.advance()
	return true
}

func (p *kindPattern) String() string {
	if len(p.children) == 0 {
		return "(" + p.kind + ")"
	}
	parts := make([]string, 0, len(p.children)+1)
	parts = append(parts, p.kind)
	for _, c := range p.children {
		parts = append(parts, c.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// kindOnlyPattern matches one node by kind, ignoring its children.
type kindOnlyPattern struct {
	kind string
}

func (p kindOnlyPattern) match(s *stream, _ Match, log *slog.Logger) bool {
	if !s.ok {
		return false
	}
	got := s.c.Kind()
	if got != p.kind && got != syntax.ErrorKind {
		if log != nil {
			log.Debug("template.mismatch", "want", p.kind, "got", got, "at", s.c.Range())
		}
		return false
	}
	s.advance()
	return true
}

func (p kindOnlyPattern) String() string { return "<" + p.kind + ">" }

type anyPattern struct{}

func (anyPattern) match(s *stream, _ Match, _ *slog.Logger) bool {
	if !s.ok {
		return false
	}
	s.advance()
	return true
}

func (anyPattern) String() string { return "_" }

type capturePattern struct {
	name string
	sub  Pattern
}

func (p *capturePattern) match(s *stream, m Match, log *slog.Logger) bool {
	if !s.ok {
		return false
	}
	n := s.c.Node()
	if !p.sub.match(s, m, log) {
		return false
	}
	m[p.name] = Capture{Node: n}
	return true
}

func (p *capturePattern) String() string { return "$" + p.name + ":" + p.sub.String() }

// manyPattern consumes siblings while sub matches. A repetition that
// fails rewinds to where it started, so the siblings it touched are left
// for the patterns after it.
type manyPattern struct {
	name string
	sub  Pattern
}

func (p *manyPattern) match(s *stream, m Match, log *slog.Logger) bool {
	var items []Item
	for s.ok {
		saved := *s
		n := s.c.Node()
		im := Match{}
		if !p.sub.match(s, im, nil) {
			*s = saved
			break
		}
		items = append(items, Item{Node: n, Match: im})
		if *s == saved {
			break
		}
	}
	if log != nil {
		log.Debug("template.many", "name", p.name, "items", len(items))
	}
	m[p.name] = Capture{Items: items, IsList: true}
	return true
}

func (p *manyPattern) String() string { return fmt.Sprintf("$%s:%s*", p.name, p.sub) }

type maybePattern struct {
	sub Pattern
}

func (p *maybePattern) match(s *stream, m Match, log *slog.Logger) bool {
	if !s.ok {
		return true
	}
	saved := *s
	scratch := Match{}
	if !p.sub.match(s, scratch, log) {
		*s = saved
		return true
	}
	for k, v := range scratch {
		m[k] = v
	}
	return true
}

func (p *maybePattern) String() string { return p.sub.String() + "?" }
