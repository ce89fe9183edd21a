// Package scope resolves definitions and usages of names in one cell of
// Julia source.
//
// Explore walks a syntax tree once and returns a State: the cell's
// top-level definitions, every usage of a name (resolved to the local
// binding that covers it, when there is one) and the block-scoped locals.
// Cache wraps Explore so that a tree whose fingerprint did not change keeps
// its previous State.
package scope

import (
	"slices"
	"sort"

	"github.com/jward/cellscope/internal/syntax"
)

// Range is a half-open byte interval of the cell source.
type Range = syntax.Range

// Definition is a top-level binding of the cell.
type Definition struct {
	Name  string `json:"name"`
	Range Range  `json:"range"`
}

// Usage is one occurrence of a name. Definition is the range of the binding
// it resolves to, or nil when the name is free in the cell (a global
// defined elsewhere, or undefined). Binding sites record a usage too, whose
// Definition is their own range.
type Usage struct {
	Name       string `json:"name"`
	Range      Range  `json:"range"`
	Definition *Range `json:"definition,omitempty"`
}

// Resolved reports whether u refers to a binding of the cell.
func (u Usage) Resolved() bool { return u.Definition != nil }

// Local is a binding visible only inside Validity.
type Local struct {
	Name       string `json:"name"`
	Definition Range  `json:"definition"`
	Validity   Range  `json:"validity"`
}

// State is the analysis of one tree. A State is never modified once built.
type State struct {
	Definitions map[string]Definition `json:"definitions"`
	Usages      []Usage               `json:"usages"`
	Locals      []Local               `json:"locals"`

	unavailable bool
}

// Empty returns the state substituted when analysis failed. It has no
// definitions and no usages; callers must read it as "unknown", never as
// "nothing is defined".
func Empty() *State {
	return &State{Definitions: map[string]Definition{}, unavailable: true}
}

// Unavailable reports whether s stands for a failed analysis.
func (s *State) Unavailable() bool { return s == nil || s.unavailable }

// Definition returns the top-level definition of name.
func (s *State) Definition(name string) (Definition, bool) {
	d, ok := s.Definitions[name]
	return d, ok
}

// Names returns the top-level names, sorted.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.Definitions))
	for name := range s.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UsageAt returns the innermost usage whose range covers offset.
func (s *State) UsageAt(offset int) (Usage, bool) {
	var best Usage
	found := false
	for _, u := range s.Usages {
		if !u.Range.ContainsOffset(offset) {
			continue
		}
		if !found || u.Range.Len() < best.Range.Len() {
			best, found = u, true
		}
	}
	return best, found
}

// LocalFor returns the local a resolved usage refers to.
func (s *State) LocalFor(u Usage) (Local, bool) {
	if u.Definition == nil {
		return Local{}, false
	}
	for _, l := range s.Locals {
		if l.Name == u.Name && l.Definition == *u.Definition && l.Validity.Contains(u.Range) {
			return l, true
		}
	}
	return Local{}, false
}

// UsagesOf returns every usage of name, in document order.
func (s *State) UsagesOf(name string) []Usage {
	var out []Usage
	for _, u := range s.Usages {
		if u.Name == name {
			out = append(out, u)
		}
	}
	return out
}

// Equal reports whether s and o hold the same analysis.
func (s *State) Equal(o *State) bool {
	if s.Unavailable() || o.Unavailable() {
		return s.Unavailable() == o.Unavailable()
	}
	if len(s.Definitions) != len(o.Definitions) {
		return false
	}
	for name, d := range s.Definitions {
		if od, ok := o.Definitions[name]; !ok || od != d {
			return false
		}
	}
	return slices.EqualFunc(s.Usages, o.Usages, func(a, b Usage) bool {
		if a.Name != b.Name || a.Range != b.Range || a.Resolved() != b.Resolved() {
			return false
		}
		return a.Definition == nil || *a.Definition == *b.Definition
	}) && slices.Equal(s.Locals, o.Locals)
}
