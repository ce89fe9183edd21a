package template

import (
	"strconv"

	"github.com/jward/cellscope/internal/syntax"
)

// Directive is a template part that is not literal text. Templates are
// directives too, so one template can be spliced into another.
type Directive interface {
	emit(b *builder)
}

type directiveFunc func(b *builder)

func (f directiveFunc) emit(b *builder) { f(b) }

// sub returns the single optional sub-directive, or Anything.
func sub(subs []Directive) Directive {
	switch len(subs) {
	case 0:
		return Anything()
	case 1:
		return subs[0]
	default:
		return New(toParts(subs)...)
	}
}

func toParts(ds []Directive) []any {
	parts := make([]any, len(ds))
	for i, d := range ds {
		parts[i] = d
	}
	return parts
}

// Anything matches exactly one node of any kind.
func Anything() Directive {
	return directiveFunc(func(b *builder) {
		b.wrap("_", b.placeholder, func(b *builder, n syntax.Node) (Pattern, error) {
			b.discard(n.Range())
			return anyPattern{}, nil
		})
	})
}

// Identifier matches a single identifier node.
func Identifier() Directive {
	return OfKind("identifier", "")
}

// OfKind matches a single node of the given kind. The placeholder is the
// text written into the snippet in its place; it must parse as one node of
// that kind. An empty placeholder writes a fresh identifier.
func OfKind(kind, placeholder string) Directive {
	return directiveFunc(func(b *builder) {
		b.wrap("kind="+kind, func() {
			if placeholder == "" {
				b.placeholder()
			} else {
				b.buf.WriteString(placeholder)
				b.sig.WriteString(strconv.Quote(placeholder))
			}
		}, func(b *builder, n syntax.Node) (Pattern, error) {
			b.discard(n.Range())
			return kindOnlyPattern{kind: kind}, nil
		})
	})
}

// As captures the node matched by the sub-directive under name. Without a
// sub-directive it captures any single node.
func As(name string, subs ...Directive) Directive {
	inner := sub(subs)
	return directiveFunc(func(b *builder) {
		b.wrap("as="+name, func() { inner.emit(b) }, func(b *builder, n syntax.Node) (Pattern, error) {
			p, err := b.convert(n)
			if err != nil {
				return nil, err
			}
			return &capturePattern{name: name, sub: p}, nil
		})
	})
}

// Many matches the sub-directive greedily, zero or more times, against
// consecutive siblings and captures each repetition as an Item under name.
// Without a sub-directive it collects any remaining siblings.
func Many(name string, subs ...Directive) Directive {
	inner := sub(subs)
	return directiveFunc(func(b *builder) {
		b.wrap("many="+name, func() { inner.emit(b) }, func(b *builder, n syntax.Node) (Pattern, error) {
			p, err := b.convert(n)
			if err != nil {
				return nil, err
			}
			return &manyPattern{name: name, sub: p}, nil
		})
	})
}

// Maybe matches the sub-directive once if it fits and consumes nothing
// otherwise.
func Maybe(subs ...Directive) Directive {
	inner := sub(subs)
	return directiveFunc(func(b *builder) {
		b.wrap("maybe", func() { inner.emit(b) }, func(b *builder, n syntax.Node) (Pattern, error) {
			p, err := b.convert(n)
			if err != nil {
				return nil, err
			}
			return &maybePattern{sub: p}, nil
		})
	})
}

// AnythingThatFits uses the sub-directive only to shape the parse; in the
// pattern it matches any single node.
func AnythingThatFits(d Directive) Directive {
	return directiveFunc(func(b *builder) {
		b.wrap("fits", func() { d.emit(b) }, func(b *builder, n syntax.Node) (Pattern, error) {
			b.discard(n.Range())
			return anyPattern{}, nil
		})
	})
}

// SameTypeAs matches any single node whose kind equals the kind the
// sub-directive's text parses to.
func SameTypeAs(d Directive) Directive {
	return directiveFunc(func(b *builder) {
		b.wrap("same", func() { d.emit(b) }, func(b *builder, n syntax.Node) (Pattern, error) {
			b.discard(n.Range())
			return kindOnlyPattern{kind: n.Kind()}, nil
		})
	})
}
