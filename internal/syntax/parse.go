package syntax

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	tree_sitter_julia "github.com/tree-sitter/tree-sitter-julia/bindings/go"
)

// ErrNoParse is returned when tree-sitter produces no tree at all.
var ErrNoParse = errors.New("syntax: parser produced no tree")

// sourceExtensions lists the file extensions read as cells.
var sourceExtensions = map[string]bool{
	".jl": true,
}

// IsSourceFile reports whether path has a Julia source extension.
func IsSourceFile(path string) bool {
	return sourceExtensions[strings.ToLower(filepath.Ext(path))]
}

// The grammar is lazily initialized on first use.
var (
	julia     *sitter.Language
	juliaOnce sync.Once
)

// Julia returns the tree-sitter Julia grammar.
func Julia() *sitter.Language {
	juliaOnce.Do(func() {
		julia = sitter.NewLanguage(tree_sitter_julia.Language())
	})
	return julia
}

// Parser turns source text into arena Trees. tree-sitter parsers are not
// safe for concurrent use, so they are pooled; a Parser itself may be
// shared between goroutines.
type Parser struct {
	lang *sitter.Language
	pool sync.Pool
}

// NewParser returns a Parser for the Julia grammar.
func NewParser() *Parser {
	return NewParserForLanguage(Julia())
}

// NewParserForLanguage returns a Parser for an arbitrary tree-sitter grammar.
func NewParserForLanguage(lang *sitter.Language) *Parser {
	p := &Parser{lang: lang}
	p.pool.New = func() any {
		sp := sitter.NewParser()
		sp.SetLanguage(lang)
		return sp
	}
	return p
}

var (
	defaultParser     *Parser
	defaultParserOnce sync.Once
)

// Default returns a process-wide Julia Parser.
func Default() *Parser {
	defaultParserOnce.Do(func() {
		defaultParser = NewParser()
	})
	return defaultParser
}

// Parse parses src from scratch.
func (p *Parser) Parse(ctx context.Context, src []byte) (*Tree, error) {
	st, err := p.parse(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return Convert(st.RootNode(), src), nil
}

// ParseString is Parse for callers holding a string.
func (p *Parser) ParseString(src string) (*Tree, error) {
	return p.Parse(context.Background(), []byte(src))
}

// parse runs one pooled tree-sitter parser over src. ctx is only checked
// before the parse starts: ParseCtx watches its context from a goroutine
// that may flag the parser as cancelled after the parse returned, and a
// flagged parser would poison the pool.
func (p *Parser) parse(ctx context.Context, old *sitter.Tree, src []byte) (*sitter.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("syntax: parse: %w", err)
	}
	sp := p.pool.Get().(*sitter.Parser)

	st, err := sp.ParseCtx(context.Background(), old, src)
	if err != nil {
		sp.Close()
		return nil, fmt.Errorf("syntax: parse: %w", err)
	}
	sp.Reset()
	p.pool.Put(sp)
	if st == nil {
		return nil, ErrNoParse
	}
	return st, nil
}

// Convert copies the named, non-extra nodes under root into an arena Tree.
// Anonymous tokens (punctuation, keywords) and extras (comments) are
// dropped, so matching and walking only see the nodes that carry meaning.
func Convert(root *sitter.Node, src []byte) *Tree {
	b := NewBuilder(src)
	b.Open(root.Type(), int(root.StartByte()), int(root.EndByte()))
	convertChildren(b, root)
	b.Close()
	// MISSING tokens are anonymous and never reach the arena.
	if root.HasError() {
		b.MarkError()
	}
	return b.Tree()
}

func convertChildren(b *Builder, n *sitter.Node) {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil || child.IsExtra() {
			continue
		}
		if !child.IsNamed() {
			// ERROR recovery may hang named nodes below anonymous ones.
			convertChildren(b, child)
			continue
		}
		from, to := int(child.StartByte()), int(child.EndByte())
		if child.IsMissing() {
			b.OpenMissing(child.Type(), from, to)
		} else {
			b.Open(child.Type(), from, to)
		}
		convertChildren(b, child)
		b.Close()
	}
}

// Document keeps the previous tree-sitter tree of one cell so that each
// update is an incremental reparse. A Document is not safe for concurrent
// use.
type Document struct {
	parser *Parser
	src    []byte
	st     *sitter.Tree
	tree   *Tree
}

// NewDocument starts an empty document.
func (p *Parser) NewDocument() *Document {
	return &Document{parser: p}
}

// Tree returns the tree of the last successful Update, or nil.
func (d *Document) Tree() *Tree { return d.tree }

// Source returns the text of the last successful Update.
func (d *Document) Source() []byte { return d.src }

// Update replaces the document text and reparses it, reusing the previous
// tree-sitter tree for the unchanged prefix and suffix.
func (d *Document) Update(ctx context.Context, src []byte) (*Tree, error) {
	src = bytes.Clone(src)
	var old *sitter.Tree
	if d.st != nil {
		if bytes.Equal(d.src, src) && d.tree != nil {
			return d.tree, nil
		}
		d.st.Edit(computeEdit(d.src, src))
		old = d.st
	}
	st, err := d.parser.parse(ctx, old, src)
	if err != nil {
		return nil, err
	}
	if d.st != nil {
		d.st.Close()
	}
	d.st = st
	d.src = src
	d.tree = Convert(st.RootNode(), src)
	return d.tree, nil
}

// Close releases the retained tree-sitter tree.
func (d *Document) Close() {
	if d.st != nil {
		d.st.Close()
		d.st = nil
	}
}

// computeEdit describes the change from old to cur as one replaced span
// between their common prefix and common suffix.
func computeEdit(old, cur []byte) sitter.EditInput {
	prefix := 0
	for prefix < len(old) && prefix < len(cur) && old[prefix] == cur[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(cur)-prefix &&
		old[len(old)-1-suffix] == cur[len(cur)-1-suffix] {
		suffix++
	}
	oldEnd := len(old) - suffix
	newEnd := len(cur) - suffix
	return sitter.EditInput{
		StartIndex:  uint32(prefix),
		OldEndIndex: uint32(oldEnd),
		NewEndIndex: uint32(newEnd),
		StartPoint:  pointAt(old, prefix),
		OldEndPoint: pointAt(old, oldEnd),
		NewEndPoint: pointAt(cur, newEnd),
	}
}

func pointAt(src []byte, offset int) sitter.Point {
	var p sitter.Point
	for _, c := range src[:offset] {
		if c == '\n' {
			p.Row++
			p.Column = 0
		} else {
			p.Column++
		}
	}
	return p
}
