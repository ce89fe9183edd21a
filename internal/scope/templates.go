package scope

import (
	"log/slog"
	"sync"

	"github.com/jward/cellscope/internal/syntax"
	t "github.com/jward/cellscope/internal/template"
)

// Each template is written in the position its construct takes in real
// code, so the grammar decides the wrappers.
var (
	paramDefault   = t.New(t.As("param"), " = ", t.As("value")).In("function f(", ") end")
	kwParamDefault = t.New(t.As("param"), " = ", t.As("value")).In("function f(; ", ") end")
	paramTyped     = t.New(t.As("param"), "::", t.As("type")).In("function f(", ") end")
	paramTypeOnly  = t.New("::", t.As("type")).In("function f(", ") end")
	paramSplat     = t.New(t.As("param"), "...").In("function f(", ") end")
	kwParamSplat   = t.New(t.As("param"), "...").In("function f(; ", ") end")

	callKeyword     = t.New(t.As("name", t.Identifier()), " = ", t.As("value")).In("f(", ")")
	callKeywordSemi = t.New(t.As("name", t.Identifier()), " = ", t.As("value")).In("f(; ", ")")
	namedTupleField = t.New(t.As("name", t.Identifier()), " = ", t.As("value")).In("(", ",)")

	forIn     = t.New(t.As("target"), " in ", t.As("iter")).In("for ", "\nend")
	forEq     = t.New(t.As("target"), " = ", t.As("iter")).In("for ", "\nend")
	forElem   = t.New(t.As("target"), " ∈ ", t.As("iter")).In("for ", "\nend")
	clauseIn  = t.New(t.As("target"), " in ", t.As("iter")).In("[1 for ", "]")
	clauseEq  = t.New(t.As("target"), " = ", t.As("iter")).In("[1 for ", "]")
	clauseEl  = t.New(t.As("target"), " ∈ ", t.As("iter")).In("[1 for ", "]")
	letAssign = t.New(t.As("lhs"), " = ", t.As("rhs")).In("let ", "\nend")

	importAlias    = t.New(t.As("path"), " as ", t.As("alias", t.Identifier())).In("import ", "\n")
	selectedImport = t.New(t.As("module"), ": ", t.Many("names")).In("import ", "\n")
	selectedAlias  = t.New(t.As("path"), " as ", t.As("alias", t.Identifier())).In("import A: ", "\n")
)

// typeHeads holds the head shapes of one type-definition keyword, tried in
// order. The nested ones describe a head on the left of "<:".
type typeHeads struct {
	super        *t.Template
	params       *t.Template
	name         *t.Template
	nestedParams *t.Template
	nestedName   *t.Template
}

func headTemplates(prefix, suffix string) typeHeads {
	params := t.New(t.As("name", t.Identifier()), "{", t.Many("params"), "}")
	name := t.New(t.As("name", t.Identifier()))
	return typeHeads{
		super:        t.New(t.As("head"), " <: ", t.As("super")).In(prefix, suffix),
		params:       params.In(prefix, suffix),
		name:         name.In(prefix, suffix),
		nestedParams: params.In(prefix, " <: Any"+suffix),
		nestedName:   name.In(prefix, " <: Any"+suffix),
	}
}

var (
	structHeads    = headTemplates("struct ", "\nend")
	abstractHeads  = headTemplates("abstract type ", " end")
	primitiveHeads = headTemplates("primitive type ", " 8 end")
)

// walkerTemplates lists every template the walker uses, for the test that
// compiles them all against the real grammar.
func walkerTemplates() map[string]*t.Template {
	all := map[string]*t.Template{
		"paramDefault":    paramDefault,
		"kwParamDefault":  kwParamDefault,
		"paramTyped":      paramTyped,
		"paramTypeOnly":   paramTypeOnly,
		"paramSplat":      paramSplat,
		"kwParamSplat":    kwParamSplat,
		"callKeyword":     callKeyword,
		"callKeywordSemi": callKeywordSemi,
		"namedTupleField": namedTupleField,
		"forIn":           forIn,
		"forEq":           forEq,
		"forElem":         forElem,
		"clauseIn":        clauseIn,
		"clauseEq":        clauseEq,
		"clauseEl":        clauseEl,
		"letAssign":       letAssign,
		"importAlias":     importAlias,
		"selectedImport":  selectedImport,
		"selectedAlias":   selectedAlias,
	}
	for prefix, heads := range map[string]typeHeads{"struct": structHeads, "abstract": abstractHeads, "primitive": primitiveHeads} {
		all[prefix+".super"] = heads.super
		all[prefix+".params"] = heads.params
		all[prefix+".name"] = heads.name
		all[prefix+".nestedParams"] = heads.nestedParams
		all[prefix+".nestedName"] = heads.nestedName
	}
	return all
}

// broken remembers templates that failed to compile, so each is reported
// once.
var broken sync.Map // *t.Template -> struct{}

// match matches tmpl against n. A template that does not compile is logged
// once and then never matches, so the construct it describes degrades to
// the walker's fallback instead of failing the whole cell.
func (w *walker) match(tmpl *t.Template, n syntax.Node) t.Match {
	if n.IsZero() {
		return nil
	}
	if _, err := tmpl.Compile(); err != nil {
		if _, seen := broken.LoadOrStore(tmpl, struct{}{}); !seen {
			w.logger.Warn("scope.template", slog.String("template", tmpl.String()), slog.Any("error", err))
		}
		return nil
	}
	var log *slog.Logger
	if w.verbose {
		log = w.logger
	}
	return tmpl.MatchLogged(n.Cursor(), log)
}

// matchAny returns the first of tmpls that matches n.
func (w *walker) matchAny(n syntax.Node, tmpls ...*t.Template) t.Match {
	for _, tmpl := range tmpls {
		if m := w.match(tmpl, n); m != nil {
			return m
		}
	}
	return nil
}
