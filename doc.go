// Package cellscope provides lexical scope analysis for notebooks of Julia
// cells, built on tree-sitter. Each cell is analysed on its own into the
// names it defines at top level, every usage of a name (resolved to the
// local binding it refers to, when there is one) and its block-scoped
// locals.
//
// # Pipeline
//
//  1. Parse: every cell keeps its tree-sitter tree, so an edit reparses
//     incrementally. The result is converted into an immutable arena tree.
//
//  2. Explore: a scope-aware walk of the tree, driven by pattern templates
//     compiled from Julia snippets, produces the cell's State. The State is
//     cached under the tree's fingerprint, so edits that leave the tree
//     unchanged reuse it.
//
// # Usage
//
//	e := cellscope.New()
//	defer e.Close()
//
//	ctx := context.Background()
//	_, err := e.SetCell(ctx, "a", []byte("x = 1"))
//	_, err = e.SetCell(ctx, "b", []byte("x = 2\nf(y) = x + y"))
//
//	loc, ok := e.Query().DefinitionAt("b", 16)
//	diags, err := e.Diagnostics("a")
//
// # Queries
//
// The [QueryBuilder] returned by [Engine.Query] provides:
//
//   - [QueryBuilder.DefinitionAt]: go-to-definition for a local name.
//   - [QueryBuilder.ReferencesAt]: every usage of the same binding.
//   - [QueryBuilder.DocLookup]: the name to show documentation for; locals
//     have none.
//
// # Diagnostics
//
// [Engine.Diagnostics] reports names defined by more than one enabled cell,
// each with a rename action and a disable action per conflicting cell.
// [Engine.Apply] performs either.
//
// # Rules
//
// The internal/runtime package runs Risor scripts over the analysis of a
// notebook to report further, user-defined diagnostics. The defaults live
// under scripts/rules.
package cellscope
