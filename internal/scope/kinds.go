package scope

// Node kinds of the tree-sitter Julia grammar the walker dispatches on.
// Kinds not listed here are transparent.
const (
	kindIdentifier       = "identifier"
	kindOperator         = "operator"
	kindMacroIdentifier  = "macro_identifier"
	kindFieldExpression  = "field_expression"
	kindIndexExpression  = "index_expression"
	kindCallExpression   = "call_expression"
	kindArgumentList     = "argument_list"
	kindTupleExpression  = "tuple_expression"
	kindTypedExpression  = "typed_expression"
	kindWhereExpression  = "where_expression"
	kindCurlyExpression  = "curly_expression"
	kindSignature        = "signature"
	kindAssignment       = "assignment"
	kindCompoundAssign   = "compound_assignment_expression"
	kindFunction         = "function_definition"
	kindShortFunction    = "short_function_definition"
	kindMacro            = "macro_definition"
	kindArrowFunction    = "arrow_function_expression"
	kindDoClause         = "do_clause"
	kindStruct           = "struct_definition"
	kindAbstract         = "abstract_definition"
	kindPrimitive        = "primitive_definition"
	kindModule           = "module_definition"
	kindLet              = "let_statement"
	kindFor              = "for_statement"
	kindForBinding       = "for_binding"
	kindForClause        = "for_clause"
	kindIfClause         = "if_clause"
	kindWhile            = "while_statement"
	kindTry              = "try_statement"
	kindCatch            = "catch_clause"
	kindFinally          = "finally_clause"
	kindElse             = "else_clause"
	kindComprehension    = "comprehension_expression"
	kindTypedComp        = "typed_comprehension_expression"
	kindGenerator        = "generator"
	kindGeneratorExpr    = "generator_expression"
	kindQuoteStatement   = "quote_statement"
	kindQuoteExpression  = "quote_expression"
	kindInterpolation    = "interpolation_expression"
	kindImport           = "import_statement"
	kindUsing            = "using_statement"
	kindGlobal           = "global_statement"
	kindLocal            = "local_statement"
	kindPrefixedString   = "prefixed_string_literal"
	kindPrefixedCommand  = "prefixed_command_literal"
	kindParenthesized    = "parenthesized_expression"
	kindNamedArgument    = "named_argument"
	kindBlock            = "block"
)

// anonymousParams are the kinds an anonymous function's parameter list can
// take when there is no callee: `function (x, y)`.
var anonymousParams = map[string]bool{
	kindArgumentList:    true,
	kindTupleExpression: true,
	kindParenthesized:   true,
}
