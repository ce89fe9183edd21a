package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/cellscope"
)

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col> [notebook-file...]",
	Short: "Find the local binding a name refers to",
	Long:  "Prints the binding site of the name at <line>:<col> (1-based) of <file>. Names that are global to the notebook print nothing.",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runDefinition,
}

var referencesCmd = &cobra.Command{
	Use:   "references <file> <line> <col> [notebook-file...]",
	Short: "List the usages of a local binding",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runReferences,
}

var docCmd = &cobra.Command{
	Use:   "doc <file> <line> <col> [notebook-file...]",
	Short: "Print the name to show documentation for",
	Long:  "Prints the identifier, qualified name, macro or callee at <line>:<col> (1-based) of <file>. Local names print nothing.",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runDoc,
}

// position is a cursor in one cell.
type position struct {
	cell   string
	offset int
}

// openAt loads the notebook for a positional query and resolves
// <file> <line> <col> to a cell offset.
func openAt(cmd *cobra.Command, args []string) (*cellscope.Engine, position, error) {
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return nil, position{}, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return nil, position{}, err
	}

	e, err := openEngine(cmd.Context(), withTarget(args[0], args[3:]))
	if err != nil {
		return nil, position{}, err
	}
	id := cellscope.CellID(args[0])
	src, err := e.Source(id)
	if err != nil {
		e.Close()
		return nil, position{}, err
	}
	offset := cellscope.Offset(src, line, col)
	if offset < 0 {
		e.Close()
		return nil, position{}, fmt.Errorf("line %d is past the end of %s", line, args[0])
	}
	return e, position{cell: id, offset: offset}, nil
}

func runDefinition(cmd *cobra.Command, args []string) error {
	e, pos, err := openAt(cmd, args)
	if err != nil {
		return outputError(cmd, err)
	}
	defer e.Close()

	result := CLIResult{Command: "definition"}
	if loc, ok := e.Query().DefinitionAt(pos.cell, pos.offset); ok {
		result.Results = toCLILocation(e, *loc)
	}
	return outputResult(cmd, result)
}

func runReferences(cmd *cobra.Command, args []string) error {
	e, pos, err := openAt(cmd, args)
	if err != nil {
		return outputError(cmd, err)
	}
	defer e.Close()

	locs := []CLILocation{}
	for _, loc := range e.Query().ReferencesAt(pos.cell, pos.offset) {
		locs = append(locs, *toCLILocation(e, loc))
	}
	return outputResult(cmd, CLIResult{Command: "references", Results: locs})
}

func runDoc(cmd *cobra.Command, args []string) error {
	e, pos, err := openAt(cmd, args)
	if err != nil {
		return outputError(cmd, err)
	}
	defer e.Close()

	result := CLIResult{Command: "doc"}
	if name, ok := e.Query().DocLookup(pos.cell, pos.offset); ok {
		result.Results = &CLIDoc{Name: name}
	}
	return outputResult(cmd, result)
}

func toCLILocation(e *cellscope.Engine, loc cellscope.Location) *CLILocation {
	return &CLILocation{
		Cell: loc.Cell,
		Path: e.Path(loc.Cell),
		Line: loc.Line,
		Col:  loc.Col,
		From: loc.Range.From,
		To:   loc.Range.To,
	}
}

// parseIntArg parses a positional argument as a 1-based number with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, value)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be at least 1", name, value)
	}
	return n, nil
}
