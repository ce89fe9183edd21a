package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/cellscope"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Analyse notebook cells",
	Long:  "Loads each file as one cell, in order, and prints its top-level definitions, locals and usage counts.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), args)
	if err != nil {
		return outputError(cmd, err)
	}
	defer e.Close()

	var cells []CLICell
	for _, id := range e.Cells() {
		c, err := analyzeCell(e, id)
		if err != nil {
			return outputError(cmd, err)
		}
		cells = append(cells, c)
	}
	return outputResult(cmd, CLIResult{Command: "analyze", Results: cells})
}

func analyzeCell(e *cellscope.Engine, id string) (CLICell, error) {
	st, err := e.State(id)
	if err != nil {
		return CLICell{}, err
	}
	src, err := e.Source(id)
	if err != nil {
		return CLICell{}, err
	}

	c := CLICell{
		ID:          id,
		Path:        e.Path(id),
		Available:   !st.Unavailable(),
		Definitions: []CLIDefinition{},
		Locals:      []CLILocal{},
	}
	for _, name := range st.Names() {
		d := st.Definitions[name]
		line, col := cellscope.LineCol(src, d.Range.From)
		c.Definitions = append(c.Definitions, CLIDefinition{
			Name: name, Line: line, Col: col, From: d.Range.From, To: d.Range.To,
		})
	}
	for _, l := range st.Locals {
		line, col := cellscope.LineCol(src, l.Definition.From)
		c.Locals = append(c.Locals, CLILocal{
			Name: l.Name, Line: line, Col: col, ValidFrom: l.Validity.From, ValidTo: l.Validity.To,
		})
	}
	for _, u := range st.Usages {
		c.Usages++
		if u.Resolved() {
			c.Resolved++
		}
	}
	return c, nil
}
