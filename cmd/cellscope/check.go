package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/cellscope"
	"github.com/jward/cellscope/internal/runtime"
	"github.com/jward/cellscope/internal/store"
	"github.com/jward/cellscope/scripts"
)

var (
	flagRules   string
	flagNoRules bool
)

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Report duplicate globals and rule findings",
	Long:  "Reports names defined by more than one cell, with their fixes, then runs the rule scripts (the embedded defaults, or every .risor file of --rules) over the notebook.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&flagRules, "rules", "", "load rule scripts from this directory instead of the embedded defaults")
	checkCmd.Flags().BoolVar(&flagNoRules, "no-rules", false, "only report duplicate definitions")
}

func runCheck(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), args)
	if err != nil {
		return outputError(cmd, err)
	}
	defer e.Close()

	check := CLICheck{Diagnostics: []CLIDiagnostic{}, Findings: []CLIFinding{}}
	for _, d := range e.AllDiagnostics() {
		check.Diagnostics = append(check.Diagnostics, toCLIDiagnostic(e, d))
	}

	var ruleErr error
	if !flagNoRules {
		rt := newRuleRuntime(snapshot(e))
		ruleErr = rt.RunRules(cmd.Context())
		for _, f := range rt.Findings() {
			check.Findings = append(check.Findings, toCLIFinding(e, f))
		}
	}

	if err := outputResult(cmd, CLIResult{Command: "check", Results: check}); err != nil {
		return err
	}
	if ruleErr != nil {
		// Findings of the rules that ran are already printed.
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", ruleErr)
		errorHandled = true
		return ruleErr
	}
	return nil
}

// newRuleRuntime returns a rule runtime over ds loading the --rules
// directory, the configured rules_dir, or the embedded defaults.
func newRuleRuntime(ds store.DataStore) *runtime.Runtime {
	dir := flagRules
	if dir == "" {
		dir = cfg.RulesDir
	}
	if dir != "" {
		return runtime.NewRuntime(ds, dir, runtime.WithLogger(logger))
	}
	return runtime.NewRuntime(ds, "", runtime.WithRuntimeFS(scripts.Rules()), runtime.WithLogger(logger))
}

// snapshot buffers the analysis of every cell of e, in notebook order.
func snapshot(e *cellscope.Engine) *store.BatchedStore {
	batch := store.NewBatchedStore()
	now := time.Now()
	for _, id := range e.Cells() {
		st, err := e.State(id)
		if err != nil {
			continue
		}
		src, _ := e.Source(id)
		batch.AddCell(store.Cell{
			Name:        id,
			Path:        e.Path(id),
			Hash:        store.ContentHash(src),
			Disabled:    e.Disabled(id),
			LastIndexed: now,
		}, st)
	}
	return batch
}

func toCLIDiagnostic(e *cellscope.Engine, d cellscope.Diagnostic) CLIDiagnostic {
	out := CLIDiagnostic{
		Location: *toCLILocation(e, d.Location),
		Name:     d.Name,
		Message:  d.Message,
		Others:   d.Others,
	}
	for _, a := range d.Actions {
		out.Actions = append(out.Actions, CLIAction{
			Kind:    string(a.Kind),
			Title:   a.Title,
			Cell:    a.Cell,
			NewName: a.NewName,
		})
	}
	return out
}

func toCLIFinding(e *cellscope.Engine, f runtime.Finding) CLIFinding {
	loc := CLILocation{Cell: f.Cell, Path: f.Path, From: f.From, To: f.To}
	if src, err := e.Source(f.Cell); err == nil {
		loc.Line, loc.Col = cellscope.LineCol(src, f.From)
	}
	return CLIFinding{Rule: f.Rule, Location: loc, Message: f.Message}
}

var flagWrite bool

var renameCmd = &cobra.Command{
	Use:   "rename <file> <name> <new-name> [notebook-file...]",
	Short: "Rename a top-level name of one cell",
	Long:  "Renames the definition of <name> in <file> and every usage that refers to it, leaving locals of the same name alone. Prints the new source unless --write is given.",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runRename,
}

func init() {
	renameCmd.Flags().BoolVarP(&flagWrite, "write", "w", false, "write the result back to <file>")
}

func runRename(cmd *cobra.Command, args []string) error {
	path, name, newName := args[0], args[1], args[2]
	e, err := openEngine(cmd.Context(), withTarget(path, args[3:]))
	if err != nil {
		return outputError(cmd, err)
	}
	defer e.Close()

	id := cellscope.CellID(path)
	if err := e.ApplyRename(cmd.Context(), id, name, newName); err != nil {
		return outputError(cmd, err)
	}
	src, err := e.Source(id)
	if err != nil {
		return outputError(cmd, err)
	}

	result := CLIRename{Cell: id, Path: path, Source: string(src)}
	if flagWrite {
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return outputError(cmd, fmt.Errorf("writing %s: %w", path, err))
		}
		result.Written = true
	}
	return outputResult(cmd, CLIResult{Command: "rename", Results: result})
}
