package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// outputResult writes result to the command's stdout in the selected format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: cmd.Name(),
		Error:   err.Error(),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// formatCellsText prints one row per cell.
func formatCellsText(w io.Writer, cells []CLICell) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CELL\tDEFINITIONS\tLOCALS\tUSAGES\tRESOLVED")
	for _, c := range cells {
		if !c.Available {
			fmt.Fprintf(tw, "%s\t(unavailable)\t\t\t\n", c.ID)
			continue
		}
		names := make([]string, len(c.Definitions))
		for i, d := range c.Definitions {
			names[i] = d.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
			c.ID, strings.Join(names, ","), len(c.Locals), c.Usages, c.Resolved)
	}
	tw.Flush()
}

// formatLocationsText formats locations as "path:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintln(w, locationText(loc))
	}
}

func locationText(loc CLILocation) string {
	where := loc.Path
	if where == "" {
		where = loc.Cell
	}
	return fmt.Sprintf("%s:%d:%d", where, loc.Line, loc.Col)
}

// formatCheckText prints diagnostics, then rule findings, one per line.
func formatCheckText(w io.Writer, check CLICheck) {
	for _, d := range check.Diagnostics {
		fmt.Fprintf(w, "%s: %s\n", locationText(d.Location), d.Message)
		for _, a := range d.Actions {
			fmt.Fprintf(w, "  fix: %s\n", a.Title)
		}
	}
	for _, f := range check.Findings {
		fmt.Fprintf(w, "%s: %s: %s\n", locationText(f.Location), f.Rule, f.Message)
	}
}

// formatUpdateText prints one watch re-analysis.
func formatUpdateText(w io.Writer, u CLIUpdate) {
	if u.Error != "" {
		fmt.Fprintf(w, "%s: error: %s\n", u.Cell, u.Error)
		return
	}
	state := "recomputed"
	if u.Reused {
		state = "reused"
	}
	fmt.Fprintf(w, "%s: %s, %d definition(s), %d diagnostic(s)\n",
		u.Cell, state, u.Definitions, u.Diagnostics)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLICell:
		formatCellsText(w, v)
	case []CLILocation:
		formatLocationsText(w, v)
	case *CLILocation:
		formatLocationsText(w, []CLILocation{*v})
	case *CLIDoc:
		fmt.Fprintln(w, v.Name)
	case CLICheck:
		formatCheckText(w, v)
	case CLIRename:
		if v.Written {
			fmt.Fprintf(w, "Wrote %s\n", v.Path)
		} else {
			fmt.Fprint(w, v.Source)
		}
	case CLIIndex:
		fmt.Fprintf(w, "Indexed %d cell(s), %d unchanged\n", len(v.Indexed), len(v.Unchanged))
		fmt.Fprintf(w, "Database: %s\n", v.Database)
	case CLIUpdate:
		formatUpdateText(w, v)
	case nil:
		// No output for nil results (e.g., definition of a free name).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
