package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/cellscope"
)

var (
	flagFormat   string
	flagLogLevel string
	flagConfig   string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// Set up by the root command before any subcommand runs.
var (
	cfg    *cellscope.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cellscope",
	Short:         "Lexical scope analysis for Julia notebooks",
	Long:          "Cellscope analyses Julia notebook cells with tree-sitter: top-level definitions, local bindings, go-to-definition and duplicate global diagnostics.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		errorHandled = false
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		return setup(cmd)
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (default: from config, else warn)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: "+cellscope.ConfigFile+" in the working directory)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(referencesCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
}

// setup loads the configuration and builds the stderr logger. Flags
// override file values.
func setup(cmd *cobra.Command) error {
	if flagConfig != "" {
		cfg = cellscope.LoadConfigFile(flagConfig)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting cwd: %w", err)
		}
		cfg = cellscope.LoadConfig(cwd)
	}

	level := cfg.EffectiveLogLevel()
	if flagLogLevel != "" {
		l, ok := cellscope.ParseLevel(flagLogLevel)
		if !ok {
			return fmt.Errorf("invalid log level %q: must be debug, info, warn or error", flagLogLevel)
		}
		level = l
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// openEngine loads paths as the cells of a notebook, in order. Files that
// fail to load are logged and skipped; it is an error only when none load.
func openEngine(ctx context.Context, paths []string) (*cellscope.Engine, error) {
	e := cellscope.New(cellscope.WithLogger(logger), cellscope.WithConfig(cfg))
	if err := e.LoadFiles(ctx, paths); err != nil {
		if len(e.Cells()) == 0 {
			e.Close()
			return nil, err
		}
		logger.Warn("cli.load", "error", err)
	}
	return e, nil
}

// withTarget returns the notebook paths for a command about target:
// notebook as given, with target prepended unless it is among them.
func withTarget(target string, notebook []string) []string {
	clean := filepath.Clean(target)
	for _, p := range notebook {
		if filepath.Clean(p) == clean {
			return notebook
		}
	}
	return append([]string{target}, notebook...)
}
