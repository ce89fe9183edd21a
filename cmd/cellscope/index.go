package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/cellscope"
	"github.com/jward/cellscope/internal/store"
)

var (
	flagDB    string
	flagForce bool
)

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Write the analysis of notebook cells to SQLite",
	Long:  "Analyses each file as one cell and stores its definitions, usages and locals. Cells whose content hash matches the stored one are skipped.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&flagDB, "db", "", "database path (default: from config, else cellscope.db)")
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database and reindex from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	dbPath := flagDB
	if dbPath == "" {
		dbPath = cfg.EffectiveDB()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return outputError(cmd, fmt.Errorf("creating %s: %w", dir, err))
		}
	}

	// Handle --force: delete the DB file entirely.
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return outputError(cmd, fmt.Errorf("removing database for --force: %w", err))
		}
	}

	s, err := store.NewStore(dbPath)
	if err != nil {
		return outputError(cmd, fmt.Errorf("opening database: %w", err))
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return outputError(cmd, fmt.Errorf("migrating database: %w", err))
	}

	result := CLIIndex{Database: dbPath, Indexed: []string{}, Unchanged: []string{}}
	var changed []string
	for _, path := range args {
		src, err := os.ReadFile(path)
		if err != nil {
			return outputError(cmd, fmt.Errorf("reading %s: %w", path, err))
		}
		id := cellscope.CellID(path)
		same, err := s.Unchanged(id, store.ContentHash(src))
		if err != nil {
			return outputError(cmd, err)
		}
		if same {
			result.Unchanged = append(result.Unchanged, id)
			continue
		}
		changed = append(changed, path)
	}

	if len(changed) > 0 {
		e, err := openEngine(cmd.Context(), changed)
		if err != nil {
			return outputError(cmd, err)
		}
		defer e.Close()

		if _, err := s.CommitBatch(snapshot(e)); err != nil {
			return outputError(cmd, fmt.Errorf("writing snapshot: %w", err))
		}
		result.Indexed = e.Cells()
	}

	logger.Info("cli.index",
		"indexed", len(result.Indexed),
		"unchanged", len(result.Unchanged),
		"duration", time.Since(start).Round(time.Millisecond))
	return outputResult(cmd, CLIResult{Command: "index", Results: result})
}
