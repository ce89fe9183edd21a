// Package store keeps snapshots of notebook analyses in SQLite: one row
// per cell, plus its definitions, usages and locals.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the snapshot tables.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS cells (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL UNIQUE,
  path            TEXT,
  hash            TEXT,
  disabled        BOOLEAN DEFAULT FALSE,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS definitions (
  id              INTEGER PRIMARY KEY,
  cell_id         INTEGER NOT NULL REFERENCES cells(id),
  name            TEXT NOT NULL,
  start_offset    INTEGER NOT NULL,
  end_offset      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usages (
  id              INTEGER PRIMARY KEY,
  cell_id         INTEGER NOT NULL REFERENCES cells(id),
  name            TEXT NOT NULL,
  start_offset    INTEGER NOT NULL,
  end_offset      INTEGER NOT NULL,
  def_start       INTEGER,
  def_end         INTEGER
);

CREATE TABLE IF NOT EXISTS locals (
  id              INTEGER PRIMARY KEY,
  cell_id         INTEGER NOT NULL REFERENCES cells(id),
  name            TEXT NOT NULL,
  def_start       INTEGER NOT NULL,
  def_end         INTEGER NOT NULL,
  valid_start     INTEGER NOT NULL,
  valid_end       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_definitions_cell ON definitions(cell_id);
CREATE INDEX IF NOT EXISTS idx_definitions_name ON definitions(name);
CREATE INDEX IF NOT EXISTS idx_usages_cell ON usages(cell_id);
CREATE INDEX IF NOT EXISTS idx_usages_name ON usages(name);
CREATE INDEX IF NOT EXISTS idx_locals_cell ON locals(cell_id);
`

// DeleteCellData transactionally removes a cell and everything recorded
// for it. Child tables go first to respect FK constraints.
func (s *Store) DeleteCellData(cellIDs ...int64) error {
	if len(cellIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := deleteCellsTx(tx, cellIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteCellsTx(tx *sql.Tx, cellIDs []int64) error {
	in := placeholderList(len(cellIDs))
	args := int64sToArgs(cellIDs)
	for _, table := range []string{"locals", "usages", "definitions"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE cell_id IN ("+in+")", args...); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM cells WHERE id IN ("+in+")", args...); err != nil {
		return fmt.Errorf("delete cells: %w", err)
	}
	return nil
}
