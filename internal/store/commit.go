package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch writes all buffered cells of a BatchedStore to SQLite within
// a single transaction. A stored cell with the same name is replaced
// along with its rows. Fake (negative) cell IDs are remapped to the real
// IDs SQLite assigns, and the returned map records the mapping.
//
// Insert order respects FK dependencies:
//  1. Cells (replacing any stored cell of the same name)
//  2. Definitions, usages and locals (depend on cell_id)
func (s *Store) CommitBatch(batch *BatchedStore) (map[int64]int64, error) {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64, len(batch.cells))

	// 1. Cells
	for _, c := range batch.cells {
		var old int64
		switch err := tx.QueryRow("SELECT id FROM cells WHERE name = ?", c.Name).Scan(&old); err {
		case nil:
			if err := deleteCellsTx(tx, []int64{old}); err != nil {
				return nil, fmt.Errorf("commit batch: replace cell %q: %w", c.Name, err)
			}
		case sql.ErrNoRows:
		default:
			return nil, fmt.Errorf("commit batch: lookup cell %q: %w", c.Name, err)
		}
		realID, err := insertCell(tx, &c)
		if err != nil {
			return nil, fmt.Errorf("commit batch: cell %q: %w", c.Name, err)
		}
		fakeToReal[c.ID] = realID
	}

	// 2. Rows
	for _, d := range batch.definitions {
		d.CellID = fakeToReal[d.CellID]
		if _, err := insertDefinition(tx, &d); err != nil {
			return nil, fmt.Errorf("commit batch: definition %q: %w", d.Name, err)
		}
	}
	for _, u := range batch.usages {
		u.CellID = fakeToReal[u.CellID]
		if _, err := insertUsage(tx, &u); err != nil {
			return nil, fmt.Errorf("commit batch: usage %q: %w", u.Name, err)
		}
	}
	for _, l := range batch.locals {
		l.CellID = fakeToReal[l.CellID]
		if _, err := insertLocal(tx, &l); err != nil {
			return nil, fmt.Errorf("commit batch: local %q: %w", l.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return fakeToReal, nil
}
