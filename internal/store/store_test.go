package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestCell is a helper that inserts a cell and returns it with ID set.
func insertTestCell(t *testing.T, s *Store, name string) *Cell {
	t.Helper()
	c := &Cell{Name: name, Path: name + ".jl", Hash: "abc123", LastIndexed: time.Now().Truncate(time.Second)}
	id, err := s.InsertCell(c)
	require.NoError(t, err)
	require.Positive(t, id)
	return c
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"cells", "definitions", "usages", "locals"} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestNewStore_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := NewStore("/nonexistent/dir/db.sqlite")
	require.Error(t, err)
}

// =============================================================================
// Cells
// =============================================================================

func TestCells_InsertAndLookup(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestCell(t, s, "a")
	insertTestCell(t, s, "b")

	got, err := s.CellByName("a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "a.jl", got.Path)
	assert.Equal(t, "abc123", got.Hash)
	assert.False(t, got.Disabled)

	missing, err := s.CellByName("zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)

	cells, err := s.Cells()
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "a", cells[0].Name)
	assert.Equal(t, "b", cells[1].Name)
}

func TestCells_NameIsUnique(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestCell(t, s, "a")
	_, err := s.InsertCell(&Cell{Name: "a"})
	require.Error(t, err)
}

func TestUnchanged(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestCell(t, s, "a")

	same, err := s.Unchanged("a", "abc123")
	require.NoError(t, err)
	assert.True(t, same)

	same, err = s.Unchanged("a", "other")
	require.NoError(t, err)
	assert.False(t, same)

	same, err = s.Unchanged("new", "abc123")
	require.NoError(t, err)
	assert.False(t, same)
}

// =============================================================================
// Rows
// =============================================================================

func TestDefinitions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestCell(t, s, "a")
	b := insertTestCell(t, s, "b")

	_, err := s.InsertDefinition(&Definition{CellID: a.ID, Name: "y", From: 10, To: 11})
	require.NoError(t, err)
	_, err = s.InsertDefinition(&Definition{CellID: a.ID, Name: "x", From: 0, To: 1})
	require.NoError(t, err)
	_, err = s.InsertDefinition(&Definition{CellID: b.ID, Name: "x", From: 4, To: 5})
	require.NoError(t, err)

	defs, err := s.DefinitionsByCell(a.ID)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "x", defs[0].Name, "ordered by offset")

	byName, err := s.DefinitionsByName("x")
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, a.ID, byName[0].CellID)
	assert.Equal(t, b.ID, byName[1].CellID)
}

func TestDefinitions_RequireCell(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := s.InsertDefinition(&Definition{CellID: 999, Name: "x"})
	require.Error(t, err, "foreign keys are enforced")
}

func TestUsages_OptionalDefinition(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestCell(t, s, "a")

	_, err := s.InsertUsage(&Usage{CellID: a.ID, Name: "y", From: 8, To: 9})
	require.NoError(t, err)
	_, err = s.InsertUsage(&Usage{CellID: a.ID, Name: "x", From: 2, To: 3, DefFrom: ptr(0), DefTo: ptr(1)})
	require.NoError(t, err)

	usages, err := s.UsagesByCell(a.ID)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	assert.Equal(t, "x", usages[0].Name)
	assert.True(t, usages[0].Resolved())
	assert.Equal(t, 0, *usages[0].DefFrom)
	assert.Equal(t, 1, *usages[0].DefTo)
	assert.False(t, usages[1].Resolved())
	assert.Nil(t, usages[1].DefTo)
}

func TestLocals(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestCell(t, s, "a")

	_, err := s.InsertLocal(&Local{CellID: a.ID, Name: "i", DefFrom: 4, DefTo: 5, ValidFrom: 0, ValidTo: 30})
	require.NoError(t, err)

	locals, err := s.LocalsByCell(a.ID)
	require.NoError(t, err)
	require.Len(t, locals, 1)
	assert.Equal(t, Local{ID: locals[0].ID, CellID: a.ID, Name: "i", DefFrom: 4, DefTo: 5, ValidFrom: 0, ValidTo: 30}, *locals[0])
}

func TestDeleteCellData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestCell(t, s, "a")
	b := insertTestCell(t, s, "b")
	for _, c := range []*Cell{a, b} {
		_, err := s.InsertDefinition(&Definition{CellID: c.ID, Name: "x", From: 0, To: 1})
		require.NoError(t, err)
		_, err = s.InsertUsage(&Usage{CellID: c.ID, Name: "x", From: 0, To: 1, DefFrom: ptr(0), DefTo: ptr(1)})
		require.NoError(t, err)
		_, err = s.InsertLocal(&Local{CellID: c.ID, Name: "i", DefFrom: 2, DefTo: 3, ValidTo: 9})
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteCellData(a.ID))
	require.NoError(t, s.DeleteCellData())

	gone, err := s.CellByName("a")
	require.NoError(t, err)
	assert.Nil(t, gone)

	defs, err := s.DefinitionsByName("x")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, b.ID, defs[0].CellID)

	usages, err := s.UsagesByCell(a.ID)
	require.NoError(t, err)
	assert.Empty(t, usages)
	locals, err := s.LocalsByCell(b.ID)
	require.NoError(t, err)
	assert.Len(t, locals, 1)
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	h := ContentHash([]byte("x = 1"))
	assert.Len(t, h, 16)
	assert.Equal(t, h, ContentHash([]byte("x = 1")))
	assert.NotEqual(t, h, ContentHash([]byte("x = 2")))
}
