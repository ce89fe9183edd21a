package store

// DataStore is the read side of a notebook snapshot. Both Store (SQLite)
// and BatchedStore (in memory, not yet committed) implement it, so rule
// scripts run the same way over a live notebook and an indexed one.
type DataStore interface {
	Cells() ([]*Cell, error)
	CellByName(name string) (*Cell, error)
	DefinitionsByCell(cellID int64) ([]*Definition, error)
	DefinitionsByName(name string) ([]*Definition, error)
	UsagesByCell(cellID int64) ([]*Usage, error)
	LocalsByCell(cellID int64) ([]*Local, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
