package store

import "time"

// Snapshot domain types. Offsets are byte offsets into the cell source;
// ranges are half-open.

type Cell struct {
	ID          int64
	Name        string
	Path        string
	Hash        string
	Disabled    bool
	LastIndexed time.Time
}

type Definition struct {
	ID     int64
	CellID int64
	Name   string
	From   int
	To     int
}

// Usage is one occurrence of a name. DefFrom and DefTo are nil when the
// name is free in its cell.
type Usage struct {
	ID      int64
	CellID  int64
	Name    string
	From    int
	To      int
	DefFrom *int
	DefTo   *int
}

// Resolved reports whether u refers to a binding of its cell.
func (u *Usage) Resolved() bool { return u.DefFrom != nil }

type Local struct {
	ID        int64
	CellID    int64
	Name      string
	DefFrom   int
	DefTo     int
	ValidFrom int
	ValidTo   int
}
