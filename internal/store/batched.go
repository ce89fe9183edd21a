package store

import (
	"sync"

	"github.com/jward/cellscope/internal/scope"
)

// BatchedStore buffers a snapshot in memory using fake (negative) cell IDs.
// It implements DataStore over its own buffer, so rules can run on a
// notebook that was never written to SQLite; CommitBatch persists it.
//
// Thread safety: the mutex protects fake ID allocation, slice appends and
// reads.
type BatchedStore struct {
	mu sync.Mutex

	cells       []Cell
	definitions []Definition
	usages      []Usage
	locals      []Local

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates an empty BatchedStore.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{nextFakeID: -1}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

// AddCell buffers c with the analysis st and returns its fake ID. An
// unavailable analysis gives a cell with no rows.
func (b *BatchedStore) AddCell(c Cell, st *scope.State) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.ID = b.allocFakeID()
	b.cells = append(b.cells, c)
	if st.Unavailable() {
		return c.ID
	}

	for _, name := range st.Names() {
		d := st.Definitions[name]
		b.definitions = append(b.definitions, Definition{CellID: c.ID, Name: name, From: d.Range.From, To: d.Range.To})
	}
	for _, u := range st.Usages {
		row := Usage{CellID: c.ID, Name: u.Name, From: u.Range.From, To: u.Range.To}
		if u.Definition != nil {
			from, to := u.Definition.From, u.Definition.To
			row.DefFrom, row.DefTo = &from, &to
		}
		b.usages = append(b.usages, row)
	}
	for _, l := range st.Locals {
		b.locals = append(b.locals, Local{
			CellID:    c.ID,
			Name:      l.Name,
			DefFrom:   l.Definition.From,
			DefTo:     l.Definition.To,
			ValidFrom: l.Validity.From,
			ValidTo:   l.Validity.To,
		})
	}
	return c.ID
}

// Len returns the number of buffered cells.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cells)
}

func (b *BatchedStore) Cells() ([]*Cell, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Cell, len(b.cells))
	for i := range b.cells {
		out[i] = &b.cells[i]
	}
	return out, nil
}

func (b *BatchedStore) CellByName(name string) (*Cell, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.cells {
		if b.cells[i].Name == name {
			return &b.cells[i], nil
		}
	}
	return nil, nil
}

func (b *BatchedStore) DefinitionsByCell(cellID int64) ([]*Definition, error) {
	return b.filterDefinitions(func(d *Definition) bool { return d.CellID == cellID }), nil
}

func (b *BatchedStore) DefinitionsByName(name string) ([]*Definition, error) {
	return b.filterDefinitions(func(d *Definition) bool { return d.Name == name }), nil
}

func (b *BatchedStore) filterDefinitions(keep func(*Definition) bool) []*Definition {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*Definition
	for i := range b.definitions {
		if keep(&b.definitions[i]) {
			out = append(out, &b.definitions[i])
		}
	}
	return out
}

func (b *BatchedStore) UsagesByCell(cellID int64) ([]*Usage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*Usage
	for i := range b.usages {
		if b.usages[i].CellID == cellID {
			out = append(out, &b.usages[i])
		}
	}
	return out, nil
}

func (b *BatchedStore) LocalsByCell(cellID int64) ([]*Local, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*Local
	for i := range b.locals {
		if b.locals[i].CellID == cellID {
			out = append(out, &b.locals[i])
		}
	}
	return out, nil
}
