package store

import (
	"database/sql"
	"fmt"
)

// --- Cell operations ---

func (s *Store) InsertCell(c *Cell) (int64, error) {
	id, err := insertCell(s.db, c)
	if err != nil {
		return 0, fmt.Errorf("insert cell: %w", err)
	}
	c.ID = id
	return id, nil
}

func insertCell(x execer, c *Cell) (int64, error) {
	return insertID(x.Exec(
		"INSERT INTO cells (name, path, hash, disabled, last_indexed) VALUES (?, ?, ?, ?, ?)",
		c.Name, c.Path, c.Hash, c.Disabled, c.LastIndexed,
	))
}

const cellColumns = "id, name, path, hash, disabled, last_indexed"

func scanCell(scanner interface{ Scan(...any) error }) (*Cell, error) {
	c := &Cell{}
	var path, hash sql.NullString
	var indexed sql.NullTime
	if err := scanner.Scan(&c.ID, &c.Name, &path, &hash, &c.Disabled, &indexed); err != nil {
		return nil, err
	}
	c.Path, c.Hash, c.LastIndexed = path.String, hash.String, indexed.Time
	return c, nil
}

// CellByName returns the cell called name, or nil when there is none.
func (s *Store) CellByName(name string) (*Cell, error) {
	c, err := scanCell(s.db.QueryRow("SELECT "+cellColumns+" FROM cells WHERE name = ?", name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cell by name: %w", err)
	}
	return c, nil
}

// Cells returns every cell in insertion order.
func (s *Store) Cells() ([]*Cell, error) {
	rows, err := s.db.Query("SELECT " + cellColumns + " FROM cells ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("cells: %w", err)
	}
	defer rows.Close()
	var cells []*Cell
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// Unchanged reports whether cell name is stored with the given content
// hash.
func (s *Store) Unchanged(name, hash string) (bool, error) {
	c, err := s.CellByName(name)
	if err != nil {
		return false, err
	}
	return c != nil && c.Hash == hash, nil
}

// --- Definition operations ---

func (s *Store) InsertDefinition(d *Definition) (int64, error) {
	id, err := insertDefinition(s.db, d)
	if err != nil {
		return 0, fmt.Errorf("insert definition: %w", err)
	}
	d.ID = id
	return id, nil
}

func insertDefinition(x execer, d *Definition) (int64, error) {
	return insertID(x.Exec(
		"INSERT INTO definitions (cell_id, name, start_offset, end_offset) VALUES (?, ?, ?, ?)",
		d.CellID, d.Name, d.From, d.To,
	))
}

func (s *Store) queryDefinitions(query string, args ...any) ([]*Definition, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var defs []*Definition
	for rows.Next() {
		d := &Definition{}
		if err := rows.Scan(&d.ID, &d.CellID, &d.Name, &d.From, &d.To); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

const definitionColumns = "SELECT id, cell_id, name, start_offset, end_offset FROM definitions"

// DefinitionsByCell returns the definitions of a cell, ordered by offset.
func (s *Store) DefinitionsByCell(cellID int64) ([]*Definition, error) {
	defs, err := s.queryDefinitions(definitionColumns+" WHERE cell_id = ? ORDER BY start_offset", cellID)
	if err != nil {
		return nil, fmt.Errorf("definitions by cell: %w", err)
	}
	return defs, nil
}

// DefinitionsByName returns every cell's definition of name, in cell
// order.
func (s *Store) DefinitionsByName(name string) ([]*Definition, error) {
	defs, err := s.queryDefinitions(definitionColumns+" WHERE name = ? ORDER BY cell_id", name)
	if err != nil {
		return nil, fmt.Errorf("definitions by name: %w", err)
	}
	return defs, nil
}

// --- Usage operations ---

func (s *Store) InsertUsage(u *Usage) (int64, error) {
	id, err := insertUsage(s.db, u)
	if err != nil {
		return 0, fmt.Errorf("insert usage: %w", err)
	}
	u.ID = id
	return id, nil
}

func insertUsage(x execer, u *Usage) (int64, error) {
	return insertID(x.Exec(
		"INSERT INTO usages (cell_id, name, start_offset, end_offset, def_start, def_end) VALUES (?, ?, ?, ?, ?, ?)",
		u.CellID, u.Name, u.From, u.To, u.DefFrom, u.DefTo,
	))
}

// UsagesByCell returns the usages of a cell in document order.
func (s *Store) UsagesByCell(cellID int64) ([]*Usage, error) {
	rows, err := s.db.Query(
		`SELECT id, cell_id, name, start_offset, end_offset, def_start, def_end
		 FROM usages WHERE cell_id = ? ORDER BY start_offset, id`, cellID,
	)
	if err != nil {
		return nil, fmt.Errorf("usages by cell: %w", err)
	}
	defer rows.Close()
	var usages []*Usage
	for rows.Next() {
		u := &Usage{}
		var defFrom, defTo sql.NullInt64
		if err := rows.Scan(&u.ID, &u.CellID, &u.Name, &u.From, &u.To, &defFrom, &defTo); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		if defFrom.Valid && defTo.Valid {
			from, to := int(defFrom.Int64), int(defTo.Int64)
			u.DefFrom, u.DefTo = &from, &to
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

// --- Local operations ---

func (s *Store) InsertLocal(l *Local) (int64, error) {
	id, err := insertLocal(s.db, l)
	if err != nil {
		return 0, fmt.Errorf("insert local: %w", err)
	}
	l.ID = id
	return id, nil
}

func insertLocal(x execer, l *Local) (int64, error) {
	return insertID(x.Exec(
		`INSERT INTO locals (cell_id, name, def_start, def_end, valid_start, valid_end)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.CellID, l.Name, l.DefFrom, l.DefTo, l.ValidFrom, l.ValidTo,
	))
}

// LocalsByCell returns the locals of a cell, ordered by binding offset.
func (s *Store) LocalsByCell(cellID int64) ([]*Local, error) {
	rows, err := s.db.Query(
		`SELECT id, cell_id, name, def_start, def_end, valid_start, valid_end
		 FROM locals WHERE cell_id = ? ORDER BY def_start, id`, cellID,
	)
	if err != nil {
		return nil, fmt.Errorf("locals by cell: %w", err)
	}
	defer rows.Close()
	var locals []*Local
	for rows.Next() {
		l := &Local{}
		if err := rows.Scan(&l.ID, &l.CellID, &l.Name, &l.DefFrom, &l.DefTo, &l.ValidFrom, &l.ValidTo); err != nil {
			return nil, fmt.Errorf("scan local: %w", err)
		}
		locals = append(locals, l)
	}
	return locals, rows.Err()
}
