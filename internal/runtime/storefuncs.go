package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/cellscope/internal/store"
)

// --- Snapshot query bridge functions ---

// makeCellsFn creates "cells".
//
// cells() → [{id, name, path, hash, disabled}]
func makeCellsFn(ds store.DataStore) *object.Builtin {
	return object.NewBuiltin("cells", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("cells", 0, len(args))
		}
		cells, err := ds.Cells()
		if err != nil {
			return object.Errorf("cells: %v", err)
		}
		results := make([]object.Object, 0, len(cells))
		for _, c := range cells {
			results = append(results, cellToMap(c))
		}
		return object.NewList(results)
	})
}

// makeCellByNameFn creates "cell_by_name".
//
// cell_by_name(name) → {id, name, ...} or nil
func makeCellByNameFn(ds store.DataStore) *object.Builtin {
	return object.NewBuiltin("cell_by_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("cell_by_name", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("cell_by_name: %v", err)
		}
		c, err := ds.CellByName(name)
		if err != nil {
			return object.Errorf("cell_by_name: %v", err)
		}
		if c == nil {
			return object.Nil
		}
		return cellToMap(c)
	})
}

// makeDefinitionsFn creates "definitions".
//
// definitions(cell_id) → [{id, cell_id, name, from, to}]
func makeDefinitionsFn(ds store.DataStore) *object.Builtin {
	return object.NewBuiltin("definitions", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("definitions", 1, len(args))
		}
		cellID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("definitions: %v", err)
		}
		defs, err := ds.DefinitionsByCell(cellID)
		if err != nil {
			return object.Errorf("definitions: %v", err)
		}
		return definitionsToList(defs)
	})
}

// makeDefinitionsNamedFn creates "definitions_named", every cell's
// definition of one name.
//
// definitions_named(name) → [{id, cell_id, name, from, to}]
func makeDefinitionsNamedFn(ds store.DataStore) *object.Builtin {
	return object.NewBuiltin("definitions_named", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("definitions_named", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("definitions_named: %v", err)
		}
		defs, err := ds.DefinitionsByName(name)
		if err != nil {
			return object.Errorf("definitions_named: %v", err)
		}
		return definitionsToList(defs)
	})
}

// makeUsagesFn creates "usages". def_from and def_to are present only
// for resolved usages.
//
// usages(cell_id) → [{id, cell_id, name, from, to, resolved, def_from?, def_to?}]
func makeUsagesFn(ds store.DataStore) *object.Builtin {
	return object.NewBuiltin("usages", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("usages", 1, len(args))
		}
		cellID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("usages: %v", err)
		}
		usages, err := ds.UsagesByCell(cellID)
		if err != nil {
			return object.Errorf("usages: %v", err)
		}

		results := make([]object.Object, 0, len(usages))
		for _, u := range usages {
			m := map[string]object.Object{
				"id":       object.NewInt(u.ID),
				"cell_id":  object.NewInt(u.CellID),
				"name":     object.NewString(u.Name),
				"from":     object.NewInt(int64(u.From)),
				"to":       object.NewInt(int64(u.To)),
				"resolved": object.NewBool(u.Resolved()),
			}
			if u.DefFrom != nil {
				m["def_from"] = object.NewInt(int64(*u.DefFrom))
			}
			if u.DefTo != nil {
				m["def_to"] = object.NewInt(int64(*u.DefTo))
			}
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

// makeLocalsFn creates "locals".
//
// locals(cell_id) → [{id, cell_id, name, def_from, def_to, valid_from, valid_to}]
func makeLocalsFn(ds store.DataStore) *object.Builtin {
	return object.NewBuiltin("locals", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("locals", 1, len(args))
		}
		cellID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("locals: %v", err)
		}
		locals, err := ds.LocalsByCell(cellID)
		if err != nil {
			return object.Errorf("locals: %v", err)
		}

		results := make([]object.Object, 0, len(locals))
		for _, l := range locals {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(l.ID),
				"cell_id":    object.NewInt(l.CellID),
				"name":       object.NewString(l.Name),
				"def_from":   object.NewInt(int64(l.DefFrom)),
				"def_to":     object.NewInt(int64(l.DefTo)),
				"valid_from": object.NewInt(int64(l.ValidFrom)),
				"valid_to":   object.NewInt(int64(l.ValidTo)),
			}))
		}
		return object.NewList(results)
	})
}

// --- Reporting ---

// makeReportFn creates "report", which records a finding of rule.
// The message may instead be a map with a "message" key and optional
// "from"/"to" overrides.
//
// report(cell_id, from, to, message)
func makeReportFn(r *Runtime, rule string) *object.Builtin {
	return object.NewBuiltin("report", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 4 {
			return object.NewArgsError("report", 4, len(args))
		}
		cellID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("report: cell_id: %v", err)
		}
		from, err := toInt64(args[1])
		if err != nil {
			return object.Errorf("report: from: %v", err)
		}
		to, err := toInt64(args[2])
		if err != nil {
			return object.Errorf("report: to: %v", err)
		}
		f := Finding{Rule: rule, CellID: cellID, From: int(from), To: int(to)}

		switch msg := args[3].(type) {
		case *object.String:
			f.Message = msg.Value()
		case *object.Map:
			m, err := extractMap(msg)
			if err != nil {
				return object.Errorf("report: %v", err)
			}
			f.Message = getString(m, "message")
			if v, ok := getOptionalInt64(m, "from"); ok {
				f.From = int(v)
			}
			if v, ok := getOptionalInt64(m, "to"); ok {
				f.To = int(v)
			}
		default:
			return object.Errorf("report: message must be a string or map, got %s", args[3].Type())
		}
		if f.Message == "" {
			return object.Errorf("report: empty message")
		}

		c, err := cellByID(r.ds, cellID)
		if err != nil {
			return object.Errorf("report: %v", err)
		}
		if c == nil {
			return object.Errorf("report: unknown cell %d", cellID)
		}
		f.Cell, f.Path = c.Name, c.Path

		r.addFinding(f)
		return object.Nil
	})
}

func cellByID(ds store.DataStore, id int64) (*store.Cell, error) {
	cells, err := ds.Cells()
	if err != nil {
		return nil, err
	}
	for _, c := range cells {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

// --- Conversion helpers ---

func cellToMap(c *store.Cell) object.Object {
	return object.NewMap(map[string]object.Object{
		"id":       object.NewInt(c.ID),
		"name":     object.NewString(c.Name),
		"path":     object.NewString(c.Path),
		"hash":     object.NewString(c.Hash),
		"disabled": object.NewBool(c.Disabled),
	})
}

// definitionsToList converts definitions to a Risor list of maps.
func definitionsToList(defs []*store.Definition) object.Object {
	results := make([]object.Object, 0, len(defs))
	for _, d := range defs {
		results = append(results, object.NewMap(map[string]object.Object{
			"id":      object.NewInt(d.ID),
			"cell_id": object.NewInt(d.CellID),
			"name":    object.NewString(d.Name),
			"from":    object.NewInt(int64(d.From)),
			"to":      object.NewInt(int64(d.To)),
		}))
	}
	return object.NewList(results)
}

// extractMap converts a Risor map argument into a Go map of Risor objects.
func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map argument, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getOptionalInt64(m map[string]object.Object, key string) (int64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	if _, ok := v.(*object.NilType); ok {
		return 0, false
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
