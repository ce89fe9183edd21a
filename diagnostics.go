package cellscope

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ActionKind identifies a fix offered by a Diagnostic.
type ActionKind string

const (
	// ActionRename renames the definition and its usages in the
	// diagnosed cell.
	ActionRename ActionKind = "rename"
	// ActionDisable deactivates the other cell defining the name.
	ActionDisable ActionKind = "disable"
)

// Action is one fix of a Diagnostic.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Title string     `json:"title"`
	// Cell is the cell the action changes.
	Cell string `json:"cell"`
	// Name and NewName are set for renames.
	Name    string `json:"name,omitempty"`
	NewName string `json:"new_name,omitempty"`
}

// Diagnostic reports a top-level name of Cell that other enabled cells
// define too.
type Diagnostic struct {
	Cell     string   `json:"cell"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
	Message  string   `json:"message"`
	Others   []string `json:"others"`
	Actions  []Action `json:"actions"`
}

// Diagnostics returns the duplicate-definition diagnostics of cell id, in
// name order. Disabled cells and cells whose analysis is unavailable are
// ignored, on either side.
func (e *Engine) Diagnostics(id string) ([]Diagnostic, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.lookup(id)
	if !ok {
		return nil, fmt.Errorf("cellscope: diagnostics %s: %w", id, ErrUnknownCell)
	}
	st := c.state()
	if c.disabled || st.Unavailable() {
		return nil, nil
	}

	var out []Diagnostic
	for _, name := range st.Names() {
		var others []string
		for _, otherID := range e.order {
			other := e.cells[otherID]
			if otherID == id || other.disabled {
				continue
			}
			ost := other.state()
			if ost.Unavailable() {
				continue
			}
			if _, ok := ost.Definition(name); ok {
				others = append(others, otherID)
			}
		}
		if len(others) == 0 {
			continue
		}

		def, _ := st.Definition(name)
		newName := e.freeName(id, name)
		actions := []Action{{
			Kind:    ActionRename,
			Title:   fmt.Sprintf("Rename %s to %s", name, newName),
			Cell:    id,
			Name:    name,
			NewName: newName,
		}}
		for _, otherID := range others {
			actions = append(actions, Action{
				Kind:  ActionDisable,
				Title: fmt.Sprintf("Disable cell %s", otherID),
				Cell:  otherID,
			})
		}
		out = append(out, Diagnostic{
			Cell:     id,
			Name:     name,
			Location: newLocation(id, c.doc.Source(), def.Range),
			Message:  fmt.Sprintf("Multiple definitions for %s; combine them or remove all but one", name),
			Others:   others,
			Actions:  actions,
		})
	}
	return out, nil
}

// AllDiagnostics returns the diagnostics of every cell in notebook order.
func (e *Engine) AllDiagnostics() []Diagnostic {
	var out []Diagnostic
	for _, id := range e.Cells() {
		diags, err := e.Diagnostics(id)
		if err != nil {
			// Removed concurrently.
			continue
		}
		out = append(out, diags...)
	}
	return out
}

// freeName returns the first of name2, name3, ... (starting at the
// configured suffix) that no cell defines and cell id does not use.
// Callers hold e.mu.
func (e *Engine) freeName(id, name string) string {
	taken := map[string]bool{}
	for _, c := range e.cells {
		st := c.state()
		for n := range st.Definitions {
			taken[n] = true
		}
		if c.id == id {
			for _, u := range st.Usages {
				taken[u.Name] = true
			}
		}
	}
	for i := e.config.EffectiveRenameSuffixStart(); ; i++ {
		candidate := name + strconv.Itoa(i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// Apply performs a diagnostic action.
func (e *Engine) Apply(ctx context.Context, a Action) error {
	switch a.Kind {
	case ActionRename:
		return e.ApplyRename(ctx, a.Cell, a.Name, a.NewName)
	case ActionDisable:
		return e.ApplyDisable(a.Cell)
	}
	return fmt.Errorf("cellscope: apply: unknown action %q", a.Kind)
}

// ApplyRename renames the top-level name in cell id: its definition sites
// and every usage that refers to it, leaving locals of the same name alone.
// It does nothing when the analysis of the cell is unavailable.
func (e *Engine) ApplyRename(ctx context.Context, id, name, newName string) error {
	if newName == "" || newName == name {
		return fmt.Errorf("cellscope: rename %s: invalid new name %q", name, newName)
	}

	e.mu.RLock()
	c, ok := e.lookup(id)
	if !ok {
		e.mu.RUnlock()
		return fmt.Errorf("cellscope: rename %s: %w", id, ErrUnknownCell)
	}
	st := c.state()
	src := c.doc.Source()
	e.mu.RUnlock()
	if st.Unavailable() {
		return nil
	}

	seen := map[Range]bool{}
	var sites []Range
	add := func(r Range) {
		if !seen[r] {
			seen[r] = true
			sites = append(sites, r)
		}
	}
	if def, ok := st.Definition(name); ok {
		add(def.Range)
	}
	for _, u := range st.UsagesOf(name) {
		if _, local := st.LocalFor(u); !local {
			add(u.Range)
		}
	}
	if len(sites) == 0 {
		return nil
	}

	// Edit back to front so earlier offsets stay valid.
	slices.SortFunc(sites, func(a, b Range) int { return b.From - a.From })
	out := []byte(string(src))
	for _, r := range sites {
		repl := newName
		if strings.HasPrefix(name, "@") && out[r.From] != '@' {
			// `macro m(...)` names the macro without its sigil.
			repl = strings.TrimPrefix(newName, "@")
		}
		out = append(out[:r.From], append([]byte(repl), out[r.To:]...)...)
	}

	if _, err := e.SetCell(ctx, id, out); err != nil {
		return fmt.Errorf("cellscope: rename %s: %w", name, err)
	}
	return nil
}

// ApplyDisable deactivates cell id.
func (e *Engine) ApplyDisable(id string) error {
	return e.SetDisabled(id, true)
}
