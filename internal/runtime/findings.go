package runtime

import "sort"

// Finding is one problem a rule script reported with report().
type Finding struct {
	Rule    string `json:"rule"`
	CellID  int64  `json:"cell_id"`
	Cell    string `json:"cell"`
	Path    string `json:"path,omitempty"`
	From    int    `json:"from"`
	To      int    `json:"to"`
	Message string `json:"message"`
}

func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		if a.Cell != b.Cell {
			return a.Cell < b.Cell
		}
		return a.From < b.From
	})
}
