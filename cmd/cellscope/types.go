package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLICell is the analysis of one cell.
type CLICell struct {
	ID          string          `json:"id"`
	Path        string          `json:"path,omitempty"`
	Available   bool            `json:"available"`
	Definitions []CLIDefinition `json:"definitions"`
	Locals      []CLILocal      `json:"locals"`
	Usages      int             `json:"usages"`
	Resolved    int             `json:"resolved"`
}

// CLIDefinition is a top-level name of a cell.
type CLIDefinition struct {
	Name string `json:"name"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// CLILocal is a block-scoped binding.
type CLILocal struct {
	Name      string `json:"name"`
	Line      int    `json:"line"`
	Col       int    `json:"col"`
	ValidFrom int    `json:"valid_from"`
	ValidTo   int    `json:"valid_to"`
}

// CLILocation is a position in a cell. Line and Col are 1-based.
type CLILocation struct {
	Cell string `json:"cell"`
	Path string `json:"path,omitempty"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// CLIDoc is the name documentation is looked up for.
type CLIDoc struct {
	Name string `json:"name"`
}

// CLIAction is a fix offered by a diagnostic.
type CLIAction struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Cell    string `json:"cell"`
	NewName string `json:"new_name,omitempty"`
}

// CLIDiagnostic is a name defined by more than one cell.
type CLIDiagnostic struct {
	Location CLILocation `json:"location"`
	Name     string      `json:"name"`
	Message  string      `json:"message"`
	Others   []string    `json:"others"`
	Actions  []CLIAction `json:"actions"`
}

// CLIFinding is a problem reported by a rule script.
type CLIFinding struct {
	Rule     string      `json:"rule"`
	Location CLILocation `json:"location"`
	Message  string      `json:"message"`
}

// CLICheck is the output of check.
type CLICheck struct {
	Diagnostics []CLIDiagnostic `json:"diagnostics"`
	Findings    []CLIFinding    `json:"findings"`
}

// CLIRename is the output of rename.
type CLIRename struct {
	Cell    string `json:"cell"`
	Path    string `json:"path"`
	Written bool   `json:"written"`
	Source  string `json:"source"`
}

// CLIIndex is the output of index.
type CLIIndex struct {
	Database  string   `json:"database"`
	Indexed   []string `json:"indexed"`
	Unchanged []string `json:"unchanged"`
}

// CLIUpdate reports one re-analysis by watch.
type CLIUpdate struct {
	Cell        string `json:"cell"`
	Path        string `json:"path"`
	Reused      bool   `json:"reused"`
	Available   bool   `json:"available"`
	Definitions int    `json:"definitions"`
	Diagnostics int    `json:"diagnostics"`
	Error       string `json:"error,omitempty"`
}
