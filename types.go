package cellscope

import "github.com/jward/cellscope/internal/scope"

// Public aliases for the analysis types the Engine hands out. They are
// identical to the internal scope types; no conversion is needed.

type Range = scope.Range
type Definition = scope.Definition
type Usage = scope.Usage
type Local = scope.Local
type State = scope.State
