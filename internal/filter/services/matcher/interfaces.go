package matcher

import "github.com/haukened/rr-filter/internal/filter/repos/lists"

// ListCompiler produces compiled lists from specs.
type ListCompiler interface {
	CompileOrLoad(spec lists.Spec) (*lists.Compiled, error)
}

// SetProvider hands out the list set currently in effect.
type SetProvider interface {
	Current() *Set
}
