// Package policy defines the pluggable system policies and the registry that
// resolves, caches, and replaces them.
package policy

import (
	"github.com/Masterminds/semver/v3"

	"github.com/modarc-dev/modarc/entities"
)

// Kind names a policy slot.
type Kind string

const (
	// KindVisibility selects the visibility policy slot.
	KindVisibility Kind = "visibility"
	// KindImportOverride selects the import override policy slot.
	KindImportOverride Kind = "import-override"
)

// VisibilityPolicy decides whether a module definition is exposed by searches.
// Hidden definitions stay materialized and reachable through direct references;
// only Find results skip them.
type VisibilityPolicy interface {
	Visible(def *entities.Definition) bool
}

// ImportOverridePolicy rewrites the import constraints of a module definition
// before resolution. Implementations return the effective constraint set; the
// input map must not be mutated.
type ImportOverridePolicy interface {
	Narrow(def *entities.Definition, imports map[string]*semver.Constraints) map[string]*semver.Constraints
}

// VisibleAll exposes every definition. It is the builtin visibility default.
type VisibleAll struct{}

// Visible always reports true.
func (VisibleAll) Visible(*entities.Definition) bool { return true }

// Passthrough leaves import constraints untouched. It is the builtin import
// override default.
type Passthrough struct{}

// Narrow returns the imports unchanged.
func (Passthrough) Narrow(_ *entities.Definition, imports map[string]*semver.Constraints) map[string]*semver.Constraints {
	return imports
}

var (
	_ VisibilityPolicy     = VisibleAll{}
	_ ImportOverridePolicy = Passthrough{}
)
