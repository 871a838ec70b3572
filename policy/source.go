package policy

import "os"

// Source supplies the configured policy names per kind. OverrideName is the
// user's explicit selection; DefaultName is the system-supplied fallback tried
// when no override resolves.
type Source interface {
	OverrideName(kind Kind) (string, bool)
	DefaultName(kind Kind) (string, bool)
}

// StaticSource serves policy names from maps. Useful for tests and embedders
// that carry their own configuration layer.
type StaticSource struct {
	Overrides map[Kind]string
	Defaults  map[Kind]string
}

// OverrideName returns the configured override for kind.
func (s StaticSource) OverrideName(kind Kind) (string, bool) {
	name, ok := s.Overrides[kind]
	return name, ok && name != ""
}

// DefaultName returns the configured default for kind.
func (s StaticSource) DefaultName(kind Kind) (string, bool) {
	name, ok := s.Defaults[kind]
	return name, ok && name != ""
}

// EnvSource reads policy overrides from the environment:
// MODARC_VISIBILITY_POLICY and MODARC_IMPORT_OVERRIDE_POLICY. It supplies no
// defaults.
type EnvSource struct{}

// OverrideName reads the environment variable for kind.
func (EnvSource) OverrideName(kind Kind) (string, bool) {
	name, ok := os.LookupEnv(envVar(kind))
	return name, ok && name != ""
}

// DefaultName always reports no default.
func (EnvSource) DefaultName(Kind) (string, bool) {
	return "", false
}

func envVar(kind Kind) string {
	switch kind {
	case KindImportOverride:
		return "MODARC_IMPORT_OVERRIDE_POLICY"
	default:
		return "MODARC_VISIBILITY_POLICY"
	}
}

var (
	_ Source = StaticSource{}
	_ Source = EnvSource{}
)
