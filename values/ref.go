package values

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ModuleRef uniquely identifies a module version, optionally bound to a platform.
// Format: name@version, e.g. org.example.http@1.4.0
type ModuleRef struct {
	name     string
	version  *semver.Version
	platform Platform
}

// NewModuleRef creates a platform-neutral reference.
func NewModuleRef(name string, version *semver.Version) (ModuleRef, error) {
	return NewPlatformModuleRef(name, version, Platform{})
}

// NewPlatformModuleRef creates a reference bound to a platform.
// A zero platform produces a platform-neutral reference.
func NewPlatformModuleRef(name string, version *semver.Version, platform Platform) (ModuleRef, error) {
	if strings.TrimSpace(name) == "" {
		return ModuleRef{}, fmt.Errorf("module name is empty")
	}
	if version == nil {
		return ModuleRef{}, fmt.Errorf("module version is nil")
	}
	return ModuleRef{name: name, version: version, platform: platform}, nil
}

// ParseRef parses a name@version string.
func ParseRef(ref string) (ModuleRef, error) {
	name, ver, ok := strings.Cut(ref, "@")
	if !ok {
		return ModuleRef{}, fmt.Errorf("missing version in reference %q", ref)
	}
	v, err := semver.NewVersion(ver)
	if err != nil {
		return ModuleRef{}, fmt.Errorf("invalid version in reference %q: %w", ref, err)
	}
	return NewModuleRef(name, v)
}

// MustParseRef parses a name@version string and panics on failure.
// Intended for tests and static initialization.
func MustParseRef(ref string) ModuleRef {
	r, err := ParseRef(ref)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the module name.
func (r ModuleRef) Name() string {
	return r.name
}

// Version returns the module version.
func (r ModuleRef) Version() *semver.Version {
	return r.version
}

// Platform returns the platform binding and whether one is set.
func (r ModuleRef) Platform() (Platform, bool) {
	return r.platform, !r.platform.IsZero()
}

// IsPlatformBound reports whether the reference carries a platform binding.
func (r ModuleRef) IsPlatformBound() bool {
	return !r.platform.IsZero()
}

// IsZero reports whether the reference is the zero value.
func (r ModuleRef) IsZero() bool {
	return r.name == "" && r.version == nil
}

// String returns the canonical reference string.
func (r ModuleRef) String() string {
	if r.version == nil {
		return r.name
	}
	if r.IsPlatformBound() {
		return fmt.Sprintf("%s@%s (%s)", r.name, r.version.Original(), r.platform)
	}
	return fmt.Sprintf("%s@%s", r.name, r.version.Original())
}

// Equal checks equality with another reference.
func (r ModuleRef) Equal(other ModuleRef) bool {
	if r.name != other.name || !r.platform.Matches(other.platform) {
		return false
	}
	if r.version == nil || other.version == nil {
		return r.version == other.version
	}
	return r.version.Equal(other.version)
}

// Compare orders references by name, then semver precedence, then platform.
func (r ModuleRef) Compare(other ModuleRef) int {
	if c := strings.Compare(r.name, other.name); c != 0 {
		return c
	}
	switch {
	case r.version == nil && other.version == nil:
	case r.version == nil:
		return -1
	case other.version == nil:
		return 1
	default:
		if c := r.version.Compare(other.version); c != 0 {
			return c
		}
	}
	return strings.Compare(r.platform.String(), other.platform.String())
}
