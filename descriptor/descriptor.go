// Package descriptor decodes the identity header of module descriptors.
//
// Descriptors are opaque byte sequences end to end; integrity verification
// compares them bit for bit and never interprets them. The only structure
// this package relies on is the YAML identity header at the top of the
// document: name, version, an optional platform binding and the declared
// imports. Every other field is preserved untouched in the raw bytes.
package descriptor

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"

	"github.com/modarc-dev/modarc/values"
)

// WellKnownName is the resource name a repository serves a module's
// descriptor under.
const WellKnownName = "MODULE.METADATA"

// Import is one declared dependency of a module.
type Import struct {
	Name       string
	Constraint *semver.Constraints
}

// Info is the decoded identity header of a descriptor.
type Info struct {
	Ref     values.ModuleRef
	Imports []Import
}

type document struct {
	Name     string      `yaml:"name"`
	Version  string      `yaml:"version"`
	Platform string      `yaml:"platform"`
	Imports  []importDoc `yaml:"imports"`
}

type importDoc struct {
	Name       string `yaml:"name"`
	Constraint string `yaml:"constraint"`
}

// Parse decodes the identity header of a descriptor. The name and version
// are mandatory; platform and imports are optional. Unknown fields are
// ignored, the raw bytes stay authoritative.
func Parse(data []byte) (Info, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Info{}, fmt.Errorf("decoding descriptor: %w", err)
	}

	if strings.TrimSpace(doc.Name) == "" {
		return Info{}, fmt.Errorf("descriptor has no name")
	}
	if strings.TrimSpace(doc.Version) == "" {
		return Info{}, fmt.Errorf("descriptor %s has no version", doc.Name)
	}
	version, err := semver.NewVersion(doc.Version)
	if err != nil {
		return Info{}, fmt.Errorf("descriptor %s version %q: %w", doc.Name, doc.Version, err)
	}

	var platform values.Platform
	if doc.Platform != "" {
		platform, err = values.ParsePlatform(doc.Platform)
		if err != nil {
			return Info{}, fmt.Errorf("descriptor %s: %w", doc.Name, err)
		}
	}

	ref, err := values.NewPlatformModuleRef(doc.Name, version, platform)
	if err != nil {
		return Info{}, fmt.Errorf("descriptor %s: %w", doc.Name, err)
	}

	info := Info{Ref: ref}
	for _, imp := range doc.Imports {
		if strings.TrimSpace(imp.Name) == "" {
			return Info{}, fmt.Errorf("descriptor %s declares an unnamed import", doc.Name)
		}
		constraint, err := parseConstraint(imp.Constraint)
		if err != nil {
			return Info{}, fmt.Errorf("descriptor %s import %s: %w", doc.Name, imp.Name, err)
		}
		info.Imports = append(info.Imports, Import{Name: imp.Name, Constraint: constraint})
	}
	return info, nil
}

func parseConstraint(s string) (*semver.Constraints, error) {
	if s == "" || s == "latest" {
		return semver.NewConstraint(">= 0")
	}
	return semver.NewConstraint(s)
}
