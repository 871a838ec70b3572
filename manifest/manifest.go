// Package manifest reads and writes the repository manifest: the published
// list of modules a URL repository serves.
package manifest

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/values"
)

// WellKnownName is the resource name the manifest is served under, relative
// to the repository codebase.
const WellKnownName = "repository-metadata.yaml"

// Document is the decoded manifest.
type Document struct {
	Modules []Entry `yaml:"modules" json:"modules,omitempty"`
}

// Entry describes one published module. Platform and Arch bind the module to
// a platform and must be set together. Path overrides the default layout
// path relative to the codebase.
type Entry struct {
	Name     string `yaml:"name" json:"name"`
	Version  string `yaml:"version" json:"version"`
	Platform string `yaml:"platform,omitempty" json:"platform,omitempty"`
	Arch     string `yaml:"arch,omitempty" json:"arch,omitempty"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Decode parses and validates manifest bytes. The document is checked
// against the generated schema first, then each entry's version and platform
// are parsed. Any violation fails the whole manifest.
func Decode(data []byte) (*Document, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &entities.FormatError{Source: "manifest", Err: err}
	}

	for i, entry := range doc.Modules {
		if _, err := entry.Ref(); err != nil {
			return nil, &entities.FormatError{
				Source: "manifest",
				Reason: fmt.Sprintf("entry %d (%s): %v", i, entry.Name, err),
			}
		}
	}
	return &doc, nil
}

// Encode renders a manifest document.
func Encode(doc *Document) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return data, nil
}

// Ref builds the module reference an entry describes.
func (e Entry) Ref() (values.ModuleRef, error) {
	if (e.Platform == "") != (e.Arch == "") {
		return values.ModuleRef{}, fmt.Errorf("platform and arch must be set together")
	}

	ref := e.Name + "@" + e.Version
	parsed, err := values.ParseRef(ref)
	if err != nil {
		return values.ModuleRef{}, err
	}
	if e.Platform == "" {
		return parsed, nil
	}
	return values.NewPlatformModuleRef(e.Name, parsed.Version(), values.NewPlatform(e.Platform, e.Arch))
}

// LayoutPath returns the explicit repository-relative path, empty when the
// default layout applies.
func (e Entry) LayoutPath() string {
	return e.Path
}
