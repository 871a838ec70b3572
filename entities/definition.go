package entities

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/descriptor"
	"github.com/modarc-dev/modarc/values"
)

// DescriptorFetch produces the descriptor bytes of a deferred definition.
// It is invoked at most once per definition.
type DescriptorFetch func(ctx context.Context) ([]byte, error)

// Definition is a discovered module version: an identity plus its descriptor,
// either held eagerly or fetched on first use. Definitions are immutable apart
// from the deferred descriptor cell, which settles exactly once.
//
// A definition references its issuing repository only through its
// RepositoryID. Materialization routes through the repository table; there is
// no back pointer, so repositories own definitions and never the reverse.
type Definition struct {
	ref        values.ModuleRef
	eager      []byte
	fetch      DescriptorFetch
	cont       content.Content
	owner      values.RepositoryID
	releasable bool

	once     sync.Once
	fetched  []byte
	fetchErr error
}

// NewDefinition creates an eager definition whose identity is read from the
// descriptor itself. The content handle is optional; without one the module
// materializes through its owning repository.
func NewDefinition(desc []byte, cont content.Content, owner values.RepositoryID, releasable bool) (*Definition, error) {
	if len(desc) == 0 {
		return nil, &InvalidArgumentError{Arg: "descriptor", Reason: "empty"}
	}
	if owner.IsZero() {
		return nil, &InvalidArgumentError{Arg: "owner", Reason: "zero repository identity"}
	}
	info, err := descriptor.Parse(desc)
	if err != nil {
		return nil, &FormatError{Source: "descriptor", Err: err}
	}
	return &Definition{ref: info.Ref, eager: desc, cont: cont, owner: owner, releasable: releasable}, nil
}

// NewDefinitionForRef creates an eager definition under a caller-supplied
// identity. Repository initialization uses this form: the manifest entry, not
// the descriptor, is authoritative for the reference.
func NewDefinitionForRef(ref values.ModuleRef, desc []byte, cont content.Content, owner values.RepositoryID, releasable bool) (*Definition, error) {
	if ref.IsZero() {
		return nil, &InvalidArgumentError{Arg: "ref", Reason: "zero module reference"}
	}
	if len(desc) == 0 {
		return nil, &InvalidArgumentError{Arg: "descriptor", Reason: "empty"}
	}
	if owner.IsZero() {
		return nil, &InvalidArgumentError{Arg: "owner", Reason: "zero repository identity"}
	}
	return &Definition{ref: ref, eager: desc, cont: cont, owner: owner, releasable: releasable}, nil
}

// NewDeferredDefinition creates a definition whose descriptor is fetched on
// first use.
func NewDeferredDefinition(ref values.ModuleRef, fetch DescriptorFetch, cont content.Content, owner values.RepositoryID, releasable bool) (*Definition, error) {
	if ref.IsZero() {
		return nil, &InvalidArgumentError{Arg: "ref", Reason: "zero module reference"}
	}
	if fetch == nil {
		return nil, &InvalidArgumentError{Arg: "fetch", Reason: "nil"}
	}
	if owner.IsZero() {
		return nil, &InvalidArgumentError{Arg: "owner", Reason: "zero repository identity"}
	}
	return &Definition{ref: ref, fetch: fetch, cont: cont, owner: owner, releasable: releasable}, nil
}

// NewDeferredNamed is NewDeferredDefinition with a textual identity.
func NewDeferredNamed(name, version string, fetch DescriptorFetch, cont content.Content, owner values.RepositoryID, releasable bool) (*Definition, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &InvalidArgumentError{Arg: "name", Reason: "empty"}
	}
	if strings.TrimSpace(version) == "" {
		return nil, &InvalidArgumentError{Arg: "version", Reason: "empty"}
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, &InvalidArgumentError{Arg: "version", Reason: err.Error()}
	}
	ref, err := values.NewModuleRef(name, v)
	if err != nil {
		return nil, &InvalidArgumentError{Arg: "name", Reason: err.Error()}
	}
	return NewDeferredDefinition(ref, fetch, cont, owner, releasable)
}

// Ref returns the module identity.
func (d *Definition) Ref() values.ModuleRef {
	return d.ref
}

// IsDeferred reports whether the descriptor is fetched on first use.
func (d *Definition) IsDeferred() bool {
	return d.fetch != nil
}

// Descriptor returns the descriptor bytes. Eager definitions return their
// stored bytes immediately. Deferred definitions fetch on the first call only;
// the outcome, success or failure, is cached and every later call returns it
// without retrying. Concurrent first calls share one fetch.
func (d *Definition) Descriptor(ctx context.Context) ([]byte, error) {
	if d.eager != nil {
		return d.eager, nil
	}
	d.once.Do(func() {
		data, err := d.fetch(ctx)
		if err != nil {
			d.fetchErr = fmt.Errorf("fetching descriptor for %s: %w", d.ref, err)
			return
		}
		if len(data) == 0 {
			d.fetchErr = &FormatError{Source: "descriptor", Reason: fmt.Sprintf("empty descriptor for %s", d.ref)}
			return
		}
		d.fetched = data
	})
	return d.fetched, d.fetchErr
}

// Content returns the construction-time archive handle, nil when the module
// materializes through its owning repository.
func (d *Definition) Content() content.Content {
	return d.cont
}

// Owner returns the identity of the issuing repository.
func (d *Definition) Owner() values.RepositoryID {
	return d.owner
}

// Releasable reports whether the runtime may release the module's resources.
func (d *Definition) Releasable() bool {
	return d.releasable
}

// String renders the definition identity.
func (d *Definition) String() string {
	return d.ref.String()
}
