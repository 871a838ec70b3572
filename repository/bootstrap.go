package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/values"
)

// SeedModule is one module installed into the bootstrap repository: its
// descriptor and, optionally, an archive handle for materialization.
type SeedModule struct {
	Descriptor []byte
	Content    content.Content
}

// Bootstrap is the in-memory root repository. It has no parent, its
// definitions are fixed at construction, and it anchors every delegation
// chain.
type Bootstrap struct {
	base
	defs []*entities.Definition
}

// NewBootstrap creates the root repository from a fixed seed. A configured
// parent is rejected; the bootstrap repository is always the root.
func NewBootstrap(name string, seed []SeedModule, opts ...Option) (*Bootstrap, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.parent != nil {
		return nil, &entities.InvalidArgumentError{Arg: "parent", Reason: "bootstrap repository cannot have a parent"}
	}

	b, err := newBase(name, "memory", cfg)
	if err != nil {
		return nil, err
	}

	r := &Bootstrap{base: b}
	for i, mod := range seed {
		def, err := entities.NewDefinition(mod.Descriptor, mod.Content, r.id, false)
		if err != nil {
			return nil, fmt.Errorf("bootstrap module %d: %w", i, err)
		}
		r.defs = append(r.defs, def)
	}
	orderDefinitions(r.defs)

	r.logger.Debug("bootstrap repository ready", "name", name, "modules", len(r.defs))
	return r, nil
}

// List returns the seeded definitions.
func (r *Bootstrap) List(context.Context) ([]*entities.Definition, error) {
	return slices.Clone(r.defs), nil
}

// Find searches the seeded definitions.
func (r *Bootstrap) Find(ctx context.Context, query values.Query) ([]*entities.Definition, error) {
	return r.delegatedFind(ctx, r, query)
}

// Materialize returns the archive handle attached at seeding time.
func (r *Bootstrap) Materialize(_ context.Context, def *entities.Definition) (content.Content, error) {
	if err := r.owns(def); err != nil {
		return nil, err
	}
	if def.Content() == nil {
		return nil, fmt.Errorf("%w: no archive attached for %s", entities.ErrUnavailable, def.Ref())
	}
	return def.Content(), nil
}

// Close is a no-op.
func (r *Bootstrap) Close() error {
	return nil
}

var _ ports.Repository = (*Bootstrap)(nil)
