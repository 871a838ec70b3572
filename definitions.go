package modarc

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/descriptor"
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/values"
)

// NewModuleDefinition creates a module definition from descriptor bytes.
// The identity is read from the descriptor; repository implementations call
// this rather than applications. A nil repo assigns the definition to the
// bootstrap repository.
func (s *System) NewModuleDefinition(desc []byte, cont content.Content, repo ports.Repository, releasable bool) (*entities.Definition, error) {
	return entities.NewDefinition(desc, cont, s.ownerID(repo), releasable)
}

// NewDeferredModuleDefinition creates a module definition whose descriptor
// bytes are retrieved on first use. The fetch runs at most once; its outcome
// is cached for the definition's lifetime. A nil repo assigns the definition
// to the bootstrap repository.
func (s *System) NewDeferredModuleDefinition(name, version string, fetch entities.DescriptorFetch, cont content.Content, repo ports.Repository, releasable bool) (*entities.Definition, error) {
	return entities.NewDeferredNamed(name, version, fetch, cont, s.ownerID(repo), releasable)
}

// Materialize fetches and verifies the archive of a definition through its
// owning repository. Definitions constructed with an explicit content handle
// short-circuit to it.
func (s *System) Materialize(ctx context.Context, def *entities.Definition) (content.Content, error) {
	if def == nil {
		return nil, &entities.InvalidArgumentError{Arg: "def", Reason: "nil definition"}
	}
	if def.Content() != nil {
		return def.Content(), nil
	}

	repo := s.Repository(def.Owner())
	if repo == nil {
		return nil, &entities.InvalidArgumentError{
			Arg:    "def",
			Reason: "owning repository " + def.Owner().String() + " is not managed by this system",
		}
	}
	return repo.Materialize(ctx, def)
}

// EffectiveImports returns the version constraints a module's imports
// resolve under: the constraints declared in its descriptor, narrowed by the
// import override policy.
func (s *System) EffectiveImports(ctx context.Context, def *entities.Definition) (map[string]*semver.Constraints, error) {
	if def == nil {
		return nil, &entities.InvalidArgumentError{Arg: "def", Reason: "nil definition"}
	}

	data, err := def.Descriptor(ctx)
	if err != nil {
		return nil, err
	}
	info, err := descriptor.Parse(data)
	if err != nil {
		return nil, &entities.FormatError{Source: "descriptor", Err: err}
	}

	imports := make(map[string]*semver.Constraints, len(info.Imports))
	for _, imp := range info.Imports {
		imports[imp.Name] = imp.Constraint
	}
	return s.policies.ImportOverride().Narrow(def, imports), nil
}

func (s *System) ownerID(repo ports.Repository) values.RepositoryID {
	if repo == nil {
		return s.bootstrap.ID()
	}
	return repo.ID()
}
