package modarc

import (
	"context"

	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/repository"
)

type repositoryConfig struct {
	parent   ports.Repository
	settings map[string]string
	provider repository.OCIStoreProvider
	eager    bool
}

// RepositoryOption configures a repository created through the System's
// factory methods.
type RepositoryOption func(*repositoryConfig)

// WithParent attaches the repository under a delegation parent instead of
// the bootstrap repository.
func WithParent(parent ports.Repository) RepositoryOption {
	return func(c *repositoryConfig) {
		c.parent = parent
	}
}

// WithRepositoryConfig passes string-keyed configuration through to the
// repository, see the repository.Config constants for the recognized keys.
func WithRepositoryConfig(settings map[string]string) RepositoryOption {
	return func(c *repositoryConfig) {
		c.settings = settings
	}
}

// WithEagerInitialize makes a remote repository fetch its manifest during
// construction instead of on first use.
func WithEagerInitialize() RepositoryOption {
	return func(c *repositoryConfig) {
		c.eager = true
	}
}

// WithOCIStoreProvider replaces how an OCI repository reaches a registry.
// Tests install fakes here.
func WithOCIStoreProvider(provider repository.OCIStoreProvider) RepositoryOption {
	return func(c *repositoryConfig) {
		c.provider = provider
	}
}

// NewLocalRepository creates a repository serving module definitions from a
// directory, guarded by the create-repository permission. Without WithParent
// it delegates to the bootstrap repository.
func (s *System) NewLocalRepository(ctx context.Context, name, dir string, opts ...RepositoryOption) (*repository.Local, error) {
	cfg := s.repositoryConfig(opts)
	if err := s.guardCreate(dir); err != nil {
		return nil, err
	}

	local, err := repository.NewLocal(ctx, name, dir, s.variantOptions(cfg)...)
	if err != nil {
		return nil, err
	}
	s.track(local)
	return local, nil
}

// NewRemoteRepository creates a repository serving module definitions from a
// codebase URL, guarded by the create-repository permission. Without
// WithParent it delegates to the bootstrap repository.
func (s *System) NewRemoteRepository(ctx context.Context, name, codebase string, opts ...RepositoryOption) (*repository.URL, error) {
	cfg := s.repositoryConfig(opts)
	if err := s.guardCreate(codebase); err != nil {
		return nil, err
	}

	remote, err := repository.NewURL(ctx, name, codebase, s.variantOptions(cfg)...)
	if err != nil {
		return nil, err
	}
	s.track(remote)
	return remote, nil
}

// NewOCIRepository creates a repository serving module definitions published
// as OCI artifacts under a registry base reference, guarded by the
// create-repository permission. Module names come from the oci.modules
// setting. Without WithParent it delegates to the bootstrap repository.
func (s *System) NewOCIRepository(ctx context.Context, name, baseRef string, opts ...RepositoryOption) (*repository.OCI, error) {
	cfg := s.repositoryConfig(opts)
	if err := s.guardCreate(baseRef); err != nil {
		return nil, err
	}

	oci, err := repository.NewOCI(ctx, name, baseRef, s.variantOptions(cfg)...)
	if err != nil {
		return nil, err
	}
	s.track(oci)
	return oci, nil
}

func (s *System) repositoryConfig(opts []RepositoryOption) *repositoryConfig {
	cfg := &repositoryConfig{parent: s.bootstrap}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// variantOptions translates a factory call into the repository package's
// option set, wiring in the system-wide collaborators.
func (s *System) variantOptions(cfg *repositoryConfig) []repository.Option {
	opts := []repository.Option{
		repository.WithParent(cfg.parent),
		repository.WithLogger(s.logger),
		repository.WithPolicies(s.policies),
		repository.WithPlatform(s.platform),
		repository.WithSettings(cfg.settings),
	}
	if s.client != nil {
		opts = append(opts, repository.WithHTTPClient(s.client))
	}
	if s.cache != nil {
		opts = append(opts, repository.WithCache(s.cache))
	}
	if cfg.provider != nil {
		opts = append(opts, repository.WithOCIStoreProvider(cfg.provider))
	}
	if cfg.eager {
		opts = append(opts, repository.WithEagerInitialize())
	}
	return opts
}
