// Package modarc resolves, verifies and materializes module definitions from
// a hierarchy of delegating repositories.
//
// A System is the composition root: it owns the bootstrap repository at the
// root of every delegation chain, the table of repositories it has created,
// the policy registry, and the collaborators (permission checker, HTTP
// client, archive cache) those repositories share. Repositories are created
// through the System's factory methods and searched through their own Find;
// module archives are materialized on demand and verified against their
// published descriptor before anything is handed out.
package modarc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/modarc-dev/modarc/cache"
	"github.com/modarc-dev/modarc/permission"
	"github.com/modarc-dev/modarc/policy"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/repository"
	"github.com/modarc-dev/modarc/values"
)

// BootstrapRepositoryName is the name of the root repository every System
// starts with.
const BootstrapRepositoryName = "system"

// ErrShutDown is returned by factory methods after Shutdown.
var ErrShutDown = errors.New("module system is shut down")

// SeedModule is a module installed into the bootstrap repository, see
// WithBootstrapModules.
type SeedModule = repository.SeedModule

// System is the composition root of the module repository layer.
type System struct {
	logger    *slog.Logger
	checker   ports.PermissionChecker
	policies  *policy.Registry
	factories *policy.FactorySet
	source    policy.Source
	client    *http.Client
	cache     *cache.Store
	platform  values.Platform
	bootstrap *repository.Bootstrap

	mu     sync.Mutex
	repos  map[values.RepositoryID]ports.Repository
	order  []values.RepositoryID
	closed bool
}

type systemConfig struct {
	logger    *slog.Logger
	checker   ports.PermissionChecker
	factories *policy.FactorySet
	source    policy.Source
	client    *http.Client
	cache     *cache.Store
	cacheDir  string
	useCache  bool
	platform  values.Platform
	seed      []repository.SeedModule
}

// Option configures a System.
type Option func(*systemConfig)

// WithLogger sets the logger shared by the system and every repository it
// creates.
func WithLogger(logger *slog.Logger) Option {
	return func(c *systemConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPermissionChecker sets the collaborator consulted before repository
// creation, policy replacement, cache enumeration and shutdown. The default
// grants everything; install permission.Gatekeeper for interactive grants.
func WithPermissionChecker(checker ports.PermissionChecker) Option {
	return func(c *systemConfig) {
		if checker != nil {
			c.checker = checker
		}
	}
}

// WithPolicySource sets where configured policy names come from. The default
// reads the MODARC_* environment variables.
func WithPolicySource(source policy.Source) Option {
	return func(c *systemConfig) {
		if source != nil {
			c.source = source
		}
	}
}

// WithFactorySet sets the named policy constructors available to policy
// resolution.
func WithFactorySet(set *policy.FactorySet) Option {
	return func(c *systemConfig) {
		if set != nil {
			c.factories = set
		}
	}
}

// WithHTTPClient sets the client remote repositories fetch with. Installing
// a netutil.RetryTransport here is the supported way to opt into retries.
func WithHTTPClient(client *http.Client) Option {
	return func(c *systemConfig) {
		if client != nil {
			c.client = client
		}
	}
}

// WithArchiveCache persists verified archives in an existing store.
func WithArchiveCache(store *cache.Store) Option {
	return func(c *systemConfig) {
		c.cache = store
		c.useCache = store != nil
	}
}

// WithCacheDir persists verified archives under dir, creating the store
// during NewSystem. An empty dir selects the per-user default location.
func WithCacheDir(dir string) Option {
	return func(c *systemConfig) {
		c.cacheDir = dir
		c.useCache = true
	}
}

// WithPlatform overrides the host platform used to filter platform-bound
// modules.
func WithPlatform(platform values.Platform) Option {
	return func(c *systemConfig) {
		if !platform.IsZero() {
			c.platform = platform
		}
	}
}

// WithBootstrapModules seeds the bootstrap repository. Seeded modules are
// visible to every delegated search.
func WithBootstrapModules(seed ...repository.SeedModule) Option {
	return func(c *systemConfig) {
		c.seed = append(c.seed, seed...)
	}
}

// NewSystem creates a module system: resolved policies, a bootstrap
// repository, and an empty repository table.
func NewSystem(opts ...Option) (*System, error) {
	cfg := &systemConfig{
		logger:    slog.Default(),
		checker:   permission.AllowAll{},
		factories: policy.NewFactorySet(),
		source:    policy.EnvSource{},
		platform:  values.HostPlatform(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.cache
	if cfg.useCache && store == nil {
		var err error
		store, err = cache.NewStore(cfg.cacheDir, cache.WithLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("opening archive cache: %w", err)
		}
	}

	policies := policy.NewRegistry(
		policy.WithFactorySet(cfg.factories),
		policy.WithSource(cfg.source),
		policy.WithPermissionChecker(cfg.checker),
		policy.WithLogger(cfg.logger),
	)
	// Resolve both policies before any repository exists. Once the slots are
	// pinned, no later search or factory call can re-enter resolution and
	// block on a half-initialized slot.
	policies.Bootstrap()

	bootstrap, err := repository.NewBootstrap(BootstrapRepositoryName, cfg.seed,
		repository.WithLogger(cfg.logger),
		repository.WithPolicies(policies),
	)
	if err != nil {
		return nil, fmt.Errorf("seeding bootstrap repository: %w", err)
	}

	s := &System{
		logger:    cfg.logger,
		checker:   cfg.checker,
		policies:  policies,
		factories: cfg.factories,
		source:    cfg.source,
		client:    cfg.client,
		cache:     store,
		platform:  cfg.platform,
		bootstrap: bootstrap,
		repos:     make(map[values.RepositoryID]ports.Repository),
	}
	s.track(bootstrap)
	return s, nil
}

// SystemRepository returns the bootstrap repository at the root of every
// delegation chain.
func (s *System) SystemRepository() *repository.Bootstrap {
	return s.bootstrap
}

// Policies returns the policy registry.
func (s *System) Policies() *policy.Registry {
	return s.policies
}

// Platform returns the platform modules are filtered against.
func (s *System) Platform() values.Platform {
	return s.platform
}

// Repository returns the repository with the given identity, nil when this
// system does not manage it.
func (s *System) Repository(id values.RepositoryID) ports.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repos[id]
}

// ListCachedModules enumerates the module versions with a verified archive
// in the cache. Guarded by the list-modules permission.
func (s *System) ListCachedModules(ctx context.Context) ([]values.ModuleRef, error) {
	if s.cache == nil {
		return nil, nil
	}
	if err := s.checker.Check(values.ActionListModules, s.cache.Root()); err != nil {
		return nil, err
	}
	return s.cache.List(ctx)
}

// Shutdown closes every repository this system created, most recent first.
// Guarded by the shutdown-repository permission. Further factory calls fail
// with ErrShutDown; Shutdown itself is idempotent.
func (s *System) Shutdown(ctx context.Context) error {
	if err := s.checker.Check(values.ActionShutdownRepository, BootstrapRepositoryName); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs error
	for i := len(s.order) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return errors.Join(errs, err)
		}
		repo := s.repos[s.order[i]]
		if err := repo.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("closing repository %s: %w", repo.Name(), err))
		}
	}
	s.logger.Info("module system shut down", "repositories", len(s.order))
	return errs
}

// track registers a repository in the table definitions resolve their owner
// through.
func (s *System) track(repo ports.Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[repo.ID()] = repo
	s.order = append(s.order, repo.ID())
}

// guardCreate runs the pre-construction checks shared by the repository
// factory methods.
func (s *System) guardCreate(source string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrShutDown
	}
	return s.checker.Check(values.ActionCreateRepository, source)
}
