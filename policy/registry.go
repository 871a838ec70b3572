package policy

import (
	"log/slog"
	"sync"

	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/values"
)

type slotState int

const (
	stateUnresolved slotState = iota
	stateResolvedDefault
	stateResolvedCustom
)

// slot holds one resolved policy. The mutex serializes first resolution
// against concurrent gets and sets; after resolution it only guards the
// pointer swap.
type slot[T any] struct {
	mu    sync.Mutex
	value T
	state slotState
}

// Registry resolves the system policies exactly once and hands out the
// resolved values. Getters never fail: a configured policy that cannot be
// loaded is logged and silently replaced by the next candidate, ending at the
// builtin default. Resolution happens at most once per slot; failures are not
// retried.
type Registry struct {
	factories *FactorySet
	source    Source
	checker   ports.PermissionChecker
	logger    *slog.Logger

	visibility slot[VisibilityPolicy]
	overrides  slot[ImportOverridePolicy]
}

// Option configures a Registry.
type Option func(*Registry)

// WithFactorySet sets the named-policy constructors.
func WithFactorySet(set *FactorySet) Option {
	return func(r *Registry) {
		if set != nil {
			r.factories = set
		}
	}
}

// WithSource sets where configured policy names come from.
func WithSource(source Source) Option {
	return func(r *Registry) {
		if source != nil {
			r.source = source
		}
	}
}

// WithPermissionChecker guards SetVisibility and SetImportOverride. Without a
// checker, replacement is unrestricted.
func WithPermissionChecker(checker ports.PermissionChecker) Option {
	return func(r *Registry) {
		r.checker = checker
	}
}

// WithLogger sets the logger for resolution failures and replacements.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a registry with unresolved slots.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		factories: NewFactorySet(),
		source:    EnvSource{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Visibility returns the visibility policy, resolving it on first use.
func (r *Registry) Visibility() VisibilityPolicy {
	return resolve[VisibilityPolicy](r, &r.visibility, KindVisibility, r.factories.NewVisibility, VisibleAll{})
}

// ImportOverride returns the import override policy, resolving it on first use.
func (r *Registry) ImportOverride() ImportOverridePolicy {
	return resolve[ImportOverridePolicy](r, &r.overrides, KindImportOverride, r.factories.NewImportOverride, Passthrough{})
}

// SetVisibility replaces the visibility policy. The previous value is
// discarded whether or not the slot had resolved.
func (r *Registry) SetVisibility(p VisibilityPolicy) error {
	if p == nil {
		return &entities.InvalidArgumentError{Arg: "policy", Reason: "visibility policy is nil"}
	}
	if err := r.check(values.ActionSetVisibilityPolicy, string(KindVisibility)); err != nil {
		return err
	}

	r.visibility.mu.Lock()
	defer r.visibility.mu.Unlock()
	r.visibility.value = p
	r.visibility.state = stateResolvedCustom
	r.logger.Info("visibility policy replaced")
	return nil
}

// SetImportOverride replaces the import override policy.
func (r *Registry) SetImportOverride(p ImportOverridePolicy) error {
	if p == nil {
		return &entities.InvalidArgumentError{Arg: "policy", Reason: "import override policy is nil"}
	}
	if err := r.check(values.ActionSetImportOverridePolicy, string(KindImportOverride)); err != nil {
		return err
	}

	r.overrides.mu.Lock()
	defer r.overrides.mu.Unlock()
	r.overrides.value = p
	r.overrides.state = stateResolvedCustom
	r.logger.Info("import override policy replaced")
	return nil
}

// Bootstrap forces both slots to resolve. Run it before repositories start
// consulting policies; factories must not call back into the registry.
func (r *Registry) Bootstrap() {
	r.Visibility()
	r.ImportOverride()
}

func (r *Registry) check(action values.Action, resource string) error {
	if r.checker == nil {
		return nil
	}
	return r.checker.Check(action, resource)
}

// resolve loads a slot under its lock. Candidate order: override name, default
// name, builtin. A candidate whose factory is missing or fails is logged at
// warn and skipped for good.
func resolve[T any](r *Registry, s *slot[T], kind Kind, build func(string) (T, error), builtin T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateUnresolved {
		return s.value
	}

	for _, lookup := range []func(Kind) (string, bool){r.source.OverrideName, r.source.DefaultName} {
		name, ok := lookup(kind)
		if !ok {
			continue
		}
		p, err := build(name)
		if err != nil {
			r.logger.Warn("policy load failed",
				"kind", string(kind),
				"name", name,
				"error", err)
			continue
		}
		r.logger.Debug("policy resolved", "kind", string(kind), "name", name)
		s.value = p
		s.state = stateResolvedCustom
		return s.value
	}

	s.value = builtin
	s.state = stateResolvedDefault
	return s.value
}
