package permission

import (
	"log/slog"
	"sync"

	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/values"
)

// Gatekeeper checks permissions interactively: consults persisted grants,
// prompts for anything missing, and saves "always" decisions. Outside a
// terminal, anything not already granted is denied.
type Gatekeeper struct {
	store    *Store
	prompter Prompter
	logger   *slog.Logger

	// mu also serializes prompting, so concurrent checks for the same grant
	// raise a single prompt.
	mu      sync.Mutex
	session map[string]bool
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithStore sets the grant store.
func WithStore(s *Store) Option {
	return func(g *Gatekeeper) {
		if s != nil {
			g.store = s
		}
	}
}

// WithPrompter sets the prompter.
func WithPrompter(p Prompter) Option {
	return func(g *Gatekeeper) {
		if p != nil {
			g.prompter = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gatekeeper) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGatekeeper creates a gatekeeper with pluggable store and prompter.
func NewGatekeeper(opts ...Option) *Gatekeeper {
	g := &Gatekeeper{
		logger:  slog.Default(),
		session: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = NewStore()
	}
	if g.prompter == nil {
		g.prompter = NewTerminalPrompter()
	}
	return g
}

// Check resolves a permission request. Persisted grants win; otherwise the
// session cache answers repeats, and only genuinely new requests prompt.
func (g *Gatekeeper) Check(action values.Action, resource string) error {
	granted, err := g.store.Granted(action, resource)
	if err != nil {
		g.logger.Warn("grant store unreadable, treating as empty", "error", err)
	}
	if granted {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := string(action) + "|" + resource
	if decision, ok := g.session[key]; ok {
		if decision {
			return nil
		}
		return &entities.PermissionDeniedError{Action: action, Resource: resource}
	}

	if !g.prompter.IsInteractive() {
		g.logger.Debug("permission denied, no terminal to prompt on",
			"action", action.String(),
			"resource", resource)
		return &entities.PermissionDeniedError{Action: action, Resource: resource}
	}

	decision, err := g.prompter.Prompt(action, resource)
	if err != nil {
		g.logger.Warn("permission prompt failed",
			"action", action.String(),
			"error", err)
		return &entities.PermissionDeniedError{Action: action, Resource: resource}
	}

	switch decision {
	case DecisionAllowAlways:
		g.session[key] = true
		if err := g.store.Add(Grant{Action: string(action), Resource: resource}); err != nil {
			g.logger.Warn("saving grant failed", "error", err)
		} else {
			g.logger.Info("grant saved", "path", g.store.Path())
		}
		return nil
	case DecisionAllowOnce:
		g.session[key] = true
		return nil
	default:
		g.session[key] = false
		return &entities.PermissionDeniedError{Action: action, Resource: resource}
	}
}

var _ ports.PermissionChecker = (*Gatekeeper)(nil)
