package repository

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/modarc-dev/modarc/cache"
	"github.com/modarc-dev/modarc/policy"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/values"
)

type options struct {
	parent   ports.Repository
	logger   *slog.Logger
	client   *http.Client
	cache    *cache.Store
	policies *policy.Registry
	platform values.Platform
	settings map[string]string
	provider OCIStoreProvider
	eager    bool
}

func defaultOptions() *options {
	return &options{
		logger:   slog.Default(),
		platform: values.HostPlatform(),
	}
}

// Option configures a repository variant. Options that do not apply to a
// variant are ignored.
type Option func(*options)

// WithParent attaches the repository under a delegation parent.
func WithParent(parent ports.Repository) Option {
	return func(o *options) {
		o.parent = parent
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient sets the client used by remote variants. Installing a
// netutil.RetryTransport here is the supported way to opt into retries.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

// WithCache persists verified archives in an archive store.
func WithCache(store *cache.Store) Option {
	return func(o *options) {
		o.cache = store
	}
}

// WithPolicies wires the policy registry consulted during searches.
func WithPolicies(registry *policy.Registry) Option {
	return func(o *options) {
		o.policies = registry
	}
}

// WithPlatform overrides the host platform used for filtering.
func WithPlatform(platform values.Platform) Option {
	return func(o *options) {
		if !platform.IsZero() {
			o.platform = platform
		}
	}
}

// WithSettings passes variant-specific configuration, see the Config
// constants.
func WithSettings(settings map[string]string) Option {
	return func(o *options) {
		o.settings = settings
	}
}

// WithOCIStoreProvider replaces how OCI repositories reach a registry.
// Tests install fakes here.
func WithOCIStoreProvider(provider OCIStoreProvider) Option {
	return func(o *options) {
		if provider != nil {
			o.provider = provider
		}
	}
}

// WithEagerInitialize makes remote variants initialize during construction
// instead of on first use.
func WithEagerInitialize() Option {
	return func(o *options) {
		o.eager = true
	}
}

func (o *options) setting(key, fallback string) string {
	if v, ok := o.settings[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (o *options) settingBool(key string, fallback bool) bool {
	v, ok := o.settings[key]
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func (o *options) settingInt(key string, fallback int) int {
	v, ok := o.settings[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (o *options) settingInt64(key string, fallback int64) int64 {
	v, ok := o.settings[key]
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
