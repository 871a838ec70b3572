package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	orascontent "oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/registry/remote"

	"github.com/modarc-dev/modarc/archive"
	"github.com/modarc-dev/modarc/cache"
	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/netutil"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/services"
	"github.com/modarc-dev/modarc/values"
)

// Media types of module artifacts published as OCI images: the module
// descriptor rides as the config blob, the archive as a layer.
const (
	MediaTypeDescriptor  = "application/vnd.modarc.module.descriptor.v1+yaml"
	MediaTypeArchive     = "application/vnd.modarc.module.archive.v1.tar"
	MediaTypeArchiveGzip = "application/vnd.modarc.module.archive.v1.tar+gzip"
)

// OCIStore is the slice of a registry client the OCI repository needs.
// oras-go's remote.Repository satisfies it; tests install fakes through
// WithOCIStoreProvider.
type OCIStore interface {
	Resolve(ctx context.Context, reference string) (ocispec.Descriptor, error)
	Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error)
	Tags(ctx context.Context, last string, fn func(tags []string) error) error
}

// OCIStoreProvider opens the registry client for one module repository
// reference, e.g. ghcr.io/example/modules/org.example.http.
type OCIStoreProvider func(repository string) (OCIStore, error)

func defaultOCIStoreProvider(repository string) (OCIStore, error) {
	return remote.NewRepository(repository)
}

// OCI serves modules published as OCI artifacts: one registry repository per
// module name under a common base reference, tags carrying the versions.
// Definitions are deferred; the descriptor config blob is pulled on first
// use.
type OCI struct {
	base
	baseRef    string
	provider   OCIStoreProvider
	modules    []string
	cache      *cache.Store
	platform   values.Platform
	verifier   *services.IntegrityVerifier
	maxArchive int64

	mu          sync.Mutex
	initialized bool
	defs        []*entities.Definition
	stores      map[string]OCIStore
	manifests   map[string]ocispec.Descriptor
}

// NewOCI creates an OCI-backed repository. baseRef is the registry path
// prefix the module repositories live under; the module names come from the
// oci.modules setting.
func NewOCI(ctx context.Context, name, baseRef string, opts ...Option) (*OCI, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(cfg)
	}

	baseRef = strings.TrimSuffix(baseRef, "/")
	switch {
	case baseRef == "":
		return nil, &entities.InvalidArgumentError{Arg: "baseRef", Reason: "empty"}
	case strings.Contains(baseRef, "://"):
		return nil, &entities.InvalidArgumentError{Arg: "baseRef", Reason: "registry references carry no scheme"}
	}

	var modules []string
	for _, m := range strings.Split(cfg.setting(ConfigOCIModules, ""), ",") {
		if m = strings.TrimSpace(m); m != "" {
			modules = append(modules, m)
		}
	}
	if len(modules) == 0 {
		return nil, &entities.InvalidArgumentError{Arg: ConfigOCIModules, Reason: "at least one module name required"}
	}

	b, err := newBase(name, baseRef, cfg)
	if err != nil {
		return nil, err
	}

	provider := cfg.provider
	if provider == nil {
		provider = defaultOCIStoreProvider
	}

	o := &OCI{
		base:       b,
		baseRef:    baseRef,
		provider:   provider,
		modules:    modules,
		cache:      cfg.cache,
		platform:   cfg.platform,
		verifier:   services.NewIntegrityVerifier(services.WithIntegrityLogger(cfg.logger)),
		maxArchive: cfg.settingInt64(ConfigFetchMaxBytes, defaultArchiveLimit),
		stores:     make(map[string]OCIStore),
		manifests:  make(map[string]ocispec.Descriptor),
	}
	if cfg.eager {
		if err := o.Initialize(ctx); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Initialize lists and resolves the tags of every configured module. A failed
// initialization leaves the repository unusable but retryable.
func (o *OCI) Initialize(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initLocked(ctx)
}

func (o *OCI) initLocked(ctx context.Context) error {
	if o.initialized {
		return nil
	}

	var defs []*entities.Definition
	manifests := make(map[string]ocispec.Descriptor)

	for _, module := range o.modules {
		store, err := o.storeFor(module)
		if err != nil {
			return err
		}
		repoRef := o.baseRef + "/" + module

		var tags []string
		err = store.Tags(ctx, "", func(page []string) error {
			tags = append(tags, page...)
			return nil
		})
		if err != nil {
			return &entities.FetchError{URL: repoRef, Err: err}
		}

		for _, tag := range tags {
			version, err := semver.NewVersion(tag)
			if err != nil {
				o.logger.Debug("skipping non-version tag", "repository", repoRef, "tag", tag)
				continue
			}

			resolved, err := store.Resolve(ctx, tag)
			if err != nil {
				return &entities.FetchError{URL: repoRef + ":" + tag, Err: err}
			}

			ref, manifestDesc, ok, err := o.selectManifest(ctx, store, module, version, resolved)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

			def, err := entities.NewDeferredDefinition(ref, o.descriptorFetch(store, manifestDesc), nil, o.id, true)
			if err != nil {
				return err
			}
			defs = append(defs, def)
			manifests[ref.String()] = manifestDesc
		}
	}
	orderDefinitions(defs)

	o.defs = defs
	o.manifests = manifests
	o.initialized = true
	o.logger.Info("oci repository initialized",
		"name", o.name,
		"base", o.baseRef,
		"modules", len(defs))
	return nil
}

// selectManifest maps a resolved tag to the image manifest to use. An index
// picks the entry matching the host platform, dropping the tag when none
// does; a plain manifest is taken as-is and stays platform-neutral.
func (o *OCI) selectManifest(ctx context.Context, store OCIStore, module string, version *semver.Version, resolved ocispec.Descriptor) (values.ModuleRef, ocispec.Descriptor, bool, error) {
	switch resolved.MediaType {
	case ocispec.MediaTypeImageManifest:
		ref, err := values.NewModuleRef(module, version)
		if err != nil {
			return values.ModuleRef{}, ocispec.Descriptor{}, false, err
		}
		return ref, resolved, true, nil

	case ocispec.MediaTypeImageIndex:
		data, err := o.readBlob(ctx, store, resolved, descriptorLimit)
		if err != nil {
			return values.ModuleRef{}, ocispec.Descriptor{}, false, err
		}
		var index ocispec.Index
		if err := json.Unmarshal(data, &index); err != nil {
			return values.ModuleRef{}, ocispec.Descriptor{}, false, &entities.FormatError{Source: resolved.Digest.String(), Err: err}
		}

		for _, m := range index.Manifests {
			if m.Platform == nil || !values.PlatformFromOCI(*m.Platform).Matches(o.platform) {
				continue
			}
			ref, err := values.NewPlatformModuleRef(module, version, o.platform)
			if err != nil {
				return values.ModuleRef{}, ocispec.Descriptor{}, false, err
			}
			return ref, m, true, nil
		}
		o.logger.Debug("skipping foreign-platform module",
			"module", module,
			"version", version.Original(),
			"host", o.platform.String())
		return values.ModuleRef{}, ocispec.Descriptor{}, false, nil

	default:
		o.logger.Warn("skipping artifact with unexpected media type",
			"module", module,
			"version", version.Original(),
			"mediaType", resolved.MediaType)
		return values.ModuleRef{}, ocispec.Descriptor{}, false, nil
	}
}

// descriptorFetch builds the deferred fetch for a module's descriptor: pull
// the image manifest, then its config blob.
func (o *OCI) descriptorFetch(store OCIStore, manifestDesc ocispec.Descriptor) entities.DescriptorFetch {
	return func(ctx context.Context) ([]byte, error) {
		manifest, err := o.imageManifest(ctx, store, manifestDesc)
		if err != nil {
			return nil, err
		}
		if manifest.Config.MediaType != MediaTypeDescriptor {
			return nil, &entities.FormatError{
				Source: manifestDesc.Digest.String(),
				Reason: fmt.Sprintf("config blob is %s, not a module descriptor", manifest.Config.MediaType),
			}
		}
		return o.readBlob(ctx, store, manifest.Config, descriptorLimit)
	}
}

// List returns the resolved definitions, initializing if needed.
func (o *OCI) List(ctx context.Context) ([]*entities.Definition, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.initLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(o.defs), nil
}

// Find searches the delegation chain.
func (o *OCI) Find(ctx context.Context, query values.Query) ([]*entities.Definition, error) {
	return o.delegatedFind(ctx, o, query)
}

// Materialize pulls the archive layer of a definition, verifies the embedded
// descriptor against the published one, and caches the verified bytes.
func (o *OCI) Materialize(ctx context.Context, def *entities.Definition) (content.Content, error) {
	if err := o.owns(def); err != nil {
		return nil, err
	}

	published, err := def.Descriptor(ctx)
	if err != nil {
		return nil, err
	}

	ref := def.Ref()
	if handle := cachedArchive(o.cache, o.logger, ref, published); handle != nil {
		return handle, nil
	}

	o.mu.Lock()
	manifestDesc, known := o.manifests[ref.String()]
	store := o.stores[ref.Name()]
	o.mu.Unlock()
	if !known || store == nil {
		return nil, &entities.InvalidArgumentError{Arg: "def", Reason: fmt.Sprintf("definition %s is not resolved by this repository", ref)}
	}

	manifest, err := o.imageManifest(ctx, store, manifestDesc)
	if err != nil {
		return nil, err
	}

	var layer ocispec.Descriptor
	var compressed, found bool
	for _, l := range manifest.Layers {
		if l.MediaType == MediaTypeArchiveGzip || l.MediaType == MediaTypeArchive {
			layer, compressed, found = l, l.MediaType == MediaTypeArchiveGzip, true
			break
		}
	}
	if !found {
		return nil, &entities.FormatError{Source: ref.String(), Reason: "manifest carries no module archive layer"}
	}

	data, err := o.readBlob(ctx, store, layer, o.maxArchive)
	if err != nil {
		return nil, err
	}

	embedded, err := archive.ExtractDescriptor(bytes.NewReader(data), compressed)
	if err != nil {
		return nil, err
	}
	if err := o.verifier.Verify(ref, published, embedded); err != nil {
		return nil, err
	}
	return storeVerified(o.cache, o.logger, ref, compressed, data), nil
}

// Close is a no-op; registry clients hold no persistent connections here.
func (o *OCI) Close() error {
	return nil
}

func (o *OCI) storeFor(module string) (OCIStore, error) {
	if store, ok := o.stores[module]; ok {
		return store, nil
	}
	store, err := o.provider(o.baseRef + "/" + module)
	if err != nil {
		return nil, fmt.Errorf("opening registry repository %s/%s: %w", o.baseRef, module, err)
	}
	o.stores[module] = store
	return store, nil
}

func (o *OCI) imageManifest(ctx context.Context, store OCIStore, desc ocispec.Descriptor) (*ocispec.Manifest, error) {
	data, err := o.readBlob(ctx, store, desc, descriptorLimit)
	if err != nil {
		return nil, err
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &entities.FormatError{Source: desc.Digest.String(), Err: err}
	}
	return &manifest, nil
}

// readBlob fetches a blob and verifies its size and digest against the
// descriptor.
func (o *OCI) readBlob(ctx context.Context, store OCIStore, desc ocispec.Descriptor, limit int64) ([]byte, error) {
	if desc.Size > limit {
		return nil, &entities.FetchError{
			URL: desc.Digest.String(),
			Err: &netutil.SizeLimitExceededError{Limit: limit, Read: desc.Size},
		}
	}
	rc, err := store.Fetch(ctx, desc)
	if err != nil {
		return nil, &entities.FetchError{URL: desc.Digest.String(), Err: err}
	}
	defer rc.Close()

	data, err := orascontent.ReadAll(rc, desc)
	if err != nil {
		return nil, &entities.FetchError{URL: desc.Digest.String(), Err: err}
	}
	return data, nil
}

var _ ports.Repository = (*OCI)(nil)
