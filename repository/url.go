package repository

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/modarc-dev/modarc/archive"
	"github.com/modarc-dev/modarc/cache"
	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/manifest"
	"github.com/modarc-dev/modarc/netutil"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/services"
	"github.com/modarc-dev/modarc/values"
)

const defaultFetchConcurrency = 4

// URL serves modules from a codebase published over http, https or file.
// The codebase root carries the repository manifest; module descriptors and
// archives live under the per-module layout.
//
// Initialization fetches the manifest and every descriptor eagerly. It runs
// lazily on first use, or during construction with WithEagerInitialize.
// Nothing partial survives a failed initialization; calling Initialize again
// starts over.
type URL struct {
	base
	codebase    string
	fetcher     *fetcher
	cache       *cache.Store
	platform    values.Platform
	verifier    *services.IntegrityVerifier
	concurrency int
	maxArchive  int64

	mu          sync.Mutex
	initialized bool
	defs        []*entities.Definition
	paths       map[string]string
}

// NewURL creates a URL-backed repository. The codebase must be an absolute
// http, https or file URL; its canonical form, credentials removed, becomes
// the repository source.
func NewURL(ctx context.Context, name, codebase string, opts ...Option) (*URL, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(cfg)
	}

	parsed, err := url.Parse(codebase)
	if err != nil {
		return nil, &entities.InvalidArgumentError{Arg: "codebase", Reason: err.Error()}
	}
	switch {
	case !parsed.IsAbs():
		return nil, &entities.InvalidArgumentError{Arg: "codebase", Reason: "not an absolute URL"}
	case parsed.Scheme != "http" && parsed.Scheme != "https" && parsed.Scheme != "file":
		return nil, &entities.InvalidArgumentError{Arg: "codebase", Reason: fmt.Sprintf("unsupported scheme %q", parsed.Scheme)}
	}

	b, err := newBase(name, netutil.NormalizeURL(codebase), cfg)
	if err != nil {
		return nil, err
	}

	u := &URL{
		base:        b,
		codebase:    codebase,
		fetcher:     newFetcher(cfg.client, cfg.logger),
		cache:       cfg.cache,
		platform:    cfg.platform,
		verifier:    services.NewIntegrityVerifier(services.WithIntegrityLogger(cfg.logger)),
		concurrency: cfg.settingInt(ConfigFetchConcurrency, defaultFetchConcurrency),
		maxArchive:  cfg.settingInt64(ConfigFetchMaxBytes, defaultArchiveLimit),
	}
	if cfg.eager {
		if err := u.Initialize(ctx); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Initialize fetches the manifest and all matching descriptors. A failed
// initialization leaves the repository unusable but retryable.
func (u *URL) Initialize(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.initLocked(ctx)
}

func (u *URL) initLocked(ctx context.Context) error {
	if u.initialized {
		return nil
	}

	manifestURL, err := services.ManifestURL(u.codebase)
	if err != nil {
		return fmt.Errorf("manifest location: %w", err)
	}
	data, err := u.fetcher.fetch(ctx, manifestURL, manifestLimit)
	if err != nil {
		return err
	}
	doc, err := manifest.Decode(data)
	if err != nil {
		return err
	}

	kept := make([]manifest.Entry, 0, len(doc.Modules))
	for _, entry := range doc.Modules {
		ref, err := entry.Ref()
		if err != nil {
			return &entities.FormatError{Source: "manifest", Err: err}
		}
		if p, bound := ref.Platform(); bound && !p.Matches(u.platform) {
			u.logger.Debug("skipping foreign-platform module",
				"ref", ref.String(),
				"host", u.platform.String())
			continue
		}
		kept = append(kept, entry)
	}

	defs := make([]*entities.Definition, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i, entry := range kept {
		g.Go(func() error {
			ref, err := entry.Ref()
			if err != nil {
				return &entities.FormatError{Source: "manifest", Err: err}
			}
			descURL, err := services.DescriptorURL(u.codebase, ref, entry.LayoutPath())
			if err != nil {
				return fmt.Errorf("descriptor location for %s: %w", ref, err)
			}
			desc, err := u.fetcher.fetch(gctx, descURL, descriptorLimit)
			if err != nil {
				return err
			}
			def, err := entities.NewDefinitionForRef(ref, desc, nil, u.id, true)
			if err != nil {
				return err
			}
			defs[i] = def
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	orderDefinitions(defs)

	paths := make(map[string]string)
	for _, entry := range kept {
		if entry.LayoutPath() == "" {
			continue
		}
		ref, _ := entry.Ref()
		paths[ref.String()] = entry.LayoutPath()
	}

	u.defs = defs
	u.paths = paths
	u.initialized = true
	u.logger.Info("remote repository initialized",
		"name", u.name,
		"codebase", u.source,
		"modules", len(defs))
	return nil
}

// List returns the definitions from the manifest, initializing if needed.
func (u *URL) List(ctx context.Context) ([]*entities.Definition, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.initLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(u.defs), nil
}

// Find searches the delegation chain.
func (u *URL) Find(ctx context.Context, query values.Query) ([]*entities.Definition, error) {
	return u.delegatedFind(ctx, u, query)
}

// Materialize downloads the archive for a definition, probing the compressed
// candidate before the plain one, verifies the embedded descriptor byte for
// byte, and caches the verified bytes. A verification mismatch discards the
// download and fails; no further candidate is tried.
func (u *URL) Materialize(ctx context.Context, def *entities.Definition) (content.Content, error) {
	if err := u.owns(def); err != nil {
		return nil, err
	}

	published, err := def.Descriptor(ctx)
	if err != nil {
		return nil, err
	}

	ref := def.Ref()
	if handle := cachedArchive(u.cache, u.logger, ref, published); handle != nil {
		return handle, nil
	}

	u.mu.Lock()
	layoutPath := u.paths[ref.String()]
	u.mu.Unlock()

	candidates, err := services.CandidateURLs(u.codebase, ref, layoutPath)
	if err != nil {
		return nil, fmt.Errorf("candidate locations for %s: %w", ref, err)
	}

	var attempts []entities.ProbeAttempt
	for _, cand := range candidates {
		safe := netutil.StripCredentials(cand.Location)

		data, err := u.fetcher.fetch(ctx, cand.Location, u.maxArchive)
		if err != nil {
			if isNotFound(err) {
				u.logger.Debug("archive candidate absent", "url", safe)
			} else {
				u.logger.Warn("archive candidate failed", "url", safe, "error", err)
			}
			attempts = append(attempts, entities.ProbeAttempt{Location: safe, Err: err})
			continue
		}

		embedded, err := archive.ExtractDescriptor(bytes.NewReader(data), cand.Compressed)
		if err != nil {
			attempts = append(attempts, entities.ProbeAttempt{Location: safe, Err: err})
			continue
		}
		if err := u.verifier.Verify(ref, published, embedded); err != nil {
			return nil, err
		}
		return storeVerified(u.cache, u.logger, ref, cand.Compressed, data), nil
	}
	return nil, &entities.ProbeError{Ref: ref, Attempts: attempts}
}

// Close releases idle HTTP connections.
func (u *URL) Close() error {
	u.fetcher.close()
	return nil
}

var _ ports.Repository = (*URL)(nil)
