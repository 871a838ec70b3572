// Package repository implements the repository variants: the in-memory
// bootstrap root, directory-backed local repositories, and the URL and OCI
// remote repositories. All variants share the delegation protocol and the
// locate-fetch-verify materialization pipeline.
package repository

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/modarc-dev/modarc/archive"
	"github.com/modarc-dev/modarc/cache"
	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/policy"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/services"
	"github.com/modarc-dev/modarc/values"
)

// Config keys recognized by the repository variants, passed through the
// settings map.
const (
	// ConfigScanPattern overrides the local descriptor glob, default *.metadata.
	ConfigScanPattern = "scan.pattern"
	// ConfigScanRecursive makes the local scan descend into subdirectories.
	ConfigScanRecursive = "scan.recursive"
	// ConfigFetchConcurrency bounds concurrent descriptor fetches, default 4.
	ConfigFetchConcurrency = "fetch.concurrency"
	// ConfigFetchMaxBytes bounds a single archive download, default 512 MiB.
	ConfigFetchMaxBytes = "fetch.max-bytes"
	// ConfigOCIModules lists the module names an OCI repository serves,
	// comma-separated.
	ConfigOCIModules = "oci.modules"
)

// base carries the identity and collaborators every variant shares.
type base struct {
	id       values.RepositoryID
	name     string
	source   string
	parent   ports.Repository
	logger   *slog.Logger
	policies *policy.Registry
}

func newBase(name, source string, cfg *options) (base, error) {
	if strings.TrimSpace(name) == "" {
		return base{}, &entities.InvalidArgumentError{Arg: "name", Reason: "empty"}
	}

	id := values.NewRepositoryID(name)
	if err := services.ValidateChain(id, cfg.parent); err != nil {
		return base{}, err
	}

	return base{
		id:       id,
		name:     name,
		source:   source,
		parent:   cfg.parent,
		logger:   cfg.logger,
		policies: cfg.policies,
	}, nil
}

// ID returns the process-unique repository identity.
func (b *base) ID() values.RepositoryID { return b.id }

// Name returns the repository name.
func (b *base) Name() string { return b.name }

// Parent returns the delegation parent, nil at the root.
func (b *base) Parent() ports.Repository { return b.parent }

// Source describes where the repository reads from.
func (b *base) Source() string { return b.source }

// owns rejects definitions issued by another repository.
func (b *base) owns(def *entities.Definition) error {
	if def == nil {
		return &entities.InvalidArgumentError{Arg: "def", Reason: "nil definition"}
	}
	if !def.Owner().Equal(b.id) {
		return &entities.InvalidArgumentError{
			Arg:    "def",
			Reason: fmt.Sprintf("definition %s belongs to repository %s, not %s", def.Ref(), def.Owner(), b.id),
		}
	}
	return nil
}

// visible applies the visibility policy. Without a registry everything is
// visible.
func (b *base) visible(def *entities.Definition) bool {
	if b.policies == nil {
		return true
	}
	return b.policies.Visibility().Visible(def)
}

// orderDefinitions sorts a listing by name, then descending version, then
// platform.
func orderDefinitions(defs []*entities.Definition) {
	slices.SortFunc(defs, func(a, b *entities.Definition) int {
		ra, rb := a.Ref(), b.Ref()
		if c := strings.Compare(ra.Name(), rb.Name()); c != 0 {
			return c
		}
		if c := rb.Version().Compare(ra.Version()); c != 0 {
			return c
		}
		pa, _ := ra.Platform()
		pb, _ := rb.Platform()
		return strings.Compare(pa.String(), pb.String())
	})
}

// delegatedFind runs the search protocol for self: every repository on the
// chain from the root down contributes its own matching definitions, filtered
// by the visibility policy.
func (b *base) delegatedFind(ctx context.Context, self ports.Repository, query values.Query) ([]*entities.Definition, error) {
	var out []*entities.Definition
	for _, repo := range services.DelegationChain(self) {
		defs, err := repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("searching repository %s: %w", repo.Name(), err)
		}
		for _, def := range defs {
			if query.Matches(def.Ref()) && b.visible(def) {
				out = append(out, def)
			}
		}
	}
	return out, nil
}

// cachedArchive serves a previously verified archive from the cache, nil on
// a miss. The store is keyed by ref alone and may be shared across
// repositories, so a hit is served only after its embedded descriptor is
// checked against the published one; a mismatched or unreadable entry counts
// as a miss and the archive is fetched again.
func cachedArchive(store *cache.Store, logger *slog.Logger, ref values.ModuleRef, published []byte) content.Content {
	if store == nil {
		return nil
	}
	for _, compressed := range []bool{true, false} {
		handle, err := store.Open(ref, compressed)
		if err != nil {
			continue
		}
		embedded, err := embeddedDescriptor(handle, compressed)
		if err != nil {
			logger.Warn("cached archive unreadable, refetching", "ref", ref.String(), "path", handle.Path(), "error", err)
			continue
		}
		if !bytes.Equal(published, embedded) {
			logger.Warn("cached archive does not match the published descriptor, refetching", "ref", ref.String(), "path", handle.Path())
			continue
		}
		logger.Debug("serving archive from cache", "ref", ref.String(), "path", handle.Path())
		return handle
	}
	return nil
}

func embeddedDescriptor(handle *content.File, compressed bool) ([]byte, error) {
	rc, err := handle.ReadCloser()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return archive.ExtractDescriptor(rc, compressed)
}

// storeVerified puts verified archive bytes into the cache when one is
// configured. Cache trouble never fails a successful download; the bytes are
// served from memory instead.
func storeVerified(store *cache.Store, logger *slog.Logger, ref values.ModuleRef, compressed bool, data []byte) content.Content {
	if store == nil {
		return content.FromBytes(data)
	}
	path, dig, err := store.Put(ref, compressed, bytes.NewReader(data))
	if err != nil {
		logger.Warn("caching archive failed", "ref", ref.String(), "error", err)
		return content.FromBytes(data)
	}
	logger.Debug("archive cached", "ref", ref.String(), "path", path, "digest", dig.String())
	return content.FromFile(path)
}
