// Package cache persists module archives on the local filesystem so remote
// repositories download each artifact at most once.
package cache

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/opencontainers/go-digest"

	"github.com/modarc-dev/modarc/archive"
	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/services"
	"github.com/modarc-dev/modarc/values"
)

const (
	defaultDirPermissions  = 0o750
	defaultFilePermissions = 0o640
)

// Store is a directory of module archives laid out as
// {root}/{name}/{version}[/{os}-{arch}]/{filename}. Writes go through a
// temporary file and an atomic rename, so readers never observe a partial
// archive.
type Store struct {
	root     string
	logger   *slog.Logger
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for store operations.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDirPermissions sets the mode for created directories.
func WithDirPermissions(perm os.FileMode) StoreOption {
	return func(s *Store) {
		s.dirPerm = perm
	}
}

// WithFilePermissions sets the mode for stored archives.
func WithFilePermissions(perm os.FileMode) StoreOption {
	return func(s *Store) {
		s.filePerm = perm
	}
}

// DefaultRoot returns the per-user archive cache directory.
func DefaultRoot() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving user cache directory: %w", err)
	}
	return filepath.Join(base, "modarc", "archives"), nil
}

// NewStore opens (creating if necessary) an archive store rooted at root.
// An empty root selects DefaultRoot.
func NewStore(root string, opts ...StoreOption) (*Store, error) {
	if root == "" {
		var err error
		root, err = DefaultRoot()
		if err != nil {
			return nil, err
		}
	}

	s := &Store{
		root:     filepath.Clean(root),
		logger:   slog.Default(),
		dirPerm:  defaultDirPermissions,
		filePerm: defaultFilePermissions,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.root, s.dirPerm); err != nil {
		return nil, fmt.Errorf("creating cache root %s: %w", s.root, err)
	}
	return s, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the location an archive for ref occupies in the store,
// whether or not one is present.
func (s *Store) Path(ref values.ModuleRef, compressed bool) (string, error) {
	return s.archivePath(ref, compressed)
}

// Put streams an archive into the store and returns its final path and
// canonical digest. The digest is computed while writing, so callers can
// verify it against a published value without re-reading the file.
func (s *Store) Put(ref values.ModuleRef, compressed bool, r io.Reader) (string, digest.Digest, error) {
	dst, err := s.archivePath(ref, compressed)
	if err != nil {
		return "", "", err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return "", "", fmt.Errorf("creating cache directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return "", "", fmt.Errorf("creating temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	digester := digest.Canonical.Digester()
	size, err := io.Copy(tmp, io.TeeReader(r, digester.Hash()))
	if err != nil {
		return "", "", fmt.Errorf("writing archive for %s: %w", ref, err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", fmt.Errorf("closing archive for %s: %w", ref, err)
	}
	if err := os.Chmod(tmpName, s.filePerm); err != nil {
		return "", "", fmt.Errorf("setting permissions on archive for %s: %w", ref, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", "", fmt.Errorf("storing archive for %s: %w", ref, err)
	}
	tmpName = ""

	dig := digester.Digest()
	s.logger.Debug("archive cached",
		"ref", ref.String(),
		"path", dst,
		"size", size,
		"digest", dig.String())
	return dst, dig, nil
}

// Open returns a handle to a cached archive. The caller distinguishes a cache
// miss with errors.Is(err, fs.ErrNotExist).
func (s *Store) Open(ref values.ModuleRef, compressed bool) (*content.File, error) {
	path, err := s.archivePath(ref, compressed)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return content.FromFile(path), nil
}

// Remove deletes every cached archive of a module version.
func (s *Store) Remove(ref values.ModuleRef) error {
	path, err := s.archivePath(ref, false)
	if err != nil {
		return err
	}
	return os.RemoveAll(filepath.Dir(path))
}

// List enumerates the module references with at least one cached archive,
// ordered by name, version, then platform. Entries whose layout cannot be
// parsed back into a reference are skipped.
func (s *Store) List(ctx context.Context) ([]values.ModuleRef, error) {
	seen := make(map[string]values.ModuleRef)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isArchiveName(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		ref, ok := s.refFromLayout(rel)
		if !ok {
			s.logger.Debug("skipping unrecognized cache entry", "path", rel)
			return nil
		}
		seen[ref.String()] = ref
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing archive cache: %w", err)
	}

	refs := make([]values.ModuleRef, 0, len(seen))
	for _, ref := range seen {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, values.ModuleRef.Compare)
	return refs, nil
}

func isArchiveName(name string) bool {
	return strings.HasSuffix(name, archive.Extension) || strings.HasSuffix(name, archive.CompressedExtension)
}

// refFromLayout reconstructs a reference from a root-relative archive path.
func (s *Store) refFromLayout(rel string) (values.ModuleRef, bool) {
	segments := strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/")
	if len(segments) != 2 && len(segments) != 3 {
		return values.ModuleRef{}, false
	}

	version, err := semver.NewVersion(segments[1])
	if err != nil {
		return values.ModuleRef{}, false
	}

	platform := values.Platform{}
	if len(segments) == 3 {
		platform, err = values.ParsePlatform(segments[2])
		if err != nil {
			return values.ModuleRef{}, false
		}
	}

	ref, err := values.NewPlatformModuleRef(segments[0], version, platform)
	if err != nil {
		return values.ModuleRef{}, false
	}
	return ref, true
}

// archivePath maps a reference to its on-disk location, rejecting references
// whose layout would escape the store root.
func (s *Store) archivePath(ref values.ModuleRef, compressed bool) (string, error) {
	layout := filepath.FromSlash(services.DefaultLayoutPath(ref))
	if filepath.IsAbs(layout) {
		return "", &entities.InvalidArgumentError{Arg: "ref", Reason: fmt.Sprintf("absolute cache path for %q", ref)}
	}

	full := filepath.Join(s.root, layout, archive.FileName(ref, compressed))
	cleanPath := filepath.Clean(full)
	if !strings.HasPrefix(cleanPath, s.root+string(os.PathSeparator)) {
		return "", &entities.InvalidArgumentError{Arg: "ref", Reason: fmt.Sprintf("cache path traversal for %q", ref)}
	}
	return cleanPath, nil
}
