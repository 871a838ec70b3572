package content

import (
	"io"
	"os"
	"sync"

	"github.com/opencontainers/go-digest"
)

// File is an archive handle backed by a file on disk, typically the archive
// cache. The digest is computed once, on first request.
type File struct {
	path string

	digestOnce sync.Once
	dig        digest.Digest
	digestErr  error
}

var (
	_ Content     = (*File)(nil)
	_ SizeAware   = (*File)(nil)
	_ DigestAware = (*File)(nil)
)

// FromFile wraps a file path.
func FromFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// ReadCloser opens the backing file.
func (f *File) ReadCloser() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Size returns the file size, SizeUnknown when it cannot be determined.
func (f *File) Size() int64 {
	info, err := os.Stat(f.path)
	if err != nil {
		return SizeUnknown
	}
	return info.Size()
}

// Digest returns the canonical digest of the file contents.
func (f *File) Digest() (digest.Digest, bool) {
	f.digestOnce.Do(func() {
		r, err := os.Open(f.path)
		if err != nil {
			f.digestErr = err
			return
		}
		defer r.Close()
		f.dig, f.digestErr = digest.Canonical.FromReader(r)
	})
	if f.digestErr != nil {
		return "", false
	}
	return f.dig, true
}
