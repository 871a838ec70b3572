// Package content provides read-only accessors for verified module archives.
//
// Repositories hand out Content values after integrity verification; consumers
// treat them as opaque byte sources. Size and digest are optional facets a
// handle may expose on top of the plain reader.
package content

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// SizeUnknown is reported by SizeAware handles that cannot determine their size.
const SizeUnknown int64 = -1

// Content is an opaque accessor for a module archive. Every ReadCloser call
// returns a fresh reader positioned at the start of the archive.
type Content interface {
	ReadCloser() (io.ReadCloser, error)
}

// SizeAware is implemented by handles that know their byte size up front.
type SizeAware interface {
	Size() int64
}

// DigestAware is implemented by handles that can report a digest of their bytes.
type DigestAware interface {
	Digest() (digest.Digest, bool)
}
