package content

import (
	"bytes"
	"io"

	"github.com/opencontainers/go-digest"
)

// Bytes is an in-memory archive handle.
type Bytes struct {
	data []byte
	dig  digest.Digest
}

var (
	_ Content     = (*Bytes)(nil)
	_ SizeAware   = (*Bytes)(nil)
	_ DigestAware = (*Bytes)(nil)
)

// FromBytes wraps a byte slice. The handle keeps the slice as-is; callers
// must not modify it afterwards.
func FromBytes(data []byte) *Bytes {
	return &Bytes{data: data, dig: digest.FromBytes(data)}
}

// ReadCloser returns a fresh reader over the bytes.
func (b *Bytes) ReadCloser() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// Size returns the byte length.
func (b *Bytes) Size() int64 {
	return int64(len(b.data))
}

// Digest returns the canonical digest of the bytes.
func (b *Bytes) Digest() (digest.Digest, bool) {
	return b.dig, true
}
