package services

import (
	"bytes"
	"log/slog"

	"github.com/opencontainers/go-digest"

	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/values"
)

// IntegrityVerifier checks that the descriptor embedded in a fetched archive
// is byte-identical to the separately published one. The comparison is exact
// bytes: no parsing, no canonicalization, no digest shortcut. One flipped bit
// fails verification.
type IntegrityVerifier struct {
	logger *slog.Logger
}

// IntegrityOption configures an IntegrityVerifier.
type IntegrityOption func(*IntegrityVerifier)

// WithIntegrityLogger sets the logger.
func WithIntegrityLogger(logger *slog.Logger) IntegrityOption {
	return func(v *IntegrityVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewIntegrityVerifier creates a verifier.
func NewIntegrityVerifier(opts ...IntegrityOption) *IntegrityVerifier {
	v := &IntegrityVerifier{logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify compares the published descriptor against the embedded one. On
// mismatch it returns an IntegrityError carrying both digests; the caller
// must discard the archive.
func (v *IntegrityVerifier) Verify(ref values.ModuleRef, published, embedded []byte) error {
	if bytes.Equal(published, embedded) {
		return nil
	}

	err := &entities.IntegrityError{
		Ref:       ref,
		Published: digest.FromBytes(published),
		Embedded:  digest.FromBytes(embedded),
	}
	v.logger.Warn("module integrity check failed",
		slog.String("module", ref.String()),
		slog.String("published", err.Published.String()),
		slog.String("embedded", err.Embedded.String()),
	)
	return err
}
