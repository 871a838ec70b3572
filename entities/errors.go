package entities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/modarc-dev/modarc/values"
)

// Sentinel errors for the failure categories of the repository layer.
// These allow both errors.Is() checks and errors.As() for detailed information.
var (
	// ErrInvalidArgument is returned when a required argument is absent or malformed.
	// It is reported before any other failure mode.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCircularDelegation is returned when a repository would appear twice in
	// its own delegation chain.
	ErrCircularDelegation = errors.New("circular repository delegation")

	// ErrPermissionDenied is returned when the permission collaborator rejects an action.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrModuleNotFound is returned when no definition matches a query.
	ErrModuleNotFound = errors.New("module not found")

	// ErrUnavailable is returned when a source cannot be reached or an artifact
	// cannot be fetched from any candidate location.
	ErrUnavailable = errors.New("source unavailable")

	// ErrMalformed is returned when a manifest or descriptor cannot be decoded.
	ErrMalformed = errors.New("malformed document")

	// ErrIntegrity is returned when an archive's embedded descriptor differs
	// from the published one.
	ErrIntegrity = errors.New("integrity check failed")
)

// InvalidArgumentError names the argument that failed validation.
type InvalidArgumentError struct {
	Arg    string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Arg, e.Reason)
}

// Is implements error matching for errors.Is() checks.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// CircularityError reports the delegation chain that would contain a repository twice.
type CircularityError struct {
	Repository values.RepositoryID
	Chain      []string
}

func (e *CircularityError) Error() string {
	return fmt.Sprintf("repository %s already appears in delegation chain [%s]",
		e.Repository, strings.Join(e.Chain, " -> "))
}

// Is implements error matching for errors.Is() checks.
func (e *CircularityError) Is(target error) bool {
	return target == ErrCircularDelegation
}

// PermissionDeniedError reports the rejected action and its target resource.
type PermissionDeniedError struct {
	Action   values.Action
	Resource string
}

func (e *PermissionDeniedError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("permission denied: %s", e.Action)
	}
	return fmt.Sprintf("permission denied: %s on %s", e.Action, e.Resource)
}

// Is implements error matching for errors.Is() checks.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// ModuleNotFoundError reports the query no definition matched.
type ModuleNotFoundError struct {
	Query values.Query
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module not found: %s", e.Query)
}

// Is implements error matching for errors.Is() checks.
func (e *ModuleNotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}

// FetchError reports a failed fetch of a single remote resource.
// Status is the HTTP status code when one was received, zero otherwise.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is() checks.
func (e *FetchError) Is(target error) bool {
	return target == ErrUnavailable
}

// ProbeAttempt records one failed candidate location during materialization.
type ProbeAttempt struct {
	Location string
	Err      error
}

// ProbeError reports that every candidate location for a module artifact failed.
// It enumerates each attempted location with its failure.
type ProbeError struct {
	Ref      values.ModuleRef
	Attempts []ProbeAttempt
}

func (e *ProbeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no artifact for %s, attempted %d locations:", e.Ref, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s: %v", a.Location, a.Err)
	}
	return b.String()
}

// Is implements error matching for errors.Is() checks.
func (e *ProbeError) Is(target error) bool {
	return target == ErrUnavailable
}

// FormatError reports an undecodable manifest or descriptor.
type FormatError struct {
	Source string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("malformed %s: %s", e.Source, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is() checks.
func (e *FormatError) Is(target error) bool {
	return target == ErrMalformed
}

// IntegrityError indicates that the descriptor embedded in a fetched archive
// is not byte-identical to the published descriptor. The digests identify the
// two sides for diagnostics; the comparison itself is exact bytes, never
// digest equality.
type IntegrityError struct {
	Ref       values.ModuleRef
	Published digest.Digest
	Embedded  digest.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: published descriptor %s, embedded descriptor %s",
		e.Ref, e.Published, e.Embedded)
}

// Is implements error matching for errors.Is() checks.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
