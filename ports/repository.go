// Package ports defines the interfaces between the repository layer and its
// collaborators.
package ports

import (
	"context"

	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/values"
)

// Repository is a named, optionally parented source of module definitions.
// Repositories form a delegation chain through their parent links; the chain
// always ends at a single parentless root.
type Repository interface {
	// ID returns the process-unique identity of this repository instance.
	ID() values.RepositoryID

	// Name returns the repository name. Names need not be unique.
	Name() string

	// Parent returns the delegation parent, nil at the root.
	Parent() Repository

	// Source describes where this repository reads from: a directory path,
	// a codebase URL, or an OCI reference.
	Source() string

	// List returns the definitions this repository discovered itself,
	// without delegation, ordered by name and descending version.
	List(ctx context.Context) ([]*entities.Definition, error)

	// Find searches the delegation chain for definitions matching the
	// query: parents answer before this repository, and the visibility
	// policy filters every result.
	Find(ctx context.Context, query values.Query) ([]*entities.Definition, error)

	// Materialize locates, fetches and verifies the archive for one of
	// this repository's own definitions and returns its content handle.
	// Definitions owned by another repository are rejected.
	Materialize(ctx context.Context, def *entities.Definition) (content.Content, error)

	// Close releases held resources. Repositories without open network
	// resources treat this as a no-op.
	Close() error
}

// PermissionChecker is the boundary object consulted before privileged
// operations: repository creation, policy replacement, shutdown. A nil error
// grants the action; any other outcome is reported as a permission denial
// before the operation mutates anything.
type PermissionChecker interface {
	Check(action values.Action, resource string) error
}
