package values

import (
	"fmt"
	"sync/atomic"
)

var repositorySeq atomic.Uint64

// RepositoryID is the process-unique identity of a repository instance.
// Names are not required to be unique, so circularity detection and the
// repository table key on the identity, never on the name.
type RepositoryID struct {
	name string
	seq  uint64
}

// NewRepositoryID allocates a fresh identity for a repository name.
func NewRepositoryID(name string) RepositoryID {
	return RepositoryID{name: name, seq: repositorySeq.Add(1)}
}

// Name returns the repository name the identity was created for.
func (id RepositoryID) Name() string {
	return id.name
}

// IsZero reports whether the identity is unset.
func (id RepositoryID) IsZero() bool {
	return id.seq == 0
}

// Equal checks identity equality.
func (id RepositoryID) Equal(other RepositoryID) bool {
	return id.seq == other.seq && id.name == other.name
}

// String renders the identity for logs and error text.
func (id RepositoryID) String() string {
	return fmt.Sprintf("%s#%d", id.name, id.seq)
}
