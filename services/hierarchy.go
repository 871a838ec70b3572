// Package services holds the domain logic shared by the repository variants:
// delegation chain handling, artifact location and integrity verification.
package services

import (
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/values"
)

// ValidateChain checks that attaching a repository under parent keeps the
// delegation chain acyclic. It walks parent to root and fails with a
// CircularityError when the candidate identity, or any other identity, would
// appear twice. Identity comparison uses RepositoryID, never the name.
//
// Every repository constructor runs this before touching its source, so a
// misconfigured hierarchy is reported without any directory scan or network
// fetch.
func ValidateChain(candidate values.RepositoryID, parent ports.Repository) error {
	seen := map[values.RepositoryID]bool{candidate: true}
	chain := []string{candidate.String()}

	for node := parent; node != nil; node = node.Parent() {
		id := node.ID()
		if seen[id] {
			return &entities.CircularityError{Repository: id, Chain: append(chain, id.String())}
		}
		seen[id] = true
		chain = append(chain, id.String())
	}
	return nil
}

// DelegationChain returns the repositories consulted for a search, in
// consultation order: the root first, the repository itself last. The walk
// stops at the first repeated identity, so an unvalidated cycle cannot loop.
func DelegationChain(repo ports.Repository) []ports.Repository {
	seen := make(map[values.RepositoryID]bool)
	var toRoot []ports.Repository
	for node := repo; node != nil; node = node.Parent() {
		if seen[node.ID()] {
			break
		}
		seen[node.ID()] = true
		toRoot = append(toRoot, node)
	}

	chain := make([]ports.Repository, len(toRoot))
	for i, node := range toRoot {
		chain[len(toRoot)-1-i] = node
	}
	return chain
}
