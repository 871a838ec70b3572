// Package permission implements the collaborator consulted before privileged
// operations: repository creation and shutdown, policy replacement, and cache
// enumeration. Checkers range from the static allow/deny variants to an
// interactive gatekeeper that prompts and persists grants.
package permission

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/values"
)

// AllowAll grants every action. It is the default checker.
type AllowAll struct{}

// Check always succeeds.
func (AllowAll) Check(values.Action, string) error { return nil }

// DenyAll refuses every action. Useful for locked-down embedders and tests.
type DenyAll struct{}

// Check always fails.
func (DenyAll) Check(action values.Action, resource string) error {
	return &entities.PermissionDeniedError{Action: action, Resource: resource}
}

// Static grants from a fixed allow-list. An action maps to the resource
// patterns it is granted for; an empty pattern list grants the action on any
// resource. Actions missing from the map are denied.
type Static struct {
	Grants map[values.Action][]string
}

// Check matches the action's patterns against the resource.
func (s Static) Check(action values.Action, resource string) error {
	patterns, ok := s.Grants[action]
	if !ok {
		return &entities.PermissionDeniedError{Action: action, Resource: resource}
	}
	if len(patterns) == 0 {
		return nil
	}
	for _, pattern := range patterns {
		if matchResource(pattern, resource) {
			return nil
		}
	}
	return &entities.PermissionDeniedError{Action: action, Resource: resource}
}

// matchResource treats the pattern as a doublestar glob. An empty pattern
// matches everything, and a pattern equal to the resource always matches,
// even when it contains glob metacharacters.
func matchResource(pattern, resource string) bool {
	if pattern == "" || pattern == resource {
		return true
	}
	ok, err := doublestar.Match(pattern, resource)
	return err == nil && ok
}

var (
	_ ports.PermissionChecker = AllowAll{}
	_ ports.PermissionChecker = DenyAll{}
	_ ports.PermissionChecker = Static{}
)
