package values

import (
	"github.com/Masterminds/semver/v3"
)

// Query describes a module search: an exact name plus an optional version
// constraint. A nil constraint matches every version.
type Query struct {
	name       string
	constraint *semver.Constraints
}

// NewQuery creates a query for a name under a version constraint.
func NewQuery(name string, constraint *semver.Constraints) Query {
	return Query{name: name, constraint: constraint}
}

// AnyVersion creates a query matching every version of a name.
func AnyVersion(name string) Query {
	return Query{name: name}
}

// ParseQuery parses a name with a textual constraint, e.g. ("web", ">= 1.2").
// The constraint "latest" and the empty string match every version.
func ParseQuery(name, constraint string) (Query, error) {
	if constraint == "" || constraint == "latest" {
		return AnyVersion(name), nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return Query{}, err
	}
	return Query{name: name, constraint: c}, nil
}

// Name returns the queried module name.
func (q Query) Name() string {
	return q.name
}

// Constraint returns the version constraint, nil when any version matches.
func (q Query) Constraint() *semver.Constraints {
	return q.constraint
}

// Matches reports whether a reference satisfies the query.
func (q Query) Matches(ref ModuleRef) bool {
	if ref.Name() != q.name {
		return false
	}
	if q.constraint == nil {
		return true
	}
	return q.constraint.Check(ref.Version())
}

// String renders the query for logs and error text.
func (q Query) String() string {
	if q.constraint == nil {
		return q.name
	}
	return q.name + "@" + q.constraint.String()
}
