package resolver

import (
	"errors"
	"fmt"
)

// Policy decides what happens to an element whose type references
// something the resolver cannot map.
type Policy string

const (
	// PolicyIgnore drops the element.
	PolicyIgnore Policy = "ignore"

	// PolicyOpaque replaces the unknown type with an opaque pointer.
	PolicyOpaque Policy = "opaque"

	// PolicyThrow aborts resolution with an UnresolvedError.
	PolicyThrow Policy = "throw"

	// PolicyInclude pulls referenced classes outside the filter into the
	// output, transitively, and drops what still cannot be resolved.
	PolicyInclude Policy = "include"
)

// Policies lists the valid policies.
var Policies = []Policy{PolicyIgnore, PolicyOpaque, PolicyThrow, PolicyInclude}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	for _, p := range Policies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown reference policy %q (want ignore, opaque, throw or include)", s)
}

// UnresolvedError reports a type reference the resolver could not map.
type UnresolvedError struct {
	// Spelling is the type as written.
	Spelling string

	// Element describes the element that referenced it, when known.
	Element string

	// Reason says which part failed.
	Reason string
}

func (e *UnresolvedError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("unresolved type %q in %s: %s", e.Spelling, e.Element, e.Reason)
	}
	return fmt.Sprintf("unresolved type %q: %s", e.Spelling, e.Reason)
}

// IsUnresolvedError reports whether err is an UnresolvedError.
func IsUnresolvedError(err error) bool {
	var ue *UnresolvedError
	return errors.As(err, &ue)
}
