package filter

import (
	"fmt"
	"slices"
)

// ValidationResult reports problems found in a predicate tree.
//
// Errors make a predicate unusable (it would silently never match, or the
// tree is malformed). Warnings flag predicates that evaluate correctly in
// memory but cannot be compiled to SQL for snapshot queries.
type ValidationResult struct {
	Errors   []string
	Warnings []string

	// IsPortable is true when the predicate can be compiled by querysql.
	IsPortable bool
}

// Valid reports whether no errors were found.
func (r ValidationResult) Valid() bool { return len(r.Errors) == 0 }

// Validate checks a predicate tree. It is a pure function.
func Validate(p Predicate) ValidationResult {
	v := &validator{}
	v.validate(p, "$")
	return ValidationResult{
		Errors:     v.errors,
		Warnings:   v.warnings,
		IsPortable: len(v.errors) == 0 && len(v.warnings) == 0,
	}
}

type validator struct {
	errors   []string
	warnings []string
}

func (v *validator) addError(path, format string, args ...any) {
	v.errors = append(v.errors, path+": "+fmt.Sprintf(format, args...))
}

func (v *validator) addWarning(path, format string, args ...any) {
	v.warnings = append(v.warnings, path+": "+fmt.Sprintf(format, args...))
}

func (v *validator) validate(p Predicate, path string) {
	switch p := p.(type) {
	case nil:
		v.addError(path, "nil predicate")
	case All:
	case TypeKind:
		if len(p.Kinds) == 0 {
			v.addWarning(path, "kind predicate with no kinds never matches")
		}
		for _, k := range p.Kinds {
			if !slices.Contains(elementKinds, k) {
				v.addError(path, "unknown element kind %q", k)
			}
		}
	case And:
		for i, q := range p.Predicates {
			v.validate(q, fmt.Sprintf("%s.and[%d]", path, i))
		}
	case Or:
		for i, q := range p.Predicates {
			v.validate(q, fmt.Sprintf("%s.or[%d]", path, i))
		}
	case Not:
		v.validate(p.Predicate, path+".not")
	case Hierarchy:
		if !slices.Contains(hierarchyTargets, p.Target) {
			v.addError(path, "unknown hierarchy target %q", p.Target)
		}
		v.addWarning(path, "hierarchy predicate (%s) is not compiled to SQL", p.Target)
		v.validate(p.Predicate, path+"."+string(p.Target))
	case StringMatch:
		if !slices.Contains(selectors, p.Selector) {
			v.addError(path, "unknown selector %q", p.Selector)
		}
		if !slices.Contains(matchOps, p.Op) {
			v.addError(path, "unknown match op %q", p.Op)
		}
		if p.Op == OpRegex {
			if _, err := compileAnchored(p.Value); err != nil {
				v.addError(path, "invalid regex %q: %v", p.Value, err)
			}
			v.addWarning(path, "regex match is not compiled to SQL")
		}
	default:
		v.addError(path, "unknown predicate type %T", p)
	}
}

// KnownSelectors lists every selector name, for diagnostics.
func KnownSelectors() []string {
	out := make([]string, len(selectors))
	for i, s := range selectors {
		out[i] = string(s)
	}
	return out
}
