// Package filter provides the predicate language used to select IR elements
// for resolution and for mapping rules.
//
// A Predicate is a small closed tree:
//
//	All                          matches everything
//	TypeKind{class, method}      element kind test
//	And / Or                     flattened boolean groups
//	Not                          negation
//	Hierarchy{parent, p}         re-targets p to the parent, base class,
//	                             any child or all children
//	StringMatch{sel, op, value}  compares a selected string
//
// Predicate is a sealed interface using the marker method pattern, so every
// consumer (the evaluator, Validate, the JSON codec and the SQL compiler in
// querysql) handles the complete set of variants in one type switch.
//
// Evaluation is total. A selector that does not apply to an element (the
// class name of a method, say) makes the comparison false rather than
// failing, an invalid regular expression never matches, and a hierarchy
// target with nothing to look at yields a fixed answer: false for parent,
// base and any-child, true for all-children over zero children.
//
// Evaluation is pure. The same predicate against the same unmodified element
// always yields the same answer, so results may be cached by callers.
//
// AndOf and OrOf flatten directly nested groups of the same operator:
//
//	AndOf(AndOf(a, b), c) == AndOf(a, b, c)
//
// Predicates cross process boundaries as JSON (Marshal, Unmarshal):
//
//	{"op":"and","args":[{"op":"kind","kinds":["class"]},
//	  {"op":"not","arg":{"op":"string","selector":"class_qualified","match":"starts_with","value":"std::"}}]}
package filter
