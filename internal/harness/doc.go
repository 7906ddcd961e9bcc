// Package harness runs end-to-end binding scenarios.
//
// A scenario feeds headers through a real session (index, filter and
// resolve, mapping rules, write) and then checks the written snapshot.
//
// # Scenario Format
//
//	name: const_refs
//	description: "const reference returns lose their const"
//	config:
//	  module: geo
//	  reference_policy: opaque
//	headers:
//	  shapes.h: |
//	    namespace geo { class Shape { public: const Shape& self() const; }; }
//	filter: 'class_qualified: starts_with: "geo::"'
//	rules: |
//	  rule: strip_const: {
//	    filter: method_return_type: starts_with: "const "
//	    action: return_type: trim_prefix: "const "
//	  }
//	assertions:
//	  - type: count
//	    filter: 'kind: "method", method_return_type: starts_with: "const "'
//	    count: 0
//	  - type: contains
//	    description: "cls(Shape)"
//
// Filters use the rule filter syntax without the surrounding braces. A
// scenario expecting a session failure names its code in expect_error and
// may omit assertions.
//
// # Assertion Types
//
//   - count: the filter selects exactly count elements of the snapshot
//   - exists: the filter selects at least one element
//   - absent: the filter selects nothing
//   - contains: an element with the given description was written
//   - intents: count intents of the given kind were applied
//
// Filter assertions run in SQL against the written snapshot.
//
// # Determinism
//
// Each run uses a fresh session clock and a handle equal to the scenario
// name, so identical scenarios produce byte-identical snapshots for golden
// comparison.
package harness
