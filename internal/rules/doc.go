// Package rules compiles CUE rule files into mapping rules.
//
// A rule file declares named rules under a top-level rule struct. Each rule
// has a filter and an action:
//
//	rule: drop_std: {
//		filter: {
//			kind:            "class"
//			class_qualified: starts_with: "std::"
//		}
//		action: remove: true
//	}
//
//	rule: strip_const: {
//		filter: method_return_type: starts_with: "const "
//		action: return_type: trim_prefix: "const "
//	}
//
// Filter keys are ANDed. Besides the string selectors (class_name,
// method_return_type, ...) a filter accepts kind, not, any, all and the
// hierarchy keys parent, base, any_child and all_children. A selector takes
// either a string, meaning equals, or one of equals, contains, starts_with,
// ends_with and regex.
//
// Actions are remove, rename, return_type and type; the last two either
// trim_prefix a spelling or set a new one. Rules run in file order, then
// declaration order.
package rules
