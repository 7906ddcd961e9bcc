// Package ir defines the resolved element model for cbind.
//
// The IR is a tree of C++ declarations after lowering and type resolution:
// translation units, namespaces, classes, templates, typedefs, methods,
// fields and arguments. Each element embeds a Node that owns an ordered child
// list and a single parent back-reference.
//
// Element is a closed sum type. Only the variants in this package implement
// it, and consumers dispatch with exhaustive type switches:
//
//	switch el := e.(type) {
//	case *ir.Class:
//	case *ir.Method:
//	...
//	}
//
// Structural mutation goes through AddChild, AddAllChildren, RemoveChild and
// Adopt. These are the only entrypoints that touch parent pointers and they
// mark enclosing classes dirty so Class.IsNotEmpty is recomputed lazily.
//
// Types attached to elements (CppType, CType, HostType) form a second sealed
// family. They are values owned by exactly one element; CloneWithoutChildren
// deep-copies them so rewritten trees never alias type state.
//
// Canonical JSON (MarshalCanonical) and Fingerprint provide deterministic
// identity for whole trees. Template metadata uses the constrained Value
// family (no floats) so fingerprints stay stable across runs.
package ir
