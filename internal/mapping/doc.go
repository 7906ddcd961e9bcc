// Package mapping applies user rewrite rules to the IR.
//
// A Mapper pairs a filter predicate with a callback. For every element the
// predicate accepts, the Engine hands the callback a fresh Scope and the
// element. The callback records structural edits on the scope (Remove,
// ReplaceWith, Add, Edit); it never mutates the live tree. When the
// callback returns, the scope's log is folded by Collapse into exactly one
// Intent, and the Engine is the only code that applies it.
//
// Per invocation:
//
//	Idle -> Matched (filter accepted) -> Executing (callback records edits)
//	     -> Resolved (one of NoChange, RemoveSelf, RemoveParent, ReplaceSelf,
//	        ReplaceParent, AddToSelf, AddToParent)
//
// Edits on an element other than the target or its parent are lifted: the
// scope clones that element's parent without children, restages the
// original children by reference with the edit applied, and treats the
// clone as a replacement of the parent, recursing until the replacement
// lands on the target or the target's parent. Untouched siblings are shared
// with the old tree, never copied, and only one new ancestor chain is
// allocated per edit.
//
// Contradictory decisions on the same element within one callback resolve
// as last decision wins. Engines built WithStrictEdits reject them instead.
package mapping
