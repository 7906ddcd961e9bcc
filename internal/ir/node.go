package ir

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

// Kind names an element variant.
type Kind string

const (
	KindTranslationUnit Kind = "translation_unit"
	KindNamespace       Kind = "namespace"
	KindClass           Kind = "class"
	KindTemplate        Kind = "template"
	KindTypedef         Kind = "typedef"
	KindMethod          Kind = "method"
	KindField           Kind = "field"
	KindArgument        Kind = "argument"
)

// Element is a sealed interface over the IR node variants.
// Only *TranslationUnit, *Namespace, *Class, *Template, *Typedef, *Method,
// *Field and *Argument implement it.
type Element interface {
	Kind() Kind
	Parent() Element
	Children() []Element
	String() string

	node() *Node
	isElement()
}

// Precondition failures for structural edits.
var (
	ErrDuplicateChild = errors.New("child already present")
	ErrHasParent      = errors.New("child already owned by another parent")
	ErrNilElement     = errors.New("nil element")
	ErrNotChild       = errors.New("not a child")
)

// Node is the shared base of every element: an ordered child list and the
// owning parent. The zero value is an empty detached node.
type Node struct {
	parent   Element
	children []Element
}

func (n *Node) node() *Node { return n }

// Parent returns the owning element, or nil at the root.
func (n *Node) Parent() Element { return n.parent }

// Children returns a copy of the child list in document order.
func (n *Node) Children() []Element { return slices.Clone(n.children) }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// ChildAt returns the i-th child or nil when i is out of range.
func (n *Node) ChildAt(i int) Element {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// IndexOf returns the position of child among parent's children using
// identity, or -1 if absent.
func IndexOf(parent, child Element) int {
	if parent == nil || child == nil {
		return -1
	}
	for i, c := range parent.node().children {
		if c == child {
			return i
		}
	}
	return -1
}

// Equal reports whether two elements count as the same child.
// Elements compare by identity; arguments additionally compare by name and
// type spelling.
func Equal(a, b Element) bool {
	if a == b {
		return true
	}
	aa, ok := a.(*Argument)
	if !ok {
		return false
	}
	ba, ok := b.(*Argument)
	if !ok {
		return false
	}
	return aa.Name == ba.Name && aa.Type.String() == ba.Type.String()
}

func contains(children []Element, child Element) bool {
	for _, c := range children {
		if Equal(c, child) {
			return true
		}
	}
	return false
}

func checkAdd(parent Element, existing []Element, child Element) error {
	if child == nil {
		return ErrNilElement
	}
	if contains(existing, child) {
		return fmt.Errorf("add %s to %s: %w", child, parent, ErrDuplicateChild)
	}
	if p := child.Parent(); p != nil && p != parent {
		return fmt.Errorf("add %s to %s: %w (owner %s)", child, parent, ErrHasParent, p)
	}
	return nil
}

// AddChild appends child to parent. It fails when an equal child is already
// present or child belongs to a different parent.
func AddChild(parent, child Element) error {
	if parent == nil {
		return ErrNilElement
	}
	if err := checkAdd(parent, parent.node().children, child); err != nil {
		return err
	}
	attach(parent, child)
	return nil
}

// AddAllChildren appends children in order. The precondition is checked for
// the whole batch (including duplicates within it) before anything is added.
func AddAllChildren(parent Element, children ...Element) error {
	if parent == nil {
		return ErrNilElement
	}
	seen := parent.node().children
	for _, c := range children {
		if err := checkAdd(parent, seen, c); err != nil {
			return err
		}
		seen = append(slices.Clip(seen), c)
	}
	for _, c := range children {
		attach(parent, c)
	}
	return nil
}

// MustAdd adds children and panics on a precondition failure.
// Use only when building trees from known-good inputs (tests, fixtures).
func MustAdd(parent Element, children ...Element) Element {
	if err := AddAllChildren(parent, children...); err != nil {
		panic(err)
	}
	return parent
}

// RemoveChild detaches child (by identity) and clears its parent pointer.
// Returns false if child was not present.
func RemoveChild(parent, child Element) bool {
	if parent == nil || child == nil {
		return false
	}
	n := parent.node()
	idx := IndexOf(parent, child)
	if idx < 0 {
		return false
	}
	n.children = slices.Delete(n.children, idx, idx+1)
	if child.Parent() == parent {
		child.node().parent = nil
	}
	touch(parent)
	return true
}

// Adopt attaches children to a freshly cloned parent, taking ownership even
// when they still point at a retired parent. The retired parent must not be
// used afterwards. Structural rewrites use this to reuse untouched siblings
// by reference.
func Adopt(clone Element, children ...Element) {
	for _, c := range children {
		attach(clone, c)
	}
}

// StageChildren sets clone's child list without claiming the children:
// their parent pointers keep naming the original parent until SetParents
// runs on the tree that finally holds clone. Rewrite scopes use this to
// describe a rebuilt ancestor without touching the live tree.
func StageChildren(clone Element, children ...Element) {
	n := clone.node()
	n.children = slices.Clone(children)
	touch(clone)
}

// ReplaceChild puts replacement at old's position under parent, detaches
// old and rebuilds parent pointers under replacement.
func ReplaceChild(parent, old, replacement Element) error {
	if parent == nil || replacement == nil {
		return ErrNilElement
	}
	idx := IndexOf(parent, old)
	if idx < 0 {
		return fmt.Errorf("replace %s in %s: %w", old, parent, ErrNotChild)
	}
	n := parent.node()
	for i, c := range n.children {
		if i != idx && Equal(c, replacement) {
			return fmt.Errorf("replace %s in %s: %w", old, parent, ErrDuplicateChild)
		}
	}
	n.children[idx] = replacement
	if old.Parent() == parent {
		old.node().parent = nil
	}
	replacement.node().parent = parent
	SetParents(replacement)
	touch(parent)
	return nil
}

func attach(parent, child Element) {
	n := parent.node()
	n.children = append(n.children, child)
	child.node().parent = parent
	touch(parent)
}

// SetParents rebuilds parent back-references for the whole subtree under
// root. Needed after decoding, when children were constructed independently.
func SetParents(root Element) {
	if root == nil {
		return
	}
	for _, c := range root.node().children {
		c.node().parent = root
		SetParents(c)
	}
	if c, ok := root.(*Class); ok {
		c.cached = false
	}
}

// Touch marks the classes enclosing e (including e itself) dirty.
// Attribute edits that change what IsNotEmpty sees call this.
func Touch(e Element) { touch(e) }

func touch(e Element) {
	for p := e; p != nil; p = p.Parent() {
		if c, ok := p.(*Class); ok {
			c.cached = false
		}
	}
}

// Walk yields root and all of its descendants in depth-first pre-order.
// The sequence is lazy; children are read as the walk reaches them.
func Walk(root Element) iter.Seq[Element] {
	return func(yield func(Element) bool) {
		walk(root, yield)
	}
}

func walk(e Element, yield func(Element) bool) bool {
	if e == nil {
		return true
	}
	if !yield(e) {
		return false
	}
	for _, c := range e.node().children {
		if !walk(c, yield) {
			return false
		}
	}
	return true
}

// Root returns the topmost ancestor of e.
func Root(e Element) Element {
	for e != nil && e.Parent() != nil {
		e = e.Parent()
	}
	return e
}

// Enclosing returns the nearest ancestor of e (excluding e) of type T.
func Enclosing[T Element](e Element) (T, bool) {
	var zero T
	if e == nil {
		return zero, false
	}
	for p := e.Parent(); p != nil; p = p.Parent() {
		if t, ok := p.(T); ok {
			return t, true
		}
	}
	return zero, false
}

// ChildrenOf returns the direct children of e that have type T.
func ChildrenOf[T Element](e Element) []T {
	var out []T
	for _, c := range e.node().children {
		if t, ok := c.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
