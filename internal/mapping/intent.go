package mapping

import (
	"fmt"

	"github.com/roach88/cbind/internal/ir"
)

// Request locates a mapping target: Parent's child at ChildIndex, or Parent
// itself when ChildIndex is negative.
type Request struct {
	Parent     ir.Element
	ChildIndex int
}

// Target returns the element the request designates, or nil when the index
// is out of range.
func (r Request) Target() ir.Element {
	if r.ChildIndex < 0 {
		return r.Parent
	}
	if r.Parent == nil {
		return nil
	}
	kids := r.Parent.Children()
	if r.ChildIndex >= len(kids) {
		return nil
	}
	return kids[r.ChildIndex]
}

// RequestFor builds the request designating e.
func RequestFor(e ir.Element) Request {
	p := e.Parent()
	if p == nil {
		return Request{Parent: e, ChildIndex: -1}
	}
	return Request{Parent: p, ChildIndex: ir.IndexOf(p, e)}
}

// Intent is the single structural outcome of one mapping invocation.
//
// This is a sealed interface; only types in this package implement it.
type Intent interface {
	fmt.Stringer
	intentNode()
}

// NoChange leaves the tree alone.
type NoChange struct{}

// RemoveSelf detaches the target from its parent.
type RemoveSelf struct{}

// RemoveParent detaches the target's parent from the grandparent.
type RemoveParent struct{}

// ReplaceSelf puts With where the target was.
type ReplaceSelf struct{ With ir.Element }

// ReplaceParent puts With where the target's parent was.
type ReplaceParent struct{ With ir.Element }

// AddToSelf appends Child to the target.
type AddToSelf struct{ Child ir.Element }

// AddToParent appends Child to the target's parent.
type AddToParent struct{ Child ir.Element }

func (NoChange) intentNode()      {}
func (RemoveSelf) intentNode()    {}
func (RemoveParent) intentNode()  {}
func (ReplaceSelf) intentNode()   {}
func (ReplaceParent) intentNode() {}
func (AddToSelf) intentNode()     {}
func (AddToParent) intentNode()   {}

func (NoChange) String() string        { return "no_change" }
func (RemoveSelf) String() string      { return "remove_self" }
func (RemoveParent) String() string    { return "remove_parent" }
func (i ReplaceSelf) String() string   { return "replace_self(" + describe(i.With) + ")" }
func (i ReplaceParent) String() string { return "replace_parent(" + describe(i.With) + ")" }
func (i AddToSelf) String() string     { return "add_to_self(" + describe(i.Child) + ")" }
func (i AddToParent) String() string   { return "add_to_parent(" + describe(i.Child) + ")" }

func describe(e ir.Element) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

// onParent reports whether the intent decides about the target's parent.
func onParent(in Intent) bool {
	switch in.(type) {
	case RemoveParent, ReplaceParent, AddToParent:
		return true
	}
	return false
}
