package mapping

import (
	"github.com/roach88/cbind/internal/ir"
)

// decision is the folded state for one element (the target or its parent).
type decision struct {
	removed bool
	with    ir.Element
	adds    []ir.Element
}

func (d decision) changed() bool { return d.removed || d.with != nil || len(d.adds) > 0 }

func (d *decision) remove() { *d = decision{removed: true} }

func (d *decision) replace(with ir.Element) { *d = decision{with: with} }

func (d *decision) add(child ir.Element) {
	d.removed = false
	d.adds = append(d.adds, child)
}

// result returns what stands in the element's place, or nil when it is
// removed. orig is the element itself.
func (d decision) result(orig ir.Element) ir.Element {
	if d.removed {
		return nil
	}
	base := orig
	if d.with != nil {
		base = d.with
	}
	if len(d.adds) == 0 {
		return base
	}
	return restage(base, append(base.Children(), d.adds...))
}

// restage returns a childless clone of base holding kids.
func restage(base ir.Element, kids []ir.Element) ir.Element {
	clone := ir.CloneWithoutChildren(base)
	ir.StageChildren(clone, kids...)
	return clone
}

// Collapse folds a scope log into the single intent the engine applies.
// Later decisions about the same element override earlier ones; a decision
// about the parent subsumes decisions about the target.
func Collapse(target ir.Element, log []Intent) Intent {
	var self, parent decision
	for _, in := range log {
		switch in := in.(type) {
		case NoChange:
		case RemoveSelf:
			self.remove()
		case RemoveParent:
			parent.remove()
		case ReplaceSelf:
			self.replace(in.With)
		case ReplaceParent:
			parent.replace(in.With)
		case AddToSelf:
			self.add(in.Child)
		case AddToParent:
			parent.add(in.Child)
		}
	}

	if parent.removed {
		return RemoveParent{}
	}
	if parent.changed() {
		if !self.changed() && parent.with == nil && len(parent.adds) == 1 {
			return AddToParent{Child: parent.adds[0]}
		}
		base := target.Parent()
		if parent.with != nil {
			base = parent.with
		}
		mine := self.result(target)
		var kids []ir.Element
		for _, k := range base.Children() {
			if k == target {
				if mine == nil {
					continue
				}
				k = mine
			}
			kids = append(kids, k)
		}
		return ReplaceParent{With: restage(base, append(kids, parent.adds...))}
	}

	switch {
	case self.removed:
		return RemoveSelf{}
	case self.with == nil && len(self.adds) == 1:
		return AddToSelf{Child: self.adds[0]}
	case self.changed():
		return ReplaceSelf{With: self.result(target)}
	}
	return NoChange{}
}

// Conflicts reports the first contradictory pair in a log: a removal of an
// element combined with a replacement of it or an addition to it.
func Conflicts(log []Intent) error {
	var first [2]Intent
	for _, in := range log {
		if _, ok := in.(NoChange); ok {
			continue
		}
		side := 0
		if onParent(in) {
			side = 1
		}
		prev := first[side]
		if prev == nil {
			first[side] = in
			continue
		}
		if isRemove(prev) != isRemove(in) {
			return &ConflictError{First: prev, Second: in}
		}
	}
	return nil
}

func isRemove(in Intent) bool {
	switch in.(type) {
	case RemoveSelf, RemoveParent:
		return true
	}
	return false
}
