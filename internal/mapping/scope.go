package mapping

import (
	"errors"
	"fmt"

	"github.com/roach88/cbind/internal/ir"
)

// ErrUnreachable is recorded when an edit targets an element whose lifted
// replacement would land above the target's parent.
var ErrUnreachable = errors.New("edit target outside the reach of the matched element")

// TypeResolver lowers a type spelling the way the session's resolver does.
type TypeResolver interface {
	Lower(spelling string) (*ir.CppType, error)
}

// Scope is the scratch mutation log handed to one mapping callback.
//
// Scope methods never touch the live tree. Misuse (nil arguments, a
// replacement that already has a parent, an unreachable target) is recorded
// and reported through Err once the callback returns.
type Scope struct {
	request Request
	target  ir.Element
	types   TypeResolver

	log []Intent

	// cur maps an element to the replacement this scope has staged for it;
	// adds holds children appended to it since.
	cur  map[ir.Element]ir.Element
	adds map[ir.Element][]ir.Element

	errs []error
}

// NewScope creates a scope for the element designated by req.
func NewScope(req Request, types TypeResolver) *Scope {
	return &Scope{
		request: req,
		target:  req.Target(),
		types:   types,
		cur:     make(map[ir.Element]ir.Element),
		adds:    make(map[ir.Element][]ir.Element),
	}
}

// Request returns the request the scope was created for.
func (s *Scope) Request() Request { return s.request }

// Target returns the matched element.
func (s *Scope) Target() ir.Element { return s.target }

// Log returns the recorded decisions in order.
func (s *Scope) Log() []Intent { return append([]Intent(nil), s.log...) }

// Err returns the misuse recorded during the callback, if any.
func (s *Scope) Err() error { return errors.Join(s.errs...) }

// ResolveType lowers a spelling through the session's type cache.
func (s *Scope) ResolveType(spelling string) (*ir.CppType, error) {
	if s.types == nil {
		return nil, errors.New("no type resolver in scope")
	}
	return s.types.Lower(spelling)
}

func (s *Scope) fail(err error) { s.errs = append(s.errs, err) }

func (s *Scope) forget(x ir.Element) {
	delete(s.cur, x)
	delete(s.adds, x)
}

func (s *Scope) parent() ir.Element {
	if s.target == nil {
		return nil
	}
	return s.target.Parent()
}

// Remove detaches x.
func (s *Scope) Remove(x ir.Element) {
	if x == nil {
		s.fail(fmt.Errorf("remove: %w", ir.ErrNilElement))
		return
	}
	switch x {
	case s.target:
		s.forget(x)
		s.log = append(s.log, RemoveSelf{})
	case s.parent():
		s.forget(x)
		s.log = append(s.log, RemoveParent{})
	default:
		s.rebuildParentOf(x, func(kids []ir.Element) []ir.Element {
			out := make([]ir.Element, 0, len(kids))
			for _, k := range kids {
				if !s.is(k, x) {
					out = append(out, k)
				}
			}
			return out
		})
	}
}

// ReplaceWith puts replacement where x is. The replacement must be
// detached.
func (s *Scope) ReplaceWith(x, replacement ir.Element) {
	if x == nil || replacement == nil {
		s.fail(fmt.Errorf("replace: %w", ir.ErrNilElement))
		return
	}
	if replacement.Parent() != nil {
		s.fail(fmt.Errorf("replace %s with %s: %w", x, replacement, ir.ErrHasParent))
		return
	}
	s.replace(x, replacement)
}

// Add appends child to x. The child must be detached.
func (s *Scope) Add(x, child ir.Element) {
	if x == nil || child == nil {
		s.fail(fmt.Errorf("add: %w", ir.ErrNilElement))
		return
	}
	if child.Parent() != nil {
		s.fail(fmt.Errorf("add %s to %s: %w", child, x, ir.ErrHasParent))
		return
	}
	direct := x == s.target || (x == s.parent() && x != nil)
	if direct && s.cur[x] == nil && len(s.adds[x]) == 0 {
		s.adds[x] = append(s.adds[x], child)
		if x == s.target {
			s.log = append(s.log, AddToSelf{Child: child})
		} else {
			s.log = append(s.log, AddToParent{Child: child})
		}
		return
	}
	s.rebuild(x, func(kids []ir.Element) []ir.Element { return append(kids, child) })
}

// Edit stages an attribute edit of x: fn receives a childless clone of x
// (or of its staged replacement) that takes x's place with the same
// children.
func Edit[T ir.Element](s *Scope, x T, fn func(T)) {
	var e ir.Element = x
	if e == nil {
		s.fail(fmt.Errorf("edit: %w", ir.ErrNilElement))
		return
	}
	base := e
	if c := s.cur[e]; c != nil {
		base = c
	}
	clone, ok := ir.CloneWithoutChildren(base).(T)
	if !ok {
		s.fail(fmt.Errorf("edit %s: staged replacement is a %s", e, base.Kind()))
		return
	}
	fn(clone)
	ir.StageChildren(clone, s.childrenOf(e)...)
	s.replace(e, clone)
}

// is reports whether k stands for x in a child list this scope built.
func (s *Scope) is(k, x ir.Element) bool {
	return k == x || (s.cur[x] != nil && k == s.cur[x])
}

// childrenOf returns x's children as this scope currently sees them.
func (s *Scope) childrenOf(x ir.Element) []ir.Element {
	base := x
	if c := s.cur[x]; c != nil {
		base = c
	}
	return append(base.Children(), s.adds[x]...)
}

// rebuild stages a childless clone of x holding edit(children of x).
func (s *Scope) rebuild(x ir.Element, edit func([]ir.Element) []ir.Element) {
	base := x
	if c := s.cur[x]; c != nil {
		base = c
	}
	clone := ir.CloneWithoutChildren(base)
	ir.StageChildren(clone, edit(s.childrenOf(x))...)
	s.replace(x, clone)
}

func (s *Scope) rebuildParentOf(x ir.Element, edit func([]ir.Element) []ir.Element) {
	p := x.Parent()
	if p == nil {
		s.fail(fmt.Errorf("edit %s: %w", x, ErrUnreachable))
		return
	}
	s.rebuild(p, edit)
}

// replace records that with now stands where x stood, lifting the edit to
// x's parent when x is neither the target nor its parent.
func (s *Scope) replace(x, with ir.Element) {
	prev := s.cur[x]
	s.cur[x] = with
	delete(s.adds, x)
	switch x {
	case s.target:
		s.log = append(s.log, ReplaceSelf{With: with})
	case s.parent():
		s.log = append(s.log, ReplaceParent{With: with})
	default:
		s.rebuildParentOf(x, func(kids []ir.Element) []ir.Element {
			out := make([]ir.Element, len(kids))
			for i, k := range kids {
				if k == x || (prev != nil && k == prev) {
					k = with
				}
				out[i] = k
			}
			return out
		})
	}
}
