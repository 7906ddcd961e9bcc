package mapping

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/ir"
	"github.com/roach88/cbind/internal/typemodel"
)

type tree struct {
	tu                       *ir.TranslationUnit
	geo                      *ir.Namespace
	shape, circle, tag       *ir.Class
	area, scale, radius, set *ir.Method
	k, other                 *ir.Argument
}

func cpp(s string) *ir.CppType { return &ir.CppType{Spelling: s} }

// newTree builds:
//
//	tu(demo)
//	  nm(geo)
//	    cls(Shape): area(), scale(k)
//	    cls(Circle): radius(), set(other)
//	    cls(Tag)
func newTree() *tree {
	t := &tree{
		tu:     &ir.TranslationUnit{Name: "demo"},
		geo:    &ir.Namespace{Name: "geo"},
		shape:  &ir.Class{Name: "Shape"},
		circle: &ir.Class{Name: "Circle"},
		tag:    &ir.Class{Name: "Tag"},
		area:   &ir.Method{Name: "area", MethodKind: ir.MethodRegular, ReturnType: cpp("double")},
		scale:  &ir.Method{Name: "scale", MethodKind: ir.MethodRegular, ReturnType: cpp("void")},
		radius: &ir.Method{Name: "radius", MethodKind: ir.MethodRegular, ReturnType: cpp("double")},
		set:    &ir.Method{Name: "set", MethodKind: ir.MethodRegular, ReturnType: cpp("void")},
		k:      &ir.Argument{Name: "k", Type: cpp("double")},
		other:  &ir.Argument{Name: "other", Type: cpp("const Circle&")},
	}
	ir.MustAdd(t.scale, t.k)
	ir.MustAdd(t.set, t.other)
	ir.MustAdd(t.shape, t.area, t.scale)
	ir.MustAdd(t.circle, t.radius, t.set)
	ir.MustAdd(t.geo, t.shape, t.circle, t.tag)
	ir.MustAdd(t.tu, t.geo)
	return t
}

func names(e ir.Element) []string {
	var out []string
	for _, c := range e.Children() {
		out = append(out, c.String())
	}
	return out
}

func fn(label string, p filter.Predicate, f func(*Scope, ir.Element) error) *Func {
	return &Func{Label: label, Predicate: p, Fn: f}
}

func quiet() Option { return WithLogger(discardLogger()) }

func TestCollapseLastDecisionWins(t *testing.T) {
	tr := newTree()
	w := &ir.Class{Name: "Tag2"}
	c := &ir.Method{Name: "m", ReturnType: cpp("void")}

	tests := []struct {
		name string
		log  []Intent
		want string
	}{
		{"empty", nil, "no_change"},
		{"remove then replace", []Intent{RemoveSelf{}, ReplaceSelf{With: w}}, "replace_self(cls(Tag2))"},
		{"replace then remove", []Intent{ReplaceSelf{With: w}, RemoveSelf{}}, "remove_self"},
		{"add then remove", []Intent{AddToSelf{Child: c}, RemoveSelf{}}, "remove_self"},
		{"remove then add", []Intent{RemoveSelf{}, AddToSelf{Child: c}}, "add_to_self(fun m(): void)"},
		{"parent replace then remove", []Intent{ReplaceParent{With: w}, RemoveParent{}}, "remove_parent"},
		{"parent removal subsumes self", []Intent{RemoveParent{}, ReplaceSelf{With: w}}, "remove_parent"},
		{"no change entries ignored", []Intent{NoChange{}, RemoveSelf{}, NoChange{}}, "remove_self"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Collapse(tr.tag, tt.log).String())
		})
	}
}

func TestCollapseSelfFoldsIntoParent(t *testing.T) {
	tr := newTree()
	added := &ir.Class{Name: "Extra"}

	in := Collapse(tr.shape, []Intent{RemoveSelf{}, AddToParent{Child: added}})

	rp, ok := in.(ReplaceParent)
	require.True(t, ok, "got %s", in)
	kids := rp.With.Children()
	require.Len(t, kids, 3)
	assert.Same(t, tr.circle, kids[0])
	assert.Same(t, tr.tag, kids[1])
	assert.Same(t, added, kids[2])
	// The live tree is untouched until the engine applies the intent.
	assert.Equal(t, []string{"cls(Shape)", "cls(Circle)", "cls(Tag)"}, names(tr.geo))
}

func TestCollapseSingleAddToParent(t *testing.T) {
	tr := newTree()
	added := &ir.Class{Name: "Extra"}
	assert.Equal(t, AddToParent{Child: added}, Collapse(tr.shape, []Intent{AddToParent{Child: added}}))
}

func TestConflicts(t *testing.T) {
	w := &ir.Class{Name: "W"}
	assert.NoError(t, Conflicts([]Intent{ReplaceSelf{With: w}, ReplaceSelf{With: w}, RemoveParent{}}))
	assert.NoError(t, Conflicts([]Intent{RemoveSelf{}, RemoveSelf{}}))

	err := Conflicts([]Intent{RemoveSelf{}, NoChange{}, AddToSelf{Child: w}})
	require.Error(t, err)
	assert.True(t, IsConflictError(err))

	err = Conflicts([]Intent{ReplaceParent{With: w}, RemoveParent{}})
	assert.True(t, IsConflictError(err))
}

func TestScopeRecordsWithoutMutating(t *testing.T) {
	tr := newTree()
	s := NewScope(RequestFor(tr.circle), nil)

	s.Remove(tr.radius)
	s.Add(tr.circle, &ir.Method{Name: "extra", ReturnType: cpp("void")})

	require.NoError(t, s.Err())
	assert.Equal(t, []string{"fun radius(): double", "fun set(other: const Circle&): void"}, names(tr.circle))
	assert.Same(t, tr.circle, tr.radius.Parent())

	in := Collapse(tr.circle, s.Log())
	rs, ok := in.(ReplaceSelf)
	require.True(t, ok, "got %s", in)
	assert.Equal(t, []string{"fun set(other: const Circle&): void", "fun extra(): void"}, names(rs.With))
}

func TestScopeAddTwiceRestages(t *testing.T) {
	tr := newTree()
	s := NewScope(RequestFor(tr.tag), nil)
	a := &ir.Method{Name: "a", ReturnType: cpp("void")}
	b := &ir.Method{Name: "b", ReturnType: cpp("void")}

	s.Add(tr.tag, a)
	s.Add(tr.tag, b)

	in := Collapse(tr.tag, s.Log())
	rs, ok := in.(ReplaceSelf)
	require.True(t, ok, "got %s", in)
	assert.Equal(t, []string{"fun a(): void", "fun b(): void"}, names(rs.With))
}

func TestScopeMisuse(t *testing.T) {
	tr := newTree()
	s := NewScope(RequestFor(tr.circle), nil)

	s.Remove(nil)
	s.Add(tr.circle, tr.area) // owned by Shape
	s.ReplaceWith(tr.circle, tr.tag)

	err := s.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrNilElement)
	assert.ErrorIs(t, err, ir.ErrHasParent)
	assert.Empty(t, s.Log())

	_, err = s.ResolveType("int")
	assert.Error(t, err)
}

func TestRequestTarget(t *testing.T) {
	tr := newTree()
	assert.Same(t, tr.circle, Request{Parent: tr.geo, ChildIndex: 1}.Target())
	assert.Same(t, tr.geo, Request{Parent: tr.geo, ChildIndex: -1}.Target())
	assert.Nil(t, Request{Parent: tr.geo, ChildIndex: 7}.Target())
	assert.Equal(t, Request{Parent: tr.tu, ChildIndex: -1}, RequestFor(tr.tu))
	assert.Equal(t, Request{Parent: tr.geo, ChildIndex: 2}, RequestFor(tr.tag))
}

func TestApplyRemoveByName(t *testing.T) {
	tr := newTree()
	m := fn("drop-scale", filter.Equals(filter.SelectMethodName, "scale"), func(s *Scope, e ir.Element) error {
		s.Remove(e)
		return nil
	})

	res, err := New(quiet()).Apply(context.Background(), tr.tu, m)
	require.NoError(t, err)

	assert.Equal(t, []string{"fun area(): double"}, names(tr.shape))
	assert.Nil(t, tr.scale.Parent())
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Intents["remove_self"])
	assert.Same(t, tr.tu, res.Root)
}

func TestApplyGrandchildEditSharesSiblings(t *testing.T) {
	tr := newTree()
	m := Typed("unconst", filter.Equals(filter.SelectClassName, "Circle"), func(s *Scope, c *ir.Class) error {
		Edit(s, tr.other, func(a *ir.Argument) { a.Type = cpp("Circle&") })
		return nil
	})

	res, err := New(quiet()).Apply(context.Background(), tr.tu, m)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Intents["replace_self"])

	kids := tr.geo.Children()
	require.Len(t, kids, 3)
	assert.Same(t, tr.shape, kids[0])
	assert.Same(t, tr.tag, kids[2])

	circle := kids[1].(*ir.Class)
	assert.NotSame(t, tr.circle, circle)
	assert.Nil(t, tr.circle.Parent())

	methods := circle.Children()
	require.Len(t, methods, 2)
	assert.Same(t, tr.radius, methods[0])
	assert.Same(t, circle, tr.radius.Parent())
	assert.NotSame(t, tr.set, methods[1])
	assert.Equal(t, "fun set(other: Circle&): void", methods[1].String())
	assert.Same(t, circle, methods[1].Parent())

	// The original argument keeps its spelling.
	assert.Equal(t, "const Circle&", tr.other.Type.Spelling)
}

func TestApplySiblingEditLiftsToParent(t *testing.T) {
	tr := newTree()
	m := fn("drop-sibling", filter.Equals(filter.SelectMethodName, "radius"), func(s *Scope, e ir.Element) error {
		s.Remove(tr.set)
		return nil
	})

	res, err := New(quiet()).Apply(context.Background(), tr.tu, m)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Intents["replace_parent"])

	circle := tr.geo.Children()[1]
	assert.Equal(t, []string{"fun radius(): double"}, names(circle))
	assert.Same(t, tr.radius, circle.Children()[0])
}

func TestApplyRemovesCompose(t *testing.T) {
	tr := newTree()
	m := fn("empty-circle", filter.Equals(filter.SelectClassName, "Circle"), func(s *Scope, e ir.Element) error {
		s.Remove(tr.radius)
		s.Remove(tr.set)
		return nil
	})

	_, err := New(quiet()).Apply(context.Background(), tr.tu, m)
	require.NoError(t, err)

	circle := tr.geo.Children()[1].(*ir.Class)
	assert.Equal(t, "Circle", circle.Name)
	assert.Empty(t, circle.Children())
	assert.False(t, circle.IsNotEmpty())
}

func TestApplyAddThenRemove(t *testing.T) {
	tr := newTree()
	m := fn("flip", filter.Equals(filter.SelectClassName, "Tag"), func(s *Scope, e ir.Element) error {
		s.Add(e, &ir.Method{Name: "m", ReturnType: cpp("void")})
		s.Remove(e)
		return nil
	})

	_, err := New(quiet()).Apply(context.Background(), tr.tu, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"cls(Shape)", "cls(Circle)"}, names(tr.geo))
}

func TestApplySkipsDetached(t *testing.T) {
	tr := newTree()
	m := fn("drop-geo", filter.IsKind(filter.KindNamespace, filter.KindClass), func(s *Scope, e ir.Element) error {
		s.Remove(e)
		return nil
	})

	res, err := New(quiet()).Apply(context.Background(), tr.tu, m)
	require.NoError(t, err)
	assert.Empty(t, tr.tu.Children())
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 9, res.Skipped)
}

func TestApplyRebuildsMissingParents(t *testing.T) {
	keep := &ir.Class{Name: "Keep", Type: cpp("geo::Keep")}
	drop := &ir.Class{Name: "Drop", Type: cpp("geo::Drop")}
	ns := &ir.Namespace{Name: "geo"}
	ir.StageChildren(ns, keep, drop)
	tu := &ir.TranslationUnit{Name: "geo"}
	ir.StageChildren(tu, ns)
	require.Nil(t, drop.Parent())

	m := fn("drop", filter.Equals(filter.SelectClassName, "Drop"), func(s *Scope, e ir.Element) error {
		s.Remove(e)
		return nil
	})
	res, err := New(quiet()).Apply(context.Background(), tu, m)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Applied)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, []string{"cls(Keep)"}, names(ns))
	assert.Same(t, ns, keep.Parent())
}

func TestApplyUnreachableEdit(t *testing.T) {
	m := func(tr *tree) Mapper {
		return fn("cousin", filter.Equals(filter.SelectMethodName, "radius"), func(s *Scope, e ir.Element) error {
			Edit(s, tr.area, func(m *ir.Method) { m.Name = "surface" })
			return nil
		})
	}

	t.Run("fail fast", func(t *testing.T) {
		tr := newTree()
		_, err := New(quiet()).Apply(context.Background(), tr.tu, m(tr))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnreachable)

		var ie *InvocationError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "edit", ie.Stage)
		assert.Equal(t, "cousin", ie.Mapper)
	})

	t.Run("log and continue", func(t *testing.T) {
		tr := newTree()
		res, err := New(quiet(), WithErrorPolicy(LogAndContinue)).Apply(context.Background(), tr.tu, m(tr))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, "area", tr.area.Name)
		assert.Same(t, tr.shape, tr.area.Parent())
	})
}

func TestApplyCallbackErrorPolicy(t *testing.T) {
	boom := errors.New("boom")
	m := fn("boom", filter.IsKind(filter.KindMethod), func(s *Scope, e ir.Element) error {
		s.Remove(e)
		return boom
	})

	tr := newTree()
	_, err := New(quiet()).Apply(context.Background(), tr.tu, m)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, tr.shape.Children(), 2, "failed invocation must not apply edits")

	tr = newTree()
	res, err := New(quiet(), WithErrorPolicy(LogAndContinue)).Apply(context.Background(), tr.tu, m)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Failed)
	assert.Len(t, tr.shape.Children(), 2)
}

type misfiltered struct{ Mapper }

func (misfiltered) Filter() filter.Predicate { return filter.IsKind(filter.KindMethod) }

func TestApplyMismatchIsFatal(t *testing.T) {
	tr := newTree()
	m := misfiltered{Typed("classes", filter.All{}, func(*Scope, *ir.Class) error { return nil })}

	_, err := New(quiet(), WithErrorPolicy(LogAndContinue)).Apply(context.Background(), tr.tu, m)
	require.Error(t, err)
	assert.True(t, IsMismatchError(err))
	assert.Contains(t, err.Error(), "is not the expected type")
}

func TestApplyConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		m    Mapper
	}{
		{"nil mapper", nil},
		{"nil filter", fn("f", nil, func(*Scope, ir.Element) error { return nil })},
		{"nil func", fn("f", filter.All{}, nil)},
		{"nil typed callback", Typed[*ir.Class]("t", filter.All{}, nil)},
		{"nil typed filter", Typed("t", nil, func(*Scope, *ir.Class) error { return nil })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(quiet()).Apply(context.Background(), newTree().tu, tt.m)
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestApplyQuota(t *testing.T) {
	tr := newTree()
	m := fn("noop", filter.IsKind(filter.KindMethod), func(*Scope, ir.Element) error { return nil })

	_, err := New(quiet(), WithMaxSteps(2)).Apply(context.Background(), tr.tu, m)
	require.Error(t, err)
	assert.True(t, IsStepsExceededError(err))

	_, err = New(quiet(), WithMaxSteps(4)).Apply(context.Background(), tr.tu, m)
	assert.NoError(t, err)
}

func TestApplyStrictEdits(t *testing.T) {
	m := fn("contradict", filter.Equals(filter.SelectClassName, "Tag"), func(s *Scope, e ir.Element) error {
		s.Remove(e)
		s.Add(e, &ir.Method{Name: "m", ReturnType: cpp("void")})
		return nil
	})

	tr := newTree()
	_, err := New(quiet(), WithStrictEdits(), WithErrorPolicy(LogAndContinue)).Apply(context.Background(), tr.tu, m)
	require.Error(t, err)
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "contradict", ce.Mapper)
	assert.Equal(t, "cls(Tag)", ce.Element)

	tr = newTree()
	_, err = New(quiet()).Apply(context.Background(), tr.tu, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"fun m(): void"}, names(tr.tag))
}

func TestApplyStripsConstReferenceArguments(t *testing.T) {
	tr := newTree()
	m := Typed("strip-const-ref",
		filter.AndOf(filter.Contains(filter.SelectStringify, ": const "), filter.EndsWith(filter.SelectStringify, "&")),
		func(s *Scope, a *ir.Argument) error {
			lowered, err := s.ResolveType(strings.TrimPrefix(a.Type.Spelling, "const "))
			if err != nil {
				return err
			}
			Edit(s, a, func(a *ir.Argument) { a.Type = lowered })
			return nil
		})

	cache := typemodel.NewCache(typemodel.HostContext{Package: "demo"})
	res, err := New(quiet(), WithTypeResolver(cache)).Apply(context.Background(), tr.tu, m)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)

	assert.Same(t, tr.set, tr.circle.Children()[1])
	args := tr.set.Args()
	require.Len(t, args, 1)
	assert.NotSame(t, tr.other, args[0])
	assert.NotContains(t, args[0].Type.Spelling, "const")
	assert.Contains(t, args[0].Type.Spelling, "Circle")
	assert.NotNil(t, args[0].Type.Abi)
}

func TestApplyReplacesRoot(t *testing.T) {
	tr := newTree()
	m := Typed("rename", filter.All{}, func(s *Scope, u *ir.TranslationUnit) error {
		Edit(s, u, func(u *ir.TranslationUnit) { u.Name = "renamed" })
		return nil
	})

	res, err := New(quiet()).Apply(context.Background(), tr.tu, m)
	require.NoError(t, err)

	root, ok := res.Root.(*ir.TranslationUnit)
	require.True(t, ok)
	assert.Equal(t, "renamed", root.Name)
	assert.Same(t, root, tr.geo.Parent())
}

func TestApplyRemoveRootFails(t *testing.T) {
	tr := newTree()
	m := fn("drop-root", filter.NotOf(filter.Parent.Wrap(filter.All{})), func(s *Scope, e ir.Element) error {
		s.Remove(e)
		return nil
	})
	_, err := New(quiet()).Apply(context.Background(), tr.tu, m)
	assert.ErrorIs(t, err, ErrRemoveRoot)
}

func TestApplyMappersSeePredecessors(t *testing.T) {
	tr := newTree()
	rename := Typed("rename", filter.Equals(filter.SelectClassName, "Tag"), func(s *Scope, c *ir.Class) error {
		Edit(s, c, func(c *ir.Class) { c.Name = "Label" })
		return nil
	})
	var seen []string
	record := Typed("record", filter.All{}, func(s *Scope, c *ir.Class) error {
		seen = append(seen, c.Name)
		return nil
	})

	_, err := New(quiet()).Apply(context.Background(), tr.tu, rename, record)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shape", "Circle", "Label"}, seen)
}

func TestApplyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := fn("noop", filter.All{}, func(*Scope, ir.Element) error { return nil })

	_, err := New(quiet()).Apply(ctx, newTree().tu, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTypedFilter(t *testing.T) {
	tr := newTree()
	td := &ir.Typedef{Name: "Real", Target: cpp("double")}
	tm := &ir.Template{Name: "Box", Params: []ir.TemplateParam{{Name: "T"}}}
	ir.MustAdd(tr.geo, td, tm)

	count := func(p filter.Predicate) int {
		n := 0
		for range filter.NewEvaluator(nil).Select(p, tr.tu) {
			n++
		}
		return n
	}
	assert.Equal(t, 1, count(TypedFilter[*ir.Typedef]()))
	assert.Equal(t, 1, count(TypedFilter[*ir.Template]()))
	assert.Equal(t, 2, count(TypedFilter[*ir.Argument]()))
	assert.Equal(t, 1, count(TypedFilter[*ir.TranslationUnit]()))
	assert.Equal(t, 3, count(TypedFilter[*ir.Class]()))
	assert.Equal(t, 13, count(TypedFilter[ir.Element]()))
}
