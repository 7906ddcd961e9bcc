package resolver

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/ir"
	"github.com/roach88/cbind/internal/mapping"
	"github.com/roach88/cbind/internal/typemodel"
)

func cpp(s string) *ir.CppType { return &ir.CppType{Spelling: s} }

func arg(name, typ string) *ir.Argument { return &ir.Argument{Name: name, Type: cpp(typ)} }

func defaulted(name, typ string) *ir.Argument {
	a := arg(name, typ)
	a.HasDefault = true
	return a
}

func fun(name, ret string, args ...*ir.Argument) *ir.Method {
	m := &ir.Method{Name: name, MethodKind: ir.MethodRegular, ReturnType: cpp(ret)}
	for _, a := range args {
		ir.MustAdd(m, a)
	}
	return m
}

func static(m *ir.Method) *ir.Method {
	m.MethodKind = ir.MethodStatic
	return m
}

func ctor(class string, args ...*ir.Argument) *ir.Method {
	m := fun(class, class, args...)
	m.MethodKind = ir.MethodConstructor
	return m
}

func dtor(class string) *ir.Method {
	return &ir.Method{Name: "~" + class, MethodKind: ir.MethodDestructor, ReturnType: cpp("void")}
}

func class(ns, name string, children ...ir.Element) *ir.Class {
	c := &ir.Class{Name: name, Type: cpp(ns + "::" + name)}
	ir.MustAdd(c, children...)
	return c
}

func field(name, typ string) *ir.Field { return &ir.Field{Name: name, Type: cpp(typ)} }

// geoForest builds the raw parse of:
//
//	namespace geo {
//	class Shape { ~Shape(); double area() = 0; void scale(double k, bool round = false);
//	              void scale(int k); Circle* asCircle(); };
//	class Circle : Shape { const Circle& self(); static Circle* unit();
//	                       void resize(int n, Registry* hint = nullptr); void attach(Registry* r);
//	                       double radius; Registry owner; };
//	struct Point { Point(int x, int y); Point(const Point& o); Point& operator=(const Point&); int x; };
//	class Locked { private: Locked(); };
//	class Pool { Pool(); ~Pool(); void* operator new(size_t) = delete; ... };
//	typedef Point Vec;
//	double distance(const Point& a, const Point& b);
//	}
func geoForest() []*ir.TranslationUnit {
	shape := class("geo", "Shape",
		dtor("Shape"),
		fun("area", "double"),
		fun("scale", "void", arg("k", "double"), defaulted("round", "bool")),
		fun("scale", "void", arg("k", "int")),
		fun("asCircle", "Circle*"),
	)
	shape.Abstract = true

	circle := class("geo", "Circle",
		fun("self", "const Circle&"),
		static(fun("unit", "Circle*")),
		fun("resize", "void", arg("n", "int"), defaulted("hint", "Registry*")),
		fun("attach", "void", arg("r", "Registry*")),
		field("radius", "double"),
		field("owner", "Registry"),
	)
	circle.BaseClass = cpp("Shape")

	assign := fun("operator=", "Point&", arg("other", "const Point&"))
	assign.Operator = ir.OpAssign
	point := class("geo", "Point",
		ctor("Point", arg("x", "int"), arg("y", "int")),
		ctor("Point", arg("o", "const Point&")),
		assign,
		field("x", "int"),
	)
	point.Metadata.HasConstructor = true

	locked := class("geo", "Locked")
	locked.Metadata.HasConstructor = true

	pool := class("geo", "Pool", ctor("Pool"), dtor("Pool"), fun("drain", "void"))
	pool.Metadata = ir.ClassMetadata{HasConstructor: true, HasHiddenNew: true, HasHiddenDelete: true}

	ns := &ir.Namespace{Name: "geo"}
	ir.MustAdd(ns, shape, circle, point, locked, pool,
		&ir.Typedef{Name: "Vec", Target: cpp("Point")},
		static(fun("distance", "double", arg("a", "const Point&"), arg("b", "const Point&"))),
	)
	tu := &ir.TranslationUnit{Name: "geo.h"}
	ir.MustAdd(tu, ns)
	return []*ir.TranslationUnit{tu}
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func resolve(t *testing.T, pred filter.Predicate, opts ...Option) *Result {
	t.Helper()
	cache := typemodel.NewCache(typemodel.HostContext{Package: "geo"})
	r := New(cache, append([]Option{WithLogger(discard())}, opts...)...)
	res, err := r.Resolve(context.Background(), "geo", geoForest(), pred)
	require.NoError(t, err)
	return res
}

func everything() filter.Predicate {
	return filter.OrOf(filter.IsKind(filter.KindClass), filter.IsKind(filter.KindType), filter.IsKind(filter.KindMethod))
}

func findClass(root ir.Element, name string) *ir.Class {
	for e := range ir.Walk(root) {
		if c, ok := e.(*ir.Class); ok && c.Name == name {
			return c
		}
	}
	return nil
}

func methods(c *ir.Class, name string) []*ir.Method {
	var out []*ir.Method
	for _, m := range ir.ChildrenOf[*ir.Method](c) {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

func method(t *testing.T, c *ir.Class, name string) *ir.Method {
	t.Helper()
	ms := methods(c, name)
	require.NotEmpty(t, ms, "method %s on %s", name, c.Name)
	return ms[0]
}

func argNames(m *ir.Method) []string {
	var out []string
	for _, a := range m.Args() {
		out = append(out, a.Name)
	}
	return out
}

func TestResolveKeepsNamespacesAndOrder(t *testing.T) {
	res := resolve(t, everything())

	assert.Equal(t, "geo", res.Root.Name)
	namespaces := ir.ChildrenOf[*ir.Namespace](res.Root)
	require.Len(t, namespaces, 1)
	assert.Equal(t, []string{
		"cls(Shape)", "cls(Circle)", "cls(Point)", "cls(Locked)", "cls(Pool)",
		"typedef(Vec = geo::Point)", "fun distance(a: const geo::Point, b: const geo::Point): double",
	}, childStrings(namespaces[0]))
	assert.Equal(t, 5, res.Classes)
	assert.Equal(t, 1, res.Functions)

	for e := range ir.Walk(res.Root) {
		for _, c := range e.Children() {
			assert.Same(t, e, c.Parent(), "parent of %s", c)
		}
	}
}

func childStrings(e ir.Element) []string {
	var out []string
	for _, c := range e.Children() {
		out = append(out, c.String())
	}
	return out
}

func TestResolveConstructors(t *testing.T) {
	res := resolve(t, everything())

	circle := findClass(res.Root, "Circle")
	require.NotNil(t, circle)
	synth := method(t, circle, "new")
	assert.Same(t, synth, circle.Children()[0])
	assert.True(t, synth.Default)
	assert.True(t, circle.Metadata.HasDefaultConstructor)
	assert.Equal(t, "geo::Circle*", synth.ReturnType.Spelling)
	assert.Equal(t, ir.ReturnVoidPtr, synth.ReturnStyle)
	assert.Equal(t, ir.AllocDirect, synth.Allocation)
	assert.Equal(t, []string{"location"}, argNames(synth))
	assert.Equal(t, ir.CastModeNative, synth.Args()[0].CastMode)
	assert.Equal(t, "geo_Circle_new", synth.UniqueCName)

	shape := findClass(res.Root, "Shape")
	assert.Empty(t, methods(shape, "new"), "abstract classes get no constructor")

	point := findClass(res.Root, "Point")
	ctors := methods(point, "Point")
	require.Len(t, ctors, 2)
	assert.Empty(t, methods(point, "new"))
	assert.Equal(t, []string{"location", "x", "y"}, argNames(ctors[0]))
	assert.False(t, ctors[0].Copy)
	assert.True(t, ctors[1].Copy)
	assert.True(t, point.Metadata.HasCopyConstructor)
	assert.Equal(t, "geo_Point_new", ctors[0].UniqueCName)
	assert.Equal(t, "_geo_Point_new", ctors[1].UniqueCName)
}

func TestResolveHiddenNewAndDelete(t *testing.T) {
	res := resolve(t, everything())

	pool := findClass(res.Root, "Pool")
	require.NotNil(t, pool)
	var kinds []ir.MethodKind
	for _, m := range ir.ChildrenOf[*ir.Method](pool) {
		kinds = append(kinds, m.MethodKind)
	}
	assert.Equal(t, []ir.MethodKind{ir.MethodRegular, ir.MethodSizeOf}, kinds)
}

func TestResolveInstanceMethods(t *testing.T) {
	res := resolve(t, everything())
	shape := findClass(res.Root, "Shape")

	area := method(t, shape, "area")
	assert.Equal(t, ir.ReturnValue, area.ReturnStyle)
	assert.Equal(t, "geo_Shape_area", area.UniqueCName)
	require.Len(t, area.Args(), 1)
	thiz := area.Args()[0]
	assert.Equal(t, "thiz", thiz.Name)
	assert.Equal(t, "geo::Shape*", thiz.Type.Spelling)
	assert.Equal(t, ir.CastModeReinterpret, thiz.CastMode)
	assert.True(t, thiz.NeedsDereference)

	scales := methods(shape, "scale")
	require.Len(t, scales, 2)
	assert.Equal(t, "geo_Shape_scale", scales[0].UniqueCName)
	assert.Equal(t, "_geo_Shape_scale", scales[1].UniqueCName)
	k := scales[0].Args()[1]
	assert.Equal(t, ir.CastModeNative, k.CastMode)
	assert.False(t, k.NeedsDereference)
	assert.Same(t, k.Type, k.SignatureType)
	assert.True(t, scales[0].Args()[2].HasDefault)

	dispose := method(t, shape, "~Shape")
	assert.Equal(t, "geo_Shape_dispose", dispose.UniqueCName)
	assert.Equal(t, []string{"thiz"}, argNames(dispose))
	assert.Equal(t, ir.ReturnVoid, dispose.ReturnStyle)

	sizeOf := shape.Children()[len(shape.Children())-1].(*ir.Method)
	assert.Equal(t, ir.MethodSizeOf, sizeOf.MethodKind)
	assert.Equal(t, "geo_Shape_size_of", sizeOf.UniqueCName)
	assert.Empty(t, sizeOf.Args())
	assert.Equal(t, ir.ReturnValue, sizeOf.ReturnStyle)

	unit := method(t, findClass(res.Root, "Circle"), "unit")
	assert.Empty(t, unit.Args(), "static methods take no this")
	assert.Equal(t, ir.ReturnVoidPtr, unit.ReturnStyle)
}

func TestResolveAssignmentReturnsVoid(t *testing.T) {
	res := resolve(t, everything())
	assign := method(t, findClass(res.Root, "Point"), "operator=")
	assert.True(t, assign.ReturnType.Void)
	assert.Equal(t, ir.ReturnVoid, assign.ReturnStyle)
	assert.Equal(t, "geo_Point_op_assign", assign.UniqueCName)
}

func TestResolveFreeFunction(t *testing.T) {
	res := resolve(t, everything())
	var dist *ir.Method
	for e := range ir.Walk(res.Root) {
		if m, ok := e.(*ir.Method); ok && m.Name == "distance" {
			dist = m
		}
	}
	require.NotNil(t, dist)
	assert.Equal(t, "geo_distance", dist.UniqueCName)
	assert.Equal(t, []string{"a", "b"}, argNames(dist))

	a := dist.Args()[0]
	assert.Equal(t, "const geo::Point", a.Type.Spelling)
	assert.Equal(t, "const geo::Point*", a.SignatureType.Spelling)
	assert.True(t, a.NeedsDereference)
	assert.Equal(t, ir.CastModeReinterpret, a.CastMode)
}

func TestResolveIgnorePolicyDrops(t *testing.T) {
	res := resolve(t, everything(), WithPolicy(PolicyIgnore))
	circle := findClass(res.Root, "Circle")

	resize := method(t, circle, "resize")
	assert.Equal(t, []string{"thiz", "n"}, argNames(resize), "trailing defaulted arguments are truncated")
	assert.Empty(t, methods(circle, "attach"))
	assert.Empty(t, ir.ChildrenOf[*ir.Field](circle)[1:], "owner is dropped")

	var dropped []string
	for _, d := range res.Dropped {
		dropped = append(dropped, d.Element)
	}
	assert.Contains(t, dropped, "fun attach(r: Registry*): void")
	assert.Contains(t, dropped, "val owner: Registry")
}

// An unresolvable field under the opaque policy becomes an opaque pointer
// instead of aborting.
func TestResolveOpaquePolicyField(t *testing.T) {
	res := resolve(t, everything(), WithPolicy(PolicyOpaque))
	circle := findClass(res.Root, "Circle")

	fields := ir.ChildrenOf[*ir.Field](circle)
	require.Len(t, fields, 2)
	owner := fields[1]
	assert.Equal(t, "owner", owner.Name)
	assert.Equal(t, "void*", owner.Type.Spelling)
	assert.Equal(t, "void*", owner.Type.Abi.Spelling)
	assert.True(t, owner.Type.Host.Nullable)
	assert.Equal(t, "COpaquePointer", owner.Type.Host.SimpleName())

	attach := method(t, circle, "attach")
	assert.Equal(t, "void**", attach.Args()[1].Type.Spelling)
	assert.Equal(t, []string{"thiz", "n", "hint"}, argNames(method(t, circle, "resize")))
	assert.Empty(t, res.Dropped)
	assert.Equal(t, 3, res.Opaque)
}

func TestResolveThrowPolicy(t *testing.T) {
	cache := typemodel.NewCache(typemodel.HostContext{})
	r := New(cache, WithPolicy(PolicyThrow), WithLogger(discard()))
	_, err := r.Resolve(context.Background(), "geo", geoForest(), everything())
	require.Error(t, err)
	assert.True(t, IsUnresolvedError(err))
	assert.Contains(t, err.Error(), "Registry")
}

func TestResolveFieldAccessors(t *testing.T) {
	res := resolve(t, everything())
	radius := ir.ChildrenOf[*ir.Field](findClass(res.Root, "Circle"))[0]

	assert.Equal(t, "geo_Circle_radius_get", radius.Getter.UniqueCName)
	assert.Equal(t, ir.ReturnValue, radius.Getter.ReturnStyle)
	require.Len(t, radius.Getter.Args, 1)
	assert.Equal(t, "thiz", radius.Getter.Args[0].Name)
	require.NotNil(t, radius.Setter)
	assert.Equal(t, "geo_Circle_radius_set", radius.Setter.UniqueCName)
	require.Len(t, radius.Setter.Args, 2)
	assert.Equal(t, "value", radius.Setter.Args[1].Name)
	assert.Equal(t, ir.CastModeNative, radius.Setter.Args[1].CastMode)
	assert.Equal(t, "kotlin.Double", radius.HostType.QualifiedName())
}

func TestResolveIncludePolicyClosesOverCycles(t *testing.T) {
	onlyCircle := filter.Equals(filter.SelectClassName, "Circle")

	ignored := resolve(t, onlyCircle)
	assert.Nil(t, findClass(ignored.Root, "Shape"))
	assert.Nil(t, findClass(ignored.Root, "Circle").BaseClass, "base outside the selection is dropped")

	included := resolve(t, onlyCircle, WithPolicy(PolicyInclude))
	assert.Equal(t, []string{"geo::Shape"}, included.Included)
	shape := findClass(included.Root, "Shape")
	require.NotNil(t, shape)
	circle := findClass(included.Root, "Circle")
	require.NotNil(t, circle.BaseClass)
	assert.Equal(t, "geo::Shape", circle.BaseClass.Spelling)

	// Shape::asCircle refers back to Circle, which was in progress.
	as := method(t, shape, "asCircle")
	assert.Equal(t, "geo::Circle*", as.ReturnType.Spelling)

	bases := BasesOf(included.Root)
	base, ok := bases.ResolveBase(circle)
	require.True(t, ok)
	assert.Same(t, shape, base)
}

func TestResolveDefaultFilter(t *testing.T) {
	res := resolve(t, nil)
	assert.Equal(t, 5, res.Classes)
	assert.Equal(t, 1, res.Functions)
	for e := range ir.Walk(res.Root) {
		_, isTypedef := e.(*ir.Typedef)
		assert.False(t, isTypedef)
	}
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(typemodel.NewCache(typemodel.HostContext{}), WithLogger(discard()))
	_, err := r.Resolve(ctx, "geo", geoForest(), everything())
	assert.ErrorIs(t, err, context.Canceled)
}

// Classes A (public default constructor) and B (private constructor
// only): both resolve, only A is not empty, and a rule dropping classes
// without a public constructor leaves exactly A.
func TestResolveConstructibleClassesScenario(t *testing.T) {
	a := class("lib", "A", ctor("A"))
	a.Metadata.HasConstructor = true
	b := class("lib", "B")
	b.Metadata.HasConstructor = true

	forest := []*ir.TranslationUnit{
		{Name: "a.h"}, {Name: "b.h"},
	}
	nsA, nsB := &ir.Namespace{Name: "lib"}, &ir.Namespace{Name: "lib"}
	ir.MustAdd(nsA, a)
	ir.MustAdd(nsB, b)
	ir.MustAdd(forest[0], nsA)
	ir.MustAdd(forest[1], nsB)

	cache := typemodel.NewCache(typemodel.HostContext{Package: "lib"})
	res, err := New(cache, WithLogger(discard())).
		Resolve(context.Background(), "lib", forest, filter.IsKind(filter.KindClass))
	require.NoError(t, err)

	ra, rb := findClass(res.Root, "A"), findClass(res.Root, "B")
	require.NotNil(t, ra)
	require.NotNil(t, rb)
	assert.True(t, ra.IsNotEmpty())
	assert.False(t, rb.IsNotEmpty())

	dropUnconstructible := mapping.Typed("drop-unconstructible", filter.IsKind(filter.KindClass),
		func(s *mapping.Scope, c *ir.Class) error {
			for _, m := range ir.ChildrenOf[*ir.Method](c) {
				if m.IsConstructor() {
					return nil
				}
			}
			s.Remove(c)
			return nil
		})
	out, err := mapping.New(mapping.WithLogger(discard())).Apply(context.Background(), res.Root, dropUnconstructible)
	require.NoError(t, err)

	var classes []string
	for e := range ir.Walk(out.Root) {
		if c, ok := e.(*ir.Class); ok {
			classes = append(classes, c.Name)
		}
	}
	assert.Equal(t, []string{"A"}, classes)
	assert.True(t, findClass(out.Root, "A").IsNotEmpty())
}

// A rule stripping the leading const from a `const Foo&` return leaves
// `Foo&` with the return style unchanged.
func TestResolveConstReferenceReturnScenario(t *testing.T) {
	res := resolve(t, everything())
	self := method(t, findClass(res.Root, "Circle"), "self")
	require.Equal(t, "const geo::Circle&", self.ReturnType.Spelling)
	style := self.ReturnStyle
	assert.Equal(t, ir.ReturnVoidPtrRef, style)

	cache := typemodel.NewCache(typemodel.HostContext{Package: "geo"})
	strip := mapping.Typed("strip-const-return",
		filter.AndOf(filter.StartsWith(filter.SelectMethodReturnType, "const "), filter.EndsWith(filter.SelectMethodReturnType, "&")),
		func(s *mapping.Scope, m *ir.Method) error {
			lowered, err := s.ResolveType(strings.TrimPrefix(m.ReturnType.Spelling, "const "))
			if err != nil {
				return err
			}
			mapping.Edit(s, m, func(m *ir.Method) { m.ReturnType = lowered })
			return nil
		})
	out, err := mapping.New(mapping.WithLogger(discard()), mapping.WithTypeResolver(cache)).
		Apply(context.Background(), res.Root, strip)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Matched)

	self = method(t, findClass(out.Root, "Circle"), "self")
	assert.Equal(t, "geo::Circle&", self.ReturnType.Spelling)
	assert.Equal(t, style, self.ReturnStyle)
	assert.Equal(t, []string{"thiz"}, argNames(self))
}

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies {
		got, err := ParsePolicy(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePolicy("strict")
	assert.ErrorContains(t, err, "unknown reference policy")
}
