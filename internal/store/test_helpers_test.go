package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/cbind/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTree builds:
//
//	tu(geo)
//	  nm(geo)
//	    cls(Shape)
//	      fun area(thiz: geo::Shape*): double
//	      val radius: double
//	    cls(Circle)
//	      fun self(thiz: geo::Circle*): const geo::Circle&
func createTestTree() *ir.TranslationUnit {
	cpp := func(s string) *ir.CppType { return &ir.CppType{Spelling: s} }
	area := &ir.Method{Name: "area", MethodKind: ir.MethodRegular, ReturnType: cpp("double"), Qualified: "geo::Shape::area"}
	ir.MustAdd(area, &ir.Argument{Name: "thiz", Type: cpp("geo::Shape*")})
	shape := &ir.Class{Name: "Shape", Type: cpp("geo::Shape")}
	ir.MustAdd(shape, area, &ir.Field{Name: "radius", Type: cpp("double")})

	self := &ir.Method{Name: "self", MethodKind: ir.MethodRegular, ReturnType: cpp("const geo::Circle&"), ReturnStyle: ir.ReturnVoidPtrRef}
	ir.MustAdd(self, &ir.Argument{Name: "thiz", Type: cpp("geo::Circle*")})
	circle := &ir.Class{Name: "Circle", Type: cpp("geo::Circle"), BaseClass: cpp("geo::Shape")}
	ir.MustAdd(circle, self)

	ns := &ir.Namespace{Name: "geo"}
	ir.MustAdd(ns, shape, circle)
	tu := &ir.TranslationUnit{Name: "geo"}
	ir.MustAdd(tu, ns)
	return tu
}
