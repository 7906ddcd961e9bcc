package typemodel

import (
	"strings"

	"github.com/roach88/cbind/internal/ir"
)

const (
	abiVoid    = "void"
	abiOpaque  = "void*"
	abiCString = "const char*"
	abiDouble  = "double"
)

// ToAbiType derives the C-linkage type for f. Anything that is not void, a
// string, a native or a pointer/reference/array of a native degrades to
// void*. It never fails.
func ToAbiType(f Facts) *ir.CType {
	s := abiSpelling(f)
	return &ir.CType{Spelling: s, Void: s == abiVoid}
}

func abiSpelling(f Facts) string {
	switch {
	case f.Void && f.Elem == nil:
		return abiVoid
	case f.String && f.Elem == nil:
		return abiCString
	case f.LongDouble && f.Elem == nil:
		return abiDouble
	case f.Native && f.Elem == nil:
		return f.Spelling
	case f.Pointer || f.Reference:
		inner := Unconst(*f.Elem)
		switch {
		case inner.String:
			return abiCString
		case inner.Native && inner.Elem == nil && isCharLike(inner.Spelling) && f.Pointer && Unwrap(f).Const:
			return abiCString
		case inner.Native && inner.Elem == nil, inner.LongDouble && inner.Elem == nil:
			return withConst(*f.Elem, abiSpelling(inner)+"*")
		}
		return abiOpaque
	case f.Array:
		inner := Unconst(*f.Elem)
		if inner.Native && inner.Elem == nil || inner.LongDouble && inner.Elem == nil {
			return abiSpelling(inner) + "*"
		}
		return abiOpaque
	case f.Const || f.Typename:
		inner := abiSpelling(*f.Elem)
		if f.Const && IsNativeLike(f) && !strings.HasPrefix(inner, "const ") {
			return "const " + inner
		}
		return inner
	}
	return abiOpaque
}

// withConst carries a const pointee into the pointer spelling.
func withConst(pointee Facts, s string) string {
	if pointee.Const && !strings.HasPrefix(s, "const ") {
		return "const " + s
	}
	return s
}

func isCharLike(s string) bool {
	return s == "char"
}
