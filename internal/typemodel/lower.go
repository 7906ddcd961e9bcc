package typemodel

import "github.com/roach88/cbind/internal/ir"

// Lower builds the paired C++, ABI and host type for f.
func Lower(f Facts, ctx HostContext) *ir.CppType {
	return &ir.CppType{
		Spelling: f.Spelling,
		Host:     ToHostType(f, ctx),
		Abi:      ToAbiType(f),
		Cast:     CastFor(f),
		Void:     f.Void && f.Elem == nil,
	}
}

// Opaque lowers spelling as an unresolvable type: the ABI side is void* and
// the host side a nullable opaque pointer.
func Opaque(spelling string) *ir.CppType {
	return &ir.CppType{
		Spelling: spelling,
		Host:     named(opaquePtr).WithNullable(true),
		Abi:      &ir.CType{Spelling: abiOpaque},
		Cast:     ir.CastReinterpret,
	}
}

// CastFor picks how a value of type f crosses the shim boundary.
func CastFor(f Facts) ir.CastMethod {
	u := Unconst(f)
	switch {
	case u.String && u.Elem == nil:
		return ir.CastString
	case u.Pointer || u.Reference:
		inner := Unconst(*u.Elem)
		switch {
		case inner.String && inner.Elem == nil:
			return ir.CastPointedString
		case inner.Elem == nil && (inner.Native || inner.LongDouble || inner.Void):
			return ir.CastNative
		}
		return ir.CastReinterpret
	case u.Void, u.Native, u.LongDouble:
		return ir.CastNative
	}
	return ir.CastReinterpret
}
