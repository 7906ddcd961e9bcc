package typemodel

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/cbind/internal/ir"
)

// HostContext carries what host naming depends on beyond the spelling
// itself.
type HostContext struct {
	// Package is the dotted host package wrappers are generated into.
	Package string
	// Remap is installed on every produced HostType and applied when the
	// name is rendered.
	Remap map[string]string
	// TypeParams are template parameter names in scope; they resolve to
	// their bare names.
	TypeParams []string
}

func (c HostContext) isParam(name string) bool {
	return slices.Contains(c.TypeParams, name)
}

// ToHostType derives the host-language type for f.
func ToHostType(f Facts, ctx HostContext) *ir.HostType {
	h := hostType(f, ctx)
	applyRemap(h, ctx.Remap)
	return h
}

func hostType(f Facts, ctx HostContext) *ir.HostType {
	switch {
	case f.Const || f.Typename:
		return hostType(*f.Elem, ctx)
	case f.Pointer || f.Reference || f.Array:
		return pointerHost(f, ctx)
	case f.Void:
		return named(unitType)
	case f.String:
		return named(stringType).WithNullable(true)
	case f.LongDouble:
		return named(longDouble.host)
	case f.Native:
		n, _ := lookupNative(f.Spelling)
		return named(n.host)
	case f.Opaque:
		return named(opaquePtr).WithNullable(true)
	case f.Templated:
		return templatedHost(f.Spelling, ctx)
	}
	return wrapperHost(f.Spelling, ctx)
}

func pointerHost(f Facts, ctx HostContext) *ir.HostType {
	pointee := *f.Elem
	inner := Unconst(pointee)
	switch {
	case inner.Void && inner.Elem == nil:
		return named(opaquePtr).WithNullable(true)
	case inner.String && inner.Elem == nil:
		return named(stringType).WithNullable(true)
	case f.Pointer && pointee.Const && inner.Native && inner.Spelling == "char":
		return named(stringType).WithNullable(true)
	case inner.Elem == nil && (inner.Native || inner.LongDouble):
		n := longDouble
		if inner.Native {
			n, _ = lookupNative(inner.Spelling)
		}
		h := named(valuesRef)
		h.Templates = []*ir.HostType{named(n.ptr)}
		h.Nullable = true
		return h
	case inner.Pointer || inner.Reference || inner.Array:
		// Pointer to pointer: nothing more specific than an address.
		return named(opaquePtr).WithNullable(true)
	}
	return hostType(inner, ctx).WithNullable(true)
}

func wrapperHost(spelling string, ctx HostContext) *ir.HostType {
	if ctx.isParam(spelling) {
		return &ir.HostType{Qualified: []string{spelling}, Nullable: true}
	}
	return &ir.HostType{Qualified: qualify(ctx, SplitQualifiers(spelling)), Wrapper: true, Nullable: true}
}

// templatedHost flattens "ns::Box<int, Foo>" into the wrapper name
// "Box__Int__Foo" under the namespace path.
func templatedHost(spelling string, ctx HostContext) *ir.HostType {
	base, args, ok := SplitTemplate(spelling)
	if !ok {
		return named(opaquePtr).WithNullable(true)
	}
	parts := SplitQualifiers(base)
	name := parts[len(parts)-1]
	var b strings.Builder
	b.WriteString(name)
	for _, a := range args {
		b.WriteString("__")
		b.WriteString(mangleArg(a, ctx))
	}
	parts[len(parts)-1] = b.String()
	return &ir.HostType{Qualified: qualify(ctx, parts), Wrapper: true, Nullable: true}
}

func mangleArg(arg string, ctx HostContext) string {
	f, err := Classify(arg)
	if err != nil {
		return "Void"
	}
	h := hostType(Unconst(f), ctx)
	name := h.SimpleName()
	for _, t := range h.Templates {
		name += "__" + t.SimpleName()
	}
	if f.Pointer || f.Reference {
		name += "Ptr"
	}
	return name
}

// qualify prefixes the host package and lowers the first letter of every
// namespace part.
func qualify(ctx HostContext, parts []string) []string {
	var q []string
	if ctx.Package != "" {
		q = strings.Split(ctx.Package, ".")
	}
	for i, p := range parts {
		if i < len(parts)-1 {
			p = lowerFirst(p)
		}
		q = append(q, p)
	}
	return q
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}

func named(qualified string) *ir.HostType {
	return &ir.HostType{Qualified: strings.Split(qualified, ".")}
}

func applyRemap(h *ir.HostType, remap map[string]string) {
	if h == nil || len(remap) == 0 {
		return
	}
	h.Remap = remap
	for _, t := range h.Templates {
		applyRemap(t, remap)
	}
}
