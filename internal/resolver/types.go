package resolver

import (
	"errors"
	"strconv"
	"strings"

	"github.com/roach88/cbind/internal/ir"
	"github.com/roach88/cbind/internal/typemodel"
)

// maxTypedefDepth bounds typedef chains, which can be cyclic in broken
// headers.
const maxTypedefDepth = 32

// mapSpelling rewrites spelling as seen from scope: named atoms become
// fully qualified and typedefs are expanded. A reference the resolver
// cannot map comes back as an UnresolvedError in ue; err is reserved for
// failures that end resolution.
func (r *Resolver) mapSpelling(spelling string, scope []string) (mapped string, ue *UnresolvedError, err error) {
	return r.mapDepth(spelling, scope, 0)
}

func (r *Resolver) mapDepth(spelling string, scope []string, depth int) (string, *UnresolvedError, error) {
	f, err := typemodel.Classify(spelling)
	if err != nil {
		return "", &UnresolvedError{Spelling: spelling, Reason: err.Error()}, nil
	}
	return r.mapFacts(f, scope, depth)
}

func (r *Resolver) mapFacts(f typemodel.Facts, scope []string, depth int) (string, *UnresolvedError, error) {
	if f.Elem != nil {
		inner, ue, err := r.mapFacts(*f.Elem, scope, depth)
		if ue != nil || err != nil {
			return "", ue, err
		}
		return rewrap(f, inner), nil, nil
	}

	switch {
	case f.Void, f.Native, f.String, f.LongDouble:
		return f.Spelling, nil, nil
	case f.Opaque:
		return "", &UnresolvedError{Spelling: f.Spelling, Reason: "unparseable template"}, nil
	case f.Templated:
		return r.mapTemplate(f.Spelling, scope, depth)
	}

	q, kind, ok := r.syms.lookup(f.Spelling, scope)
	if !ok {
		return "", &UnresolvedError{Spelling: f.Spelling, Reason: "unknown type"}, nil
	}
	switch kind {
	case symClass:
		ok, err := r.canResolve(q)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return "", &UnresolvedError{Spelling: f.Spelling, Reason: "class " + q + " is empty or excluded"}, nil
		}
		return q, nil, nil
	case symTypedef:
		if depth >= maxTypedefDepth {
			return "", &UnresolvedError{Spelling: f.Spelling, Reason: "typedef chain too deep"}, nil
		}
		td := r.syms.typedefs[q]
		return r.mapDepth(td.target, td.scope, depth+1)
	}
	return "", &UnresolvedError{Spelling: f.Spelling, Reason: "template used without arguments"}, nil
}

// mapTemplate maps a template instantiation. The template must be declared
// in the forest; its arguments are mapped recursively. Instantiations are
// not expanded.
func (r *Resolver) mapTemplate(spelling string, scope []string, depth int) (string, *UnresolvedError, error) {
	base, args, ok := typemodel.SplitTemplate(spelling)
	if !ok {
		return "", &UnresolvedError{Spelling: spelling, Reason: "unparseable template"}, nil
	}
	q, kind, ok := r.syms.lookup(base, scope)
	if !ok || kind != symTemplate {
		return "", &UnresolvedError{Spelling: spelling, Reason: "unknown template " + base}, nil
	}
	mapped := make([]string, len(args))
	for i, a := range args {
		if _, err := strconv.ParseFloat(a, 64); err == nil {
			mapped[i] = a
			continue
		}
		m, ue, err := r.mapDepth(a, scope, depth)
		if ue != nil || err != nil {
			return "", ue, err
		}
		mapped[i] = m
	}
	return q + "<" + strings.Join(mapped, ", ") + ">", nil, nil
}

// rewrap rebuilds wrapper layer f around an inner spelling.
func rewrap(f typemodel.Facts, inner string) string {
	e := f.Elem.Spelling
	switch {
	case strings.HasPrefix(f.Spelling, e):
		return inner + f.Spelling[len(e):]
	case strings.HasSuffix(f.Spelling, e):
		return f.Spelling[:len(f.Spelling)-len(e)] + inner
	}
	return inner
}

// substituteBase replaces the atom under every wrapper layer of f.
func substituteBase(f typemodel.Facts, atom string) string {
	if f.Elem == nil {
		return atom
	}
	return rewrap(f, substituteBase(*f.Elem, atom))
}

// opaqueSpelling is the spelling the opaque policy gives an unresolvable
// type: its atom becomes void*, its modifiers stay.
func opaqueSpelling(spelling string) string {
	f, err := typemodel.Classify(spelling)
	if err != nil {
		return "void*"
	}
	return substituteBase(f, "void*")
}

// resolveSpelling maps spelling and applies the reference policy to a
// failure. Under the opaque policy it never returns an UnresolvedError.
func (r *Resolver) resolveSpelling(spelling string, scope []string) (string, error) {
	mapped, ue, err := r.mapSpelling(spelling, scope)
	switch {
	case err != nil:
		return "", err
	case ue == nil:
		return mapped, nil
	case r.policy == PolicyOpaque:
		r.opaque++
		return opaqueSpelling(spelling), nil
	}
	if ue.Spelling != spelling {
		ue = &UnresolvedError{Spelling: spelling, Reason: ue.Reason + " (" + ue.Spelling + ")"}
	}
	return "", ue
}

// lower lowers a spelling the resolver built itself.
func (r *Resolver) lower(spelling string) *ir.CppType {
	t, err := r.types.Lower(spelling)
	if err != nil {
		// Only an empty spelling fails to lower.
		return typemodel.Opaque(spelling)
	}
	return t
}

// returnStyle picks how a value of type f is handed back across the shim.
func returnStyle(f typemodel.Facts, assignable bool) ir.ReturnStyle {
	u := typemodel.Unconst(f)
	base := typemodel.Unconst(typemodel.Unreference(u))
	switch {
	case u.Void && u.Elem == nil:
		return ir.ReturnVoid
	case !typemodel.IsReturnable(f):
		if assignable {
			return ir.ReturnArgCast
		}
		return ir.ReturnCopyConstructor
	case u.String && u.Elem == nil:
		return ir.ReturnString
	case u.Pointer && typemodel.IsString(*u.Elem):
		return ir.ReturnStringPointer
	case base.Elem == nil && (base.Native || base.LongDouble):
		if u.Reference {
			return ir.ReturnReference
		}
		return ir.ReturnValue
	case u.Reference:
		return ir.ReturnVoidPtrRef
	}
	return ir.ReturnVoidPtr
}

// castMode picks how an argument crosses the shim. declared is the type as
// written, mapped the resolved type with its reference stripped.
func castMode(declared, mapped typemodel.Facts) ir.CastMode {
	u := typemodel.Unconst(mapped)
	switch {
	case u.String && u.Elem == nil:
		return ir.CastModeString
	case u.Native && u.Elem == nil:
		return ir.CastModeNative
	case u.LongDouble && u.Elem == nil:
		return ir.CastModeRaw
	case !declared.Reference && !u.Pointer && strings.HasPrefix(u.Spelling, "std::unique_ptr"):
		return ir.CastModeMove
	}
	return ir.CastModeReinterpret
}

// canAssign reports whether a value of mapped type f can be assigned in
// place, which decides between arg-cast and copy-construct returns.
func (r *Resolver) canAssign(f typemodel.Facts) bool {
	return r.assignable(f, make(map[string]bool))
}

func (r *Resolver) assignable(f typemodel.Facts, seen map[string]bool) bool {
	switch {
	case f.Const:
		return false
	case typemodel.IsReturnable(f):
		return true
	}
	q := typemodel.Base(f).Spelling
	c, ok := r.syms.classes[q]
	if !ok || seen[q] {
		return true
	}
	seen[q] = true
	if c.Metadata.HasPrivateConstField {
		return false
	}
	for _, m := range ir.ChildrenOf[*ir.Method](c) {
		if m.Operator == ir.OpAssign {
			return true
		}
	}
	scope := append(scopeOf(c), c.Name)
	for _, fld := range ir.ChildrenOf[*ir.Field](c) {
		if fld.Const || fld.Type == nil {
			return false
		}
		ff, err := typemodel.Classify(fld.Type.Spelling)
		if err != nil {
			continue
		}
		if q, k, ok := r.syms.lookup(typemodel.Base(ff).Spelling, scope); ok && k == symClass {
			ff, _ = typemodel.Classify(substituteBase(ff, q))
		}
		if !r.assignable(ff, seen) {
			return false
		}
	}
	return true
}

// skip records an element dropped for an unresolved reference. It returns
// false when err must end resolution instead.
func (r *Resolver) skip(el ir.Element, err error) bool {
	var ue *UnresolvedError
	if r.policy == PolicyThrow || !errors.As(err, &ue) {
		return false
	}
	r.drops = append(r.drops, Drop{Element: el.String(), Spelling: ue.Spelling, Reason: ue.Reason})
	r.logger.Debug("element dropped",
		"element", el.String(),
		"type", ue.Spelling,
		"reason", ue.Reason)
	return true
}
