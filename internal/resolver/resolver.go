// Package resolver lowers a raw parsed forest into the resolved element
// tree the mapping engine and writers consume.
//
// Resolution qualifies every type reference against the forest, expands
// typedefs, lowers types through the session's typemodel.Cache and fills in
// the shim facts a generator needs: return styles, argument cast modes, the
// implicit this/location arguments and unique C symbol names. References
// that cannot be mapped are handled by the reference Policy.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/ir"
	"github.com/roach88/cbind/internal/typemodel"
)

// Drop records an element left out of the resolved tree.
type Drop struct {
	Element  string `json:"element"`
	Spelling string `json:"type"`
	Reason   string `json:"reason"`
}

// Result is the outcome of one Resolve.
type Result struct {
	// Root holds the resolved classes, typedefs, templates and free
	// functions under their namespaces.
	Root *ir.TranslationUnit

	Classes   int
	Functions int

	// Included names classes pulled in by the include policy.
	Included []string

	// Opaque counts references replaced by an opaque pointer.
	Opaque int

	Dropped []Drop
}

// Resolver resolves one forest. It is not safe for concurrent use and is
// meant to be used once per session.
type Resolver struct {
	types  *typemodel.Cache
	policy Policy
	alloc  ir.AllocationStyle
	logger *slog.Logger

	syms     *symbols
	selected map[string]bool
	done     map[string]*ir.Class // nil value: failed
	guard    *Guard
	names    *Namer
	included []string
	drops    []Drop
	opaque   int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPolicy sets the reference policy. The default is PolicyIgnore.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithAllocation sets how constructors place new objects. The default is
// ir.AllocDirect.
func WithAllocation(a ir.AllocationStyle) Option {
	return func(r *Resolver) { r.alloc = a }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver lowering types through types.
func New(types *typemodel.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		types:  types,
		policy: PolicyIgnore,
		alloc:  ir.AllocDirect,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve selects the top-level declarations of forest matching pred and
// resolves them into a tree rooted at a translation unit named module.
// A nil pred selects with filter.Default.
//
// ctx is checked between classes.
func (r *Resolver) Resolve(ctx context.Context, module string, forest []*ir.TranslationUnit, pred filter.Predicate) (*Result, error) {
	if pred == nil {
		pred = filter.Default()
	}
	r.syms = indexForest(forest)
	r.selected = make(map[string]bool)
	r.done = make(map[string]*ir.Class)
	r.guard = NewGuard()
	r.names = NewNamer()
	r.included, r.drops, r.opaque = nil, nil, 0

	ev := filter.NewEvaluator(r.syms)
	var picked []ir.Element
	isPicked := make(map[ir.Element]bool)
	for _, tu := range forest {
		for e := range ir.Walk(tu) {
			if !selectable(e) || !ev.Matches(pred, e) {
				continue
			}
			picked = append(picked, e)
			isPicked[e] = true
			if c, ok := e.(*ir.Class); ok {
				r.selected[c.QualifiedName()] = true
			}
		}
	}

	for _, e := range picked {
		c, ok := e.(*ir.Class)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := r.class(c.QualifiedName()); err != nil {
			return nil, err
		}
	}

	res := &Result{Root: &ir.TranslationUnit{Name: module}}
	out := newPlacer(res.Root)
	emitted := make(map[string]bool)
	for _, tu := range forest {
		for e := range ir.Walk(tu) {
			switch e := e.(type) {
			case *ir.Class:
				q := e.QualifiedName()
				c := r.done[q]
				if c == nil || emitted[q] || r.syms.classes[q] != e {
					continue
				}
				emitted[q] = true
				if err := out.place(namespacesOf(e), c); err != nil {
					return nil, err
				}
				res.Classes++
			case *ir.Method, *ir.Typedef, *ir.Template:
				if !isPicked[e] {
					continue
				}
				resolved, err := r.declaration(e)
				if err != nil {
					if r.skip(e, err) {
						continue
					}
					return nil, err
				}
				if err := out.place(namespacesOf(e), resolved); err != nil {
					return nil, err
				}
				if _, ok := e.(*ir.Method); ok {
					res.Functions++
				}
			}
		}
	}
	ir.SetParents(res.Root)

	res.Included = r.included
	res.Dropped = r.drops
	res.Opaque = r.opaque
	r.logger.Info("resolution complete",
		"module", module,
		"policy", string(r.policy),
		"classes", res.Classes,
		"functions", res.Functions,
		"included", len(res.Included),
		"dropped", len(res.Dropped))
	return res, nil
}

// selectable reports whether e can be picked by the inclusion filter:
// classes anywhere, and typedefs, templates and free functions directly
// under a namespace or translation unit.
func selectable(e ir.Element) bool {
	switch e.(type) {
	case *ir.Class:
		return true
	case *ir.Method, *ir.Typedef, *ir.Template:
		switch e.Parent().(type) {
		case *ir.Namespace, *ir.TranslationUnit:
			return true
		}
	}
	return false
}

// canResolve reports whether references to the class q can be mapped. A
// class in progress counts as resolvable so mutually referencing classes
// terminate. Classes outside the selection only resolve under the include
// policy.
func (r *Resolver) canResolve(q string) (bool, error) {
	if r.guard.Active(q) {
		return true, nil
	}
	if c, ok := r.done[q]; ok {
		return c != nil && c.IsNotEmpty(), nil
	}
	if !r.selected[q] && r.policy != PolicyInclude {
		return false, nil
	}
	c, err := r.class(q)
	if err != nil {
		return false, err
	}
	if c != nil && !r.selected[q] {
		r.included = append(r.included, q)
		r.logger.Debug("class included", "class", q)
	}
	return c != nil && c.IsNotEmpty(), nil
}

// class resolves the raw class q once. A class that fails under a
// non-throwing policy is remembered as nil.
func (r *Resolver) class(q string) (*ir.Class, error) {
	if c, ok := r.done[q]; ok {
		return c, nil
	}
	raw, ok := r.syms.classes[q]
	if !ok {
		return nil, &UnresolvedError{Spelling: q, Reason: "unknown class"}
	}
	if !r.guard.Enter(q) {
		return nil, fmt.Errorf("resolve %s: %w", q, ErrReentered)
	}
	defer r.guard.Leave(q)

	c, err := r.resolveClass(raw)
	if err != nil {
		if !r.skip(raw, err) {
			return nil, err
		}
		c = nil
	}
	r.done[q] = c
	return c, nil
}

func (r *Resolver) resolveClass(raw *ir.Class) (*ir.Class, error) {
	q := raw.QualifiedName()
	scope := append(scopeOf(raw), raw.Name)
	out := ir.CloneWithoutChildren(raw).(*ir.Class)
	out.Type = r.lower(q)

	if raw.SpecifiedType != "" {
		mapped, err := r.resolveSpelling(raw.SpecifiedType, scopeOf(raw))
		if err != nil {
			return nil, err
		}
		out.SpecifiedType = mapped
	}
	if raw.BaseClass != nil {
		mapped, ue, err := r.mapSpelling(raw.BaseClass.Spelling, scopeOf(raw))
		switch {
		case err != nil:
			return nil, err
		case ue != nil && r.policy == PolicyThrow:
			ue.Element = raw.String()
			return nil, ue
		case ue != nil:
			// The binding loses the superclass but keeps the class.
			r.logger.Debug("base class dropped", "class", q, "base", raw.BaseClass.Spelling, "reason", ue.Reason)
			out.BaseClass = nil
		default:
			out.BaseClass = r.lower(mapped)
		}
	}

	members, meta := r.members(raw, q)
	out.Metadata = meta
	for _, m := range members {
		var (
			el  ir.Element
			err error
		)
		switch m := m.(type) {
		case *ir.Method:
			el, err = r.method(out, m, scope)
		case *ir.Field:
			el, err = r.field(out, m, scope)
		default:
			continue
		}
		if err != nil {
			if r.skip(m, err) {
				continue
			}
			return nil, err
		}
		if err := ir.AddChild(out, el); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// members returns the raw members to resolve after the class-level
// adjustments: a synthesized default constructor, copy constructor
// detection, void assignment operators, hidden new/delete and a trailing
// size query.
func (r *Resolver) members(raw *ir.Class, q string) ([]ir.Element, ir.ClassMetadata) {
	meta := raw.Metadata
	scope := append(scopeOf(raw), raw.Name)

	inherited := false
	for _, b := range r.syms.bases(raw) {
		if b.Metadata.HasConstructor {
			inherited = true
			break
		}
	}

	var out []ir.Element
	for _, c := range raw.Children() {
		switch c := c.(type) {
		case *ir.Method:
			m := ir.Clone(c).(*ir.Method)
			switch {
			case m.IsConstructor() && meta.HasHiddenNew:
				continue
			case m.IsDestructor() && meta.HasHiddenDelete:
				continue
			case m.IsConstructor():
				args := m.Args()
				if len(args) == 0 {
					m.Default = true
					meta.HasDefaultConstructor = true
				}
				if len(args) == 1 {
					if b, ok := r.syms.classOf(args[0].Type.Spelling, scope); ok && b == raw {
						m.Copy = true
						meta.HasCopyConstructor = true
					}
				}
			}
			if info, ok := m.Operator.Info(); ok && info.Class == ir.OpClassAssign {
				m.ReturnType = &ir.CppType{Spelling: "void", Void: true}
			}
			out = append(out, m)
		case *ir.Field:
			out = append(out, c)
		}
	}

	if !raw.Abstract && !meta.HasConstructor && !inherited && !meta.HasHiddenNew {
		out = append([]ir.Element{&ir.Method{
			Name:       "new",
			MethodKind: ir.MethodConstructor,
			ReturnType: &ir.CppType{Spelling: q},
			Qualified:  q + "::new",
			Default:    true,
		}}, out...)
		meta.HasDefaultConstructor = true
	}
	out = append(out, &ir.Method{
		Name:       "size_of",
		MethodKind: ir.MethodSizeOf,
		ReturnType: &ir.CppType{Spelling: "size_t"},
		Qualified:  q + "::size_of",
	})
	return out, meta
}

// declaration resolves a selected namespace-level typedef, template or
// free function.
func (r *Resolver) declaration(e ir.Element) (ir.Element, error) {
	scope := scopeOf(e)
	switch e := e.(type) {
	case *ir.Method:
		return r.method(nil, e, scope)
	case *ir.Typedef:
		out := ir.CloneWithoutChildren(e).(*ir.Typedef)
		if e.Target != nil {
			mapped, err := r.resolveSpelling(e.Target.Spelling, scope)
			if err != nil {
				return nil, err
			}
			out.Target = r.lower(mapped)
		}
		return out, nil
	case *ir.Template:
		// Members of a template are not resolved until instantiated.
		return ir.CloneWithoutChildren(e), nil
	}
	return nil, fmt.Errorf("cannot resolve %s", e)
}

// method resolves a member function, constructor, destructor or size query
// of cls, or a free function when cls is nil.
func (r *Resolver) method(cls *ir.Class, raw *ir.Method, scope []string) (*ir.Method, error) {
	out := ir.CloneWithoutChildren(raw).(*ir.Method)
	var args []*ir.Argument

	switch {
	case raw.IsConstructor():
		out.Allocation = r.alloc
		args = append(args, r.nativeArg("location"))
		if r.alloc == ir.AllocStack {
			args = append(args, r.nativeArg("callback"))
			out.ReturnType, out.ReturnStyle = r.lower("void"), ir.ReturnVoid
		} else {
			out.ReturnType, out.ReturnStyle = r.lower(cls.Type.Spelling+"*"), ir.ReturnVoidPtr
		}
	case raw.IsDestructor():
		out.ReturnType, out.ReturnStyle = r.lower("void"), ir.ReturnVoid
	default:
		if err := r.returnType(out, raw, scope); err != nil {
			return nil, err
		}
	}

	if cls != nil && needsThis(raw.MethodKind) {
		args = append(args, r.thiz(cls))
	}
	if !raw.IsDestructor() {
		explicit, err := r.arguments(raw, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, explicit...)
	}
	for _, a := range args {
		if err := ir.AddChild(out, a); err != nil {
			return nil, err
		}
	}

	owner := strings.Join(namespacesOf(raw), "::")
	if cls != nil {
		owner = cls.Type.Spelling
	}
	out.UniqueCName = r.names.Method(owner, out)
	return out, nil
}

func needsThis(k ir.MethodKind) bool {
	switch k {
	case ir.MethodRegular, ir.MethodDestructor:
		return true
	}
	return false
}

// returnType sets the return type and style of a regular method. A value
// that cannot be returned directly travels as a pointer at the ABI level;
// the host type stays the value type.
func (r *Resolver) returnType(out, raw *ir.Method, scope []string) error {
	spelling := "void"
	if raw.ReturnType != nil && raw.ReturnType.Spelling != "" {
		spelling = raw.ReturnType.Spelling
	}
	mapped, err := r.resolveSpelling(spelling, scope)
	if err != nil {
		return err
	}
	f, err := typemodel.Classify(mapped)
	if err != nil {
		return &UnresolvedError{Spelling: spelling, Reason: err.Error()}
	}

	out.ReturnStyle = returnStyle(f, r.canAssign(f))
	abi := mapped
	if !typemodel.IsReturnable(f) {
		abi = mapped + "*"
	}
	ret := r.lower(abi)
	ret.Host = r.lower(mapped).Host
	if out.ReturnStyle == ir.ReturnArgCast && !typemodel.Unreference(f).Pointer {
		out.ArgCastNeedsPointer = true
		ret.Abi = r.lower(mapped + "*").Abi
	}
	out.ReturnType = ret
	return nil
}

// arguments resolves the declared arguments. When one fails and every
// argument from it on has a default, the call is truncated there instead.
func (r *Resolver) arguments(raw *ir.Method, scope []string) ([]*ir.Argument, error) {
	declared := raw.Args()
	out := make([]*ir.Argument, 0, len(declared))
	for i, a := range declared {
		resolved, err := r.argument(a, scope)
		if err != nil {
			if IsUnresolvedError(err) && allDefaulted(declared[i:]) {
				r.logger.Debug("arguments truncated", "method", raw.Qualified, "at", a.Name)
				return out, nil
			}
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func allDefaulted(args []*ir.Argument) bool {
	for _, a := range args {
		if !a.HasDefault {
			return false
		}
	}
	return true
}

func (r *Resolver) argument(a *ir.Argument, scope []string) (*ir.Argument, error) {
	if a.Type == nil {
		return nil, &UnresolvedError{Spelling: "", Element: a.String(), Reason: "missing type"}
	}
	declared, err := typemodel.Classify(a.Type.Spelling)
	if err != nil {
		return nil, &UnresolvedError{Spelling: a.Type.Spelling, Element: a.String(), Reason: err.Error()}
	}
	mapped, err := r.resolveSpelling(typemodel.Unreference(declared).Spelling, scope)
	if err != nil {
		return nil, err
	}
	out := r.lowerArgument(a.Name, declared, mapped)
	out.USR = a.USR
	out.HasDefault = a.HasDefault
	return out, nil
}

// lowerArgument builds an argument of the already mapped, reference-free
// type. A value that is neither a pointer nor native is passed by pointer
// and dereferenced in the shim.
func (r *Resolver) lowerArgument(name string, declared typemodel.Facts, mapped string) *ir.Argument {
	f, _ := typemodel.Classify(mapped)
	u := typemodel.Unconst(f)
	deref := !u.Pointer && !u.Native && !u.LongDouble
	typ := r.lower(mapped)
	sig := typ
	if deref {
		sig = r.lower(mapped + "*")
	}
	return &ir.Argument{
		Name:             name,
		Type:             typ,
		SignatureType:    sig,
		CastMode:         castMode(declared, f),
		NeedsDereference: deref,
	}
}

func (r *Resolver) thiz(cls *ir.Class) *ir.Argument {
	t := r.lower(cls.Type.Spelling + "*")
	return &ir.Argument{
		Name:             "thiz",
		Type:             t,
		SignatureType:    t.Clone(),
		CastMode:         ir.CastModeReinterpret,
		NeedsDereference: true,
	}
}

func (r *Resolver) nativeArg(name string) *ir.Argument {
	t := r.lower("void*")
	return &ir.Argument{
		Name:          name,
		Type:          t,
		SignatureType: t.Clone(),
		CastMode:      ir.CastModeNative,
	}
}

// field resolves a data member and its accessors. Const or unassignable
// fields get no setter.
func (r *Resolver) field(cls *ir.Class, raw *ir.Field, scope []string) (*ir.Field, error) {
	if raw.Type == nil {
		return nil, &UnresolvedError{Element: raw.String(), Reason: "missing type"}
	}
	mapped, err := r.resolveSpelling(raw.Type.Spelling, scope)
	if err != nil {
		return nil, err
	}
	f, err := typemodel.Classify(mapped)
	if err != nil {
		return nil, &UnresolvedError{Spelling: raw.Type.Spelling, Reason: err.Error()}
	}

	typ := r.lower(mapped)
	out := &ir.Field{
		Name:     raw.Name,
		Const:    raw.Const || f.Const,
		Type:     typ,
		HostType: typ.Host.Clone(),
	}

	assignable := r.canAssign(f)
	getter := mapped
	if !typemodel.IsReturnable(f) {
		getter = mapped + "*"
	}
	ret := r.lower(getter)
	ret.Host = typ.Host.Clone()
	out.Getter = ir.Accessor{
		UniqueCName:      r.names.Getter(cls.Type.Spelling, raw.Name),
		ReturnStyle:      returnStyle(f, assignable),
		ReturnType:       ret,
		Args:             []*ir.Argument{r.thiz(cls)},
		NeedsDereference: !typemodel.IsReturnable(f),
	}
	if !out.Const && assignable {
		out.Setter = &ir.Accessor{
			UniqueCName: r.names.Setter(cls.Type.Spelling, raw.Name),
			ReturnStyle: ir.ReturnVoid,
			ReturnType:  r.lower("void"),
			Args:        []*ir.Argument{r.thiz(cls), r.lowerArgument("value", f, mapped)},
		}
	}
	return out, nil
}
