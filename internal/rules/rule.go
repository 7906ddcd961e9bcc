package rules

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/ir"
	"github.com/roach88/cbind/internal/mapping"
)

// Rule is a compiled mapping rule. It implements mapping.Mapper; its
// callback only records edits on the scope.
type Rule struct {
	name        string
	description string
	pred        filter.Predicate
	actions     []Action
	pos         token.Pos
}

func (r *Rule) Name() string             { return r.name }
func (r *Rule) Filter() filter.Predicate { return r.pred }
func (r *Rule) Description() string      { return r.description }
func (r *Rule) Actions() []Action        { return r.actions }
func (r *Rule) Pos() token.Pos           { return r.pos }

// Map applies the rule's actions to target in order.
func (r *Rule) Map(s *mapping.Scope, target ir.Element) error {
	for _, a := range r.actions {
		if err := a.apply(s, target); err != nil {
			return fmt.Errorf("%s: %w", a, err)
		}
	}
	return nil
}

func (r *Rule) String() string {
	parts := make([]string, len(r.actions))
	for i, a := range r.actions {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s: %s -> %s", r.name, r.pred, strings.Join(parts, ", "))
}

// Action is one edit a rule makes to a matched element.
type Action interface {
	apply(s *mapping.Scope, target ir.Element) error
	String() string
}

// Remove detaches the matched element.
type Remove struct{}

func (Remove) String() string { return "remove" }

func (Remove) apply(s *mapping.Scope, target ir.Element) error {
	s.Remove(target)
	return nil
}

// Rename sets the matched element's name.
type Rename struct {
	Name string
}

func (a Rename) String() string { return fmt.Sprintf("rename(%q)", a.Name) }

func (a Rename) apply(s *mapping.Scope, target ir.Element) error {
	switch t := target.(type) {
	case *ir.Namespace:
		mapping.Edit(s, t, func(n *ir.Namespace) { n.Name = a.Name })
	case *ir.Class:
		mapping.Edit(s, t, func(c *ir.Class) { c.Name = a.Name })
	case *ir.Template:
		mapping.Edit(s, t, func(c *ir.Template) { c.Name = a.Name })
	case *ir.Typedef:
		mapping.Edit(s, t, func(d *ir.Typedef) { d.Name = a.Name })
	case *ir.Method:
		mapping.Edit(s, t, func(m *ir.Method) { m.Name = a.Name })
	case *ir.Field:
		mapping.Edit(s, t, func(f *ir.Field) { f.Name = a.Name })
	case *ir.Argument:
		mapping.Edit(s, t, func(arg *ir.Argument) { arg.Name = a.Name })
	case *ir.TranslationUnit:
		return fmt.Errorf("cannot rename %s", t)
	}
	return nil
}

// TypeRewrite changes a type spelling: either trimming a prefix, which
// keeps the lowered facts of the type, or setting a new spelling, which is
// lowered afresh through the session's type cache.
type TypeRewrite struct {
	TrimPrefix string
	Set        string
}

func (tr TypeRewrite) String() string {
	if tr.Set != "" {
		return fmt.Sprintf("set %q", tr.Set)
	}
	return fmt.Sprintf("trim_prefix %q", tr.TrimPrefix)
}

// rewrite returns the new type for t. t is never modified.
func (tr TypeRewrite) rewrite(s *mapping.Scope, t *ir.CppType) (*ir.CppType, error) {
	if tr.Set != "" {
		return s.ResolveType(tr.Set)
	}
	if t == nil {
		return nil, nil
	}
	out := t.Clone()
	out.Spelling = strings.TrimPrefix(out.Spelling, tr.TrimPrefix)
	return out, nil
}

// ReturnType rewrites a method's return type. The return style is kept.
type ReturnType struct {
	TypeRewrite
}

func (a ReturnType) String() string { return "return_type " + a.TypeRewrite.String() }

func (a ReturnType) apply(s *mapping.Scope, target ir.Element) error {
	m, ok := target.(*ir.Method)
	if !ok {
		return fmt.Errorf("return_type applies to methods, not %s", target.Kind())
	}
	t, err := a.rewrite(s, m.ReturnType)
	if err != nil {
		return err
	}
	mapping.Edit(s, m, func(m *ir.Method) { m.ReturnType = t })
	return nil
}

// SetType rewrites the type of a field or argument.
type SetType struct {
	TypeRewrite
}

func (a SetType) String() string { return "type " + a.TypeRewrite.String() }

func (a SetType) apply(s *mapping.Scope, target ir.Element) error {
	switch t := target.(type) {
	case *ir.Field:
		typ, err := a.rewrite(s, t.Type)
		if err != nil {
			return err
		}
		mapping.Edit(s, t, func(f *ir.Field) { f.Type = typ })
	case *ir.Argument:
		typ, err := a.rewrite(s, t.Type)
		if err != nil {
			return err
		}
		mapping.Edit(s, t, func(arg *ir.Argument) { arg.Type = typ })
	default:
		return fmt.Errorf("type applies to fields and arguments, not %s", target.Kind())
	}
	return nil
}
