package rules

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/cbind/internal/filter"
)

// Filter keys other than selectors.
const (
	keyKind        = "kind"
	keyNot         = "not"
	keyAny         = "any"
	keyAll         = "all"
	keyParent      = "parent"
	keyBase        = "base"
	keyAnyChild    = "any_child"
	keyAllChildren = "all_children"
)

var hierarchyKeys = map[string]filter.HierarchyTarget{
	keyParent:      filter.TargetParent,
	keyBase:        filter.TargetBase,
	keyAnyChild:    filter.TargetAnyChild,
	keyAllChildren: filter.TargetAllChildren,
}

var matchOps = []string{
	string(filter.OpEquals), string(filter.OpContains), string(filter.OpStartsWith),
	string(filter.OpEndsWith), string(filter.OpRegex),
}

// Action keys.
const (
	keyRemove     = "remove"
	keyRename     = "rename"
	keyReturnType = "return_type"
	keyType       = "type"
)

var actionKeys = []string{keyRemove, keyRename, keyReturnType, keyType}

func filterKeys() []string {
	keys := []string{keyKind, keyNot, keyAny, keyAll, keyParent, keyBase, keyAnyChild, keyAllChildren}
	return append(keys, filter.KnownSelectors()...)
}

// CompileRule compiles one rule value, e.g. the value at rule.strip_const:
//
//	rule: strip_const: {
//		filter: {
//			kind: "method"
//			method_return_type: starts_with: "const "
//		}
//		action: return_type: trim_prefix: "const "
//	}
func CompileRule(v cue.Value) (*Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	r := &Rule{pos: v.Pos()}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		r.name = unquote(sels[len(sels)-1].String())
	}

	it, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Rule: r.name, Field: "rule", Message: "rule must be a struct", Pos: v.Pos()}
	}
	for it.Next() {
		switch label := it.Selector().Unquoted(); label {
		case "filter", "action", "description":
		default:
			return nil, unknownField(r.name, label, "rule field", []string{"filter", "action", "description"}, it.Value().Pos())
		}
	}

	fv := v.LookupPath(cue.ParsePath("filter"))
	if !fv.Exists() {
		return nil, &CompileError{Rule: r.name, Field: "filter", Message: "filter is required", Pos: v.Pos()}
	}
	pred, err := compileFilter(r.name, fv)
	if err != nil {
		return nil, err
	}
	if res := filter.Validate(pred); !res.Valid() {
		return nil, &CompileError{Rule: r.name, Field: "filter", Message: strings.Join(res.Errors, "; "), Pos: fv.Pos()}
	}
	r.pred = pred

	av := v.LookupPath(cue.ParsePath("action"))
	if !av.Exists() {
		return nil, &CompileError{Rule: r.name, Field: "action", Message: "action is required", Pos: v.Pos()}
	}
	if r.actions, err = compileActions(r.name, av); err != nil {
		return nil, err
	}

	if dv := v.LookupPath(cue.ParsePath("description")); dv.Exists() {
		if r.description, err = dv.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	return r, nil
}

// compileFilter turns a filter struct into a predicate. The fields of one
// struct are ANDed in declaration order; the string "all" matches
// everything.
func compileFilter(rule string, v cue.Value) (filter.Predicate, error) {
	if s, err := v.String(); err == nil {
		if s == "all" {
			return filter.All{}, nil
		}
		return nil, &CompileError{Rule: rule, Field: "filter", Message: fmt.Sprintf("filter must be a struct or \"all\", got %q", s), Pos: v.Pos()}
	}
	it, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Rule: rule, Field: "filter", Message: "filter must be a struct or \"all\"", Pos: v.Pos()}
	}

	var parts []filter.Predicate
	for it.Next() {
		label := it.Selector().Unquoted()
		fv := it.Value()
		p, err := compileFilterField(rule, label, fv)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	switch len(parts) {
	case 0:
		return filter.All{}, nil
	case 1:
		return parts[0], nil
	}
	return filter.AndOf(parts...), nil
}

func compileFilterField(rule, label string, v cue.Value) (filter.Predicate, error) {
	switch label {
	case keyKind:
		kinds, err := stringOrList(v)
		if err != nil {
			return nil, &CompileError{Rule: rule, Field: keyKind, Message: "kind must be a string or a list of strings", Pos: v.Pos()}
		}
		ek := make([]filter.ElementKind, len(kinds))
		for i, k := range kinds {
			ek[i] = filter.ElementKind(k)
		}
		return filter.IsKind(ek...), nil

	case keyNot:
		inner, err := compileFilter(rule, v)
		if err != nil {
			return nil, err
		}
		return filter.NotOf(inner), nil

	case keyAny, keyAll:
		list, err := v.List()
		if err != nil {
			return nil, &CompileError{Rule: rule, Field: label, Message: label + " must be a list of filters", Pos: v.Pos()}
		}
		var ps []filter.Predicate
		for list.Next() {
			p, err := compileFilter(rule, list.Value())
			if err != nil {
				return nil, err
			}
			ps = append(ps, p)
		}
		if label == keyAny {
			return filter.OrOf(ps...), nil
		}
		return filter.AndOf(ps...), nil
	}

	if target, ok := hierarchyKeys[label]; ok {
		inner, err := compileFilter(rule, v)
		if err != nil {
			return nil, err
		}
		return filter.Hierarchy{Target: target, Predicate: inner}, nil
	}

	if slices.Contains(filter.KnownSelectors(), label) {
		return compileMatch(rule, filter.Selector(label), v)
	}
	return nil, unknownField(rule, label, "filter key", filterKeys(), v.Pos())
}

// compileMatch accepts `sel: "x"` (equals) or `sel: op: "x"`.
func compileMatch(rule string, sel filter.Selector, v cue.Value) (filter.Predicate, error) {
	if s, err := v.String(); err == nil {
		return filter.Equals(sel, s), nil
	}
	it, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Rule: rule, Field: string(sel), Message: "match must be a string or {op: value}", Pos: v.Pos()}
	}

	var ps []filter.Predicate
	for it.Next() {
		op := it.Selector().Unquoted()
		if !slices.Contains(matchOps, op) {
			return nil, unknownField(rule, op, "match op", matchOps, it.Value().Pos())
		}
		val, err := it.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ps = append(ps, filter.StringMatch{Selector: sel, Op: filter.MatchOp(op), Value: val})
	}
	switch len(ps) {
	case 0:
		return nil, &CompileError{Rule: rule, Field: string(sel), Message: "match needs an op", Pos: v.Pos()}
	case 1:
		return ps[0], nil
	}
	return filter.AndOf(ps...), nil
}

func compileActions(rule string, v cue.Value) ([]Action, error) {
	it, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Rule: rule, Field: "action", Message: "action must be a struct", Pos: v.Pos()}
	}

	var actions []Action
	removes := false
	for it.Next() {
		label := it.Selector().Unquoted()
		av := it.Value()
		switch label {
		case keyRemove:
			b, err := av.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if b {
				removes = true
				actions = append(actions, Remove{})
			}

		case keyRename:
			name, err := av.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if name == "" {
				return nil, &CompileError{Rule: rule, Field: keyRename, Message: "rename needs a name", Pos: av.Pos()}
			}
			actions = append(actions, Rename{Name: name})

		case keyReturnType:
			tr, err := compileTypeRewrite(rule, label, av)
			if err != nil {
				return nil, err
			}
			actions = append(actions, ReturnType{TypeRewrite: tr})

		case keyType:
			tr, err := compileTypeRewrite(rule, label, av)
			if err != nil {
				return nil, err
			}
			actions = append(actions, SetType{TypeRewrite: tr})

		default:
			return nil, unknownField(rule, label, "action", actionKeys, av.Pos())
		}
	}
	if len(actions) == 0 {
		return nil, &CompileError{Rule: rule, Field: "action", Message: "action does nothing", Pos: v.Pos()}
	}
	if removes && len(actions) > 1 {
		return nil, &CompileError{Rule: rule, Field: "action", Message: "remove cannot be combined with other actions", Pos: v.Pos()}
	}
	return actions, nil
}

func compileTypeRewrite(rule, field string, v cue.Value) (TypeRewrite, error) {
	var tr TypeRewrite
	it, err := v.Fields()
	if err != nil {
		return tr, &CompileError{Rule: rule, Field: field, Message: field + " must be a struct", Pos: v.Pos()}
	}
	known := []string{"trim_prefix", "set"}
	for it.Next() {
		label := it.Selector().Unquoted()
		s, err := it.Value().String()
		if err != nil {
			return tr, formatCUEError(err)
		}
		switch label {
		case "trim_prefix":
			tr.TrimPrefix = s
		case "set":
			tr.Set = s
		default:
			return tr, unknownField(rule, label, field+" key", known, it.Value().Pos())
		}
	}
	if tr.TrimPrefix == "" && tr.Set == "" {
		return tr, &CompileError{Rule: rule, Field: field, Message: "needs trim_prefix or set", Pos: v.Pos()}
	}
	if tr.TrimPrefix != "" && tr.Set != "" {
		return tr, &CompileError{Rule: rule, Field: field, Message: "trim_prefix and set are exclusive", Pos: v.Pos()}
	}
	return tr, nil
}

func stringOrList(v cue.Value) ([]string, error) {
	if s, err := v.String(); err == nil {
		return []string{s}, nil
	}
	list, err := v.List()
	if err != nil {
		return nil, err
	}
	var out []string
	for list.Next() {
		s, err := list.Value().String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func unquote(label string) string {
	return strings.Trim(label, `"`)
}
