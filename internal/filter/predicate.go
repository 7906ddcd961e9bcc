package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Predicate is a filter condition over one IR element.
//
// This is a sealed interface; only types in this package implement it.
type Predicate interface {
	fmt.Stringer
	predicateNode()
}

// ElementKind is a coarse element category a TypeKind predicate tests for.
type ElementKind string

const (
	KindClass     ElementKind = "class"
	KindMethod    ElementKind = "method"
	KindField     ElementKind = "field"
	KindType      ElementKind = "type" // typedefs and templates
	KindNamespace ElementKind = "namespace"
)

var elementKinds = []ElementKind{KindClass, KindMethod, KindField, KindType, KindNamespace}

// HierarchyTarget selects which related element(s) a Hierarchy predicate
// evaluates its inner predicate against.
type HierarchyTarget string

const (
	TargetParent      HierarchyTarget = "parent"
	TargetBase        HierarchyTarget = "base"
	TargetAnyChild    HierarchyTarget = "any_child"
	TargetAllChildren HierarchyTarget = "all_children"
)

var hierarchyTargets = []HierarchyTarget{TargetParent, TargetBase, TargetAnyChild, TargetAllChildren}

// Selector picks the string a StringMatch compares.
type Selector string

const (
	SelectStringify        Selector = "stringify"
	SelectClassName        Selector = "class_name"
	SelectClassQualified   Selector = "class_qualified"
	SelectNamespace        Selector = "namespace"
	SelectMethodName       Selector = "method_name"
	SelectMethodKind       Selector = "method_kind"
	SelectMethodReturnType Selector = "method_return_type"
)

var selectors = []Selector{
	SelectStringify, SelectClassName, SelectClassQualified, SelectNamespace,
	SelectMethodName, SelectMethodKind, SelectMethodReturnType,
}

// MatchOp is the string comparison a StringMatch applies.
type MatchOp string

const (
	OpEquals     MatchOp = "equals"
	OpContains   MatchOp = "contains"
	OpStartsWith MatchOp = "starts_with"
	OpEndsWith   MatchOp = "ends_with"
	OpRegex      MatchOp = "regex" // whole-string match
)

var matchOps = []MatchOp{OpEquals, OpContains, OpStartsWith, OpEndsWith, OpRegex}

// All matches every element.
type All struct{}

func (All) predicateNode() {}

func (All) String() string { return "all" }

// TypeKind matches elements of any of the listed kinds.
type TypeKind struct {
	Kinds []ElementKind
}

func (TypeKind) predicateNode() {}

func (p TypeKind) String() string {
	parts := make([]string, len(p.Kinds))
	for i, k := range p.Kinds {
		parts[i] = string(k)
	}
	return "kind(" + strings.Join(parts, ", ") + ")"
}

// And matches when every operand matches. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

func (p And) String() string { return group("and", p.Predicates) }

// Or matches when any operand matches. An empty Or matches nothing.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

func (p Or) String() string { return group("or", p.Predicates) }

// Not inverts its operand.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

func (p Not) String() string { return "not(" + str(p.Predicate) + ")" }

// Hierarchy evaluates Predicate against element(s) related to the candidate.
type Hierarchy struct {
	Target    HierarchyTarget
	Predicate Predicate
}

func (Hierarchy) predicateNode() {}

func (p Hierarchy) String() string { return string(p.Target) + "(" + str(p.Predicate) + ")" }

// StringMatch compares the selected string against Value.
type StringMatch struct {
	Selector Selector
	Op       MatchOp
	Value    string
}

func (StringMatch) predicateNode() {}

func (p StringMatch) String() string {
	return fmt.Sprintf("%s %s %s", p.Selector, p.Op, strconv.Quote(p.Value))
}

func group(op string, ps []Predicate) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = str(p)
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}

func str(p Predicate) string {
	if p == nil {
		return "<nil>"
	}
	return p.String()
}

// AndOf builds an And, merging the operands of directly nested And groups.
func AndOf(ps ...Predicate) Predicate {
	var flat []Predicate
	for _, p := range ps {
		if a, ok := p.(And); ok {
			flat = append(flat, a.Predicates...)
			continue
		}
		flat = append(flat, p)
	}
	return And{Predicates: flat}
}

// OrOf builds an Or, merging the operands of directly nested Or groups.
func OrOf(ps ...Predicate) Predicate {
	var flat []Predicate
	for _, p := range ps {
		if o, ok := p.(Or); ok {
			flat = append(flat, o.Predicates...)
			continue
		}
		flat = append(flat, p)
	}
	return Or{Predicates: flat}
}

// NotOf negates p.
func NotOf(p Predicate) Predicate { return Not{Predicate: p} }

// IsKind matches elements of any of the given kinds.
func IsKind(kinds ...ElementKind) Predicate { return TypeKind{Kinds: kinds} }

// Equals matches when the selected string equals v.
func Equals(s Selector, v string) Predicate { return StringMatch{Selector: s, Op: OpEquals, Value: v} }

// Contains matches when the selected string contains v.
func Contains(s Selector, v string) Predicate {
	return StringMatch{Selector: s, Op: OpContains, Value: v}
}

// StartsWith matches when the selected string has prefix v.
func StartsWith(s Selector, v string) Predicate {
	return StringMatch{Selector: s, Op: OpStartsWith, Value: v}
}

// EndsWith matches when the selected string has suffix v.
func EndsWith(s Selector, v string) Predicate {
	return StringMatch{Selector: s, Op: OpEndsWith, Value: v}
}

// Regex matches when the whole selected string matches the pattern.
func Regex(s Selector, pattern string) Predicate {
	return StringMatch{Selector: s, Op: OpRegex, Value: pattern}
}

// ElementTarget names the element a predicate is written against, relative
// to the candidate.
type ElementTarget string

const (
	This        ElementTarget = "this"
	Parent      ElementTarget = "parent"
	Base        ElementTarget = "base"
	Child       ElementTarget = "child"
	AllChildren ElementTarget = "all_children"
)

// Wrap re-targets p. This returns p unchanged.
func (t ElementTarget) Wrap(p Predicate) Predicate {
	switch t {
	case Parent:
		return Hierarchy{Target: TargetParent, Predicate: p}
	case Base:
		return Hierarchy{Target: TargetBase, Predicate: p}
	case Child:
		return Hierarchy{Target: TargetAnyChild, Predicate: p}
	case AllChildren:
		return Hierarchy{Target: TargetAllChildren, Predicate: p}
	}
	return p
}

// Default is the inclusion filter used when none is configured: classes
// outside std and the reserved "__" space, plus free static functions whose
// enclosing namespace is not reserved.
func Default() Predicate {
	return OrOf(
		AndOf(
			IsKind(KindClass),
			NotOf(StartsWith(SelectClassQualified, "std::")),
			NotOf(StartsWith(SelectClassQualified, "__")),
		),
		AndOf(
			IsKind(KindMethod),
			Equals(SelectMethodKind, "static"),
			NotOf(Parent.Wrap(IsKind(KindClass))),
			Parent.Wrap(NotOf(AndOf(IsKind(KindNamespace), StartsWith(SelectNamespace, "_")))),
		),
	)
}
