package filter

import (
	"iter"
	"regexp"
	"strings"
	"sync"

	"github.com/roach88/cbind/internal/ir"
)

// BaseResolver finds the element declaring a class's base type.
type BaseResolver interface {
	ResolveBase(c *ir.Class) (ir.Element, bool)
}

// BaseResolverFunc adapts a function to BaseResolver.
type BaseResolverFunc func(c *ir.Class) (ir.Element, bool)

// ResolveBase implements BaseResolver.
func (f BaseResolverFunc) ResolveBase(c *ir.Class) (ir.Element, bool) { return f(c) }

// Evaluator matches predicates against elements. It caches compiled regular
// expressions and is safe for concurrent use.
type Evaluator struct {
	base BaseResolver

	mu      sync.Mutex
	regexes map[string]*regexp.Regexp // nil value: pattern does not compile
}

// NewEvaluator creates an Evaluator. A nil base resolver makes every base
// hierarchy predicate false.
func NewEvaluator(base BaseResolver) *Evaluator {
	return &Evaluator{base: base, regexes: make(map[string]*regexp.Regexp)}
}

// Matches evaluates p against e without a base resolver.
func Matches(p Predicate, e ir.Element) bool {
	return NewEvaluator(nil).Matches(p, e)
}

// Matches reports whether e satisfies p. A nil predicate matches every
// element; a nil element matches nothing.
func (ev *Evaluator) Matches(p Predicate, e ir.Element) bool {
	if e == nil {
		return false
	}
	return ev.matches(p, e)
}

// Select yields the elements under root (root included) that satisfy p, in
// pre-order.
func (ev *Evaluator) Select(p Predicate, root ir.Element) iter.Seq[ir.Element] {
	return func(yield func(ir.Element) bool) {
		for e := range ir.Walk(root) {
			if ev.Matches(p, e) && !yield(e) {
				return
			}
		}
	}
}

func (ev *Evaluator) matches(p Predicate, e ir.Element) bool {
	switch p := p.(type) {
	case nil, All:
		return true
	case TypeKind:
		for _, k := range p.Kinds {
			if kindMatches(k, e) {
				return true
			}
		}
		return false
	case And:
		for _, q := range p.Predicates {
			if !ev.matches(q, e) {
				return false
			}
		}
		return true
	case Or:
		for _, q := range p.Predicates {
			if ev.matches(q, e) {
				return true
			}
		}
		return false
	case Not:
		return !ev.matches(p.Predicate, e)
	case Hierarchy:
		return ev.hierarchy(p, e)
	case StringMatch:
		s, ok := SelectString(p.Selector, e)
		if !ok {
			return false
		}
		return ev.compare(p.Op, s, p.Value)
	}
	return false
}

func (ev *Evaluator) hierarchy(p Hierarchy, e ir.Element) bool {
	switch p.Target {
	case TargetParent:
		parent := e.Parent()
		return parent != nil && ev.matches(p.Predicate, parent)
	case TargetBase:
		c, ok := e.(*ir.Class)
		if !ok || ev.base == nil {
			return false
		}
		b, ok := ev.base.ResolveBase(c)
		return ok && b != nil && ev.matches(p.Predicate, b)
	case TargetAnyChild:
		for _, c := range e.Children() {
			if ev.matches(p.Predicate, c) {
				return true
			}
		}
		return false
	case TargetAllChildren:
		// Vacuously true on a leaf.
		for _, c := range e.Children() {
			if !ev.matches(p.Predicate, c) {
				return false
			}
		}
		return true
	}
	return false
}

func kindMatches(k ElementKind, e ir.Element) bool {
	switch e.(type) {
	case *ir.Class:
		return k == KindClass
	case *ir.Method:
		return k == KindMethod
	case *ir.Field:
		return k == KindField
	case *ir.Typedef, *ir.Template:
		return k == KindType
	case *ir.Namespace:
		return k == KindNamespace
	case *ir.TranslationUnit, *ir.Argument:
		return false
	}
	return false
}

// SelectString extracts the string a selector compares. ok is false when
// the selector does not apply to e.
func SelectString(s Selector, e ir.Element) (string, bool) {
	switch s {
	case SelectStringify:
		return e.String(), true
	case SelectClassName:
		if c, ok := e.(*ir.Class); ok {
			return c.Name, true
		}
	case SelectClassQualified:
		if c, ok := e.(*ir.Class); ok {
			return c.QualifiedName(), true
		}
	case SelectNamespace:
		if n, ok := e.(*ir.Namespace); ok {
			return n.Name, true
		}
	case SelectMethodName:
		if m, ok := e.(*ir.Method); ok {
			return m.Name, true
		}
	case SelectMethodKind:
		if m, ok := e.(*ir.Method); ok {
			return string(m.MethodKind), true
		}
	case SelectMethodReturnType:
		if m, ok := e.(*ir.Method); ok && m.ReturnType != nil {
			return m.ReturnType.Spelling, true
		}
	}
	return "", false
}

func (ev *Evaluator) compare(op MatchOp, s, v string) bool {
	switch op {
	case OpEquals:
		return s == v
	case OpContains:
		return strings.Contains(s, v)
	case OpStartsWith:
		return strings.HasPrefix(s, v)
	case OpEndsWith:
		return strings.HasSuffix(s, v)
	case OpRegex:
		re := ev.regex(v)
		return re != nil && re.MatchString(s)
	}
	return false
}

func (ev *Evaluator) regex(pattern string) *regexp.Regexp {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if re, ok := ev.regexes[pattern]; ok {
		return re
	}
	re, err := compileAnchored(pattern)
	if err != nil {
		re = nil
	}
	if ev.regexes != nil {
		ev.regexes[pattern] = re
	}
	return re
}

func compileAnchored(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)$`)
}
