package resolver

import (
	"slices"
	"strings"

	"github.com/roach88/cbind/internal/ir"
	"github.com/roach88/cbind/internal/typemodel"
)

type symbolKind int

const (
	symClass symbolKind = iota + 1
	symTemplate
	symTypedef
)

type typedefEntry struct {
	target string
	scope  []string
}

// symbols is the lookup table over a raw forest. The first declaration of
// a qualified name wins.
type symbols struct {
	classes   map[string]*ir.Class
	templates map[string]*ir.Template
	typedefs  map[string]typedefEntry
}

func indexForest(forest []*ir.TranslationUnit) *symbols {
	s := &symbols{
		classes:   make(map[string]*ir.Class),
		templates: make(map[string]*ir.Template),
		typedefs:  make(map[string]typedefEntry),
	}
	for _, tu := range forest {
		for e := range ir.Walk(tu) {
			switch e := e.(type) {
			case *ir.Class:
				if _, ok := s.classes[e.QualifiedName()]; !ok {
					s.classes[e.QualifiedName()] = e
				}
			case *ir.Template:
				if _, ok := s.templates[e.Qualified]; !ok {
					s.templates[e.Qualified] = e
				}
			case *ir.Typedef:
				scope := scopeOf(e)
				q := qualify(scope, e.Name)
				if _, ok := s.typedefs[q]; !ok && e.Target != nil {
					s.typedefs[q] = typedefEntry{target: e.Target.Spelling, scope: scope}
				}
			}
		}
	}
	return s
}

// scopeOf returns the names of the namespaces, classes and templates
// enclosing e, outermost first.
func scopeOf(e ir.Element) []string {
	var scope []string
	for p := e.Parent(); p != nil; p = p.Parent() {
		switch p := p.(type) {
		case *ir.Namespace:
			scope = append(scope, p.Name)
		case *ir.Class:
			scope = append(scope, p.Name)
		case *ir.Template:
			scope = append(scope, p.Name)
		}
	}
	slices.Reverse(scope)
	return scope
}

// namespacesOf returns only the enclosing namespace names, outermost first.
func namespacesOf(e ir.Element) []string {
	var ns []string
	for p := e.Parent(); p != nil; p = p.Parent() {
		if n, ok := p.(*ir.Namespace); ok {
			ns = append(ns, n.Name)
		}
	}
	slices.Reverse(ns)
	return ns
}

func qualify(scope []string, name string) string {
	if len(scope) == 0 {
		return name
	}
	return strings.Join(scope, "::") + "::" + name
}

// lookup finds name as seen from scope, innermost scope first. A leading
// "::" only matches at the global scope.
func (s *symbols) lookup(name string, scope []string) (string, symbolKind, bool) {
	if abs, ok := strings.CutPrefix(name, "::"); ok {
		k, ok := s.kind(abs)
		return abs, k, ok
	}
	for i := len(scope); i >= 0; i-- {
		q := qualify(scope[:i], name)
		if k, ok := s.kind(q); ok {
			return q, k, true
		}
	}
	return "", 0, false
}

func (s *symbols) kind(q string) (symbolKind, bool) {
	if _, ok := s.classes[q]; ok {
		return symClass, true
	}
	if _, ok := s.templates[q]; ok {
		return symTemplate, true
	}
	if _, ok := s.typedefs[q]; ok {
		return symTypedef, true
	}
	return 0, false
}

// classOf finds the raw class a spelling names from scope, looking through
// const, reference and pointer layers.
func (s *symbols) classOf(spelling string, scope []string) (*ir.Class, bool) {
	f, err := typemodel.Classify(spelling)
	if err != nil {
		return nil, false
	}
	q, k, ok := s.lookup(typemodel.Base(f).Spelling, scope)
	if !ok || k != symClass {
		return nil, false
	}
	return s.classes[q], true
}

// bases returns the raw base chain of c, nearest first.
func (s *symbols) bases(c *ir.Class) []*ir.Class {
	var out []*ir.Class
	seen := map[*ir.Class]bool{c: true}
	for c.BaseClass != nil {
		b, ok := s.classOf(c.BaseClass.Spelling, scopeOf(c))
		if !ok || seen[b] {
			break
		}
		seen[b] = true
		out = append(out, b)
		c = b
	}
	return out
}

// ResolveBase implements filter.BaseResolver over the raw forest.
func (s *symbols) ResolveBase(c *ir.Class) (ir.Element, bool) {
	if c.BaseClass == nil {
		return nil, false
	}
	b, ok := s.classOf(c.BaseClass.Spelling, scopeOf(c))
	if !ok {
		return nil, false
	}
	return b, true
}
