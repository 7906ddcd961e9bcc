package resolver

import "github.com/roach88/cbind/internal/ir"

// Bases indexes the classes of a resolved tree by qualified name so base
// hierarchy predicates can reach superclasses. Rebuild it after the tree
// changes.
type Bases map[string]*ir.Class

// BasesOf indexes every class under root.
func BasesOf(root ir.Element) Bases {
	b := make(Bases)
	for e := range ir.Walk(root) {
		if c, ok := e.(*ir.Class); ok {
			b[c.QualifiedName()] = c
		}
	}
	return b
}

// ResolveBase implements filter.BaseResolver.
func (b Bases) ResolveBase(c *ir.Class) (ir.Element, bool) {
	if c.BaseClass == nil {
		return nil, false
	}
	base, ok := b[c.BaseClass.Spelling]
	if !ok {
		return nil, false
	}
	return base, true
}
