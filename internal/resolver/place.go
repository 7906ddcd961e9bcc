package resolver

import (
	"strings"

	"github.com/roach88/cbind/internal/ir"
)

// placer puts resolved elements under their namespace path in the output
// tree, opening each namespace once.
type placer struct {
	root       *ir.TranslationUnit
	namespaces map[string]*ir.Namespace
}

func newPlacer(root *ir.TranslationUnit) *placer {
	return &placer{root: root, namespaces: make(map[string]*ir.Namespace)}
}

func (p *placer) place(path []string, e ir.Element) error {
	var parent ir.Element = p.root
	for i := range path {
		key := strings.Join(path[:i+1], "::")
		ns, ok := p.namespaces[key]
		if !ok {
			ns = &ir.Namespace{Name: path[i]}
			if err := ir.AddChild(parent, ns); err != nil {
				return err
			}
			p.namespaces[key] = ns
		}
		parent = ns
	}
	return ir.AddChild(parent, e)
}
