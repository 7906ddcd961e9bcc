package ir

import (
	"fmt"
	"slices"
)

// CloneWithoutChildren copies e's own attributes into a detached element
// with no children. Type objects, accessors and metadata are deep-copied so
// the clone never shares mutable state with the original.
func CloneWithoutChildren(e Element) Element {
	switch el := e.(type) {
	case *TranslationUnit:
		return &TranslationUnit{Name: el.Name}
	case *Namespace:
		return &Namespace{Name: el.Name}
	case *Class:
		return &Class{
			Name:          el.Name,
			SpecifiedType: el.SpecifiedType,
			Abstract:      el.Abstract,
			BaseClass:     el.BaseClass.Clone(),
			Metadata:      el.Metadata,
			Type:          el.Type.Clone(),
		}
	case *Template:
		params := slices.Clone(el.Params)
		for i := range params {
			params[i].Default = params[i].Default.Clone()
		}
		return &Template{
			Name:      el.Name,
			Qualified: el.Qualified,
			BaseClass: el.BaseClass.Clone(),
			Params:    params,
			Metadata:  el.Metadata.Clone(),
		}
	case *Typedef:
		return &Typedef{Name: el.Name, Target: el.Target.Clone()}
	case *Method:
		return &Method{
			Name:                el.Name,
			ReturnType:          el.ReturnType.Clone(),
			MethodKind:          el.MethodKind,
			UniqueCName:         el.UniqueCName,
			Operator:            el.Operator,
			ReturnStyle:         el.ReturnStyle,
			ArgCastNeedsPointer: el.ArgCastNeedsPointer,
			Qualified:           el.Qualified,
			Copy:                el.Copy,
			Default:             el.Default,
			Allocation:          el.Allocation,
		}
	case *Field:
		return &Field{
			Name:     el.Name,
			Const:    el.Const,
			Type:     el.Type.Clone(),
			Getter:   *el.Getter.Clone(),
			Setter:   el.Setter.Clone(),
			HostType: el.HostType.Clone(),
		}
	case *Argument:
		return &Argument{
			Name:             el.Name,
			Type:             el.Type.Clone(),
			SignatureType:    el.SignatureType.Clone(),
			USR:              el.USR,
			CastMode:         el.CastMode,
			NeedsDereference: el.NeedsDereference,
			HasDefault:       el.HasDefault,
		}
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("ir: unknown element %T", e))
	}
}

// Clone deep-copies the subtree rooted at e. The copy is detached.
func Clone(e Element) Element {
	if e == nil {
		return nil
	}
	c := CloneWithoutChildren(e)
	for _, child := range e.node().children {
		attach(c, Clone(child))
	}
	return c
}
