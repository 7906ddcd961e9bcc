package ir

import (
	"encoding/json"
	"fmt"
)

// envelope is the flat wire form of one element's own attributes.
// Children are never part of it; trees are rebuilt from parent links
// (store rows) or from the "children" list of Document.
type envelope struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name,omitempty"`

	// class
	SpecifiedType string         `json:"specified_type,omitempty"`
	Abstract      bool           `json:"abstract,omitempty"`
	BaseClass     *CppType       `json:"base_class,omitempty"`
	ClassMeta     *ClassMetadata `json:"class_meta,omitempty"`
	Type          *CppType       `json:"type,omitempty"`

	// template
	Qualified string          `json:"qualified,omitempty"`
	Params    []TemplateParam `json:"params,omitempty"`
	Metadata  Object          `json:"metadata,omitempty"`

	// typedef
	Target *CppType `json:"target,omitempty"`

	// method
	ReturnType          *CppType        `json:"return_type,omitempty"`
	MethodKind          MethodKind      `json:"method_kind,omitempty"`
	UniqueCName         string          `json:"unique_c_name,omitempty"`
	Operator            Operator        `json:"operator,omitempty"`
	ReturnStyle         ReturnStyle     `json:"return_style,omitempty"`
	ArgCastNeedsPointer bool            `json:"arg_cast_needs_pointer,omitempty"`
	Copy                bool            `json:"copy,omitempty"`
	Default             bool            `json:"default,omitempty"`
	Allocation          AllocationStyle `json:"allocation,omitempty"`

	// field
	Const    bool              `json:"const,omitempty"`
	Getter   *accessorEnvelope `json:"getter,omitempty"`
	Setter   *accessorEnvelope `json:"setter,omitempty"`
	HostType *HostType         `json:"host_type,omitempty"`

	// argument
	SignatureType    *CppType `json:"signature_type,omitempty"`
	USR              string   `json:"usr,omitempty"`
	CastMode         CastMode `json:"cast_mode,omitempty"`
	NeedsDereference bool     `json:"needs_dereference,omitempty"`
	HasDefault       bool     `json:"has_default,omitempty"`
}

type accessorEnvelope struct {
	Accessor
	Args []envelope `json:"args,omitempty"`
}

func toEnvelope(e Element) envelope {
	env := envelope{Kind: e.Kind()}
	switch el := e.(type) {
	case *TranslationUnit:
		env.Name = el.Name
	case *Namespace:
		env.Name = el.Name
	case *Class:
		meta := el.Metadata
		env.Name = el.Name
		env.SpecifiedType = el.SpecifiedType
		env.Abstract = el.Abstract
		env.BaseClass = el.BaseClass
		env.ClassMeta = &meta
		env.Type = el.Type
	case *Template:
		env.Name = el.Name
		env.Qualified = el.Qualified
		env.BaseClass = el.BaseClass
		env.Params = el.Params
		env.Metadata = el.Metadata
	case *Typedef:
		env.Name = el.Name
		env.Target = el.Target
	case *Method:
		env.Name = el.Name
		env.ReturnType = el.ReturnType
		env.MethodKind = el.MethodKind
		env.UniqueCName = el.UniqueCName
		env.Operator = el.Operator
		env.ReturnStyle = el.ReturnStyle
		env.ArgCastNeedsPointer = el.ArgCastNeedsPointer
		env.Qualified = el.Qualified
		env.Copy = el.Copy
		env.Default = el.Default
		env.Allocation = el.Allocation
	case *Field:
		env.Name = el.Name
		env.Const = el.Const
		env.Type = el.Type
		env.Getter = toAccessorEnvelope(&el.Getter)
		env.Setter = toAccessorEnvelope(el.Setter)
		env.HostType = el.HostType
	case *Argument:
		env.Name = el.Name
		env.Type = el.Type
		env.SignatureType = el.SignatureType
		env.USR = el.USR
		env.CastMode = el.CastMode
		env.NeedsDereference = el.NeedsDereference
		env.HasDefault = el.HasDefault
	}
	return env
}

func toAccessorEnvelope(a *Accessor) *accessorEnvelope {
	if a == nil {
		return nil
	}
	out := &accessorEnvelope{Accessor: *a}
	for _, arg := range a.Args {
		out.Args = append(out.Args, toEnvelope(arg))
	}
	return out
}

func fromEnvelope(env envelope) (Element, error) {
	switch env.Kind {
	case KindTranslationUnit:
		return &TranslationUnit{Name: env.Name}, nil
	case KindNamespace:
		return &Namespace{Name: env.Name}, nil
	case KindClass:
		c := &Class{
			Name:          env.Name,
			SpecifiedType: env.SpecifiedType,
			Abstract:      env.Abstract,
			BaseClass:     env.BaseClass,
			Type:          env.Type,
		}
		if env.ClassMeta != nil {
			c.Metadata = *env.ClassMeta
		}
		return c, nil
	case KindTemplate:
		return &Template{
			Name:      env.Name,
			Qualified: env.Qualified,
			BaseClass: env.BaseClass,
			Params:    env.Params,
			Metadata:  env.Metadata,
		}, nil
	case KindTypedef:
		return &Typedef{Name: env.Name, Target: env.Target}, nil
	case KindMethod:
		return &Method{
			Name:                env.Name,
			ReturnType:          env.ReturnType,
			MethodKind:          env.MethodKind,
			UniqueCName:         env.UniqueCName,
			Operator:            env.Operator,
			ReturnStyle:         env.ReturnStyle,
			ArgCastNeedsPointer: env.ArgCastNeedsPointer,
			Qualified:           env.Qualified,
			Copy:                env.Copy,
			Default:             env.Default,
			Allocation:          env.Allocation,
		}, nil
	case KindField:
		f := &Field{
			Name:     env.Name,
			Const:    env.Const,
			Type:     env.Type,
			HostType: env.HostType,
		}
		if env.Getter != nil {
			g, err := fromAccessorEnvelope(env.Getter)
			if err != nil {
				return nil, fmt.Errorf("getter: %w", err)
			}
			f.Getter = *g
		}
		if env.Setter != nil {
			s, err := fromAccessorEnvelope(env.Setter)
			if err != nil {
				return nil, fmt.Errorf("setter: %w", err)
			}
			f.Setter = s
		}
		return f, nil
	case KindArgument:
		return &Argument{
			Name:             env.Name,
			Type:             env.Type,
			SignatureType:    env.SignatureType,
			USR:              env.USR,
			CastMode:         env.CastMode,
			NeedsDereference: env.NeedsDereference,
			HasDefault:       env.HasDefault,
		}, nil
	default:
		return nil, fmt.Errorf("unknown element kind %q", env.Kind)
	}
}

func fromAccessorEnvelope(env *accessorEnvelope) (*Accessor, error) {
	a := env.Accessor
	a.Args = nil
	for _, argEnv := range env.Args {
		el, err := fromEnvelope(argEnv)
		if err != nil {
			return nil, err
		}
		arg, ok := el.(*Argument)
		if !ok {
			return nil, fmt.Errorf("accessor argument has kind %q", argEnv.Kind)
		}
		a.Args = append(a.Args, arg)
	}
	return &a, nil
}

// MarshalElement encodes e's own attributes (not its children).
func MarshalElement(e Element) ([]byte, error) {
	if e == nil {
		return nil, ErrNilElement
	}
	return json.Marshal(toEnvelope(e))
}

// UnmarshalElement decodes attributes written by MarshalElement into a
// detached element with no children.
func UnmarshalElement(data []byte) (Element, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode element: %w", err)
	}
	return fromEnvelope(env)
}

// Document is the nested JSON form of a whole tree.
type Document struct {
	envelope
	Children []Document `json:"children,omitempty"`
}

// ToDocument converts the subtree under e to its nested JSON form.
func ToDocument(e Element) Document {
	doc := Document{envelope: toEnvelope(e)}
	for _, c := range e.node().children {
		doc.Children = append(doc.Children, ToDocument(c))
	}
	return doc
}

// FromDocument rebuilds a tree from its nested form. Parent links are set.
func FromDocument(doc Document) (Element, error) {
	e, err := fromEnvelope(doc.envelope)
	if err != nil {
		return nil, err
	}
	for i, cd := range doc.Children {
		c, err := FromDocument(cd)
		if err != nil {
			return nil, fmt.Errorf("%s child %d: %w", e, i, err)
		}
		attach(e, c)
	}
	return e, nil
}

// CanonicalValue converts the subtree under e to a Value suitable for
// MarshalCanonical.
func CanonicalValue(e Element) (Value, error) {
	data, err := json.Marshal(ToDocument(e))
	if err != nil {
		return nil, err
	}
	return UnmarshalValue(data)
}
