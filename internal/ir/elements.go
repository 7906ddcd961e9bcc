package ir

import (
	"fmt"
	"strings"
)

// MethodKind distinguishes method specializations.
type MethodKind string

const (
	MethodConstructor MethodKind = "constructor"
	MethodDestructor  MethodKind = "destructor"
	MethodRegular     MethodKind = "method"
	MethodStaticOp    MethodKind = "static_op"
	MethodStatic      MethodKind = "static"
	MethodSizeOf      MethodKind = "size_of"
)

// ReturnStyle is how a method hands its result across the shim.
type ReturnStyle string

const (
	ReturnVoid            ReturnStyle = "void"
	ReturnVoidPtr         ReturnStyle = "voidp"
	ReturnVoidPtrRef      ReturnStyle = "voidp_reference"
	ReturnArgCast         ReturnStyle = "arg_cast"
	ReturnString          ReturnStyle = "string"
	ReturnStringPointer   ReturnStyle = "string_pointer"
	ReturnCopyConstructor ReturnStyle = "copy_constructor"
	ReturnValue           ReturnStyle = "return"
	ReturnReference       ReturnStyle = "return_reference"
)

// CastMode is how an argument is converted inside the shim.
type CastMode string

const (
	CastModeNative      CastMode = "native"
	CastModeString      CastMode = "string"
	CastModeReinterpret CastMode = "reint_cast"
	CastModeRaw         CastMode = "raw_cast"
	CastModeMove        CastMode = "std_move"
)

// AllocationStyle is how a constructor places the new object.
type AllocationStyle string

const (
	AllocDirect AllocationStyle = "direct"
	AllocStack  AllocationStyle = "stack"
)

// TranslationUnit is the root container for one indexing run.
type TranslationUnit struct {
	Node
	Name string
}

func (*TranslationUnit) isElement() {}

// Kind implements Element.
func (*TranslationUnit) Kind() Kind { return KindTranslationUnit }

func (t *TranslationUnit) String() string { return fmt.Sprintf("tu(%s)", t.Name) }

// Namespace is a C++ namespace scope.
type Namespace struct {
	Node
	Name string
}

func (*Namespace) isElement() {}

// Kind implements Element.
func (*Namespace) Kind() Kind { return KindNamespace }

func (n *Namespace) String() string { return fmt.Sprintf("nm(%s)", n.Name) }

// ClassMetadata records facts gathered during lowering that later passes
// (default constructor synthesis, hidden new/delete) depend on.
type ClassMetadata struct {
	HasConstructor        bool `json:"has_constructor,omitempty"`
	HasDefaultConstructor bool `json:"has_default_constructor,omitempty"`
	HasCopyConstructor    bool `json:"has_copy_constructor,omitempty"`
	HasHiddenNew          bool `json:"has_hidden_new,omitempty"`
	HasHiddenDelete       bool `json:"has_hidden_delete,omitempty"`
	HasPrivateConstField  bool `json:"has_private_const_field,omitempty"`
}

// Class is a resolved class or struct.
type Class struct {
	Node
	Name          string
	SpecifiedType string // explicit fully-qualified override
	Abstract      bool
	BaseClass     *CppType
	Metadata      ClassMetadata
	Type          *CppType

	// cached is the dirty flag for notEmpty; touch clears it.
	cached   bool
	notEmpty bool
}

func (*Class) isElement() {}

// Kind implements Element.
func (*Class) Kind() Kind { return KindClass }

func (c *Class) String() string { return fmt.Sprintf("cls(%s)", c.Name) }

// QualifiedName returns the override, the self type spelling or the simple
// name, in that order.
func (c *Class) QualifiedName() string {
	switch {
	case c.SpecifiedType != "":
		return c.SpecifiedType
	case c.Type != nil && c.Type.Spelling != "":
		return c.Type.Spelling
	default:
		return c.Name
	}
}

// IsNotEmpty reports whether the class has a method that is not a size
// query, or a constructor taking arguments. The value is cached until a
// structural edit under the class marks it dirty.
func (c *Class) IsNotEmpty() bool {
	if !c.cached {
		c.notEmpty = c.computeNotEmpty()
		c.cached = true
	}
	return c.notEmpty
}

func (c *Class) computeNotEmpty() bool {
	for _, m := range ChildrenOf[*Method](c) {
		switch m.MethodKind {
		case MethodSizeOf:
			continue
		case MethodConstructor:
			if len(m.Args()) > 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// TemplateParam is one formal parameter of a class template.
type TemplateParam struct {
	Name    string   `json:"name"`
	USR     string   `json:"usr,omitempty"`
	Default *CppType `json:"default,omitempty"`
}

// Template is a class template declaration.
type Template struct {
	Node
	Name      string
	Qualified string
	BaseClass *CppType
	Params    []TemplateParam
	Metadata  Object
}

func (*Template) isElement() {}

// Kind implements Element.
func (*Template) Kind() Kind { return KindTemplate }

func (t *Template) String() string {
	names := make([]string, len(t.Params))
	for i, p := range t.Params {
		names[i] = p.Name
	}
	return fmt.Sprintf("tmpl(%s<%s>)", t.Name, strings.Join(names, ", "))
}

// Typedef is a typedef or alias declaration.
type Typedef struct {
	Node
	Name   string
	Target *CppType
}

func (*Typedef) isElement() {}

// Kind implements Element.
func (*Typedef) Kind() Kind { return KindTypedef }

func (t *Typedef) String() string { return fmt.Sprintf("typedef(%s = %s)", t.Name, t.Target) }

// Method is a member function, constructor, destructor or synthesized
// size query. Arguments are its children.
type Method struct {
	Node
	Name                string
	ReturnType          *CppType
	MethodKind          MethodKind
	UniqueCName         string
	Operator            Operator
	ReturnStyle         ReturnStyle
	ArgCastNeedsPointer bool
	Qualified           string

	// Constructor only.
	Copy       bool
	Default    bool
	Allocation AllocationStyle
}

func (*Method) isElement() {}

// Kind implements Element.
func (*Method) Kind() Kind { return KindMethod }

func (m *Method) String() string {
	args := m.Args()
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("fun %s(%s): %s", m.Name, strings.Join(parts, ", "), m.ReturnType)
}

// Args returns the argument children in order.
func (m *Method) Args() []*Argument { return ChildrenOf[*Argument](m) }

// IsConstructor reports whether m is a constructor.
func (m *Method) IsConstructor() bool { return m.MethodKind == MethodConstructor }

// IsDestructor reports whether m is a destructor.
func (m *Method) IsDestructor() bool { return m.MethodKind == MethodDestructor }

// Accessor describes one generated field accessor.
type Accessor struct {
	UniqueCName      string      `json:"unique_c_name"`
	ReturnStyle      ReturnStyle `json:"return_style,omitempty"`
	ReturnType       *CppType    `json:"return_type,omitempty"`
	Args             []*Argument `json:"-"`
	NeedsDereference bool        `json:"needs_dereference,omitempty"`
}

// Clone deep-copies the accessor and its arguments.
func (a *Accessor) Clone() *Accessor {
	if a == nil {
		return nil
	}
	c := *a
	c.ReturnType = a.ReturnType.Clone()
	if a.Args != nil {
		c.Args = make([]*Argument, len(a.Args))
		for i, arg := range a.Args {
			c.Args[i] = CloneWithoutChildren(arg).(*Argument)
		}
	}
	return &c
}

// Field is a data member with a generated getter and optional setter.
type Field struct {
	Node
	Name     string
	Const    bool
	Type     *CppType
	Getter   Accessor
	Setter   *Accessor
	HostType *HostType
}

func (*Field) isElement() {}

// Kind implements Element.
func (*Field) Kind() Kind { return KindField }

func (f *Field) String() string { return fmt.Sprintf("val %s: %s", f.Name, f.Type) }

// Argument is one parameter of a method or accessor.
type Argument struct {
	Node
	Name             string
	Type             *CppType
	SignatureType    *CppType
	USR              string
	CastMode         CastMode
	NeedsDereference bool
	HasDefault       bool
}

func (*Argument) isElement() {}

// Kind implements Element.
func (*Argument) Kind() Kind { return KindArgument }

func (a *Argument) String() string { return fmt.Sprintf("%s: %s", a.Name, a.Type) }
