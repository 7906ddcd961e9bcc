package ir

import (
	"maps"
	"slices"
	"strings"
)

// Type is a sealed interface over the three type representations an element
// can carry: the C++ type, its C ABI counterpart and the host-language type.
type Type interface {
	String() string
	isType()
}

// CastMethod describes how a value crosses the shim boundary.
type CastMethod string

const (
	CastNative        CastMethod = "native"
	CastString        CastMethod = "string_cast"
	CastPointedString CastMethod = "pointed_string_cast"
	CastReinterpret   CastMethod = "cast"
)

// CppType is a resolved C++ type paired with its ABI and host forms.
type CppType struct {
	Spelling string     `json:"spelling"`
	Host     *HostType  `json:"host,omitempty"`
	Abi      *CType     `json:"abi,omitempty"`
	Cast     CastMethod `json:"cast,omitempty"`
	Void     bool       `json:"void,omitempty"`
}

func (*CppType) isType() {}

func (t *CppType) String() string {
	if t == nil {
		return ""
	}
	return t.Spelling
}

// Clone deep-copies t, including its paired types.
func (t *CppType) Clone() *CppType {
	if t == nil {
		return nil
	}
	c := *t
	c.Host = t.Host.Clone()
	c.Abi = t.Abi.Clone()
	return &c
}

// CType is the C-linkage type used at the shim boundary.
type CType struct {
	Spelling string `json:"spelling"`
	Void     bool   `json:"void,omitempty"`
}

func (*CType) isType() {}

func (t *CType) String() string {
	if t == nil {
		return ""
	}
	return t.Spelling
}

// Clone copies t.
func (t *CType) Clone() *CType {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// HostType is the type exposed by the generated wrapper.
//
// Qualified holds the package path parts and the simple name. Remap is
// consulted when the name is rendered, so a table installed after resolution
// still applies.
type HostType struct {
	Qualified []string          `json:"qualified"`
	Wrapper   bool              `json:"wrapper,omitempty"`
	Templates []*HostType       `json:"templates,omitempty"`
	Nullable  bool              `json:"nullable,omitempty"`
	Remap     map[string]string `json:"remap,omitempty"`
}

func (*HostType) isType() {}

// QualifiedName joins the qualifier parts and applies the remap table.
func (t *HostType) QualifiedName() string {
	if t == nil {
		return ""
	}
	full := strings.Join(t.Qualified, ".")
	if r, ok := t.Remap[full]; ok {
		return r
	}
	return full
}

// SimpleName returns the last qualifier part after remapping.
func (t *HostType) SimpleName() string {
	full := t.QualifiedName()
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[i+1:]
	}
	return full
}

// Package returns the qualifier parts before the simple name.
func (t *HostType) Package() string {
	full := t.QualifiedName()
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[:i]
	}
	return ""
}

// String renders the full host name: `pkg.Name<A, B>?`.
func (t *HostType) String() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(t.QualifiedName())
	if len(t.Templates) > 0 {
		b.WriteByte('<')
		for i, a := range t.Templates {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	if t.Nullable {
		b.WriteByte('?')
	}
	return b.String()
}

// WithNullable returns a copy of t with the nullable flag set.
func (t *HostType) WithNullable(nullable bool) *HostType {
	c := t.Clone()
	c.Nullable = nullable
	return c
}

// Clone deep-copies t.
func (t *HostType) Clone() *HostType {
	if t == nil {
		return nil
	}
	c := *t
	c.Qualified = slices.Clone(t.Qualified)
	if t.Templates != nil {
		c.Templates = make([]*HostType, len(t.Templates))
		for i, a := range t.Templates {
			c.Templates[i] = a.Clone()
		}
	}
	c.Remap = maps.Clone(t.Remap)
	return &c
}
