package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() Element {
	cls := &Class{
		Name:      "Foo",
		Type:      &CppType{Spelling: "ns::Foo", Abi: &CType{Spelling: "void*"}, Cast: CastReinterpret},
		BaseClass: cpp("ns::Base"),
		Metadata:  ClassMetadata{HasConstructor: true, HasCopyConstructor: true},
	}
	ctor := &Method{Name: "new", MethodKind: MethodConstructor, ReturnStyle: ReturnVoidPtr, Default: true, Allocation: AllocDirect}
	MustAdd(ctor, &Argument{Name: "location", Type: cpp("void*"), CastMode: CastModeNative})
	op := &Method{Name: "plus", MethodKind: MethodRegular, Operator: OpPlus, ReturnType: cpp("ns::Foo*"), ReturnStyle: ReturnArgCast, ArgCastNeedsPointer: true}
	field := &Field{
		Name:     "count",
		Type:     cpp("int"),
		Getter:   Accessor{UniqueCName: "_ns_Foo_count_get", ReturnStyle: ReturnValue, Args: []*Argument{{Name: "thiz", Type: cpp("ns::Foo*")}}},
		Setter:   &Accessor{UniqueCName: "_ns_Foo_count_set"},
		HostType: &HostType{Qualified: []string{"kotlin", "Int"}},
	}
	MustAdd(cls, ctor, op, field)
	tmpl := &Template{Name: "Box", Params: []TemplateParam{{Name: "T", USR: "c:@T"}}, Metadata: Object{"k": Int(1)}}
	return MustAdd(&TranslationUnit{Name: "foo.h"},
		MustAdd(&Namespace{Name: "ns"}, cls, tmpl, &Typedef{Name: "FooPtr", Target: cpp("ns::Foo*")}))
}

func TestDocumentRoundTrip(t *testing.T) {
	root := sampleTree()
	data, err := json.Marshal(ToDocument(root))
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	back, err := FromDocument(doc)
	require.NoError(t, err)

	assert.Equal(t, MustFingerprint(root), MustFingerprint(back))
	cls := back.Children()[0].Children()[0].(*Class)
	assert.Equal(t, back.Children()[0], cls.Parent())
	field := ChildrenOf[*Field](cls)[0]
	require.Len(t, field.Getter.Args, 1)
	assert.Equal(t, "thiz", field.Getter.Args[0].Name)
}

func TestMarshalElementAttributesOnly(t *testing.T) {
	cls := sampleTree().Children()[0].Children()[0]
	data, err := MarshalElement(cls)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "children")

	back, err := UnmarshalElement(data)
	require.NoError(t, err)
	c := back.(*Class)
	assert.Equal(t, "Foo", c.Name)
	assert.Equal(t, "ns::Base", c.BaseClass.Spelling)
	assert.True(t, c.Metadata.HasCopyConstructor)
	assert.Empty(t, c.Children())
}

func TestUnmarshalElementUnknownKind(t *testing.T) {
	_, err := UnmarshalElement([]byte(`{"kind":"enum"}`))
	assert.Error(t, err)
}
