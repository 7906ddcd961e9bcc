package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"bool", Bool(true), "true"},
		{"empty list", List{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"no html escape", String("a<b>&c"), `"a<b>&c"`},
		{"line separator literal", String("a\u2028b"), "\"a\u2028b\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	got, err := MarshalCanonical(Object{
		"zebra": Int(1),
		"alpha": Object{"b": Int(1), "a": Int(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"zebra":1}`, string(got))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute normalizes to the precomposed form.
	got, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshalCanonicalRejectsNull(t *testing.T) {
	_, err := MarshalCanonical(Object{"a": Null{}})
	assert.Error(t, err)
}

func TestUnmarshalValueRejectsFloat(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"a": 1.5}`))
	assert.Error(t, err)

	v, err := UnmarshalValue([]byte(`{"a": [1, "x", true, null]}`))
	require.NoError(t, err)
	assert.Equal(t, Object{"a": List{Int(1), String("x"), Bool(true), Null{}}}, v)
}

func TestFingerprintIgnoresIdentity(t *testing.T) {
	build := func() Element {
		return MustAdd(&Namespace{Name: "n"},
			MustAdd(&Class{Name: "A", Type: cpp("n::A")}, method("f", MethodRegular, arg("x", "int"))))
	}
	a, b := build(), build()
	assert.Equal(t, MustFingerprint(a), MustFingerprint(b))

	b.Children()[0].(*Class).Name = "B"
	assert.NotEqual(t, MustFingerprint(a), MustFingerprint(b))
}

func TestSnapshotIDDependsOnModule(t *testing.T) {
	root := MustAdd(&TranslationUnit{Name: "a.h"}, &Class{Name: "A"})
	x, err := SnapshotID("x", root)
	require.NoError(t, err)
	y, err := SnapshotID("y", root)
	require.NoError(t, err)
	assert.NotEqual(t, x, y)
	assert.Len(t, x, 64)
}
