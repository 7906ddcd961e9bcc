package querysql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cbind/internal/filter"
)

func TestCompile_Kind(t *testing.T) {
	compiler := NewSQLCompiler("snap-1")

	sql, params, err := compiler.Compile(filter.IsKind(filter.KindClass))
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, parent_id, kind, name, description FROM elements WHERE snapshot_id = ? AND kind IN (?) ORDER BY id ASC",
		sql)
	assert.Equal(t, []any{"snap-1", "class"}, params)
}

func TestCompile_TypeKindExpandsToTypedefAndTemplate(t *testing.T) {
	sql, params, err := NewSQLCompiler("s").Compile(filter.IsKind(filter.KindType, filter.KindField))
	require.NoError(t, err)
	assert.Contains(t, sql, "kind IN (?, ?, ?)")
	assert.Equal(t, []any{"s", "typedef", "template", "field"}, params)
}

func TestCompile_OrderByMandatory(t *testing.T) {
	compiler := NewSQLCompiler("s")
	preds := []filter.Predicate{
		filter.All{},
		filter.IsKind(),
		filter.AndOf(),
		filter.OrOf(filter.IsKind(filter.KindMethod), filter.Equals(filter.SelectStringify, "x")),
		filter.NotOf(filter.Contains(filter.SelectClassName, "Impl")),
	}
	for _, p := range preds {
		t.Run(p.String(), func(t *testing.T) {
			sql, _, err := compiler.Compile(p)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(sql, " ORDER BY id ASC"), sql)
		})
	}
}

func TestCompile_Groups(t *testing.T) {
	p := filter.AndOf(
		filter.IsKind(filter.KindClass),
		filter.NotOf(filter.StartsWith(filter.SelectClassQualified, "std::")),
	)
	sql, params, err := NewSQLCompiler("s").Compile(p)
	require.NoError(t, err)

	assert.Contains(t, sql, "(kind IN (?) AND NOT ((kind = ? AND qualified GLOB ?)))")
	assert.Equal(t, []any{"s", "class", "class", "std::*"}, params)

	sql, params, err = NewSQLCompiler("s").Compile(filter.OrOf())
	require.NoError(t, err)
	assert.Contains(t, sql, "AND 1 = 0 ORDER BY")
	assert.Equal(t, []any{"s"}, params)
}

func TestCompile_StringOpsAreParameterized(t *testing.T) {
	tests := []struct {
		name  string
		p     filter.Predicate
		cond  string
		param any
	}{
		{"equals", filter.Equals(filter.SelectStringify, "cls(A)"), "description = ?", "cls(A)"},
		{"contains", filter.Contains(filter.SelectStringify, "A"), "description GLOB ?", "*A*"},
		{"starts", filter.StartsWith(filter.SelectStringify, "fun "), "description GLOB ?", "fun *"},
		{"ends", filter.EndsWith(filter.SelectStringify, ")"), "description GLOB ?", "*)"},
		{"escapes metacharacters", filter.Contains(filter.SelectStringify, "a*b?[c]"), "description GLOB ?", "*a[*]b[?][[]c]*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := NewSQLCompiler("s").Compile(tt.p)
			require.NoError(t, err)
			assert.Contains(t, sql, tt.cond)
			assert.Equal(t, []any{"s", tt.param}, params)
		})
	}
}

func TestCompile_KindScopedSelectors(t *testing.T) {
	sql, params, err := NewSQLCompiler("s").Compile(filter.Equals(filter.SelectMethodReturnType, "void"))
	require.NoError(t, err)
	assert.Contains(t, sql, "(kind = ? AND has_return_type = 1 AND return_type = ?)")
	assert.Equal(t, []any{"s", "method", "void"}, params)

	sql, _, err = NewSQLCompiler("s").Compile(filter.Equals(filter.SelectNamespace, "geo"))
	require.NoError(t, err)
	assert.Contains(t, sql, "(kind = ? AND name = ?)")
}

func TestCompile_Unsupported(t *testing.T) {
	compiler := NewSQLCompiler("s")
	tests := []struct {
		name string
		p    filter.Predicate
	}{
		{"hierarchy", filter.Parent.Wrap(filter.All{})},
		{"nested hierarchy", filter.AndOf(filter.All{}, filter.Child.Wrap(filter.All{}))},
		{"regex", filter.Regex(filter.SelectMethodName, "get.*")},
		{"unknown selector", filter.StringMatch{Selector: "nope", Op: filter.OpEquals}},
		{"unknown op", filter.StringMatch{Selector: filter.SelectMethodName, Op: "like"}},
		{"unknown kind", filter.TypeKind{Kinds: []filter.ElementKind{"enum"}}},
		{"nil inside not", filter.Not{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := compiler.Compile(tt.p)
			assert.Error(t, err)
		})
	}

	_, _, err := compiler.Compile(nil)
	assert.Error(t, err)
}
