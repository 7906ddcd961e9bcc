package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/cbind/internal/ir"
)

func TestCName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Foo", "Foo"},
		{"ns::Foo", "ns_Foo"},
		{"ns::Box<int, Foo*>", "ns_Box_int___Foo_P"},
		{"unsigned int", "unsigned_int"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CName(tt.in))
		})
	}
}

func TestNamerSnake(t *testing.T) {
	n := NewNamer()
	tests := []struct {
		in, want string
	}{
		{"radius", "radius"},
		{"setX", "set_x"},
		{"getHTTPServer", "get_http_server"},
		{"value2Name", "value2_name"},
		{"already_snake", "already_snake"},
		{"URL", "url"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.snake(tt.in))
		})
	}
}

func TestNamerMethod(t *testing.T) {
	n := NewNamer()
	plus := &ir.Method{Name: "operator+=", MethodKind: ir.MethodRegular, Operator: ir.OpPlusEquals}

	assert.Equal(t, "ns_Foo_new", n.Method("ns::Foo", &ir.Method{MethodKind: ir.MethodConstructor}))
	assert.Equal(t, "_ns_Foo_new", n.Method("ns::Foo", &ir.Method{MethodKind: ir.MethodConstructor}))
	assert.Equal(t, "__ns_Foo_new", n.Method("ns::Foo", &ir.Method{MethodKind: ir.MethodConstructor}))
	assert.Equal(t, "ns_Foo_dispose", n.Method("ns::Foo", &ir.Method{MethodKind: ir.MethodDestructor}))
	assert.Equal(t, "ns_Foo_size_of", n.Method("ns::Foo", &ir.Method{MethodKind: ir.MethodSizeOf}))
	assert.Equal(t, "ns_Foo_op_plus_equals", n.Method("ns::Foo", plus))
	assert.Equal(t, "ns_Foo_get_value", n.Method("ns::Foo", &ir.Method{Name: "getValue"}))
	assert.Equal(t, "free_fn", n.Method("", &ir.Method{Name: "freeFn", MethodKind: ir.MethodStatic}))
}

func TestNamerAccessors(t *testing.T) {
	n := NewNamer()
	assert.Equal(t, "ns_Foo_x_get", n.Getter("ns::Foo", "x"))
	assert.Equal(t, "ns_Foo_x_set", n.Setter("ns::Foo", "x"))
	assert.Equal(t, "_ns_Foo_x_get", n.Getter("ns::Foo", "x"))
}

func TestGuard(t *testing.T) {
	g := NewGuard()
	assert.True(t, g.Enter("a"))
	assert.True(t, g.Enter("b"))
	assert.False(t, g.Enter("a"))
	assert.Equal(t, []string{"a", "b"}, g.Stack())
	assert.True(t, g.Active("b"))

	g.Leave("b")
	assert.False(t, g.Active("b"))
	assert.Equal(t, []string{"a"}, g.Stack())
	assert.True(t, g.Enter("b"))
}
