package mapping

import (
	"fmt"

	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/ir"
)

// Mapper is one rewrite rule: a filter selecting elements and a callback
// recording edits for each selected element.
type Mapper interface {
	Filter() filter.Predicate
	Map(s *Scope, target ir.Element) error
}

// Named is implemented by mappers that carry a name for logs and errors.
type Named interface {
	Name() string
}

// NameOf returns the mapper's name, or its Go type.
func NameOf(m Mapper) string {
	if n, ok := m.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T", m)
}

// Func adapts a filter and a plain function to Mapper.
type Func struct {
	Label     string
	Predicate filter.Predicate
	Fn        func(s *Scope, target ir.Element) error
}

func (f *Func) Name() string             { return f.Label }
func (f *Func) Filter() filter.Predicate { return f.Predicate }

func (f *Func) Map(s *Scope, target ir.Element) error {
	return f.Fn(s, target)
}

// typed is the mapper built by Typed.
type typed[T ir.Element] struct {
	name string
	pred filter.Predicate
	fn   func(*Scope, T) error
}

// Typed builds a mapper whose callback receives the matched element as T.
// The filter is pred narrowed to T's variant. An element that still arrives
// with another variant is a MismatchError.
func Typed[T ir.Element](name string, pred filter.Predicate, fn func(*Scope, T) error) Mapper {
	return &typed[T]{name: name, pred: pred, fn: fn}
}

func (m *typed[T]) Name() string { return m.name }

func (m *typed[T]) Filter() filter.Predicate {
	if m.pred == nil {
		return nil
	}
	return filter.AndOf(TypedFilter[T](), m.pred)
}

func (m *typed[T]) Map(s *Scope, target ir.Element) error {
	t, ok := target.(T)
	if !ok {
		var zero T
		return &MismatchError{Mapper: m.name, Element: target.String(), Want: kindOf(zero), Got: target.Kind()}
	}
	return m.fn(s, t)
}

func (m *typed[T]) check() error {
	if m.fn == nil {
		return &ConfigError{Mapper: m.name, Message: "nil callback"}
	}
	return nil
}

func kindOf(e ir.Element) ir.Kind {
	if e == nil {
		return ""
	}
	return e.Kind()
}

// typedefPrefix is how a typedef stringifies; templates never do.
const typedefPrefix = "typedef("

// TypedFilter returns the predicate accepting exactly the variant T.
// ir.Element itself accepts everything.
func TypedFilter[T ir.Element]() filter.Predicate {
	var zero T
	switch any(zero).(type) {
	case *ir.Class:
		return filter.IsKind(filter.KindClass)
	case *ir.Method:
		return filter.IsKind(filter.KindMethod)
	case *ir.Field:
		return filter.IsKind(filter.KindField)
	case *ir.Namespace:
		return filter.IsKind(filter.KindNamespace)
	case *ir.Typedef:
		return filter.AndOf(filter.IsKind(filter.KindType), filter.StartsWith(filter.SelectStringify, typedefPrefix))
	case *ir.Template:
		return filter.AndOf(filter.IsKind(filter.KindType), filter.NotOf(filter.StartsWith(filter.SelectStringify, typedefPrefix)))
	case *ir.Argument:
		return filter.AndOf(notNamedKind(), filter.Parent.Wrap(filter.IsKind(filter.KindMethod)))
	case *ir.TranslationUnit:
		return filter.AndOf(notNamedKind(), filter.NotOf(filter.Parent.Wrap(filter.All{})))
	}
	return filter.All{}
}

func notNamedKind() filter.Predicate {
	return filter.NotOf(filter.IsKind(filter.KindClass, filter.KindMethod, filter.KindField, filter.KindType, filter.KindNamespace))
}

// Check reports why m cannot run, if it cannot.
func Check(m Mapper) error {
	if m == nil {
		return &ConfigError{Message: "nil mapper"}
	}
	if m.Filter() == nil {
		return &ConfigError{Mapper: NameOf(m), Message: "nil filter"}
	}
	switch m := m.(type) {
	case *Func:
		if m.Fn == nil {
			return &ConfigError{Mapper: NameOf(m), Message: "nil callback"}
		}
	case interface{ check() error }:
		return m.check()
	}
	return nil
}
