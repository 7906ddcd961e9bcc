package resolver

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/cbind/internal/ir"
)

var cNameReplacer = strings.NewReplacer(
	"::", "_",
	"<", "_",
	",", "__",
	">", "",
	"*", "_P",
	" ", "_",
)

// CName flattens a C++ type spelling into a C identifier fragment:
// "ns::Box<int, Foo*>" becomes "ns_Box_int___Foo_P".
func CName(spelling string) string {
	return cNameReplacer.Replace(spelling)
}

// Namer hands out C symbol names that are unique within one module. A
// colliding name gets "_" prefixed until it is free.
type Namer struct {
	used  map[string]bool
	lower cases.Caser
}

// NewNamer creates an empty Namer.
func NewNamer() *Namer {
	return &Namer{used: make(map[string]bool), lower: cases.Lower(language.Und)}
}

func (n *Namer) unique(name string) string {
	for n.used[name] {
		name = "_" + name
	}
	n.used[name] = true
	return name
}

// Method names m, declared on the class or namespace spelled owner.
func (n *Namer) Method(owner string, m *ir.Method) string {
	prefix := CName(owner)
	join := func(suffix string) string {
		if prefix == "" {
			return suffix
		}
		return prefix + "_" + suffix
	}
	switch m.MethodKind {
	case ir.MethodConstructor:
		return n.unique(join("new"))
	case ir.MethodDestructor:
		return n.unique(join("dispose"))
	case ir.MethodSizeOf:
		return n.unique(join("size_of"))
	}
	if info, ok := m.Operator.Info(); ok {
		return n.unique(join("op_" + n.snake(info.C)))
	}
	return n.unique(join(strings.ReplaceAll(n.snake(m.Name), "=", "_eq")))
}

// Getter names the read accessor of field on owner.
func (n *Namer) Getter(owner, field string) string {
	return n.unique(CName(owner) + "_" + field + "_get")
}

// Setter names the write accessor of field on owner.
func (n *Namer) Setter(owner, field string) string {
	return n.unique(CName(owner) + "_" + field + "_set")
}

// snake splits a camelCase name into lowercase words joined by "_".
// Existing underscores are kept as word breaks.
func (n *Namer) snake(name string) string {
	var words []string
	var cur []rune
	runes := []rune(name)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, n.lower.String(string(cur)))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return strings.Join(words, "_")
}
