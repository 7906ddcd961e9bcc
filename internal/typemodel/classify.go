// Package typemodel classifies C++ type spellings and derives their C ABI
// and host-language forms.
//
// Classification is structural: trailing `*`, `&`, `&&` and `[N]`
// declarators and `const`/`typename` qualifiers are peeled off recursively,
// leaving an atom that is void, native, std::string, long double, a template
// instantiation, or a named reference. Nothing here consults a symbol table;
// that is the resolver's job.
package typemodel

import (
	"errors"
	"strconv"
	"strings"
)

// ErrEmptySpelling is returned by Classify for a blank spelling.
var ErrEmptySpelling = errors.New("empty type spelling")

// Facts is the structural classification of one type spelling.
// Wrapper layers (pointer, reference, array, const, typename) carry the
// wrapped type in Elem.
type Facts struct {
	Spelling string

	Void      bool
	Pointer   bool
	Reference bool
	Array     bool
	ArrayLen  int // -1 when unsized
	Const     bool
	Typename  bool

	Native     bool
	String     bool
	LongDouble bool
	Templated  bool
	Opaque     bool

	Elem *Facts
}

// IsWrapper reports whether f is a pointer, reference, array, const or
// typename layer around Elem.
func (f Facts) IsWrapper() bool { return f.Elem != nil }

// Unwrap strips one wrapper layer. Atoms are returned unchanged.
func Unwrap(f Facts) Facts {
	if f.Elem != nil {
		return *f.Elem
	}
	return f
}

// Unconst strips const and typename layers.
func Unconst(f Facts) Facts {
	for (f.Const || f.Typename) && f.Elem != nil {
		f = *f.Elem
	}
	return f
}

// Unreference strips one reference layer if present.
func Unreference(f Facts) Facts {
	if f.Reference {
		return *f.Elem
	}
	return f
}

// Base strips every wrapper layer and returns the atom.
func Base(f Facts) Facts {
	for f.Elem != nil {
		f = *f.Elem
	}
	return f
}

// IsNativeLike reports whether the unconst form is native or long double.
func IsNativeLike(f Facts) bool {
	u := Unconst(f)
	return u.Native || u.LongDouble
}

// IsString reports whether the unconst form is std::string.
func IsString(f Facts) bool { return Unconst(f).String }

// IsReturnable reports whether a value of this type can be returned from a
// shim function directly rather than through an out-argument.
func IsReturnable(f Facts) bool {
	u := Unconst(f)
	return u.Pointer || u.Reference || u.Void || u.Native || u.LongDouble || u.String
}

// Classify parses a type spelling into Facts. Only an empty spelling is an
// error; unrecognized template forms classify as Opaque.
func Classify(spelling string) (Facts, error) {
	s := normalize(spelling)
	if s == "" {
		return Facts{}, ErrEmptySpelling
	}
	return classify(s), nil
}

// MustClassify is like Classify but panics on error. Use only with literal
// spellings.
func MustClassify(spelling string) Facts {
	f, err := Classify(spelling)
	if err != nil {
		panic(err)
	}
	return f
}

func classify(s string) Facts {
	switch {
	case strings.HasSuffix(s, "&&"):
		return wrap(s[:len(s)-2], func(e Facts) Facts {
			return Facts{Spelling: e.Spelling + "&&", Reference: true}
		})
	case strings.HasSuffix(s, "*"):
		return wrap(s[:len(s)-1], func(e Facts) Facts {
			return Facts{Spelling: e.Spelling + "*", Pointer: true}
		})
	case strings.HasSuffix(s, "&"):
		return wrap(s[:len(s)-1], func(e Facts) Facts {
			return Facts{Spelling: e.Spelling + "&", Reference: true}
		})
	case strings.HasSuffix(s, "]"):
		if open := strings.LastIndexByte(s, '['); open > 0 {
			n := -1
			if inner := strings.TrimSpace(s[open+1 : len(s)-1]); inner != "" {
				if v, err := strconv.Atoi(inner); err == nil {
					n = v
				}
			}
			return wrap(s[:open], func(e Facts) Facts {
				suffix := "[]"
				if n >= 0 {
					suffix = "[" + strconv.Itoa(n) + "]"
				}
				return Facts{Spelling: e.Spelling + suffix, Array: true, ArrayLen: n}
			})
		}
	case strings.HasSuffix(s, " const"):
		return wrapConst(s[:len(s)-len(" const")])
	case strings.HasPrefix(s, "const "):
		return wrapConst(s[len("const "):])
	case strings.HasPrefix(s, "typename "):
		return wrap(s[len("typename "):], func(e Facts) Facts {
			return Facts{Spelling: "typename " + e.Spelling, Typename: true, Native: e.Native, String: e.String, LongDouble: e.LongDouble}
		})
	}
	return atom(s)
}

func wrap(inner string, build func(Facts) Facts) Facts {
	inner = strings.TrimSpace(inner)
	if inner == "" {
		// A bare declarator has nothing to point at.
		return Facts{Spelling: "void", Void: true, Opaque: true}
	}
	e := classify(inner)
	f := build(e)
	f.Elem = &e
	return f
}

// wrapConst qualifies inner. A const declarator (Foo* const) keeps its
// trailing spelling; anything else is spelled with a leading const.
func wrapConst(inner string) Facts {
	return wrap(inner, func(e Facts) Facts {
		spelling := "const " + e.Spelling
		if e.Elem != nil && (e.Pointer || e.Reference || e.Array) {
			spelling = e.Spelling + " const"
		}
		return Facts{
			Spelling:   spelling,
			Const:      true,
			Native:     e.Native,
			String:     e.String,
			LongDouble: e.LongDouble,
		}
	})
}

func atom(s string) Facts {
	f := Facts{Spelling: s}
	switch {
	case s == "void":
		f.Void = true
	case s == "std::string":
		f.String = true
	case s == "long double":
		f.LongDouble = true
	case isNative(s):
		f.Native = true
	case strings.ContainsRune(s, '<'):
		f.Templated = true
		if _, _, ok := SplitTemplate(s); !ok {
			f.Opaque = true
		}
	}
	return f
}

// normalize trims and collapses whitespace, tightens declarator spacing
// ("Foo *" -> "Foo*") and maps std::size_t to size_t.
func normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	for _, d := range []string{"*", "&", "[", "]", ">", ","} {
		s = strings.ReplaceAll(s, " "+d, d)
	}
	for _, d := range []string{"<", "[", ","} {
		s = strings.ReplaceAll(s, d+" ", d)
	}
	s = strings.ReplaceAll(s, " <", "<")
	s = strings.ReplaceAll(s, ",", ", ")
	if s == "std::size_t" {
		return "size_t"
	}
	return strings.ReplaceAll(s, "std::size_t", "size_t")
}
