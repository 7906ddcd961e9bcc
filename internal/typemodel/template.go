package typemodel

import "strings"

// SplitTemplate splits "ns::Box<int, Foo<A, B>>" into "ns::Box" and its
// top-level arguments. ok is false when the spelling has no template
// argument list or the list does not close at the final character.
func SplitTemplate(s string) (base string, args []string, ok bool) {
	open := strings.IndexByte(s, '<')
	if open <= 0 || !strings.HasSuffix(s, ">") {
		return s, nil, false
	}
	if closeAt(s, open) != len(s)-1 {
		return s, nil, false
	}
	return s[:open], SplitTemplateArgs(s[open+1 : len(s)-1]), true
}

// SplitQualifiers splits a name on "::" at nesting depth zero, so
// "a::B<c::D>::E" yields [a, B<c::D>, E]. A leading "::" is dropped.
func SplitQualifiers(s string) []string {
	s = strings.TrimPrefix(s, "::")
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && i+1 < len(s) && s[i+1] == ':' {
				parts = append(parts, s[start:i])
				i++
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// SplitTemplateArgs splits an argument list on commas at nesting depth zero
// and trims each argument. An empty list yields nil.
func SplitTemplateArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var args []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}

// closeAt returns the index of the '>' matching the '<' at open, or -1.
func closeAt(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
