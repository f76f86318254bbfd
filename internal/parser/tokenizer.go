package parser

import "strings"

// scanner walks literal text tracking bracket depth and quoted strings so
// that separators inside nested literals are ignored.
type scanner struct {
	depth int
	quote rune // active quote character, 0 when outside a string
	esc   bool
}

// step feeds one rune and reports whether it sits at top level
// (outside any brackets and strings) before the rune is consumed.
func (s *scanner) step(r rune) bool {
	top := s.depth == 0 && s.quote == 0

	if s.quote != 0 {
		switch {
		case s.esc:
			s.esc = false
		case r == '\\':
			s.esc = true
		case r == s.quote:
			s.quote = 0
		}
		return false
	}

	switch r {
	case '"', '\'', '`':
		s.quote = r
	case '[', '{', '(':
		s.depth++
	case ']', '}', ')':
		if s.depth > 0 {
			s.depth--
		}
	}
	return top
}

// SplitTopLevel splits s on sep, ignoring separators nested inside
// brackets, braces, parentheses or quoted strings. Unbalanced closers
// are tolerated; an unterminated string swallows the rest of the input.
func SplitTopLevel(s string, sep rune) []string {
	var (
		parts []string
		sc    scanner
		start int
	)
	for i, r := range s {
		if sc.step(r) && r == sep {
			parts = append(parts, s[start:i])
			start = i + len(string(sep))
		}
	}
	return append(parts, s[start:])
}

// splitAssignment finds the first top-level "=" that is a plain
// assignment (not part of ==, =>, <=, >=, !=) and returns both sides.
func splitAssignment(segment string) (name, value string, ok bool) {
	var sc scanner
	prev := rune(0)
	runes := []rune(segment)
	offset := 0
	for i, r := range runes {
		top := sc.step(r)
		if top && r == '=' {
			var next rune
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if next != '=' && next != '>' && !strings.ContainsRune("=<>!", prev) {
				return segment[:offset], segment[offset+1:], true
			}
		}
		prev = r
		offset += len(string(r))
	}
	return "", "", false
}

// isIdentifier reports whether s is a bare identifier such as "nums" or "k_2"
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
