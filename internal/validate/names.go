package validate

import "errors"

// ErrInvalidName reports a tag or attribute name that cannot be written as
// markup without changing its structure
var ErrInvalidName = errors.New("invalid markup name")

// TagName reports whether s can be written as an element name: an ASCII
// letter followed by letters, digits, '-', '_', '.' or ':'.
func TagName(s string) bool {
	if s == "" || !isLetter(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !isLetter(c) && !isDigit(c) && c != '-' && c != '_' && c != '.' && c != ':' {
			return false
		}
	}
	return true
}

// AttrName reports whether s can be written as an attribute name. Spaces,
// controls, quotes and the characters <, >, /, = and & are refused.
func AttrName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r <= ' ', r == 0x7f:
			return false
		case r == '"', r == '\'', r == '<', r == '>', r == '/', r == '=', r == '&':
			return false
		}
	}
	return true
}

func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
