package push

import (
	"errors"
	"strings"
)

// upperHex is the digit table for percent-encoding.
const upperHex = "0123456789ABCDEF"

// errMalformedEscape is returned for a '%' not followed by two hex digits.
var errMalformedEscape = errors.New("malformed percent escape")

// Escape percent-encodes s byte by byte: ASCII letters and digits pass
// through, space becomes '+', every other byte becomes %XX with uppercase hex.
func Escape(s string) string {
	var b strings.Builder

	b.Grow(len(s) * 3)

	for i := range len(s) {
		c := s[i]

		switch {
		case isAlnum(c):
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0F])
		}
	}

	return b.String()
}

// Unescape reverses Escape.
func Unescape(s string) (string, error) {
	var b strings.Builder

	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 >= len(s) {
				return "", errMalformedEscape
			}

			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])

			if !okHi || !okLo {
				return "", errMalformedEscape
			}

			b.WriteByte(hi<<4 | lo)

			i += 2
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
