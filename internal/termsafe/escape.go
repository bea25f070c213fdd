// Package termsafe neutralizes server-supplied text before it reaches the
// terminal.
package termsafe

import (
	"strings"
	"unicode"
)

const hexDigits = "0123456789abcdef"

// Escape makes text safe to print verbatim in a terminal. Newlines and tabs
// are kept; every other control character, including ESC, is shown as a
// Go-style escape so the terminal never interprets it.
func Escape(text string) string {
	text = strings.ToValidUTF8(text, "�")
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			b.WriteString(`\x`)
			b.WriteByte(hexDigits[r>>4])
			b.WriteByte(hexDigits[r&0xf])
		case unicode.IsControl(r):
			b.WriteString(`\u`)
			for shift := 12; shift >= 0; shift -= 4 {
				b.WriteByte(hexDigits[(r>>uint(shift))&0xf])
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Line is Escape for single-line slots: newlines and tabs become spaces.
func Line(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		return r
	}, Escape(text))
}
