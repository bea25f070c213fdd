package viewer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a span of pretty-printed JSON.
type TokenKind int

const (
	TokenPunct TokenKind = iota
	TokenKey
	TokenString
	TokenNumber
	TokenBool
	TokenNull
	TokenSpace
)

// Token is one classified span.
type Token struct {
	Kind TokenKind
	Text string
}

// Tokenize splits JSON text into classified spans. It never fails: anything it
// does not recognise comes back as punctuation, so concatenating the token
// texts always reproduces src.
func Tokenize(src string) []Token {
	var tokens []Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '"':
			end := scanString(src, i)
			kind := TokenString
			if isKey(src, end) {
				kind = TokenKey
			}
			tokens = append(tokens, Token{Kind: kind, Text: src[i:end]})
			i = end
		case c == '-' || (c >= '0' && c <= '9'):
			end := scanNumber(src, i)
			tokens = append(tokens, Token{Kind: TokenNumber, Text: src[i:end]})
			i = end
		case strings.HasPrefix(src[i:], "true"):
			tokens = append(tokens, Token{Kind: TokenBool, Text: "true"})
			i += 4
		case strings.HasPrefix(src[i:], "false"):
			tokens = append(tokens, Token{Kind: TokenBool, Text: "false"})
			i += 5
		case strings.HasPrefix(src[i:], "null"):
			tokens = append(tokens, Token{Kind: TokenNull, Text: "null"})
			i += 4
		case c == ' ' || c == '\n' || c == '\t' || c == '\r':
			end := i
			for end < len(src) && strings.IndexByte(" \n\t\r", src[end]) >= 0 {
				end++
			}
			tokens = append(tokens, Token{Kind: TokenSpace, Text: src[i:end]})
			i = end
		default:
			_, size := utf8.DecodeRuneInString(src[i:])
			tokens = append(tokens, Token{Kind: TokenPunct, Text: src[i : i+size]})
			i += size
		}
	}
	return tokens
}

// scanString returns the index just past the closing quote of the string that
// starts at start, or len(src) when it is unterminated.
func scanString(src string, start int) int {
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(src)
}

func scanNumber(src string, start int) int {
	i := start
	if i < len(src) && src[i] == '-' {
		i++
	}
	for i < len(src) && strings.IndexByte("0123456789.eE+-", src[i]) >= 0 {
		i++
	}
	if i == start {
		return start + 1
	}
	return i
}

// isKey reports whether the string ending at end is an object key, i.e. the
// next non-space character is a colon.
func isKey(src string, end int) bool {
	for i := end; i < len(src); i++ {
		if src[i] == ':' {
			return true
		}
		if !unicode.IsSpace(rune(src[i])) {
			return false
		}
	}
	return false
}
