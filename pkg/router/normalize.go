package router

import (
	"strings"
	"unicode"
)

// Normalize lowercases s and strips punctuation. Apostrophes are dropped so
// contractions stay one token ("I'm" -> "im"); every other punctuation or
// symbol rune separates tokens. Runs of whitespace collapse to one space.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Tokens splits a normalized string.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}
