// Package preprocess normalizes extracted text before chunking.
package preprocess

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	urlRe        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`)
	emailRe      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	horizontalRe = regexp.MustCompile(`[^\S\n]+`)
	lineBreakRe  = regexp.MustCompile(`[^\S\n]*\n\s*`)
)

// Normalize strips markup, links and addresses from text, blanks out symbols
// other than sentence punctuation, and collapses whitespace. Line structure
// survives as single newlines.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = htmlTagRe.ReplaceAllString(text, " ")
	text = urlRe.ReplaceAllString(text, " ")
	text = emailRe.ReplaceAllString(text, " ")
	text = strings.Map(keepRune, text)
	text = horizontalRe.ReplaceAllString(text, " ")
	text = lineBreakRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

func keepRune(r rune) rune {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
		return r
	case r == '.', r == ',', r == '!', r == '?':
		return r
	}
	return ' '
}
