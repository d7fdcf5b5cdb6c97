package search

import "strings"

func normalizeKeyword(keyword string) string {
	return strings.ToLower(strings.Join(strings.Fields(keyword), " "))
}

// containsKeyword reports whether text contains the normalized keyword,
// ignoring case and treating any whitespace run as a single space.
func containsKeyword(text, keyword string) bool {
	if strings.Contains(strings.ToLower(text), keyword) {
		return true
	}
	if !strings.Contains(keyword, " ") {
		return false
	}
	return strings.Contains(normalizeKeyword(text), keyword)
}
