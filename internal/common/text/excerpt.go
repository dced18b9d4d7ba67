// internal/common/text/excerpt.go
package text

import "unicode/utf8"

const Ellipsis = "..."

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Excerpt truncates s to n runes and marks the cut with an ellipsis.
func Excerpt(s string, n int) string {
	cut := Truncate(s, n)
	if len(cut) < len(s) {
		return cut + Ellipsis
	}
	return cut
}
