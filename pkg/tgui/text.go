package tgui

import "unicode/utf8"

// Ellipsis marks truncated text.
const Ellipsis = "…"

// Len is the length of s in runes.
func Len(s string) int { return utf8.RuneCountInString(s) }

// TruncRunes returns s cut to at most n runes, the ellipsis included.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n == 1 {
		return Ellipsis
	}
	// keep n-1 runes, then the ellipsis
	count := 0
	for i := range s {
		if count == n-1 {
			return s[:i] + Ellipsis
		}
		count++
	}
	return s
}
