package services

import "unicode/utf8"

// truncateText caps s at max bytes, backing off to the previous rune
// boundary so a multi-byte character is never split. The model endpoints
// reject invalid UTF-8.
func truncateText(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
