// Package textutil holds small string helpers shared by services.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// CollapseSpace trims s and replaces every run of Unicode whitespace with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateRunes cuts s to at most limit runes. A non-positive limit returns s unchanged.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
