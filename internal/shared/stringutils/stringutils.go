package stringutils

import (
	"regexp"
	"strings"
)

var reSpace = regexp.MustCompile(`\s+`)

// Truncate shortens a string to at most n characters, adding "..." if it was truncated.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Normalize lowercases text and collapses runs of whitespace to single
// spaces. Used to build content fingerprints that survive the platform's
// own formatting of the same message across delivery paths.
func Normalize(s string) string {
	return reSpace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}
