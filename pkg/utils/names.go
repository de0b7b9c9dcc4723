package utils

import (
	"strings"
	"unicode/utf8"
)

// unsafeNameChars are stripped by the browser front end before rendering, so
// names containing them are refused outright.
const unsafeNameChars = `<>"'&`

// HasUnsafeChars reports whether s contains any of <>"'&.
func HasUnsafeChars(s string) bool {
	return strings.ContainsAny(s, unsafeNameChars)
}

// CleanName trims surrounding whitespace.
func CleanName(s string) string {
	return strings.TrimSpace(s)
}

// NameLength counts characters, not bytes.
func NameLength(s string) int {
	return utf8.RuneCountInString(s)
}

// SameName compares names case-insensitively.
func SameName(a, b string) bool {
	return strings.EqualFold(a, b)
}
