package util

import (
	"regexp"
	"sort"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

// NormalizeName is the only normalization applied before matching:
// surrounding whitespace is trimmed and letters are lowercased.
func NormalizeName(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// CollapseSpaces trims input and folds every whitespace run into one space.
func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func Tokenize(input string) []string {
	return strings.Fields(input)
}

// TokenSortKey sorts the whitespace-separated tokens of input and rejoins them,
// so "steel pipe 20mm" and "pipe 20mm steel" produce the same key.
func TokenSortKey(input string) string {
	tokens := Tokenize(input)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// SafeGet returns the trimmed cell at idx, or "" when the row is shorter.
func SafeGet(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
