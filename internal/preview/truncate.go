package preview

import (
	"strings"
	"unicode"
)

const ellipsis = "…"

// Truncate shortens s to at most limit visible characters, ellipsis
// included. With wordBoundary set the cut moves back to the last whitespace
// inside the budget; a single word longer than the budget is cut mid-word.
func Truncate(s string, limit int, wordBoundary bool) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit == 1 {
		return ellipsis
	}
	cut := r[:limit-1]
	if wordBoundary && !unicode.IsSpace(r[limit-1]) {
		if i := lastSpace(cut); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + ellipsis
}

// TruncateDescription applies the card description budget.
func TruncateDescription(s string) string {
	return Truncate(s, DescriptionLimit, true)
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}
