package tui

import (
	"strings"

	"github.com/pders01/devportal/internal/preview"
)

// truncateEnd shortens s to at most limit characters, ellipsis included.
func truncateEnd(s string, limit int) string {
	return preview.Truncate(s, limit, false)
}

// truncateMiddle keeps both ends of s around a single ellipsis. Used for
// URLs, where the host and the last path segment carry the meaning.
func truncateMiddle(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	n := len(r)
	if n <= limit {
		return s
	}
	if limit <= 1 {
		return "…"
	}
	keep := limit - 1
	left := keep / 2
	right := keep - left
	if left <= 0 {
		return "…" + string(r[n-right:])
	}
	return string(r[:left]) + "…" + string(r[n-right:])
}

// oneLine collapses runs of whitespace, newlines included, to single spaces.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
