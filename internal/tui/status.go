package tui

import (
	"fmt"
	"strings"
)

// Canonical short status messages used across the app.
const (
	MsgSearching      = "Searching…"
	MsgLoadingPage    = "Loading page…"
	MsgLoadingFeeds   = "Loading feeds…"
	MsgNoResults      = "No results"
	MsgNoSuggestions  = "No suggestions"
	MsgStaleFeeds     = "Showing cached posts"
	MsgNothingToOpen  = "Nothing to open"
	MsgOpeningLink    = "Opening link…"
	MsgSearchFailed   = "Search failed"
	MsgNoSolutionPage = "No solution pages found"
)

func MsgResultsCount(n int) string {
	if n == 1 {
		return "1 result"
	}
	return fmt.Sprintf("%d results", n)
}

func MsgOpened(kind, url string) string {
	return fmt.Sprintf("Opened %s %s", kind, strings.TrimSpace(url))
}

func MsgFeedSummary(feeds, posts int, stale bool) string {
	base := fmt.Sprintf("%d feeds • %d posts", feeds, posts)
	if stale {
		base += " • " + strings.ToLower(MsgStaleFeeds)
	}
	return base
}
