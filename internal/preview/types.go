// Package preview implements the preview-search widget: a keyphrase
// controller, a suggestion resolver that talks to a search Capability, and a
// result presenter that tracks which suggestion group is expanded.
//
// The package has no UI toolkit dependency. Drivers (the terminal UI, the
// one-shot CLI) feed it events and render the Menu it produces.
package preview

import (
	"context"
	"fmt"
)

const (
	// DefaultPanelKey identifies the unfiltered result panel. It is always
	// present and is the active item when no suggestion group is focused.
	DefaultPanelKey = "defaultArticlesResults"

	// KeyphraseGroupID namespaces the keyphrase suggestion group.
	KeyphraseGroupID = "keyphrase"

	// SuggestionsTitle is the heading rendered above the keyphrase group.
	SuggestionsTitle = "Suggestions"

	// NameSuggester is the suggester whose candidates feed the keyphrase group.
	NameSuggester = "name_suggester"

	DefaultItemsPerPage    = 6
	DefaultSuggestionLimit = 10
	DescriptionLimit       = 300
)

// ResultItem is a single search hit. Its identity within one response is the
// (ID, SourceID) pair.
type ResultItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ImageURL    string `json:"image_url"`
	URL         string `json:"url"`
	SourceID    string `json:"source_id"`
	Type        string `json:"type"`
	IndexName   string `json:"index_name"`
	Description string `json:"description"`
	SiteName    string `json:"site_name"`
}

// Key returns the render key of the item.
func (r ResultItem) Key() string {
	return r.ID + "@" + r.SourceID
}

// SuggestionSpec asks the capability for up to Max candidates from the named
// suggester.
type SuggestionSpec struct {
	Name string `json:"suggestion" mapstructure:"name"`
	Max  int    `json:"max" mapstructure:"max"`
}

// SuggestionCandidate is one keyphrase completion.
type SuggestionCandidate struct {
	Text string `json:"text"`
}

// Request is the query context sent to Capability.Preview.
type Request struct {
	Keyphrase    string           `json:"keyphrase"`
	ItemsPerPage int              `json:"items_per_page"`
	Suggestions  []SuggestionSpec `json:"suggestions,omitempty"`
}

// SuggestionRequest scopes a query to a single suggestion text.
type SuggestionRequest struct {
	Value           string `json:"value"`
	FilterAttribute string `json:"filter_attribute,omitempty"`
	ItemsPerPage    int    `json:"items_per_page"`
}

// Response is what a Capability returns for either kind of request.
type Response struct {
	Content     []ResultItem                     `json:"content"`
	Suggestions map[string][]SuggestionCandidate `json:"suggestion,omitempty"`
}

// Capability is the external search service the widget consumes. It must be
// idempotent per input and tolerate being called on every committed keystroke.
type Capability interface {
	Preview(ctx context.Context, req Request) (*Response, error)
	Suggestion(ctx context.Context, req SuggestionRequest) (*Response, error)
}

// Status discriminates a query result.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// KeyphraseChange is emitted when a new keyphrase is committed.
type KeyphraseChange struct {
	Keyphrase string
}

// Selection is emitted when a result item is clicked. Index is the item's
// zero-based position in the list it was rendered in.
type Selection struct {
	ID    string
	Index int
}

// Actions are the caller's hooks. Both are optional.
type Actions struct {
	OnKeyphraseChange func(KeyphraseChange)
	OnItemClick       func(Selection)
}
