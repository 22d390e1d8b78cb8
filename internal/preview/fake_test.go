package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var errUnavailable = errors.New("search unavailable")

// fakeCapability answers every keyphrase with one article per page slot and
// a "<keyphrase> configuration" suggestion.
type fakeCapability struct {
	mu          sync.Mutex
	previews    []Request
	suggestions []SuggestionRequest
	failPreview bool
	failGroup   bool
	duplicate   bool
}

func (f *fakeCapability) Preview(_ context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews = append(f.previews, req)
	if f.failPreview {
		return nil, errUnavailable
	}
	resp := &Response{}
	for i := 0; i < req.ItemsPerPage; i++ {
		resp.Content = append(resp.Content, ResultItem{
			ID:       fmt.Sprintf("%s-%d", slug(req.Keyphrase), i),
			Name:     fmt.Sprintf("Article %d", i),
			SourceID: "pages",
		})
	}
	if len(req.Suggestions) > 0 {
		cands := []SuggestionCandidate{{Text: req.Keyphrase + " configuration"}}
		if f.duplicate {
			cands = append(cands, SuggestionCandidate{Text: req.Keyphrase + " configuration"})
		} else {
			cands = append(cands, SuggestionCandidate{Text: req.Keyphrase + " reference"})
		}
		resp.Suggestions = map[string][]SuggestionCandidate{NameSuggester: cands}
	}
	return resp, nil
}

func (f *fakeCapability) Suggestion(_ context.Context, req SuggestionRequest) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestions = append(f.suggestions, req)
	if f.failGroup {
		return nil, errUnavailable
	}
	return &Response{Content: []ResultItem{
		{ID: slug(req.Value) + "-a", Name: req.Value + " A", SourceID: "pages"},
		{ID: slug(req.Value) + "-b", Name: req.Value + " B", SourceID: "pages"},
	}}, nil
}

func (f *fakeCapability) groupCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.suggestions)
}

// nilCapability returns neither data nor error.
type nilCapability struct{}

func (nilCapability) Preview(context.Context, Request) (*Response, error) { return nil, nil }

func (nilCapability) Suggestion(context.Context, SuggestionRequest) (*Response, error) {
	return nil, nil
}

func slug(s string) string {
	if s == "" {
		return "default"
	}
	return strings.ReplaceAll(s, " ", "-")
}

// settle runs the ticket synchronously and applies its completion.
func settle(w *Widget, t Ticket) {
	w.Complete(w.Fetch(context.Background(), t))
}

func settleGroup(w *Widget, t GroupTicket) {
	w.CompleteGroup(w.FetchGroup(context.Background(), t))
}

// typed builds a widget, settles the initial query and commits keyphrase.
func typed(capability Capability, keyphrase string, opts Options) *Widget {
	w := New(capability, opts)
	settle(w, w.Init())
	if t, ok := w.KeyUp(keyphrase); ok {
		settle(w, t)
	}
	return w
}
