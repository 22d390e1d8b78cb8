package preview

import (
	"context"
	"strings"
)

// GroupKey derives the composite key of a suggestion inside a group. It is
// both the render key and the active-item key. Duplicate suggestion texts in
// one group share a key.
func GroupKey(groupID, text string) string {
	return groupID + "@" + text
}

// Group is a suggestion group derived from one query result.
type Group struct {
	ID         string
	Title      string
	Candidates []string
}

// Keys returns the composite keys of the group's candidates in order.
func (g Group) Keys() []string {
	keys := make([]string, len(g.Candidates))
	for i, text := range g.Candidates {
		keys[i] = GroupKey(g.ID, text)
	}
	return keys
}

// GroupTicket identifies one lazily issued per-group query.
type GroupTicket struct {
	Key     string
	Seq     uint64
	Request SuggestionRequest
}

// GroupCompletion carries the outcome of a GroupTicket.
type GroupCompletion struct {
	Key      string
	Seq      uint64
	Response *Response
	Err      error
}

type groupResult struct {
	seq      uint64
	fetching bool
	fetched  bool
	items    []ResultItem
	err      error
}

// Presenter owns the active item and the per-group result lists.
type Presenter struct {
	capability      Capability
	filterAttribute string
	itemsPerPage    int
	active          string
	seq             uint64
	results         map[string]*groupResult
}

// NewPresenter returns a presenter whose active item is the default panel.
func NewPresenter(capability Capability, itemsPerPage int, filterAttribute string) *Presenter {
	if itemsPerPage <= 0 {
		itemsPerPage = DefaultItemsPerPage
	}
	return &Presenter{
		capability:      capability,
		filterAttribute: filterAttribute,
		itemsPerPage:    itemsPerPage,
		active:          DefaultPanelKey,
		results:         make(map[string]*groupResult),
	}
}

// Active returns the active item key.
func (p *Presenter) Active() string {
	return p.active
}

// Reset makes the default panel active.
func (p *Presenter) Reset() {
	p.active = DefaultPanelKey
}

// Groups derives the suggestion groups from a query result. An empty
// keyphrase never yields groups.
func (p *Presenter) Groups(keyphrase string, res QueryResult) []Group {
	if keyphrase == "" {
		return nil
	}
	candidates := res.Suggestions(NameSuggester)
	if len(candidates) == 0 {
		return nil
	}
	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}
	return []Group{{ID: KeyphraseGroupID, Title: SuggestionsTitle, Candidates: texts}}
}

// Activate makes key the active item. When key names a suggestion whose
// results have not been requested yet, the returned ticket must be fetched.
func (p *Presenter) Activate(key string) (GroupTicket, bool) {
	p.active = key
	if key == DefaultPanelKey {
		return GroupTicket{}, false
	}
	r, ok := p.results[key]
	if ok && (r.fetching || (r.fetched && r.err == nil)) {
		return GroupTicket{}, false
	}
	if !ok {
		r = &groupResult{}
		p.results[key] = r
	}
	p.seq++
	r.seq = p.seq
	r.fetching = true
	return GroupTicket{
		Key: key,
		Seq: r.seq,
		Request: SuggestionRequest{
			Value:           suggestionText(key),
			FilterAttribute: p.filterAttribute,
			ItemsPerPage:    p.itemsPerPage,
		},
	}, true
}

// FetchGroup runs a group ticket against the capability. Safe off the event
// loop.
func (p *Presenter) FetchGroup(ctx context.Context, t GroupTicket) GroupCompletion {
	resp, err := p.capability.Suggestion(ctx, t.Request)
	if err == nil && resp == nil {
		err = ErrNilResponse
	}
	return GroupCompletion{Key: t.Key, Seq: t.Seq, Response: resp, Err: err}
}

// CompleteGroup applies a group completion. Stale or pruned completions are
// ignored and reported as false.
func (p *Presenter) CompleteGroup(c GroupCompletion) bool {
	r, ok := p.results[c.Key]
	if !ok || r.seq != c.Seq {
		return false
	}
	r.fetching = false
	r.fetched = true
	if c.Err != nil {
		r.err = c.Err
		r.items = nil
		return true
	}
	r.err = nil
	r.items = append([]ResultItem(nil), c.Response.Content...)
	return true
}

// Reconcile drops results of groups that are no longer offered and falls
// back to the default panel when the active group disappeared.
func (p *Presenter) Reconcile(groups []Group) {
	present := make(map[string]bool)
	for _, g := range groups {
		for _, k := range g.Keys() {
			present[k] = true
		}
	}
	for k := range p.results {
		if !present[k] {
			delete(p.results, k)
		}
	}
	if p.active != DefaultPanelKey && !present[p.active] {
		p.active = DefaultPanelKey
	}
}

// GroupFetching reports whether key's list is in flight.
func (p *Presenter) GroupFetching(key string) bool {
	r, ok := p.results[key]
	return ok && r.fetching
}

// GroupItems returns the fetched list for key.
func (p *Presenter) GroupItems(key string) []ResultItem {
	if r, ok := p.results[key]; ok {
		return r.items
	}
	return nil
}

// GroupErr returns the last error of key's query.
func (p *Presenter) GroupErr(key string) error {
	if r, ok := p.results[key]; ok {
		return r.err
	}
	return nil
}

func suggestionText(key string) string {
	if _, text, ok := strings.Cut(key, "@"); ok {
		return text
	}
	return key
}
