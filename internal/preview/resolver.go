package preview

import (
	"context"
	"errors"
)

// ErrNilResponse is recorded when a capability returns neither data nor error.
var ErrNilResponse = errors.New("capability returned no response")

// QueryContext is the resolver-owned query state.
type QueryContext struct {
	Keyphrase    string
	ItemsPerPage int
}

// QueryResult is the resolver's view of the latest query.
type QueryResult struct {
	// IsLoading is true until the first query completes.
	IsLoading bool
	// IsFetching is true while the latest query is in flight.
	IsFetching bool
	Status     Status
	Data       Response
	Err        error
}

// Busy combines both loading flags.
func (q QueryResult) Busy() bool {
	return q.IsLoading || q.IsFetching
}

// Articles returns the default result list.
func (q QueryResult) Articles() []ResultItem {
	return q.Data.Content
}

// Suggestions returns the candidates of the named suggester.
func (q QueryResult) Suggestions(name string) []SuggestionCandidate {
	if q.Data.Suggestions == nil {
		return nil
	}
	return q.Data.Suggestions[name]
}

// Ticket identifies one issued preview query.
type Ticket struct {
	Seq     uint64
	Request Request
}

// Completion carries the outcome of a Ticket back to the resolver.
type Completion struct {
	Seq      uint64
	Response *Response
	Err      error
}

// Resolver issues preview queries and keeps the latest result. Only the most
// recently issued ticket may update state; older completions are dropped.
type Resolver struct {
	capability  Capability
	query       QueryContext
	suggestions []SuggestionSpec
	seq         uint64
	result      QueryResult
}

// NewResolver creates a resolver. itemsPerPage <= 0 falls back to
// DefaultItemsPerPage.
func NewResolver(capability Capability, itemsPerPage int, suggestions []SuggestionSpec) *Resolver {
	if itemsPerPage <= 0 {
		itemsPerPage = DefaultItemsPerPage
	}
	return &Resolver{
		capability:  capability,
		query:       QueryContext{ItemsPerPage: itemsPerPage},
		suggestions: append([]SuggestionSpec(nil), suggestions...),
		result:      QueryResult{IsLoading: true, Status: StatusPending},
	}
}

// Context returns the current query context.
func (r *Resolver) Context() QueryContext {
	return r.query
}

// Result returns the latest query result.
func (r *Resolver) Result() QueryResult {
	return r.result
}

// Seq returns the sequence number of the latest issued ticket.
func (r *Resolver) Seq() uint64 {
	return r.seq
}

// Begin records keyphrase as the query context and issues a new ticket.
// Suggestions are not requested for an empty keyphrase.
func (r *Resolver) Begin(keyphrase string) Ticket {
	r.seq++
	r.query.Keyphrase = keyphrase
	r.result.IsFetching = true
	r.result.Status = StatusPending

	req := Request{
		Keyphrase:    keyphrase,
		ItemsPerPage: r.query.ItemsPerPage,
	}
	if keyphrase != "" {
		req.Suggestions = append([]SuggestionSpec(nil), r.suggestions...)
	}
	return Ticket{Seq: r.seq, Request: req}
}

// Fetch runs the ticket against the capability. It touches no resolver
// state and may run off the event loop.
func (r *Resolver) Fetch(ctx context.Context, t Ticket) Completion {
	resp, err := r.capability.Preview(ctx, t.Request)
	if err == nil && resp == nil {
		err = ErrNilResponse
	}
	return Completion{Seq: t.Seq, Response: resp, Err: err}
}

// Complete applies a completion. It returns false when the completion is
// stale and was ignored.
func (r *Resolver) Complete(c Completion) bool {
	if c.Seq != r.seq {
		return false
	}
	r.result.IsLoading = false
	r.result.IsFetching = false
	if c.Err != nil {
		r.result.Status = StatusFailed
		r.result.Err = c.Err
		r.result.Data = Response{}
		return true
	}
	r.result.Status = StatusSuccess
	r.result.Err = nil
	r.result.Data = *c.Response
	return true
}
