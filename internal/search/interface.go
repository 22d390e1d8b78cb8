// Package search implements the preview capability over the portal pages:
// an in-memory scorer, a bleve index and a Meilisearch client, plus a
// caching decorator that works with any of them.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/content"
	"github.com/pders01/devportal/internal/preview"
)

// SourceContent is the source id of items backed by local pages.
const SourceContent = "content"

// ErrUnknownAttribute is returned for a filter attribute no backend field
// matches.
var ErrUnknownAttribute = errors.New("unknown filter attribute")

// Searchable fields and the attribute names they are filtered by.
const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldBody        = "body"
	fieldURL         = "url"
)

var allFields = []string{fieldName, fieldDescription, fieldBody, fieldURL}

// Backend is a capability that owns its index.
type Backend interface {
	preview.Capability
	// Index replaces the indexed documents with docs.
	Index(ctx context.Context, docs []Document) error
	// DocCount reports how many documents are indexed.
	DocCount(ctx context.Context) (int, error)
	Close() error
}

// Document is the indexed form of a page.
type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Body        string `json:"body"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url"`
	Type        string `json:"type"`
	IndexName   string `json:"index_name"`
	SiteName    string `json:"site_name"`
	SourceID    string `json:"source_id"`
}

// DocumentFromPage maps a page to its search document.
func DocumentFromPage(p *content.Page) Document {
	return Document{
		ID:          p.ID,
		Name:        p.Title(),
		Description: p.Description,
		Body:        p.Body,
		URL:         p.URL,
		ImageURL:    p.ImageURL,
		Type:        p.Type,
		IndexName:   p.IndexName,
		SiteName:    p.SiteName,
		SourceID:    SourceContent,
	}
}

// Documents returns a document per page of store.
func Documents(store *content.Store) []Document {
	pages := store.Pages()
	docs := make([]Document, 0, len(pages))
	for _, p := range pages {
		docs = append(docs, DocumentFromPage(p))
	}
	return docs
}

// Item returns the result item shown for d.
func (d Document) Item() preview.ResultItem {
	return preview.ResultItem{
		ID:          d.ID,
		Name:        d.Name,
		ImageURL:    d.ImageURL,
		URL:         d.URL,
		SourceID:    d.SourceID,
		Type:        d.Type,
		IndexName:   d.IndexName,
		Description: d.Description,
		SiteName:    d.SiteName,
	}
}

func (d Document) field(name string) string {
	switch name {
	case fieldName:
		return d.Name
	case fieldDescription:
		return d.Description
	case fieldBody:
		return d.Body
	case fieldURL:
		return d.URL
	}
	return ""
}

// Open returns the backend selected by search.backend. The index starts
// empty for the memory backend; bleve reopens its index from disk.
func Open(cfg *config.Config) (Backend, error) {
	switch cfg.Search.Backend {
	case config.BackendMemory:
		return NewEngine(), nil
	case config.BackendBleve:
		return NewBleveEngine(cfg.Search.IndexPath)
	case config.BackendMeilisearch:
		m := cfg.Search.Meilisearch
		return NewMeiliEngine(m.Host, m.APIKey, m.Index), nil
	default:
		return nil, fmt.Errorf("%w: search backend %q", config.ErrInvalidConfig, cfg.Search.Backend)
	}
}

// fieldsFor maps a filter attribute to the fields a group query searches.
func fieldsFor(attr string) ([]string, error) {
	if attr == "" {
		return allFields, nil
	}
	for _, f := range allFields {
		if strings.EqualFold(f, attr) {
			return []string{f}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
}

// defaultItems is the result list for an empty keyphrase: the first n
// documents by name.
func defaultItems(docs []Document, n int) []preview.ResultItem {
	sorted := append([]Document(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := foldName(sorted[i].Name), foldName(sorted[j].Name)
		if a != b {
			return a < b
		}
		return sorted[i].ID < sorted[j].ID
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	items := make([]preview.ResultItem, 0, len(sorted))
	for _, d := range sorted {
		items = append(items, d.Item())
	}
	return items
}

// suggest derives name_suggester candidates: lower-cased names, in the
// given order, that have a word starting with one of the keyphrase terms.
func suggest(keyphrase string, names []string, limit int) []preview.SuggestionCandidate {
	terms := tokenize(keyphrase)
	if len(terms) == 0 || limit <= 0 {
		return nil
	}

	seen := make(map[string]bool)
	var out []preview.SuggestionCandidate
	for _, name := range names {
		text := strings.Join(strings.Fields(foldName(name)), " ")
		if text == "" || seen[text] || !hasTermPrefix(tokenize(text), terms) {
			continue
		}
		seen[text] = true
		out = append(out, preview.SuggestionCandidate{Text: text})
		if len(out) == limit {
			break
		}
	}
	return out
}

func hasTermPrefix(words, terms []string) bool {
	for _, w := range words {
		for _, t := range terms {
			if strings.HasPrefix(w, t) {
				return true
			}
		}
	}
	return false
}

// suggestions answers every requested suggester. Only name_suggester has
// candidates; other names get an empty group.
func suggestions(req preview.Request, names []string) map[string][]preview.SuggestionCandidate {
	if strings.TrimSpace(req.Keyphrase) == "" || len(req.Suggestions) == 0 {
		return nil
	}
	out := make(map[string][]preview.SuggestionCandidate, len(req.Suggestions))
	for _, spec := range req.Suggestions {
		if spec.Name != preview.NameSuggester {
			out[spec.Name] = nil
			continue
		}
		out[spec.Name] = suggest(req.Keyphrase, names, spec.Max)
	}
	return out
}

func itemsPerPage(n int) int {
	if n <= 0 {
		return preview.DefaultItemsPerPage
	}
	return n
}

// foldName lower-cases with Unicode rules. A Caser is not safe for
// concurrent use, so each call gets its own.
func foldName(s string) string {
	return cases.Lower(language.Und).String(s)
}
