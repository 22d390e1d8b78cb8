package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/pders01/devportal/internal/preview"
)

// Field weights shared by the memory and bleve backends.
var fieldWeights = map[string]float64{
	fieldName:        4.0,
	fieldDescription: 2.0,
	fieldBody:        1.0,
	fieldURL:         0.5,
}

// scored is a document matched by a query
type scored struct {
	doc   Document
	score float64
}

// Engine scores documents in memory without an index. It backs tests and
// the memory search backend.
type Engine struct {
	mu   sync.RWMutex
	docs []Document
}

// NewEngine creates an empty engine
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Index(_ context.Context, docs []Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = append([]Document(nil), docs...)
	return nil
}

func (e *Engine) DocCount(_ context.Context) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs), nil
}

func (e *Engine) Close() error {
	return nil
}

// Preview returns the best matches for the keyphrase and the requested
// suggestion groups. An empty keyphrase returns the default list.
func (e *Engine) Preview(ctx context.Context, req preview.Request) (*preview.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := itemsPerPage(req.ItemsPerPage)
	if strings.TrimSpace(req.Keyphrase) == "" {
		return &preview.Response{Content: defaultItems(e.docs, n)}, nil
	}

	hits := e.search(req.Keyphrase, allFields)
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.doc.Name)
	}

	return &preview.Response{
		Content:     items(hits, n),
		Suggestions: suggestions(req, names),
	}, nil
}

// Suggestion returns the matches for one suggestion text, restricted to the
// filter attribute when one is set.
func (e *Engine) Suggestion(ctx context.Context, req preview.SuggestionRequest) (*preview.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields, err := fieldsFor(req.FilterAttribute)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	hits := e.search(req.Value, fields)
	return &preview.Response{Content: items(hits, itemsPerPage(req.ItemsPerPage))}, nil
}

func (e *Engine) search(query string, fields []string) []scored {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	var results []scored
	for _, d := range e.docs {
		var total float64
		for _, f := range fields {
			total += scoreField(d.field(f), terms, fieldWeights[f])
		}
		if total > 0 {
			results = append(results, scored{doc: d, score: total})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].doc.ID < results[j].doc.ID
	})
	return results
}

func items(hits []scored, n int) []preview.ResultItem {
	if len(hits) > n {
		hits = hits[:n]
	}
	out := make([]preview.ResultItem, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.doc.Item())
	}
	return out
}

// scoreField calculates relevance score for a field
func scoreField(text string, terms []string, weight float64) float64 {
	if text == "" || weight == 0 {
		return 0
	}

	lower := strings.ToLower(text)
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}

	var score float64
	matchedTerms := 0

	for _, term := range terms {
		// Substring match anywhere in the field
		if strings.Contains(lower, term) {
			score += 2.0
			matchedTerms++
		}

		// Word boundary matches
		for _, word := range words {
			switch {
			case word == term:
				score += 1.5
				matchedTerms++
			case strings.HasPrefix(word, term) || strings.HasSuffix(word, term):
				score += 1.0
				matchedTerms++
			case strings.Contains(word, term):
				score += 0.5
				matchedTerms++
			}
		}
	}

	// Boost score if multiple terms match
	if len(terms) > 1 && matchedTerms > 1 {
		score *= 1.0 + float64(matchedTerms)/float64(len(terms))
	}

	// Short fields with many hits rank above long ones with few
	tf := float64(matchedTerms) / float64(len(words))
	score *= 1.0 + math.Log(1.0+tf)

	return score * weight
}

// tokenize breaks text into lower-case searchable terms
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len(term) > 1 { // Skip single chars
				terms = append(terms, term)
			}
			current.Reset()
		}
	}

	if current.Len() > 1 {
		terms = append(terms, current.String())
	}

	return terms
}
