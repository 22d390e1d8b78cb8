package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/devportal/internal/debuglog"
	"github.com/pders01/devportal/internal/preview"
)

const fieldNameSort = "name_sort"

// Stored, unsearched fields that complete a result item.
var itemFields = []string{
	fieldName, fieldDescription, fieldURL,
	"image_url", "type", "index_name", "site_name", "source_id",
}

// Prefix variants score a little below exact matches.
var prefixWeights = map[string]float64{
	fieldName:        3.5,
	fieldDescription: 1.8,
	fieldBody:        0.8,
	fieldURL:         0.3,
}

// BleveEngine keeps the pages in a bleve index.
type BleveEngine struct {
	idx bleve.Index
}

// NewBleveEngine opens the index at indexPath or creates it. An empty path
// keeps the index in memory.
func NewBleveEngine(indexPath string) (*BleveEngine, error) {
	if indexPath == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating index: %w", err)
		}
		return &BleveEngine{idx: idx}, nil
	}

	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating index at %s: %w", indexPath, err)
		}
	}
	return &BleveEngine{idx: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	name := bleve.NewTextFieldMapping()
	name.Analyzer = standard.Name
	name.Store = true
	name.IncludeTermVectors = true

	nameSort := bleve.NewKeywordFieldMapping()
	nameSort.Analyzer = keyword.Name
	nameSort.Store = false
	nameSort.DocValues = true

	desc := bleve.NewTextFieldMapping()
	desc.Analyzer = standard.Name
	desc.Store = true

	body := bleve.NewTextFieldMapping()
	body.Analyzer = standard.Name
	body.Store = false
	body.IncludeTermVectors = false

	url := bleve.NewTextFieldMapping()
	url.Analyzer = standard.Name
	url.Store = true

	dm.AddFieldMappingsAt(fieldName, name)
	dm.AddFieldMappingsAt(fieldNameSort, nameSort)
	dm.AddFieldMappingsAt(fieldDescription, desc)
	dm.AddFieldMappingsAt(fieldBody, body)
	dm.AddFieldMappingsAt(fieldURL, url)

	for _, f := range itemFields[3:] {
		stored := bleve.NewTextFieldMapping()
		stored.Index = false
		stored.Store = true
		dm.AddFieldMappingsAt(f, stored)
	}

	im.DefaultMapping = dm
	return im
}

// Index replaces the index contents with docs.
func (b *BleveEngine) Index(ctx context.Context, docs []Document) error {
	existing, err := b.docIDs(ctx)
	if err != nil {
		return err
	}

	batch := b.idx.NewBatch()
	for _, d := range docs {
		delete(existing, d.ID)
		if err := batch.Index(d.ID, map[string]any{
			fieldName:        d.Name,
			fieldNameSort:    foldName(d.Name),
			fieldDescription: d.Description,
			fieldBody:        d.Body,
			fieldURL:         d.URL,
			"image_url":      d.ImageURL,
			"type":           d.Type,
			"index_name":     d.IndexName,
			"site_name":      d.SiteName,
			"source_id":      d.SourceID,
		}); err != nil {
			return fmt.Errorf("indexing %s: %w", d.ID, err)
		}
	}
	for id := range existing {
		batch.Delete(id)
	}

	if err := b.idx.Batch(batch); err != nil {
		return fmt.Errorf("writing index batch: %w", err)
	}
	debuglog.WithFields(map[string]any{"docs": len(docs), "removed": len(existing)}).Infof("search: index updated")
	return nil
}

func (b *BleveEngine) docIDs(ctx context.Context) (map[string]bool, error) {
	n, err := b.idx.DocCount()
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	ids := make(map[string]bool, n)
	if n == 0 {
		return ids, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(n), 0, false)
	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	for _, h := range res.Hits {
		ids[h.ID] = true
	}
	return ids, nil
}

// DocCount reports total documents in the index.
func (b *BleveEngine) DocCount(_ context.Context) (int, error) {
	n, err := b.idx.DocCount()
	return int(n), err
}

func (b *BleveEngine) Close() error {
	return b.idx.Close()
}

func (b *BleveEngine) Preview(ctx context.Context, req preview.Request) (*preview.Response, error) {
	n := itemsPerPage(req.ItemsPerPage)

	if strings.TrimSpace(req.Keyphrase) == "" {
		sr := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), n, 0, false)
		sr.Fields = itemFields
		sr.SortBy([]string{fieldNameSort, "_id"})
		items, err := b.run(ctx, sr)
		if err != nil {
			return nil, err
		}
		return &preview.Response{Content: items}, nil
	}

	q := termsQuery(req.Keyphrase, allFields)
	if q == nil {
		return &preview.Response{Content: []preview.ResultItem{}}, nil
	}
	sr := bleve.NewSearchRequestOptions(q, n, 0, false)
	sr.Fields = itemFields
	items, err := b.run(ctx, sr)
	if err != nil {
		return nil, err
	}

	resp := &preview.Response{Content: items}
	if limit := nameSuggesterLimit(req.Suggestions); limit > 0 {
		names, err := b.names(ctx, req.Keyphrase, limit*3)
		if err != nil {
			return nil, err
		}
		resp.Suggestions = suggestions(req, names)
	} else {
		resp.Suggestions = suggestions(req, nil)
	}
	return resp, nil
}

func (b *BleveEngine) Suggestion(ctx context.Context, req preview.SuggestionRequest) (*preview.Response, error) {
	fields, err := fieldsFor(req.FilterAttribute)
	if err != nil {
		return nil, err
	}
	q := termsQuery(req.Value, fields)
	if q == nil {
		return &preview.Response{Content: []preview.ResultItem{}}, nil
	}
	sr := bleve.NewSearchRequestOptions(q, itemsPerPage(req.ItemsPerPage), 0, false)
	sr.Fields = itemFields
	items, err := b.run(ctx, sr)
	if err != nil {
		return nil, err
	}
	return &preview.Response{Content: items}, nil
}

// names returns page names matching the keyphrase on the name field, best
// first.
func (b *BleveEngine) names(ctx context.Context, keyphrase string, size int) ([]string, error) {
	q := termsQuery(keyphrase, []string{fieldName})
	if q == nil {
		return nil, nil
	}
	sr := bleve.NewSearchRequestOptions(q, size, 0, false)
	sr.Fields = []string{fieldName}
	res, err := b.idx.SearchInContext(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("searching names: %w", err)
	}
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		if s, ok := h.Fields[fieldName].(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (b *BleveEngine) run(ctx context.Context, sr *bleve.SearchRequest) ([]preview.ResultItem, error) {
	res, err := b.idx.SearchInContext(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	out := make([]preview.ResultItem, 0, len(res.Hits))
	for _, h := range res.Hits {
		str := func(f string) string {
			s, _ := h.Fields[f].(string)
			return s
		}
		out = append(out, preview.ResultItem{
			ID:          h.ID,
			Name:        str(fieldName),
			Description: str(fieldDescription),
			URL:         str(fieldURL),
			ImageURL:    str("image_url"),
			Type:        str("type"),
			IndexName:   str("index_name"),
			SiteName:    str("site_name"),
			SourceID:    str("source_id"),
		})
	}
	return out, nil
}

// termsQuery ORs a match and a prefix query per term and field, boosted by
// field weight. It returns nil when text has no terms.
func termsQuery(text string, fields []string) bleveQuery.Query {
	var qs []bleveQuery.Query
	for _, tok := range tokenize(text) {
		for _, f := range fields {
			mq := bleve.NewMatchQuery(tok)
			mq.SetField(f)
			mq.SetBoost(fieldWeights[f])
			qs = append(qs, mq)

			pq := bleve.NewPrefixQuery(tok)
			pq.SetField(f)
			pq.SetBoost(prefixWeights[f])
			qs = append(qs, pq)
		}
	}
	if len(qs) == 0 {
		return nil
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func nameSuggesterLimit(specs []preview.SuggestionSpec) int {
	for _, s := range specs {
		if s.Name == preview.NameSuggester {
			return s.Max
		}
	}
	return 0
}
