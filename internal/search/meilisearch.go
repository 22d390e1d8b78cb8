package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/pders01/devportal/internal/preview"
)

const meiliTaskInterval = 50 * time.Millisecond

// meiliDoc is the document shape stored in Meilisearch. Only the primary
// key contains "id" so the index can infer it.
type meiliDoc struct {
	Key         string `json:"id"`
	Page        string `json:"page"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Body        string `json:"body,omitempty"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url"`
	Type        string `json:"type"`
	IndexName   string `json:"index_name"`
	SiteName    string `json:"site_name"`
	Source      string `json:"source"`
}

var meiliRetrieve = []string{
	"page", fieldName, fieldDescription, fieldURL,
	"image_url", "type", "index_name", "site_name", "source",
}

func toMeiliDoc(d Document) meiliDoc {
	return meiliDoc{
		Key:         meiliKey(d.ID),
		Page:        d.ID,
		Name:        d.Name,
		Description: d.Description,
		Body:        d.Body,
		URL:         d.URL,
		ImageURL:    d.ImageURL,
		Type:        d.Type,
		IndexName:   d.IndexName,
		SiteName:    d.SiteName,
		Source:      d.SourceID,
	}
}

func (d meiliDoc) item() preview.ResultItem {
	return preview.ResultItem{
		ID:          d.Page,
		Name:        d.Name,
		ImageURL:    d.ImageURL,
		URL:         d.URL,
		SourceID:    d.Source,
		Type:        d.Type,
		IndexName:   d.IndexName,
		Description: d.Description,
		SiteName:    d.SiteName,
	}
}

// MeiliEngine answers preview queries from a Meilisearch index.
type MeiliEngine struct {
	index meilisearch.IndexManager
}

func NewMeiliEngine(host, apiKey, index string) *MeiliEngine {
	client := meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
	return &MeiliEngine{index: client.Index(index)}
}

// Index replaces the documents of the index with docs. Each task is awaited
// so a failed deletion never leaves old and new pages mixed.
func (m *MeiliEngine) Index(ctx context.Context, docs []Document) error {
	task, err := m.index.DeleteAllDocumentsWithContext(ctx, nil)
	if err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}
	if err := m.wait(ctx, task); err != nil {
		return fmt.Errorf("waiting for clearing task: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	payload := make([]meiliDoc, 0, len(docs))
	for _, d := range docs {
		payload = append(payload, toMeiliDoc(d))
	}
	task, err = m.index.AddDocumentsWithContext(ctx, payload, nil)
	if err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	if err := m.wait(ctx, task); err != nil {
		return fmt.Errorf("waiting for indexing task: %w", err)
	}
	return nil
}

func (m *MeiliEngine) wait(ctx context.Context, info *meilisearch.TaskInfo) error {
	task, err := m.index.WaitForTaskWithContext(ctx, info.TaskUID, meiliTaskInterval)
	if err != nil {
		return err
	}
	if task.Status == meilisearch.TaskStatusFailed {
		return fmt.Errorf("task %d failed: %s", task.UID, task.Error.Message)
	}
	return nil
}

func (m *MeiliEngine) DocCount(ctx context.Context) (int, error) {
	res, err := m.index.SearchWithContext(ctx, "", &meilisearch.SearchRequest{Limit: 0})
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return int(res.EstimatedTotalHits), nil
}

func (m *MeiliEngine) Close() error {
	return nil
}

func (m *MeiliEngine) Preview(ctx context.Context, req preview.Request) (*preview.Response, error) {
	n := itemsPerPage(req.ItemsPerPage)
	items, err := m.search(ctx, req.Keyphrase, n, nil)
	if err != nil {
		return nil, err
	}
	resp := &preview.Response{Content: items}

	if strings.TrimSpace(req.Keyphrase) == "" {
		return resp, nil
	}

	var names []string
	if limit := nameSuggesterLimit(req.Suggestions); limit > 0 {
		hits, err := m.search(ctx, req.Keyphrase, limit*3, []string{fieldName})
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			names = append(names, h.Name)
		}
	}
	resp.Suggestions = suggestions(req, names)
	return resp, nil
}

func (m *MeiliEngine) Suggestion(ctx context.Context, req preview.SuggestionRequest) (*preview.Response, error) {
	var on []string
	if req.FilterAttribute != "" {
		fields, err := fieldsFor(req.FilterAttribute)
		if err != nil {
			return nil, err
		}
		on = fields
	}
	items, err := m.search(ctx, req.Value, itemsPerPage(req.ItemsPerPage), on)
	if err != nil {
		return nil, err
	}
	return &preview.Response{Content: items}, nil
}

func (m *MeiliEngine) search(ctx context.Context, query string, limit int, on []string) ([]preview.ResultItem, error) {
	res, err := m.index.SearchWithContext(ctx, query, &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToSearchOn: on,
		AttributesToRetrieve: meiliRetrieve,
	})
	if err != nil {
		return nil, fmt.Errorf("meilisearch query: %w", err)
	}

	items := make([]preview.ResultItem, 0, len(res.Hits))
	for _, hit := range res.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			return nil, fmt.Errorf("decoding hit: %w", err)
		}
		var d meiliDoc
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decoding hit: %w", err)
		}
		items = append(items, d.item())
	}
	return items, nil
}

// meiliKey maps a page id to a valid primary key.
func meiliKey(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			fmt.Fprintf(&sb, "_%x_", r)
		}
	}
	return sb.String()
}
