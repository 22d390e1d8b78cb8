//go:build bleve

package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/devportal/internal/preview"
)

func TestBleveEngineIndexesAndSearches(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "index.bleve")
	ctx := context.Background()

	eng, err := NewBleveEngine(idxPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	require.NoError(t, eng.Index(ctx, testDocs()))
	n, err := eng.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	t.Run("empty keyphrase lists by name", func(t *testing.T) {
		resp, err := eng.Preview(ctx, preview.Request{ItemsPerPage: 3, Suggestions: preview.DefaultSuggestions()})
		require.NoError(t, err)
		assert.Equal(t, []string{"xm/analytics", "community/mvp", "xm/proxy"}, ids(resp.Content))
		assert.Empty(t, resp.Suggestions)
	})

	t.Run("keyphrase hits and suggestions", func(t *testing.T) {
		resp, err := eng.Preview(ctx, preview.Request{
			Keyphrase:    "prox",
			ItemsPerPage: 6,
			Suggestions:  preview.DefaultSuggestions(),
		})
		require.NoError(t, err)
		assert.Equal(t, "xm/proxy", resp.Content[0].ID)
		assert.Contains(t, ids(resp.Content), "xm/analytics")
		assert.ElementsMatch(t, []string{"proxy configuration", "proxy reference video"},
			texts(resp.Suggestions[preview.NameSuggester]))
	})

	t.Run("stored fields complete the item", func(t *testing.T) {
		resp, err := eng.Preview(ctx, preview.Request{Keyphrase: "mvp"})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Content)
		it := resp.Content[0]
		assert.Equal(t, "community/mvp", it.ID)
		assert.Equal(t, "MVP Program", it.Name)
		assert.Equal(t, "mvp-site", it.IndexName)
		assert.Equal(t, "MVP site", it.SiteName)
		assert.Equal(t, "https://mvp.example.org", it.URL)
		assert.Equal(t, SourceContent, it.SourceID)
	})

	t.Run("group query restricted to name", func(t *testing.T) {
		resp, err := eng.Suggestion(ctx, preview.SuggestionRequest{
			Value:           "proxy configuration",
			FilterAttribute: "name",
			ItemsPerPage:    6,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"xm/proxy", "video/proxy-intro"}, ids(resp.Content))

		_, err = eng.Suggestion(ctx, preview.SuggestionRequest{Value: "proxy", FilterAttribute: "tags"})
		assert.ErrorIs(t, err, ErrUnknownAttribute)
	})

	t.Run("reindex removes missing pages", func(t *testing.T) {
		require.NoError(t, eng.Index(ctx, testDocs()[:2]))
		n, err := eng.DocCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	fi, err := os.Stat(idxPath)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestBleveEngineReopens(t *testing.T) {
	idxPath := filepath.Join(t.TempDir(), "nested", "index.bleve")
	ctx := context.Background()

	eng, err := NewBleveEngine(idxPath)
	require.NoError(t, err)
	require.NoError(t, eng.Index(ctx, testDocs()))
	require.NoError(t, eng.Close())

	eng, err = NewBleveEngine(idxPath)
	require.NoError(t, err)
	defer eng.Close()

	n, err := eng.DocCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestBleveEngineInMemory(t *testing.T) {
	eng, err := NewBleveEngine("")
	require.NoError(t, err)
	defer eng.Close()

	resp, err := eng.Preview(context.Background(), preview.Request{Keyphrase: "proxy"})
	require.NoError(t, err)
	assert.Empty(t, resp.Content)
}
