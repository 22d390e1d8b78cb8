package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndGetFeed(t *testing.T) {
	store := setupTestStore(t)

	feed := &Feed{
		ID:           "stackexchange:sitecore:xm",
		URL:          "https://sitecore.stackexchange.com/feeds/tag/xm",
		Source:       "stackexchange",
		Handle:       "sitecore:xm",
		Title:        "Newest questions tagged xm",
		ETag:         "\"abc123\"",
		LastModified: "Wed, 01 Jan 2025 00:00:00 GMT",
		LastFetched:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveFeed(feed))

	got, err := store.GetFeed(feed.ID)
	require.NoError(t, err)
	assert.Equal(t, feed.URL, got.URL)
	assert.Equal(t, feed.ETag, got.ETag)
	assert.True(t, feed.LastFetched.Equal(got.LastFetched))

	_, err = store.GetFeed("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetAllFeedsSorted(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.SaveFeed(&Feed{ID: "1", Title: "beta"}))
	require.NoError(t, store.SaveFeed(&Feed{ID: "2", Title: "Alpha"}))
	require.NoError(t, store.SaveFeed(&Feed{ID: "3", URL: "https://c.example"}))

	feeds, err := store.GetAllFeeds()
	require.NoError(t, err)
	require.Len(t, feeds, 3)
	assert.Equal(t, "2", feeds[0].ID)
	assert.Equal(t, "1", feeds[1].ID)
	assert.Equal(t, "3", feeds[2].ID, "untitled feeds sort by URL")
}

func TestStore_ReplacePosts(t *testing.T) {
	store := setupTestStore(t)
	now := time.Now()

	require.NoError(t, store.ReplacePosts("a", []*Post{
		{ID: "old", Title: "Old", Published: now.Add(-time.Hour)},
		{ID: "new", Title: "New", Published: now},
	}))
	require.NoError(t, store.ReplacePosts("ab", []*Post{{ID: "other", Published: now}}))

	posts, err := store.GetPosts("a", 0)
	require.NoError(t, err)
	require.Len(t, posts, 2, "posts of feed ab must not leak into a")
	assert.Equal(t, "new", posts[0].ID)
	assert.Equal(t, "a", posts[0].FeedID)

	posts, err = store.GetPosts("a", 1)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	require.NoError(t, store.ReplacePosts("a", []*Post{{ID: "only", Published: now}}))
	posts, err = store.GetPosts("a", 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "only", posts[0].ID)
}

func TestStore_Metadata(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetMetadata("f")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveMetadata(&FetchMetadata{FeedID: "f", ETag: "v1", RetryAfter: 30}))
	meta, err := store.GetMetadata("f")
	require.NoError(t, err)
	assert.Equal(t, "v1", meta.ETag)
	assert.Equal(t, 30, meta.RetryAfter)
}

func TestStore_DeleteFeed(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.SaveFeed(&Feed{ID: "f"}))
	require.NoError(t, store.SaveMetadata(&FetchMetadata{FeedID: "f"}))
	require.NoError(t, store.ReplacePosts("f", []*Post{{ID: "1"}, {ID: "2"}}))
	require.NoError(t, store.ReplacePosts("g", []*Post{{ID: "1"}}))

	require.NoError(t, store.DeleteFeed("f"))

	_, err := store.GetFeed("f")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetMetadata("f")
	assert.ErrorIs(t, err, ErrNotFound)
	posts, err := store.GetPosts("f", 0)
	require.NoError(t, err)
	assert.Empty(t, posts)

	posts, err = store.GetPosts("g", 0)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}
