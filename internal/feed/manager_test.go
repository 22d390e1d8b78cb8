package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/storage"
)

// feedServer serves body with an ETag and counts full responses and 304s.
type feedServer struct {
	*httptest.Server
	hits        atomic.Int32
	notModified atomic.Int32
	status      atomic.Int32
}

func newFeedServer(t *testing.T, body string) *feedServer {
	t.Helper()
	fs := &feedServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		if code := fs.status.Load(); code != 0 {
			w.Header().Set("Retry-After", "600")
			w.WriteHeader(int(code))
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			fs.notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fs.Close)
	return fs
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupManager(t *testing.T) (*Manager, *storage.Store, *clock) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := &clock{now: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)}
	m := NewManager(store, nil, config.TestConfig())
	m.now = c.Now
	return m, store, c
}

func TestNewManager(t *testing.T) {
	m, store, _ := setupManager(t)

	assert.NotNil(t, m.fetcher)
	assert.NotNil(t, m.parser)
	assert.Equal(t, store, m.store)
	assert.Len(t, m.registry.ListPlugins(), 2)
}

func TestManager_Feed(t *testing.T) {
	m, store, c := setupManager(t)
	srv := newFeedServer(t, stackExchangeAtom)
	ctx := context.Background()

	res, err := m.Feed(ctx, srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Stale)
	require.Len(t, res.Posts, 2)
	assert.Equal(t, "How do I configure the proxy?", res.Posts[0].Title, "newest first")
	assert.Equal(t, "Newest questions tagged xm - Sitecore Stack Exchange", res.Feed.Title)
	assert.Equal(t, `"v1"`, res.Feed.ETag)
	assert.EqualValues(t, 1, srv.hits.Load())

	stored, err := store.GetFeed(res.Feed.ID)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, stored.Handle)

	t.Run("inside the refresh interval the cache answers", func(t *testing.T) {
		res, err := m.Feed(ctx, srv.URL)
		require.NoError(t, err)
		assert.Len(t, res.Posts, 2)
		assert.EqualValues(t, 1, srv.hits.Load())
	})

	t.Run("after the interval a conditional request is made", func(t *testing.T) {
		c.Advance(2 * time.Minute)
		res, err := m.Feed(ctx, srv.URL)
		require.NoError(t, err)
		assert.Len(t, res.Posts, 2)
		assert.EqualValues(t, 2, srv.hits.Load())
		assert.EqualValues(t, 1, srv.notModified.Load())
	})

	t.Run("force refresh ignores interval and etag", func(t *testing.T) {
		m.SetForceRefresh(true)
		defer m.SetForceRefresh(false)

		_, err := m.Feed(ctx, srv.URL)
		require.NoError(t, err)
		assert.EqualValues(t, 3, srv.hits.Load())
		assert.EqualValues(t, 1, srv.notModified.Load())
	})
}

func TestManager_FeedBackoff(t *testing.T) {
	m, store, c := setupManager(t)
	srv := newFeedServer(t, microblogRSS)
	ctx := context.Background()

	_, err := m.Feed(ctx, srv.URL)
	require.NoError(t, err)

	srv.status.Store(http.StatusTooManyRequests)
	c.Advance(2 * time.Minute)

	res, err := m.Feed(ctx, srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Len(t, res.Posts, 1)

	meta, err := store.GetMetadata(res.Feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 600, meta.RetryAfter)

	hits := srv.hits.Load()
	c.Advance(5 * time.Minute)
	_, err = m.Feed(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, hits, srv.hits.Load(), "no request before Retry-After passes")
}

func TestManager_FeedErrors(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()

	t.Run("unresolvable handle", func(t *testing.T) {
		_, err := m.Feed(ctx, "not a url")
		assert.Error(t, err)
	})

	t.Run("first fetch fails", func(t *testing.T) {
		srv := newFeedServer(t, "")
		srv.status.Store(http.StatusServiceUnavailable)
		_, err := m.Feed(ctx, srv.URL)
		assert.Error(t, err)
	})

	t.Run("body is not a feed", func(t *testing.T) {
		srv := newFeedServer(t, "<html>nope</html>")
		_, err := m.Feed(ctx, srv.URL)
		assert.Error(t, err)
	})
}

func TestManager_Feeds(t *testing.T) {
	m, _, _ := setupManager(t)
	a := newFeedServer(t, stackExchangeAtom)
	b := newFeedServer(t, microblogRSS)

	results, err := m.Feeds(context.Background(), []string{a.URL, "sitecore:", b.URL})
	assert.Error(t, err)
	require.Len(t, results, 3)
	assert.Len(t, results[0].Posts, 2)
	assert.Nil(t, results[1])
	assert.Len(t, results[2].Posts, 1)
}

func TestManager_FeedSharesConcurrentFetches(t *testing.T) {
	m, _, _ := setupManager(t)
	srv := newFeedServer(t, stackExchangeAtom)

	handles := make([]string, 8)
	for i := range handles {
		handles[i] = srv.URL
	}
	results, err := m.Feeds(context.Background(), handles)
	require.NoError(t, err)
	for _, r := range results {
		assert.Len(t, r.Posts, 2)
	}
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestManager_RefreshAllAndPrune(t *testing.T) {
	m, store, c := setupManager(t)
	a := newFeedServer(t, stackExchangeAtom)
	b := newFeedServer(t, microblogRSS)
	ctx := context.Background()

	require.NoError(t, m.RefreshAllFeeds(ctx), "no feeds is fine")

	_, err := m.Feeds(ctx, []string{a.URL, b.URL})
	require.NoError(t, err)

	c.Advance(time.Hour)
	require.NoError(t, m.RefreshAllFeeds(ctx))
	assert.EqualValues(t, 2, a.hits.Load())
	assert.EqualValues(t, 2, b.hits.Load())

	removed, err := m.Prune([]string{a.URL})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	feeds, err := store.GetAllFeeds()
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, a.URL, feeds[0].Handle)
}

func TestGenerateFeedID(t *testing.T) {
	id := generateFeedID("https://example.org/feed")
	assert.Len(t, id, 64)
	assert.Equal(t, id, generateFeedID("https://example.org/feed"))
	assert.NotEqual(t, id, generateFeedID("https://example.org/other"))
}
