package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/storage"
)

func TestFetcher_Fetch(t *testing.T) {
	tests := []struct {
		name           string
		feed           *storage.Feed
		serverResponse func(t *testing.T, w http.ResponseWriter, r *http.Request)
		expectUpdated  bool
		expectError    bool
	}{
		{
			name: "successful fetch with new content",
			feed: &storage.Feed{ID: "test1"},
			serverResponse: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "devportal-test/1.0", r.Header.Get("User-Agent"))
				assert.Contains(t, r.Header.Get("Accept"), "application/rss+xml")
				w.Header().Set("ETag", `"123"`)
				w.Header().Set("Last-Modified", "Wed, 01 Jan 2025 00:00:00 GMT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("<rss></rss>"))
			},
			expectUpdated: true,
		},
		{
			name: "not modified response with ETag",
			feed: &storage.Feed{ID: "test2", ETag: `"123"`},
			serverResponse: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, `"123"`, r.Header.Get("If-None-Match"))
				w.WriteHeader(http.StatusNotModified)
			},
		},
		{
			name: "not modified response with Last-Modified",
			feed: &storage.Feed{ID: "test3", LastModified: "Wed, 01 Jan 2025 00:00:00 GMT"},
			serverResponse: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Wed, 01 Jan 2025 00:00:00 GMT", r.Header.Get("If-Modified-Since"))
				w.WriteHeader(http.StatusNotModified)
			},
		},
		{
			name: "server error",
			feed: &storage.Feed{ID: "test4"},
			serverResponse: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectError: true,
		},
		{
			name: "not found",
			feed: &storage.Feed{ID: "test5"},
			serverResponse: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.serverResponse(t, w, r)
			}))
			defer server.Close()

			tt.feed.URL = server.URL
			fetcher := NewFetcher(config.TestConfig())
			resp, updated, err := fetcher.Fetch(context.Background(), tt.feed)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectUpdated, updated)
			if resp != nil {
				resp.Body.Close()
			}
			if !tt.expectUpdated {
				assert.Nil(t, resp)
			}
		})
	}
}

func TestFetcher_IgnoreCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		assert.Empty(t, r.Header.Get("If-Modified-Since"))
		_, _ = w.Write([]byte("<rss></rss>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(config.TestConfig())
	fetcher.SetIgnoreCache(true)

	resp, updated, err := fetcher.Fetch(context.Background(), &storage.Feed{
		URL:          server.URL,
		ETag:         `"abc"`,
		LastModified: "Wed, 01 Jan 2025 00:00:00 GMT",
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.True(t, updated)
}

func TestFetcher_RetryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := NewFetcher(config.TestConfig())
	_, _, err := fetcher.Fetch(context.Background(), &storage.Feed{URL: server.URL})

	var retry *RetryError
	require.True(t, errors.As(err, &retry))
	assert.Equal(t, http.StatusTooManyRequests, retry.StatusCode)
	assert.Equal(t, 2*time.Minute, retry.RetryAfter)
}

func TestFetcher_CanceledContext(t *testing.T) {
	cfg := config.TestConfig()
	cfg.Feeds.RatePerSecond = 1
	fetcher := NewFetcher(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := fetcher.Fetch(ctx, &storage.Feed{URL: "http://127.0.0.1:1/feed"})
	assert.Error(t, err)
}

func TestFetcher_UpdateFeedMetadata(t *testing.T) {
	fetcher := NewFetcher(config.TestConfig())
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher.now = func() time.Time { return fixed }

	feed := &storage.Feed{ID: "test", ETag: `"old"`, LastModified: "old"}
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("ETag", `"new-etag"`)
	resp.Header.Set("Last-Modified", "Thu, 02 Jan 2025 00:00:00 GMT")

	fetcher.UpdateFeedMetadata(feed, resp)

	assert.Equal(t, `"new-etag"`, feed.ETag)
	assert.Equal(t, "Thu, 02 Jan 2025 00:00:00 GMT", feed.LastModified)
	assert.Equal(t, fixed, feed.LastFetched)

	fetcher.UpdateFeedMetadata(feed, &http.Response{Header: http.Header{}})
	assert.Equal(t, `"new-etag"`, feed.ETag, "missing headers keep the old values")
}

func TestFetcher_GetRetryAfter(t *testing.T) {
	fetcher := NewFetcher(config.TestConfig())
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fetcher.now = func() time.Time { return fixed }

	tests := []struct {
		name     string
		header   string
		expected time.Duration
	}{
		{"seconds", "60", time.Minute},
		{"zero", "0", 0},
		{"http date", fixed.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"date in the past", fixed.Add(-time.Hour).Format(http.TimeFormat), 0},
		{"missing", "", 5 * time.Minute},
		{"garbage", "soon", 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.expected, fetcher.GetRetryAfter(resp))
		})
	}
}

func TestHostLimiter(t *testing.T) {
	l := newHostLimiter(1000)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.org/feed"))
	require.NoError(t, l.Wait(ctx, "https://b.example.org/feed"))
	assert.Len(t, l.limiters, 2)
	assert.Same(t, l.limiter("a.example.org"), l.limiter("a.example.org"))

	assert.Error(t, l.Wait(ctx, "/relative"))
	assert.NoError(t, newHostLimiter(0).Wait(ctx, "/relative"), "disabled limiter checks nothing")
}
