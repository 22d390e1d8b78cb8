package feed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/storage"
)

const acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8"

// RetryError is returned when the server asks us to back off (429 or 503).
type RetryError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("HTTP %d: retry after %s", e.StatusCode, e.RetryAfter)
}

type Fetcher struct {
	client            *http.Client
	userAgent         string
	defaultRetryAfter time.Duration
	limits            *hostLimiter
	ignoreCache       bool
	now               func() time.Time
}

func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Feeds.HTTPTimeout,
		},
		userAgent:         cfg.Feeds.UserAgent,
		defaultRetryAfter: cfg.Feeds.DefaultRetryAfter,
		limits:            newHostLimiter(cfg.Feeds.RatePerSecond),
		now:               time.Now,
	}
}

// SetIgnoreCache drops the conditional request headers.
func (f *Fetcher) SetIgnoreCache(ignore bool) {
	f.ignoreCache = ignore
}

// Fetch issues a conditional GET for feed. A nil response with updated false
// means the server answered 304.
func (f *Fetcher) Fetch(ctx context.Context, feed *storage.Feed) (*http.Response, bool, error) {
	if err := f.limits.Wait(ctx, feed.URL); err != nil {
		return nil, false, fmt.Errorf("waiting for rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	if !f.ignoreCache {
		if feed.ETag != "" {
			req.Header.Set("If-None-Match", feed.ETag)
		}
		if feed.LastModified != "" {
			req.Header.Set("If-Modified-Since", feed.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetching feed: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		resp.Body.Close()
		return nil, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		resp.Body.Close()
		return nil, false, &RetryError{StatusCode: resp.StatusCode, RetryAfter: f.GetRetryAfter(resp)}
	case resp.StatusCode >= 400:
		resp.Body.Close()
		return nil, false, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	return resp, true, nil
}

func (f *Fetcher) UpdateFeedMetadata(feed *storage.Feed, resp *http.Response) {
	if etag := resp.Header.Get("ETag"); etag != "" {
		feed.ETag = etag
	}

	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		feed.LastModified = lastMod
	}

	feed.LastFetched = f.now()
}

// GetRetryAfter reads Retry-After as seconds or an HTTP date.
func (f *Fetcher) GetRetryAfter(resp *http.Response) time.Duration {
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return f.defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(f.now()); d > 0 {
			return d
		}
		return 0
	}
	return f.defaultRetryAfter
}
