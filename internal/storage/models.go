package storage

import (
	"time"
)

// Feed is a community or microblog feed the portal shows.
type Feed struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Source       string    `json:"source"`
	Handle       string    `json:"handle"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	LastFetched  time.Time `json:"last_fetched"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Post is one feed entry: a forum question or a microblog post.
type Post struct {
	ID        string    `json:"id"`
	FeedID    string    `json:"feed_id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Author    string    `json:"author"`
	URL       string    `json:"url"`
	Tags      []string  `json:"tags"`
	Published time.Time `json:"published"`
	Updated   time.Time `json:"updated"`
}

type FetchMetadata struct {
	FeedID       string    `json:"feed_id"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	LastFetched  time.Time `json:"last_fetched"`
	NextFetch    time.Time `json:"next_fetch"`
	RetryAfter   int       `json:"retry_after"`
}

// cachedEntry wraps a query cache value with its expiry.
type cachedEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}
