package feed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/debuglog"
	"github.com/pders01/devportal/internal/plugins"
	"github.com/pders01/devportal/internal/plugins/sources"
	"github.com/pders01/devportal/internal/storage"
	"github.com/pders01/devportal/internal/validation"
)

// Result is a feed with its newest posts.
type Result struct {
	Feed  *storage.Feed
	Posts []*storage.Post
	// Stale is set when the posts come from the cache because the fetch
	// failed or the server asked us to back off.
	Stale bool
}

type Manager struct {
	store    *storage.Store
	fetcher  *Fetcher
	parser   *Parser
	registry *plugins.Registry
	config   *config.Config
	flight   singleflight.Group
	now      func() time.Time
	force    bool
}

// NewRegistry returns the handle registry with the built-in sources. URL
// handles pointing at private hosts are accepted only when the config allows
// it.
func NewRegistry(cfg *config.Config) *plugins.Registry {
	validator := validation.NewURLValidator()
	if cfg.Feeds.AllowPrivateHosts {
		validator = validation.NewPermissiveURLValidator()
	}
	r := plugins.NewRegistry(validator)
	sources.Register(r)
	return r
}

func NewManager(store *storage.Store, registry *plugins.Registry, cfg *config.Config) *Manager {
	if registry == nil {
		registry = NewRegistry(cfg)
	}
	return &Manager{
		store:    store,
		fetcher:  NewFetcher(cfg),
		parser:   NewParser(),
		registry: registry,
		config:   cfg,
		now:      time.Now,
	}
}

// SetForceRefresh makes every call hit the network, ignoring the refresh
// interval and the ETag/Last-Modified headers.
func (m *Manager) SetForceRefresh(force bool) {
	m.force = force
	m.fetcher.SetIgnoreCache(force)
}

// Feed returns the posts behind a front-matter handle. Concurrent calls for
// the same feed share one fetch.
func (m *Manager) Feed(ctx context.Context, handle string) (*Result, error) {
	info, err := m.registry.Resolve(ctx, handle)
	if err != nil {
		return nil, err
	}

	id := generateFeedID(info.FeedURL)
	v, err, _ := m.flight.Do(id, func() (any, error) {
		return m.refresh(ctx, id, info)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// Feeds resolves handles concurrently, at most feeds.workers at a time.
// Results keep the order of handles; failed handles leave a nil entry and
// their errors are joined.
func (m *Manager) Feeds(ctx context.Context, handles []string) ([]*Result, error) {
	results := make([]*Result, len(handles))
	errs := make([]error, len(handles))

	var g errgroup.Group
	g.SetLimit(m.config.Feeds.Workers)
	for i, handle := range handles {
		g.Go(func() error {
			results[i], errs[i] = m.Feed(ctx, handle)
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// RefreshAllFeeds refreshes every stored feed that is due.
func (m *Manager) RefreshAllFeeds(ctx context.Context) error {
	feeds, err := m.store.GetAllFeeds()
	if err != nil {
		return fmt.Errorf("getting feeds: %w", err)
	}

	handles := make([]string, 0, len(feeds))
	for _, f := range feeds {
		handle := f.Handle
		if handle == "" {
			handle = f.URL
		}
		handles = append(handles, handle)
	}

	_, err = m.Feeds(ctx, handles)
	if err != nil {
		return fmt.Errorf("refresh errors: %w", err)
	}
	return nil
}

// Prune deletes stored feeds whose handle is not in keep and returns how
// many were removed.
func (m *Manager) Prune(keep []string) (int, error) {
	wanted := make(map[string]bool, len(keep))
	for _, h := range keep {
		wanted[h] = true
	}

	feeds, err := m.store.GetAllFeeds()
	if err != nil {
		return 0, fmt.Errorf("getting feeds: %w", err)
	}

	removed := 0
	for _, f := range feeds {
		if wanted[f.Handle] {
			continue
		}
		if err := m.store.DeleteFeed(f.ID); err != nil {
			return removed, fmt.Errorf("deleting feed %s: %w", f.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) refresh(ctx context.Context, id string, info *plugins.FeedInfo) (*Result, error) {
	log := debuglog.WithFields(map[string]any{"feed": id[:12], "handle": info.Handle})
	now := m.now()

	feed, err := m.store.GetFeed(id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		feed = &storage.Feed{ID: id, URL: info.FeedURL, UpdatedAt: now}
	case err != nil:
		return nil, fmt.Errorf("getting feed: %w", err)
	}
	feed.Handle = info.Handle
	feed.Source = info.Source
	if feed.Title == "" {
		feed.Title = info.Title
	}

	meta, err := m.store.GetMetadata(id)
	if err != nil {
		meta = &storage.FetchMetadata{FeedID: id}
	}

	if !m.force && now.Before(meta.NextFetch) {
		log.Debugf("serving from cache until %s", meta.NextFetch.Format(time.RFC3339))
		return m.cached(feed, false)
	}

	resp, updated, err := m.fetcher.Fetch(ctx, feed)
	if err != nil {
		var retry *RetryError
		if errors.As(err, &retry) {
			meta.RetryAfter = int(retry.RetryAfter / time.Second)
			meta.NextFetch = now.Add(retry.RetryAfter)
			if saveErr := m.store.SaveMetadata(meta); saveErr != nil {
				log.Warnf("saving metadata: %v", saveErr)
			}
		}
		if feed.LastFetched.IsZero() {
			return nil, fmt.Errorf("fetching %s: %w", feed.URL, err)
		}
		log.Warnf("fetch failed, serving stale posts: %v", err)
		return m.cached(feed, true)
	}

	if !updated {
		feed.LastFetched = now
		if err := m.saveFetch(feed, meta, now); err != nil {
			return nil, err
		}
		log.Debugf("not modified")
		return m.cached(feed, false)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	parsed, err := m.parser.Parse(bytes.NewReader(body), id)
	if err != nil {
		return nil, err
	}
	if parsed.Title != "" && info.Source == plugins.SourceURL {
		feed.Title = parsed.Title
	}
	feed.Description = parsed.Description

	m.fetcher.UpdateFeedMetadata(feed, resp)
	feed.UpdatedAt = now

	if err := m.store.ReplacePosts(id, parsed.Posts); err != nil {
		return nil, fmt.Errorf("saving posts: %w", err)
	}
	if err := m.saveFetch(feed, meta, now); err != nil {
		return nil, err
	}
	log.Infof("fetched %d posts", len(parsed.Posts))

	return m.cached(feed, false)
}

func (m *Manager) saveFetch(feed *storage.Feed, meta *storage.FetchMetadata, now time.Time) error {
	meta.ETag = feed.ETag
	meta.LastModified = feed.LastModified
	meta.LastFetched = now
	meta.NextFetch = now.Add(m.config.Feeds.RefreshInterval)
	meta.RetryAfter = 0

	if err := m.store.SaveFeed(feed); err != nil {
		return fmt.Errorf("saving feed: %w", err)
	}
	if err := m.store.SaveMetadata(meta); err != nil {
		return fmt.Errorf("saving feed metadata: %w", err)
	}
	return nil
}

func (m *Manager) cached(feed *storage.Feed, stale bool) (*Result, error) {
	posts, err := m.store.GetPosts(feed.ID, m.config.Feeds.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("getting posts: %w", err)
	}
	return &Result{Feed: feed, Posts: posts, Stale: stale}, nil
}

func generateFeedID(url string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(url)))
}
