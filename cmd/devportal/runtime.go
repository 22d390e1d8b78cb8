package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/content"
	"github.com/pders01/devportal/internal/debuglog"
	"github.com/pders01/devportal/internal/feed"
	"github.com/pders01/devportal/internal/preview"
	"github.com/pders01/devportal/internal/search"
	"github.com/pders01/devportal/internal/storage"
	"github.com/pders01/devportal/internal/validation"
)

const redisPingTimeout = 2 * time.Second

// runtime holds the collaborators every command builds on.
type runtime struct {
	cfg     *config.Config
	pages   *content.Store
	store   *storage.Store
	backend search.Backend
	search  preview.Capability
	cached  *search.Cached
	feeds   *feed.Manager

	closers []func() error
}

// openRuntime loads the content, opens the database and the search backend
// and puts the configured query cache in front of it.
func openRuntime(ctx context.Context, c *config.Config) (_ *runtime, err error) {
	rt := &runtime{cfg: c}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	if c.Content.Dir == "" {
		return nil, fmt.Errorf("%w: content.dir is not set", config.ErrInvalidConfig)
	}
	rt.pages, err = content.Load(c.Content.Dir)
	if err != nil {
		return nil, err
	}

	path, err := databasePath(c.Database.Path)
	if err != nil {
		return nil, err
	}
	rt.store, err = storage.NewStore(path)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.store.Close)

	if c.Search.Backend == config.BackendBleve {
		if _, err := validation.EnsureDirectory(filepath.Dir(c.Search.IndexPath)); err != nil {
			return nil, fmt.Errorf("index directory: %w", err)
		}
	}
	rt.backend, err = search.Open(c)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.backend.Close)
	rt.search = rt.cachedCapability(ctx)
	if err := rt.ensureIndexed(ctx); err != nil {
		return nil, err
	}

	rt.feeds = feed.NewManager(rt.store, feed.NewRegistry(c), c)
	return rt, nil
}

func databasePath(p string) (string, error) {
	if p == "" {
		dir, err := validation.DataDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(dir, "devportal.db")
	}
	return validation.FilePath(p)
}

// ensureIndexed fills an empty local index. The remote backend is only
// written by the index command.
func (rt *runtime) ensureIndexed(ctx context.Context) error {
	if rt.cfg.Search.Backend == config.BackendMeilisearch {
		return nil
	}
	n, err := rt.backend.DocCount(ctx)
	if err != nil {
		return err
	}
	if n > 0 && rt.cfg.Search.Backend != config.BackendMemory {
		return nil
	}
	_, err = rt.reindex(ctx)
	return err
}

// reindex replaces the indexed documents with the current pages and drops
// the cached responses of the old index.
func (rt *runtime) reindex(ctx context.Context) (int, error) {
	docs := search.Documents(rt.pages)
	if err := rt.backend.Index(ctx, docs); err != nil {
		return 0, fmt.Errorf("indexing: %w", err)
	}
	if rt.cached != nil {
		if err := rt.cached.Invalidate(ctx); err != nil {
			return 0, err
		}
	}
	debuglog.WithFields(map[string]any{"documents": len(docs), "backend": rt.cfg.Search.Backend}).Infof("index updated")
	return len(docs), nil
}

// cachedCapability wraps the backend in the configured query cache. An
// unreachable redis falls back to no cache.
func (rt *runtime) cachedCapability(ctx context.Context) preview.Capability {
	c := rt.cfg.Cache
	switch c.Backend {
	case config.CacheBolt:
		cache := rt.store.QueryCache()
		if n, err := cache.Purge(); err != nil {
			debuglog.Warnf("cache: purge failed: %v", err)
		} else if n > 0 {
			debuglog.Debugf("cache: purged %d expired entries", n)
		}
		rt.cached = search.NewCached(rt.backend, cache, c.TTL)
		return rt.cached

	case config.CacheRedis:
		cache := storage.NewRedisCache(c.RedisAddr, c.RedisPrefix)
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := cache.Ping(pingCtx); err != nil {
			debuglog.Warnf("cache: redis at %s unavailable, running uncached: %v", c.RedisAddr, err)
			_ = cache.Close()
			return rt.backend
		}
		rt.closers = append(rt.closers, cache.Close)
		rt.cached = search.NewCached(rt.backend, cache, c.TTL)
		return rt.cached

	default:
		return rt.backend
	}
}

// handles returns every feed handle referenced by a page.
func (rt *runtime) handles() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range rt.pages.Pages() {
		for _, list := range [][]string{p.StackExchange, p.Microblog} {
			for _, h := range list {
				if !seen[h] {
					seen[h] = true
					out = append(out, h)
				}
			}
		}
	}
	return out
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
