package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pders01/devportal/internal/debuglog"
	"github.com/pders01/devportal/internal/preview"
	"github.com/pders01/devportal/internal/storage"
)

// Cached wraps a capability with a response cache. Identical requests in
// flight share one call. Cache errors are logged and never fail a query.
type Cached struct {
	next   preview.Capability
	cache  storage.Cache
	ttl    time.Duration
	flight singleflight.Group
}

func NewCached(next preview.Capability, cache storage.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl}
}

// Invalidate drops every cached response. It is called after the index
// changes.
func (c *Cached) Invalidate(ctx context.Context) error {
	if err := c.cache.Clear(ctx); err != nil {
		return fmt.Errorf("invalidating search cache: %w", err)
	}
	return nil
}

func (c *Cached) Preview(ctx context.Context, req preview.Request) (*preview.Response, error) {
	return c.do(ctx, "preview", req, func(ctx context.Context) (*preview.Response, error) {
		return c.next.Preview(ctx, req)
	})
}

func (c *Cached) Suggestion(ctx context.Context, req preview.SuggestionRequest) (*preview.Response, error) {
	return c.do(ctx, "suggestion", req, func(ctx context.Context) (*preview.Response, error) {
		return c.next.Suggestion(ctx, req)
	})
}

func (c *Cached) do(ctx context.Context, kind string, req any, call func(context.Context) (*preview.Response, error)) (*preview.Response, error) {
	key, err := cacheKey(kind, req)
	if err != nil {
		return nil, err
	}
	log := debuglog.WithFields(map[string]any{"kind": kind, "key": key[len(kind)+1:][:12]})

	if data, ok, err := c.cache.Get(ctx, key); err != nil {
		log.Warnf("search cache get: %v", err)
	} else if ok {
		var resp preview.Response
		if err := json.Unmarshal(data, &resp); err == nil {
			log.Debugf("search cache hit")
			return &resp, nil
		}
		log.Warnf("search cache: dropping undecodable entry")
	}

	v, err, shared := c.flight.Do(key, func() (any, error) {
		resp, err := call(ctx)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, preview.ErrNilResponse
		}
		if data, err := json.Marshal(resp); err == nil {
			if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
				log.Warnf("search cache set: %v", err)
			}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debugf("search call shared")
	}
	return v.(*preview.Response), nil
}

func cacheKey(kind string, req any) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return kind + ":" + hex.EncodeToString(sum[:]), nil
}
