package feed

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter keeps one token bucket per feed host.
type hostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perSec   float64
}

// newHostLimiter returns a limiter allowing perSec requests per host. A
// non-positive rate disables limiting.
func newHostLimiter(perSec float64) *hostLimiter {
	return &hostLimiter{
		limiters: make(map[string]*rate.Limiter),
		perSec:   perSec,
	}
}

func (h *hostLimiter) Wait(ctx context.Context, rawURL string) error {
	if h.perSec <= 0 {
		return ctx.Err()
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return &url.Error{Op: "parse", URL: rawURL, Err: errors.New("missing host in URL")}
	}

	return h.limiter(u.Host).Wait(ctx)
}

func (h *hostLimiter) limiter(host string) *rate.Limiter {
	h.mu.RLock()
	l, ok := h.limiters[host]
	h.mu.RUnlock()
	if ok {
		return l
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.limiters[host]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(h.perSec), 1)
	h.limiters[host] = l
	return l
}
