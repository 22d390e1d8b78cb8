package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pders01/devportal/internal/plugins"
)

// Microblog resolves fediverse handles of the form @user@host to the
// account's public RSS feed.
type Microblog struct{}

func NewMicroblog() *Microblog {
	return &Microblog{}
}

func (p *Microblog) Name() string {
	return "microblog"
}

func (p *Microblog) CanHandle(handle string) bool {
	return strings.HasPrefix(handle, "@") && strings.Count(handle, "@") == 2
}

func (p *Microblog) Priority() int {
	return 60
}

func (p *Microblog) Resolve(_ context.Context, handle string) (*plugins.FeedInfo, error) {
	user, host, ok := strings.Cut(strings.TrimPrefix(handle, "@"), "@")
	if !ok || user == "" || host == "" || strings.ContainsAny(user+host, "/?# ") {
		return nil, fmt.Errorf("%w: want @user@host", ErrBadHandle)
	}
	host = strings.ToLower(host)

	u := url.URL{Scheme: "https", Host: host, Path: "/@" + user + ".rss"}
	return &plugins.FeedInfo{
		FeedURL: u.String(),
		Title:   "@" + user + "@" + host,
		Metadata: map[string]string{
			"user": user,
			"host": host,
		},
	}, nil
}

// Register adds every built-in source to r.
func Register(r *plugins.Registry) {
	r.Register(NewStackExchange())
	r.Register(NewMicroblog())
}
