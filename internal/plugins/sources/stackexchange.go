// Package sources holds the built-in feed handle plugins.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pders01/devportal/internal/plugins"
)

// ErrBadHandle is returned for handles a plugin claims but cannot parse.
var ErrBadHandle = errors.New("malformed handle")

var siteName = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Sites that live on their own domain instead of *.stackexchange.com.
var ownDomain = map[string]string{
	"stackoverflow": "stackoverflow.com",
	"serverfault":   "serverfault.com",
	"superuser":     "superuser.com",
	"askubuntu":     "askubuntu.com",
	"mathoverflow":  "mathoverflow.net",
}

// StackExchange resolves "site:tag" and "site" handles to question feeds.
type StackExchange struct{}

func NewStackExchange() *StackExchange {
	return &StackExchange{}
}

func (p *StackExchange) Name() string {
	return "stackexchange"
}

func (p *StackExchange) CanHandle(handle string) bool {
	if strings.Contains(handle, "://") || strings.HasPrefix(handle, "@") {
		return false
	}
	site, _, _ := strings.Cut(handle, ":")
	return siteName.MatchString(strings.ToLower(site))
}

func (p *StackExchange) Priority() int {
	return 50
}

func (p *StackExchange) Resolve(_ context.Context, handle string) (*plugins.FeedInfo, error) {
	site, tag, hasTag := strings.Cut(handle, ":")
	site = strings.ToLower(strings.TrimSpace(site))
	tag = strings.TrimSpace(tag)
	if hasTag && tag == "" {
		return nil, fmt.Errorf("%w: empty tag", ErrBadHandle)
	}

	host, ok := ownDomain[site]
	if !ok {
		host = site + ".stackexchange.com"
	}

	u := url.URL{Scheme: "https", Host: host, Path: "/feeds"}
	title := "StackExchange: " + site
	if hasTag {
		u.Path = "/feeds/tag/" + tag
		u.RawPath = "/feeds/tag/" + url.PathEscape(tag)
		title += "/" + tag
	}

	return &plugins.FeedInfo{
		FeedURL: u.String(),
		Title:   title,
		Metadata: map[string]string{
			"site": site,
			"tag":  tag,
		},
	}, nil
}
