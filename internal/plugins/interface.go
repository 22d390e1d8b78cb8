// Package plugins turns the feed handles found in page front-matter into
// fetchable feed URLs.
package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/pders01/devportal/internal/validation"
)

// SourceURL is the source name of handles that already are feed URLs.
const SourceURL = "url"

// FeedInfo is a resolved feed handle.
type FeedInfo struct {
	// Handle as written in the page front-matter
	Handle string
	// Source is the name of the plugin that resolved the handle
	Source string
	// FeedURL is the RSS or Atom endpoint
	FeedURL string
	// Title is a display title, e.g. "StackExchange: sitecore/xm"
	Title string
	// Metadata carries plugin specific values
	Metadata map[string]string
}

// Plugin resolves one family of handles.
type Plugin interface {
	// Name returns the plugin name for identification
	Name() string

	// CanHandle returns true if this plugin understands the handle
	CanHandle(handle string) bool

	// Resolve maps the handle to its feed
	Resolve(ctx context.Context, handle string) (*FeedInfo, error)

	// Priority returns the priority of this plugin (higher = higher priority)
	// Useful when multiple plugins can handle the same handle
	Priority() int
}

// Registry manages all registered plugins
type Registry struct {
	plugins   []Plugin
	validator *validation.URLValidator
}

// NewRegistry creates a registry. Handles no plugin claims are treated as
// URLs and checked with validator.
func NewRegistry(validator *validation.URLValidator) *Registry {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &Registry{validator: validator}
}

// Register adds a plugin to the registry
func (r *Registry) Register(plugin Plugin) {
	r.plugins = append(r.plugins, plugin)
}

// FindPlugin returns the highest priority plugin that can handle handle.
func (r *Registry) FindPlugin(handle string) Plugin {
	var bestPlugin Plugin
	highestPriority := -1

	for _, plugin := range r.plugins {
		if plugin.CanHandle(handle) && plugin.Priority() > highestPriority {
			bestPlugin = plugin
			highestPriority = plugin.Priority()
		}
	}

	return bestPlugin
}

// Resolve maps a handle to its feed.
func (r *Registry) Resolve(ctx context.Context, handle string) (*FeedInfo, error) {
	handle = strings.TrimSpace(handle)
	if plugin := r.FindPlugin(handle); plugin != nil {
		info, err := plugin.Resolve(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("%s handle %q: %w", plugin.Name(), handle, err)
		}
		info.Handle = handle
		info.Source = plugin.Name()
		return info, nil
	}

	feedURL, err := r.validator.Normalize(handle)
	if err != nil {
		return nil, fmt.Errorf("feed handle %q: %w", handle, err)
	}
	return &FeedInfo{
		Handle:   handle,
		Source:   SourceURL,
		FeedURL:  feedURL,
		Title:    feedURL,
		Metadata: map[string]string{},
	}, nil
}

// ResolveAll resolves every handle, skipping and reporting the ones that
// fail.
func (r *Registry) ResolveAll(ctx context.Context, handles []string) ([]*FeedInfo, []error) {
	var infos []*FeedInfo
	var errs []error
	for _, h := range handles {
		info, err := r.Resolve(ctx, h)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		infos = append(infos, info)
	}
	return infos, errs
}

// ListPlugins returns all registered plugins
func (r *Registry) ListPlugins() []Plugin {
	return append([]Plugin(nil), r.plugins...)
}
