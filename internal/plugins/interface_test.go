package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/devportal/internal/validation"
)

// mockPlugin is a test plugin for testing the registry
type mockPlugin struct {
	name      string
	priority  int
	canHandle func(string) bool
	resolve   func(context.Context, string) (*FeedInfo, error)
}

func (p *mockPlugin) Name() string {
	return p.name
}

func (p *mockPlugin) CanHandle(handle string) bool {
	if p.canHandle != nil {
		return p.canHandle(handle)
	}
	return false
}

func (p *mockPlugin) Resolve(ctx context.Context, handle string) (*FeedInfo, error) {
	if p.resolve != nil {
		return p.resolve(ctx, handle)
	}
	return &FeedInfo{FeedURL: "https://feeds.example.org/" + handle, Title: "Mock Feed"}, nil
}

func (p *mockPlugin) Priority() int {
	return p.priority
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry(nil)

	assert.NotNil(t, registry)
	assert.Empty(t, registry.plugins)
	assert.NotNil(t, registry.validator)
}

func TestRegistry_FindPlugin(t *testing.T) {
	registry := NewRegistry(nil)
	is := func(want string) func(string) bool {
		return func(h string) bool { return h == want }
	}

	low := &mockPlugin{name: "low-priority", priority: 10, canHandle: is("forum:go")}
	high := &mockPlugin{name: "high-priority", priority: 100, canHandle: is("forum:go")}
	other := &mockPlugin{name: "other", priority: 200, canHandle: is("@dev@host")}

	registry.Register(low)
	registry.Register(high)
	registry.Register(other)

	t.Run("finds highest priority plugin", func(t *testing.T) {
		assert.Equal(t, high, registry.FindPlugin("forum:go"))
	})

	t.Run("finds specific plugin", func(t *testing.T) {
		assert.Equal(t, other, registry.FindPlugin("@dev@host"))
	})

	t.Run("returns nil for no matching plugin", func(t *testing.T) {
		assert.Nil(t, registry.FindPlugin("nothing"))
	})
}

func TestRegistry_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("with matching plugin", func(t *testing.T) {
		registry := NewRegistry(nil)
		registry.Register(&mockPlugin{
			name:      "forum",
			priority:  50,
			canHandle: func(h string) bool { return h == "forum:go" },
		})

		info, err := registry.Resolve(ctx, "  forum:go ")
		require.NoError(t, err)
		assert.Equal(t, "forum:go", info.Handle)
		assert.Equal(t, "forum", info.Source)
		assert.Equal(t, "https://feeds.example.org/forum:go", info.FeedURL)
	})

	t.Run("plugin error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		registry := NewRegistry(nil)
		registry.Register(&mockPlugin{
			name:      "forum",
			canHandle: func(string) bool { return true },
			resolve:   func(context.Context, string) (*FeedInfo, error) { return nil, boom },
		})

		_, err := registry.Resolve(ctx, "forum:go")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("url passthrough", func(t *testing.T) {
		registry := NewRegistry(nil)

		info, err := registry.Resolve(ctx, "blog.example.org/feed.xml")
		require.NoError(t, err)
		assert.Equal(t, SourceURL, info.Source)
		assert.Equal(t, "https://blog.example.org/feed.xml", info.FeedURL)
		assert.NotNil(t, info.Metadata)
	})

	t.Run("invalid url", func(t *testing.T) {
		registry := NewRegistry(nil)

		_, err := registry.Resolve(ctx, "http://127.0.0.1/feed")
		assert.ErrorIs(t, err, validation.ErrInvalidURL)
	})

	t.Run("permissive validator", func(t *testing.T) {
		registry := NewRegistry(validation.NewPermissiveURLValidator())

		_, err := registry.Resolve(ctx, "http://127.0.0.1/feed")
		assert.NoError(t, err)
	})
}

func TestRegistry_ResolveAll(t *testing.T) {
	registry := NewRegistry(nil)

	infos, errs := registry.ResolveAll(context.Background(), []string{
		"https://a.example.org/rss",
		"http://localhost/rss",
		"https://b.example.org/atom",
	})
	require.Len(t, infos, 2)
	assert.Len(t, errs, 1)
	assert.Equal(t, "https://b.example.org/atom", infos[1].FeedURL)
}

func TestRegistry_ListPlugins(t *testing.T) {
	registry := NewRegistry(nil)

	plugin1 := &mockPlugin{name: "plugin1", priority: 10}
	plugin2 := &mockPlugin{name: "plugin2", priority: 20}

	registry.Register(plugin1)
	registry.Register(plugin2)

	plugins := registry.ListPlugins()

	assert.Equal(t, 2, len(plugins))
	assert.Contains(t, plugins, plugin1)
	assert.Contains(t, plugins, plugin2)

	// Verify it returns a copy (modifying returned slice doesn't affect registry)
	plugins[0] = nil
	assert.Equal(t, 2, len(registry.plugins))
	assert.NotNil(t, registry.plugins[0])
}
