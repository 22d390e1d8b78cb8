package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePage(t *testing.T, dir, rel, data string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
}

func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePage(t, dir, "xm/index.md", `---
prettyName: Experience Manager
description: Build digital experiences.
solution: xm
products: [xm]
type: solution
stackexchange:
  - sitecore:xm
---
# Experience Manager
`)
	writePage(t, dir, "xm/proxy.md", `---
prettyName: Proxy configuration
description: Route requests through a proxy.
solution: xm
product: proxy
---
Configure the proxy.
`)
	writePage(t, dir, "xm/analytics.md", `---
prettyName: analytics
solution: xm
products: [tracking]
---
Body.
`)
	writePage(t, dir, "community/mvp.md", "# MVP program\n\nJoin us.\n")
	writePage(t, dir, "community/index.md", `---
id: community
prettyName: Community
microblog: ["@devportal@fosstodon.org"]
---
Welcome.
`)
	writePage(t, dir, ".drafts/hidden.md", "# Hidden\n")
	writePage(t, dir, "notes.txt", "ignored")
	return dir
}

func TestParsePage(t *testing.T) {
	p, err := ParsePage("guides/start.md", []byte("---\nprettyName: Start\ntype: Video\n---\n\n# Ignored heading\nBody\n"))
	require.NoError(t, err)
	assert.Equal(t, "guides/start", p.ID)
	assert.Equal(t, "Start", p.PrettyName)
	assert.Equal(t, TypeVideo, p.Type)
	assert.Equal(t, "# Ignored heading\nBody\n", p.Body)
}

func TestParsePageWithoutFrontMatter(t *testing.T) {
	p, err := ParsePage("faq.md", []byte("Intro\n\n# Frequently asked\n"))
	require.NoError(t, err)
	assert.Equal(t, "faq", p.ID)
	assert.Equal(t, "Frequently asked", p.PrettyName)
	assert.Equal(t, "Frequently asked", p.Title())
}

func TestParsePageUnterminatedFrontMatter(t *testing.T) {
	p, err := ParsePage("odd.md", []byte("---\nprettyName: Odd\n"))
	require.NoError(t, err)
	assert.Contains(t, p.Body, "prettyName: Odd")
	assert.Equal(t, "odd", p.Title())
}

func TestParsePageInvalidYAML(t *testing.T) {
	_, err := ParsePage("bad.md", []byte("---\nproducts: [unclosed\n---\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	s, err := Load(fixture(t))
	require.NoError(t, err)

	ids := make([]string, 0)
	for _, p := range s.Pages() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"community", "community/mvp", "xm/analytics", "xm/index", "xm/proxy"}, ids)
	assert.Equal(t, 5, s.Len())
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestTaggedPages(t *testing.T) {
	s, err := Load(fixture(t))
	require.NoError(t, err)

	pages := s.TaggedPages(Tags{Solution: "xm"})
	require.Len(t, pages, 2)
	assert.Equal(t, "analytics", pages[0].PrettyName, "sorted case-insensitively")
	assert.Equal(t, "Proxy configuration", pages[1].PrettyName)

	pages = s.TaggedPages(Tags{Solution: "xm", Products: []string{"proxy"}})
	require.Len(t, pages, 1)
	assert.Equal(t, "xm/proxy", pages[0].ID)

	assert.Empty(t, s.TaggedPages(Tags{Solution: "cdp"}))
}

func TestPageLevelInfo(t *testing.T) {
	s, err := Load(fixture(t))
	require.NoError(t, err)

	p, err := s.PageLevelInfo(Tags{Solution: "xm", Products: []string{"xm"}})
	require.NoError(t, err)
	assert.Equal(t, "Experience Manager", p.PrettyName)
	assert.Equal(t, []string{"sitecore:xm"}, p.StackExchange)

	_, err = s.PageLevelInfo(Tags{Solution: "cdp"})
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.Len(t, s.Solutions(), 1)
}

func TestPartials(t *testing.T) {
	s, err := Load(fixture(t))
	require.NoError(t, err)

	partials, err := s.Partials(map[string]string{"mvpSite": "community/mvp"})
	require.NoError(t, err)
	assert.Contains(t, partials["mvpSite"], "Join us.")

	_, err = s.Partials(map[string]string{"missing": "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPageInfo(t *testing.T) {
	s, err := Load(fixture(t))
	require.NoError(t, err)

	p, err := s.PageInfo("/community/")
	require.NoError(t, err)
	assert.Equal(t, []string{"@devportal@fosstodon.org"}, p.Microblog)
}

func TestWatchReloads(t *testing.T) {
	dir := fixture(t)
	s, err := Load(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan error, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, 20*time.Millisecond, func(err error) { reloaded <- err })
	}()

	// Give the watcher time to register the tree.
	time.Sleep(100 * time.Millisecond)
	writePage(t, dir, "xm/new.md", "---\nprettyName: New page\nsolution: xm\n---\n")

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}

	_, err = s.PageInfo("xm/new")
	assert.NoError(t, err)

	cancel()
	assert.NoError(t, <-done)
}
