package tui

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/devportal/internal/content"
	"github.com/pders01/devportal/internal/debuglog"
	"github.com/pders01/devportal/internal/feed"
)

// Page ids the community view is assembled from.
const (
	CommunityPageID = "community"
	MVPPartialID    = "community/mvp"
	mvpPartialName  = "mvpSite"
)

// Section headings.
const (
	sectionLearnMore = "Learn more"
	sectionQuestions = "Latest questions"
	sectionMicroblog = "Microblog"
	sectionSolutions = "Solutions"
)

type entryKind int

const (
	entryPage entryKind = iota
	entrySolution
	entryPost
)

// entry is one selectable row of a portal page.
type entry struct {
	kind     entryKind
	section  string
	title    string
	detail   string
	pageID   string
	solution string
	url      string
}

// feedHandle ties a front-matter handle to the section its posts go in.
type feedHandle struct {
	section string
	handle  string
}

// portalPage is the model behind the solution, solution index and community
// views: a markdown intro followed by selectable entries.
type portalPage struct {
	title    string
	subtitle string
	intro    string
	entries  []entry
	handles  []feedHandle
	cursor   int
	stale    bool
	posts    int
}

func (p *portalPage) selected() (entry, bool) {
	if p.cursor < 0 || p.cursor >= len(p.entries) {
		return entry{}, false
	}
	return p.entries[p.cursor], true
}

func (p *portalPage) move(delta int) {
	if len(p.entries) == 0 {
		p.cursor = 0
		return
	}
	p.cursor = clamp(p.cursor+delta, 0, len(p.entries)-1)
}

func buildSolutionIndex(store *content.Store) portalPage {
	p := portalPage{title: "› solutions", subtitle: "Pick a solution to see its pages and questions"}
	for _, s := range store.Solutions() {
		name := s.Solution
		if name == "" {
			name = s.ID
		}
		p.entries = append(p.entries, entry{
			kind:     entrySolution,
			section:  sectionSolutions,
			title:    s.Title(),
			detail:   oneLine(s.Description),
			pageID:   s.ID,
			solution: name,
		})
	}
	return p
}

func buildSolutionPage(store *content.Store, name, product string) (portalPage, error) {
	tags := content.Tags{Solution: name}
	if product != "" {
		tags.Products = []string{product}
	}
	info, err := store.PageLevelInfo(content.Tags{Solution: name})
	if err != nil {
		return portalPage{}, err
	}

	p := portalPage{
		title:    "› " + info.Title(),
		subtitle: oneLine(info.Description),
		intro:    info.Body,
	}
	if product != "" {
		p.subtitle = strings.TrimSpace(p.subtitle + " • " + product)
	}
	for _, page := range store.TaggedPages(tags) {
		p.entries = append(p.entries, entry{
			kind:    entryPage,
			section: sectionLearnMore,
			title:   page.Title(),
			detail:  oneLine(page.Description),
			pageID:  page.ID,
			url:     page.URL,
		})
	}
	for _, h := range info.StackExchange {
		p.handles = append(p.handles, feedHandle{section: sectionQuestions, handle: h})
	}
	return p, nil
}

func buildCommunityPage(store *content.Store) (portalPage, error) {
	info, err := store.PageInfo(CommunityPageID)
	if err != nil {
		return portalPage{}, err
	}

	p := portalPage{
		title:    "› " + info.Title(),
		subtitle: oneLine(info.Description),
		intro:    info.Body,
	}
	partials, err := store.Partials(map[string]string{mvpPartialName: MVPPartialID})
	switch {
	case err == nil:
		p.intro = strings.TrimSpace(p.intro) + "\n\n" + partials[mvpPartialName]
	case errors.Is(err, content.ErrNotFound):
		debuglog.Warnf("community: %v", err)
	default:
		return portalPage{}, err
	}

	for _, h := range info.Microblog {
		p.handles = append(p.handles, feedHandle{section: sectionMicroblog, handle: h})
	}
	for _, h := range info.StackExchange {
		p.handles = append(p.handles, feedHandle{section: sectionQuestions, handle: h})
	}
	return p, nil
}

func (p *portalPage) handleList() []string {
	out := make([]string, 0, len(p.handles))
	for _, h := range p.handles {
		out = append(out, h.handle)
	}
	return out
}

// addFeeds appends the posts of results, which are in handle order. Nil
// results belong to handles that failed.
func (p *portalPage) addFeeds(results []*feed.Result, limit int) {
	for i, res := range results {
		if res == nil || i >= len(p.handles) {
			continue
		}
		if res.Stale {
			p.stale = true
		}
		for j, post := range res.Posts {
			if limit > 0 && j >= limit {
				break
			}
			p.entries = append(p.entries, entry{
				kind:    entryPost,
				section: p.handles[i].section,
				title:   oneLine(post.Title),
				detail:  postDetail(post.Author, post.Published, post.Tags),
				url:     post.URL,
			})
			p.posts++
		}
	}
}

func postDetail(author string, published time.Time, tags []string) string {
	var parts []string
	if author != "" {
		parts = append(parts, author)
	}
	if !published.IsZero() {
		parts = append(parts, published.Format("Jan 2, 2006"))
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, ", "))
	}
	return strings.Join(parts, " • ")
}

// renderPortal lays the page out and reports the line the selected entry
// starts on.
func renderPortal(p portalPage, introRendered string, width int) (string, int) {
	var b strings.Builder
	b.WriteString(renderHeader(p.title, p.subtitle, width))
	b.WriteString("\n")
	if intro := strings.TrimRight(introRendered, "\n "); intro != "" {
		b.WriteString(intro)
		b.WriteString("\n")
	}

	selectedLine := 0
	section := ""
	for i, e := range p.entries {
		if e.section != section {
			section = e.section
			b.WriteString("\n")
			b.WriteString(TitleStyle.Render(section))
			b.WriteString("\n")
		}
		if i == p.cursor {
			selectedLine = strings.Count(b.String(), "\n")
		}
		b.WriteString(renderEntry(e, width, i == p.cursor))
		b.WriteString("\n")
	}
	if len(p.entries) == 0 {
		b.WriteString("\n")
		b.WriteString(renderMuted(MsgNoResults))
	}
	return b.String(), selectedLine
}

func renderEntry(e entry, width int, selected bool) string {
	marker := "  "
	titleStyle := lipgloss.NewStyle().Foreground(TextColor)
	if selected {
		marker = "› "
		titleStyle = titleStyle.Foreground(PrimaryColor).Bold(true)
	}
	line := marker + titleStyle.Render(truncateEnd(e.title, width-4))
	if e.detail != "" {
		line += "\n    " + renderMuted(truncateEnd(e.detail, width-6))
	}
	return line
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
