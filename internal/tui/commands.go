package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/devportal/internal/content"
	"github.com/pders01/devportal/internal/preview"
)

// startSpinner starts the spinner unless it is already ticking.
func (a *App) startSpinner() tea.Cmd {
	if a.spinning {
		return nil
	}
	a.spinning = true
	return a.spinner.Tick
}

func (a *App) runQuery(t preview.Ticket) tea.Cmd {
	w := a.widget
	ctx := a.ctx
	return tea.Batch(a.startSpinner(), func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		return queryDoneMsg{completion: w.Fetch(ctx, t)}
	})
}

func (a *App) runGroup(t preview.GroupTicket) tea.Cmd {
	w := a.widget
	ctx := a.ctx
	return tea.Batch(a.startSpinner(), func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		return groupDoneMsg{completion: w.FetchGroup(ctx, t)}
	})
}

// scheduleKeyphrase commits the input after the debounce delay. Every call
// invalidates the ticks scheduled before it.
func (a *App) scheduleKeyphrase() tea.Cmd {
	a.debounceSeq++
	if a.debounce <= 0 {
		return a.commitKeyphrase()
	}
	seq := a.debounceSeq
	return tea.Tick(a.debounce, func(time.Time) tea.Msg { return debounceMsg{seq: seq} })
}

// commitKeyphrase hands the sanitized input to the widget and runs the
// query it asks for.
func (a *App) commitKeyphrase() tea.Cmd {
	t, ok := a.widget.KeyUp(sanitizeSearchInput(a.searchInput.Value()))
	if !ok {
		return nil
	}
	a.itemCursor = 0
	return a.runQuery(t)
}

func (a *App) renderPage(page *content.Page) tea.Cmd {
	width := a.wrapWidth()
	return func() tea.Msg {
		var md strings.Builder
		fmt.Fprintf(&md, "# %s\n\n", page.Title())
		if page.Description != "" {
			fmt.Fprintf(&md, "*%s*\n\n", oneLine(page.Description))
		}
		if page.URL != "" {
			fmt.Fprintf(&md, "[Open online](%s)\n\n", page.URL)
		}
		md.WriteString("---\n\n")
		md.WriteString(page.Body)

		rendered, err := a.renderMarkdown(md.String(), width)
		if err != nil {
			// Always answer with pageRenderedMsg so the loading flag clears.
			rendered = fmt.Sprintf("Failed to render page: %v\n\n%s", err, page.Body)
		}
		return pageRenderedMsg{pageID: page.ID, content: rendered}
	}
}

// loadPortal fetches the feeds of page and renders its intro.
func (a *App) loadPortal(view View, page portalPage) tea.Cmd {
	feeds := a.feeds
	ctx := a.ctx
	width := a.wrapWidth()
	return func() tea.Msg {
		msg := portalLoadedMsg{view: view, page: page}
		if handles := page.handleList(); len(handles) > 0 && feeds != nil {
			ctx, cancel := context.WithTimeout(ctx, feedTimeout)
			defer cancel()
			results, err := feeds.Feeds(ctx, handles)
			msg.page.addFeeds(results, postsPerFeed)
			msg.feedErr = err
		}
		if strings.TrimSpace(page.intro) != "" {
			intro, err := a.renderMarkdown(page.intro, width)
			if err != nil {
				return errorMsg{err: err}
			}
			msg.intro = intro
		}
		return msg
	}
}

func (a *App) openURL(url string) tea.Cmd {
	opener := a.opener
	return func() tea.Msg {
		if opener == nil {
			return errorMsg{err: fmt.Errorf("no opener configured")}
		}
		kind, err := opener.Open(url)
		if err != nil {
			return errorMsg{err: wrapErr("failed to open "+url, err)}
		}
		return openedMsg{kind: kind, url: url}
	}
}

// sanitizeSearchInput limits the keyphrase length and collapses whitespace.
func sanitizeSearchInput(input string) string {
	input = oneLine(input)
	if r := []rune(input); len(r) > 256 {
		input = strings.TrimSpace(string(r[:256]))
	}
	return input
}
