package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/content"
	"github.com/pders01/devportal/internal/debuglog"
	"github.com/pders01/devportal/internal/feed"
	"github.com/pders01/devportal/internal/media"
	"github.com/pders01/devportal/internal/preview"
)

const (
	queryTimeout = 15 * time.Second
	feedTimeout  = 30 * time.Second
	postsPerFeed = 10
)

// FeedSource returns the posts behind front-matter feed handles. Results
// keep the order of handles.
type FeedSource interface {
	Feeds(ctx context.Context, handles []string) ([]*feed.Result, error)
}

// Opener opens a link outside the terminal.
type Opener interface {
	Open(rawURL string) (media.Kind, error)
}

// Options wires the app to its collaborators.
type Options struct {
	Config  *config.Config
	Content *content.Store
	Search  preview.Capability
	Feeds   FeedSource
	Opener  Opener

	// Start is the first view. ViewSolution needs Solution.
	Start    View
	Solution string
	Product  string
}

type readerState struct {
	pageID string
	title  string
	url    string
}

type App struct {
	config     *config.Config
	pages      *content.Store
	feeds      FeedSource
	opener     Opener
	keys       keyMap
	keyHandler *KeyHandler
	ctx        context.Context

	widget         *preview.Widget
	searchInput    textinput.Model
	resultsFocused bool
	itemCursor     int
	debounce       time.Duration
	debounceSeq    uint64

	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	showHelp bool

	view    View
	history []View
	start   Options

	portal        portalPage
	portalIntro   string
	portalLoading bool
	reader        readerState
	readerLoading bool

	status     string
	statusKind StatusKind
	err        error
	spinning   bool

	width           int
	height          int
	renderMu        sync.Mutex
	glamourRenderer *glamour.TermRenderer
	rendererWidth   int
}

func NewApp(opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	ApplyTheme(cfg.UI.Colors)

	si := textinput.New()
	si.Placeholder = "Search the developer portal..."
	si.Prompt = "› "
	si.CharLimit = 256
	si.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	hp := help.New()
	hp.ShowAll = true

	a := &App{
		config:      cfg,
		pages:       opts.Content,
		feeds:       opts.Feeds,
		opener:      opts.Opener,
		keys:        newKeyMap(cfg.Keys.Bindings),
		ctx:         context.Background(),
		searchInput: si,
		debounce:    cfg.Search.Debounce,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		help:        hp,
		view:        ViewSearch,
		start:       opts,
	}
	a.widget = preview.New(opts.Search, preview.Options{
		ItemsPerPage:    cfg.Search.ItemsPerPage,
		Suggestions:     cfg.Search.Suggestions,
		FilterAttribute: cfg.Search.FilterAttribute,
		Actions: preview.Actions{
			OnKeyphraseChange: func(c preview.KeyphraseChange) {
				debuglog.Debugf("keyphrase %q", c.Keyphrase)
			},
			OnItemClick: func(s preview.Selection) {
				debuglog.Debugf("selected %s at %d", s.ID, s.Index)
			},
		},
	})
	a.keyHandler = NewKeyHandler(a, cfg)
	return a
}

// wrapWidth is the markdown wrap width for the current window. It reads the
// window size, so it runs on the event loop and commands get its result.
func (a *App) wrapWidth() int {
	wordWrapWidth := (a.width * 9) / 10
	if hi := a.config.UI.WordWrapMaxWidth; hi > 0 && wordWrapWidth > hi {
		wordWrapWidth = hi
	}
	if lo := a.config.UI.WordWrapMinWidth; lo > 0 && wordWrapWidth < lo {
		wordWrapWidth = lo
	}
	if a.width > 0 && a.width < 50 {
		wordWrapWidth = a.width - 4
		if wordWrapWidth < 20 {
			wordWrapWidth = 20
		}
	}
	return wordWrapWidth
}

// getRenderer returns a glamour renderer for wordWrapWidth. It is rebuilt
// only when the width moves by more than a few columns.
func (a *App) getRenderer(wordWrapWidth int) (*glamour.TermRenderer, error) {
	if a.glamourRenderer == nil || abs(a.rendererWidth-wordWrapWidth) > 10 {
		style := glamour.WithStandardStyle(a.config.UI.MarkdownStyle)
		if a.config.UI.MarkdownStyle == "" || a.config.UI.MarkdownStyle == "auto" {
			style = glamour.WithAutoStyle()
		}
		r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wordWrapWidth))
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wordWrapWidth
	}
	return a.glamourRenderer, nil
}

// renderMarkdown is safe to call from commands. width comes from wrapWidth,
// taken when the command was built.
func (a *App) renderMarkdown(md string, width int) (string, error) {
	a.renderMu.Lock()
	defer a.renderMu.Unlock()
	r, err := a.getRenderer(width)
	if err != nil {
		return "", wrapErr("initializing renderer", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", wrapErr("rendering markdown", err)
	}
	return out, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		a.runQuery(a.widget.Init()),
		textinput.Blink,
	}
	switch a.start.Start {
	case ViewSolution:
		_, cmd := a.openSolution(a.start.Solution, a.start.Product)
		cmds = append(cmds, cmd)
	case ViewSolutions:
		_, cmd := a.openSolutions()
		cmds = append(cmds, cmd)
	case ViewCommunity:
		_, cmd := a.openCommunity()
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.viewport.Width = msg.Width
		a.viewport.Height = a.contentHeight()
		inputWidth := msg.Width - 8
		if inputWidth < 10 {
			inputWidth = msg.Width - 4
		}
		a.searchInput.Width = inputWidth
		a.help.Width = msg.Width
		if isPortalView(a.view) && !a.portalLoading {
			a.refreshPortal()
		}
		return a, nil

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case debounceMsg:
		if msg.seq != a.debounceSeq {
			return a, nil
		}
		return a, a.commitKeyphrase()

	case queryDoneMsg:
		if a.widget.Complete(msg.completion) {
			a.afterQuery()
		}
		return a, nil

	case groupDoneMsg:
		if a.widget.CompleteGroup(msg.completion) {
			a.clampItemCursor()
			if msg.completion.Err != nil && a.view == ViewSearch {
				a.setStatus(wrapErr("suggestion", msg.completion.Err).Error(), StatusError)
			}
		}
		return a, nil

	case spinner.TickMsg:
		if !a.busy() {
			a.spinning = false
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case pageRenderedMsg:
		if a.view == ViewReader && msg.pageID == a.reader.pageID {
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
			a.readerLoading = false
			a.setStatus(a.reader.title, StatusInfo)
		}
		return a, nil

	case portalLoadedMsg:
		if msg.view != a.view || !a.portalLoading {
			return a, nil
		}
		a.portalLoading = false
		a.portal = msg.page
		a.portalIntro = msg.intro
		a.viewport.GotoTop()
		a.refreshPortal()
		switch {
		case msg.feedErr != nil:
			a.setStatus(wrapErr("feeds", msg.feedErr).Error(), StatusWarn)
		case len(msg.page.handles) > 0:
			kind := StatusInfo
			if msg.page.stale {
				kind = StatusWarn
			}
			a.setStatus(MsgFeedSummary(len(msg.page.handles), msg.page.posts, msg.page.stale), kind)
		default:
			a.setStatus("", StatusInfo)
		}
		return a, nil

	case openedMsg:
		a.setStatus(MsgOpened(msg.kind.String(), msg.url), StatusSuccess)
		return a, nil

	case errorMsg:
		a.err = msg.err
		a.readerLoading = false
		a.portalLoading = false
		debuglog.Errorf("%v", msg.err)
		return a, nil
	}

	if a.view == ViewReader {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

// busy reports whether anything the spinner stands for is in flight.
func (a *App) busy() bool {
	menu := a.widget.Menu()
	return menu.Loading || menu.ActivePanel().Loading || a.readerLoading || a.portalLoading
}

// afterQuery reports the finished query in the status bar. Other views own
// the status bar, so queries finishing behind them stay silent.
func (a *App) afterQuery() {
	a.clampItemCursor()
	if a.view != ViewSearch {
		return
	}
	res := a.widget.Result()
	switch {
	case res.Status == preview.StatusFailed:
		a.setStatus(fmt.Sprintf("%s: %v", MsgSearchFailed, res.Err), StatusError)
	case len(res.Articles()) == 0:
		a.setStatus(MsgNoResults, StatusInfo)
	default:
		a.setStatus(MsgResultsCount(len(res.Articles())), StatusInfo)
	}
}

func (a *App) activeItems() []preview.ResultItem {
	return a.widget.Menu().ActivePanel().Items
}

func (a *App) clampItemCursor() {
	n := len(a.activeItems())
	if n == 0 {
		a.itemCursor = 0
		return
	}
	a.itemCursor = clamp(a.itemCursor, 0, n-1)
}

func (a *App) setStatus(msg string, kind StatusKind) {
	a.status = msg
	a.statusKind = kind
	a.err = nil
}

func (a *App) contentHeight() int {
	h := a.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

func isPortalView(v View) bool {
	return v == ViewSolution || v == ViewSolutions || v == ViewCommunity
}

// refreshPortal re-renders the portal page into the viewport and scrolls
// the selected entry into view.
func (a *App) refreshPortal() {
	out, line := renderPortal(a.portal, a.portalIntro, a.width)
	a.viewport.SetContent(out)
	if line < a.viewport.YOffset {
		a.viewport.SetYOffset(line)
	} else if bottom := a.viewport.YOffset + a.viewport.Height - 2; line > bottom {
		a.viewport.SetYOffset(line - a.viewport.Height + 2)
	}
}

func (a *App) View() string {
	var content string
	height := a.contentHeight()

	switch a.view {
	case ViewSearch:
		content = a.searchView(height)
	case ViewReader:
		if a.readerLoading {
			content = renderCentered(a.width, height, a.spinner.View()+" "+MsgLoadingPage)
		} else {
			content = a.viewport.View()
		}
	case ViewSolutions, ViewSolution, ViewCommunity:
		if a.portalLoading {
			msg := MsgLoadingPage
			if len(a.portal.handles) > 0 {
				msg = MsgLoadingFeeds
			}
			content = renderCentered(a.width, height, a.spinner.View()+" "+msg)
		} else {
			content = a.viewport.View()
		}
	}

	if a.showHelp {
		content = lipgloss.JoinVertical(lipgloss.Top, content, a.help.View(a.keys))
	}

	return lipgloss.JoinVertical(lipgloss.Top,
		lipgloss.NewStyle().MaxHeight(height).Render(content),
		renderSeparator(a.width-1),
		a.statusBar(),
	)
}

func (a *App) searchView(height int) string {
	menu := a.widget.Menu()
	width := a.width
	if width <= 0 {
		width = 80
	}

	header := renderHeader(CompactLogo+" search", "", width)
	input := renderInputFrame(a.searchInput.View(), a.searchInput.Focused(), a.searchInput.Width)
	rows := []string{header, input}

	if !menu.Open {
		rows = append(rows, renderHelp("↓ to browse results"))
		return strings.Join(rows, "\n")
	}

	if triggers := renderTriggers(menu, width); triggers != "" {
		rows = append(rows, triggers)
	} else if menu.Keyphrase != "" && !menu.Loading {
		rows = append(rows, renderMuted(MsgNoSuggestions))
	}

	panel := menu.ActivePanel()
	used := lipgloss.Height(strings.Join(rows, "\n")) + 1
	switch {
	case panel.Loading:
		rows = append(rows, "", a.spinner.View()+" "+MsgSearching)
	case panel.Err != nil:
		rows = append(rows, "", StatusErrorStyle.Render("✗ "+panel.Err.Error()))
	case len(panel.Items) == 0 && menu.Keyphrase == "":
		rows = append(rows, renderCentered(width, height-used, GetWelcomeMessage()))
	case len(panel.Items) == 0:
		rows = append(rows, "", renderMuted(MsgNoResults))
	default:
		rows = append(rows, a.renderCards(panel.Items, width, height-used))
	}
	return strings.Join(rows, "\n")
}

// renderCards renders the cards around the cursor that fit in budget lines.
func (a *App) renderCards(items []preview.ResultItem, width, budget int) string {
	cursor := -1
	if a.resultsFocused {
		cursor = a.itemCursor
	}
	cards := make([]string, len(items))
	for i, it := range items {
		cards[i] = renderCard(it, width-2, a.config.UI.DescriptionLimit, i == cursor)
	}

	anchor := clamp(cursor, 0, len(cards)-1)
	first, last := anchor, anchor
	used := lipgloss.Height(cards[anchor]) + 1
	for first > 0 && used+lipgloss.Height(cards[first-1])+1 <= budget {
		first--
		used += lipgloss.Height(cards[first]) + 1
	}
	for last < len(cards)-1 && used+lipgloss.Height(cards[last+1])+1 <= budget {
		last++
		used += lipgloss.Height(cards[last]) + 1
	}
	return "\n" + strings.Join(cards[first:last+1], "\n\n")
}

func (a *App) statusBar() string {
	style := lipgloss.NewStyle().Width(a.width).Padding(0, 1)
	if a.err != nil {
		return style.Render(StatusErrorStyle.Render(fmt.Sprintf("✗ %v", a.err)))
	}

	parts := []string{}
	if a.spinning {
		parts = append(parts, a.spinner.View())
	}
	if a.status != "" {
		parts = append(parts, statusStyle(a.statusKind).Render(a.status))
	}
	if cmds := a.keyHandler.GetHelpForCurrentView(); len(cmds) > 0 {
		parts = append(parts, renderMuted(strings.Join(cmds, " • ")))
	}
	return style.Render(strings.Join(parts, "  "))
}

type debounceMsg struct {
	seq uint64
}

type queryDoneMsg struct {
	completion preview.Completion
}

type groupDoneMsg struct {
	completion preview.GroupCompletion
}

type pageRenderedMsg struct {
	pageID  string
	content string
}

type portalLoadedMsg struct {
	view    View
	page    portalPage
	intro   string
	feedErr error
}

type openedMsg struct {
	kind media.Kind
	url  string
}

type errorMsg struct {
	err error
}
