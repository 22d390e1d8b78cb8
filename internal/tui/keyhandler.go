package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/preview"
	"github.com/pders01/devportal/internal/search"
)

type KeyHandler struct {
	app         *App
	config      *config.Config
	modifierKey string
}

func NewKeyHandler(app *App, cfg *config.Config) *KeyHandler {
	modifierKey := cfg.Keys.Modifier + "+"
	return &KeyHandler{app: app, config: cfg, modifierKey: modifierKey}
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	if model, cmd, handled := kh.handleGlobalKeys(key); handled {
		return model, cmd
	}

	switch kh.app.view {
	case ViewSearch:
		return kh.handleResultsKeys(key)
	case ViewReader:
		return kh.handleReaderKeys(msg)
	case ViewSolutions, ViewSolution, ViewCommunity:
		return kh.handlePortalKeys(key)
	}
	return kh.app, nil
}

func (kh *KeyHandler) isInTextInputMode() bool {
	return kh.app.view == ViewSearch && kh.app.searchInput.Focused()
}

// handleTextInputMode routes keys while the search input has focus. Action
// keys need the modifier here since plain letters are typed.
func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	a := kh.app

	switch key {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		if a.searchInput.Value() != "" {
			a.searchInput.Reset()
			return a, a.scheduleKeyphrase()
		}
		return kh.navigateBack()
	case "enter":
		return kh.submit()
	case "tab", "down":
		return kh.focusResults()
	}

	if strings.HasPrefix(key, kh.modifierKey) {
		if model, cmd, handled := kh.handleGlobalKeys(strings.TrimPrefix(key, kh.modifierKey)); handled {
			return model, cmd
		}
	}
	return kh.delegateToTextInput(msg)
}

// delegateToTextInput passes the key to the input and schedules a keyphrase
// commit when the value changed.
func (kh *KeyHandler) delegateToTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	prev := a.searchInput.Value()
	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	if a.searchInput.Value() == prev {
		return a, cmd
	}
	return a, tea.Batch(cmd, a.scheduleKeyphrase())
}

// submit commits the input right away and closes the menu.
func (kh *KeyHandler) submit() (tea.Model, tea.Cmd) {
	a := kh.app
	a.debounceSeq++
	cmd := a.commitKeyphrase()
	a.widget.Submit()
	return a, cmd
}

func (kh *KeyHandler) focusInput() (tea.Model, tea.Cmd) {
	a := kh.app
	a.resultsFocused = false
	a.itemCursor = 0
	a.widget.Focus()
	return a, a.searchInput.Focus()
}

// focusResults moves focus to the result cards and reopens the menu.
func (kh *KeyHandler) focusResults() (tea.Model, tea.Cmd) {
	a := kh.app
	a.searchInput.Blur()
	a.resultsFocused = true
	a.clampItemCursor()
	if t, ok := a.widget.Hover(a.widget.Active()); ok {
		return a, a.runGroup(t)
	}
	return a, nil
}

func (kh *KeyHandler) handleGlobalKeys(key string) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	keys := a.keys

	switch {
	case matchesKey(key, keys.Quit):
		return a, tea.Quit, true
	case matchesKey(key, keys.Help):
		a.showHelp = !a.showHelp
		return a, nil, true
	case matchesKey(key, keys.Back):
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case matchesKey(key, keys.Search):
		model, cmd := a.openSearch()
		return model, cmd, true
	case matchesKey(key, keys.Solutions):
		model, cmd := a.openSolutions()
		return model, cmd, true
	case matchesKey(key, keys.Community):
		model, cmd := a.openCommunity()
		return model, cmd, true
	}
	return a, nil, false
}

// handleResultsKeys drives the menu while the cards have focus.
func (kh *KeyHandler) handleResultsKeys(key string) (tea.Model, tea.Cmd) {
	a := kh.app
	keys := a.keys

	switch {
	case matchesKey(key, keys.Up):
		if a.itemCursor == 0 {
			return kh.focusInput()
		}
		a.itemCursor--
	case matchesKey(key, keys.Down):
		a.itemCursor++
		a.clampItemCursor()
	case matchesKey(key, keys.Left):
		return kh.cyclePanel(-1)
	case matchesKey(key, keys.Right):
		return kh.cyclePanel(1)
	case matchesKey(key, keys.Select):
		return kh.selectResult(false)
	case matchesKey(key, keys.Open):
		return kh.selectResult(true)
	case key == "i":
		return kh.focusInput()
	}
	return a, nil
}

// cyclePanel hovers the next or previous panel of the menu, the default
// panel included.
func (kh *KeyHandler) cyclePanel(delta int) (tea.Model, tea.Cmd) {
	a := kh.app
	menu := a.widget.Menu()
	if menu.Loading || len(menu.Panels) < 2 {
		return a, nil
	}
	idx := 0
	for i, p := range menu.Panels {
		if p.Key == menu.Active {
			idx = i
			break
		}
	}
	n := len(menu.Panels)
	next := menu.Panels[((idx+delta)%n+n)%n]
	a.itemCursor = 0
	if t, ok := a.widget.Hover(next.Key); ok {
		return a, a.runGroup(t)
	}
	return a, nil
}

// selectResult clicks the card under the cursor. Local pages open in the
// reader unless external is set; everything else goes to the opener.
func (kh *KeyHandler) selectResult(external bool) (tea.Model, tea.Cmd) {
	a := kh.app
	items := a.activeItems()
	sel, ok := a.widget.Click(a.widget.Active(), a.itemCursor)
	if !ok || sel.Index >= len(items) {
		return a, nil
	}
	item := items[sel.Index]

	if !external && item.SourceID == search.SourceContent && a.pages != nil {
		if _, err := a.pages.PageInfo(item.ID); err == nil {
			return a.openPage(item.ID)
		}
	}
	return kh.openItemURL(item)
}

func (kh *KeyHandler) openItemURL(item preview.ResultItem) (tea.Model, tea.Cmd) {
	if item.URL == "" {
		kh.app.setStatus(MsgNothingToOpen, StatusWarn)
		return kh.app, nil
	}
	kh.app.setStatus(MsgOpeningLink, StatusInfo)
	return kh.app, kh.app.openURL(item.URL)
}

func (kh *KeyHandler) handleReaderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	if matchesKey(msg.String(), a.keys.Open) {
		if a.reader.url == "" {
			a.setStatus(MsgNothingToOpen, StatusWarn)
			return a, nil
		}
		return a, a.openURL(a.reader.url)
	}
	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (kh *KeyHandler) handlePortalKeys(key string) (tea.Model, tea.Cmd) {
	a := kh.app
	keys := a.keys
	if a.portalLoading {
		return a, nil
	}

	switch {
	case matchesKey(key, keys.Up):
		a.portal.move(-1)
		a.refreshPortal()
	case matchesKey(key, keys.Down):
		a.portal.move(1)
		a.refreshPortal()
	case matchesKey(key, keys.Refresh):
		return a.reloadPortal()
	case matchesKey(key, keys.Open):
		if e, ok := a.portal.selected(); ok && e.url != "" {
			return a, a.openURL(e.url)
		}
		a.setStatus(MsgNothingToOpen, StatusWarn)
	case matchesKey(key, keys.Select):
		e, ok := a.portal.selected()
		if !ok {
			return a, nil
		}
		switch e.kind {
		case entrySolution:
			return a.openSolution(e.solution, "")
		case entryPage:
			return a.openPage(e.pageID)
		case entryPost:
			if e.url != "" {
				return a, a.openURL(e.url)
			}
		}
	}
	return a, nil
}

// navigateBack returns to the previous view. The search view is the root.
func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	a := kh.app
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}
	if len(a.history) == 0 {
		if a.view == ViewSearch && a.resultsFocused {
			return kh.focusInput()
		}
		return a, nil
	}

	a.view = a.history[len(a.history)-1]
	a.history = a.history[:len(a.history)-1]
	a.err = nil

	switch a.view {
	case ViewSearch:
		a.setStatus(MsgResultsCount(len(a.widget.Result().Articles())), StatusInfo)
		if !a.resultsFocused {
			return a, a.searchInput.Focus()
		}
	case ViewSolutions, ViewSolution, ViewCommunity:
		// The page below was replaced when we navigated away from it.
		return a.reloadPortal()
	}
	return a, nil
}

// GetHelpForCurrentView returns the short hints shown in the status bar.
func (kh *KeyHandler) GetHelpForCurrentView() []string {
	b := kh.config.Keys.Bindings
	switch kh.app.view {
	case ViewSearch:
		if kh.app.searchInput.Focused() {
			return []string{"↓: results", kh.modifierKey + b.Solutions + ": solutions", kh.modifierKey + b.Community + ": community"}
		}
		return []string{"←→: groups", "enter: open", b.Open + ": browser", b.Search + ": search"}
	case ViewReader:
		return []string{b.Open + ": open online", b.Back + ": back"}
	case ViewSolutions:
		return []string{"enter: open", b.Back + ": back"}
	case ViewSolution, ViewCommunity:
		return []string{"enter: open", b.Refresh + ": refresh", b.Back + ": back"}
	default:
		return []string{}
	}
}

func (a *App) pushView(v View) {
	if a.view != v || v == ViewReader || v == ViewSolution {
		a.history = append(a.history, a.view)
	}
	a.view = v
	a.err = nil
	a.showHelp = false
}

func (a *App) openSearch() (tea.Model, tea.Cmd) {
	if a.view != ViewSearch {
		a.pushView(ViewSearch)
	}
	a.resultsFocused = false
	a.widget.Focus()
	return a, tea.Batch(a.searchInput.Focus(), textinput.Blink)
}

func (a *App) openPage(id string) (tea.Model, tea.Cmd) {
	if a.pages == nil {
		return a, func() tea.Msg { return errorMsg{err: fmt.Errorf("no content loaded")} }
	}
	page, err := a.pages.PageInfo(id)
	if err != nil {
		return a, func() tea.Msg { return errorMsg{err: err} }
	}
	a.pushView(ViewReader)
	a.reader = readerState{pageID: page.ID, title: page.Title(), url: page.URL}
	a.readerLoading = true
	a.setStatus(MsgLoadingPage, StatusInfo)
	return a, tea.Batch(a.startSpinner(), a.renderPage(page))
}

func (a *App) openSolutions() (tea.Model, tea.Cmd) {
	if a.pages == nil {
		return a, func() tea.Msg { return errorMsg{err: fmt.Errorf("no content loaded")} }
	}
	a.pushView(ViewSolutions)
	a.portal = buildSolutionIndex(a.pages)
	a.portalIntro = ""
	a.portalLoading = false
	a.viewport.GotoTop()
	a.refreshPortal()
	if len(a.portal.entries) == 0 {
		a.setStatus(MsgNoSolutionPage, StatusWarn)
	} else {
		a.setStatus(MsgResultsCount(len(a.portal.entries)), StatusInfo)
	}
	return a, nil
}

func (a *App) openSolution(name, product string) (tea.Model, tea.Cmd) {
	if a.pages == nil {
		return a, func() tea.Msg { return errorMsg{err: fmt.Errorf("no content loaded")} }
	}
	page, err := buildSolutionPage(a.pages, name, product)
	if err != nil {
		return a, func() tea.Msg { return errorMsg{err: err} }
	}
	a.pushView(ViewSolution)
	a.start.Solution, a.start.Product = name, product
	return a.beginPortal(ViewSolution, page)
}

func (a *App) openCommunity() (tea.Model, tea.Cmd) {
	if a.pages == nil {
		return a, func() tea.Msg { return errorMsg{err: fmt.Errorf("no content loaded")} }
	}
	page, err := buildCommunityPage(a.pages)
	if err != nil {
		return a, func() tea.Msg { return errorMsg{err: err} }
	}
	a.pushView(ViewCommunity)
	return a.beginPortal(ViewCommunity, page)
}

func (a *App) beginPortal(view View, page portalPage) (tea.Model, tea.Cmd) {
	a.portal = page
	a.portalIntro = ""
	a.portalLoading = true
	a.setStatus(MsgLoadingFeeds, StatusInfo)
	return a, tea.Batch(a.startSpinner(), a.loadPortal(view, page))
}

// reloadPortal rebuilds the current portal view from the content store.
func (a *App) reloadPortal() (tea.Model, tea.Cmd) {
	var (
		page portalPage
		err  error
	)
	switch a.view {
	case ViewSolutions:
		a.portal = buildSolutionIndex(a.pages)
		a.refreshPortal()
		return a, nil
	case ViewSolution:
		page, err = buildSolutionPage(a.pages, a.start.Solution, a.start.Product)
	case ViewCommunity:
		page, err = buildCommunityPage(a.pages)
	default:
		return a, nil
	}
	if err != nil {
		return a, func() tea.Msg { return errorMsg{err: err} }
	}
	return a.beginPortal(a.view, page)
}
