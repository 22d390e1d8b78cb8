package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/pders01/devportal/internal/config"
)

// keyMap holds the configurable action keys. Navigation keys are fixed.
type keyMap struct {
	Quit      key.Binding
	Search    key.Binding
	Solutions key.Binding
	Community key.Binding
	Refresh   key.Binding
	Open      key.Binding
	Back      key.Binding
	Help      key.Binding

	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Select key.Binding
}

func newKeyMap(cfg config.KeyBindings) keyMap {
	bind := func(k, desc string, extra ...string) key.Binding {
		keys := append([]string{}, extra...)
		if k != "" {
			keys = append([]string{k}, keys...)
		}
		return key.NewBinding(key.WithKeys(keys...), key.WithHelp(k, desc))
	}
	return keyMap{
		Quit:      bind(cfg.Quit, "quit", "ctrl+c"),
		Search:    bind(cfg.Search, "search"),
		Solutions: bind(cfg.Solutions, "solutions"),
		Community: bind(cfg.Community, "community"),
		Refresh:   bind(cfg.Refresh, "refresh"),
		Open:      bind(cfg.Open, "open link"),
		Back:      bind(cfg.Back, "back"),
		Help:      bind(cfg.Help, "help"),

		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:   key.NewBinding(key.WithKeys("left", "h", "shift+tab"), key.WithHelp("←/h", "prev group")),
		Right:  key.NewBinding(key.WithKeys("right", "l", "tab"), key.WithHelp("→/l", "next group")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Solutions, k.Community, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.Select},
		{k.Search, k.Solutions, k.Community, k.Refresh},
		{k.Open, k.Back, k.Help, k.Quit},
	}
}

// matchesKey reports whether the key string k triggers b.
func matchesKey(k string, b key.Binding) bool {
	if !b.Enabled() {
		return false
	}
	for _, bk := range b.Keys() {
		if bk == k {
			return true
		}
	}
	return false
}
