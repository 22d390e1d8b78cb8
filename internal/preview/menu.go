package preview

// State is the presenter's tagged state. Loading wraps the state it
// overlays so the selection survives a refresh.
type State interface {
	isState()
}

// Idle means the default panel is active.
type Idle struct{}

// GroupActive means the suggestion identified by Key is expanded.
type GroupActive struct {
	Key string
}

// Loading is shown while the resolver is busy.
type Loading struct {
	Under State
}

func (Idle) isState()        {}
func (GroupActive) isState() {}
func (Loading) isState()     {}

// Panel is one child of the menu: a trigger label and a content slot. Only
// the active panel carries items.
type Panel struct {
	Key     string
	GroupID string
	Trigger string
	Active  bool
	Loading bool
	Items   []ResultItem
	Err     error
}

// Menu is a render snapshot of the widget: a container of mutually
// exclusive panels, the default panel first.
type Menu struct {
	Open      bool
	Loading   bool
	Keyphrase string
	Active    string
	Groups    []Group
	Panels    []Panel
	Err       error
}

// ActivePanel returns the expanded panel. The default panel is always
// present so the lookup cannot miss on a menu built by Widget.
func (m Menu) ActivePanel() Panel {
	for _, p := range m.Panels {
		if p.Active {
			return p
		}
	}
	if len(m.Panels) > 0 {
		return m.Panels[0]
	}
	return Panel{Key: DefaultPanelKey, Active: true}
}

// Panel returns the panel with key.
func (m Menu) Panel(key string) (Panel, bool) {
	for _, p := range m.Panels {
		if p.Key == key {
			return p, true
		}
	}
	return Panel{}, false
}

// Triggers returns the panels that belong to suggestion groups, in render
// order.
func (m Menu) Triggers() []Panel {
	if len(m.Panels) <= 1 {
		return nil
	}
	return m.Panels[1:]
}
