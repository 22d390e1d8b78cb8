package preview

import "context"

// Options configures a Widget.
type Options struct {
	ItemsPerPage    int
	Suggestions     []SuggestionSpec
	FilterAttribute string
	Actions         Actions
}

// DefaultSuggestions is the suggestion list used when none is configured.
func DefaultSuggestions() []SuggestionSpec {
	return []SuggestionSpec{{Name: NameSuggester, Max: DefaultSuggestionLimit}}
}

// Widget is the preview-search widget. All methods must be called from a
// single event loop; Fetch and FetchGroup are the only ones safe to run
// elsewhere.
type Widget struct {
	controller *Controller
	resolver   *Resolver
	presenter  *Presenter
	actions    Actions
	open       bool
}

// New builds a widget over capability.
func New(capability Capability, opts Options) *Widget {
	specs := opts.Suggestions
	if len(specs) == 0 {
		specs = DefaultSuggestions()
	}
	return &Widget{
		controller: NewController(),
		resolver:   NewResolver(capability, opts.ItemsPerPage, specs),
		presenter:  NewPresenter(capability, opts.ItemsPerPage, opts.FilterAttribute),
		actions:    opts.Actions,
		open:       true,
	}
}

// Init issues the first query for the empty keyphrase.
func (w *Widget) Init() Ticket {
	return w.resolver.Begin(w.controller.Keyphrase())
}

// KeyUp commits value when it changed and returns the query to run.
func (w *Widget) KeyUp(value string) (Ticket, bool) {
	change, ok := w.controller.KeyUp(value)
	if !ok {
		return Ticket{}, false
	}
	w.open = true
	if w.actions.OnKeyphraseChange != nil {
		w.actions.OnKeyphraseChange(change)
	}
	if change.Keyphrase == "" {
		w.presenter.Reconcile(nil)
	}
	return w.resolver.Begin(change.Keyphrase), true
}

// Focus handles the input regaining focus.
func (w *Widget) Focus() {
	w.open = true
	if w.controller.Focus() {
		w.presenter.Reset()
	}
}

// Submit closes the menu. The keyphrase is kept.
func (w *Widget) Submit() {
	w.open = false
}

// Hover activates key, a group key of the current response or the default
// panel key. The returned ticket, when ok, must be fetched. No triggers are
// rendered while a query is in flight, so hovers then are ignored.
func (w *Widget) Hover(key string) (GroupTicket, bool) {
	if w.resolver.Result().Busy() {
		return GroupTicket{}, false
	}
	if key != DefaultPanelKey && !w.offers(key) {
		return GroupTicket{}, false
	}
	w.open = true
	return w.presenter.Activate(key)
}

// Click selects the item at index of the panel identified by key. Only the
// active panel's list is rendered, so clicks elsewhere or while a list is
// loading are ignored.
func (w *Widget) Click(key string, index int) (Selection, bool) {
	if key != w.presenter.Active() || w.resolver.Result().Busy() {
		return Selection{}, false
	}
	if key != DefaultPanelKey && w.presenter.GroupFetching(key) {
		return Selection{}, false
	}
	items := w.items(key)
	if index < 0 || index >= len(items) {
		return Selection{}, false
	}
	sel := Selection{ID: items[index].ID, Index: index}
	if w.actions.OnItemClick != nil {
		w.actions.OnItemClick(sel)
	}
	return sel, true
}

// Fetch runs a preview ticket.
func (w *Widget) Fetch(ctx context.Context, t Ticket) Completion {
	return w.resolver.Fetch(ctx, t)
}

// FetchGroup runs a group ticket.
func (w *Widget) FetchGroup(ctx context.Context, t GroupTicket) GroupCompletion {
	return w.presenter.FetchGroup(ctx, t)
}

// Complete applies a preview completion and reconciles the active item with
// the groups it offers. Stale completions return false.
func (w *Widget) Complete(c Completion) bool {
	if !w.resolver.Complete(c) {
		return false
	}
	w.presenter.Reconcile(w.Groups())
	return true
}

// CompleteGroup applies a group completion.
func (w *Widget) CompleteGroup(c GroupCompletion) bool {
	return w.presenter.CompleteGroup(c)
}

// Keyphrase returns the committed keyphrase.
func (w *Widget) Keyphrase() string {
	return w.controller.Keyphrase()
}

// Result returns the resolver's latest result.
func (w *Widget) Result() QueryResult {
	return w.resolver.Result()
}

// Active returns the active item key.
func (w *Widget) Active() string {
	return w.presenter.Active()
}

// Groups returns the suggestion groups of the latest result.
func (w *Widget) Groups() []Group {
	return w.presenter.Groups(w.controller.Keyphrase(), w.resolver.Result())
}

// State returns the presenter state, wrapped in Loading while busy.
func (w *Widget) State() State {
	var s State = Idle{}
	if active := w.presenter.Active(); active != DefaultPanelKey {
		s = GroupActive{Key: active}
	}
	if w.resolver.Result().Busy() {
		return Loading{Under: s}
	}
	return s
}

// Menu builds a render snapshot. While busy no panel carries items.
func (w *Widget) Menu() Menu {
	res := w.resolver.Result()
	groups := w.Groups()
	active := w.presenter.Active()
	m := Menu{
		Open:      w.open,
		Loading:   res.Busy(),
		Keyphrase: w.controller.Keyphrase(),
		Active:    active,
		Groups:    groups,
		Err:       res.Err,
	}

	def := Panel{Key: DefaultPanelKey, Active: active == DefaultPanelKey, Loading: m.Loading}
	if def.Active && !m.Loading {
		def.Items = res.Articles()
	}
	m.Panels = append(m.Panels, def)

	for _, g := range groups {
		for i, key := range g.Keys() {
			p := Panel{
				Key:     key,
				GroupID: g.ID,
				Trigger: g.Candidates[i],
				Active:  key == active,
			}
			if p.Active {
				p.Loading = m.Loading || w.presenter.GroupFetching(key)
				p.Err = w.presenter.GroupErr(key)
				if !p.Loading {
					p.Items = w.presenter.GroupItems(key)
				}
			}
			m.Panels = append(m.Panels, p)
		}
	}
	return m
}

func (w *Widget) items(key string) []ResultItem {
	if key == DefaultPanelKey {
		return w.resolver.Result().Articles()
	}
	return w.presenter.GroupItems(key)
}

func (w *Widget) offers(key string) bool {
	for _, g := range w.Groups() {
		for _, k := range g.Keys() {
			if k == key {
				return true
			}
		}
	}
	return false
}
