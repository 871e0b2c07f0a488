package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/views/item"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/views/items"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/views/sidebar"
)

// DefaultRefreshInterval is how often the active view is reloaded so
// plugin side bar updates show up. Item changes of the open type
// arrive through a change subscription instead.
const DefaultRefreshInterval = 2 * time.Second

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	styles    *styles.Styles
	keys      *keymap.KeyMap
	statusBar *status.Bar

	sideBarView *sidebar.View
	itemsView   *items.View
	itemView    *item.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// previousView is restored when help is closed.
	previousView messages.ViewType

	// refreshInterval is zero when periodic refresh is disabled.
	refreshInterval time.Duration

	// watcher observes the open type while the items or item view is up.
	watcher *changeWatch

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	keys := keymap.DefaultKeyMap()
	return &App{
		ports:           ports,
		ctx:             context.Background(),
		styles:          s,
		keys:            keys,
		statusBar:       status.NewBar(s, keys),
		sideBarView:     sidebar.NewView(s, ports.Types, ports.Plugins),
		itemsView:       items.NewView(s, ports.Types, ports.Items),
		itemView:        item.NewView(s, ports.Items),
		currentView:     messages.ViewSideBar,
		refreshInterval: DefaultRefreshInterval,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.itemsView.WithContext(ctx)
	a.itemView.WithContext(ctx)
	return a
}

// WithRefreshInterval sets the periodic refresh. Zero disables it.
func (a *App) WithRefreshInterval(d time.Duration) *App {
	a.refreshInterval = d
	return a
}

// Init implements tea.Model.
// It runs initial commands when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("raindrop"),
		a.sideBarView.Init(),
		a.scheduleRefresh(),
	)
}

func (a *App) scheduleRefresh() tea.Cmd {
	if a.refreshInterval <= 0 {
		return nil
	}
	return tea.Tick(a.refreshInterval, func(time.Time) tea.Msg {
		return messages.RefreshTick{}
	})
}

// Update implements tea.Model.
// It handles messages and updates the model state.
//
//nolint:gocyclo // central message handler requires complexity
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	defer a.syncStatus()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.SideBarLoaded:
		a.sideBarView, cmd = a.sideBarView.Update(msg)
		return a, cmd

	case messages.TypeSelected:
		a.err = nil
		a.currentView = messages.ViewItems
		return a, tea.Batch(a.itemsView.SetType(msg.TypeID), a.watch(msg.TypeID))

	case messages.ItemsLoaded:
		a.itemsView, cmd = a.itemsView.Update(msg)
		return a, cmd

	case messages.ItemSelected:
		a.err = nil
		a.currentView = messages.ViewItem
		return a, a.itemView.SetItem(msg.Item)

	case messages.ItemLoaded:
		a.itemView, cmd = a.itemView.Update(msg)
		return a, cmd

	case messages.ViewChanged:
		a.err = nil
		a.currentView = msg.View
		switch msg.View {
		case messages.ViewSideBar:
			a.unwatch()
			return a, a.sideBarView.Load()
		case messages.ViewItems:
			return a, a.itemsView.Load()
		case messages.ViewItem, messages.ViewHelp:
		}
		return a, nil

	case messages.RefreshTick:
		return a, tea.Batch(a.reload(), a.scheduleRefresh())

	case messages.ItemsChanged:
		return a, a.handleChange(msg)

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, nil

	case messages.Quit:
		a.unwatch()
		return a, tea.Quit
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch k := msg.String(); {
	case k == "ctrl+c":
		a.unwatch()
		return a, tea.Quit
	case keymap.Matches(k, a.keys.Help):
		if a.currentView == messages.ViewHelp {
			a.currentView = a.previousView
		} else {
			a.previousView = a.currentView
			a.currentView = messages.ViewHelp
		}
		return a, nil
	}

	switch a.currentView {
	case messages.ViewSideBar:
		a.sideBarView, cmd = a.sideBarView.Update(msg)
	case messages.ViewItems:
		a.itemsView, cmd = a.itemsView.Update(msg)
	case messages.ViewItem:
		a.itemView, cmd = a.itemView.Update(msg)
	case messages.ViewHelp:
		switch k := msg.String(); {
		case keymap.Matches(k, a.keys.Back):
			a.currentView = a.previousView
		case keymap.Matches(k, a.keys.Quit):
			a.unwatch()
			return a, tea.Quit
		}
	}
	return a, cmd
}

// reload returns the load command of the active view.
func (a *App) reload() tea.Cmd {
	switch a.currentView {
	case messages.ViewSideBar:
		return a.sideBarView.Load()
	case messages.ViewItems:
		return a.itemsView.Load()
	case messages.ViewItem:
		return a.itemView.Load()
	case messages.ViewHelp:
	}
	return nil
}

func (a *App) syncStatus() {
	a.statusBar.Clear()
	if a.err != nil {
		a.statusBar.SetState(status.StateError)
		a.statusBar.SetMessage(a.err.Error())
		return
	}
	switch a.currentView {
	case messages.ViewHelp:
		a.statusBar.SetState(status.StateHelp)
	case messages.ViewItems:
		a.statusBar.SetCount(len(a.itemsView.Items()), "items")
	case messages.ViewItem:
		if it := a.itemView.Item(); it != nil && it.IsTombstone() {
			a.statusBar.SetMessage("Tombstone")
		}
	case messages.ViewSideBar:
	}
}

// View implements tea.Model.
// It renders the current view as a string.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewItems:
		body = a.itemsView.View()
	case messages.ViewItem:
		body = a.itemView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.sideBarView.View()
	}
	return body + "\n\n" + a.statusBar.View()
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	return a.styles.Title.Render("Help") + `

Side bar:
  j/k, ↑/↓    Navigate
  enter       Open type or plugin entry
  r           Refresh
  q           Quit

Items:
  j/k, ↑/↓    Navigate
  enter       Open item
  r           Refresh
  esc         Back to side bar

Item:
  j/k, ↑/↓    Scroll payload
  d           Toggle showing tombstones
  esc         Back to items

  ?           Toggle help
  ctrl+c      Quit`
}

// Run starts the TUI application.
func (a *App) Run() error {
	defer a.unwatch()
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// StatusBar returns the status bar.
func (a *App) StatusBar() *status.Bar {
	return a.statusBar
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	// The status bar takes the last two lines.
	a.sideBarView.SetDimensions(width, height-2)
	a.itemsView.SetDimensions(width, height-2)
	a.itemView.SetDimensions(width, height-2)
	a.statusBar.SetWidth(width)
}
