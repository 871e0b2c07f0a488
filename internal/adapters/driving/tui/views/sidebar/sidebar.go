// Package sidebar provides the side bar navigation view for the TUI.
// It lists the types of the store followed by the entries loaded plugins
// contribute.
package sidebar

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
)

type rowKind int

const (
	rowHeading rowKind = iota
	rowType
	rowEntry
	rowSeparator
	rowQuit
)

// row is one line of the side bar.
type row struct {
	kind   rowKind
	label  string
	icon   string
	indent int
	typeID uuid.UUID
}

func (r row) selectable() bool {
	return r.kind == rowType || r.kind == rowEntry || r.kind == rowQuit
}

// View represents the side bar view.
type View struct {
	styles  *styles.Styles
	keys    *keymap.KeyMap
	types   driving.TypeService
	plugins driving.PluginService

	rows     []row
	selected int
	width    int
	height   int
	ready    bool
}

// NewView creates a new side bar view.
func NewView(s *styles.Styles, types driving.TypeService, plugins driving.PluginService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	v := &View{
		styles:  s,
		keys:    keymap.DefaultKeyMap(),
		types:   types,
		plugins: plugins,
		width:   80,
		height:  24,
	}
	v.SetData(messages.SideBarLoaded{})
	return v
}

// Init loads the side bar.
func (v *View) Init() tea.Cmd {
	return v.Load()
}

// Load returns a command that reads the types and plugin entries.
func (v *View) Load() tea.Cmd {
	return func() tea.Msg {
		var msg messages.SideBarLoaded
		if v.types != nil {
			msg.Types = v.types.ListTypes()
		}
		if v.plugins != nil {
			msg.Entries = v.plugins.SideBarElements()
			msg.Plugins = v.plugins.LoadedPlugins()
		}
		return msg
	}
}

// SetData rebuilds the rows. The selection stays on the same row index
// when possible.
func (v *View) SetData(msg messages.SideBarLoaded) {
	rows := []row{{kind: rowHeading, label: "Types"}}
	for _, h := range msg.Types {
		if h.ID() == domain.TypeOfTypesID {
			continue
		}
		rows = append(rows, row{kind: rowType, label: h.DisplayName(), typeID: h.ID()})
	}

	if len(msg.Entries) > 0 {
		// Entries target their plugin instance; open its first type.
		pluginTypes := make(map[string]uuid.UUID, len(msg.Plugins))
		for _, p := range msg.Plugins {
			if len(p.TypeIDs) > 0 {
				pluginTypes[p.InstanceID.String()] = p.TypeIDs[0]
			}
		}

		rows = append(rows, row{kind: rowHeading, label: "Plugins"})
		for _, e := range msg.Entries {
			if e.Kind == domain.SideBarSeparator {
				rows = append(rows, row{kind: rowSeparator})
				continue
			}
			rows = append(rows, row{
				kind:   rowEntry,
				label:  e.Text,
				icon:   e.Icon,
				indent: e.Indent,
				typeID: pluginTypes[e.Target],
			})
		}
	}
	rows = append(rows, row{kind: rowQuit, label: "Quit"})

	v.rows = rows
	if v.selected >= len(rows) {
		v.selected = len(rows) - 1
	}
	if !v.rows[v.selected].selectable() {
		v.move(1)
	}
}

// move shifts the selection by delta, skipping rows that cannot be
// selected. The selection does not move past the first or last row.
func (v *View) move(delta int) {
	for i := v.selected + delta; i >= 0 && i < len(v.rows); i += delta {
		if v.rows[i].selectable() {
			v.selected = i
			return
		}
	}
}

// Update handles messages for the side bar view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.ready = true
		return v, nil

	case messages.SideBarLoaded:
		v.SetData(msg)
		return v, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.Up):
			v.move(-1)
			return v, nil

		case key.Matches(msg, v.keys.Down):
			v.move(1)
			return v, nil

		case key.Matches(msg, v.keys.Refresh):
			return v, v.Load()

		case key.Matches(msg, v.keys.Select):
			r := v.rows[v.selected]
			switch {
			case r.kind == rowQuit:
				return v, tea.Quit
			case r.typeID != uuid.Nil:
				id := r.typeID
				return v, func() tea.Msg {
					return messages.TypeSelected{TypeID: id}
				}
			}
			return v, nil

		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		}
	}

	return v, nil
}

// View renders the side bar.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Raindrop"))
	b.WriteString("\n\n")

	for i, r := range v.rows {
		switch r.kind {
		case rowHeading:
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(v.styles.Subtitle.Render(r.label))
			b.WriteString("\n")
			continue
		case rowSeparator:
			b.WriteString("  ")
			b.WriteString(v.styles.Separator.Render(strings.Repeat("─", 16)))
			b.WriteString("\n")
			continue
		case rowQuit:
			b.WriteString("\n")
		case rowType, rowEntry:
		}

		cursor := "  "
		style := v.styles.Normal
		if i == v.selected {
			cursor = "> "
			style = v.styles.Selected
		}
		label := r.label
		if r.icon != "" {
			label = "[" + r.icon + "] " + label
		}
		b.WriteString(cursor + strings.Repeat("  ", r.indent) + style.Render(label))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("[j/k] Navigate  [Enter] Open  [r] Refresh  [q] Quit"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Selected returns the currently selected index.
func (v *View) Selected() int {
	return v.selected
}

// SelectedType returns the type the selected row opens, or uuid.Nil.
func (v *View) SelectedType() uuid.UUID {
	return v.rows[v.selected].typeID
}
