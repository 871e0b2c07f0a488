// Package items provides the items list view component for the TUI.
package items

import (
	"context"
	"fmt"
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

// ListLimit caps the number of items loaded for one type.
const ListLimit = 500

// previewWidth is the payload preview length per row.
const previewWidth = 60

// View is the items list view.
type View struct {
	ctx          context.Context
	styles       *styles.Styles
	keys         *keymap.KeyMap
	typeService  driving.TypeService
	itemService  driving.ItemService
	typeID       uuid.UUID
	items        []domain.Item
	selected     int
	scrollOffset int
	width        int
	height       int
	loading      bool
	err          error
}

// NewView creates a new items view.
func NewView(s *styles.Styles, types driving.TypeService, items driving.ItemService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		ctx:         context.Background(),
		styles:      s,
		keys:        keymap.DefaultKeyMap(),
		typeService: types,
		itemService: items,
		width:       80,
		height:      24,
	}
}

// WithContext sets the context used for loading.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetType selects the type and loads its items.
func (v *View) SetType(typeID uuid.UUID) tea.Cmd {
	v.typeID = typeID
	v.items = nil
	v.selected = 0
	v.scrollOffset = 0
	v.err = nil
	v.loading = true
	return v.Load()
}

// Load returns a command that loads the items of the current type.
func (v *View) Load() tea.Cmd {
	typeID := v.typeID
	return func() tea.Msg {
		if v.itemService == nil {
			return messages.ItemsLoaded{TypeID: typeID, Err: fmt.Errorf("item service not available")}
		}
		items, err := v.itemService.List(v.ctx, domain.ItemQuery{Type: typeID, Limit: ListLimit})
		return messages.ItemsLoaded{TypeID: typeID, Items: items, Err: err}
	}
}

// Update handles messages for the items view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ItemsLoaded:
		if msg.TypeID != v.typeID {
			return v, nil
		}
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.items = msg.Items
		v.err = nil
		if v.selected >= len(v.items) {
			v.selected = max(len(v.items)-1, 0)
		}
		v.adjustScroll()
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Up):
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case key.Matches(msg, v.keys.Down):
		if v.selected < len(v.items)-1 {
			v.selected++
			v.adjustScroll()
		}
	case key.Matches(msg, v.keys.Select):
		if v.selected < len(v.items) {
			item := v.items[v.selected]
			return v, func() tea.Msg {
				return messages.ItemSelected{Item: item}
			}
		}
	case key.Matches(msg, v.keys.Refresh):
		v.loading = true
		return v, v.Load()
	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewSideBar}
		}
	}

	return v, nil
}

// adjustScroll adjusts the scroll offset to keep the selected item visible.
func (v *View) adjustScroll() {
	visible := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visible {
		v.scrollOffset = v.selected - visible + 1
	}
}

// visibleItemCount returns the number of items that can be displayed.
func (v *View) visibleItemCount() int {
	// Title, blank lines, help and the status bar.
	const reserved = 7
	return max(v.height-reserved, 1)
}

// TypeName returns the display name of the current type.
func (v *View) TypeName() string {
	if v.typeService != nil {
		if h := v.typeService.Resolve(v.typeID); h != nil {
			return h.DisplayName()
		}
	}
	return v.typeID.String()
}

// View renders the items view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("%s (%d)", v.TypeName(), len(v.items))))
	b.WriteString("\n\n")

	switch {
	case v.loading && len(v.items) == 0:
		b.WriteString(v.styles.Muted.Render("Loading items..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
	case len(v.items) == 0:
		b.WriteString(v.styles.Muted.Render("No items."))
	default:
		end := min(v.scrollOffset+v.visibleItemCount(), len(v.items))
		for i := v.scrollOffset; i < end; i++ {
			b.WriteString(v.renderRow(i))
			b.WriteString("\n")
		}
		if len(v.items) > v.visibleItemCount() {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %d-%d of %d", v.scrollOffset+1, end, len(v.items))))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Muted.Render("[j/k] Navigate  [Enter] Open  [r] Refresh  [esc] Back"))
	return b.String()
}

func (v *View) renderRow(i int) string {
	item := v.items[i]
	cursor := "  "
	style := v.styles.Normal
	if i == v.selected {
		cursor = "> "
		style = v.styles.Selected
	}
	return cursor + v.styles.Muted.Render(item.ItemID.String()[:8]) + "  " + style.Render(Preview(item.Payload, previewWidth))
}

// Preview flattens payload onto one line and truncates it to width runes.
func Preview(payload []byte, width int) string {
	s := strings.Join(strings.Fields(string(payload)), " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.adjustScroll()
}

// TypeID returns the current type.
func (v *View) TypeID() uuid.UUID {
	return v.typeID
}

// Items returns the loaded items.
func (v *View) Items() []domain.Item {
	return v.items
}

// Selected returns the selected index.
func (v *View) Selected() int {
	return v.selected
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
