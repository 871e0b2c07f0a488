// Package item provides the single item view component for the TUI.
package item

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
)

// View shows the latest version of one item.
type View struct {
	ctx          context.Context
	styles       *styles.Styles
	keys         *keymap.KeyMap
	itemService  driving.ItemService
	itemID       uuid.UUID
	item         *domain.Item
	versions     int
	showDeleted  bool
	lines        []string
	scrollOffset int
	width        int
	height       int
	loading      bool
	err          error
}

// NewView creates a new item view.
func NewView(s *styles.Styles, items driving.ItemService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		ctx:         context.Background(),
		styles:      s,
		keys:        keymap.DefaultKeyMap(),
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

// SetItem shows item and reloads its latest version.
func (v *View) SetItem(item domain.Item) tea.Cmd {
	v.itemID = item.ItemID
	v.item = &item
	v.versions = 0
	v.showDeleted = false
	v.scrollOffset = 0
	v.err = nil
	v.layout()
	v.loading = true
	return v.Load()
}

// Load returns a command that reads the latest version and history of
// the current item.
func (v *View) Load() tea.Cmd {
	id, showDeleted := v.itemID, v.showDeleted
	return func() tea.Msg {
		if v.itemService == nil {
			return messages.ItemLoaded{Err: fmt.Errorf("item service not available")}
		}
		item, err := v.itemService.Get(v.ctx, id, showDeleted)
		if err != nil {
			return messages.ItemLoaded{Err: err}
		}
		history, err := v.itemService.History(v.ctx, id)
		return messages.ItemLoaded{Item: item, Versions: len(history), Err: err}
	}
}

// Update handles messages for the item view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ItemLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		// A nil item means it was deleted since it was listed.
		v.item = msg.Item
		v.versions = msg.Versions
		v.layout()
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
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case key.Matches(msg, v.keys.Down):
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case key.Matches(msg, v.keys.Top):
		v.scrollOffset = 0
	case key.Matches(msg, v.keys.Bottom):
		v.scrollOffset = v.maxScrollOffset()
	case key.Matches(msg, v.keys.Deleted):
		v.showDeleted = !v.showDeleted
		v.loading = true
		return v, v.Load()
	case key.Matches(msg, v.keys.Refresh):
		v.loading = true
		return v, v.Load()
	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewItems}
		}
	}

	return v, nil
}

// layout formats the payload into display lines.
func (v *View) layout() {
	v.lines = nil
	if v.item == nil || v.item.IsTombstone() {
		return
	}
	v.lines = strings.Split(FormatPayload(v.item.Payload), "\n")
	if v.scrollOffset > v.maxScrollOffset() {
		v.scrollOffset = v.maxScrollOffset()
	}
}

// FormatPayload indents JSON payloads and returns others unchanged.
func FormatPayload(payload []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return string(payload)
	}
	return buf.String()
}

func (v *View) visibleLines() int {
	// Title, metadata, payload border, help and the status bar.
	const reserved = 12
	return max(v.height-reserved, 1)
}

func (v *View) maxScrollOffset() int {
	return max(len(v.lines)-v.visibleLines(), 0)
}

// View renders the item view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Item " + v.itemID.String()))
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
	case v.item == nil && v.loading:
		b.WriteString(v.styles.Muted.Render("Loading item..."))
	case v.item == nil:
		b.WriteString(v.styles.Warning.Render("Deleted"))
		b.WriteString(v.styles.Muted.Render("  [d] show the tombstone"))
	default:
		b.WriteString(v.renderMeta())
		if v.item.IsTombstone() {
			b.WriteString(v.styles.Warning.Render("Deleted"))
			break
		}
		end := min(v.scrollOffset+v.visibleLines(), len(v.lines))
		b.WriteString(v.styles.Payload.Render(strings.Join(v.lines[v.scrollOffset:end], "\n")))
		if len(v.lines) > v.visibleLines() {
			b.WriteString("\n")
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  Line %d-%d of %d", v.scrollOffset+1, end, len(v.lines))))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Muted.Render("[j/k] Scroll  [d] Deleted  [r] Refresh  [esc] Back"))
	return b.String()
}

func (v *View) renderMeta() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", v.styles.Muted.Render("Version:  "), v.item.VersionID)
	fmt.Fprintf(&b, "%s %s\n", v.styles.Muted.Render("Written:  "), v.item.Timestamp.Format(time.RFC3339))
	if v.versions > 0 {
		fmt.Fprintf(&b, "%s %d\n", v.styles.Muted.Render("Versions: "), v.versions)
	}
	b.WriteString("\n")
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.layout()
}

// Item returns the shown version, or nil.
func (v *View) Item() *domain.Item {
	return v.item
}

// Versions returns the number of versions of the item.
func (v *View) Versions() int {
	return v.versions
}

// ShowDeleted reports whether tombstones are shown.
func (v *View) ShowDeleted() bool {
	return v.showDeleted
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
