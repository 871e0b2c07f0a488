package items

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/services"
)

// newSessionView returns a view over a memory session holding a type
// with n items.
func newSessionView(t *testing.T, n int) (*View, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	session, err := services.OpenSession(ctx, memory.NewProvider(), domain.LocalUser, true,
		services.SessionOptions{LockTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	h, err := session.Types().CreateType(ctx, domain.TypeInfo{DisplayName: "Notes"})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := session.Items().Put(ctx, h.ID(), uuid.Nil, []byte(`{"n": 1}`))
		require.NoError(t, err)
	}

	view := NewView(nil, session.Types(), session.Items())
	return view, h.ID()
}

// load runs the command returned by SetType and feeds the result back.
func load(t *testing.T, view *View, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(messages.ItemsLoaded)
	require.True(t, ok)
	view.Update(msg)
}

func TestNewView(t *testing.T) {
	view := NewView(nil, nil, nil)

	require.NotNil(t, view)
	assert.NotNil(t, view.styles)
	assert.Equal(t, uuid.Nil, view.TypeID())
	assert.Empty(t, view.Items())
}

func TestView_SetType(t *testing.T) {
	view, typeID := newSessionView(t, 3)

	cmd := view.SetType(typeID)
	assert.True(t, view.loading)
	load(t, view, cmd)

	assert.False(t, view.loading)
	assert.Equal(t, typeID, view.TypeID())
	assert.Len(t, view.Items(), 3)
	assert.Equal(t, "Notes", view.TypeName())
	assert.NoError(t, view.Err())
}

func TestView_Load_NoService(t *testing.T) {
	view := NewView(nil, nil, nil)

	load(t, view, view.SetType(uuid.New()))

	assert.Error(t, view.Err())
	assert.Contains(t, view.View(), "Error:")
}

func TestView_Update_IgnoresOtherType(t *testing.T) {
	view, typeID := newSessionView(t, 1)
	load(t, view, view.SetType(typeID))

	view.Update(messages.ItemsLoaded{TypeID: uuid.New(), Err: errors.New("stale")})

	assert.NoError(t, view.Err())
	assert.Len(t, view.Items(), 1)
}

func TestView_Update_LoadError(t *testing.T) {
	view, typeID := newSessionView(t, 1)
	load(t, view, view.SetType(typeID))

	view.Update(messages.ItemsLoaded{TypeID: typeID, Err: errors.New("storage unavailable")})

	assert.EqualError(t, view.Err(), "storage unavailable")
	assert.Len(t, view.Items(), 1, "keeps the previous items")
}

func TestView_Update_Navigate(t *testing.T) {
	view, typeID := newSessionView(t, 3)
	load(t, view, view.SetType(typeID))

	down := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}
	view.Update(down)
	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, view.Selected())

	view.Update(down)
	assert.Equal(t, 2, view.Selected())

	view.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, view.Selected())
}

func TestView_Update_SelectionClampedOnReload(t *testing.T) {
	view, typeID := newSessionView(t, 3)
	load(t, view, view.SetType(typeID))
	view.selected = 2

	view.Update(messages.ItemsLoaded{TypeID: typeID, Items: view.Items()[:1]})

	assert.Equal(t, 0, view.Selected())
}

func TestView_Update_Enter(t *testing.T) {
	view, typeID := newSessionView(t, 2)
	load(t, view, view.SetType(typeID))
	view.Update(tea.KeyMsg{Type: tea.KeyDown})

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	selected, ok := cmd().(messages.ItemSelected)
	require.True(t, ok)
	assert.Equal(t, view.Items()[1].ItemID, selected.Item.ItemID)
}

func TestView_Update_EnterEmpty(t *testing.T) {
	view, typeID := newSessionView(t, 0)
	load(t, view, view.SetType(typeID))

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Contains(t, view.View(), "No items.")
}

func TestView_Update_Refresh(t *testing.T) {
	view, typeID := newSessionView(t, 1)
	load(t, view, view.SetType(typeID))

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	assert.True(t, view.loading)
	load(t, view, cmd)
	assert.False(t, view.loading)
}

func TestView_Update_Esc(t *testing.T) {
	view := NewView(nil, nil, nil)

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewSideBar}, cmd())
}

func TestView_Scroll(t *testing.T) {
	view, typeID := newSessionView(t, 10)
	view.SetDimensions(80, 10)
	load(t, view, view.SetType(typeID))

	visible := view.visibleItemCount()
	require.Equal(t, 3, visible)
	for i := 0; i < 5; i++ {
		view.Update(tea.KeyMsg{Type: tea.KeyDown})
	}

	assert.Equal(t, 5, view.Selected())
	assert.Equal(t, 3, view.scrollOffset)
	assert.Contains(t, view.View(), "4-6 of 10")
}

func TestView_View(t *testing.T) {
	view, typeID := newSessionView(t, 1)
	load(t, view, view.SetType(typeID))

	output := view.View()

	assert.Contains(t, output, "Notes (1)")
	assert.Contains(t, output, view.Items()[0].ItemID.String()[:8])
	assert.Contains(t, output, `{"n": 1}`)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, `{"a": 1, "b": 2}`, Preview([]byte("{\"a\": 1,\n  \"b\": 2}"), 20))
	assert.Equal(t, "abcd…", Preview([]byte("abcdefgh"), 5))
	assert.Equal(t, "", Preview(nil, 5))
}
