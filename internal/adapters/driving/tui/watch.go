package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/raindrop/internal/logger"
	"github.com/custodia-labs/raindrop/internal/notify"
)

// changeWatch observes the items of the open type.
type changeWatch struct {
	typeID uuid.UUID
	sub    *notify.Subscription
	events <-chan notify.ChangeEvent
	done   chan struct{}
}

// wait blocks until the next change and reports it as ItemsChanged.
// A burst of writes collapses into one message.
func (w *changeWatch) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-w.events:
			return messages.ItemsChanged{TypeID: ev.TypeID, Remote: ev.Remote}
		case <-w.done:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *changeWatch) close() {
	w.sub.Close()
	close(w.done)
}

// watch replaces the current watch with one on typeID.
func (a *App) watch(typeID uuid.UUID) tea.Cmd {
	a.unwatch()
	sub, err := a.ports.Items.Subscribe(typeID)
	if err != nil {
		logger.Warn("not watching type %s: %v", typeID, err)
		return nil
	}
	a.watcher = &changeWatch{
		typeID: typeID,
		sub:    sub,
		events: sub.Channel(1),
		done:   make(chan struct{}),
	}
	return a.watcher.wait(a.ctx)
}

func (a *App) unwatch() {
	if a.watcher != nil {
		a.watcher.close()
		a.watcher = nil
	}
}

// handleChange reloads the active view and keeps waiting.
// Events of a watch that has since been replaced are dropped.
func (a *App) handleChange(msg messages.ItemsChanged) tea.Cmd {
	if a.watcher == nil || a.watcher.typeID != msg.TypeID {
		return nil
	}
	if msg.Remote {
		logger.Debug("remote change to type %s", msg.TypeID)
	}
	return tea.Batch(a.reload(), a.watcher.wait(a.ctx))
}
