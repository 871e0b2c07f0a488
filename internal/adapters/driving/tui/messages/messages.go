// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewSideBar lists types and plugin entries.
	ViewSideBar ViewType = iota
	// ViewItems lists the live items of a type.
	ViewItems
	// ViewItem shows one item.
	ViewItem
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewSideBar:
		return "sidebar"
	case ViewItems:
		return "items"
	case ViewItem:
		return "item"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// RefreshTick triggers a periodic reload of the active view.
type RefreshTick struct{}

// SideBarLoaded carries the types and plugin entries.
type SideBarLoaded struct {
	Types   []*domain.TypeHandle
	Entries []domain.SideBarEntry
	Plugins []domain.LoadedPlugin
}

// TypeSelected signals a type was chosen from the side bar.
type TypeSelected struct {
	TypeID uuid.UUID
}

// ItemsLoaded carries the live items of a type.
type ItemsLoaded struct {
	TypeID uuid.UUID
	Items  []domain.Item
	Err    error
}

// ItemSelected signals an item was chosen from the items list.
type ItemSelected struct {
	Item domain.Item
}

// ItemLoaded carries the latest version and version count of an item.
type ItemLoaded struct {
	Item     *domain.Item
	Versions int
	Err      error
}

// ItemsChanged signals that items of the open type were written, by
// this process or another one.
type ItemsChanged struct {
	TypeID uuid.UUID
	Remote bool
}
