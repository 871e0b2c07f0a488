// Package tui provides an interactive terminal user interface for raindrop.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Types lists and resolves item types.
	Types driving.TypeService

	// Items reads items.
	Items driving.ItemService

	// Plugins provides the side bar entries of loaded plugins.
	Plugins driving.PluginService
}

// Validate ensures all required ports are set.
// Returns an error if any port is nil.
func (p *Ports) Validate() error {
	if p.Types == nil {
		return ErrMissingTypeService
	}
	if p.Items == nil {
		return ErrMissingItemService
	}
	if p.Plugins == nil {
		return ErrMissingPluginService
	}
	return nil
}
