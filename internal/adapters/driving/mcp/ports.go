package mcp

import (
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Types resolves and lists item types.
	Types driving.TypeService

	// Items reads items.
	Items driving.ItemService

	// Plugins lists plugin instances. Optional.
	Plugins driving.PluginService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Types == nil {
		return ErrMissingTypeService
	}
	if p.Items == nil {
		return ErrMissingItemService
	}
	return nil
}
