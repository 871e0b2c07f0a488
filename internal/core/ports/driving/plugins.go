package driving

import (
	"context"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

// PluginService manages the plugin instances of a user session.
type PluginService interface {
	// State returns the lifecycle state.
	State() domain.PluginManagerState

	// AddPlugin creates, loads and persists a new plugin instance.
	AddPlugin(ctx context.Context, name, parameters string) (uuid.UUID, error)

	// RemovePlugin deletes a persisted plugin instance and unloads it.
	RemovePlugin(ctx context.Context, instanceID uuid.UUID) error

	// LoadedPlugins returns the loaded registrations.
	LoadedPlugins() []domain.LoadedPlugin

	// AvailablePlugins returns every plugin name the providers can construct.
	AvailablePlugins() []string

	// SideBarElements returns the side bar contributions of every loaded plugin.
	SideBarElements() []domain.SideBarEntry
}
