package driven

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

// Plugin extends a user store at runtime.
type Plugin interface {
	// Init receives the serialized instance parameters.
	// An error aborts the load.
	Init(parameters string) error

	// Load registers the plugin's capabilities.
	// An error aborts the load and discards every registration.
	Load(ctx context.Context, registry HandlerRegistry) error
}

// Unloader is implemented by plugins that hold resources.
// Unload is called after the plugin's registration is removed.
type Unloader interface {
	Unload()
}

// PluginProvider constructs plugins by name.
type PluginProvider interface {
	// CreatePlugin returns a new plugin instance.
	// Returns nil and no error if the provider does not know name.
	CreatePlugin(name string) (Plugin, error)

	// Names returns the plugin names this provider can construct.
	Names() []string
}

// TaskFunc is the action of a scheduled task.
type TaskFunc func(ctx context.Context) error

// HandlerRegistry is the capability surface offered to a plugin while it
// is loaded. Every call fails with domain.ErrRegistrationClosed once the
// plugin has been unloaded.
type HandlerRegistry interface {
	// InstanceID returns the plugin instance id.
	InstanceID() uuid.UUID

	// InstanceInfo returns the plugin instance descriptor.
	InstanceInfo() domain.PluginInstanceInfo

	// UserConfig returns the store of the owning session.
	UserConfig() UserConfig

	// RegisterTypeID claims ownership of a type, preventing its deletion
	// while the plugin is loaded.
	RegisterTypeID(typeID uuid.UUID) error

	// RegisterStaticType creates the type if its defining item does not
	// exist yet and claims ownership. An existing type keeps its info.
	RegisterStaticType(ctx context.Context, typeID uuid.UUID, info domain.TypeInfo) (*domain.TypeHandle, error)

	// RegisterSideBarElement appends a side bar contribution.
	RegisterSideBarElement(el *domain.SideBarElement) error

	// RegisterScheduledTask adds a periodic task.
	RegisterScheduledTask(name string, action TaskFunc, interval time.Duration) error
}
