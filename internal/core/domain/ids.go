package domain

import "github.com/google/uuid"

// Well-known identifiers shared by every user store.
var (
	// SystemStorageID identifies the system storage of a user config.
	SystemStorageID = uuid.Nil

	// TypeOfTypesID is the item id of the bootstrap type whose items define types.
	TypeOfTypesID = uuid.MustParse("2f6b3c1e-0d5a-4d8e-9c1b-7a0e5f4c3d21")

	// PluginTypeID is the type of plugin instance descriptor items.
	PluginTypeID = uuid.MustParse("8c4a1f72-6b3e-4e0d-a5c9-1d2e3f405162")

	// SystemPluginInstanceID is the instance id of the built-in system plugin.
	// It is never persisted and can never be unloaded.
	SystemPluginInstanceID = uuid.MustParse("5e9d7b21-3c4f-4a6e-8b0d-9f1e2a3b4c5d")
)

// Display names of the bootstrap types. Bracketed names are
// localisation keys resolved by presentation layers.
const (
	TypeOfTypesName = "[Types.Types]"
	PluginTypeName  = "[Types.Plugins]"
)

// LocalUser is the user id of the single local user.
const LocalUser = "LOCAL"

// NewID returns a new time-ordered identifier.
// Falls back to a random UUID if a v7 UUID cannot be generated.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
