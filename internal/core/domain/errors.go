package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// Storage reads never return it; they return nil instead.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPayload indicates an item payload could not be decoded
	// into the shape its type requires.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnsupported indicates an operation the backend does not implement,
	// such as moving a type to another storage.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrInvalidOperation indicates the operation is not allowed in the
	// current state (e.g. unloading the system plugin).
	ErrInvalidOperation = errors.New("invalid operation")

	// Storage Errors.

	// ErrLockTimeout indicates the storage write lock could not be acquired
	// within the requested timeout.
	ErrLockTimeout = errors.New("storage lock timeout")

	// ErrLockReleased indicates a mutation through a lock that was already released.
	ErrLockReleased = errors.New("storage lock already released")

	// ErrStorageUnavailable indicates the storage could not be locked during
	// a mandatory bootstrap step.
	ErrStorageUnavailable = errors.New("cannot access user storage")

	// ErrUnknownType indicates an item references a type that does not
	// resolve to a valid type handle.
	ErrUnknownType = errors.New("unknown item type")

	// ErrWrongStorage indicates an item was written to a storage that does
	// not hold items of its type.
	ErrWrongStorage = errors.New("item type belongs to another storage")

	// ErrUserNotFound indicates the storage provider has no such user.
	ErrUserNotFound = errors.New("user not found")

	// Plugin Errors.

	// ErrAlreadyLoaded indicates a plugin instance id is already registered.
	ErrAlreadyLoaded = errors.New("plugin already loaded")

	// ErrReloadUnsupported indicates an attempt to overwrite a loaded plugin.
	ErrReloadUnsupported = errors.New("plugin reload not supported")

	// ErrPluginNotFound indicates no provider can construct the named plugin.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrRegistrationClosed indicates a plugin registered a capability after
	// it was unloaded.
	ErrRegistrationClosed = errors.New("plugin registration closed")

	// ErrNotInitialized indicates the plugin manager has not finished init.
	ErrNotInitialized = errors.New("plugin manager not initialized")
)
