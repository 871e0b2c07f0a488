package driven

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/typeregistry"
	"github.com/custodia-labs/raindrop/internal/notify"
)

// ItemStorage is one write-locked, append-only collection of item versions.
// Reads never take the write lock. Mutation is only possible through a
// StorageLock returned by Lock.
type ItemStorage interface {
	// StorageID identifies this storage within its user config.
	StorageID() uuid.UUID

	// Lock acquires the write lock, waiting at most timeout.
	// Returns false if the lock could not be acquired in time or ctx ended.
	Lock(ctx context.Context, timeout time.Duration) (StorageLock, bool)

	// GetLatest returns the latest version of itemID.
	// Returns nil and no error if the item does not exist, or if the
	// latest version is a tombstone and includeDeletion is false.
	GetLatest(ctx context.Context, itemID uuid.UUID, includeDeletion bool) (*domain.Item, error)

	// GetVersion returns a specific version, including tombstones.
	// Returns nil and no error if the version does not exist.
	GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.Item, error)

	// History returns every version of itemID in write order.
	History(ctx context.Context, itemID uuid.UUID) ([]domain.Item, error)

	// QueryByType appends the latest live versions matching q to dst
	// and returns the extended slice.
	QueryByType(ctx context.Context, q domain.ItemQuery, dst []domain.Item) ([]domain.Item, error)

	// Subscribe observes changes to items of typeID.
	Subscribe(typeID uuid.UUID) *notify.Subscription

	// MoveType moves every item of a type to another storage.
	MoveType(ctx context.Context, typeID, target uuid.UUID) error
}

// StorageLock is a held write lock on one storage.
// Release must be called exactly once; it publishes local change
// notifications for every type written under the lock.
type StorageLock interface {
	// AddItemVersion records a new version. The latest version of the
	// item becomes this one regardless of timestamps.
	AddItemVersion(item domain.Item) error

	// Release commits the writes and releases the lock.
	Release() error
}

// UserConfig is the store of one user.
type UserConfig interface {
	// UserID returns the owning user.
	UserID() string

	// Types returns the type registry of this user.
	Types() *typeregistry.Registry

	// SystemStorage returns the storage holding type and plugin items.
	SystemStorage() ItemStorage

	// Storages returns every storage of this user, system storage first.
	Storages() []ItemStorage

	// Storage returns the storage with the given id, or nil.
	Storage(id uuid.UUID) ItemStorage
}

// StorageProvider opens user stores.
type StorageProvider interface {
	// AddUser creates the store of a new user.
	// Returns domain.ErrAlreadyExists if it already exists.
	AddUser(ctx context.Context, userID string) (UserConfig, error)

	// GetUser opens the store of an existing user.
	// Returns domain.ErrUserNotFound if there is none.
	GetUser(ctx context.Context, userID string) (UserConfig, error)

	// DeleteUser removes a user and all its items.
	DeleteUser(ctx context.Context, userID string) error

	// Close releases every open store.
	Close() error
}

// WithLock runs fn while holding the write lock of storage.
// Returns domain.ErrLockTimeout if the lock could not be acquired.
// The lock is always released; a release error is returned if fn succeeded.
func WithLock(ctx context.Context, storage ItemStorage, timeout time.Duration, fn func(StorageLock) error) (err error) {
	lock, ok := storage.Lock(ctx, timeout)
	if !ok {
		return domain.ErrLockTimeout
	}
	defer func() {
		if relErr := lock.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn(lock)
}
