package driving

import (
	"context"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/notify"
)

// TypeService manages user-defined types.
type TypeService interface {
	// CreateType defines a new type in the system storage.
	CreateType(ctx context.Context, info domain.TypeInfo) (*domain.TypeHandle, error)

	// UpdateType writes a new version of a type's defining item.
	UpdateType(ctx context.Context, typeID uuid.UUID, info domain.TypeInfo) error

	// TryDelete deletes a type with no live items.
	// Returns false without changes if the type is in use or guarded.
	TryDelete(ctx context.Context, typeID uuid.UUID) (bool, error)

	// ListTypes returns the valid types.
	ListTypes() []*domain.TypeHandle

	// Resolve returns the handle of a type, or nil.
	Resolve(typeID uuid.UUID) *domain.TypeHandle

	// FindByName returns the valid types with the given display name,
	// ignoring case.
	FindByName(name string) []*domain.TypeHandle
}

// ItemService reads and writes items.
type ItemService interface {
	// Put writes a new version of an item. A nil itemID allocates one.
	Put(ctx context.Context, typeID, itemID uuid.UUID, payload []byte) (*domain.Item, error)

	// Delete writes a tombstone for an item.
	Delete(ctx context.Context, itemID uuid.UUID) error

	// Get returns the latest version of an item, or nil.
	Get(ctx context.Context, itemID uuid.UUID, includeDeletion bool) (*domain.Item, error)

	// GetVersion returns a specific version, or nil.
	GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.Item, error)

	// History returns every version of an item in write order.
	History(ctx context.Context, itemID uuid.UUID) ([]domain.Item, error)

	// List returns the latest live items matching q.
	List(ctx context.Context, q domain.ItemQuery) ([]domain.Item, error)

	// Subscribe observes changes to the items of a type, local and
	// remote. The caller must Close the subscription.
	Subscribe(typeID uuid.UUID) (*notify.Subscription, error)
}
