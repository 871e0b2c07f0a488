// Package typeregistry tracks the live types of one user store.
//
// Types are items of the bootstrap type-of-types. The registry is an
// arena of TypeHandles indexed by type id; storages call Validate before
// and Apply after recording every such item. The type-of-types handle is
// built by New directly and never goes through Apply's create path.
package typeregistry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

// DeleteGuard is consulted before a type is deleted.
// Returning false vetoes the deletion.
type DeleteGuard func(typeID uuid.UUID) bool

// Registry is the type arena of one user store.
type Registry struct {
	storageID   uuid.UUID
	typeOfTypes *domain.TypeHandle

	mu     sync.RWMutex
	types  map[uuid.UUID]*domain.TypeHandle
	guards map[int]DeleteGuard
	nextID int
}

// New creates a registry whose types live in the given storage.
func New(storageID uuid.UUID) *Registry {
	tot := domain.NewTypeHandle(domain.TypeOfTypesID, storageID, domain.TypeInfo{
		DisplayName: domain.TypeOfTypesName,
	})
	return &Registry{
		storageID:   storageID,
		typeOfTypes: tot,
		types:       map[uuid.UUID]*domain.TypeHandle{tot.ID(): tot},
		guards:      make(map[int]DeleteGuard),
	}
}

// BootstrapItem returns a defining item for the type-of-types, whose
// type is itself. Storages record it once when they are created.
func BootstrapItem() domain.Item {
	payload, _ := domain.EncodePayload(domain.TypeInfo{DisplayName: domain.TypeOfTypesName})
	return domain.NewItem(domain.TypeOfTypesID, domain.TypeOfTypesID, payload)
}

// StorageID returns the storage holding type-defining items.
func (r *Registry) StorageID() uuid.UUID {
	return r.storageID
}

// TypeOfTypes returns the bootstrap handle.
func (r *Registry) TypeOfTypes() *domain.TypeHandle {
	return r.typeOfTypes
}

// Resolve returns the handle for typeID, or nil if the type was never defined.
// The handle may be invalid if the type has been deleted.
func (r *Registry) Resolve(typeID uuid.UUID) *domain.TypeHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[typeID]
}

// Types returns the valid types ordered by display name.
func (r *Registry) Types() []*domain.TypeHandle {
	r.mu.RLock()
	out := make([]*domain.TypeHandle, 0, len(r.types))
	for _, h := range r.types {
		if h.IsValid() {
			out = append(out, h)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName() != out[j].DisplayName() {
			return out[i].DisplayName() < out[j].DisplayName()
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out
}

// Validate checks that item may be written to storageID.
// For type-defining items it returns the decoded type info, which
// must be passed to Apply once the item is recorded.
func (r *Registry) Validate(item domain.Item, storageID uuid.UUID) (*domain.TypeInfo, error) {
	h := r.Resolve(item.Type)
	if h == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownType, item.Type)
	}
	if !item.IsTombstone() && !h.IsValid() {
		return nil, fmt.Errorf("%w: %s was deleted", domain.ErrUnknownType, item.Type)
	}
	if h.StorageID() != storageID {
		return nil, fmt.Errorf("%w: type %s lives in storage %s", domain.ErrWrongStorage, item.Type, h.StorageID())
	}

	if item.Type != domain.TypeOfTypesID {
		return nil, nil
	}
	if item.IsTombstone() {
		if item.ItemID == domain.TypeOfTypesID {
			return nil, fmt.Errorf("%w: the type of types cannot be deleted", domain.ErrInvalidOperation)
		}
		return nil, nil
	}
	info, err := domain.DecodeTypeInfo(item.Payload)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", item.ItemID, err)
	}
	return &info, nil
}

// Apply updates the arena for a recorded type-defining item.
// info is the value returned by Validate. Items of other types are ignored.
func (r *Registry) Apply(item domain.Item, info *domain.TypeInfo) {
	if item.Type != domain.TypeOfTypesID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, exists := r.types[item.ItemID]
	switch {
	case item.IsTombstone():
		if exists {
			h.Invalidate()
		}
	case exists:
		h.SetInfo(*info)
	default:
		r.types[item.ItemID] = domain.NewTypeHandle(item.ItemID, r.storageID, *info)
	}
}

// AddDeleteGuard installs a guard consulted by CanDelete.
// The returned function removes it.
func (r *Registry) AddDeleteGuard(guard DeleteGuard) (remove func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.guards[id] = guard
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.guards, id)
		})
	}
}

// CanDelete returns true if typeID is a live type and no guard vetoes its
// deletion. The type-of-types can never be deleted.
func (r *Registry) CanDelete(typeID uuid.UUID) bool {
	if typeID == domain.TypeOfTypesID {
		return false
	}

	r.mu.RLock()
	h := r.types[typeID]
	guards := make([]DeleteGuard, 0, len(r.guards))
	for _, g := range r.guards {
		guards = append(guards, g)
	}
	r.mu.RUnlock()

	if h == nil || !h.IsValid() {
		return false
	}
	for _, g := range guards {
		if !g(typeID) {
			return false
		}
	}
	return true
}

// Reset invalidates every type except the type-of-types. Handles keep
// their identity and become valid again when their items are replayed.
// Persistent storages call it before replaying their type items.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, h := range r.types {
		if id != domain.TypeOfTypesID {
			h.Invalidate()
		}
	}
}
