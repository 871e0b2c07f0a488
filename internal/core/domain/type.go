package domain

import (
	"sync"

	"github.com/google/uuid"
)

// TypeInfo is the payload of a type-defining item.
type TypeInfo struct {
	DisplayName string `json:"display_name"`
}

// TypeHandle is the live, shared view of a type.
// It is backed by an item of the type-of-types and is updated in place
// whenever a newer version of that item is stored. Handles are never
// removed; a tombstoned type is marked invalid instead.
//
// TypeHandle is safe for concurrent use. Only the owning type registry
// calls SetInfo and Invalidate.
type TypeHandle struct {
	id        uuid.UUID
	storageID uuid.UUID

	mu    sync.RWMutex
	info  TypeInfo
	valid bool
}

// NewTypeHandle creates a valid handle for the type defined by item id.
func NewTypeHandle(id, storageID uuid.UUID, info TypeInfo) *TypeHandle {
	return &TypeHandle{
		id:        id,
		storageID: storageID,
		info:      info,
		valid:     true,
	}
}

// ID returns the item id of the type's defining item.
func (h *TypeHandle) ID() uuid.UUID {
	return h.id
}

// StorageID returns the storage holding items of this type.
func (h *TypeHandle) StorageID() uuid.UUID {
	return h.storageID
}

// Info returns a copy of the current type info.
func (h *TypeHandle) Info() TypeInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.info
}

// DisplayName returns the current display name.
func (h *TypeHandle) DisplayName() string {
	return h.Info().DisplayName
}

// IsValid returns false once the defining item has been tombstoned.
func (h *TypeHandle) IsValid() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.valid
}

// SetInfo replaces the type info and marks the handle valid again.
func (h *TypeHandle) SetInfo(info TypeInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.info = info
	h.valid = true
}

// Invalidate marks the type as deleted.
func (h *TypeHandle) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.valid = false
}
