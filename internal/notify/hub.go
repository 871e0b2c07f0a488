// Package notify delivers item change events to per-type subscribers.
//
// Each storage owns one Hub. Subscriptions are keyed by type id and are
// removed atomically under the hub's own lock, which is independent of
// the storage write lock. Handlers are invoked outside the hub lock on
// the goroutine that publishes.
package notify

import (
	"sync"

	"github.com/google/uuid"
)

// ChangeEvent describes a change to the items of one type.
type ChangeEvent struct {
	StorageID uuid.UUID
	TypeID    uuid.UUID
	Remote    bool
}

// Handler receives change events.
type Handler func(ChangeEvent)

// Hub is the observer registry of one storage.
type Hub struct {
	storageID uuid.UUID

	mu   sync.Mutex
	subs map[uuid.UUID]map[*Subscription]struct{}
}

// NewHub creates a hub for the given storage.
func NewHub(storageID uuid.UUID) *Hub {
	return &Hub{
		storageID: storageID,
		subs:      make(map[uuid.UUID]map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscription for changes to items of typeID.
func (h *Hub) Subscribe(typeID uuid.UUID) *Subscription {
	sub := &Subscription{hub: h, typeID: typeID}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[typeID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[typeID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// PublishLocal notifies subscribers of changes written by this process.
// Each type is notified once even if listed several times.
func (h *Hub) PublishLocal(typeIDs ...uuid.UUID) {
	h.publish(false, typeIDs)
}

// PublishRemote notifies subscribers of changes written by other clients.
func (h *Hub) PublishRemote(typeIDs ...uuid.UUID) {
	h.publish(true, typeIDs)
}

func (h *Hub) publish(remote bool, typeIDs []uuid.UUID) {
	seen := make(map[uuid.UUID]struct{}, len(typeIDs))
	for _, typeID := range typeIDs {
		if _, dup := seen[typeID]; dup {
			continue
		}
		seen[typeID] = struct{}{}

		ev := ChangeEvent{StorageID: h.storageID, TypeID: typeID, Remote: remote}
		for _, sub := range h.snapshot(typeID) {
			sub.deliver(ev)
		}
	}
}

func (h *Hub) snapshot(typeID uuid.UUID) []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[typeID]
	out := make([]*Subscription, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.typeID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.typeID)
	}
}
