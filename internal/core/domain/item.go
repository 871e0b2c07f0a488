package domain

import (
	"time"

	"github.com/google/uuid"
)

// Item is one immutable version of a logical entity.
// Two items with the same ItemID but different VersionID are versions
// of the same entity. Once stored an item is never mutated; corrections
// are new versions.
type Item struct {
	// ItemID identifies the logical entity.
	ItemID uuid.UUID

	// VersionID identifies this version.
	VersionID uuid.UUID

	// Timestamp is when this version was created (UTC).
	Timestamp time.Time

	// Type is the item id of the type this item belongs to.
	Type uuid.UUID

	// Payload is the serialized content. Nil marks a tombstone.
	Payload []byte
}

// NewItem creates a new version of itemID with the given payload.
// A nil payload creates a tombstone.
func NewItem(typeID, itemID uuid.UUID, payload []byte) Item {
	return Item{
		ItemID:    itemID,
		VersionID: NewID(),
		Timestamp: time.Now().UTC(),
		Type:      typeID,
		Payload:   payload,
	}
}

// NewTombstone creates a deletion version of itemID.
func NewTombstone(typeID, itemID uuid.UUID) Item {
	return NewItem(typeID, itemID, nil)
}

// IsTombstone returns true if this version marks a deletion.
func (i Item) IsTombstone() bool {
	return i.Payload == nil
}

// Clone returns a copy that shares no memory with i.
func (i Item) Clone() Item {
	c := i
	if i.Payload != nil {
		c.Payload = make([]byte, len(i.Payload))
		copy(c.Payload, i.Payload)
	}
	return c
}

// ItemQuery selects the latest live versions of a type.
type ItemQuery struct {
	// Type is the type to query.
	Type uuid.UUID

	// From drops versions with an earlier timestamp. Zero means no bound.
	From time.Time

	// Limit caps the number of results. Zero or negative means unbounded.
	Limit int
}

// Unbounded returns true if the query has no result cap.
func (q ItemQuery) Unbounded() bool {
	return q.Limit <= 0
}

// Matches returns true if item satisfies the type and time filters of q.
// Tombstones never match.
func (q ItemQuery) Matches(item *Item) bool {
	if item == nil || item.IsTombstone() || item.Type != q.Type {
		return false
	}
	return q.From.IsZero() || !item.Timestamp.Before(q.From)
}
