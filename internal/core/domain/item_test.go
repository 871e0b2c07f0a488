package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItem(t *testing.T) {
	typeID := uuid.New()
	itemID := uuid.New()

	before := time.Now().UTC()
	item := NewItem(typeID, itemID, []byte(`{"x":1}`))

	assert.Equal(t, itemID, item.ItemID)
	assert.Equal(t, typeID, item.Type)
	assert.NotEqual(t, uuid.Nil, item.VersionID)
	assert.NotEqual(t, itemID, item.VersionID)
	assert.False(t, item.IsTombstone())
	assert.Equal(t, time.UTC, item.Timestamp.Location())
	assert.False(t, item.Timestamp.Before(before))
}

func TestNewItem_FreshVersions(t *testing.T) {
	itemID := uuid.New()
	a := NewItem(TypeOfTypesID, itemID, []byte("{}"))
	b := NewItem(TypeOfTypesID, itemID, []byte("{}"))

	assert.Equal(t, a.ItemID, b.ItemID)
	assert.NotEqual(t, a.VersionID, b.VersionID)
}

func TestNewTombstone(t *testing.T) {
	item := NewTombstone(uuid.New(), uuid.New())
	assert.True(t, item.IsTombstone())
	assert.Nil(t, item.Payload)
}

func TestItem_EmptyPayloadIsNotTombstone(t *testing.T) {
	item := NewItem(uuid.New(), uuid.New(), []byte{})
	assert.False(t, item.IsTombstone())
}

func TestItem_Clone(t *testing.T) {
	item := NewItem(uuid.New(), uuid.New(), []byte("abc"))
	clone := item.Clone()

	require.Equal(t, item, clone)
	clone.Payload[0] = 'z'
	assert.Equal(t, []byte("abc"), item.Payload)

	tomb := NewTombstone(uuid.New(), uuid.New()).Clone()
	assert.True(t, tomb.IsTombstone())
}

func TestItemQuery_Matches(t *testing.T) {
	typeID := uuid.New()
	now := time.Now().UTC()

	live := Item{ItemID: uuid.New(), Type: typeID, Timestamp: now, Payload: []byte("{}")}
	old := Item{ItemID: uuid.New(), Type: typeID, Timestamp: now.Add(-time.Hour), Payload: []byte("{}")}
	tomb := Item{ItemID: uuid.New(), Type: typeID, Timestamp: now}
	other := Item{ItemID: uuid.New(), Type: uuid.New(), Timestamp: now, Payload: []byte("{}")}

	t.Run("no time bound", func(t *testing.T) {
		q := ItemQuery{Type: typeID, Limit: -1}
		assert.True(t, q.Matches(&live))
		assert.True(t, q.Matches(&old))
		assert.False(t, q.Matches(&tomb))
		assert.False(t, q.Matches(&other))
		assert.False(t, q.Matches(nil))
		assert.True(t, q.Unbounded())
	})

	t.Run("from filters older versions", func(t *testing.T) {
		q := ItemQuery{Type: typeID, From: now.Add(-time.Minute), Limit: 5}
		assert.True(t, q.Matches(&live))
		assert.False(t, q.Matches(&old))
		assert.False(t, q.Unbounded())
	})
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestWellKnownIDs_Distinct(t *testing.T) {
	ids := []uuid.UUID{SystemStorageID, TypeOfTypesID, PluginTypeID, SystemPluginInstanceID}
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		assert.False(t, seen[id], id.String())
		seen[id] = true
	}
}
