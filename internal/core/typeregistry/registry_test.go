package typeregistry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

func typeItem(t *testing.T, id uuid.UUID, name string) domain.Item {
	t.Helper()
	payload, err := domain.EncodePayload(domain.TypeInfo{DisplayName: name})
	require.NoError(t, err)
	return domain.NewItem(domain.TypeOfTypesID, id, payload)
}

func applyItem(t *testing.T, r *Registry, item domain.Item) {
	t.Helper()
	info, err := r.Validate(item, r.StorageID())
	require.NoError(t, err)
	r.Apply(item, info)
}

func TestNew_Bootstrap(t *testing.T) {
	r := New(domain.SystemStorageID)

	tot := r.TypeOfTypes()
	require.NotNil(t, tot)
	assert.Equal(t, domain.TypeOfTypesID, tot.ID())
	assert.Equal(t, domain.TypeOfTypesName, tot.DisplayName())
	assert.True(t, tot.IsValid())
	assert.Same(t, tot, r.Resolve(domain.TypeOfTypesID))
	assert.Len(t, r.Types(), 1)
}

func TestBootstrapItem(t *testing.T) {
	item := BootstrapItem()

	assert.Equal(t, domain.TypeOfTypesID, item.ItemID)
	assert.Equal(t, domain.TypeOfTypesID, item.Type)
	info, err := domain.DecodeTypeInfo(item.Payload)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeOfTypesName, info.DisplayName)

	r := New(domain.SystemStorageID)
	applyItem(t, r, item)
	assert.Len(t, r.Types(), 1)
}

func TestRegistry_TypeLifecycle(t *testing.T) {
	r := New(domain.SystemStorageID)
	id := uuid.New()

	t.Run("create", func(t *testing.T) {
		applyItem(t, r, typeItem(t, id, "Feeds"))
		h := r.Resolve(id)
		require.NotNil(t, h)
		assert.True(t, h.IsValid())
		assert.Equal(t, "Feeds", h.DisplayName())
		assert.Equal(t, domain.SystemStorageID, h.StorageID())
	})

	t.Run("update in place", func(t *testing.T) {
		before := r.Resolve(id)
		applyItem(t, r, typeItem(t, id, "News"))
		assert.Same(t, before, r.Resolve(id))
		assert.Equal(t, "News", before.DisplayName())
	})

	t.Run("tombstone invalidates", func(t *testing.T) {
		applyItem(t, r, domain.NewTombstone(domain.TypeOfTypesID, id))
		h := r.Resolve(id)
		require.NotNil(t, h)
		assert.False(t, h.IsValid())
		assert.Len(t, r.Types(), 1)
	})
}

func TestRegistry_TombstoneForUnknownTypeIsNoop(t *testing.T) {
	r := New(domain.SystemStorageID)
	id := uuid.New()

	applyItem(t, r, domain.NewTombstone(domain.TypeOfTypesID, id))
	assert.Nil(t, r.Resolve(id))
}

func TestRegistry_Validate(t *testing.T) {
	r := New(domain.SystemStorageID)
	feeds := uuid.New()
	applyItem(t, r, typeItem(t, feeds, "Feeds"))

	t.Run("unknown type", func(t *testing.T) {
		_, err := r.Validate(domain.NewItem(uuid.New(), uuid.New(), []byte("{}")), domain.SystemStorageID)
		assert.ErrorIs(t, err, domain.ErrUnknownType)
	})

	t.Run("wrong storage", func(t *testing.T) {
		_, err := r.Validate(domain.NewItem(feeds, uuid.New(), []byte("{}")), uuid.New())
		assert.ErrorIs(t, err, domain.ErrWrongStorage)
	})

	t.Run("invalid type info", func(t *testing.T) {
		item := domain.NewItem(domain.TypeOfTypesID, uuid.New(), []byte("not json"))
		_, err := r.Validate(item, domain.SystemStorageID)
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
		assert.Nil(t, r.Resolve(item.ItemID))
	})

	t.Run("type of types cannot be tombstoned", func(t *testing.T) {
		_, err := r.Validate(domain.NewTombstone(domain.TypeOfTypesID, domain.TypeOfTypesID), domain.SystemStorageID)
		assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	})

	t.Run("regular item returns no info", func(t *testing.T) {
		info, err := r.Validate(domain.NewItem(feeds, uuid.New(), []byte(`{"x":1}`)), domain.SystemStorageID)
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("deleted type rejects live items but accepts tombstones", func(t *testing.T) {
		gone := uuid.New()
		applyItem(t, r, typeItem(t, gone, "Gone"))
		applyItem(t, r, domain.NewTombstone(domain.TypeOfTypesID, gone))

		_, err := r.Validate(domain.NewItem(gone, uuid.New(), []byte("{}")), domain.SystemStorageID)
		assert.ErrorIs(t, err, domain.ErrUnknownType)

		_, err = r.Validate(domain.NewTombstone(gone, uuid.New()), domain.SystemStorageID)
		assert.NoError(t, err)
	})
}

func TestRegistry_Types_Sorted(t *testing.T) {
	r := New(domain.SystemStorageID)
	applyItem(t, r, typeItem(t, uuid.New(), "Zeta"))
	applyItem(t, r, typeItem(t, uuid.New(), "Alpha"))

	names := make([]string, 0, 3)
	for _, h := range r.Types() {
		names = append(names, h.DisplayName())
	}
	assert.Equal(t, []string{"Alpha", "Zeta", domain.TypeOfTypesName}, names)
}

func TestRegistry_DeleteGuards(t *testing.T) {
	r := New(domain.SystemStorageID)
	id := uuid.New()
	applyItem(t, r, typeItem(t, id, "Feeds"))

	assert.True(t, r.CanDelete(id))
	assert.False(t, r.CanDelete(domain.TypeOfTypesID))
	assert.False(t, r.CanDelete(uuid.New()))

	var asked []uuid.UUID
	remove := r.AddDeleteGuard(func(typeID uuid.UUID) bool {
		asked = append(asked, typeID)
		return typeID != id
	})
	assert.False(t, r.CanDelete(id))
	assert.Equal(t, []uuid.UUID{id}, asked)

	remove()
	remove()
	assert.True(t, r.CanDelete(id))
}

func TestRegistry_Reset(t *testing.T) {
	r := New(domain.SystemStorageID)
	id := uuid.New()
	applyItem(t, r, typeItem(t, id, "Feeds"))
	h := r.Resolve(id)

	r.Reset()
	assert.False(t, h.IsValid())
	assert.True(t, r.TypeOfTypes().IsValid())

	applyItem(t, r, typeItem(t, id, "Feeds"))
	assert.Same(t, h, r.Resolve(id))
	assert.True(t, h.IsValid())
}
