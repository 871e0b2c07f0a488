package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/raindrop/internal/core/domain"
)

func newItemFixture(t *testing.T) (*ItemService, uuid.UUID) {
	t.Helper()
	cfg := memory.NewUserConfig(domain.LocalUser)
	h, err := NewTypeService(cfg, 0).CreateType(context.Background(), domain.TypeInfo{DisplayName: "Notes"})
	require.NoError(t, err)
	return NewItemService(cfg, 0), h.ID()
}

func TestItemService_PutGetHistory(t *testing.T) {
	ctx := context.Background()
	svc, typeID := newItemFixture(t)

	first, err := svc.Put(ctx, typeID, uuid.Nil, []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ItemID)

	second, err := svc.Put(ctx, typeID, first.ItemID, []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.Equal(t, first.ItemID, second.ItemID)
	assert.NotEqual(t, first.VersionID, second.VersionID)

	latest, err := svc.Get(ctx, first.ItemID, false)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, []byte(`{"v":2}`), latest.Payload)

	old, err := svc.GetVersion(ctx, first.VersionID)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, []byte(`{"v":1}`), old.Payload)

	history, err := svc.History(ctx, first.ItemID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.VersionID, history[0].VersionID)

	missing, err := svc.Get(ctx, uuid.New(), true)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestItemService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, typeID := newItemFixture(t)

	item, err := svc.Put(ctx, typeID, uuid.Nil, []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, item.ItemID))

	live, err := svc.Get(ctx, item.ItemID, false)
	require.NoError(t, err)
	assert.Nil(t, live)

	tomb, err := svc.Get(ctx, item.ItemID, true)
	require.NoError(t, err)
	require.NotNil(t, tomb)
	assert.True(t, tomb.IsTombstone())

	assert.ErrorIs(t, svc.Delete(ctx, item.ItemID), domain.ErrNotFound)
}

func TestItemService_List(t *testing.T) {
	ctx := context.Background()
	svc, typeID := newItemFixture(t)

	for i := 0; i < 3; i++ {
		_, err := svc.Put(ctx, typeID, uuid.Nil, []byte(`{}`))
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, domain.ItemQuery{Type: typeID})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := svc.List(ctx, domain.ItemQuery{Type: typeID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = svc.List(ctx, domain.ItemQuery{Type: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrUnknownType)
}

func TestItemService_Rejects(t *testing.T) {
	ctx := context.Background()
	svc, typeID := newItemFixture(t)

	_, err := svc.Put(ctx, uuid.New(), uuid.Nil, []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrUnknownType)

	_, err = svc.Put(ctx, typeID, uuid.Nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = svc.Put(ctx, domain.TypeOfTypesID, uuid.Nil, []byte(`{"display_name":"x"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = svc.Put(ctx, domain.PluginTypeID, uuid.Nil, []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestItemService_Subscribe(t *testing.T) {
	ctx := context.Background()
	svc, typeID := newItemFixture(t)

	sub, err := svc.Subscribe(typeID)
	require.NoError(t, err)
	events := sub.Channel(4)

	_, err = svc.Put(ctx, typeID, uuid.Nil, []byte(`{}`))
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, typeID, ev.TypeID)
		assert.False(t, ev.Remote)
	default:
		t.Fatal("expected a change event after Put")
	}

	sub.Close()
	_, err = svc.Put(ctx, typeID, uuid.Nil, []byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = svc.Subscribe(uuid.New())
	assert.ErrorIs(t, err, domain.ErrUnknownType)

	types, err := svc.Subscribe(domain.TypeOfTypesID)
	require.NoError(t, err)
	types.Close()
}
