package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/raindrop/internal/core/domain"
)

func TestTypeService_CreateUpdate(t *testing.T) {
	ctx := context.Background()
	cfg := memory.NewUserConfig(domain.LocalUser)
	svc := NewTypeService(cfg, 0)

	h, err := svc.CreateType(ctx, domain.TypeInfo{DisplayName: "Articles"})
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.True(t, h.IsValid())
	assert.Same(t, h, svc.Resolve(h.ID()))

	require.NoError(t, svc.UpdateType(ctx, h.ID(), domain.TypeInfo{DisplayName: "Posts"}))
	assert.Equal(t, "Posts", h.DisplayName())
	assert.Len(t, svc.FindByName("posts"), 1)

	_, err = svc.CreateType(ctx, domain.TypeInfo{DisplayName: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.UpdateType(ctx, uuid.New(), domain.TypeInfo{DisplayName: "x"}), domain.ErrNotFound)
	assert.ErrorIs(t, svc.UpdateType(ctx, domain.TypeOfTypesID, domain.TypeInfo{DisplayName: "x"}),
		domain.ErrInvalidOperation)

	names := make([]string, 0)
	for _, typ := range svc.ListTypes() {
		names = append(names, typ.DisplayName())
	}
	assert.Contains(t, names, "Posts")
}

func TestTypeService_TryDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("unused type", func(t *testing.T) {
		cfg := memory.NewUserConfig(domain.LocalUser)
		svc := NewTypeService(cfg, 0)
		h, err := svc.CreateType(ctx, domain.TypeInfo{DisplayName: "Empty"})
		require.NoError(t, err)

		ok, err := svc.TryDelete(ctx, h.ID())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, h.IsValid())
		assert.Nil(t, svc.FindByName("Empty"))
	})

	t.Run("type with live items", func(t *testing.T) {
		cfg := memory.NewUserConfig(domain.LocalUser)
		svc := NewTypeService(cfg, 0)
		items := NewItemService(cfg, 0)
		h, err := svc.CreateType(ctx, domain.TypeInfo{DisplayName: "Full"})
		require.NoError(t, err)
		item, err := items.Put(ctx, h.ID(), uuid.Nil, []byte(`{}`))
		require.NoError(t, err)

		ok, err := svc.TryDelete(ctx, h.ID())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, h.IsValid())

		// Deleting the last item makes the type deletable.
		require.NoError(t, items.Delete(ctx, item.ItemID))
		ok, err = svc.TryDelete(ctx, h.ID())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("protected types", func(t *testing.T) {
		m, cfg, err := newReadyManager(ctx)
		require.NoError(t, err)
		defer m.Dispose()
		svc := NewTypeService(cfg, 0)

		for _, id := range []uuid.UUID{domain.TypeOfTypesID, domain.PluginTypeID, uuid.New()} {
			ok, err := svc.TryDelete(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok, id.String())
		}
	})

	t.Run("guard veto", func(t *testing.T) {
		cfg := memory.NewUserConfig(domain.LocalUser)
		svc := NewTypeService(cfg, 0)
		h, err := svc.CreateType(ctx, domain.TypeInfo{DisplayName: "Guarded"})
		require.NoError(t, err)
		remove := cfg.Types().AddDeleteGuard(func(id uuid.UUID) bool { return id != h.ID() })

		ok, err := svc.TryDelete(ctx, h.ID())
		require.NoError(t, err)
		assert.False(t, ok)

		remove()
		ok, err = svc.TryDelete(ctx, h.ID())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("lock timeout", func(t *testing.T) {
		cfg := memory.NewUserConfig(domain.LocalUser)
		svc := NewTypeService(cfg, 20*time.Millisecond)
		h, err := svc.CreateType(ctx, domain.TypeInfo{DisplayName: "Busy"})
		require.NoError(t, err)

		lock, ok := cfg.SystemStorage().Lock(ctx, 0)
		require.True(t, ok)
		defer func() { _ = lock.Release() }()

		_, err = svc.TryDelete(ctx, h.ID())
		assert.ErrorIs(t, err, domain.ErrLockTimeout)
	})
}
