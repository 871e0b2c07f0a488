package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/storagetest"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

func TestStorage_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) driven.UserConfig {
		return NewUserConfig(domain.LocalUser)
	})
}

func TestStorage_QueryOrderIsFirstInsertion(t *testing.T) {
	ctx := context.Background()
	cfg := NewUserConfig(domain.LocalUser)
	typeID := storagetest.DefineType(t, cfg, "Ordered")

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		storagetest.Write(t, cfg.SystemStorage(), domain.NewItem(typeID, id, []byte(`{}`)))
	}
	// Updating the first item does not move it to the end.
	storagetest.Write(t, cfg.SystemStorage(), domain.NewItem(typeID, ids[0], []byte(`{"v":2}`)))

	got, err := cfg.SystemStorage().QueryByType(ctx, domain.ItemQuery{Type: typeID, Limit: -1}, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, id := range ids {
		assert.Equal(t, id, got[i].ItemID)
	}
}

func TestStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cfg := NewUserConfig(domain.LocalUser)
	typeID := storagetest.DefineType(t, cfg, "Copies")
	item := domain.NewItem(typeID, uuid.New(), []byte(`abc`))
	storagetest.Write(t, cfg.SystemStorage(), item)

	got, err := cfg.SystemStorage().GetLatest(ctx, item.ItemID, false)
	require.NoError(t, err)
	got.Payload[0] = 'z'

	again, err := cfg.SystemStorage().GetLatest(ctx, item.ItemID, false)
	require.NoError(t, err)
	assert.Equal(t, []byte(`abc`), again.Payload)
}

func TestStorage_MoveTypeUnsupported(t *testing.T) {
	cfg := NewUserConfig(domain.LocalUser)
	err := cfg.SystemStorage().MoveType(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestStorage_ZeroTimeoutTriesOnce(t *testing.T) {
	ctx := context.Background()
	s := NewUserConfig(domain.LocalUser).system

	lock, ok := s.Lock(ctx, 0)
	require.True(t, ok)

	_, ok = s.Lock(ctx, 0)
	assert.False(t, ok)

	require.NoError(t, lock.Release())
}

func TestStorage_BootstrapRecordedOnce(t *testing.T) {
	cfg := NewUserConfig(domain.LocalUser)
	assert.Equal(t, 1, cfg.system.Len())
}
