package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/storagetest"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/notify"
)

func setupTestUser(t *testing.T, dir string) *UserConfig {
	t.Helper()
	cfg, err := OpenUserConfig(domain.LocalUser, dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cfg.Close() })
	return cfg
}

func TestStore_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) driven.UserConfig {
		return setupTestUser(t, t.TempDir())
	})
}

func TestNewStore_EmptyDir(t *testing.T) {
	_, err := OpenUserConfig(domain.LocalUser, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg, err := OpenUserConfig(domain.LocalUser, dir)
	require.NoError(t, err)
	typeID := storagetest.DefineType(t, cfg, "Bookmarks")
	item := domain.NewItem(typeID, uuid.New(), []byte(`{"url":"https://example.com"}`))
	empty := domain.NewItem(typeID, uuid.New(), []byte{})
	storagetest.Write(t, cfg.SystemStorage(), item, empty)
	require.NoError(t, cfg.Close())

	reopened := setupTestUser(t, dir)
	handle := reopened.Types().Resolve(typeID)
	require.NotNil(t, handle)
	assert.True(t, handle.IsValid())
	assert.Equal(t, "Bookmarks", handle.DisplayName())

	got, err := reopened.SystemStorage().GetLatest(ctx, item.ItemID, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.VersionID, got.VersionID)
	assert.Equal(t, item.Payload, got.Payload)
	assert.True(t, item.Timestamp.Equal(got.Timestamp))

	gotEmpty, err := reopened.SystemStorage().GetLatest(ctx, empty.ItemID, false)
	require.NoError(t, err)
	require.NotNil(t, gotEmpty)
	assert.NotNil(t, gotEmpty.Payload)
	assert.False(t, gotEmpty.IsTombstone())

	// Only one bootstrap item is ever written.
	history, err := reopened.SystemStorage().History(ctx, domain.TypeOfTypesID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStore_TombstoneSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg, err := OpenUserConfig(domain.LocalUser, dir)
	require.NoError(t, err)
	typeID := storagetest.DefineType(t, cfg, "Temporary")
	storagetest.Write(t, cfg.SystemStorage(), domain.NewTombstone(domain.TypeOfTypesID, typeID))
	require.NoError(t, cfg.Close())

	reopened := setupTestUser(t, dir)
	assert.Nil(t, reopened.Types().Resolve(typeID))

	got, err := reopened.SystemStorage().GetLatest(ctx, typeID, true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsTombstone())
}

func TestStore_SyncRemote(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local := setupTestUser(t, dir)
	remote := setupTestUser(t, dir)

	typeID := storagetest.DefineType(t, remote, "Shared")
	require.NoError(t, local.Store().SyncRemote(ctx))
	require.NotNil(t, local.Types().Resolve(typeID), "type written by the other process is known")

	sub := local.SystemStorage().Subscribe(typeID)
	defer sub.Close()
	var mu sync.Mutex
	var events []notify.ChangeEvent
	sub.OnRemoteChanged(func(ev notify.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})
	sub.OnLocalChanged(func(ev notify.ChangeEvent) {
		t.Errorf("unexpected local event for %s", ev.TypeID)
	})

	item := domain.NewItem(typeID, uuid.New(), []byte(`{}`))
	storagetest.Write(t, remote.SystemStorage(), item)
	require.NoError(t, local.Store().SyncRemote(ctx))

	mu.Lock()
	require.Len(t, events, 1)
	assert.Equal(t, typeID, events[0].TypeID)
	mu.Unlock()

	// Nothing new: no further event.
	require.NoError(t, local.Store().SyncRemote(ctx))
	mu.Lock()
	assert.Len(t, events, 1)
	mu.Unlock()

	got, err := local.SystemStorage().GetLatest(ctx, item.ItemID, false)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestStore_LockCatchesUpRemoteWrites(t *testing.T) {
	dir := t.TempDir()
	local := setupTestUser(t, dir)
	remote := setupTestUser(t, dir)

	typeID := storagetest.DefineType(t, remote, "Late")
	assert.Nil(t, local.Types().Resolve(typeID))

	// Writing an item of the remote type is valid once the lock is held.
	storagetest.Write(t, local.SystemStorage(), domain.NewItem(typeID, uuid.New(), []byte(`{}`)))
	assert.NotNil(t, local.Types().Resolve(typeID))
}

func TestStore_LockExcludesOtherConnections(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := setupTestUser(t, dir)
	b := setupTestUser(t, dir)

	lock, ok := a.SystemStorage().Lock(ctx, time.Second)
	require.True(t, ok)

	_, ok = b.SystemStorage().Lock(ctx, 50*time.Millisecond)
	assert.False(t, ok, "second store must not get the write lock")

	require.NoError(t, lock.Release())
	lockB, ok := b.SystemStorage().Lock(ctx, time.Second)
	require.True(t, ok)
	require.NoError(t, lockB.Release())
}

func TestStore_WatchDeliversRemoteChanges(t *testing.T) {
	dir := t.TempDir()
	local := setupTestUser(t, dir)
	remote := setupTestUser(t, dir)
	require.NoError(t, local.Store().Watch())
	require.NoError(t, local.Store().Watch())

	typeID := storagetest.DefineType(t, remote, "Watched")
	assert.Eventually(t, func() bool {
		return local.Types().Resolve(typeID) != nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStore_MoveTypeUnsupported(t *testing.T) {
	cfg := setupTestUser(t, t.TempDir())
	err := cfg.SystemStorage().MoveType(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}
