// Package storagetest holds the behavioural test suite every item
// storage backend must pass.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/notify"
)

// Factory returns a fresh user store for one subtest.
type Factory func(t *testing.T) driven.UserConfig

const lockTimeout = time.Second

// Run executes the contract suite against the backend built by newUser.
func Run(t *testing.T, newUser Factory) {
	t.Run("bootstrap type of types", func(t *testing.T) { testBootstrap(t, newUser(t)) })
	t.Run("versions and latest", func(t *testing.T) { testVersions(t, newUser(t)) })
	t.Run("timestamps round trip", func(t *testing.T) { testTimestamps(t, newUser(t)) })
	t.Run("tombstones", func(t *testing.T) { testTombstones(t, newUser(t)) })
	t.Run("unknown ids", func(t *testing.T) { testUnknown(t, newUser(t)) })
	t.Run("query by type", func(t *testing.T) { testQuery(t, newUser(t)) })
	t.Run("type lifecycle", func(t *testing.T) { testTypeLifecycle(t, newUser(t)) })
	t.Run("rejects invalid items", func(t *testing.T) { testRejects(t, newUser(t)) })
	t.Run("lock timeout", func(t *testing.T) { testLockTimeout(t, newUser(t)) })
	t.Run("released lock", func(t *testing.T) { testReleasedLock(t, newUser(t)) })
	t.Run("local notification after release", func(t *testing.T) { testNotify(t, newUser(t)) })
	t.Run("concurrent writers", func(t *testing.T) { testConcurrentWriters(t, newUser(t)) })
	t.Run("scenario", func(t *testing.T) { testScenario(t, newUser(t)) })
}

// DefineType writes a type-defining item and returns its id.
func DefineType(t *testing.T, cfg driven.UserConfig, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	payload, err := domain.EncodePayload(domain.TypeInfo{DisplayName: name})
	require.NoError(t, err)
	Write(t, cfg.SystemStorage(), domain.NewItem(domain.TypeOfTypesID, id, payload))
	return id
}

// Write adds items under one lock.
func Write(t *testing.T, storage driven.ItemStorage, items ...domain.Item) {
	t.Helper()
	err := driven.WithLock(context.Background(), storage, lockTimeout, func(lock driven.StorageLock) error {
		for _, item := range items {
			if err := lock.AddItemVersion(item); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func testBootstrap(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	tot := cfg.Types().TypeOfTypes()
	require.NotNil(t, tot)
	assert.True(t, tot.IsValid())
	assert.Equal(t, domain.TypeOfTypesName, tot.DisplayName())

	item, err := cfg.SystemStorage().GetLatest(ctx, domain.TypeOfTypesID, false)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, domain.TypeOfTypesID, item.Type)

	assert.False(t, cfg.Types().CanDelete(domain.TypeOfTypesID))
	assert.Equal(t, cfg.SystemStorage().StorageID(), cfg.Storages()[0].StorageID())
	assert.NotNil(t, cfg.Storage(cfg.SystemStorage().StorageID()))
	assert.Nil(t, cfg.Storage(uuid.New()))
}

func testVersions(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()
	typeID := DefineType(t, cfg, "Notes")
	itemID := uuid.New()

	v1 := domain.NewItem(typeID, itemID, []byte(`{"x":1}`))
	Write(t, storage, v1)

	got, err := storage.GetVersion(ctx, v1.VersionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assertSameItem(t, v1, *got)

	latest, err := storage.GetLatest(ctx, itemID, true)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, v1.VersionID, latest.VersionID)

	// Older timestamp still wins: latest follows call order.
	v2 := domain.NewItem(typeID, itemID, []byte(`{"x":2}`))
	v2.Timestamp = v1.Timestamp.Add(-time.Hour)
	Write(t, storage, v2)

	latest, err = storage.GetLatest(ctx, itemID, false)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, v2.VersionID, latest.VersionID)
	assert.Equal(t, []byte(`{"x":2}`), latest.Payload)

	old, err := storage.GetVersion(ctx, v1.VersionID)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, []byte(`{"x":1}`), old.Payload)

	history, err := storage.History(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, v1.VersionID, history[0].VersionID)
	assert.Equal(t, v2.VersionID, history[1].VersionID)
}

func testTimestamps(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()
	typeID := DefineType(t, cfg, "Dates")

	stamps := []time.Time{
		{},
		time.Date(1500, time.March, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2300, time.June, 1, 8, 30, 0, 123456789, time.UTC),
		time.Date(2024, time.January, 2, 3, 4, 5, 999999999, time.UTC),
	}
	var items []domain.Item
	for _, ts := range stamps {
		it := domain.NewItem(typeID, uuid.New(), []byte(`{}`))
		it.Timestamp = ts
		items = append(items, it)
	}
	Write(t, storage, items...)

	for _, want := range items {
		got, err := storage.GetVersion(ctx, want.VersionID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assertSameItem(t, want, *got)
	}

	got, err := storage.QueryByType(ctx, domain.ItemQuery{Type: typeID, From: time.Date(2300, time.January, 1, 0, 0, 0, 0, time.UTC), Limit: -1}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, items[2].VersionID, got[0].VersionID)

	got, err = storage.QueryByType(ctx, domain.ItemQuery{Type: typeID, From: stamps[2], Limit: -1}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = storage.QueryByType(ctx, domain.ItemQuery{Type: typeID, From: stamps[2].Add(time.Nanosecond), Limit: -1}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testTombstones(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()
	typeID := DefineType(t, cfg, "Notes")
	itemID := uuid.New()

	Write(t, storage, domain.NewItem(typeID, itemID, []byte(`{}`)))
	tomb := domain.NewTombstone(typeID, itemID)
	Write(t, storage, tomb)

	hidden, err := storage.GetLatest(ctx, itemID, false)
	require.NoError(t, err)
	assert.Nil(t, hidden)

	shown, err := storage.GetLatest(ctx, itemID, true)
	require.NoError(t, err)
	require.NotNil(t, shown)
	assert.True(t, shown.IsTombstone())
	assert.Equal(t, tomb.VersionID, shown.VersionID)

	byVersion, err := storage.GetVersion(ctx, tomb.VersionID)
	require.NoError(t, err)
	require.NotNil(t, byVersion)
	assert.True(t, byVersion.IsTombstone())

	items, err := storage.QueryByType(ctx, domain.ItemQuery{Type: typeID, Limit: -1}, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testUnknown(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()

	item, err := storage.GetLatest(ctx, uuid.New(), true)
	assert.NoError(t, err)
	assert.Nil(t, item)

	item, err = storage.GetVersion(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, item)

	history, err := storage.History(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Empty(t, history)

	assert.Nil(t, cfg.Types().Resolve(uuid.New()))
}

func testQuery(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()
	typeA := DefineType(t, cfg, "A")
	typeB := DefineType(t, cfg, "B")

	base := time.Now().UTC().Add(-time.Hour)
	var itemsA []domain.Item
	for i := 0; i < 5; i++ {
		it := domain.NewItem(typeA, uuid.New(), []byte(`{}`))
		it.Timestamp = base.Add(time.Duration(i) * time.Minute)
		itemsA = append(itemsA, it)
	}
	Write(t, storage, itemsA...)
	Write(t, storage, domain.NewItem(typeB, uuid.New(), []byte(`{}`)))

	t.Run("unbounded", func(t *testing.T) {
		got, err := storage.QueryByType(ctx, domain.ItemQuery{Type: typeA, Limit: -1}, nil)
		require.NoError(t, err)
		assert.Len(t, got, 5)
		for _, it := range got {
			assert.Equal(t, typeA, it.Type)
		}
	})

	t.Run("limit", func(t *testing.T) {
		got, err := storage.QueryByType(ctx, domain.ItemQuery{Type: typeA, Limit: 2}, nil)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("from", func(t *testing.T) {
		got, err := storage.QueryByType(ctx, domain.ItemQuery{Type: typeA, From: base.Add(3 * time.Minute), Limit: -1}, nil)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("appends into buffer", func(t *testing.T) {
		buf := []domain.Item{{ItemID: uuid.Nil}}
		got, err := storage.QueryByType(ctx, domain.ItemQuery{Type: typeB, Limit: -1}, buf)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, uuid.Nil, got[0].ItemID)
		assert.Equal(t, typeB, got[1].Type)
	})

	t.Run("latest version only", func(t *testing.T) {
		updated := domain.NewItem(typeA, itemsA[0].ItemID, []byte(`{"v":2}`))
		Write(t, storage, updated)

		got, err := storage.QueryByType(ctx, domain.ItemQuery{Type: typeA, Limit: -1}, nil)
		require.NoError(t, err)
		assert.Len(t, got, 5)
		found := false
		for _, it := range got {
			if it.ItemID == updated.ItemID {
				found = true
				assert.Equal(t, updated.VersionID, it.VersionID)
			}
		}
		assert.True(t, found)
	})
}

func testTypeLifecycle(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()
	typeID := DefineType(t, cfg, "Feeds")

	h := cfg.Types().Resolve(typeID)
	require.NotNil(t, h)
	assert.True(t, h.IsValid())
	assert.Equal(t, "Feeds", h.DisplayName())
	assert.Equal(t, storage.StorageID(), h.StorageID())

	payload, err := domain.EncodePayload(domain.TypeInfo{DisplayName: "News"})
	require.NoError(t, err)
	Write(t, storage, domain.NewItem(domain.TypeOfTypesID, typeID, payload))
	assert.Same(t, h, cfg.Types().Resolve(typeID))
	assert.Equal(t, "News", h.DisplayName())

	Write(t, storage, domain.NewTombstone(domain.TypeOfTypesID, typeID))
	assert.False(t, h.IsValid())

	types, err := storage.QueryByType(ctx, domain.ItemQuery{Type: domain.TypeOfTypesID, Limit: -1}, nil)
	require.NoError(t, err)
	for _, it := range types {
		assert.NotEqual(t, typeID, it.ItemID)
	}
}

func testRejects(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()

	lock, ok := storage.Lock(ctx, lockTimeout)
	require.True(t, ok)

	err := lock.AddItemVersion(domain.NewItem(uuid.New(), uuid.New(), []byte(`{}`)))
	assert.ErrorIs(t, err, domain.ErrUnknownType)

	bad := domain.NewItem(domain.TypeOfTypesID, uuid.New(), []byte(`nope`))
	err = lock.AddItemVersion(bad)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	err = lock.AddItemVersion(domain.NewTombstone(domain.TypeOfTypesID, domain.TypeOfTypesID))
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	require.NoError(t, lock.Release())

	got, err := storage.GetLatest(ctx, bad.ItemID, true)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, cfg.Types().Resolve(bad.ItemID))
	assert.True(t, cfg.Types().TypeOfTypes().IsValid())
}

func testLockTimeout(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()

	held, ok := storage.Lock(ctx, lockTimeout)
	require.True(t, ok)

	start := time.Now()
	second, ok := storage.Lock(ctx, 50*time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, second)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, ok = storage.Lock(cancelled, lockTimeout)
	assert.False(t, ok)

	err := driven.WithLock(ctx, storage, 10*time.Millisecond, func(driven.StorageLock) error { return nil })
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	require.NoError(t, held.Release())

	again, ok := storage.Lock(ctx, lockTimeout)
	require.True(t, ok)
	require.NoError(t, again.Release())
}

func testReleasedLock(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()
	typeID := DefineType(t, cfg, "Notes")

	lock, ok := storage.Lock(ctx, lockTimeout)
	require.True(t, ok)
	require.NoError(t, lock.Release())

	err := lock.AddItemVersion(domain.NewItem(typeID, uuid.New(), []byte(`{}`)))
	assert.ErrorIs(t, err, domain.ErrLockReleased)
	assert.ErrorIs(t, lock.Release(), domain.ErrLockReleased)
}

func testNotify(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()
	typeA := DefineType(t, cfg, "A")
	typeB := DefineType(t, cfg, "B")

	subA := storage.Subscribe(typeA)
	defer subA.Close()
	subB := storage.Subscribe(typeB)

	var mu sync.Mutex
	var events []notify.ChangeEvent
	record := func(ev notify.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}
	subA.OnLocalChanged(record)
	subB.OnLocalChanged(record)
	subB.Close()

	lock, ok := storage.Lock(ctx, lockTimeout)
	require.True(t, ok)
	require.NoError(t, lock.AddItemVersion(domain.NewItem(typeA, uuid.New(), []byte(`{}`))))
	require.NoError(t, lock.AddItemVersion(domain.NewItem(typeA, uuid.New(), []byte(`{}`))))
	require.NoError(t, lock.AddItemVersion(domain.NewItem(typeB, uuid.New(), []byte(`{}`))))

	mu.Lock()
	assert.Empty(t, events, "no delivery while the lock is held")
	mu.Unlock()

	require.NoError(t, lock.Release())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, typeA, events[0].TypeID)
	assert.False(t, events[0].Remote)
	assert.Equal(t, storage.StorageID(), events[0].StorageID)
}

func testConcurrentWriters(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()
	typeID := DefineType(t, cfg, "Counter")

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- driven.WithLock(ctx, storage, 5*time.Second, func(lock driven.StorageLock) error {
				return lock.AddItemVersion(domain.NewItem(typeID, uuid.New(), []byte(`{}`)))
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := storage.QueryByType(ctx, domain.ItemQuery{Type: typeID, Limit: -1}, nil)
	require.NoError(t, err)
	assert.Len(t, got, writers)
}

func testScenario(t *testing.T, cfg driven.UserConfig) {
	ctx := context.Background()
	storage := cfg.SystemStorage()
	t1 := DefineType(t, cfg, "Feeds")
	a := uuid.New()

	Write(t, storage, domain.NewItem(t1, a, []byte(`{"x":1}`)))
	v2 := domain.NewItem(t1, a, []byte(`{"x":2}`))
	Write(t, storage, v2)

	latest, err := storage.GetLatest(ctx, a, false)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, v2.VersionID, latest.VersionID)

	got, err := storage.QueryByType(ctx, domain.ItemQuery{Type: t1, Limit: -1}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a, got[0].ItemID)
	assert.Equal(t, v2.VersionID, got[0].VersionID)

	Write(t, storage, domain.NewTombstone(t1, a))
	got, err = storage.QueryByType(ctx, domain.ItemQuery{Type: t1, Limit: -1}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func assertSameItem(t *testing.T, want, got domain.Item) {
	t.Helper()
	assert.Equal(t, want.ItemID, got.ItemID)
	assert.Equal(t, want.VersionID, got.VersionID)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Payload, got.Payload)
	assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp %v != %v", want.Timestamp, got.Timestamp)
}
