package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/typeregistry"
	"github.com/custodia-labs/raindrop/internal/notify"
)

// Ensure Storage implements the interface.
var _ driven.ItemStorage = (*Storage)(nil)

// Storage is an in-memory implementation of driven.ItemStorage.
// Each AddItemVersion call is atomically visible to readers.
// Query results are ordered by the first insertion of each item.
type Storage struct {
	id    uuid.UUID
	types *typeregistry.Registry
	hub   *notify.Hub
	sem   chan struct{}

	mu       sync.RWMutex
	versions map[uuid.UUID]domain.Item
	latest   map[uuid.UUID]uuid.UUID
	history  map[uuid.UUID][]uuid.UUID
	order    []uuid.UUID
}

// NewStorage creates a storage whose types are tracked by types.
// If the registry belongs to this storage, the bootstrap type item
// is recorded.
func NewStorage(id uuid.UUID, types *typeregistry.Registry) *Storage {
	s := &Storage{
		id:       id,
		types:    types,
		hub:      notify.NewHub(id),
		sem:      make(chan struct{}, 1),
		versions: make(map[uuid.UUID]domain.Item),
		latest:   make(map[uuid.UUID]uuid.UUID),
		history:  make(map[uuid.UUID][]uuid.UUID),
	}
	if types.StorageID() == id {
		s.record(typeregistry.BootstrapItem())
	}
	return s
}

// StorageID returns the storage id.
func (s *Storage) StorageID() uuid.UUID {
	return s.id
}

// Lock acquires the write lock, waiting at most timeout.
// A non-positive timeout only tries once.
func (s *Storage) Lock(ctx context.Context, timeout time.Duration) (driven.StorageLock, bool) {
	select {
	case s.sem <- struct{}{}:
		return s.newLock(), true
	default:
	}
	if timeout <= 0 {
		return nil, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return s.newLock(), true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

func (s *Storage) newLock() *storageLock {
	return &storageLock{storage: s}
}

// GetLatest returns the latest version of an item.
func (s *Storage) GetLatest(_ context.Context, itemID uuid.UUID, includeDeletion bool) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versionID, ok := s.latest[itemID]
	if !ok {
		return nil, nil
	}
	item := s.versions[versionID]
	if item.IsTombstone() && !includeDeletion {
		return nil, nil
	}
	c := item.Clone()
	return &c, nil
}

// GetVersion returns a specific version.
func (s *Storage) GetVersion(_ context.Context, versionID uuid.UUID) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.versions[versionID]
	if !ok {
		return nil, nil
	}
	c := item.Clone()
	return &c, nil
}

// History returns every version of an item in write order.
func (s *Storage) History(_ context.Context, itemID uuid.UUID) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.history[itemID]
	out := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.versions[id].Clone())
	}
	return out, nil
}

// QueryByType appends the latest live versions matching q to dst.
func (s *Storage) QueryByType(_ context.Context, q domain.ItemQuery, dst []domain.Item) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := 0
	for _, itemID := range s.order {
		if !q.Unbounded() && found >= q.Limit {
			break
		}
		item := s.versions[s.latest[itemID]]
		if !q.Matches(&item) {
			continue
		}
		dst = append(dst, item.Clone())
		found++
	}
	return dst, nil
}

// Subscribe observes changes to items of typeID.
func (s *Storage) Subscribe(typeID uuid.UUID) *notify.Subscription {
	return s.hub.Subscribe(typeID)
}

// MoveType is not supported by the memory backend.
func (s *Storage) MoveType(_ context.Context, _, _ uuid.UUID) error {
	return domain.ErrUnsupported
}

// Len returns the number of stored versions.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions)
}

func (s *Storage) add(item domain.Item) error {
	info, err := s.types.Validate(item, s.id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(item)
	s.types.Apply(item, info)
	return nil
}

func (s *Storage) record(item domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(item)
}

func (s *Storage) recordLocked(item domain.Item) {
	item = item.Clone()
	if _, seen := s.latest[item.ItemID]; !seen {
		s.order = append(s.order, item.ItemID)
	}
	s.versions[item.VersionID] = item
	s.latest[item.ItemID] = item.VersionID
	s.history[item.ItemID] = append(s.history[item.ItemID], item.VersionID)
}

func (s *Storage) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = make(map[uuid.UUID]domain.Item)
	s.latest = make(map[uuid.UUID]uuid.UUID)
	s.history = make(map[uuid.UUID][]uuid.UUID)
	s.order = nil
}

// storageLock is a held write lock on a memory storage.
type storageLock struct {
	storage *Storage

	mu       sync.Mutex
	released bool
	touched  []uuid.UUID
}

func (l *storageLock) AddItemVersion(item domain.Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return domain.ErrLockReleased
	}
	if err := l.storage.add(item); err != nil {
		return err
	}
	l.touched = append(l.touched, item.Type)
	return nil
}

func (l *storageLock) Release() error {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return domain.ErrLockReleased
	}
	l.released = true
	touched := l.touched
	l.mu.Unlock()

	<-l.storage.sem
	l.storage.hub.PublishLocal(touched...)
	return nil
}
