package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
	"github.com/custodia-labs/raindrop/internal/logger"
)

// Ensure TypeService implements the interface.
var _ driving.TypeService = (*TypeService)(nil)

// TypeService manages user-defined types of a user store.
type TypeService struct {
	cfg         driven.UserConfig
	lockTimeout time.Duration
}

// NewTypeService creates a type service.
func NewTypeService(cfg driven.UserConfig, lockTimeout time.Duration) *TypeService {
	if lockTimeout <= 0 {
		lockTimeout = domain.DefaultLockTimeout
	}
	return &TypeService{cfg: cfg, lockTimeout: lockTimeout}
}

// CreateType defines a new type in the system storage.
func (s *TypeService) CreateType(ctx context.Context, info domain.TypeInfo) (*domain.TypeHandle, error) {
	if err := validateTypeInfo(info); err != nil {
		return nil, err
	}

	id := domain.NewID()
	if err := s.writeType(ctx, id, info); err != nil {
		return nil, fmt.Errorf("creating type %q: %w", info.DisplayName, err)
	}
	logger.Debug("created type %q (%s)", info.DisplayName, id)
	return s.cfg.Types().Resolve(id), nil
}

// UpdateType writes a new version of a type's defining item.
func (s *TypeService) UpdateType(ctx context.Context, typeID uuid.UUID, info domain.TypeInfo) error {
	if typeID == domain.TypeOfTypesID {
		return fmt.Errorf("%w: the type of types is immutable", domain.ErrInvalidOperation)
	}
	if err := validateTypeInfo(info); err != nil {
		return err
	}
	if h := s.cfg.Types().Resolve(typeID); h == nil || !h.IsValid() {
		return fmt.Errorf("%w: type %s", domain.ErrNotFound, typeID)
	}
	return s.writeType(ctx, typeID, info)
}

func (s *TypeService) writeType(ctx context.Context, typeID uuid.UUID, info domain.TypeInfo) error {
	payload, err := domain.EncodePayload(info)
	if err != nil {
		return err
	}
	return driven.WithLock(ctx, s.cfg.SystemStorage(), s.lockTimeout, func(lock driven.StorageLock) error {
		return lock.AddItemVersion(domain.NewItem(domain.TypeOfTypesID, typeID, payload))
	})
}

// TryDelete deletes a type that has no live items and that no guard
// protects. It returns false without changes otherwise.
func (s *TypeService) TryDelete(ctx context.Context, typeID uuid.UUID) (bool, error) {
	types := s.cfg.Types()
	if typeID == domain.PluginTypeID || !types.CanDelete(typeID) {
		return false, nil
	}
	h := types.Resolve(typeID)

	system := s.cfg.SystemStorage()
	storages := []driven.ItemStorage{system}
	if target := s.cfg.Storage(h.StorageID()); target != nil && target.StorageID() != system.StorageID() {
		storages = append(storages, target)
	}

	locks, err := lockInOrder(ctx, storages, s.lockTimeout)
	if err != nil {
		return false, err
	}
	defer func() {
		for _, l := range locks {
			_ = l.lock.Release()
		}
	}()

	// Re-check under the lock: a plugin may have claimed it meanwhile.
	if !types.CanDelete(typeID) {
		return false, nil
	}
	for _, storage := range s.cfg.Storages() {
		live, err := storage.QueryByType(ctx, domain.ItemQuery{Type: typeID, Limit: 1}, nil)
		if err != nil {
			return false, fmt.Errorf("checking items of type %s: %w", typeID, err)
		}
		if len(live) > 0 {
			return false, nil
		}
	}

	for _, l := range locks {
		if l.storage.StorageID() == system.StorageID() {
			if err := l.lock.AddItemVersion(domain.NewTombstone(domain.TypeOfTypesID, typeID)); err != nil {
				return false, err
			}
		}
	}
	logger.Debug("deleted type %s", typeID)
	return true, nil
}

// ListTypes returns the valid types.
func (s *TypeService) ListTypes() []*domain.TypeHandle {
	return s.cfg.Types().Types()
}

// Resolve returns the handle of a type, or nil.
func (s *TypeService) Resolve(typeID uuid.UUID) *domain.TypeHandle {
	return s.cfg.Types().Resolve(typeID)
}

// FindByName returns the valid types whose display name matches name,
// ignoring case.
func (s *TypeService) FindByName(name string) []*domain.TypeHandle {
	var out []*domain.TypeHandle
	for _, h := range s.cfg.Types().Types() {
		if strings.EqualFold(h.DisplayName(), name) {
			out = append(out, h)
		}
	}
	return out
}

func validateTypeInfo(info domain.TypeInfo) error {
	if strings.TrimSpace(info.DisplayName) == "" {
		return fmt.Errorf("%w: type display name is required", domain.ErrInvalidInput)
	}
	return nil
}

type heldLock struct {
	storage driven.ItemStorage
	lock    driven.StorageLock
}

// lockInOrder acquires the write locks of storages in storage id order.
// On failure every lock taken so far is released.
func lockInOrder(ctx context.Context, storages []driven.ItemStorage, timeout time.Duration) ([]heldLock, error) {
	sorted := append([]driven.ItemStorage(nil), storages...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StorageID().String() < sorted[j].StorageID().String()
	})

	held := make([]heldLock, 0, len(sorted))
	for _, storage := range sorted {
		lock, ok := storage.Lock(ctx, timeout)
		if !ok {
			for _, h := range held {
				_ = h.lock.Release()
			}
			return nil, fmt.Errorf("%w: storage %s", domain.ErrLockTimeout, storage.StorageID())
		}
		held = append(held, heldLock{storage: storage, lock: lock})
	}
	return held, nil
}
