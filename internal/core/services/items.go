package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
	"github.com/custodia-labs/raindrop/internal/notify"
)

// Ensure ItemService implements the interface.
var _ driving.ItemService = (*ItemService)(nil)

// ItemService reads and writes items of user-defined types.
// Type items and plugin descriptors are managed by TypeService and
// PluginManager.
type ItemService struct {
	cfg         driven.UserConfig
	lockTimeout time.Duration
}

// NewItemService creates an item service.
func NewItemService(cfg driven.UserConfig, lockTimeout time.Duration) *ItemService {
	if lockTimeout <= 0 {
		lockTimeout = domain.DefaultLockTimeout
	}
	return &ItemService{cfg: cfg, lockTimeout: lockTimeout}
}

// Put writes a new version of an item. A nil itemID allocates one.
func (s *ItemService) Put(ctx context.Context, typeID, itemID uuid.UUID, payload []byte) (*domain.Item, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: payload is required", domain.ErrInvalidPayload)
	}
	storage, err := s.storageFor(typeID)
	if err != nil {
		return nil, err
	}
	if itemID == uuid.Nil {
		itemID = domain.NewID()
	}

	item := domain.NewItem(typeID, itemID, payload)
	err = driven.WithLock(ctx, storage, s.lockTimeout, func(lock driven.StorageLock) error {
		existing, err := storage.GetLatest(ctx, itemID, true)
		if err != nil {
			return err
		}
		if existing != nil && existing.Type != typeID {
			return fmt.Errorf("%w: item %s has type %s", domain.ErrInvalidInput, itemID, existing.Type)
		}
		return lock.AddItemVersion(item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete writes a tombstone for an item.
func (s *ItemService) Delete(ctx context.Context, itemID uuid.UUID) error {
	item, storage, err := s.find(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("%w: item %s", domain.ErrNotFound, itemID)
	}
	if err := checkUserType(item.Type); err != nil {
		return err
	}
	return driven.WithLock(ctx, storage, s.lockTimeout, func(lock driven.StorageLock) error {
		return lock.AddItemVersion(domain.NewTombstone(item.Type, itemID))
	})
}

// Get returns the latest version of an item, or nil.
func (s *ItemService) Get(ctx context.Context, itemID uuid.UUID, includeDeletion bool) (*domain.Item, error) {
	for _, storage := range s.cfg.Storages() {
		item, err := storage.GetLatest(ctx, itemID, includeDeletion)
		if err != nil || item != nil {
			return item, err
		}
	}
	return nil, nil
}

// GetVersion returns a specific version, or nil.
func (s *ItemService) GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.Item, error) {
	for _, storage := range s.cfg.Storages() {
		item, err := storage.GetVersion(ctx, versionID)
		if err != nil || item != nil {
			return item, err
		}
	}
	return nil, nil
}

// History returns every version of an item in write order.
func (s *ItemService) History(ctx context.Context, itemID uuid.UUID) ([]domain.Item, error) {
	for _, storage := range s.cfg.Storages() {
		versions, err := storage.History(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if len(versions) > 0 {
			return versions, nil
		}
	}
	return nil, nil
}

// List returns the latest live items matching q.
func (s *ItemService) List(ctx context.Context, q domain.ItemQuery) ([]domain.Item, error) {
	h := s.cfg.Types().Resolve(q.Type)
	if h == nil {
		return nil, fmt.Errorf("%w: type %s", domain.ErrUnknownType, q.Type)
	}
	storage := s.cfg.Storage(h.StorageID())
	if storage == nil {
		return nil, fmt.Errorf("%w: storage %s", domain.ErrStorageUnavailable, h.StorageID())
	}
	return storage.QueryByType(ctx, q, nil)
}

// Subscribe observes changes to the items of typeID in its storage.
// System types can be observed too.
func (s *ItemService) Subscribe(typeID uuid.UUID) (*notify.Subscription, error) {
	h := s.cfg.Types().Resolve(typeID)
	if h == nil || !h.IsValid() {
		return nil, fmt.Errorf("%w: type %s", domain.ErrUnknownType, typeID)
	}
	storage := s.cfg.Storage(h.StorageID())
	if storage == nil {
		return nil, fmt.Errorf("%w: storage %s", domain.ErrStorageUnavailable, h.StorageID())
	}
	return storage.Subscribe(typeID), nil
}

// find returns the latest live version of an item and its storage.
func (s *ItemService) find(ctx context.Context, itemID uuid.UUID) (*domain.Item, driven.ItemStorage, error) {
	for _, storage := range s.cfg.Storages() {
		item, err := storage.GetLatest(ctx, itemID, false)
		if err != nil {
			return nil, nil, err
		}
		if item != nil {
			return item, storage, nil
		}
	}
	return nil, nil, nil
}

// storageFor resolves the storage that holds items of typeID.
func (s *ItemService) storageFor(typeID uuid.UUID) (driven.ItemStorage, error) {
	if err := checkUserType(typeID); err != nil {
		return nil, err
	}
	h := s.cfg.Types().Resolve(typeID)
	if h == nil || !h.IsValid() {
		return nil, fmt.Errorf("%w: type %s", domain.ErrUnknownType, typeID)
	}
	storage := s.cfg.Storage(h.StorageID())
	if storage == nil {
		return nil, fmt.Errorf("%w: storage %s", domain.ErrStorageUnavailable, h.StorageID())
	}
	return storage, nil
}

func checkUserType(typeID uuid.UUID) error {
	switch typeID {
	case domain.TypeOfTypesID:
		return fmt.Errorf("%w: types are managed through the type service", domain.ErrInvalidOperation)
	case domain.PluginTypeID:
		return fmt.Errorf("%w: plugin instances are managed through the plugin manager", domain.ErrInvalidOperation)
	}
	return nil
}
