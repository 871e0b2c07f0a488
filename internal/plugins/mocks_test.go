package plugins

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

// stubRegistry writes static types straight to storage and keeps the
// rest of the registrations in memory.
type stubRegistry struct {
	id       uuid.UUID
	cfg      driven.UserConfig
	elements []*domain.SideBarElement
	tasks    map[string]driven.TaskFunc
}

func (r *stubRegistry) InstanceID() uuid.UUID { return r.id }

func (r *stubRegistry) InstanceInfo() domain.PluginInstanceInfo {
	return domain.PluginInstanceInfo{PluginName: FeedPluginName}
}

func (r *stubRegistry) UserConfig() driven.UserConfig { return r.cfg }

func (r *stubRegistry) RegisterTypeID(uuid.UUID) error { return nil }

func (r *stubRegistry) RegisterStaticType(ctx context.Context, typeID uuid.UUID, info domain.TypeInfo) (*domain.TypeHandle, error) {
	if h := r.cfg.Types().Resolve(typeID); h != nil && h.IsValid() {
		return h, nil
	}
	payload, err := domain.EncodePayload(info)
	if err != nil {
		return nil, err
	}
	err = driven.WithLock(ctx, r.cfg.SystemStorage(), time.Second, func(lock driven.StorageLock) error {
		return lock.AddItemVersion(domain.NewItem(domain.TypeOfTypesID, typeID, payload))
	})
	if err != nil {
		return nil, err
	}
	return r.cfg.Types().Resolve(typeID), nil
}

func (r *stubRegistry) RegisterSideBarElement(el *domain.SideBarElement) error {
	r.elements = append(r.elements, el)
	return nil
}

func (r *stubRegistry) RegisterScheduledTask(name string, action driven.TaskFunc, _ time.Duration) error {
	if r.tasks == nil {
		r.tasks = make(map[string]driven.TaskFunc)
	}
	r.tasks[name] = action
	return nil
}
