package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

// Ensure pluginRegistration implements the interface.
var _ driven.HandlerRegistry = (*pluginRegistration)(nil)

// pluginRegistration is the in-memory record a loaded plugin leaves
// behind. It is also the registry the plugin registers through.
// Registration stays open while the plugin is loaded.
type pluginRegistration struct {
	manager    *PluginManager
	instanceID uuid.UUID
	info       domain.PluginInstanceInfo
	plugin     driven.Plugin
	system     bool

	mu       sync.RWMutex
	closed   bool
	typeIDs  map[uuid.UUID]struct{}
	elements []*domain.SideBarElement
	tasks    []*pluginTask
}

func newPluginRegistration(m *PluginManager, id uuid.UUID, info domain.PluginInstanceInfo, p driven.Plugin) *pluginRegistration {
	return &pluginRegistration{
		manager:    m,
		instanceID: id,
		info:       info,
		plugin:     p,
		system:     id == domain.SystemPluginInstanceID,
		typeIDs:    make(map[uuid.UUID]struct{}),
	}
}

func (r *pluginRegistration) InstanceID() uuid.UUID {
	return r.instanceID
}

func (r *pluginRegistration) InstanceInfo() domain.PluginInstanceInfo {
	return r.info
}

func (r *pluginRegistration) UserConfig() driven.UserConfig {
	return r.manager.cfg
}

func (r *pluginRegistration) RegisterTypeID(typeID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ErrRegistrationClosed
	}
	r.typeIDs[typeID] = struct{}{}
	return nil
}

func (r *pluginRegistration) RegisterStaticType(
	ctx context.Context,
	typeID uuid.UUID,
	info domain.TypeInfo,
) (*domain.TypeHandle, error) {
	if r.isClosed() {
		return nil, domain.ErrRegistrationClosed
	}
	if typeID == uuid.Nil || typeID == domain.TypeOfTypesID {
		return nil, fmt.Errorf("%w: reserved type id %s", domain.ErrInvalidInput, typeID)
	}

	cfg := r.manager.cfg
	if h := cfg.Types().Resolve(typeID); h == nil || !h.IsValid() {
		err := driven.WithLock(ctx, cfg.SystemStorage(), r.manager.lockTimeout, func(lock driven.StorageLock) error {
			// Another writer may have created it while we waited.
			if h := cfg.Types().Resolve(typeID); h != nil && h.IsValid() {
				return nil
			}
			payload, err := domain.EncodePayload(info)
			if err != nil {
				return err
			}
			return lock.AddItemVersion(domain.NewItem(domain.TypeOfTypesID, typeID, payload))
		})
		if err != nil {
			return nil, fmt.Errorf("registering static type %s: %w", typeID, err)
		}
	}

	if err := r.RegisterTypeID(typeID); err != nil {
		return nil, err
	}
	return cfg.Types().Resolve(typeID), nil
}

func (r *pluginRegistration) RegisterSideBarElement(el *domain.SideBarElement) error {
	if el == nil {
		return fmt.Errorf("%w: nil side bar element", domain.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ErrRegistrationClosed
	}
	r.elements = append(r.elements, el)
	return nil
}

func (r *pluginRegistration) RegisterScheduledTask(name string, action driven.TaskFunc, interval time.Duration) error {
	if action == nil {
		return fmt.Errorf("%w: nil task action", domain.ErrInvalidInput)
	}
	if interval <= 0 {
		return fmt.Errorf("%w: task interval must be positive", domain.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ErrRegistrationClosed
	}
	if name == "" {
		name = fmt.Sprintf("task-%d", len(r.tasks)+1)
	}
	r.tasks = append(r.tasks, &pluginTask{
		pluginID: r.instanceID,
		name:     name,
		interval: interval,
		action:   action,
	})
	return nil
}

// claims reports whether the plugin owns typeID.
func (r *pluginRegistration) claims(typeID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.typeIDs[typeID]
	return ok
}

func (r *pluginRegistration) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// close rejects further registration and runs the plugin's unload hook.
func (r *pluginRegistration) close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	if u, ok := r.plugin.(driven.Unloader); ok {
		u.Unload()
	}
}

func (r *pluginRegistration) summary() domain.LoadedPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lp := domain.LoadedPlugin{
		InstanceID: r.instanceID,
		Info:       r.info,
		System:     r.system,
		TypeIDs:    make([]uuid.UUID, 0, len(r.typeIDs)),
		Tasks:      make([]string, 0, len(r.tasks)),
	}
	for id := range r.typeIDs {
		lp.TypeIDs = append(lp.TypeIDs, id)
	}
	sort.Slice(lp.TypeIDs, func(i, j int) bool { return lp.TypeIDs[i].String() < lp.TypeIDs[j].String() })
	for _, t := range r.tasks {
		lp.Tasks = append(lp.Tasks, t.name)
	}
	return lp
}

func (r *pluginRegistration) sideBar() []*domain.SideBarElement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*domain.SideBarElement(nil), r.elements...)
}

func (r *pluginRegistration) scheduled() []*pluginTask {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*pluginTask(nil), r.tasks...)
}
