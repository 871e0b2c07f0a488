package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
	"github.com/custodia-labs/raindrop/internal/logger"
)

// Ensure PluginManager implements the interface.
var _ driving.PluginService = (*PluginManager)(nil)

// systemPluginName is the instance name of the built-in plugin.
const systemPluginName = "system"

// PluginManager owns the plugin instances of one user store.
//
// Lock ordering: a storage lock is always taken before mu.
type PluginManager struct {
	cfg         driven.UserConfig
	lockTimeout time.Duration
	system      driven.Plugin

	mu          sync.RWMutex
	state       domain.PluginManagerState
	providers   []driven.PluginProvider
	plugins     map[uuid.UUID]*pluginRegistration
	removeGuard func()
}

// PluginManagerOption configures a PluginManager.
type PluginManagerOption func(*PluginManager)

// WithLockTimeout sets how long write-lock acquisition may wait.
func WithLockTimeout(d time.Duration) PluginManagerOption {
	return func(m *PluginManager) {
		m.lockTimeout = d
	}
}

// WithProviders sets the plugin providers in lookup order.
func WithProviders(providers ...driven.PluginProvider) PluginManagerOption {
	return func(m *PluginManager) {
		m.providers = append(m.providers, providers...)
	}
}

// WithSystemPlugin replaces the built-in system plugin.
func WithSystemPlugin(p driven.Plugin) PluginManagerOption {
	return func(m *PluginManager) {
		m.system = p
	}
}

// NewPluginManager creates a plugin manager for cfg.
func NewPluginManager(cfg driven.UserConfig, opts ...PluginManagerOption) *PluginManager {
	m := &PluginManager{
		cfg:         cfg,
		lockTimeout: domain.DefaultLockTimeout,
		plugins:     make(map[uuid.UUID]*pluginRegistration),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.system == nil {
		m.system = NewSystemPlugin()
	}
	return m
}

// AddProvider appends a provider to the lookup list.
func (m *PluginManager) AddProvider(p driven.PluginProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, p)
}

// State returns the lifecycle state.
func (m *PluginManager) State() domain.PluginManagerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Init bootstraps the plugin type, loads the system plugin and every
// persisted plugin instance. Instances that fail to load are skipped.
func (m *PluginManager) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.state != domain.PluginManagerUninitialized {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: plugin manager is %s", domain.ErrInvalidOperation, state)
	}
	m.state = domain.PluginManagerInitializing
	m.mu.Unlock()

	if err := m.init(ctx); err != nil {
		m.rollback()
		return err
	}

	m.mu.Lock()
	m.state = domain.PluginManagerReady
	m.mu.Unlock()
	return nil
}

// rollback undoes a failed init so Init can be retried.
func (m *PluginManager) rollback() {
	m.mu.Lock()
	regs := make([]*pluginRegistration, 0, len(m.plugins))
	for _, r := range m.plugins {
		regs = append(regs, r)
	}
	m.plugins = make(map[uuid.UUID]*pluginRegistration)
	remove := m.removeGuard
	m.removeGuard = nil
	m.state = domain.PluginManagerUninitialized
	m.mu.Unlock()

	if remove != nil {
		remove()
	}
	for _, r := range regs {
		r.close()
	}
}

func (m *PluginManager) init(ctx context.Context) error {
	logger.Section("Plugins")

	if err := m.bootstrapPluginType(ctx); err != nil {
		return err
	}

	system := domain.PluginInstanceInfo{PluginName: systemPluginName}
	if err := m.load(ctx, domain.SystemPluginInstanceID, system, m.system); err != nil {
		return fmt.Errorf("loading system plugin: %w", err)
	}

	remove := m.cfg.Types().AddDeleteGuard(m.allowTypeDelete)
	m.mu.Lock()
	m.removeGuard = remove
	m.mu.Unlock()

	items, err := m.cfg.SystemStorage().QueryByType(ctx, domain.ItemQuery{Type: domain.PluginTypeID}, nil)
	if err != nil {
		return fmt.Errorf("listing plugin instances: %w", err)
	}
	for i := range items {
		item := items[i]
		info, err := domain.DecodePluginInstanceInfo(item.Payload)
		if err != nil {
			logger.Error("skipping plugin instance %s: %v", item.ItemID, err)
			continue
		}
		if err := m.LoadPlugin(ctx, item.ItemID, info, false); err != nil {
			logger.Error("loading plugin %s (%s): %v", info.PluginName, item.ItemID, err)
			continue
		}
		logger.Debug("loaded plugin %s (%s)", info.PluginName, item.ItemID)
	}
	return nil
}

// bootstrapPluginType creates the plugin descriptor type if it is missing.
func (m *PluginManager) bootstrapPluginType(ctx context.Context) error {
	types := m.cfg.Types()
	if h := types.Resolve(domain.PluginTypeID); h != nil && h.IsValid() {
		return nil
	}

	err := driven.WithLock(ctx, m.cfg.SystemStorage(), m.lockTimeout, func(lock driven.StorageLock) error {
		if h := types.Resolve(domain.PluginTypeID); h != nil && h.IsValid() {
			return nil
		}
		payload, err := domain.EncodePayload(domain.TypeInfo{DisplayName: domain.PluginTypeName})
		if err != nil {
			return err
		}
		return lock.AddItemVersion(domain.NewItem(domain.TypeOfTypesID, domain.PluginTypeID, payload))
	})
	if errors.Is(err, domain.ErrLockTimeout) {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return err
}

// LoadPlugin constructs and loads a plugin instance without persisting it.
// Overwriting a loaded instance is not supported.
func (m *PluginManager) LoadPlugin(ctx context.Context, instanceID uuid.UUID, info domain.PluginInstanceInfo, overwrite bool) error {
	if err := m.rejectDisposed(); err != nil {
		return err
	}
	if m.isLoaded(instanceID) {
		if overwrite {
			return fmt.Errorf("%w: %s", domain.ErrReloadUnsupported, instanceID)
		}
		return fmt.Errorf("%w: %s", domain.ErrAlreadyLoaded, instanceID)
	}

	plugin, err := m.createPlugin(info.PluginName)
	if err != nil {
		return err
	}
	return m.load(ctx, instanceID, info, plugin)
}

func (m *PluginManager) load(ctx context.Context, instanceID uuid.UUID, info domain.PluginInstanceInfo, plugin driven.Plugin) (err error) {
	reg := newPluginRegistration(m, instanceID, info, plugin)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", info.PluginName, r)
		}
		if err != nil {
			reg.close()
		}
	}()

	if err := plugin.Init(info.Parameters); err != nil {
		return fmt.Errorf("initialising plugin %s: %w", info.PluginName, err)
	}
	if err := plugin.Load(ctx, reg); err != nil {
		return fmt.Errorf("loading plugin %s: %w", info.PluginName, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.PluginManagerDisposed {
		return fmt.Errorf("%w: plugin manager is %s", domain.ErrInvalidOperation, m.state)
	}
	if _, ok := m.plugins[instanceID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyLoaded, instanceID)
	}
	m.plugins[instanceID] = reg
	return nil
}

// createPlugin asks each provider in order. The first non-nil plugin wins.
func (m *PluginManager) createPlugin(name string) (plugin driven.Plugin, err error) {
	m.mu.RLock()
	providers := append([]driven.PluginProvider(nil), m.providers...)
	m.mu.RUnlock()

	for _, p := range providers {
		plugin, err = safeCreate(p, name)
		if err != nil {
			return nil, fmt.Errorf("creating plugin %s: %w", name, err)
		}
		if plugin != nil {
			return plugin, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPluginNotFound, name)
}

func safeCreate(p driven.PluginProvider, name string) (plugin driven.Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return p.CreatePlugin(name)
}

// UnloadPlugin removes a loaded instance. Unknown ids are ignored.
func (m *PluginManager) UnloadPlugin(instanceID uuid.UUID) error {
	if instanceID == domain.SystemPluginInstanceID {
		return fmt.Errorf("%w: the system plugin cannot be unloaded", domain.ErrInvalidOperation)
	}

	m.mu.Lock()
	reg, ok := m.plugins[instanceID]
	delete(m.plugins, instanceID)
	m.mu.Unlock()

	if ok {
		reg.close()
	}
	return nil
}

// AddPlugin creates a new instance, loads it and persists its descriptor.
func (m *PluginManager) AddPlugin(ctx context.Context, name, parameters string) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, fmt.Errorf("%w: plugin name is required", domain.ErrInvalidInput)
	}
	if err := m.requireReady(); err != nil {
		return uuid.Nil, err
	}

	id := domain.NewID()
	info := domain.PluginInstanceInfo{PluginName: name, Parameters: parameters}
	if err := m.LoadPlugin(ctx, id, info, false); err != nil {
		return uuid.Nil, err
	}

	payload, err := domain.EncodePayload(info)
	if err == nil {
		err = driven.WithLock(ctx, m.cfg.SystemStorage(), m.lockTimeout, func(lock driven.StorageLock) error {
			return lock.AddItemVersion(domain.NewItem(domain.PluginTypeID, id, payload))
		})
	}
	if err != nil {
		_ = m.UnloadPlugin(id)
		return uuid.Nil, fmt.Errorf("persisting plugin %s: %w", name, err)
	}

	logger.Info("added plugin %s (%s)", name, id)
	return id, nil
}

// RemovePlugin tombstones a persisted instance and unloads it.
func (m *PluginManager) RemovePlugin(ctx context.Context, instanceID uuid.UUID) error {
	if instanceID == domain.SystemPluginInstanceID {
		return fmt.Errorf("%w: the system plugin cannot be removed", domain.ErrInvalidOperation)
	}
	if err := m.rejectDisposed(); err != nil {
		return err
	}

	storage := m.cfg.SystemStorage()
	err := driven.WithLock(ctx, storage, m.lockTimeout, func(lock driven.StorageLock) error {
		item, err := storage.GetLatest(ctx, instanceID, false)
		if err != nil {
			return err
		}
		if item == nil || item.Type != domain.PluginTypeID {
			return fmt.Errorf("%w: plugin %s does not exist", domain.ErrNotFound, instanceID)
		}
		return lock.AddItemVersion(domain.NewTombstone(domain.PluginTypeID, instanceID))
	})
	if err != nil {
		return err
	}

	logger.Info("removed plugin %s", instanceID)
	return m.UnloadPlugin(instanceID)
}

// LoadedPlugins returns the loaded instances sorted by id, system first.
func (m *PluginManager) LoadedPlugins() []domain.LoadedPlugin {
	regs := m.registrations()
	out := make([]domain.LoadedPlugin, 0, len(regs))
	for _, r := range regs {
		out = append(out, r.summary())
	}
	return out
}

// AvailablePlugins returns every name the providers can construct.
func (m *PluginManager) AvailablePlugins() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	for _, p := range m.providers {
		for _, n := range p.Names() {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// SideBarElements returns the side bar of every loaded plugin,
// system plugin first.
func (m *PluginManager) SideBarElements() []domain.SideBarEntry {
	var out []domain.SideBarEntry
	for _, r := range m.registrations() {
		for _, el := range r.sideBar() {
			out = append(out, el.Snapshot())
		}
	}
	return out
}

// ScheduledTasks returns a snapshot of every registered task.
func (m *PluginManager) ScheduledTasks() []domain.ScheduledTask {
	tasks := m.tasks()
	out := make([]domain.ScheduledTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.snapshot())
	}
	return out
}

// Dispose unloads every plugin and removes the type-deletion guard.
func (m *PluginManager) Dispose() {
	m.mu.Lock()
	if m.state == domain.PluginManagerDisposed {
		m.mu.Unlock()
		return
	}
	regs := make([]*pluginRegistration, 0, len(m.plugins))
	for _, r := range m.plugins {
		regs = append(regs, r)
	}
	m.plugins = make(map[uuid.UUID]*pluginRegistration)
	remove := m.removeGuard
	m.removeGuard = nil
	m.state = domain.PluginManagerDisposed
	m.mu.Unlock()

	if remove != nil {
		remove()
	}
	for _, r := range regs {
		r.close()
	}
}

// tasks returns the live tasks of every loaded plugin.
func (m *PluginManager) tasks() []*pluginTask {
	var out []*pluginTask
	for _, r := range m.registrations() {
		out = append(out, r.scheduled()...)
	}
	return out
}

// registrations returns a sorted snapshot of the plugin table.
func (m *PluginManager) registrations() []*pluginRegistration {
	m.mu.RLock()
	regs := make([]*pluginRegistration, 0, len(m.plugins))
	for _, r := range m.plugins {
		regs = append(regs, r)
	}
	m.mu.RUnlock()

	sort.Slice(regs, func(i, j int) bool {
		if regs[i].system != regs[j].system {
			return regs[i].system
		}
		return regs[i].instanceID.String() < regs[j].instanceID.String()
	})
	return regs
}

func (m *PluginManager) isLoaded(instanceID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.plugins[instanceID]
	return ok
}

func (m *PluginManager) rejectDisposed() error {
	if state := m.State(); state == domain.PluginManagerDisposed {
		return fmt.Errorf("%w: plugin manager is %s", domain.ErrInvalidOperation, state)
	}
	return nil
}

func (m *PluginManager) requireReady() error {
	if state := m.State(); state != domain.PluginManagerReady {
		return fmt.Errorf("%w: plugin manager is %s", domain.ErrNotInitialized, state)
	}
	return nil
}

// allowTypeDelete vetoes deletion of types claimed by a loaded plugin.
func (m *PluginManager) allowTypeDelete(typeID uuid.UUID) bool {
	if typeID == domain.PluginTypeID {
		return false
	}
	for _, r := range m.registrations() {
		if r.claims(typeID) {
			return false
		}
	}
	return true
}
