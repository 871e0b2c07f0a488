package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

// --- Mock implementations for plugin testing ---

// mockPlugin records its lifecycle and runs an optional load hook.
type mockPlugin struct {
	mu       sync.Mutex
	params   string
	initErr  error
	loadErr  error
	loadFn   func(ctx context.Context, reg driven.HandlerRegistry) error
	registry driven.HandlerRegistry
	unloaded int
}

func (p *mockPlugin) Init(parameters string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.params = parameters
	return p.initErr
}

func (p *mockPlugin) Load(ctx context.Context, reg driven.HandlerRegistry) error {
	p.mu.Lock()
	p.registry = reg
	fn := p.loadFn
	err := p.loadErr
	p.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, reg); err != nil {
			return err
		}
	}
	return err
}

func (p *mockPlugin) Unload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unloaded++
}

func (p *mockPlugin) unloadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unloaded
}

// mockProvider builds plugins from a name table.
type mockProvider struct {
	mu        sync.Mutex
	factories map[string]func() driven.Plugin
	created   []string
	err       error
	panicMsg  string
}

func newMockProvider() *mockProvider {
	return &mockProvider{factories: make(map[string]func() driven.Plugin)}
}

func (p *mockProvider) register(name string, fn func() driven.Plugin) *mockProvider {
	p.factories[name] = fn
	return p
}

func (p *mockProvider) CreatePlugin(name string) (driven.Plugin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.err != nil {
		return nil, p.err
	}
	fn, ok := p.factories[name]
	if !ok {
		return nil, nil
	}
	p.created = append(p.created, name)
	return fn(), nil
}

func (p *mockProvider) Names() []string {
	names := make([]string, 0, len(p.factories))
	for n := range p.factories {
		names = append(names, n)
	}
	return names
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyUserConfig serves a system storage whose plugin listing fails.
type flakyUserConfig struct {
	driven.UserConfig
	storage *flakyStorage
}

func (c *flakyUserConfig) SystemStorage() driven.ItemStorage {
	return c.storage
}

// flakyStorage fails the next failures queries for plugin instances.
type flakyStorage struct {
	driven.ItemStorage

	mu       sync.Mutex
	failures int
}

func (s *flakyStorage) QueryByType(ctx context.Context, q domain.ItemQuery, dst []domain.Item) ([]domain.Item, error) {
	s.mu.Lock()
	fail := q.Type == domain.PluginTypeID && s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return dst, errors.New("disk error")
	}
	return s.ItemStorage.QueryByType(ctx, q, dst)
}

// newReadyManager returns an initialised manager over a fresh memory store.
func newReadyManager(ctx context.Context, providers ...driven.PluginProvider) (*PluginManager, *memory.UserConfig, error) {
	cfg := memory.NewUserConfig(domain.LocalUser)
	m := NewPluginManager(cfg, WithProviders(providers...), WithLockTimeout(200*time.Millisecond))
	if err := m.Init(ctx); err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

// persistInstance writes a plugin descriptor directly to storage.
func persistInstance(ctx context.Context, cfg driven.UserConfig, id uuid.UUID, info domain.PluginInstanceInfo) error {
	payload, err := domain.EncodePayload(info)
	if err != nil {
		return err
	}
	return driven.WithLock(ctx, cfg.SystemStorage(), time.Second, func(lock driven.StorageLock) error {
		return lock.AddItemVersion(domain.NewItem(domain.PluginTypeID, id, payload))
	})
}
