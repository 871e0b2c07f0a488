// Package memory provides in-memory implementations of the driven storage
// ports. Nothing survives the process; the memory backend is the
// reference implementation of the item storage contract.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/typeregistry"
)

// Ensure the user store types implement the interfaces.
var (
	_ driven.StorageProvider = (*Provider)(nil)
	_ driven.UserConfig      = (*UserConfig)(nil)
)

// UserConfig is the in-memory store of one user. It has a single
// storage, the system storage.
type UserConfig struct {
	userID string
	types  *typeregistry.Registry
	system *Storage
}

// NewUserConfig creates an empty store with the bootstrap type.
func NewUserConfig(userID string) *UserConfig {
	types := typeregistry.New(domain.SystemStorageID)
	return &UserConfig{
		userID: userID,
		types:  types,
		system: NewStorage(domain.SystemStorageID, types),
	}
}

// UserID returns the owning user.
func (c *UserConfig) UserID() string {
	return c.userID
}

// Types returns the type registry.
func (c *UserConfig) Types() *typeregistry.Registry {
	return c.types
}

// SystemStorage returns the system storage.
func (c *UserConfig) SystemStorage() driven.ItemStorage {
	return c.system
}

// Storages returns every storage.
func (c *UserConfig) Storages() []driven.ItemStorage {
	return []driven.ItemStorage{c.system}
}

// Storage returns the storage with the given id, or nil.
func (c *UserConfig) Storage(id uuid.UUID) driven.ItemStorage {
	if id == c.system.StorageID() {
		return c.system
	}
	return nil
}

// Provider is an in-memory driven.StorageProvider.
type Provider struct {
	mu    sync.Mutex
	users map[string]*UserConfig
}

// NewProvider creates a provider with no users.
func NewProvider() *Provider {
	return &Provider{
		users: make(map[string]*UserConfig),
	}
}

// AddUser creates the store of a new user.
func (p *Provider) AddUser(_ context.Context, userID string) (driven.UserConfig, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", domain.ErrInvalidInput)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.users[userID]; exists {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrAlreadyExists)
	}
	cfg := NewUserConfig(userID)
	p.users[userID] = cfg
	return cfg, nil
}

// GetUser returns the store of an existing user.
func (p *Provider) GetUser(_ context.Context, userID string) (driven.UserConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg, ok := p.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	return cfg, nil
}

// DeleteUser removes a user.
func (p *Provider) DeleteUser(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg, ok := p.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	cfg.system.clear()
	delete(p.users, userID)
	return nil
}

// Users returns the ids of every user in sorted order.
func (p *Provider) Users() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.users))
	for id := range p.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close drops every user.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, cfg := range p.users {
		cfg.system.clear()
		delete(p.users, id)
	}
	return nil
}
