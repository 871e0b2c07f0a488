package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/typeregistry"
	"github.com/custodia-labs/raindrop/internal/logger"
)

// Ensure the user store types implement the interfaces.
var (
	_ driven.StorageProvider = (*Provider)(nil)
	_ driven.UserConfig      = (*UserConfig)(nil)
)

// UserConfig is the SQLite store of one user.
type UserConfig struct {
	userID string
	types  *typeregistry.Registry
	store  *Store
}

// OpenUserConfig opens the store of userID in dir.
func OpenUserConfig(userID, dir string) (*UserConfig, error) {
	types := typeregistry.New(domain.SystemStorageID)
	store, err := NewStore(dir, types)
	if err != nil {
		return nil, err
	}
	return &UserConfig{userID: userID, types: types, store: store}, nil
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
	return c.store
}

// Storages returns every storage.
func (c *UserConfig) Storages() []driven.ItemStorage {
	return []driven.ItemStorage{c.store}
}

// Storage returns the storage with the given id, or nil.
func (c *UserConfig) Storage(id uuid.UUID) driven.ItemStorage {
	if id == c.store.StorageID() {
		return c.store
	}
	return nil
}

// Store returns the underlying database store.
func (c *UserConfig) Store() *Store {
	return c.store
}

// Close closes the database.
func (c *UserConfig) Close() error {
	return c.store.Close()
}

// Provider keeps one database per user under <dataDir>/users/<user>.
type Provider struct {
	dataDir string
	watch   bool

	mu    sync.Mutex
	users map[string]*UserConfig
}

// NewProvider creates a provider rooted at dataDir.
// If dataDir is empty, defaults to ~/.raindrop/data.
// With watch, opened stores pick up writes by other processes.
func NewProvider(dataDir string, watch bool) (*Provider, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".raindrop", "data")
	}
	return &Provider{
		dataDir: dataDir,
		watch:   watch,
		users:   make(map[string]*UserConfig),
	}, nil
}

// DataDir returns the root directory.
func (p *Provider) DataDir() string {
	return p.dataDir
}

func (p *Provider) userDir(userID string) (string, error) {
	if userID == "" || userID == "." || userID == ".." ||
		strings.ContainsAny(userID, `/\`) || filepath.Base(userID) != userID {
		return "", fmt.Errorf("%w: invalid user id %q", domain.ErrInvalidInput, userID)
	}
	return filepath.Join(p.dataDir, "users", userID), nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// AddUser creates the store of a new user.
func (p *Provider) AddUser(_ context.Context, userID string) (driven.UserConfig, error) {
	dir, err := p.userDir(userID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, open := p.users[userID]; open {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrAlreadyExists)
	}
	found, err := exists(filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, err
	}
	if found {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrAlreadyExists)
	}
	return p.openLocked(userID, dir)
}

// GetUser opens the store of an existing user.
func (p *Provider) GetUser(_ context.Context, userID string) (driven.UserConfig, error) {
	dir, err := p.userDir(userID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg, ok := p.users[userID]; ok {
		return cfg, nil
	}
	found, err := exists(filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	return p.openLocked(userID, dir)
}

func (p *Provider) openLocked(userID, dir string) (*UserConfig, error) {
	cfg, err := OpenUserConfig(userID, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if p.watch {
		if err := cfg.store.Watch(); err != nil {
			logger.Warn("remote change detection disabled for %s: %v", userID, err)
		}
	}
	p.users[userID] = cfg
	logger.Debug("opened user %s at %s", userID, cfg.store.Path())
	return cfg, nil
}

// DeleteUser closes the store of a user and removes its files.
func (p *Provider) DeleteUser(_ context.Context, userID string) error {
	dir, err := p.userDir(userID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg, ok := p.users[userID]; ok {
		if err := cfg.Close(); err != nil {
			return err
		}
		delete(p.users, userID)
	} else {
		found, err := exists(dir)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
		}
	}
	return os.RemoveAll(dir)
}

// Users returns the ids of every user on disk in sorted order.
func (p *Provider) Users() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.dataDir, "users"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close closes every open store.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for id, cfg := range p.users {
		errs = append(errs, cfg.Close())
		delete(p.users, id)
	}
	return errors.Join(errs...)
}
