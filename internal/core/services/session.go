package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/logger"
)

// SessionOptions configures OpenSession.
type SessionOptions struct {
	// LockTimeout bounds write-lock acquisition. Zero uses the default.
	LockTimeout time.Duration

	// Scheduler configures the task runner.
	Scheduler domain.SchedulerConfig

	// Providers are consulted in order when loading plugins.
	Providers []driven.PluginProvider

	// Executor runs task actions. Nil uses a SerialExecutor.
	Executor driven.Executor

	// History records task runs when set.
	History driven.TaskHistoryStore

	// HistoryFor derives the history store from the opened user.
	// Used when History is nil.
	HistoryFor func(driven.UserConfig) driven.TaskHistoryStore
}

// Session is an opened user store with its plugins and services.
type Session struct {
	cfg     driven.UserConfig
	plugins *PluginManager
	types   *TypeService
	items   *ItemService
	runner  *TaskRunner

	closeOnce sync.Once
}

// OpenSession opens the store of userID and loads its plugins.
// With createNew the user is created and must not exist yet.
func OpenSession(
	ctx context.Context,
	provider driven.StorageProvider,
	userID string,
	createNew bool,
	opts SessionOptions,
) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	lockTimeout := opts.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = domain.DefaultLockTimeout
	}

	var (
		cfg driven.UserConfig
		err error
	)
	if createNew {
		cfg, err = provider.AddUser(ctx, userID)
	} else {
		cfg, err = provider.GetUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("opening user %s: %w", userID, err)
	}

	plugins := NewPluginManager(cfg,
		WithLockTimeout(lockTimeout),
		WithProviders(opts.Providers...),
	)
	if err := plugins.Init(ctx); err != nil {
		return nil, fmt.Errorf("initialising plugins for %s: %w", userID, err)
	}

	history := opts.History
	if history == nil && opts.HistoryFor != nil {
		history = opts.HistoryFor(cfg)
	}
	runnerOpts := []TaskRunnerOption{WithExecutor(opts.Executor)}
	if history != nil {
		runnerOpts = append(runnerOpts, WithTaskHistory(history))
	}

	logger.Debug("opened session for user %s", userID)
	return &Session{
		cfg:     cfg,
		plugins: plugins,
		types:   NewTypeService(cfg, lockTimeout),
		items:   NewItemService(cfg, lockTimeout),
		runner:  NewTaskRunner(opts.Scheduler, plugins, runnerOpts...),
	}, nil
}

// UserConfig returns the opened user store.
func (s *Session) UserConfig() driven.UserConfig {
	return s.cfg
}

// Plugins returns the plugin manager.
func (s *Session) Plugins() *PluginManager {
	return s.plugins
}

// Types returns the type service.
func (s *Session) Types() *TypeService {
	return s.types
}

// Items returns the item service.
func (s *Session) Items() *ItemService {
	return s.items
}

// Runner returns the task runner.
func (s *Session) Runner() *TaskRunner {
	return s.runner
}

// Close stops the task runner and unloads every plugin.
// The storage provider stays open.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.runner.Stop()
		s.plugins.Dispose()
		logger.Debug("closed session for user %s", s.cfg.UserID())
	})
	return err
}
