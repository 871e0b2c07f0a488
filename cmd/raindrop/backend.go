package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/raindrop/internal/adapters/driven/config/file"
	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/raindrop/internal/adapters/driving/cli"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
	"github.com/custodia-labs/raindrop/internal/core/services"
	"github.com/custodia-labs/raindrop/internal/logger"
	"github.com/custodia-labs/raindrop/internal/plugins"
)

var _ cli.Backend = (*backend)(nil)

// backend wires the configured storage provider into a session.
type backend struct{}

// OpenSettings loads config.toml from configDir.
func (b *backend) OpenSettings(configDir string) (driving.SettingsService, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded configuration from %s", store.Path())
	return services.NewSettingsService(store), nil
}

// OpenSession opens the store of the configured user, creating the
// user on first use.
func (b *backend) OpenSession(ctx context.Context, settings *domain.AppSettings) (*cli.Services, error) {
	provider, historyFor, err := openProvider(settings)
	if err != nil {
		return nil, err
	}

	opts := services.SessionOptions{
		LockTimeout: settings.Storage.LockTimeout,
		Scheduler:   settings.Scheduler,
		Providers:   []driven.PluginProvider{plugins.Default()},
		HistoryFor:  historyFor,
	}
	user := settings.Storage.User
	session, err := services.OpenSession(ctx, provider, user, false, opts)
	if errors.Is(err, domain.ErrUserNotFound) {
		logger.Info("creating store for user %s", user)
		session, err = services.OpenSession(ctx, provider, user, true, opts)
	}
	if err != nil {
		return nil, errors.Join(err, provider.Close())
	}

	return &cli.Services{
		Types:   session.Types(),
		Items:   session.Items(),
		Plugins: session.Plugins(),
		Runner:  session.Runner(),
		Close: func() error {
			return errors.Join(session.Close(), provider.Close())
		},
	}, nil
}

func openProvider(
	settings *domain.AppSettings,
) (driven.StorageProvider, func(driven.UserConfig) driven.TaskHistoryStore, error) {
	switch settings.Storage.Backend {
	case domain.StorageBackendMemory:
		history := memory.NewTaskHistoryStore()
		return memory.NewProvider(), func(driven.UserConfig) driven.TaskHistoryStore {
			return history
		}, nil
	case domain.StorageBackendSQLite:
		p, err := sqlite.NewProvider(settings.Storage.DataDir, true)
		if err != nil {
			return nil, nil, err
		}
		return p, func(cfg driven.UserConfig) driven.TaskHistoryStore {
			if uc, ok := cfg.(*sqlite.UserConfig); ok {
				return uc.Store().TaskHistory()
			}
			return nil
		}, nil
	default:
		return nil, nil, fmt.Errorf("%w: storage backend %q", domain.ErrInvalidInput, settings.Storage.Backend)
	}
}
