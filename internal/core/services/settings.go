package services

import (
	"fmt"
	"strconv"
	"time"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	KeyStorageBackend     = "storage.backend"
	KeyStorageDataDir     = "storage.data_dir"
	KeyStorageUser        = "storage.user"
	KeyStorageLockTimeout = "storage.lock_timeout_ms"
	KeySchedulerEnabled   = "scheduler.enabled"
	KeySchedulerInterval  = "scheduler.interval"
	KeySchedulerDev       = "scheduler.development"
)

// SettingsKeys lists every key SetValue accepts.
func SettingsKeys() []string {
	return []string{
		KeyStorageBackend,
		KeyStorageDataDir,
		KeyStorageUser,
		KeyStorageLockTimeout,
		KeySchedulerEnabled,
		KeySchedulerInterval,
		KeySchedulerDev,
	}
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
// Invalid stored values fall back to defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Storage: domain.StorageSettings{
			Backend:     s.getBackend(defaults.Storage.Backend),
			DataDir:     s.configStore.GetString(KeyStorageDataDir), // Empty means the default location
			User:        s.getString(KeyStorageUser, defaults.Storage.User),
			LockTimeout: s.getMillis(KeyStorageLockTimeout, defaults.Storage.LockTimeout),
		},
		Scheduler: s.GetSchedulerConfig(),
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: nil settings", domain.ErrInvalidInput)
	}

	if err := s.configStore.Set(KeyStorageBackend, settings.Storage.Backend.String()); err != nil {
		return fmt.Errorf("save storage backend: %w", err)
	}
	if settings.Storage.DataDir != "" {
		if err := s.configStore.Set(KeyStorageDataDir, settings.Storage.DataDir); err != nil {
			return fmt.Errorf("save storage data_dir: %w", err)
		}
	}
	if err := s.configStore.Set(KeyStorageUser, settings.Storage.User); err != nil {
		return fmt.Errorf("save storage user: %w", err)
	}
	if err := s.configStore.Set(KeyStorageLockTimeout, settings.Storage.LockTimeout.Milliseconds()); err != nil {
		return fmt.Errorf("save storage lock_timeout_ms: %w", err)
	}

	if err := s.configStore.Set(KeySchedulerEnabled, settings.Scheduler.Enabled); err != nil {
		return fmt.Errorf("save scheduler enabled: %w", err)
	}
	if err := s.configStore.Set(KeySchedulerInterval, settings.Scheduler.Interval.String()); err != nil {
		return fmt.Errorf("save scheduler interval: %w", err)
	}
	if err := s.configStore.Set(KeySchedulerDev, settings.Scheduler.Development); err != nil {
		return fmt.Errorf("save scheduler development: %w", err)
	}

	return nil
}

// SetBackend selects the storage backend.
func (s *SettingsService) SetBackend(backend domain.StorageBackend) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: invalid storage backend: %s", domain.ErrInvalidInput, backend)
	}
	return s.configStore.Set(KeyStorageBackend, backend.String())
}

// SetValue parses raw for key and stores it.
func (s *SettingsService) SetValue(key, raw string) error {
	var value any
	switch key {
	case KeyStorageBackend:
		return s.SetBackend(domain.StorageBackend(raw))
	case KeyStorageDataDir, KeyStorageUser:
		if key == KeyStorageUser && raw == "" {
			return fmt.Errorf("%w: %s must not be empty", domain.ErrInvalidInput, key)
		}
		value = raw
	case KeyStorageLockTimeout:
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms <= 0 {
			return fmt.Errorf("%w: %s must be a positive number of milliseconds", domain.ErrInvalidInput, key)
		}
		value = ms
	case KeySchedulerEnabled, KeySchedulerDev:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		value = b
	case KeySchedulerInterval:
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %s must be a positive duration", domain.ErrInvalidInput, key)
		}
		value = d.String()
	default:
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	return s.configStore.Set(key, value)
}

// Validate checks if current settings are usable.
func (s *SettingsService) Validate() error {
	if raw := s.configStore.GetString(KeyStorageBackend); raw != "" {
		if backend := domain.StorageBackend(raw); !backend.IsValid() {
			return fmt.Errorf("invalid storage backend: %s", raw)
		}
	}
	if raw := s.configStore.GetString(KeySchedulerInterval); raw != "" {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("invalid scheduler interval: %s", raw)
		}
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if settings.Storage.User == "" {
		return fmt.Errorf("storage user must not be empty")
	}
	if settings.Storage.LockTimeout <= 0 {
		return fmt.Errorf("storage lock timeout must be positive")
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	cfg := domain.SchedulerConfig{
		Enabled:     s.getBool(KeySchedulerEnabled, true),
		Development: s.getBool(KeySchedulerDev, false),
	}

	// Duration string like "5m", "30s"
	if interval := s.configStore.GetString(KeySchedulerInterval); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			cfg.Interval = d
		}
	}
	cfg.Interval = cfg.TickInterval()

	return cfg
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * time.Millisecond
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	val := s.configStore.GetString(KeyStorageBackend)
	if val == "" {
		return defaultVal
	}
	backend := domain.StorageBackend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
