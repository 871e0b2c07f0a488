package domain

import "time"

const unknownDescription = "Unknown"

// StorageBackend selects the item storage implementation.
type StorageBackend string

// Available storage backends.
const (
	// StorageBackendMemory keeps everything in process memory.
	StorageBackendMemory StorageBackend = "memory"

	// StorageBackendSQLite persists items to a per-user SQLite database.
	StorageBackendSQLite StorageBackend = "sqlite"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageBackendMemory, StorageBackendSQLite:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b StorageBackend) Description() string {
	switch b {
	case StorageBackendMemory:
		return "Memory (lost on exit)"
	case StorageBackendSQLite:
		return "SQLite (persistent, shared between processes)"
	default:
		return unknownDescription
	}
}

// AllStorageBackends returns every supported backend.
func AllStorageBackends() []StorageBackend {
	return []StorageBackend{StorageBackendMemory, StorageBackendSQLite}
}

// DefaultLockTimeout bounds storage lock acquisition.
const DefaultLockTimeout = 1000 * time.Millisecond

// StorageSettings configures the item storage.
type StorageSettings struct {
	// Backend selects the implementation.
	Backend StorageBackend

	// DataDir is where persistent backends keep their files.
	// Empty means ~/.raindrop/data.
	DataDir string

	// User is the user whose store is opened.
	User string

	// LockTimeout bounds write lock acquisition during bootstrap
	// and plugin registration.
	LockTimeout time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Storage   StorageSettings
	Scheduler SchedulerConfig
}

// DefaultAppSettings returns the default application settings.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Storage: StorageSettings{
			Backend:     StorageBackendSQLite,
			User:        LocalUser,
			LockTimeout: DefaultLockTimeout,
		},
		Scheduler: DefaultSchedulerConfig(false),
	}
}
