// Package sqlite provides the SQLite-based item storage backend.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Each user gets one database holding
// the system storage:
//
//   - item_versions: every version of every item, in write order
//   - latest: the latest version per item
//   - task_results: outcome of scheduled task runs
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, databases are stored at ~/.raindrop/data/users/<user>/items.db
//
// # Locking
//
// A storage lock is an in-process semaphore plus a BEGIN IMMEDIATE
// transaction, so writers in other processes are excluded too. Writes
// made by other processes are picked up when a lock is taken and, when
// watching is enabled, as soon as fsnotify reports a change to the
// database files. They are delivered as remote change events.
package sqlite
