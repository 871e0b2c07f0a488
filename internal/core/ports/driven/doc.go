// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - StorageProvider: Opens the store of a user
//   - UserConfig: The storages and type registry of one user
//   - ItemStorage: Versioned item storage with a write lock
//   - PluginProvider: Constructs plugins by name
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - TaskHistoryStore: Persists scheduled task results. Without it, results are only logged.
//   - Executor: Serialises task execution with host state. Defaults to a mutex.
//   - Clock: Time source. Defaults to the wall clock.
//
// # Import Rules
//
//   - Can Import: domain, typeregistry and notify packages
//   - Cannot Import: Any adapter or plugin package
package driven
