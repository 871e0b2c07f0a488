// Package file provides the file-based configuration store.
//
// Configuration lives in a TOML file, by default ~/.raindrop/config.toml.
// Keys use dot notation; "storage.backend" is persisted as the backend
// key of the [storage] table.
package file
