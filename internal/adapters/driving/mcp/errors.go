// Package mcp provides an MCP (Model Context Protocol) server adapter for Raindrop.
// It gives AI assistants read-only access to the types, items and plugins
// of the open user store.
package mcp

import "errors"

var (
	// ErrMissingTypeService is returned when the type service is not provided.
	ErrMissingTypeService = errors.New("mcp: type service is required")

	// ErrMissingItemService is returned when the item service is not provided.
	ErrMissingItemService = errors.New("mcp: item service is required")
)
