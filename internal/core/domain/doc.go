// Package domain defines the core business entities for Raindrop.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Item: One immutable version of a logical entity
//   - TypeHandle: Live, shared view of a user-defined type
//   - PluginInstanceInfo: Persisted descriptor of a plugin instance
//   - SideBarElement: Opaque navigation descriptor contributed by plugins
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library, github.com/google/uuid
//   - Cannot Import: Any internal/ package, any other external dependency
package domain
