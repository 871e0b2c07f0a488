// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// A Session ties one user store to its PluginManager, TypeService,
// ItemService and TaskRunner. Services are pure Go with no CGO.
package services
