package tui

import "errors"

// ErrMissingTypeService is returned when the type service is not provided.
var ErrMissingTypeService = errors.New("tui: type service is required")

// ErrMissingItemService is returned when the item service is not provided.
var ErrMissingItemService = errors.New("tui: item service is required")

// ErrMissingPluginService is returned when the plugin service is not provided.
var ErrMissingPluginService = errors.New("tui: plugin service is required")
