package plugins

import (
	"context"

	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

// TestPluginName is the name of the no-op plugin.
const TestPluginName = "test"

// TestPlugin registers nothing.
type TestPlugin struct{}

// Init ignores the parameters.
func (p *TestPlugin) Init(string) error {
	return nil
}

// Load registers nothing.
func (p *TestPlugin) Load(context.Context, driven.HandlerRegistry) error {
	return nil
}
