package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.PluginProvider = (*Provider)(nil)

// FactoryFunc creates a new, uninitialised plugin instance.
type FactoryFunc func() driven.Plugin

// Provider maps plugin names to their factories.
type Provider struct {
	mu        sync.RWMutex
	factories map[string]FactoryFunc
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{
		factories: make(map[string]FactoryFunc),
	}
}

// Default returns a provider with every built-in plugin registered.
func Default() *Provider {
	p := NewProvider()
	p.Register(TestPluginName, func() driven.Plugin { return &TestPlugin{} })
	p.Register(FeedPluginName, func() driven.Plugin { return NewFeedPlugin() })
	return p
}

// Register adds a factory. Registering a name twice replaces the factory.
func (p *Provider) Register(name string, factory FactoryFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[name] = factory
}

// Has returns true if a plugin with the given name is registered.
func (p *Provider) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.factories[name]
	return ok
}

// CreatePlugin returns a new instance of the named plugin.
// Unknown names return nil and no error so other providers can be tried.
func (p *Provider) CreatePlugin(name string) (driven.Plugin, error) {
	p.mu.RLock()
	factory, ok := p.factories[name]
	p.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	plugin := factory()
	if plugin == nil {
		return nil, fmt.Errorf("plugin factory %s returned nil", name)
	}
	return plugin, nil
}

// Names returns all registered plugin names in sorted order.
func (p *Provider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.factories))
	for name := range p.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
