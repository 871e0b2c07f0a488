package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

func TestDefault_Names(t *testing.T) {
	p := Default()
	assert.Equal(t, []string{FeedPluginName, TestPluginName}, p.Names())
	assert.True(t, p.Has(TestPluginName))
	assert.False(t, p.Has("missing"))
}

func TestProvider_CreatePlugin(t *testing.T) {
	p := Default()

	plugin, err := p.CreatePlugin(TestPluginName)
	require.NoError(t, err)
	assert.IsType(t, &TestPlugin{}, plugin)

	// Every call builds a new instance.
	other, err := p.CreatePlugin(TestPluginName)
	require.NoError(t, err)
	assert.NotSame(t, plugin, other)

	unknown, err := p.CreatePlugin("missing")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestProvider_NilFactory(t *testing.T) {
	p := NewProvider()
	p.Register("broken", func() driven.Plugin { return nil })

	plugin, err := p.CreatePlugin("broken")
	assert.Error(t, err)
	assert.Nil(t, plugin)
}

func TestTestPlugin(t *testing.T) {
	plugin := &TestPlugin{}
	assert.NoError(t, plugin.Init("anything"))
	assert.NoError(t, plugin.Load(context.Background(), nil))
}
