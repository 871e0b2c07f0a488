package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/services"
	"github.com/custodia-labs/raindrop/internal/plugins"
)

func sessionOptions() services.SessionOptions {
	return services.SessionOptions{
		Scheduler: domain.DefaultSchedulerConfig(true),
		Providers: []driven.PluginProvider{plugins.Default()},
		HistoryFor: func(cfg driven.UserConfig) driven.TaskHistoryStore {
			return cfg.(*UserConfig).Store().TaskHistory()
		},
	}
}

func TestSession_PluginReloadsAfterReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p, err := NewProvider(dir, false)
	require.NoError(t, err)
	s, err := services.OpenSession(ctx, p, "alice", true, sessionOptions())
	require.NoError(t, err)

	id, err := s.Plugins().AddPlugin(ctx, plugins.TestPluginName, "mode=quiet")
	require.NoError(t, err)
	added := s.Plugins().LoadedPlugins()
	require.Len(t, added, 2)
	require.NoError(t, s.Close())
	require.NoError(t, p.Close())

	p2, err := NewProvider(dir, false)
	require.NoError(t, err)
	defer p2.Close()
	again, err := services.OpenSession(ctx, p2, "alice", false, sessionOptions())
	require.NoError(t, err)
	defer func() { _ = again.Close() }()

	loaded := again.Plugins().LoadedPlugins()
	require.Len(t, loaded, 2)
	assert.Equal(t, domain.SystemPluginInstanceID, loaded[0].InstanceID)
	assert.Equal(t, id, loaded[1].InstanceID)
	assert.Equal(t, domain.PluginInstanceInfo{PluginName: plugins.TestPluginName, Parameters: "mode=quiet"}, loaded[1].Info)
	assert.Equal(t, added[1].Info, loaded[1].Info)
}
