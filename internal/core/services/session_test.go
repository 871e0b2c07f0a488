package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

func TestOpenSession(t *testing.T) {
	ctx := context.Background()
	provider := memory.NewProvider()
	plugin := &mockPlugin{}
	plugins := newMockProvider().register("test", func() driven.Plugin { return plugin })
	opts := SessionOptions{
		Scheduler: domain.DefaultSchedulerConfig(true),
		Providers: []driven.PluginProvider{plugins},
		History:   memory.NewTaskHistoryStore(),
	}

	t.Run("missing user", func(t *testing.T) {
		_, err := OpenSession(ctx, provider, "alice", false, opts)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("empty user", func(t *testing.T) {
		_, err := OpenSession(ctx, provider, "", true, opts)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("create then reopen", func(t *testing.T) {
		s, err := OpenSession(ctx, provider, "alice", true, opts)
		require.NoError(t, err)
		assert.Equal(t, "alice", s.UserConfig().UserID())
		assert.Equal(t, domain.PluginManagerReady, s.Plugins().State())

		id, err := s.Plugins().AddPlugin(ctx, "test", "depth=2")
		require.NoError(t, err)
		h, err := s.Types().CreateType(ctx, domain.TypeInfo{DisplayName: "Kept"})
		require.NoError(t, err)
		require.True(t, s.Runner().Tick(ctx))
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
		assert.Equal(t, domain.PluginManagerDisposed, s.Plugins().State())

		_, err = OpenSession(ctx, provider, "alice", true, opts)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)

		again, err := OpenSession(ctx, provider, "alice", false, opts)
		require.NoError(t, err)
		defer func() { _ = again.Close() }()
		loaded := again.Plugins().LoadedPlugins()
		require.Len(t, loaded, 2)
		assert.Equal(t, id, loaded[1].InstanceID)
		assert.Equal(t, domain.PluginInstanceInfo{PluginName: "test", Parameters: "depth=2"}, loaded[1].Info)
		assert.Equal(t, "depth=2", plugin.params)
		assert.NotNil(t, again.Items())
		assert.NotNil(t, again.Types().Resolve(h.ID()))
	})
}

func TestOpenSession_HistoryFor(t *testing.T) {
	ctx := context.Background()
	history := memory.NewTaskHistoryStore()
	var derivedFor string

	s, err := OpenSession(ctx, memory.NewProvider(), "bob", true, SessionOptions{
		Scheduler:  domain.DefaultSchedulerConfig(true),
		HistoryFor: func(cfg driven.UserConfig) driven.TaskHistoryStore {
			derivedFor = cfg.UserID()
			return history
		},
	})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Equal(t, "bob", derivedFor)
}
