package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
	"github.com/custodia-labs/raindrop/internal/core/services"
	"github.com/custodia-labs/raindrop/internal/plugins"
)

// testBackend opens memory-backed sessions. The provider outlives each
// session so state carries over between commands of one test.
type testBackend struct {
	provider *memory.Provider
	settings driving.SettingsService
	opened   int
}

func (b *testBackend) OpenSettings(string) (driving.SettingsService, error) {
	return b.settings, nil
}

func (b *testBackend) OpenSession(ctx context.Context, settings *domain.AppSettings) (*Services, error) {
	opts := services.SessionOptions{
		LockTimeout: settings.Storage.LockTimeout,
		Scheduler:   settings.Scheduler,
		Providers:   []driven.PluginProvider{plugins.Default()},
		History:     memory.NewTaskHistoryStore(),
	}
	session, err := services.OpenSession(ctx, b.provider, settings.Storage.User, false, opts)
	if errors.Is(err, domain.ErrUserNotFound) {
		session, err = services.OpenSession(ctx, b.provider, settings.Storage.User, true, opts)
	}
	if err != nil {
		return nil, err
	}
	b.opened++
	return &Services{
		Types:   session.Types(),
		Items:   session.Items(),
		Plugins: session.Plugins(),
		Runner:  session.Runner(),
		Close:   session.Close,
	}, nil
}

// setupTestServices installs a memory backend and returns a cleanup
// function restoring the previous globals.
func setupTestServices() (*testBackend, func()) {
	oldBackend := backend
	oldSettings := settingsService

	b := &testBackend{
		provider: memory.NewProvider(),
		settings: services.NewSettingsService(memory.NewConfigStore()),
	}
	backend = b
	settingsService = b.settings

	return b, func() {
		_ = teardownSession()
		backend = oldBackend
		settingsService = oldSettings
		resetFlags()
	}
}

func resetFlags() {
	itemID = ""
	itemDeleted = false
	itemJSON = false
	itemLimit = 0
	itemSince = 0
	typeJSON = false
	pluginJSON = false
	runOnce = false
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// lastField returns the last whitespace separated field of the first
// line of out.
func lastField(t *testing.T, out string) string {
	t.Helper()
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	require.NotEmpty(t, fields)
	return fields[len(fields)-1]
}
