// Package cli provides the raindrop command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
	"github.com/custodia-labs/raindrop/internal/logger"
)

// version is set at build time.
var version = "dev"

var (
	configDir string
	verbose   bool
)

// Services are the core services commands operate on.
type Services struct {
	Types   driving.TypeService
	Items   driving.ItemService
	Plugins driving.PluginService
	Runner  driving.TaskRunner

	// Close releases the session. May be nil.
	Close func() error
}

// Backend opens the settings and the user session.
type Backend interface {
	// OpenSettings returns the settings service for configDir.
	// An empty configDir selects the default location.
	OpenSettings(configDir string) (driving.SettingsService, error)

	// OpenSession opens the user store selected by settings.
	OpenSession(ctx context.Context, settings *domain.AppSettings) (*Services, error)
}

var (
	backend Backend

	settingsService driving.SettingsService
	typeService     driving.TypeService
	itemService     driving.ItemService
	pluginService   driving.PluginService
	taskRunner      driving.TaskRunner
	closeSession    func() error
)

var rootCmd = &cobra.Command{
	Use:   "raindrop",
	Short: "Pluggable versioned content store",
	Long: `Raindrop keeps typed, versioned items in a per-user store and
extends it with plugins that contribute types, side bar entries and
scheduled tasks.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupSettings,
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return teardownSession()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.raindrop)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBackend installs the backend used to open settings and sessions.
func SetBackend(b Backend) {
	backend = b
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setupSettings(*cobra.Command, []string) error {
	logger.SetVerbose(verbose)
	if settingsService != nil {
		return nil
	}
	if backend == nil {
		return errors.New("backend not configured")
	}
	svc, err := backend.OpenSettings(configDir)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	settingsService = svc
	return nil
}

// requireSession opens the user session if no services are set yet.
func requireSession(cmd *cobra.Command) error {
	if itemService != nil {
		return nil
	}
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if backend == nil {
		return errors.New("backend not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	svc, err := backend.OpenSession(commandContext(cmd), settings)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	setServices(svc)
	closeSession = svc.Close
	return nil
}

func setServices(svc *Services) {
	typeService = svc.Types
	itemService = svc.Items
	pluginService = svc.Plugins
	taskRunner = svc.Runner
}

func teardownSession() error {
	if closeSession == nil {
		return nil
	}
	err := closeSession()
	closeSession = nil
	setServices(&Services{})
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
