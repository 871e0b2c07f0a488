package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the storage backend, the user store and the
task scheduler.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting by key.

Keys:
  storage.backend          memory or sqlite
  storage.data_dir         directory of persistent stores
  storage.user             user whose store is opened
  storage.lock_timeout_ms  write lock timeout in milliseconds
  scheduler.enabled        true or false
  scheduler.interval       tick period, e.g. 30s or 5m
  scheduler.development    true selects the short development tick`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsBackendCmd = &cobra.Command{
	Use:   "backend [name]",
	Short: "Select the storage backend",
	Long:  `Select the storage backend. Without an argument a choice is prompted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSettingsBackend,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the setting keys",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, k := range services.SettingsKeys() {
			cmd.Println(k)
		}
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsBackendCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	heading(cmd, "Current Settings")
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend.Description())
	dataDir := settings.Storage.DataDir
	if dataDir == "" {
		dataDir = "(default)"
	}
	cmd.Printf("  Data Dir: %s\n", dataDir)
	cmd.Printf("  User: %s\n", settings.Storage.User)
	cmd.Printf("  Lock Timeout: %s\n", settings.Storage.LockTimeout)
	cmd.Println()

	cmd.Println("[Scheduler]")
	if settings.Scheduler.Enabled {
		cmd.Printf("  Enabled: yes\n")
	} else {
		cmd.Printf("  Enabled: no\n")
	}
	cmd.Printf("  Tick Interval: %s\n", settings.Scheduler.TickInterval())
	if settings.Scheduler.Development {
		cmd.Printf("  Development: yes\n")
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Println(render(cmd, warnStyle, fmt.Sprintf("Warning: %v", err)))
		cmd.Println("Run 'raindrop settings set' to fix configuration issues.")
	} else {
		cmd.Println(render(cmd, okStyle, "Configuration is valid."))
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if err := settingsService.SetValue(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("Set %s = %s\n", args[0], args[1])
	return nil
}

func runSettingsBackend(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	var selected domain.StorageBackend
	if len(args) == 1 {
		selected = domain.StorageBackend(args[0])
	} else {
		cmd.Println("Select Storage Backend")
		cmd.Println("----------------------")
		backends := domain.AllStorageBackends()
		for i, b := range backends {
			cmd.Printf("  %d. %s\n", i+1, b.Description())
		}
		cmd.Print("\nEnter choice: ")
		input := readLine(bufio.NewReader(cmd.InOrStdin()))
		idx := parseChoice(input, len(backends), 0)
		if idx == 0 {
			return errors.New("invalid selection")
		}
		selected = backends[idx-1]
	}

	if err := settingsService.SetBackend(selected); err != nil {
		return fmt.Errorf("failed to set storage backend: %w", err)
	}
	cmd.Printf("Storage backend set to: %s\n", selected.Description())
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}
