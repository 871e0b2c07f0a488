package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/raindrop/internal/adapters/driving/tui"
)

// runApp runs the TUI program. Tests replace it.
var runApp = func(app *tui.App) error {
	return app.Run()
}

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for raindrop.

The TUI lists the types of the store and the side bar entries of loaded
plugins, and lets you browse items and their latest versions. When the
scheduler is enabled, plugin tasks run in the background.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Open
  d        - Toggle tombstones (item view)
  r        - Refresh
  Esc      - Back
  ?        - Toggle help
  q        - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panic: %v", r)
		}
	}()

	if err := requireSession(cmd); err != nil {
		return err
	}
	ctx := commandContext(cmd)

	// Start scheduler if enabled (TUI is long-running, needs background tasks)
	if settingsService.GetSchedulerConfig().Enabled && taskRunner != nil {
		schedulerCtx, schedulerCancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := taskRunner.Start(schedulerCtx); err != nil && !errors.Is(err, context.Canceled) {
				// Log but don't fail - scheduler errors shouldn't block TUI
				fmt.Fprintf(os.Stderr, "scheduler stopped: %v\n", err)
			}
		}()
		defer func() {
			schedulerCancel()
			<-done
			if err := taskRunner.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "scheduler stop error: %v\n", err)
			}
		}()
	}

	app, err := tui.NewApp(&tui.Ports{
		Types:   typeService,
		Items:   itemService,
		Plugins: pluginService,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(ctx)

	if err := runApp(app); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
