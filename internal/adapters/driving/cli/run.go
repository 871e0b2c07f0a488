package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runOnce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled tasks of loaded plugins",
	Long: `Opens the user store, loads every plugin and runs their scheduled
tasks until interrupted. With --once a single tick is run.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run one tick and exit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	if err := requireSession(cmd); err != nil {
		return err
	}

	if runOnce {
		taskRunner.Tick(commandContext(cmd))
		printStats(cmd)
		return nil
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Running %d scheduled tasks (Ctrl+C to stop)\n", len(taskRunner.Tasks()))
	err := taskRunner.Start(ctx)
	if stopErr := taskRunner.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	printStats(cmd)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printStats(cmd *cobra.Command) {
	stats := taskRunner.Stats()
	cmd.Printf("Ticks: %d  Skipped: %d  Runs: %d  Failures: %d\n",
		stats.Ticks, stats.Skipped, stats.Runs, stats.Failures)
	for _, task := range taskRunner.Tasks() {
		line := fmt.Sprintf("  %s/%s every %s", task.PluginID, task.Name, task.Interval)
		if task.LastError != "" {
			line += " " + render(cmd, warnStyle, "last error: "+task.LastError)
		}
		cmd.Println(line)
	}
}
