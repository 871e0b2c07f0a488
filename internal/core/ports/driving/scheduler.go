package driving

import (
	"context"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

// TaskRunner periodically runs the scheduled tasks of loaded plugins.
type TaskRunner interface {
	// Start runs the tick loop.
	// Blocks until Stop is called or the context is cancelled.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for a running tick to finish.
	Stop() error

	// Tick runs every due task once.
	// Returns false if the previous tick was still running.
	Tick(ctx context.Context) bool

	// Tasks returns the currently scheduled tasks.
	Tasks() []domain.ScheduledTask

	// Stats returns activity counters.
	Stats() domain.TaskRunnerStats
}
