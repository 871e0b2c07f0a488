package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

// TaskHistoryStore persists the outcome of scheduled task runs.
type TaskHistoryStore interface {
	// RecordResult logs a task execution result.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns recent results for a task.
	// Results are ordered by start time descending (most recent first).
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory removes old task results beyond the retention limit.
	// Keeps the most recent 'keep' results per task.
	PruneHistory(ctx context.Context, keep int) error
}

// Executor runs task actions on the context the host designates for
// state mutation.
type Executor interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock is a time source.
type Clock interface {
	Now() time.Time
}
