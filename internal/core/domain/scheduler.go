package domain

import (
	"time"

	"github.com/google/uuid"
)

// Scheduler tick periods.
const (
	ProductionTickInterval  = 5 * time.Minute
	DevelopmentTickInterval = 5 * time.Second
)

// ScheduledTask describes a task registered by a plugin.
type ScheduledTask struct {
	// Name is a human-readable name for the task.
	Name string

	// PluginID is the instance id of the owning plugin.
	PluginID uuid.UUID

	// Interval is the minimum time between two runs.
	Interval time.Duration

	// LastRun is when the task last completed. Zero if it never ran.
	LastRun time.Time

	// LastError contains the last error message, if any.
	LastError string
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run ("<plugin id>/<task name>").
	TaskID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string
}

// TaskRunnerStats counts task runner activity.
type TaskRunnerStats struct {
	Ticks    int64
	Skipped  int64
	Runs     int64
	Failures int64
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// Interval is the tick period.
	Interval time.Duration

	// Development selects the short development tick period
	// when Interval is not set.
	Development bool
}

// TickInterval returns the effective tick period.
func (c SchedulerConfig) TickInterval() time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	if c.Development {
		return DevelopmentTickInterval
	}
	return ProductionTickInterval
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig(development bool) SchedulerConfig {
	cfg := SchedulerConfig{
		Enabled:     true,
		Development: development,
	}
	cfg.Interval = cfg.TickInterval()
	return cfg
}
