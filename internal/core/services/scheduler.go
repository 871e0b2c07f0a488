package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
	"github.com/custodia-labs/raindrop/internal/core/ports/driving"
	"github.com/custodia-labs/raindrop/internal/logger"
)

// Ensure TaskRunner implements the interface.
var _ driving.TaskRunner = (*TaskRunner)(nil)

// historyRetention is the number of results kept per task.
const historyRetention = 100

// pluginTask is a scheduled task registered by a plugin.
type pluginTask struct {
	pluginID uuid.UUID
	name     string
	interval time.Duration
	action   driven.TaskFunc

	mu        sync.Mutex
	lastRun   time.Time
	lastError string
}

func (t *pluginTask) id() string {
	return t.pluginID.String() + "/" + t.name
}

// due reports whether the task should run at now.
func (t *pluginTask) due(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun.IsZero() || now.Sub(t.lastRun) >= t.interval
}

func (t *pluginTask) finish(at time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRun = at
	if err != nil {
		t.lastError = err.Error()
	} else {
		t.lastError = ""
	}
}

func (t *pluginTask) snapshot() domain.ScheduledTask {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.ScheduledTask{
		Name:      t.name,
		PluginID:  t.pluginID,
		Interval:  t.interval,
		LastRun:   t.lastRun,
		LastError: t.lastError,
	}
}

// TaskRunner periodically runs the scheduled tasks of loaded plugins.
type TaskRunner struct {
	config   domain.SchedulerConfig
	plugins  *PluginManager
	executor driven.Executor
	clock    driven.Clock
	history  driven.TaskHistoryStore

	ticking  atomic.Bool
	ticks    atomic.Int64
	skipped  atomic.Int64
	runs     atomic.Int64
	failures atomic.Int64

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// TaskRunnerOption configures a TaskRunner.
type TaskRunnerOption func(*TaskRunner)

// WithExecutor sets the executor task actions run on.
func WithExecutor(e driven.Executor) TaskRunnerOption {
	return func(r *TaskRunner) {
		r.executor = e
	}
}

// WithClock sets the time source.
func WithClock(c driven.Clock) TaskRunnerOption {
	return func(r *TaskRunner) {
		r.clock = c
	}
}

// WithTaskHistory records every run in store.
func WithTaskHistory(store driven.TaskHistoryStore) TaskRunnerOption {
	return func(r *TaskRunner) {
		r.history = store
	}
}

// NewTaskRunner creates a task runner for the plugins of a manager.
func NewTaskRunner(config domain.SchedulerConfig, plugins *PluginManager, opts ...TaskRunnerOption) *TaskRunner {
	r := &TaskRunner{
		config:  config,
		plugins: plugins,
		clock:   SystemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.executor == nil {
		r.executor = NewSerialExecutor()
	}
	return r
}

// Start runs the tick loop. This method blocks until Stop is called or
// ctx ends; after either the runner can be started again.
func (r *TaskRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil // Already running
	}
	r.running = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()
	defer r.finish(stopCh)

	if !r.config.Enabled {
		logger.Info("task runner disabled")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		}
	}

	// Check for due tasks immediately on startup
	r.Tick(ctx)

	ticker := time.NewTicker(r.config.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.Tick(ctx)
			}()
		}
	}
}

// finish marks the loop owning stopCh as ended so Start can run again.
func (r *TaskRunner) finish(stopCh chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh == stopCh {
		r.running = false
		r.stopCh = nil
	}
}

// Stop ends the loop and waits for a running tick to finish.
func (r *TaskRunner) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

// Tick runs every due task once. A tick that starts while the previous
// one is still running is skipped.
func (r *TaskRunner) Tick(ctx context.Context) bool {
	if !r.ticking.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		logger.Debug("task runner: previous tick still running, skipping")
		return false
	}
	defer r.ticking.Store(false)

	r.ticks.Add(1)
	for _, task := range r.plugins.tasks() {
		if ctx.Err() != nil {
			break
		}
		if !task.due(r.clock.Now()) {
			continue
		}
		r.run(ctx, task)
	}
	return true
}

// run executes a single task and records its outcome.
func (r *TaskRunner) run(ctx context.Context, task *pluginTask) {
	result := &domain.TaskResult{
		TaskID:    task.id(),
		StartedAt: r.clock.Now(),
	}

	err := r.executor.Execute(ctx, func(ctx context.Context) error {
		return safeRun(ctx, task.action)
	})

	result.EndedAt = r.clock.Now()
	task.finish(result.EndedAt, err)
	r.runs.Add(1)

	if err != nil {
		r.failures.Add(1)
		result.Error = err.Error()
		logger.Error("task %s failed: %v", result.TaskID, err)
	} else {
		result.Success = true
	}

	if r.history == nil {
		return
	}
	if err := r.history.RecordResult(ctx, result); err != nil {
		logger.Warn("task runner: failed to record result for %s: %v", result.TaskID, err)
	}
	if err := r.history.PruneHistory(ctx, historyRetention); err != nil {
		logger.Warn("task runner: failed to prune history: %v", err)
	}
}

func safeRun(ctx context.Context, fn driven.TaskFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return fn(ctx)
}

// Tasks returns the currently scheduled tasks.
func (r *TaskRunner) Tasks() []domain.ScheduledTask {
	return r.plugins.ScheduledTasks()
}

// Stats returns activity counters.
func (r *TaskRunner) Stats() domain.TaskRunnerStats {
	return domain.TaskRunnerStats{
		Ticks:    r.ticks.Load(),
		Skipped:  r.skipped.Load(),
		Runs:     r.runs.Load(),
		Failures: r.failures.Load(),
	}
}
