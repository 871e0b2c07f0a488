package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

// Ensure implementations satisfy the interfaces.
var (
	_ driven.Executor = (*SerialExecutor)(nil)
	_ driven.Clock    = SystemClock{}
)

// SerialExecutor runs one action at a time. Hosts route every state
// mutation that must not interleave with task actions through the same
// executor.
type SerialExecutor struct {
	mu sync.Mutex
}

// NewSerialExecutor creates a serial executor.
func NewSerialExecutor() *SerialExecutor {
	return &SerialExecutor{}
}

// Execute runs fn after every earlier action has finished.
func (e *SerialExecutor) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
