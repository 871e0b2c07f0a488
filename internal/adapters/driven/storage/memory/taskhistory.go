package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/raindrop/internal/core/domain"
	"github.com/custodia-labs/raindrop/internal/core/ports/driven"
)

// Ensure TaskHistoryStore implements the interface.
var _ driven.TaskHistoryStore = (*TaskHistoryStore)(nil)

// TaskHistoryStore is an in-memory implementation of driven.TaskHistoryStore.
type TaskHistoryStore struct {
	mu      sync.RWMutex
	results map[string][]domain.TaskResult
}

// NewTaskHistoryStore creates an empty history store.
func NewTaskHistoryStore() *TaskHistoryStore {
	return &TaskHistoryStore{
		results: make(map[string][]domain.TaskResult),
	}
}

// RecordResult logs a task execution result.
func (s *TaskHistoryStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.TaskID] = append(s.results[result.TaskID], *result)
	return nil
}

// GetTaskHistory returns recent results for a task, most recent first.
func (s *TaskHistoryStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	s.mu.RLock()
	results := append([]domain.TaskResult(nil), s.results[taskID]...)
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// PruneHistory keeps the most recent 'keep' results per task.
func (s *TaskHistoryStore) PruneHistory(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, results := range s.results {
		if len(results) > keep {
			s.results[id] = append([]domain.TaskResult(nil), results[len(results)-keep:]...)
		}
	}
	return nil
}
