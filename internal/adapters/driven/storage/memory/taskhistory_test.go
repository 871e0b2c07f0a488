package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

func TestTaskHistoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewTaskHistoryStore()
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
			TaskID:    "poll",
			StartedAt: base.Add(time.Duration(i) * time.Second),
			Success:   i%2 == 0,
		}))
	}
	assert.ErrorIs(t, store.RecordResult(ctx, nil), domain.ErrInvalidInput)

	history, err := store.GetTaskHistory(ctx, "poll", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].StartedAt.After(history[1].StartedAt))
	assert.Equal(t, base.Add(4*time.Second), history[0].StartedAt)

	require.NoError(t, store.PruneHistory(ctx, 3))
	history, err = store.GetTaskHistory(ctx, "poll", 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	empty, err := store.GetTaskHistory(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
