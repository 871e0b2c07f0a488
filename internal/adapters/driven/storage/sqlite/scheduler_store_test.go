package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

func TestTaskHistoryStore_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	history := setupTestUser(t, t.TempDir()).Store().TaskHistory()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		result := &domain.TaskResult{
			TaskID:    "feed/poll",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			EndedAt:   base.Add(time.Duration(i)*time.Minute + time.Second),
			Success:   i%2 == 0,
		}
		if !result.Success {
			result.Error = "fetch failed"
		}
		require.NoError(t, history.RecordResult(ctx, result))
	}

	got, err := history.GetTaskHistory(ctx, "feed/poll", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(4*time.Minute), got[0].StartedAt)
	assert.Equal(t, base.Add(4*time.Minute+time.Second), got[0].EndedAt)
	assert.True(t, got[0].Success)
	assert.Empty(t, got[0].Error)
	assert.False(t, got[1].Success)
	assert.Equal(t, "fetch failed", got[1].Error)

	all, err := history.GetTaskHistory(ctx, "feed/poll", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := history.GetTaskHistory(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTaskHistoryStore_RecordNil(t *testing.T) {
	history := setupTestUser(t, t.TempDir()).Store().TaskHistory()
	assert.ErrorIs(t, history.RecordResult(context.Background(), nil), domain.ErrInvalidInput)
}

func TestTaskHistoryStore_ZeroEndTime(t *testing.T) {
	ctx := context.Background()
	history := setupTestUser(t, t.TempDir()).Store().TaskHistory()

	require.NoError(t, history.RecordResult(ctx, &domain.TaskResult{
		TaskID:    "system/counter",
		StartedAt: time.Now(),
	}))
	got, err := history.GetTaskHistory(ctx, "system/counter", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].EndedAt.IsZero())
}

func TestTaskHistoryStore_PrunePerTask(t *testing.T) {
	ctx := context.Background()
	history := setupTestUser(t, t.TempDir()).Store().TaskHistory()
	base := time.Now()

	for i := 0; i < 4; i++ {
		for _, id := range []string{"a/one", "b/two"} {
			require.NoError(t, history.RecordResult(ctx, &domain.TaskResult{
				TaskID:    id,
				StartedAt: base.Add(time.Duration(i) * time.Second),
				Success:   true,
			}))
		}
	}

	require.NoError(t, history.PruneHistory(ctx, 2))
	for _, id := range []string{"a/one", "b/two"} {
		got, err := history.GetTaskHistory(ctx, id, 0)
		require.NoError(t, err)
		require.Len(t, got, 2, id)
		assert.True(t, got[0].StartedAt.Equal(base.Add(3*time.Second).UTC()))
	}
}
