package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndRecentRuns(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordRun(ctx, Run{
		DroneName: "add-caching", PlanFile: "plan.md", Outcome: "completed",
		TasksCompleted: 3, StartedAt: now, FinishedAt: now.Add(10 * time.Minute),
	}))
	require.NoError(t, store.RecordRun(ctx, Run{
		DroneName: "add-caching-2", PlanFile: "plan.md", Outcome: "failed",
		TasksCompleted: 1, TasksFailed: 1, StartedAt: now.Add(time.Hour), FinishedAt: now.Add(2 * time.Hour),
	}))

	runs, err := store.RecentRuns(ctx, "plan.md", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "failed", runs[0].Outcome) // newest first
	require.Equal(t, "completed", runs[1].Outcome)
}
