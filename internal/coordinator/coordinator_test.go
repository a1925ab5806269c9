package coordinator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/drones/internal/models"
	"github.com/harrison/drones/internal/worker"
)

// scriptedLoop answers every turn with TASK_COMPLETE immediately, with no
// tool use, so the worker package treats each task as a single-iteration
// success.
type scriptedLoop struct{}

func (scriptedLoop) Run(ctx context.Context, req worker.TurnRequest) (worker.TurnResult, error) {
	return worker.TurnResult{Text: "done\nTASK_COMPLETE"}, nil
}

func samplePlan() models.Plan {
	return models.Plan{
		Title: "Add caching layer",
		Tasks: []models.Task{
			{Number: 1, Title: "Define cache interface"},
			{Number: 2, Title: "Implement LRU cache", DependsOn: []int{1}},
		},
	}
}

func TestRunDrivesPlanToCompletion(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		DroneName:     "test-drone",
		Plan:          samplePlan(),
		Cwd:           dir,
		DroneDir:      dir + "/.hive",
		TasksDir:      dir + "/tasks",
		MaxConcurrent: 2,
		Loop:          scriptedLoop{},
	}
	c := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseComplete, c.Phase())
	assert.True(t, c.Success())
	assert.True(t, c.scheduler.AllCompleted())
}

func TestRunRespectsGlobalAbort(t *testing.T) {
	dir := t.TempDir()
	abort := &atomic.Bool{}
	abort.Store(true)

	cfg := Config{
		DroneName:     "test-drone",
		Plan:          samplePlan(),
		Cwd:           dir,
		DroneDir:      dir + "/.hive",
		TasksDir:      dir + "/tasks",
		MaxConcurrent: 2,
		Loop:          scriptedLoop{},
		GlobalAbort:   abort,
	}
	c := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := c.Run(ctx)
	require.NoError(t, err)
	assert.False(t, c.scheduler.AllCompleted())
}

type failingLoop struct{ calls int32 }

func (f *failingLoop) Run(ctx context.Context, req worker.TurnRequest) (worker.TurnResult, error) {
	atomic.AddInt32(&f.calls, 1)
	return worker.TurnResult{Text: "TASK_BLOCKED: missing credentials"}, nil
}

func TestRunMarksPlanFailedWhenTaskExhaustsRetries(t *testing.T) {
	dir := t.TempDir()
	plan := models.Plan{Tasks: []models.Task{{Number: 1, Title: "x"}}}

	cfg := Config{
		DroneName:     "test-drone",
		Plan:          plan,
		Cwd:           dir,
		DroneDir:      dir + "/.hive",
		TasksDir:      dir + "/tasks",
		MaxConcurrent: 1,
		Loop:          &failingLoop{},
	}
	c := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseComplete, c.Phase())
	assert.False(t, c.Success())
}
