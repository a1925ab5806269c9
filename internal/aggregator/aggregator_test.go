package aggregator

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/drones/internal/budget"
	"github.com/harrison/drones/internal/config"
	"github.com/harrison/drones/internal/hive"
	"github.com/harrison/drones/internal/models"
)

func writeDrone(t *testing.T, root, name string, state models.DroneState) string {
	t.Helper()
	droneDir := filepath.Join(root, ".hive", "drones", name)
	e := hive.NewEmitter(droneDir, filepath.Join(root, "tasks", name))
	require.NoError(t, e.UpdateStatus(func(s *models.DroneStatus) {
		s.Name = name
		s.State = state
	}))
	return droneDir
}

func TestPollProjectNoDronesDir(t *testing.T) {
	a := New(t.TempDir(), budget.ModelPricing{})
	view, err := a.PollProject(t.TempDir(), "empty")
	require.NoError(t, err)
	assert.Empty(t, view.Drones)
}

func TestPollProjectCollectsDroneViewsSortedByName(t *testing.T) {
	root := t.TempDir()
	writeDrone(t, root, "drone-b", models.DroneCompleted)
	writeDrone(t, root, "drone-a", models.DroneStopped)

	a := New(t.TempDir(), budget.ModelPricing{InputPer1M: 3, OutputPer1M: 15})
	view, err := a.PollProject(root, "proj")
	require.NoError(t, err)

	require.Len(t, view.Drones, 2)
	assert.Equal(t, "drone-a", view.Drones[0].Name)
	assert.Equal(t, "drone-b", view.Drones[1].Name)
	assert.Equal(t, "stopped", view.Drones[0].Liveness)
	assert.Equal(t, "completed", view.Drones[1].Liveness)
}

func TestPollProjectSumsCostUSD(t *testing.T) {
	root := t.TempDir()
	droneDir := writeDrone(t, root, "drone-a", models.DroneCompleted)

	e := hive.NewEmitter(droneDir, "")
	e.EmitCost(models.CostSummary{InputTokens: 1_000_000, OutputTokens: 1_000_000})

	a := New(t.TempDir(), budget.ModelPricing{InputPer1M: 3, OutputPer1M: 15})
	view, err := a.PollProject(root, "proj")
	require.NoError(t, err)

	require.Len(t, view.Drones, 1)
	assert.InDelta(t, 18.0, view.Drones[0].CostUSD, 0.0001)
	assert.InDelta(t, 18.0, view.TotalCostUSD, 0.0001)
}

func TestPollAllProjectsAddsCwdWhenMissing(t *testing.T) {
	root := t.TempDir()
	writeDrone(t, root, "drone-a", models.DroneInProgress)

	a := New(t.TempDir(), budget.ModelPricing{})
	views, err := a.PollAllProjects(config.ProjectsRegistry{}, root)
	require.NoError(t, err)

	require.Len(t, views, 1)
	assert.Equal(t, root, views[0].Path)
}

func TestPollAllProjectsSkipsRootsWithoutHiveDir(t *testing.T) {
	a := New(t.TempDir(), budget.ModelPricing{})
	registry := config.ProjectsRegistry{Projects: []config.ProjectEntry{
		{Path: t.TempDir(), Name: "no-drones"},
	}}
	views, err := a.PollAllProjects(registry, "")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestPidAliveMissingFile(t *testing.T) {
	assert.False(t, pidAlive(t.TempDir()))
}

func TestPidAliveCurrentProcess(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "drone.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))
	assert.True(t, pidAlive(dir))
}

func TestHasSuccessResultCleanStop(t *testing.T) {
	droneDir := t.TempDir()
	e := hive.NewEmitter(droneDir, "")
	e.Emit(hive.HiveEvent{Tag: hive.EventStart})
	e.Emit(hive.HiveEvent{Tag: hive.EventStop})
	assert.True(t, hasSuccessResult(droneDir))
}

func TestHasSuccessResultErrorStop(t *testing.T) {
	droneDir := t.TempDir()
	e := hive.NewEmitter(droneDir, "")
	e.Emit(hive.HiveEvent{Tag: hive.EventWorkerError, ErrorMessage: "boom"})
	assert.False(t, hasSuccessResult(droneDir))
}

func TestHasSuccessResultMissingLog(t *testing.T) {
	assert.False(t, hasSuccessResult(t.TempDir()))
}
