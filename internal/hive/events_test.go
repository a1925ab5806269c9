package hive

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/drones/internal/models"
)

func timeMustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestEmitter(t *testing.T) (*Emitter, string) {
	t.Helper()
	dir := t.TempDir()
	droneDir := filepath.Join(dir, "drones", "drone-1")
	tasksDir := filepath.Join(dir, "tasks", "drone-1")
	return NewEmitter(droneDir, tasksDir), droneDir
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestEmitAppendsNDJSONLine(t *testing.T) {
	e, droneDir := newTestEmitter(t)

	e.Emit(HiveEvent{Tag: EventStart, Model: "claude-opus"})
	e.Emit(HiveEvent{Tag: EventStop})

	lines := readLines(t, filepath.Join(droneDir, "events.ndjson"))
	require.Len(t, lines, 2)

	var first HiveEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, EventStart, first.Tag)
	assert.Equal(t, "claude-opus", first.Model)
	assert.False(t, first.TS.IsZero())
}

func TestEmitCostAppendsRecord(t *testing.T) {
	e, droneDir := newTestEmitter(t)
	e.EmitCost(models.CostSummary{InputTokens: 10, OutputTokens: 5})

	lines := readLines(t, filepath.Join(droneDir, "cost.ndjson"))
	require.Len(t, lines, 1)

	var rec CostRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, int64(10), rec.InputTokens)
	assert.Equal(t, int64(5), rec.OutputTokens)
}

func TestUpdateStatusReadModifyWrite(t *testing.T) {
	e, _ := newTestEmitter(t)

	err := e.UpdateStatus(func(s *models.DroneStatus) {
		s.Name = "drone-1"
		s.State = models.DroneStarting
	})
	require.NoError(t, err)

	err = e.UpdateStatus(func(s *models.DroneStatus) {
		s.State = models.DroneInProgress
		s.Phase = models.PhaseDispatch
	})
	require.NoError(t, err)

	status, err := e.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, "drone-1", status.Name) // preserved across the second update
	assert.Equal(t, models.DroneInProgress, status.State)
	assert.Equal(t, models.PhaseDispatch, status.Phase)
}

func TestReadStatusMissingFile(t *testing.T) {
	e, _ := newTestEmitter(t)
	_, err := e.ReadStatus()
	assert.Error(t, err)
}

func TestReadCostSummarySumsLines(t *testing.T) {
	e, droneDir := newTestEmitter(t)

	e.EmitCost(models.CostSummary{InputTokens: 100, OutputTokens: 20})
	e.EmitCost(models.CostSummary{InputTokens: 50, OutputTokens: 10, CacheReadTokens: 5})

	total, err := ReadCostSummary(droneDir)
	require.NoError(t, err)
	assert.Equal(t, int64(150), total.InputTokens)
	assert.Equal(t, int64(30), total.OutputTokens)
	assert.Equal(t, int64(5), total.CacheReadTokens)
}

func TestReadCostSummaryMissingFile(t *testing.T) {
	total, err := ReadCostSummary(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Equal(t, models.CostSummary{}, total)
}

func TestListDronesSortsByUpdatedAt(t *testing.T) {
	root := t.TempDir()
	older := NewEmitter(filepath.Join(root, ".hive", "drones", "drone-a"), "")
	newer := NewEmitter(filepath.Join(root, ".hive", "drones", "drone-b"), "")

	require.NoError(t, older.UpdateStatus(func(s *models.DroneStatus) {
		s.Name = "drone-a"
		s.UpdatedAt = timeMustParse("2026-01-01T00:00:00Z")
	}))
	require.NoError(t, newer.UpdateStatus(func(s *models.DroneStatus) {
		s.Name = "drone-b"
		s.UpdatedAt = timeMustParse("2026-02-01T00:00:00Z")
	}))

	drones, err := ListDrones(root)
	require.NoError(t, err)
	require.Len(t, drones, 2)
	assert.Equal(t, "drone-b", drones[0].Name)
	assert.Equal(t, "drone-a", drones[1].Name)
}

func TestListDronesNoHiveDir(t *testing.T) {
	drones, err := ListDrones(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, drones)
}

func TestWritePIDThenReadPID(t *testing.T) {
	e, droneDir := newTestEmitter(t)
	require.NoError(t, e.WritePID(4242))
	assert.Equal(t, 4242, ReadPID(droneDir))
}

func TestReadPIDMissingFile(t *testing.T) {
	assert.Equal(t, 0, ReadPID(t.TempDir()))
}
