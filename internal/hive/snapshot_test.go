package hive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTodos(t *testing.T, droneDir string, items []todoItem) {
	t.Helper()
	require.NoError(t, os.MkdirAll(droneDir, 0755))
	data, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(droneDir, "todos.json"), data, 0644))
}

func TestSnapshotReadsFromTodosFirst(t *testing.T) {
	claudeDir := t.TempDir()
	droneDir := t.TempDir()
	store := NewStore(claudeDir)

	writeTodos(t, droneDir, []todoItem{
		{Content: "task one", Status: "completed"},
		{Content: "task two", Status: "pending"},
	})

	snap, err := store.Update("drone-1", "drone-1", droneDir)
	require.NoError(t, err)
	assert.Equal(t, SourceEvents, snap.Source)
	assert.Equal(t, Progress{Completed: 1, Total: 2}, snap.Progress)
}

func TestSnapshotFallsBackToTaskFiles(t *testing.T) {
	claudeDir := t.TempDir()
	droneDir := t.TempDir()
	store := NewStore(claudeDir)

	tasksDir := filepath.Join(claudeDir, "tasks", "drone-1")
	e := NewEmitter(droneDir, tasksDir)
	require.NoError(t, e.WriteTaskFile(TaskFile{ID: "1", Subject: "one", Status: "completed"}))
	require.NoError(t, e.WriteTaskFile(TaskFile{ID: "2", Subject: "two", Status: "pending"}))

	snap, err := store.Update("drone-1", "drone-1", droneDir)
	require.NoError(t, err)
	assert.Equal(t, SourceEvents, snap.Source)
	assert.Len(t, snap.Tasks, 2)
}

func TestSnapshotFallsBackToCacheWhenNoLiveSource(t *testing.T) {
	claudeDir := t.TempDir()
	droneDir := t.TempDir()
	store := NewStore(claudeDir)

	require.NoError(t, os.MkdirAll(droneDir, 0755))
	cache := snapshotCache{Tasks: []TaskView{{ID: "1", Status: "completed"}}}
	data, err := json.Marshal(cache)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(droneDir, "tasks-snapshot.json"), data, 0644))

	snap, err := store.Update("drone-1", "drone-1", droneDir)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, snap.Source)
	assert.Equal(t, 1, snap.Progress.Completed)
}

func TestSnapshotMonotonicProgressAcrossDisappearingFiles(t *testing.T) {
	claudeDir := t.TempDir()
	droneDir := t.TempDir()
	store := NewStore(claudeDir)

	writeTodos(t, droneDir, []todoItem{
		{Content: "a", Status: "completed"},
		{Content: "b", Status: "completed"},
	})
	first, err := store.Update("drone-1", "drone-1", droneDir)
	require.NoError(t, err)
	require.Equal(t, Progress{Completed: 2, Total: 2}, first.Progress)

	// Source disappears entirely on the next tick; cache should carry the
	// last-known good state, and the high-water mark must not regress.
	require.NoError(t, os.Remove(filepath.Join(droneDir, "todos.json")))

	second, err := store.Update("drone-1", "drone-1", droneDir)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Progress, second.Progress)
}

func TestSnapshotTaskOnceCompletedNeverRegresses(t *testing.T) {
	claudeDir := t.TempDir()
	droneDir := t.TempDir()
	store := NewStore(claudeDir)

	writeTodos(t, droneDir, []todoItem{{Content: "a", Status: "completed"}})
	_, err := store.Update("drone-1", "drone-1", droneDir)
	require.NoError(t, err)

	// Same task id reappears as pending (e.g. a stale write race); the
	// high-water set must force it back to completed in the snapshot.
	writeTodos(t, droneDir, []todoItem{{Content: "a", Status: "pending"}})
	snap, err := store.Update("drone-1", "drone-1", droneDir)
	require.NoError(t, err)
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "completed", snap.Tasks[0].Status)
}

func TestAgentsFallBackToTaskOwnersWhenNoMembers(t *testing.T) {
	claudeDir := t.TempDir()
	droneDir := t.TempDir()
	store := NewStore(claudeDir)

	tasksDir := filepath.Join(claudeDir, "tasks", "drone-1")
	e := NewEmitter(droneDir, tasksDir)
	require.NoError(t, e.WriteTaskFile(TaskFile{ID: "1", Owner: "worker-1", Status: "completed"}))

	snap, err := store.Update("drone-1", "drone-1", droneDir)
	require.NoError(t, err)
	require.Len(t, snap.Agents, 1)
	assert.Equal(t, "worker-1", snap.Agents[0].Name)
}
