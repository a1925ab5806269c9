package hive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadTaskFile(t *testing.T) {
	tasksDir := t.TempDir()
	e := NewEmitter(filepath.Join(tasksDir, "..", "drone"), tasksDir)

	tf := TaskFile{
		ID:      "1",
		Subject: "Add retry logic",
		Status:  "in_progress",
		Owner:   "worker-1",
		Metadata: map[string]any{
			"plan_number": 1,
		},
	}
	require.NoError(t, e.WriteTaskFile(tf))

	got, err := ReadTaskFile(tasksDir, "1")
	require.NoError(t, err)
	assert.Equal(t, "Add retry logic", got.Subject)
	assert.False(t, got.CreatedAt.IsZero())

	n, ok := got.PlanNumber()
	require.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestWriteTaskFilePreservesCreatedAt(t *testing.T) {
	tasksDir := t.TempDir()
	e := NewEmitter(filepath.Join(tasksDir, "..", "drone"), tasksDir)

	require.NoError(t, e.WriteTaskFile(TaskFile{ID: "1", Status: "pending"}))
	first, err := ReadTaskFile(tasksDir, "1")
	require.NoError(t, err)

	require.NoError(t, e.UpdateTaskFileStatus("1", "completed", "worker-1", ""))
	second, err := ReadTaskFile(tasksDir, "1")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "completed", second.Status)
	assert.Equal(t, "worker-1", second.Owner)
}

func TestListTaskFilesSkipsMalformedEntries(t *testing.T) {
	tasksDir := t.TempDir()
	e := NewEmitter(filepath.Join(tasksDir, "..", "drone"), tasksDir)

	require.NoError(t, e.WriteTaskFile(TaskFile{ID: "1", Status: "completed", Metadata: map[string]any{"plan_number": 1}}))
	require.NoError(t, e.WriteTaskFile(TaskFile{ID: "2", Status: "pending"}))
	require.NoError(t, os.WriteFile(filepath.Join(tasksDir, "bad.json"), []byte("{not json"), 0644))

	files, err := ListTaskFiles(tasksDir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestListTaskFilesMissingDirReturnsEmpty(t *testing.T) {
	files, err := ListTaskFiles(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCompletedPlanNumbers(t *testing.T) {
	tasksDir := t.TempDir()
	e := NewEmitter(filepath.Join(tasksDir, "..", "drone"), tasksDir)

	require.NoError(t, e.WriteTaskFile(TaskFile{ID: "1", Status: "completed", Metadata: map[string]any{"plan_number": 1}}))
	require.NoError(t, e.WriteTaskFile(TaskFile{ID: "2", Status: "pending", Metadata: map[string]any{"plan_number": 2}}))

	nums, err := CompletedPlanNumbers(tasksDir)
	require.NoError(t, err)
	assert.True(t, nums[1])
	assert.False(t, nums[2])
}
