package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadNotes(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, AppendNote(dir, WorkerNote{TaskNumber: 1, TaskTitle: "one", Summary: "did one"}))
	require.NoError(t, AppendNote(dir, WorkerNote{TaskNumber: 2, TaskTitle: "two", Summary: "did two"}))

	notes, err := ReadNotes(dir)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "did one", notes[0].Summary)
	assert.Equal(t, "did two", notes[1].Summary)
}

func TestReadNotesMissingFileReturnsEmpty(t *testing.T) {
	notes, err := ReadNotes(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestNotesForFiltersByDependency(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AppendNote(dir, WorkerNote{TaskNumber: 1, Summary: "a"}))
	require.NoError(t, AppendNote(dir, WorkerNote{TaskNumber: 2, Summary: "b"}))
	require.NoError(t, AppendNote(dir, WorkerNote{TaskNumber: 3, Summary: "c"}))

	notes, err := NotesFor(dir, []int{1, 3})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "a", notes[0].Summary)
	assert.Equal(t, "c", notes[1].Summary)
}

func TestNotesForNoDependenciesReturnsNil(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AppendNote(dir, WorkerNote{TaskNumber: 1, Summary: "a"}))

	notes, err := NotesFor(dir, nil)
	require.NoError(t, err)
	assert.Nil(t, notes)
}
