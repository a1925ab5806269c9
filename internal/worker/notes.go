package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison/drones/internal/filelock"
)

// WorkerNote is a short record of what a completed task changed, appended
// to notes.ndjson on successful completion and consumed by downstream
// tasks' prompt builders so a task's prompt includes its upstream
// dependencies' handoff notes.
type WorkerNote struct {
	TaskNumber   int      `json:"task_number"`
	TaskTitle    string   `json:"task_title"`
	FilesChanged []string `json:"files_changed"`
	Summary      string   `json:"summary"`
}

func notesPath(droneDir string) string {
	return filepath.Join(droneDir, "notes.ndjson")
}

// AppendNote appends a WorkerNote to droneDir's notes.ndjson.
func AppendNote(droneDir string, note WorkerNote) error {
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal worker note: %w", err)
	}
	return filelock.AppendLine(notesPath(droneDir), data)
}

// ReadNotes reads every note appended so far, tolerating malformed lines by
// skipping them (matching the event log's "readers tolerate malformed
// lines" invariant).
func ReadNotes(droneDir string) ([]WorkerNote, error) {
	data, err := os.ReadFile(notesPath(droneDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read notes: %w", err)
	}

	var notes []WorkerNote
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var n WorkerNote
		if err := json.Unmarshal(line, &n); err != nil {
			continue
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// NotesFor returns the notes left by the given upstream dependency task
// numbers, in the order they were appended to the notes file, for
// inclusion in a downstream task's system prompt.
func NotesFor(droneDir string, dependsOn []int) ([]WorkerNote, error) {
	all, err := ReadNotes(droneDir)
	if err != nil {
		return nil, err
	}
	if len(dependsOn) == 0 {
		return nil, nil
	}
	want := make(map[int]bool, len(dependsOn))
	for _, n := range dependsOn {
		want[n] = true
	}
	var out []WorkerNote
	for _, n := range all {
		if want[n.TaskNumber] {
			out = append(out, n)
		}
	}
	return out, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
