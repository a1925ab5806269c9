package hive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/drones/internal/filelock"
)

// TaskFile is the per-task JSON record under ~/.claude/tasks/{team}/{id}.json,
// written by the Event Emitter (or, outside this core, by LLM tool-call
// hooks treated as an equivalent writer) and read by the Snapshot Store.
type TaskFile struct {
	ID         string         `json:"id"`
	Subject    string         `json:"subject"`
	Description string        `json:"description"`
	Status     string         `json:"status"` // pending | in_progress | completed
	Owner      string         `json:"owner"`
	ActiveForm string         `json:"active_form"`
	BlockedBy  []string       `json:"blocked_by,omitempty"`
	Blocks     []string       `json:"blocks,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// PlanNumber returns the task's originating plan task number, read from
// Metadata["plan_number"], used to map task files back onto scheduler
// task numbers on resume.
func (tf *TaskFile) PlanNumber() (int, bool) {
	if tf.Metadata == nil {
		return 0, false
	}
	v, ok := tf.Metadata["plan_number"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// IsInternal reports whether Metadata["_internal"] is set truthy, marking a
// task file the UI should not surface directly.
func (tf *TaskFile) IsInternal() bool {
	if tf.Metadata == nil {
		return false
	}
	v, _ := tf.Metadata["_internal"].(bool)
	return v
}

func taskFilePath(tasksDir, id string) string {
	return filepath.Join(tasksDir, id+".json")
}

// WriteTaskFile creates or overwrites the task file for tf.ID under
// e.tasksDir. CreatedAt is preserved from any existing file.
func (e *Emitter) WriteTaskFile(tf TaskFile) error {
	path := taskFilePath(e.tasksDir, tf.ID)

	if existing, err := readTaskFile(path); err == nil {
		if tf.CreatedAt.IsZero() {
			tf.CreatedAt = existing.CreatedAt
		}
	} else if tf.CreatedAt.IsZero() {
		tf.CreatedAt = time.Now().UTC()
	}
	tf.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task file %s: %w", tf.ID, err)
	}
	if err := filelock.AtomicWrite(path, data); err != nil {
		fmt.Fprintf(os.Stderr, "hive: write task file %s: %v\n", tf.ID, err)
		return err
	}
	return nil
}

// UpdateTaskFileStatus is a convenience wrapper that reads, patches the
// status field (and owner/active_form when non-empty), and rewrites a
// task file in one call.
func (e *Emitter) UpdateTaskFileStatus(id, status, owner, activeForm string) error {
	path := taskFilePath(e.tasksDir, id)
	tf, err := readTaskFile(path)
	if err != nil {
		tf = TaskFile{ID: id}
	}
	tf.Status = status
	if owner != "" {
		tf.Owner = owner
	}
	if activeForm != "" {
		tf.ActiveForm = activeForm
	}
	return e.WriteTaskFile(tf)
}

func readTaskFile(path string) (TaskFile, error) {
	var tf TaskFile
	data, err := os.ReadFile(path)
	if err != nil {
		return tf, err
	}
	if err := json.Unmarshal(data, &tf); err != nil {
		return tf, fmt.Errorf("unmarshal task file %s: %w", path, err)
	}
	return tf, nil
}

// ReadTaskFile reads and parses a single task file by id from tasksDir.
func ReadTaskFile(tasksDir, id string) (TaskFile, error) {
	return readTaskFile(taskFilePath(tasksDir, id))
}

// ListTaskFiles returns every task file under tasksDir, tolerating
// malformed or unreadable entries by skipping them (spec's append-only log
// readers must "tolerate malformed lines" principle extended to task
// files).
func ListTaskFiles(tasksDir string) ([]TaskFile, error) {
	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tasks dir %s: %w", tasksDir, err)
	}

	var out []TaskFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		tf, err := readTaskFile(filepath.Join(tasksDir, entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, tf)
	}
	return out, nil
}

// CompletedPlanNumbers scans tasksDir for task files already marked
// completed and returns the set of their originating plan task numbers,
// used by the Coordinator to resume a scheduler after a crash.
func CompletedPlanNumbers(tasksDir string) (map[int]bool, error) {
	files, err := ListTaskFiles(tasksDir)
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool)
	for _, tf := range files {
		if tf.Status != "completed" {
			continue
		}
		if n, ok := tf.PlanNumber(); ok {
			out[n] = true
		}
	}
	return out, nil
}
