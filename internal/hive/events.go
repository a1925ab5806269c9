// Package hive implements the drone-runtime filesystem surface: the
// append-only event log, per-task JSON files, the drone status file, and
// the derived per-tick Snapshot consumed by the UI and the liveness
// detector.
package hive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/harrison/drones/internal/filelock"
	"github.com/harrison/drones/internal/models"
)

// EventTag identifies the kind of a HiveEvent record.
type EventTag string

const (
	EventStart             EventTag = "start"
	EventStop              EventTag = "stop"
	EventSubagentStart     EventTag = "subagent_start"
	EventSubagentStop      EventTag = "subagent_stop"
	EventAgentSpawn        EventTag = "agent_spawn"
	EventTaskUpdate        EventTag = "task_update"
	EventTaskDone          EventTag = "task_done"
	EventToolDone          EventTag = "tool_done"
	EventQualityGateResult EventTag = "quality_gate_result"
	EventWorkerError       EventTag = "worker_error"
	EventPhaseTransition   EventTag = "phase_transition"
	EventMessage           EventTag = "message"
	EventTodoSnapshot      EventTag = "todo_snapshot" // legacy, UI compatibility
	EventIdle              EventTag = "idle"          // legacy, UI compatibility
	EventCost              EventTag = "cost"
)

// HiveEvent is a single tagged record appended to events.ndjson. Fields not
// relevant to Tag are omitted from the marshaled JSON.
type HiveEvent struct {
	Tag EventTag  `json:"event"`
	TS  time.Time `json:"ts"`

	Model         string `json:"model,omitempty"`
	AgentID       string `json:"agent_id,omitempty"`
	AgentType     string `json:"subagent_type,omitempty"`
	Name          string `json:"name,omitempty"`
	TaskID        string `json:"task_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Agent         string `json:"agent,omitempty"`
	Tool          string `json:"tool,omitempty"`
	ToolUseID     string `json:"tool_use_id,omitempty"`
	Passed        *bool  `json:"passed,omitempty"`
	Output        string `json:"output,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	FromPhase     string `json:"from_phase,omitempty"`
	ToPhase       string `json:"to_phase,omitempty"`
	Recipient     string `json:"recipient,omitempty"`
	Summary       string `json:"summary,omitempty"`
}

// CostRecord is one line of cost.ndjson, summed by the Poll Aggregator.
type CostRecord struct {
	TS                time.Time `json:"ts"`
	InputTokens       int64     `json:"input_tokens"`
	OutputTokens      int64     `json:"output_tokens"`
	CacheReadTokens   int64     `json:"cache_read"`
	CacheCreateTokens int64     `json:"cache_create"`
}

// Emitter appends events, mutates status.json, writes task files, and
// records cost for one drone. Emit and EmitCost swallow write failures;
// UpdateStatus, WriteTaskFile and WritePID return the error to the caller
// (spec.md §4.3 / §7 "filesystem write failures").
type Emitter struct {
	droneDir string // .hive/drones/{name}
	tasksDir string // ~/.claude/tasks/{team}
}

// NewEmitter builds an Emitter for a drone rooted at droneDir, writing task
// files into tasksDir.
func NewEmitter(droneDir, tasksDir string) *Emitter {
	return &Emitter{droneDir: droneDir, tasksDir: tasksDir}
}

func (e *Emitter) eventsPath() string { return filepath.Join(e.droneDir, "events.ndjson") }
func (e *Emitter) costPath() string   { return filepath.Join(e.droneDir, "cost.ndjson") }
func (e *Emitter) statusPath() string { return filepath.Join(e.droneDir, "status.json") }
func (e *Emitter) pidPath() string    { return filepath.Join(e.droneDir, "drone.pid") }

// WritePID records the coordinator process's PID to drone.pid, the file
// the liveness detector's PIDAlive dependency and the poll aggregator's
// zombie check both read. A write failure is returned to the caller.
func (e *Emitter) WritePID(pid int) error {
	return filelock.AtomicWrite(e.pidPath(), []byte(fmt.Sprintf("%d\n", pid)))
}

// ReadPID reads the PID previously written by WritePID for the drone
// rooted at droneDir, returning 0 if no PID file exists.
func ReadPID(droneDir string) int {
	data, err := os.ReadFile(filepath.Join(droneDir, "drone.pid"))
	if err != nil {
		return 0
	}
	var pid int
	fmt.Sscanf(string(data), "%d", &pid)
	return pid
}

// Emit appends one event to events.ndjson, stamping TS if unset. Write
// failures are logged to stderr and otherwise ignored.
func (e *Emitter) Emit(ev HiveEvent) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hive: marshal event %s: %v\n", ev.Tag, err)
		return
	}
	if err := filelock.AppendLine(e.eventsPath(), data); err != nil {
		fmt.Fprintf(os.Stderr, "hive: append event %s: %v\n", ev.Tag, err)
	}
}

// EmitCost appends one cost record to cost.ndjson.
func (e *Emitter) EmitCost(c models.CostSummary) {
	rec := CostRecord{
		TS:                time.Now().UTC(),
		InputTokens:       c.InputTokens,
		OutputTokens:      c.OutputTokens,
		CacheReadTokens:   c.CacheReadTokens,
		CacheCreateTokens: c.CacheCreateTokens,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hive: marshal cost: %v\n", err)
		return
	}
	if err := filelock.AppendLine(e.costPath(), data); err != nil {
		fmt.Fprintf(os.Stderr, "hive: append cost: %v\n", err)
	}
}

// UpdateStatus performs a best-effort read-modify-write of status.json,
// applying mutate to the current (or zero-value) status before writing it
// back. Failures to read an existing file are treated as "no prior
// status" rather than propagated.
func (e *Emitter) UpdateStatus(mutate func(*models.DroneStatus)) error {
	var status models.DroneStatus
	if data, err := os.ReadFile(e.statusPath()); err == nil {
		_ = json.Unmarshal(data, &status)
	}
	mutate(&status)
	status.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := filelock.AtomicWrite(e.statusPath(), data); err != nil {
		fmt.Fprintf(os.Stderr, "hive: write status: %v\n", err)
		return err
	}
	return nil
}

// EmitToolDone appends a tool_done event for tool, satisfying
// worker.EventSink.
func (e *Emitter) EmitToolDone(tool string) {
	e.Emit(HiveEvent{Tag: EventToolDone, Tool: tool})
}

// EmitQualityGateResult appends a quality_gate_result event, satisfying
// worker.EventSink.
func (e *Emitter) EmitQualityGateResult(taskID string, passed bool, output string) {
	e.Emit(HiveEvent{Tag: EventQualityGateResult, TaskID: taskID, Passed: &passed, Output: output})
}

// ReadStatus reads and parses the current status.json, if present.
func (e *Emitter) ReadStatus() (models.DroneStatus, error) {
	var status models.DroneStatus
	data, err := os.ReadFile(e.statusPath())
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, fmt.Errorf("unmarshal status: %w", err)
	}
	return status, nil
}

// ReadCostSummary sums every line of droneDir's cost.ndjson into a single
// CostSummary, grounded on original_source's parse_cost_from_log. A
// missing file yields a zero summary, not an error.
func ReadCostSummary(droneDir string) (models.CostSummary, error) {
	var total models.CostSummary

	data, err := os.ReadFile(filepath.Join(droneDir, "cost.ndjson"))
	if os.IsNotExist(err) {
		return total, nil
	}
	if err != nil {
		return total, fmt.Errorf("read cost log: %w", err)
	}

	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var rec CostRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		total.Add(models.CostSummary{
			InputTokens:       rec.InputTokens,
			OutputTokens:      rec.OutputTokens,
			CacheReadTokens:   rec.CacheReadTokens,
			CacheCreateTokens: rec.CacheCreateTokens,
		})
	}
	return total, nil
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

// DroneEntry is one drone discovered by ListDrones: its name and current
// status.
type DroneEntry struct {
	Name   string
	Status models.DroneStatus
}

// ListDrones walks hiveRoot/.hive/drones, reading each drone's status.json,
// grounded on original_source's commands/status.rs list_drones. Drones
// without a status.json are skipped. Results are sorted by UpdatedAt,
// most-recent first.
func ListDrones(hiveRoot string) ([]DroneEntry, error) {
	dronesDir := filepath.Join(hiveRoot, ".hive", "drones")

	entries, err := os.ReadDir(dronesDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read drones dir: %w", err)
	}

	var out []DroneEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		droneDir := filepath.Join(dronesDir, entry.Name())
		data, err := os.ReadFile(filepath.Join(droneDir, "status.json"))
		if err != nil {
			continue
		}
		var status models.DroneStatus
		if err := json.Unmarshal(data, &status); err != nil {
			continue
		}
		out = append(out, DroneEntry{Name: entry.Name(), Status: status})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Status.UpdatedAt.After(out[j].Status.UpdatedAt)
	})

	return out, nil
}
