package models

import "time"

// WorkerOutcome is the terminal signal a worker's agentic loop produced.
type WorkerOutcome string

const (
	OutcomeCompleted WorkerOutcome = "completed" // saw TASK_COMPLETE, quality gate passed
	OutcomeBlocked   WorkerOutcome = "blocked"    // saw TASK_BLOCKED
	OutcomeFailed    WorkerOutcome = "failed"     // exhausted iterations or fatal loop error
)

// WorkerResult is what a worker reports back to the coordinator when its
// goroutine exits, whether by success, block, or failure.
type WorkerResult struct {
	TaskNumber   int
	Outcome      WorkerOutcome
	Summary      string        // final agent message, or blocked/failure reason
	FilesChanged []string      // files the agent reported touching
	Iterations   int           // iterations consumed (<= worker.MaxIterations)
	Duration     time.Duration
	SessionID    string // agentic-loop session id, for resume/rate-limit recovery
	Err          error
}

// DroneState is the coarse-grained lifecycle state of a single drone
// process, as recorded in its status file and snapshot.
type DroneState string

const (
	DroneStarting  DroneState = "starting"
	DroneResuming  DroneState = "resuming"
	DroneInProgress DroneState = "in_progress"
	DroneCompleted DroneState = "completed"
	DroneError     DroneState = "error"
	DroneStopped   DroneState = "stopped"
	DroneCleaning  DroneState = "cleaning"
	DroneZombie    DroneState = "zombie"
)

// Phase is the coordinator's current stage in its dispatch/monitor/
// verify/pr/complete state machine.
type Phase string

const (
	PhaseDispatch Phase = "dispatch"
	PhaseMonitor  Phase = "monitor"
	PhaseVerify   Phase = "verify"
	PhasePR       Phase = "pr"
	PhaseComplete Phase = "complete"
	PhaseFailed   Phase = "failed"
)

// DroneStatus is the full on-disk status snapshot a coordinator writes to
// status.json after every phase transition, matching the DroneState/Phase
// pair the liveness detector and poll aggregator both read.
type DroneStatus struct {
	Name      string     `json:"name"`
	State     DroneState `json:"state"`
	Phase     Phase      `json:"phase"`
	PlanFile  string     `json:"plan_file"`
	PID       int        `json:"pid,omitempty"`
	Branch    string     `json:"branch,omitempty"`
	Worktree  string     `json:"worktree,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Error     string     `json:"error,omitempty"`
}

// CostSummary aggregates token usage reported across a drone's agentic
// loop invocations, supplementing the spec's cost-accounting surface.
type CostSummary struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens"`
	CacheCreateTokens int64 `json:"cache_create_tokens"`
}

// Add accumulates another cost record into this summary.
func (c *CostSummary) Add(other CostSummary) {
	c.InputTokens += other.InputTokens
	c.OutputTokens += other.OutputTokens
	c.CacheReadTokens += other.CacheReadTokens
	c.CacheCreateTokens += other.CacheCreateTokens
}
