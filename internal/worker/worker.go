package worker

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/harrison/drones/internal/models"
)

// MaxIterations bounds how many agentic-loop turns a single worker will
// run before giving up and returning best-effort success (spec.md §4.5).
const MaxIterations = 10

const (
	taskCompleteSignal = "TASK_COMPLETE"
	taskBlockedSignal  = "TASK_BLOCKED"
)

// MaxTurns is a per-iteration turn cap. It is not passed to the agentic
// loop: TurnRequest carries no turn cap.
const MaxTurns = 25

// QualityGateResult is the outcome of one quality-gate run, defined here
// (rather than imported from internal/gate) to keep Worker decoupled from
// the gate package's process-spawning concerns.
type QualityGateResult struct {
	Passed  bool
	Output  string
	TimedOut bool
}

// QualityGate is the capability the Worker consumes to verify a task
// before finalising completion. internal/gate.Gate implements this.
type QualityGate interface {
	Run(ctx context.Context, cwd string) (QualityGateResult, error)
}

// EventSink receives the observability events a Worker run produces. The
// Coordinator's hive.Emitter satisfies this narrow interface.
type EventSink interface {
	EmitCost(models.CostSummary)
	EmitToolDone(tool string)
	EmitQualityGateResult(taskID string, passed bool, output string)
}

// Config configures a single worker run.
type Config struct {
	Task         models.Task
	Loop         AgenticLoop
	Gate         QualityGate // nil: no quality gate configured, worker accepts first TASK_COMPLETE
	Sink         EventSink   // nil: events are dropped
	Cwd          string
	DroneDir     string // .hive/drones/{name}, for reading/writing notes
	LocalAbort   *atomic.Bool
	GlobalAbort  *atomic.Bool
	ChangedFiles func(cwd string) ([]string, error) // detects files touched since task start; nil uses task.Files
}

// Run executes a worker's full Ralph-pattern loop for one task: build a
// system prompt (including upstream dependency notes), iterate the
// agentic loop up to MaxIterations times watching for TASK_COMPLETE /
// TASK_BLOCKED, and gate successful completions through the configured
// QualityGate before appending a WorkerNote.
func Run(ctx context.Context, cfg Config) models.WorkerResult {
	start := time.Now()
	task := cfg.Task

	notes, _ := NotesFor(cfg.DroneDir, task.DependsOn)
	systemPrompt := buildSystemPrompt(task, notes)

	var resumeID string
	var turns []string

	for iteration := 0; iteration < MaxIterations; iteration++ {
		if aborted(cfg.LocalAbort) || aborted(cfg.GlobalAbort) {
			return models.WorkerResult{
				TaskNumber: task.Number,
				Outcome:    models.OutcomeFailed,
				Summary:    "Aborted",
				Iterations: iteration,
				Duration:   time.Since(start),
			}
		}

		var prompt string
		if iteration == 0 {
			prompt = buildInitialPrompt(task)
		} else {
			prompt = buildContinuationPrompt(task, extractProgressSummary(turns))
		}

		result, err := cfg.Loop.Run(ctx, TurnRequest{
			Prompt:          prompt,
			SystemPrompt:    systemPrompt,
			ResumeSessionID: resumeID,
		})
		if err != nil {
			return models.WorkerResult{
				TaskNumber: task.Number,
				Outcome:    models.OutcomeFailed,
				Summary:    fmt.Sprintf("agentic loop error: %v", err),
				Iterations: iteration + 1,
				Duration:   time.Since(start),
				Err:        err,
			}
		}
		resumeID = result.SessionID
		turns = append(turns, result.Text)

		if cfg.Sink != nil {
			cfg.Sink.EmitCost(result.Cost)
			if result.UsedToolUse {
				cfg.Sink.EmitToolDone(task.WorkerName())
			}
		}

		complete, blockedReason := checkCompletion(result.Text, result.UsedToolUse)

		if blockedReason != "" {
			return models.WorkerResult{
				TaskNumber: task.Number,
				Outcome:    models.OutcomeBlocked,
				Summary:    blockedReason,
				Iterations: iteration + 1,
				Duration:   time.Since(start),
				SessionID:  resumeID,
			}
		}

		if !complete {
			continue
		}

		gateResult, gatePrompt, gateOK := runGate(ctx, cfg)
		if cfg.Sink != nil && cfg.Gate != nil {
			cfg.Sink.EmitQualityGateResult(task.ID(), gateResult.Passed, gateResult.Output)
		}
		if !gateOK {
			// Feed the gate's failure output back as continuation context
			// and keep iterating; this consumes the iteration budget, not
			// the scheduler's task-level retry budget.
			turns = append(turns, gatePrompt)
			continue
		}
		changed := detectChangedFiles(cfg, task)
		if cfg.DroneDir != "" {
			_ = AppendNote(cfg.DroneDir, WorkerNote{
				TaskNumber:   task.Number,
				TaskTitle:    task.Title,
				FilesChanged: changed,
				Summary:      strings.TrimSpace(result.Text),
			})
		}

		return models.WorkerResult{
			TaskNumber:   task.Number,
			Outcome:      models.OutcomeCompleted,
			Summary:      strings.TrimSpace(result.Text),
			FilesChanged: changed,
			Iterations:   iteration + 1,
			Duration:     time.Since(start),
			SessionID:    resumeID,
		}
	}

	// Iteration cap reached: best-effort success per spec.md §4.5; the
	// coordinator's verify phase remains the final arbiter.
	return models.WorkerResult{
		TaskNumber: task.Number,
		Outcome:    models.OutcomeCompleted,
		Summary:    "iteration cap reached (best effort)",
		Iterations: MaxIterations,
		Duration:   time.Since(start),
		SessionID:  resumeID,
	}
}

// runGate runs the configured quality gate, if any. ok is false when the
// gate ran and failed/timed out (the caller should re-enter the loop with
// retryPrompt as additional continuation context); ok is true when there
// is no gate configured or the gate passed.
func runGate(ctx context.Context, cfg Config) (QualityGateResult, string, bool) {
	if cfg.Gate == nil {
		return QualityGateResult{Passed: true}, "", true
	}
	result, err := cfg.Gate.Run(ctx, cfg.Cwd)
	if err != nil {
		return result, buildQualityGateRetryPrompt(err.Error()), false
	}
	if !result.Passed {
		return result, buildQualityGateRetryPrompt(result.Output), false
	}
	return result, "", true
}

func detectChangedFiles(cfg Config, task models.Task) []string {
	if cfg.ChangedFiles != nil {
		if files, err := cfg.ChangedFiles(cfg.Cwd); err == nil {
			return files
		}
	}
	return task.Files
}

func aborted(flag *atomic.Bool) bool {
	return flag != nil && flag.Load()
}

// checkCompletion inspects the latest turn's text for TASK_COMPLETE /
// TASK_BLOCKED signals. If neither is present and the turn used no
// tool-use block, the task is treated as complete (the agent stopped
// acting, so it considers itself finished).
func checkCompletion(text string, usedToolUse bool) (complete bool, blockedReason string) {
	if strings.Contains(text, taskCompleteSignal) {
		return true, ""
	}
	if idx := strings.Index(text, taskBlockedSignal); idx >= 0 {
		reason := strings.TrimSpace(text[idx+len(taskBlockedSignal):])
		reason = strings.TrimPrefix(reason, ":")
		return false, strings.TrimSpace(reason)
	}
	if !usedToolUse {
		return true, ""
	}
	return false, ""
}
