// Package coordinator drives the Dispatch -> Monitor -> Verify -> Pr ->
// Complete/Failed phase machine for a single drone, dispatching ready
// tasks from a scheduler onto workers and reacting to their results,
// grounded on original_source's TeamCoordinator
// (backend/native_team/coordinator.rs) and the teacher's
// executor.Orchestrator for signal-handling/config-struct style.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/harrison/drones/internal/gate"
	"github.com/harrison/drones/internal/gitops"
	"github.com/harrison/drones/internal/hive"
	"github.com/harrison/drones/internal/logger"
	"github.com/harrison/drones/internal/models"
	"github.com/harrison/drones/internal/scheduler"
	"github.com/harrison/drones/internal/worker"
)

// PollInterval is how long the monitor loop sleeps when no task is ready
// and no worker is running (spec.md §4.7, "500 ms").
const PollInterval = 500 * time.Millisecond

// Config configures one coordinator run.
type Config struct {
	DroneName     string
	Plan          models.Plan
	Cwd           string         // worktree the workers operate in
	DroneDir      string         // .hive/drones/{name}
	TasksDir      string         // ~/.claude/tasks/{team}
	MaxConcurrent int
	Loop          worker.AgenticLoop // shared across all workers (spawned per task)
	GateLanguage  string             // "" disables the quality gate
	Logger        logger.Logger
	GlobalAbort   *atomic.Bool
}

// Coordinator runs the full phase machine for one drone.
type Coordinator struct {
	cfg       Config
	scheduler *scheduler.Scheduler
	emitter   *hive.Emitter
	phase     models.Phase
	success   bool
	running   map[int]*runningTask
	mu        sync.Mutex
	results   chan models.WorkerResult
}

type runningTask struct {
	abort *atomic.Bool
}

// New builds a Coordinator from cfg, pre-seeding the scheduler with
// already-completed task numbers read from tasksDir (resume support).
func New(cfg Config) *Coordinator {
	completed, _ := hive.CompletedPlanNumbers(cfg.TasksDir)
	return &Coordinator{
		cfg:       cfg,
		scheduler: scheduler.New(cfg.Plan.Tasks, cfg.MaxConcurrent, completed),
		emitter:   hive.NewEmitter(cfg.DroneDir, cfg.TasksDir),
		phase:     models.PhaseDispatch,
		running:   make(map[int]*runningTask),
		results:   make(chan models.WorkerResult),
	}
}

// Phase returns the coordinator's current phase. Every Run exit path ends
// in PhaseComplete (spec.md §4.7, "Failed -(terminal)-> Complete"); use
// Success to distinguish a clean run from one that ended in DroneError.
func (c *Coordinator) Phase() models.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Success reports whether the run's final drone state was Completed
// rather than Error. Only meaningful after Run returns.
func (c *Coordinator) Success() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.success
}

// Run drives the coordinator through its full lifecycle: dispatch/monitor
// until the scheduler drains, then verify, then the PR phase, then writes
// the terminal status.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = c.emitter.WritePID(os.Getpid())

	c.emitter.Emit(hive.HiveEvent{Tag: hive.EventStart})
	_ = c.emitter.UpdateStatus(func(s *models.DroneStatus) {
		s.Name = c.cfg.DroneName
		s.State = models.DroneInProgress
		s.Phase = models.PhaseDispatch
		s.PlanFile = c.cfg.Plan.FilePath
		s.PID = os.Getpid()
		s.Branch = c.cfg.Plan.TargetBranch
		s.Worktree = c.cfg.Cwd
		if s.StartedAt.IsZero() {
			s.StartedAt = time.Now().UTC()
		}
	})

	c.transitionPhase(models.PhaseMonitor)
	if err := c.runMonitorLoop(ctx); err != nil {
		c.transitionPhase(models.PhaseFailed)
		c.finish(false)
		return fmt.Errorf("monitor loop: %w", err)
	}

	if c.scheduler.HasFailures() {
		c.transitionPhase(models.PhaseFailed)
		c.finish(false)
		return nil
	}

	if c.aborted() {
		c.finish(false)
		return nil
	}

	c.transitionPhase(models.PhaseVerify)
	verifyPassed := c.runVerifyPhase(ctx)

	c.transitionPhase(models.PhasePR)
	c.runPRPhase(ctx, verifyPassed)

	c.finish(true)
	return nil
}

// runMonitorLoop is the Dispatch+Monitor loop (Ralph pattern): dispatch
// every ready task, then block until any running worker reports a result,
// repeating until the scheduler has nothing left to do.
func (c *Coordinator) runMonitorLoop(ctx context.Context) error {
	for !c.scheduler.AllCompleted() {
		if c.aborted() {
			c.abortAllWorkers()
			return nil
		}

		ready := c.scheduler.ReadyTasks()
		for _, task := range ready {
			c.dispatchTask(ctx, task)
			c.scheduler.MarkRunning(task.Number)
		}

		if c.runningCount() == 0 {
			if c.scheduler.HasFailures() || c.scheduler.Deadlocked(0) {
				return nil
			}
			time.Sleep(PollInterval)
			continue
		}

		select {
		case <-ctx.Done():
			c.abortAllWorkers()
			return ctx.Err()
		case result := <-c.results:
			c.handleWorkerResult(result)
		}
	}
	return nil
}

// dispatchTask spawns a goroutine running the worker for task, reporting
// its WorkerResult back on c.results when it finishes.
func (c *Coordinator) dispatchTask(ctx context.Context, task models.Task) {
	localAbort := &atomic.Bool{}

	c.mu.Lock()
	c.running[task.Number] = &runningTask{abort: localAbort}
	c.mu.Unlock()

	taskID := task.ID()
	_ = c.emitter.UpdateTaskFileStatus(taskID, "in_progress", task.WorkerName(), fmt.Sprintf("Working on: %s", task.Title))
	c.emitter.Emit(hive.HiveEvent{Tag: hive.EventTaskUpdate, TaskID: taskID, Status: "in_progress", Owner: task.WorkerName()})
	c.emitter.Emit(hive.HiveEvent{Tag: hive.EventAgentSpawn, AgentID: task.WorkerName(), Model: task.Model})

	if c.cfg.Logger != nil {
		c.cfg.Logger.LogTaskDispatch(c.cfg.DroneName, task)
	}

	var g worker.QualityGate
	if c.cfg.GateLanguage != "" {
		if cmd, ok := gate.CommandForLanguage(c.cfg.GateLanguage); ok {
			g = gate.New(cmd)
		}
	}

	go func() {
		result := worker.Run(ctx, worker.Config{
			Task:        task,
			Loop:        c.cfg.Loop,
			Gate:        g,
			Sink:        c.emitter,
			Cwd:         c.cfg.Cwd,
			DroneDir:    c.cfg.DroneDir,
			LocalAbort:  localAbort,
			GlobalAbort: c.cfg.GlobalAbort,
		})
		select {
		case c.results <- result:
		case <-ctx.Done():
		}
	}()
}

// handleWorkerResult applies a finished worker's result to the scheduler
// and emits the corresponding observability events, grounded on
// TeamCoordinator::handle_worker_result.
func (c *Coordinator) handleWorkerResult(result models.WorkerResult) {
	c.mu.Lock()
	delete(c.running, result.TaskNumber)
	c.mu.Unlock()

	taskID := fmt.Sprintf("%d", result.TaskNumber)
	task, _ := c.scheduler.GetTask(result.TaskNumber)

	switch result.Outcome {
	case models.OutcomeCompleted:
		c.scheduler.MarkCompleted(result.TaskNumber)
		_ = c.emitter.UpdateTaskFileStatus(taskID, "completed", "", "")
		c.emitter.Emit(hive.HiveEvent{Tag: hive.EventTaskDone, TaskID: taskID, Subject: task.Task.Title, Owner: task.Task.WorkerName()})
	default:
		c.scheduler.MarkFailed(result.TaskNumber)
		errMsg := result.Summary
		if errMsg == "" {
			errMsg = "unknown error"
		}
		c.emitter.Emit(hive.HiveEvent{Tag: hive.EventWorkerError, TaskID: taskID, ErrorMessage: errMsg})

		if c.scheduler.Requeue(result.TaskNumber) {
			_ = c.emitter.UpdateTaskFileStatus(taskID, "pending", "", "")
		} else {
			_ = c.emitter.UpdateTaskFileStatus(taskID, "completed", "", "")
		}
	}

	if c.cfg.Logger != nil {
		c.cfg.Logger.LogWorkerResult(c.cfg.DroneName, result)
	}
}

func (c *Coordinator) runningCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.running)
}

func (c *Coordinator) abortAllWorkers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.running {
		r.abort.Store(true)
	}
}

func (c *Coordinator) aborted() bool {
	return c.cfg.GlobalAbort != nil && c.cfg.GlobalAbort.Load()
}

// runVerifyPhase gives the verifier agent up to gitops.MaxVerifyAttempts
// turns to make every quality-gate command pass, feeding each failed
// attempt's output into a fix-agent prompt for the next (spec.md §4.7).
func (c *Coordinator) runVerifyPhase(ctx context.Context) bool {
	if c.cfg.Loop == nil {
		return true
	}
	changed := c.changedFiles()
	var commands []string
	if cmd, ok := gate.CommandForLanguage(c.cfg.GateLanguage); ok {
		commands = []string{cmd}
	}

	passed, err := gitops.RunVerifyPhase(ctx, c.cfg.Loop, c.cfg.Plan.Title, changed, commands)
	if err != nil {
		c.emitter.Emit(hive.HiveEvent{Tag: hive.EventWorkerError, ErrorMessage: fmt.Sprintf("verify phase: %v", err)})
		return false
	}
	c.emitter.Emit(hive.HiveEvent{Tag: hive.EventMessage, Summary: fmt.Sprintf("verify phase: passed=%t", passed)})
	return passed
}

// runPRPhase pushes the branch and opens a PR/MR via the detected host,
// carrying a caveat in the PR body when verification did not pass
// (spec.md §4.7, "N attempts exhausted -> Pr (still proceed; caveat in PR
// body)"). It runs once Monitor drains cleanly, whether or not
// verification passed; it is skipped when no Loop is configured or the
// plan has no target branch.
func (c *Coordinator) runPRPhase(ctx context.Context, verifyPassed bool) {
	if c.cfg.Loop == nil {
		return
	}
	branch := c.cfg.Plan.TargetBranch
	if branch == "" {
		return
	}
	result, err := gitops.RunPRPhase(ctx, c.cfg.Loop, c.cfg.Cwd, branch, verifyPassed)
	if err != nil {
		c.emitter.Emit(hive.HiveEvent{Tag: hive.EventWorkerError, ErrorMessage: fmt.Sprintf("pr phase: %v", err)})
		return
	}
	c.emitter.Emit(hive.HiveEvent{Tag: hive.EventMessage, Summary: result.Text})
}

func (c *Coordinator) changedFiles() []string {
	var out []string
	for _, t := range c.cfg.Plan.Tasks {
		out = append(out, t.Files...)
	}
	return out
}

func (c *Coordinator) transitionPhase(next models.Phase) {
	c.mu.Lock()
	prev := c.phase
	c.phase = next
	c.mu.Unlock()

	c.emitter.Emit(hive.HiveEvent{Tag: hive.EventPhaseTransition, FromPhase: string(prev), ToPhase: string(next)})
	_ = c.emitter.UpdateStatus(func(s *models.DroneStatus) { s.Phase = next })
	if c.cfg.Logger != nil {
		c.cfg.Logger.LogPhaseTransition(c.cfg.DroneName, prev, next)
	}
}

// finish transitions the coordinator to its terminal Complete phase and
// records the drone's final state: Completed when success is true, Error
// otherwise (including aborted runs whose phase was never Failed). Every
// exit path, including a Failed monitor loop, ends here.
func (c *Coordinator) finish(success bool) {
	c.transitionPhase(models.PhaseComplete)

	c.mu.Lock()
	c.success = success
	c.mu.Unlock()

	state := models.DroneCompleted
	if !success {
		state = models.DroneError
	}
	_ = c.emitter.UpdateStatus(func(s *models.DroneStatus) { s.State = state })
	c.emitter.Emit(hive.HiveEvent{Tag: hive.EventStop})
}
