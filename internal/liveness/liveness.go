// Package liveness detects drones whose process has died, completed via a
// marker file or merged PR, gone idle, or stalled, grounded on
// original_source's commands/monitor/state/detection.rs and
// webui/monitor/liveness.rs.
package liveness

import (
	"sync"
	"time"

	"github.com/harrison/drones/internal/models"
)

// Throttling constants, matching original_source's tick counters and
// second-based timeouts (spec.md §4.8).
const (
	IdleTimeout           = 120 * time.Second
	StallTimeout          = 600 * time.Second
	StartupGrace          = 30 * time.Second
	PRCompletionThrottle  = 300 // ticks
	PRMergeCheckThrottle  = 600 // ticks
	PRStateCacheTTL       = 60 * time.Second
)

// Record is one drone's observable state, as tracked by the poll
// aggregator and mutated in place by the Detector.
type Record struct {
	Name     string
	Status   models.DroneStatus
	Branch   string
	Worktree string
}

// Dependencies abstracts the detector's external collaborators (process
// inspection, PR-host queries, marker files, stop events) so tests can
// inject fakes.
type Dependencies struct {
	PIDAlive     func(drone string) bool
	HasStopEvent func(drone string) bool
	MarkerExists func(worktree string) bool
	RemoveMarker func(worktree string)
	CheckPRState func(branch, expectedState string) bool
	KillQuiet    func(drone string)
	CleanDrone   func(drone string)
	Progress     func(drone string) (completed, total int)
	Notify       func(title, body string)
}

// Detector runs the periodic liveness checks a poll aggregator drives on
// each tick. Safe for concurrent use.
type Detector struct {
	deps Dependencies
	now  func() time.Time

	mu                  sync.Mutex
	zombieFirstSeen     map[string]time.Time
	allTasksDoneSince    map[string]time.Time
	lastEventTime       map[string]time.Time
	autoStopped         map[string]bool
	prCompletionCounter int
	mergeCheckCounter   int
}

// New builds a Detector around deps. now defaults to time.Now.
func New(deps Dependencies) *Detector {
	return &Detector{
		deps:              deps,
		now:               time.Now,
		zombieFirstSeen:   make(map[string]time.Time),
		allTasksDoneSince: make(map[string]time.Time),
		lastEventTime:     make(map[string]time.Time),
		autoStopped:       make(map[string]bool),
	}
}

// RecordEvent marks drone as having produced an event just now, resetting
// its idle/stall clocks.
func (d *Detector) RecordEvent(drone string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastEventTime[drone] = d.now()
}

func (d *Detector) pidAlive(name string) bool {
	if d.deps.PIDAlive == nil {
		return false
	}
	return d.deps.PIDAlive(name)
}

// DetectZombies marks drones whose backing process has died as Zombie
// (or Stopped, if a stop event was already recorded) — the only check
// that mutates an in-progress drone's terminal state based purely on
// process liveness.
func (d *Detector) DetectZombies(records []*Record) {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range records {
		if !isActive(r.Status.State) {
			continue
		}
		if r.Status.State == models.DroneStarting || r.Status.State == models.DroneResuming {
			if now.Sub(r.Status.UpdatedAt) < StartupGrace {
				continue
			}
		}
		if d.pidAlive(r.Name) {
			continue
		}

		hasStop := d.deps.HasStopEvent != nil && d.deps.HasStopEvent(r.Name)
		if hasStop {
			r.Status.State = models.DroneStopped
		} else {
			r.Status.State = models.DroneZombie
			if _, ok := d.zombieFirstSeen[r.Name]; !ok {
				d.zombieFirstSeen[r.Name] = now
			}
		}
		r.Status.UpdatedAt = now
	}

	for name := range d.zombieFirstSeen {
		stillZombie := false
		for _, r := range records {
			if r.Name == name && r.Status.State == models.DroneZombie {
				stillZombie = true
				break
			}
		}
		if !stillZombie {
			delete(d.zombieFirstSeen, name)
		}
	}
}

// DetectCompletionMarkers checks for a `.hive_complete` marker file in
// each in-progress drone's worktree, marking it Completed and cleaning
// up its process when found.
func (d *Detector) DetectCompletionMarkers(records []*Record) {
	now := d.now()
	for _, r := range records {
		if !isActive(r.Status.State) {
			continue
		}
		if d.deps.MarkerExists == nil || !d.deps.MarkerExists(r.Worktree) {
			continue
		}
		r.Status.State = models.DroneCompleted
		r.Status.UpdatedAt = now
		if d.deps.KillQuiet != nil {
			d.deps.KillQuiet(r.Name)
		}
		if d.deps.RemoveMarker != nil {
			d.deps.RemoveMarker(r.Worktree)
		}
		if d.deps.Notify != nil {
			d.deps.Notify("Hive - "+r.Name, "Drone completed!")
		}
	}
}

// Tick increments the PR-completion and PR-merge throttle counters; call
// once per poll-aggregator cycle before DetectPRCompletion/DetectPRMerges.
func (d *Detector) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prCompletionCounter++
	d.mergeCheckCounter++
}

// DetectPRCompletion marks an in-progress drone Completed once its PR is
// open and every task is done, throttled to every PRCompletionThrottle
// ticks (spec.md §4.8, "~300 ticks").
func (d *Detector) DetectPRCompletion(records []*Record) {
	d.mu.Lock()
	if d.prCompletionCounter < PRCompletionThrottle {
		d.mu.Unlock()
		return
	}
	d.prCompletionCounter = 0
	d.mu.Unlock()

	now := d.now()
	for _, r := range records {
		if r.Status.State != models.DroneInProgress {
			continue
		}
		if d.deps.CheckPRState == nil || !d.deps.CheckPRState(r.Branch, "OPEN") {
			continue
		}
		completed, total := d.progress(r.Name)
		if total == 0 || completed < total {
			continue
		}
		r.Status.State = models.DroneCompleted
		r.Status.UpdatedAt = now
		if d.deps.KillQuiet != nil {
			d.deps.KillQuiet(r.Name)
		}
		if d.deps.Notify != nil {
			d.deps.Notify("Hive - "+r.Name, "Drone completed (PR created)!")
		}
	}
}

// DetectPRMerges auto-cleans drones whose PR has merged, throttled to
// every PRMergeCheckThrottle ticks. Returns the cleaned drone names.
func (d *Detector) DetectPRMerges(records []*Record) []string {
	d.mu.Lock()
	if d.mergeCheckCounter < PRMergeCheckThrottle {
		d.mu.Unlock()
		return nil
	}
	d.mergeCheckCounter = 0
	d.mu.Unlock()

	var cleaned []string
	for _, r := range records {
		if r.Status.State != models.DroneCompleted && r.Status.State != models.DroneStopped {
			continue
		}
		if d.deps.CheckPRState == nil || !d.deps.CheckPRState(r.Branch, "MERGED") {
			continue
		}
		if d.deps.CleanDrone != nil {
			d.deps.CleanDrone(r.Name)
		}
		if d.deps.Notify != nil {
			d.deps.Notify("Hive", "PR merged — drone '"+r.Name+"' auto-cleaned")
		}
		cleaned = append(cleaned, r.Name)
	}
	return cleaned
}

// DetectIdleDrones auto-completes an in-progress drone once every task
// has been done for IdleTimeout with no new events in that window.
func (d *Detector) DetectIdleDrones(records []*Record) {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range records {
		if r.Status.State != models.DroneInProgress || d.autoStopped[r.Name] {
			continue
		}
		completed, total := d.progress(r.Name)
		if total == 0 || completed < total {
			delete(d.allTasksDoneSince, r.Name)
			continue
		}
		firstSeen, ok := d.allTasksDoneSince[r.Name]
		if !ok {
			d.allTasksDoneSince[r.Name] = now
			continue
		}
		lastEvent, hasEvent := d.lastEventTime[r.Name]
		idleLongEnough := now.Sub(firstSeen) > IdleTimeout
		noRecentEvents := !hasEvent || now.Sub(lastEvent) > IdleTimeout
		if !idleLongEnough || !noRecentEvents {
			continue
		}

		d.autoStopped[r.Name] = true
		if d.deps.KillQuiet != nil {
			d.deps.KillQuiet(r.Name)
		}
		r.Status.State = models.DroneCompleted
		r.Status.UpdatedAt = now
		if d.deps.Notify != nil {
			d.deps.Notify("Hive - "+r.Name, "Drone auto-completed (all tasks done, idle timeout)")
		}
	}
}

// DetectStalledDrones notifies once when an in-progress drone with a
// live process has produced no events for StallTimeout. Returns the
// names flagged this call (a drone is only flagged once).
func (d *Detector) DetectStalledDrones(records []*Record) []string {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	var stalled []string
	for _, r := range records {
		if r.Status.State != models.DroneInProgress || d.autoStopped[r.Name] {
			continue
		}
		completed, total := d.progress(r.Name)
		if total > 0 && completed >= total {
			continue
		}
		if !d.pidAlive(r.Name) {
			continue
		}
		lastEvent, ok := d.lastEventTime[r.Name]
		if !ok || now.Sub(lastEvent) <= StallTimeout {
			continue
		}

		stallKey := "stall-" + r.Name
		if d.autoStopped[stallKey] {
			continue
		}
		d.autoStopped[stallKey] = true
		if d.deps.Notify != nil {
			d.deps.Notify("Hive - "+r.Name+" STALLED",
				"No activity for 10 min (rate limit?). Run: hive stop && hive start to restart.")
		}
		stalled = append(stalled, r.Name)
	}
	return stalled
}

func (d *Detector) progress(name string) (completed, total int) {
	if d.deps.Progress == nil {
		return 0, 0
	}
	return d.deps.Progress(name)
}

func isActive(state models.DroneState) bool {
	return state == models.DroneInProgress || state == models.DroneStarting || state == models.DroneResuming
}

// DetermineLiveness classifies a single drone's current liveness string
// for display, mirroring original_source's determine_liveness.
func DetermineLiveness(state models.DroneState, pidAlive bool, hasSuccessResult bool) string {
	switch state {
	case models.DroneCompleted:
		return "completed"
	case models.DroneStopped:
		return "stopped"
	case models.DroneZombie:
		return "dead"
	case models.DroneInProgress, models.DroneStarting, models.DroneResuming:
		if pidAlive {
			return "working"
		}
		if hasSuccessResult {
			return "completed"
		}
		return "dead"
	default:
		return "unknown"
	}
}

// DetermineMemberLiveness reports "working" when member owns an
// in_progress task, else "idle".
func DetermineMemberLiveness(member string, tasks []TaskOwnerStatus) string {
	for _, t := range tasks {
		if t.Owner == member && t.Status == "in_progress" {
			return "working"
		}
	}
	return "idle"
}

// TaskOwnerStatus is the minimal task shape DetermineMemberLiveness needs.
type TaskOwnerStatus struct {
	Owner  string
	Status string
}
