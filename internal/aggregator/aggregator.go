// Package aggregator implements the Poll Aggregator: a periodic sweep
// across one or more project roots that discovers drones, refreshes their
// Snapshot via the Snapshot Store, classifies their liveness, and rolls up
// cost, grounded on original_source's webui/monitor/polling.rs
// (poll_all_projects) and webui/monitor/liveness.rs.
package aggregator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/harrison/drones/internal/budget"
	"github.com/harrison/drones/internal/config"
	"github.com/harrison/drones/internal/hive"
	"github.com/harrison/drones/internal/liveness"
	"github.com/harrison/drones/internal/models"
)

// DroneView is one drone's rolled-up observable state for a poll tick.
type DroneView struct {
	Name     string
	Status   models.DroneStatus
	Snapshot hive.Snapshot
	Cost     models.CostSummary
	CostUSD  float64
	Liveness string
}

// ProjectView is one project root's rolled-up observable state.
type ProjectView struct {
	Name         string
	Path         string
	Drones       []DroneView
	TotalCostUSD float64
	ActiveCount  int
}

// Aggregator polls one or more project roots for drone state, grounded on
// poll_all_projects. Not safe for concurrent use: the per-root store map
// is not guarded by a lock.
type Aggregator struct {
	claudeDir string                 // root of ~/.claude, for per-project Snapshot Stores
	stores    map[string]*hive.Store // keyed by project root, one Store per root
	pricing   budget.ModelPricing
}

// New builds an Aggregator rooted at claudeDir (typically
// os.UserHomeDir()+"/.claude"). pricing prices every drone's accumulated
// tokens uniformly, since cost.ndjson records do not carry a per-call
// model (spec.md §4.9 Open Question, resolved: blended-rate estimate
// rather than exact per-model accounting).
func New(claudeDir string, pricing budget.ModelPricing) *Aggregator {
	return &Aggregator{claudeDir: claudeDir, stores: make(map[string]*hive.Store), pricing: pricing}
}

func (a *Aggregator) storeFor(root string) *hive.Store {
	s, ok := a.stores[root]
	if !ok {
		s = hive.NewStore(a.claudeDir)
		a.stores[root] = s
	}
	return s
}

// PollAllProjects sweeps every project in registry plus cwd (added if not
// already present, as poll_all_projects does), skipping roots with no
// .hive/drones directory.
func (a *Aggregator) PollAllProjects(registry config.ProjectsRegistry, cwd string) ([]ProjectView, error) {
	type projectRef struct{ path, name string }
	var refs []projectRef
	for _, p := range registry.Projects {
		refs = append(refs, projectRef{path: p.Path, name: p.Name})
	}

	if cwd != "" {
		found := false
		for _, r := range refs {
			if r.path == cwd {
				found = true
				break
			}
		}
		if !found {
			refs = append(refs, projectRef{path: cwd, name: filepath.Base(cwd)})
		}
	}

	var projects []ProjectView
	for _, r := range refs {
		if !dirExists(filepath.Join(r.path, ".hive", "drones")) {
			continue
		}
		view, err := a.PollProject(r.path, r.name)
		if err != nil {
			return nil, fmt.Errorf("poll project %s: %w", r.name, err)
		}
		projects = append(projects, view)
	}

	return projects, nil
}

// PollProject refreshes every drone under root's .hive/drones directory.
func (a *Aggregator) PollProject(root, name string) (ProjectView, error) {
	drones, err := hive.ListDrones(root)
	if err != nil {
		return ProjectView{}, err
	}

	store := a.storeFor(root)
	view := ProjectView{Name: name, Path: root}

	for _, d := range drones {
		droneDir := filepath.Join(root, ".hive", "drones", d.Name)

		snapshot, err := store.Update(d.Name, d.Name, droneDir)
		if err != nil {
			snapshot = hive.Snapshot{}
		}

		cost, _ := hive.ReadCostSummary(droneDir)
		costUSD := a.pricing.InputPer1M*float64(cost.InputTokens)/1_000_000 +
			a.pricing.OutputPer1M*float64(cost.OutputTokens)/1_000_000

		live := liveness.DetermineLiveness(d.Status.State, pidAlive(droneDir), hasSuccessResult(droneDir))

		dv := DroneView{
			Name:     d.Name,
			Status:   d.Status,
			Snapshot: snapshot,
			Cost:     cost,
			CostUSD:  costUSD,
			Liveness: live,
		}
		view.Drones = append(view.Drones, dv)
		view.TotalCostUSD += costUSD
		if live == "working" {
			view.ActiveCount++
		}
	}

	sort.Slice(view.Drones, func(i, j int) bool { return view.Drones[i].Name < view.Drones[j].Name })

	return view, nil
}

// pidAlive reports whether droneDir/drone.pid names a live process,
// grounded on original_source's read_drone_pid_at/is_process_running.
func pidAlive(droneDir string) bool {
	pid := hive.ReadPID(droneDir)
	return liveness.ProcessAlive(pid)
}

// hasSuccessResult reports whether the last event recorded for a drone was
// a clean stop (no error), grounded on original_source's
// has_success_result tailing activity.log for a successful "result" event.
func hasSuccessResult(droneDir string) bool {
	data, err := os.ReadFile(filepath.Join(droneDir, "events.ndjson"))
	if err != nil {
		return false
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		var ev struct {
			Tag          string `json:"event"`
			ErrorMessage string `json:"error_message"`
		}
		if err := json.Unmarshal(line, &ev); err != nil {
			return false
		}
		return ev.Tag == "stop" && ev.ErrorMessage == ""
	}
	return false
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
