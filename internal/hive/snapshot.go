package hive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/harrison/drones/internal/filelock"
)

// SnapshotSource records which on-disk source produced a Snapshot's data.
type SnapshotSource string

const (
	SourceEvents SnapshotSource = "events"
	SourceCache  SnapshotSource = "cache"
)

// TaskView is one task's observable state inside a Snapshot.
type TaskView struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Status     string `json:"status"`
	Owner      string `json:"owner,omitempty"`
	ActiveForm string `json:"activeForm,omitempty"`
}

// AgentView is a team member or task owner surfaced in a Snapshot.
type AgentView struct {
	Name  string `json:"name"`
	Model string `json:"model,omitempty"`
}

// Progress is a drone's completed/total task counts.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Snapshot is the Snapshot Store's per-tick observable view of one drone.
type Snapshot struct {
	Tasks    []TaskView     `json:"tasks"`
	Members  []AgentView    `json:"members"`
	Agents   []AgentView    `json:"agents"`
	Progress Progress       `json:"progress"`
	Source   SnapshotSource `json:"source"`
}

// todoItem is the shape of todos.json: a free-form task list written by the
// agentic loop's own todo tool, taken as the highest-priority source.
type todoItem struct {
	Content    string `json:"content"`
	Status     string `json:"status"`
	ActiveForm string `json:"activeForm"`
}

// teamConfig is ~/.claude/teams/{team}/config.json.
type teamConfig struct {
	Name    string `json:"name"`
	Members []struct {
		Name      string `json:"name"`
		AgentType string `json:"agentType"`
		Model     string `json:"model"`
	} `json:"members"`
}

// highWater is the per-drone monotonicity bookkeeping described in spec.md
// §3/§4.4: a high-water mark on (completed, total) plus the set of task ids
// ever observed completed. In-memory only; lost on process restart, which
// is acceptable because task files themselves persist completion.
type highWater struct {
	maxCompleted   int
	maxTotal       int
	everCompleted  map[string]bool
}

// Store is the Snapshot Store: it owns per-drone high-water marks and
// derives Snapshots from on-disk sources. Safe for concurrent use across
// different drones; callers must serialise calls to Update for the same
// drone name (per spec.md §4.4, "thread-safe at one-drone-per-update-call
// granularity").
type Store struct {
	mu       sync.Mutex
	marks    map[string]*highWater
	claudeDir string // root of ~/.claude, for tasks/ and teams/
}

// NewStore builds a Store rooted at claudeDir (typically os.UserHomeDir()+"/.claude").
func NewStore(claudeDir string) *Store {
	return &Store{marks: make(map[string]*highWater), claudeDir: claudeDir}
}

func (s *Store) markFor(drone string) *highWater {
	s.mu.Lock()
	defer s.mu.Unlock()
	hw, ok := s.marks[drone]
	if !ok {
		hw = &highWater{everCompleted: make(map[string]bool)}
		s.marks[drone] = hw
	}
	return hw
}

func (s *Store) tasksDir(team string) string {
	return filepath.Join(s.claudeDir, "tasks", team)
}

func (s *Store) teamConfigPath(team string) string {
	return filepath.Join(s.claudeDir, "teams", team, "config.json")
}

// Update recomputes and returns the Snapshot for drone, given droneDir
// (.hive/drones/{name}) for the persisted snapshot cache and team (the
// team/drone name used for ~/.claude/tasks and ~/.claude/teams lookups).
func (s *Store) Update(drone, team, droneDir string) (Snapshot, error) {
	members := s.readMembers(team)

	tasks, source, err := s.readTasks(team, droneDir)
	if err != nil {
		return Snapshot{}, err
	}

	if source == SourceEvents {
		s.persistCache(droneDir, tasks, members)
	}

	hw := s.markFor(drone)
	s.mu.Lock()
	for _, t := range tasks {
		if t.Status == "completed" {
			hw.everCompleted[t.ID] = true
		}
	}
	for i := range tasks {
		if hw.everCompleted[tasks[i].ID] {
			tasks[i].Status = "completed"
		}
	}

	completedNow := 0
	for _, t := range tasks {
		if t.Status == "completed" {
			completedNow++
		}
	}
	totalNow := len(tasks)

	if completedNow > hw.maxCompleted {
		hw.maxCompleted = completedNow
	}
	if totalNow > hw.maxTotal {
		hw.maxTotal = totalNow
	}
	progress := Progress{Completed: hw.maxCompleted, Total: hw.maxTotal}
	s.mu.Unlock()

	agents := members
	if len(agents) == 0 {
		agents = agentsFromOwners(tasks)
	}

	return Snapshot{
		Tasks:    tasks,
		Members:  members,
		Agents:   agents,
		Progress: progress,
		Source:   source,
	}, nil
}

// readMembers loads the team config and filters out the synthetic
// team-lead member (named "lead" by convention).
func (s *Store) readMembers(team string) []AgentView {
	data, err := os.ReadFile(s.teamConfigPath(team))
	if err != nil {
		return nil
	}
	var cfg teamConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil
	}
	var out []AgentView
	for _, m := range cfg.Members {
		if m.Name == "lead" || m.AgentType == "team-lead" {
			continue
		}
		out = append(out, AgentView{Name: m.Name, Model: m.Model})
	}
	return out
}

// readTasks tries todos.json, then live task files, then the persisted
// snapshot cache, returning the first non-empty result.
func (s *Store) readTasks(team, droneDir string) ([]TaskView, SnapshotSource, error) {
	if tasks := s.readTodos(droneDir); len(tasks) > 0 {
		return tasks, SourceEvents, nil
	}

	if files, err := ListTaskFiles(s.tasksDir(team)); err == nil && len(files) > 0 {
		tasks := make([]TaskView, 0, len(files))
		for _, tf := range files {
			if tf.IsInternal() {
				continue
			}
			tasks = append(tasks, TaskView{
				ID: tf.ID, Content: tf.Subject, Status: tf.Status,
				Owner: tf.Owner, ActiveForm: tf.ActiveForm,
			})
		}
		if len(tasks) > 0 {
			return tasks, SourceEvents, nil
		}
	}

	cached, err := s.readCache(droneDir)
	if err != nil {
		return nil, SourceCache, nil
	}
	return cached, SourceCache, nil
}

func (s *Store) readTodos(droneDir string) []TaskView {
	data, err := os.ReadFile(filepath.Join(droneDir, "todos.json"))
	if err != nil {
		return nil
	}
	var items []todoItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make([]TaskView, 0, len(items))
	for i, it := range items {
		out = append(out, TaskView{
			ID: fmt.Sprintf("todo-%d", i), Content: it.Content,
			Status: it.Status, ActiveForm: it.ActiveForm,
		})
	}
	return out
}

func (s *Store) cachePath(droneDir string) string {
	return filepath.Join(droneDir, "tasks-snapshot.json")
}

type snapshotCache struct {
	Tasks   []TaskView  `json:"tasks"`
	Members []AgentView `json:"members"`
}

func (s *Store) readCache(droneDir string) ([]TaskView, error) {
	data, err := os.ReadFile(s.cachePath(droneDir))
	if err != nil {
		return nil, err
	}
	var c snapshotCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return c.Tasks, nil
}

func (s *Store) persistCache(droneDir string, tasks []TaskView, members []AgentView) {
	data, err := json.MarshalIndent(snapshotCache{Tasks: tasks, Members: members}, "", "  ")
	if err != nil {
		return
	}
	_ = filelock.AtomicWrite(s.cachePath(droneDir), data)
}

func agentsFromOwners(tasks []TaskView) []AgentView {
	seen := make(map[string]bool)
	var out []AgentView
	for _, t := range tasks {
		if t.Owner == "" || seen[t.Owner] {
			continue
		}
		seen[t.Owner] = true
		out = append(out, AgentView{Name: t.Owner})
	}
	return out
}
