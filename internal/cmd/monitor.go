package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/drones/internal/gitops"
	"github.com/harrison/drones/internal/hive"
	"github.com/harrison/drones/internal/liveness"
)

// monitorTickInterval is the observability tick period (spec.md §4.8,
// "≈1 Hz").
const monitorTickInterval = time.Second

// NewMonitorCommand creates the monitor command: a foreground poll loop
// that drives the liveness Detector against every drone under the current
// directory's .hive/drones, grounded on the teacher's observe_live
// poll-interval + ctx.Done() loop style (internal/cmd/observe_live.go).
func NewMonitorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch drones under .hive/drones and auto-clean finished ones",
		Long: `Monitor runs an observability tick loop (~1 Hz) over every drone
under the current directory's .hive/drones: it detects processes that
died without a clean stop (zombies), drones that wrote a .hive_complete
marker, drones whose PR opened or merged, and drones sitting idle or
stalled, printing a notification for each transition it makes.

Press Ctrl+C to stop.`,
		RunE: monitorCommand,
	}
	return cmd
}

func monitorCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	dronesRoot := filepath.Join(cwd, ".hive", "drones")

	claudeHome, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determine home directory: %w", err)
	}
	store := hive.NewStore(filepath.Join(claudeHome, ".claude"))
	prCache := gitops.NewPRStateCache()
	out := cmd.OutOrStdout()

	detector := liveness.New(liveness.Dependencies{
		PIDAlive: func(name string) bool {
			return liveness.ProcessAlive(hive.ReadPID(filepath.Join(dronesRoot, name)))
		},
		HasStopEvent: func(name string) bool { return hasStopEvent(filepath.Join(dronesRoot, name)) },
		MarkerExists: func(worktree string) bool {
			_, err := os.Stat(filepath.Join(worktree, ".hive_complete"))
			return err == nil
		},
		RemoveMarker: func(worktree string) { os.Remove(filepath.Join(worktree, ".hive_complete")) },
		CheckPRState: func(branch, expectedState string) bool {
			return gitops.CheckPRState(cmd.Context(), cwd, branch, expectedState, prCache)
		},
		KillQuiet: func(name string) {
			pid := hive.ReadPID(filepath.Join(dronesRoot, name))
			if pid > 0 {
				if proc, err := os.FindProcess(pid); err == nil {
					_ = proc.Signal(syscall.SIGTERM)
				}
			}
		},
		CleanDrone: func(name string) { os.RemoveAll(filepath.Join(dronesRoot, name)) },
		Progress: func(name string) (int, int) {
			snapshot, err := store.Update(name, name, filepath.Join(dronesRoot, name))
			if err != nil {
				return 0, 0
			}
			return snapshot.Progress.Completed, snapshot.Progress.Total
		},
		Notify: func(title, body string) {
			fmt.Fprintf(out, "%s %s: %s\n", color.YellowString("[monitor]"), title, body)
		},
	})

	fmt.Fprintf(out, "Watching %s (tick every %s). Press Ctrl+C to stop.\n", dronesRoot, monitorTickInterval)

	ticker := time.NewTicker(monitorTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
			runMonitorTick(cwd, detector)
		}
	}
}

// runMonitorTick runs one pass of every liveness check over the drones
// currently found under hiveRoot/.hive/drones, grounded on
// original_source's commands/monitor/state/tick.rs.
func runMonitorTick(hiveRoot string, detector *liveness.Detector) {
	entries, err := hive.ListDrones(hiveRoot)
	if err != nil {
		return
	}

	records := make([]*liveness.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, &liveness.Record{
			Name:     e.Name,
			Status:   e.Status,
			Branch:   e.Status.Branch,
			Worktree: e.Status.Worktree,
		})
	}

	detector.DetectZombies(records)
	detector.DetectCompletionMarkers(records)
	detector.Tick()
	detector.DetectPRCompletion(records)
	detector.DetectPRMerges(records)
	detector.DetectIdleDrones(records)
	detector.DetectStalledDrones(records)
}

// hasStopEvent reports whether droneDir/events.ndjson contains a "stop"
// event, regardless of whether it recorded an error — this only
// distinguishes "process died after a clean shutdown" (Stopped) from
// "process died mid-run" (Zombie) for DetectZombies.
func hasStopEvent(droneDir string) bool {
	data, err := os.ReadFile(filepath.Join(droneDir, "events.ndjson"))
	if err != nil {
		return false
	}
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var ev struct {
			Tag string `json:"event"`
		}
		if json.Unmarshal(line, &ev) == nil && ev.Tag == "stop" {
			return true
		}
	}
	return false
}
