package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/drones/internal/config"
	"github.com/harrison/drones/internal/history"
)

// NewHistoryCommand creates the history command: a durable record of past
// drone runs, independent of the per-drone .hive event log.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [plan-file]",
		Short: "Show past drone runs recorded in the history database",
		Long: `History prints the most recent recorded runs, optionally
filtered to a single plan file. Records persist in history.db under the
hive home directory ($HIVE_HOME if set, else .hive under the drone repo
root, else .hive under the current directory), separate from any single
drone's .hive/drones directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: historyCommand,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	hiveHome, err := config.GetHiveHome()
	if err != nil {
		return fmt.Errorf("determine hive home: %w", err)
	}

	store, err := history.Open(filepath.Join(hiveHome, "history.db"))
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer store.Close()

	var planFile string
	if len(args) == 1 {
		planFile = args[0]
	}
	limit, _ := cmd.Flags().GetInt("limit")

	runs, err := store.RecentRuns(cmd.Context(), planFile, limit)
	if err != nil {
		return fmt.Errorf("query run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
		return nil
	}

	for _, r := range runs {
		duration := r.FinishedAt.Sub(r.StartedAt).Round(1e9)
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-10s %-9s %2d completed / %2d failed  %s  (%s)\n",
			r.DroneName, r.Outcome, duration, r.TasksCompleted, r.TasksFailed, r.PlanFile, r.FinishedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
