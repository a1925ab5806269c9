package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/drones/internal/aggregator"
	"github.com/harrison/drones/internal/budget"
	"github.com/harrison/drones/internal/config"
)

// NewStatusCommand creates the status command, a one-shot poll-and-print
// over every registered project plus the current directory.
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Poll drone state across registered projects and print a summary",
		Long: `Status sweeps every project in the projects registry, plus the
current working directory if it isn't already listed, refreshing each
drone's Snapshot Store entry, liveness classification, and accumulated
cost.`,
		RunE: statusCommand,
	}

	cmd.Flags().String("registry", "", "Path to projects registry JSON (if empty, only the current directory is polled)")
	cmd.Flags().String("model", "claude-sonnet-4-5-20250929", "Model used for blended cost-per-token pricing")

	return cmd
}

func statusCommand(cmd *cobra.Command, args []string) error {
	registryPath, _ := cmd.Flags().GetString("registry")
	reg, err := config.LoadProjectsRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("load projects registry: %w", err)
	}

	modelName, _ := cmd.Flags().GetString("model")
	pricing, ok := budget.DefaultCostModel()[modelName]
	if !ok {
		return fmt.Errorf("unknown model %q", modelName)
	}

	claudeHome, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determine home directory: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}

	agg := aggregator.New(filepath.Join(claudeHome, ".claude"), pricing)
	views, err := agg.PollAllProjects(reg, cwd)
	if err != nil {
		return fmt.Errorf("poll projects: %w", err)
	}

	if len(views) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No drones found.")
		return nil
	}

	for _, project := range views {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", project.Name, project.Path)
		for _, d := range project.Drones {
			printDroneRow(cmd.OutOrStdout(), d)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %d active, $%.2f total\n\n", project.ActiveCount, project.TotalCostUSD)
	}

	return nil
}

func printDroneRow(w io.Writer, d aggregator.DroneView) {
	label := colorForLiveness(d.Liveness)
	completed, total := d.Snapshot.Progress.Completed, d.Snapshot.Progress.Total
	fmt.Fprintf(w, "  %-24s %-10s %3d/%-3d tasks  $%.2f\n", d.Name, label, completed, total, d.CostUSD)
}

func colorForLiveness(liveness string) string {
	switch liveness {
	case "working":
		return color.GreenString(liveness)
	case "completed":
		return color.CyanString(liveness)
	case "dead":
		return color.RedString(liveness)
	default:
		return liveness
	}
}
