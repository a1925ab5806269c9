package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/drones/internal/plan"
)

// NewValidateCommand creates the validate command: parse a plan and check
// its structural invariants without dispatching any worker.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Parse a plan and check it for structural errors",
		Long: `Validate parses the plan's "## Tasks" section, then checks unique
task numbers, dependencies that reference existing tasks, and the
absence of dependency cycles, without dispatching any worker.`,
		Args: cobra.ExactArgs(1),
		RunE: validateCommand,
	}
	return cmd
}

func validateCommand(cmd *cobra.Command, args []string) error {
	parsedPlan, err := plan.New().ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}

	if err := parsedPlan.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Plan is valid: %d task(s)\n", len(parsedPlan.Tasks))
	for _, t := range parsedPlan.Tasks {
		deps := ""
		if len(t.DependsOn) > 0 {
			deps = fmt.Sprintf(" (depends on %v)", t.DependsOn)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s%s\n", t.Number, t.Title, deps)
	}
	return nil
}
