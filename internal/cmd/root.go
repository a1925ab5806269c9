// Package cmd implements the drone CLI's cobra commands: run, status,
// validate, history and monitor, grounded on the teacher's internal/cmd
// package.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/harrison/drones/internal/config"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// HiveRepoRoot is the path to the drone repository root, injected at build
// time via -ldflags.
var HiveRepoRoot = ""

// GetHiveRepoRoot returns the build-time injected repository root.
func GetHiveRepoRoot() string {
	return HiveRepoRoot
}

// NewRootCommand creates and returns the root cobra command for the drone
// CLI.
func NewRootCommand() *cobra.Command {
	config.SetBuildTimeRepoRoot(HiveRepoRoot)

	cmd := &cobra.Command{
		Use:   "drone",
		Short: "Dispatch and monitor autonomous coding agents against a plan",
		Long: `drone executes a markdown implementation plan by dispatching
worker agents through an external agentic loop, running quality gates,
and driving a dispatch -> monitor -> verify -> pr -> complete phase
machine to its conclusion.

It parses the plan's "## Tasks" section into a dependency graph, runs
ready tasks concurrently up to a configurable limit, and records every
event as an NDJSON log plus a periodically refreshed status snapshot
under .hive/drones/{name}.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewMonitorCommand())

	return cmd
}
