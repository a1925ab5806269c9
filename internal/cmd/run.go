package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/drones/internal/claude"
	"github.com/harrison/drones/internal/config"
	"github.com/harrison/drones/internal/coordinator"
	"github.com/harrison/drones/internal/gate"
	"github.com/harrison/drones/internal/hive"
	"github.com/harrison/drones/internal/history"
	"github.com/harrison/drones/internal/logger"
	"github.com/harrison/drones/internal/plan"
	"github.com/harrison/drones/internal/worker"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Dispatch a drone against an implementation plan",
		Long: `Run parses a markdown implementation plan, builds the task
dependency graph, and dispatches ready tasks onto worker agents through
the configured agentic loop until the plan is complete, verified, and
(if the plan names a target branch) pushed with a pull request opened.

Configuration is loaded from .hive/config.yaml in the drone repo root if
present; CLI flags override it.

Examples:
  drone run plan.md
  drone run --dry-run plan.md        # validate the plan without executing
  drone run --timeout 2h plan.md     # bound total execution time
  drone run --max-concurrency 3 plan.md
  drone run --name api-redesign plan.md`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .hive/config.yaml)")
	cmd.Flags().String("name", "", "Drone name (default: plan file's base name)")
	cmd.Flags().Bool("dry-run", false, "Validate the plan without executing tasks")
	cmd.Flags().Int("max-concurrency", -1, "Maximum number of concurrent tasks (-1 = use config)")
	cmd.Flags().String("timeout", "", "Maximum execution time (e.g. 30m, 2h, 1h30m)")
	cmd.Flags().String("log-dir", "", "Directory for run log files")
	cmd.Flags().Bool("skip-completed", false, "Skip tasks already marked completed")
	cmd.Flags().Bool("no-skip-completed", false, "Do not skip completed tasks (overrides config)")
	cmd.Flags().Bool("retry-failed", false, "Retry tasks that previously failed")
	cmd.Flags().Bool("no-retry-failed", false, "Do not retry failed tasks (overrides config)")
	cmd.Flags().Bool("require-gate", false, "Refuse to start the run if no quality gate language could be detected")
	cmd.Flags().String("gate-language", "", "Override quality gate language detection (go, rust, typescript, javascript, python)")
	cmd.Flags().Bool("verbose", false, "Show debug-level progress")

	return cmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromRootWithBuildTime(GetHiveRepoRoot())
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("skip-completed") && cmd.Flags().Changed("no-skip-completed") {
		return fmt.Errorf("cannot use both --skip-completed and --no-skip-completed")
	}
	if cmd.Flags().Changed("retry-failed") && cmd.Flags().Changed("no-retry-failed") {
		return fmt.Errorf("cannot use both --retry-failed and --no-retry-failed")
	}

	maxConcurrencyFlag, _ := cmd.Flags().GetInt("max-concurrency")
	timeoutStr, _ := cmd.Flags().GetString("timeout")
	logDirFlag, _ := cmd.Flags().GetString("log-dir")
	dryRunFlag, _ := cmd.Flags().GetBool("dry-run")
	skipCompletedFlag, _ := cmd.Flags().GetBool("skip-completed")
	noSkipCompletedFlag, _ := cmd.Flags().GetBool("no-skip-completed")
	retryFailedFlag, _ := cmd.Flags().GetBool("retry-failed")
	noRetryFailedFlag, _ := cmd.Flags().GetBool("no-retry-failed")

	var maxConcurrencyPtr *int
	if cmd.Flags().Changed("max-concurrency") {
		maxConcurrencyPtr = &maxConcurrencyFlag
	}
	var timeoutPtr *time.Duration
	if cmd.Flags().Changed("timeout") {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", timeoutStr, err)
		}
		timeoutPtr = &timeout
	}
	var logDirPtr *string
	if cmd.Flags().Changed("log-dir") {
		logDirPtr = &logDirFlag
	}
	var dryRunPtr *bool
	if cmd.Flags().Changed("dry-run") {
		dryRunPtr = &dryRunFlag
	}
	var skipCompletedPtr *bool
	if cmd.Flags().Changed("skip-completed") {
		skipCompletedPtr = &skipCompletedFlag
	} else if cmd.Flags().Changed("no-skip-completed") {
		v := !noSkipCompletedFlag
		skipCompletedPtr = &v
	}
	var retryFailedPtr *bool
	if cmd.Flags().Changed("retry-failed") {
		retryFailedPtr = &retryFailedFlag
	} else if cmd.Flags().Changed("no-retry-failed") {
		v := !noRetryFailedFlag
		retryFailedPtr = &v
	}

	cfg.MergeWithFlags(maxConcurrencyPtr, timeoutPtr, logDirPtr, dryRunPtr, skipCompletedPtr, retryFailedPtr)

	if cmd.Flags().Changed("require-gate") {
		cfg.RequireQualityGate, _ = cmd.Flags().GetBool("require-gate")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	planFile := args[0]
	parser := plan.New()
	parsedPlan, err := parser.ParseFile(planFile)
	if err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}
	if err := parsedPlan.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	droneName, _ := cmd.Flags().GetString("name")
	if droneName == "" {
		base := filepath.Base(planFile)
		droneName = base[:len(base)-len(filepath.Ext(base))]
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Plan: %s\n", planFile)
	fmt.Fprintf(cmd.OutOrStdout(), "  Drone: %s\n", droneName)
	fmt.Fprintf(cmd.OutOrStdout(), "  Tasks: %d\n", len(parsedPlan.Tasks))
	fmt.Fprintf(cmd.OutOrStdout(), "  Max concurrency: %d\n", cfg.MaxConcurrency)
	fmt.Fprintf(cmd.OutOrStdout(), "  Timeout: %s\n", cfg.Timeout)

	if cfg.DryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "\nDry-run: plan is valid, no tasks were executed.\n")
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	droneDir := filepath.Join(cwd, ".hive", "drones", droneName)

	claudeHome, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determine home directory: %w", err)
	}
	tasksDir := filepath.Join(claudeHome, ".claude", "tasks", droneName)

	logLevel := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = "debug"
	}

	consoleLog := logger.NewConsoleLogger(os.Stdout, logLevel)
	if cfg.Console.EnableProgressBar {
		consoleLog.EnableProgressBar(len(parsedPlan.Tasks))
	}
	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(droneDir, "logs")
	}
	fileLog, err := logger.NewFileLogger(logDir, logLevel)
	if err != nil {
		return fmt.Errorf("create file logger: %w", err)
	}
	defer fileLog.Close()

	multiLog := logger.NewMultiLogger(consoleLog, fileLog)

	gateLanguage, _ := cmd.Flags().GetString("gate-language")
	if gateLanguage == "" {
		gateLanguage = gate.DetectLanguage(cwd)
	}
	if gateLanguage == "" && cfg.RequireQualityGate {
		return fmt.Errorf("no quality gate language detected and --require-gate is set")
	}

	loop := worker.NewClaudeCLILoop(claude.NewInvoker())

	coord := coordinator.New(coordinator.Config{
		DroneName:     droneName,
		Plan:          *parsedPlan,
		Cwd:           cwd,
		DroneDir:      droneDir,
		TasksDir:      tasksDir,
		MaxConcurrent: cfg.MaxConcurrency,
		Loop:          loop,
		GateLanguage:  gateLanguage,
		Logger:        multiLog,
		GlobalAbort:   &atomic.Bool{},
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	startedAt := time.Now().UTC()
	runErr := coord.Run(ctx)
	recordRunHistory(droneName, planFile, droneDir, tasksDir, startedAt, coord.Success())

	if runErr != nil {
		return fmt.Errorf("drone run failed: %w", runErr)
	}

	if !coord.Success() {
		fmt.Fprintf(cmd.OutOrStdout(), "\nDrone %s finished with errors (phase %s).\n", droneName, coord.Phase())
		return fmt.Errorf("drone did not complete successfully")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nDrone %s completed successfully.\n", droneName)
	fmt.Fprintf(cmd.OutOrStdout(), "Logs written to: %s\n", logDir)
	return nil
}

// recordRunHistory persists a best-effort summary of one run to the
// history database. Failures to record are swallowed: history is a
// convenience surface, never a reason to fail an otherwise-successful run.
func recordRunHistory(droneName, planFile, droneDir, tasksDir string, startedAt time.Time, completed bool) {
	hiveHome, err := config.GetHiveHome()
	if err != nil {
		return
	}
	store, err := history.Open(filepath.Join(hiveHome, "history.db"))
	if err != nil {
		return
	}
	defer store.Close()

	completedNumbers, _ := hive.CompletedPlanNumbers(tasksDir)
	cost, _ := hive.ReadCostSummary(droneDir)

	outcome := "failed"
	if completed {
		outcome = "completed"
	}

	_ = store.RecordRun(context.Background(), history.Run{
		DroneName:      droneName,
		PlanFile:       planFile,
		Outcome:        outcome,
		TasksCompleted: len(completedNumbers),
		InputTokens:    cost.InputTokens,
		OutputTokens:   cost.OutputTokens,
		StartedAt:      startedAt,
		FinishedAt:     time.Now().UTC(),
	})
}
