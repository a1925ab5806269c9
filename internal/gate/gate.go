// Package gate runs a language-specific verification command between a
// task's TASK_COMPLETE signal and the worker's acceptance of it, grounded
// on the teacher's executor.CommandRunner/ShellCommandRunner subprocess
// pattern (internal/executor/preflight.go, test_runner.go).
package gate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/drones/internal/worker"
)

// DefaultTimeout is the wall-clock budget for one quality-gate run
// (spec.md §4.6, "≈120 s").
const DefaultTimeout = 120 * time.Second

// maxOutputBytes caps the combined stdout+stderr carried in a Failed
// result, matching spec.md's "last ≤2 kB of combined output".
const maxOutputBytes = 2048

// CommandRunner abstracts shell command execution for testability,
// mirroring the teacher's executor.CommandRunner.
type CommandRunner interface {
	Run(ctx context.Context, command, dir string) (output string, err error)
}

// ShellCommandRunner runs commands via "sh -c" in the system shell.
type ShellCommandRunner struct{}

// Run executes command via sh -c in dir and returns combined stdout/stderr.
func (ShellCommandRunner) Run(ctx context.Context, command, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// languageCommands maps a detected project language tag to its
// verification command (spec.md §6, "Quality-gate command detection").
var languageCommands = map[string]string{
	"rust":       "cargo check",
	"typescript": "npx tsc --noEmit",
	"javascript": "npx tsc --noEmit",
	"python":     "python -m py_compile",
	"go":         "go build ./...",
}

// CommandForLanguage returns the verification command for a detected
// language tag, and false when the tag is unrecognised (no gate
// configured; the worker accepts the first TASK_COMPLETE).
func CommandForLanguage(language string) (string, bool) {
	cmd, ok := languageCommands[strings.ToLower(language)]
	return cmd, ok
}

// languageMarkers maps a project root marker file to its language tag,
// checked in order so Cargo.toml/go.mod win over a stray package.json.
var languageMarkers = []struct {
	file string
	lang string
}{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"tsconfig.json", "typescript"},
	{"package.json", "javascript"},
	{"pyproject.toml", "python"},
	{"requirements.txt", "python"},
}

// DetectLanguage inspects dir's root for a recognised build-file marker,
// returning "" when none match (no gate configured for this drone).
func DetectLanguage(dir string) string {
	for _, m := range languageMarkers {
		if _, err := os.Stat(filepath.Join(dir, m.file)); err == nil {
			return m.lang
		}
	}
	return ""
}

// Gate runs one verification command with a timeout and classifies the
// result. It satisfies worker.QualityGate.
type Gate struct {
	Command string
	Timeout time.Duration
	Runner  CommandRunner
}

// New builds a Gate for command, using DefaultTimeout and
// ShellCommandRunner unless overridden.
func New(command string) *Gate {
	return &Gate{Command: command, Timeout: DefaultTimeout, Runner: ShellCommandRunner{}}
}

// Run executes the gate's command in cwd, returning Passed iff the
// command exits zero before Timeout elapses.
func (g *Gate) Run(ctx context.Context, cwd string) (worker.QualityGateResult, error) {
	runner := g.Runner
	if runner == nil {
		runner = ShellCommandRunner{}
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := runner.Run(runCtx, g.Command, cwd)
	truncated := truncateOutput(output)

	if runCtx.Err() == context.DeadlineExceeded {
		return worker.QualityGateResult{Passed: false, Output: truncated, TimedOut: true}, nil
	}
	if err != nil {
		return worker.QualityGateResult{Passed: false, Output: truncated}, nil
	}
	return worker.QualityGateResult{Passed: true, Output: truncated}, nil
}

func truncateOutput(output string) string {
	output = strings.TrimSpace(output)
	if len(output) <= maxOutputBytes {
		return output
	}
	return output[len(output)-maxOutputBytes:]
}
