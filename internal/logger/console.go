// Package logger provides logging implementations for drone execution.
//
// The logger package offers structured logging of phase transitions, task
// dispatch, worker results and quality-gate outcomes. Implementations are
// thread-safe and support various output destinations (console, file).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/drones/internal/models"
)

// Log level constants for filtering.
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs drone execution progress to a writer with timestamps
// and thread safety. All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity. Color
// output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	bar         *ProgressBar
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded. logLevel
// determines the minimum log level for messages to be output. Valid
// levels: trace, debug, info, warn, error (case-insensitive); empty or
// invalid values default to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// EnableProgressBar turns on an overall task progress bar, rendered after
// every worker result, against total tasks in the drone's plan.
func (cl *ConsoleLogger) EnableProgressBar(total int) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.bar = NewProgressBar(total, 20, cl.colorOutput)
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
	if w == os.Stderr {
		return isatty.IsTerminal(os.Stderr.Fd())
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if validLevels[normalized] {
		return normalized
	}
	return "info"
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

func (cl *ConsoleLogger) logWithLevel(level, message string) {
	if !cl.shouldLog(level) || cl.writer == nil {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintln(cl.writer, cl.formatWithColor(timestamp(), level, message))
}

func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	if !cl.colorOutput {
		return fmt.Sprintf("[%s] %s", ts, message)
	}
	var lvlColor *color.Color
	switch level {
	case "error":
		lvlColor = color.New(color.FgRed, color.Bold)
	case "warn":
		lvlColor = color.New(color.FgYellow)
	case "debug", "trace":
		lvlColor = color.New(color.FgHiBlack)
	default:
		lvlColor = color.New(color.FgCyan)
	}
	return fmt.Sprintf("%s %s", lvlColor.Sprintf("[%s]", ts), message)
}

func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("trace", message) }
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("debug", message) }
func (cl *ConsoleLogger) LogInfo(message string)  { cl.logWithLevel("info", message) }
func (cl *ConsoleLogger) LogWarn(message string)  { cl.logWithLevel("warn", message) }
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("error", message) }

func (cl *ConsoleLogger) Infof(format string, args ...interface{})  { cl.LogInfo(fmt.Sprintf(format, args...)) }
func (cl *ConsoleLogger) Warnf(format string, args ...interface{})  { cl.LogWarn(fmt.Sprintf(format, args...)) }
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) { cl.LogError(fmt.Sprintf(format, args...)) }

// LogPhaseTransition reports a coordinator phase change for one drone.
func (cl *ConsoleLogger) LogPhaseTransition(drone string, from, to models.Phase) {
	cl.LogInfo(fmt.Sprintf("%s: phase %s -> %s", drone, from, to))
}

// LogTaskDispatch reports a task being handed to a worker.
func (cl *ConsoleLogger) LogTaskDispatch(drone string, task models.Task) {
	cl.LogInfo(fmt.Sprintf("%s: dispatching %s (%s)", drone, task.WorkerName(), task.Title))
}

// LogWorkerResult reports a worker's terminal outcome.
func (cl *ConsoleLogger) LogWorkerResult(drone string, r models.WorkerResult) {
	msg := fmt.Sprintf("%s: worker-%d %s in %s (iterations=%d)", drone, r.TaskNumber, r.Outcome, r.Duration.Round(time.Millisecond), r.Iterations)
	if r.Outcome == models.OutcomeFailed {
		cl.LogError(msg)
	} else {
		cl.LogInfo(msg)
	}
	cl.advanceProgressBar()
}

// advanceProgressBar increments and renders the progress bar, if enabled.
func (cl *ConsoleLogger) advanceProgressBar() {
	cl.mutex.Lock()
	bar := cl.bar
	cl.mutex.Unlock()
	if bar == nil || cl.writer == nil {
		return
	}
	bar.Increment()
	fmt.Fprintln(cl.writer, bar.Render())
}

// LogQualityGate reports a quality gate run's outcome.
func (cl *ConsoleLogger) LogQualityGate(drone string, taskNumber int, passed bool, detail string) {
	if passed {
		cl.LogInfo(fmt.Sprintf("%s: quality gate passed for task %d", drone, taskNumber))
		return
	}
	cl.LogWarn(fmt.Sprintf("%s: quality gate failed for task %d: %s", drone, taskNumber, detail))
}

// LogDroneStatus reports a drone's full status, including cumulative cost.
func (cl *ConsoleLogger) LogDroneStatus(status models.DroneStatus, cost models.CostSummary) {
	cl.LogInfo(fmt.Sprintf("%s: state=%s phase=%s (%s)", status.Name, status.State, status.Phase, formatColorizedCost(cost)))
}
