package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/drones/internal/models"
)

// FileLogger writes a drone's human-readable run log into the directory
// given to NewFileLogger, creating a timestamped per-run file and
// maintaining a "latest.log" symlink to it. Thread-safe; supports the same
// level filtering as ConsoleLogger.
type FileLogger struct {
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing into dir (the run command
// passes the configured log_dir), at the given minimum log level.
func NewFileLogger(dir, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(dir, fmt.Sprintf("run-%s.log", timestamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("create run log file: %w", err)
	}

	symlinkPath := filepath.Join(dir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("create symlink: %w", err)
	}

	fl := &FileLogger{runLog: file, runFile: runFile, logLevel: normalizeLogLevel(logLevel)}
	fl.writeRunLog(fmt.Sprintf("=== drone run log ===\nstarted at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

func (fl *FileLogger) shouldLog(level string) bool {
	return logLevelToInt(level) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) writeRunLog(line string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog != nil {
		fl.runLog.WriteString(line)
	}
}

func (fl *FileLogger) logWithLevel(level, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel("INFO", message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel("WARN", message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) Infof(format string, args ...interface{})  { fl.LogInfo(fmt.Sprintf(format, args...)) }
func (fl *FileLogger) Warnf(format string, args ...interface{})  { fl.LogWarn(fmt.Sprintf(format, args...)) }
func (fl *FileLogger) Errorf(format string, args ...interface{}) { fl.LogError(fmt.Sprintf(format, args...)) }

// LogPhaseTransition mirrors ConsoleLogger.LogPhaseTransition to the run log.
func (fl *FileLogger) LogPhaseTransition(drone string, from, to models.Phase) {
	fl.LogInfo(fmt.Sprintf("%s: phase %s -> %s", drone, from, to))
}

// LogTaskDispatch mirrors ConsoleLogger.LogTaskDispatch to the run log.
func (fl *FileLogger) LogTaskDispatch(drone string, task models.Task) {
	fl.LogInfo(fmt.Sprintf("%s: dispatching %s (%s)", drone, task.WorkerName(), task.Title))
}

// LogWorkerResult mirrors ConsoleLogger.LogWorkerResult to the run log.
func (fl *FileLogger) LogWorkerResult(drone string, r models.WorkerResult) {
	msg := fmt.Sprintf("%s: worker-%d %s in %s (iterations=%d)", drone, r.TaskNumber, r.Outcome, r.Duration.Round(time.Millisecond), r.Iterations)
	if r.Outcome == models.OutcomeFailed {
		fl.LogError(msg)
		return
	}
	fl.LogInfo(msg)
}

// LogQualityGate mirrors ConsoleLogger.LogQualityGate to the run log.
func (fl *FileLogger) LogQualityGate(drone string, taskNumber int, passed bool, detail string) {
	if passed {
		fl.LogInfo(fmt.Sprintf("%s: quality gate passed for task %d", drone, taskNumber))
		return
	}
	fl.LogWarn(fmt.Sprintf("%s: quality gate failed for task %d: %s", drone, taskNumber, detail))
}

// LogDroneStatus mirrors ConsoleLogger.LogDroneStatus to the run log.
func (fl *FileLogger) LogDroneStatus(status models.DroneStatus, cost models.CostSummary) {
	fl.LogInfo(fmt.Sprintf("%s: state=%s phase=%s (in=%d out=%d)", status.Name, status.State, status.Phase, cost.InputTokens, cost.OutputTokens))
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog != nil {
		return fl.runLog.Close()
	}
	return nil
}
