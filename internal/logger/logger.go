package logger

import "github.com/harrison/drones/internal/models"

// Logger is the common surface implemented by ConsoleLogger and FileLogger,
// letting the coordinator log a single event to both destinations without
// type-switching.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)

	LogPhaseTransition(drone string, from, to models.Phase)
	LogTaskDispatch(drone string, task models.Task)
	LogWorkerResult(drone string, r models.WorkerResult)
	LogQualityGate(drone string, taskNumber int, passed bool, detail string)
	LogDroneStatus(status models.DroneStatus, cost models.CostSummary)
}

// MultiLogger fans a single call out to every configured Logger, skipping
// nil entries so a caller can pass a console-only or file-only set.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger builds a MultiLogger from zero or more loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	filtered := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			filtered = append(filtered, l)
		}
	}
	return &MultiLogger{loggers: filtered}
}

func (m *MultiLogger) LogTrace(message string) {
	for _, l := range m.loggers {
		l.LogTrace(message)
	}
}

func (m *MultiLogger) LogDebug(message string) {
	for _, l := range m.loggers {
		l.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, l := range m.loggers {
		l.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, l := range m.loggers {
		l.LogError(message)
	}
}

func (m *MultiLogger) LogPhaseTransition(drone string, from, to models.Phase) {
	for _, l := range m.loggers {
		l.LogPhaseTransition(drone, from, to)
	}
}

func (m *MultiLogger) LogTaskDispatch(drone string, task models.Task) {
	for _, l := range m.loggers {
		l.LogTaskDispatch(drone, task)
	}
}

func (m *MultiLogger) LogWorkerResult(drone string, r models.WorkerResult) {
	for _, l := range m.loggers {
		l.LogWorkerResult(drone, r)
	}
}

func (m *MultiLogger) LogQualityGate(drone string, taskNumber int, passed bool, detail string) {
	for _, l := range m.loggers {
		l.LogQualityGate(drone, taskNumber, passed, detail)
	}
}

func (m *MultiLogger) LogDroneStatus(status models.DroneStatus, cost models.CostSummary) {
	for _, l := range m.loggers {
		l.LogDroneStatus(status, cost)
	}
}
