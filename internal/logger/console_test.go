package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/drones/internal/models"
)

func newTestConsoleLogger(level string) (*ConsoleLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cl := NewConsoleLogger(buf, level)
	cl.colorOutput = false
	return cl, buf
}

func TestNormalizeLogLevel(t *testing.T) {
	assert.Equal(t, "info", normalizeLogLevel(""))
	assert.Equal(t, "info", normalizeLogLevel("bogus"))
	assert.Equal(t, "debug", normalizeLogLevel("DEBUG"))
	assert.Equal(t, "warn", normalizeLogLevel("  warn  "))
}

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	cl, buf := newTestConsoleLogger("warn")

	cl.LogDebug("should not appear")
	cl.LogInfo("also should not appear")
	require.Equal(t, 0, buf.Len())

	cl.LogWarn("visible warning")
	assert.Contains(t, buf.String(), "visible warning")

	buf.Reset()
	cl.LogError("visible error")
	assert.Contains(t, buf.String(), "visible error")
}

func TestConsoleLoggerFormatting(t *testing.T) {
	cl, buf := newTestConsoleLogger("trace")
	cl.LogInfo("hello world")
	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "["))
	assert.Contains(t, line, "hello world")
}

func TestConsoleLoggerInfofWarnfErrorf(t *testing.T) {
	cl, buf := newTestConsoleLogger("trace")
	cl.Infof("count=%d", 3)
	assert.Contains(t, buf.String(), "count=3")

	buf.Reset()
	cl.Warnf("warn %s", "here")
	assert.Contains(t, buf.String(), "warn here")

	buf.Reset()
	cl.Errorf("err %s", "there")
	assert.Contains(t, buf.String(), "err there")
}

func TestConsoleLoggerNilWriterIsSilent(t *testing.T) {
	cl := NewConsoleLogger(nil, "trace")
	assert.NotPanics(t, func() {
		cl.LogInfo("into the void")
	})
}

func TestLogPhaseTransition(t *testing.T) {
	cl, buf := newTestConsoleLogger("info")
	cl.LogPhaseTransition("drone-1", models.PhaseDispatch, models.PhaseMonitor)
	assert.Contains(t, buf.String(), "drone-1: phase dispatch -> monitor")
}

func TestLogTaskDispatch(t *testing.T) {
	cl, buf := newTestConsoleLogger("info")
	task := models.Task{Number: 3, Title: "Add retry logic"}
	cl.LogTaskDispatch("drone-1", task)
	out := buf.String()
	assert.Contains(t, out, "worker-3")
	assert.Contains(t, out, "Add retry logic")
}

func TestLogWorkerResultRoutesByOutcome(t *testing.T) {
	cl, buf := newTestConsoleLogger("info")
	cl.LogWorkerResult("drone-1", models.WorkerResult{
		TaskNumber: 2,
		Outcome:    models.OutcomeCompleted,
		Iterations: 4,
		Duration:   2 * time.Second,
	})
	assert.Contains(t, buf.String(), "worker-2 completed")

	buf.Reset()
	cl.LogWorkerResult("drone-1", models.WorkerResult{
		TaskNumber: 5,
		Outcome:    models.OutcomeFailed,
	})
	assert.Contains(t, buf.String(), "worker-5 failed")
}

func TestLogQualityGate(t *testing.T) {
	cl, buf := newTestConsoleLogger("info")
	cl.LogQualityGate("drone-1", 1, true, "")
	assert.Contains(t, buf.String(), "quality gate passed for task 1")

	buf.Reset()
	cl.LogQualityGate("drone-1", 1, false, "lint failed")
	out := buf.String()
	assert.Contains(t, out, "quality gate failed for task 1")
	assert.Contains(t, out, "lint failed")
}

func TestLogDroneStatus(t *testing.T) {
	cl, buf := newTestConsoleLogger("info")
	cl.LogDroneStatus(models.DroneStatus{
		Name:  "drone-1",
		State: models.DroneInProgress,
		Phase: models.PhaseVerify,
	}, models.CostSummary{InputTokens: 100, OutputTokens: 50})
	out := buf.String()
	assert.Contains(t, out, "drone-1")
	assert.Contains(t, out, "state=in_progress")
	assert.Contains(t, out, "phase=verify")
}
