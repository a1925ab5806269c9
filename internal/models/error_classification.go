package models

import "fmt"

// ErrorKind classifies a drone-lifecycle failure into an actionable
// category, following the teacher's CODE_LEVEL/PLAN_LEVEL/ENV_LEVEL
// classification convention but scoped to this domain's failure surface.
type ErrorKind string

const (
	// ParseErrorKind covers malformed plan files: bad grammar, missing
	// "## Tasks" section, unparsable metadata bullets.
	ParseErrorKind ErrorKind = "parse_error"

	// TaskExecutionErrorKind covers a worker exhausting its iteration
	// budget or the agentic loop returning a fatal error.
	TaskExecutionErrorKind ErrorKind = "task_execution_error"

	// QualityGateErrorKind covers a quality gate command failing or
	// timing out.
	QualityGateErrorKind ErrorKind = "quality_gate_error"

	// FilesystemWriteErrorKind covers failures writing event logs, task
	// files, or status files to the .hive directory.
	FilesystemWriteErrorKind ErrorKind = "filesystem_write_error"

	// ProcessDeathErrorKind covers a worker process dying without
	// producing a result (the condition the liveness detector reacts to).
	ProcessDeathErrorKind ErrorKind = "process_death_error"

	// PRHostErrorKind covers failures talking to the detected git host
	// (gh/glab) during the PR phase.
	PRHostErrorKind ErrorKind = "pr_host_error"
)

// ClassifiedError pairs a domain error with an actionable kind, letting
// the coordinator and CLI choose retry/log/abort behaviour without string
// matching on error text.
type ClassifiedError struct {
	Kind       ErrorKind
	Message    string
	Suggestion string
	Cause      error
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// NewClassifiedError builds a ClassifiedError, optionally wrapping a cause.
func NewClassifiedError(kind ErrorKind, message, suggestion string, cause error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Message: message, Suggestion: suggestion, Cause: cause}
}

var errCyclicDependencies = &ClassifiedError{
	Kind:       ParseErrorKind,
	Message:    "plan contains a dependency cycle",
	Suggestion: "break the cycle by removing or reordering depends_on entries",
}

func duplicateTaskNumberError(number int) error {
	return NewClassifiedError(ParseErrorKind, fmt.Sprintf("task %d is defined more than once", number),
		"renumber the duplicate task heading", nil)
}

func missingDependencyError(task, dep int) error {
	return NewClassifiedError(ParseErrorKind, fmt.Sprintf("task %d depends on unknown task %d", task, dep),
		"fix the depends_on bullet or add the missing task", nil)
}
