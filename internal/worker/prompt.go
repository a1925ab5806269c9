package worker

import (
	"fmt"
	"strings"

	"github.com/harrison/drones/internal/models"
)

// buildSystemPrompt assembles the worker's system prompt from the task,
// its file-ownership constraints, and notes left by completed upstream
// dependencies.
func buildSystemPrompt(task models.Task, notes []WorkerNote) string {
	var b strings.Builder

	b.WriteString("You are an autonomous coding agent completing a single task in a git worktree.\n")
	b.WriteString("When the task is fully done, reply with a message containing the literal token TASK_COMPLETE.\n")
	b.WriteString("If you cannot proceed, reply with TASK_BLOCKED: <reason>.\n")

	if ownership := ownershipPromptForFiles(task.Files); ownership != "" {
		b.WriteString("\n")
		b.WriteString(ownership)
	}

	if len(notes) > 0 {
		b.WriteString("\n\nNotes from completed dependency tasks:\n")
		for _, n := range notes {
			b.WriteString(fmt.Sprintf("- Task %d (%s): %s", n.TaskNumber, n.TaskTitle, n.Summary))
			if len(n.FilesChanged) > 0 {
				b.WriteString(fmt.Sprintf(" [files: %s]", strings.Join(n.FilesChanged, ", ")))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// ownershipPromptForFiles states which files this worker owns, so
// concurrent workers editing disjoint files don't step on each other.
func ownershipPromptForFiles(files []string) string {
	if len(files) == 0 {
		return ""
	}
	return fmt.Sprintf("You own the following files; only modify these unless the task requires otherwise: %s", strings.Join(files, ", "))
}

// buildInitialPrompt is the iteration-0 user message restating the task.
func buildInitialPrompt(task models.Task) string {
	return fmt.Sprintf("Complete this task:\n\n**%d. %s**\n\n%s", task.Number, task.Title, task.Body)
}

// buildContinuationPrompt is used on iterations after 0, carrying a
// progress summary of what's been done so far.
func buildContinuationPrompt(task models.Task, progress string) string {
	if progress == "" {
		progress = "No progress summary available."
	}
	return fmt.Sprintf(
		"Continue task %d (%s). Progress so far:\n\n%s\n\nContinue until complete, then reply with TASK_COMPLETE.",
		task.Number, task.Title, progress,
	)
}

// buildQualityGateRetryPrompt carries a failed quality gate's output back
// into the loop as a continuation prompt.
func buildQualityGateRetryPrompt(output string) string {
	return fmt.Sprintf("Quality gate failed with output:\n\n%s\n\nFix the root cause and reply with TASK_COMPLETE once fixed.", output)
}

// extractProgressSummary concatenates the tail of each turn's text (last
// 500 chars), capped overall at 2000 chars, matching the worker's
// context-reset strategy between iterations.
func extractProgressSummary(turns []string) string {
	var b strings.Builder
	for _, t := range turns {
		if t == "" {
			continue
		}
		tail := t
		if len(tail) > 500 {
			tail = tail[len(tail)-500:]
		}
		b.WriteString(tail)
		b.WriteString("\n")
	}
	out := b.String()
	if len(out) > 2000 {
		out = out[:2000]
	}
	return out
}
