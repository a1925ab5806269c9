// Package worker runs a single task through the external agentic loop,
// detecting completion/blocked signals and invoking the quality gate,
// grounded on the Ralph-pattern worker loop described for the coordination
// engine.
package worker

import (
	"context"

	"github.com/harrison/drones/internal/claude"
	"github.com/harrison/drones/internal/models"
)

// TurnRequest is one call into the external Agentic Loop capability: an
// LLM conversation turn given a prompt, optional system prompt, and a
// session to resume.
type TurnRequest struct {
	Prompt            string
	SystemPrompt      string
	ResumeSessionID    string
	BypassPermissions bool
}

// TurnResult is what the Agentic Loop returns for one turn: the assistant's
// text output, a session id for resuming, usage for cost accounting, and
// whether the turn ended with a pending tool-use block (used by the
// "no tool use left = done" heuristic).
type TurnResult struct {
	Text         string
	SessionID    string
	Cost         models.CostSummary
	UsedToolUse  bool
}

// AgenticLoop is the abstract external collaborator the Worker drives: an
// LLM conversation with tool use, returning a transcript turn at a time.
// The production implementation is ClaudeCLILoop; tests supply a fake.
type AgenticLoop interface {
	Run(ctx context.Context, req TurnRequest) (TurnResult, error)
}

// ClaudeCLILoop implements AgenticLoop by shelling out to the claude CLI
// via claude.Invoker, grounded on claude.Invoker.Invoke (exec.CommandContext,
// rate-limit retry via internal/budget).
type ClaudeCLILoop struct {
	Invoker *claude.Invoker
}

// NewClaudeCLILoop builds a ClaudeCLILoop around inv. inv's Timeout and
// Logger (for rate-limit countdowns) are inherited.
func NewClaudeCLILoop(inv *claude.Invoker) *ClaudeCLILoop {
	return &ClaudeCLILoop{Invoker: inv}
}

// Run sends one turn to the claude CLI and parses its response.
func (c *ClaudeCLILoop) Run(ctx context.Context, req TurnRequest) (TurnResult, error) {
	resp, err := c.Invoker.Invoke(ctx, claude.Request{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		ResumeID:     req.ResumeSessionID,
		BypassPerms:  req.BypassPermissions,
	})
	if err != nil {
		return TurnResult{}, err
	}

	content, sessionID, err := claude.ParseResponse(resp.RawOutput)
	if err != nil {
		return TurnResult{}, err
	}

	return TurnResult{
		Text:        content,
		SessionID:   sessionID,
		UsedToolUse: claude.DetectToolUse(resp.RawOutput),
	}, nil
}
