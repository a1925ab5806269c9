package gitops

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrison/drones/internal/worker"
)

// MaxVerifyAttempts bounds the verify phase's fix-and-retry loop
// (spec.md §4.7, "up to 3 attempts"), grounded on original_source's
// MAX_VERIFY_ATTEMPTS (backend/native_team/phases.rs).
const MaxVerifyAttempts = 3

// PRPhaseSystemPrompt is the system prompt given to the agent that drives
// the PR phase: push the branch and, where the host supports it, open a
// PR/MR via the host CLI.
const PRPhaseSystemPrompt = "You are operating the PR phase of a coding task. " +
	"Follow the git/PR instructions in the prompt exactly. Report TASK_COMPLETE " +
	"when the branch is pushed (and the PR/MR opened, if applicable)."

// VerifyPhaseSystemPrompt is the system prompt given to the verifier
// agent on its first attempt: run every verification command and report
// VERIFY_PASS/VERIFY_FAIL, grounded on original_source's
// build_verifier_prompt.
const VerifyPhaseSystemPrompt = "You are the verification agent for this plan. " +
	"Run ALL verification commands below and report the results. Fix any " +
	"issues you find — this is critical, the code must pass every check.\n\n" +
	"Rules:\n" +
	"- Run every command listed\n" +
	"- If a command fails, attempt to fix the issue, then re-run it to confirm\n" +
	"- Report a summary: which commands passed, which failed, what you fixed\n" +
	"- Include \"VERIFY_PASS\" if all checks pass\n" +
	"- Include \"VERIFY_FAIL\" followed by failure details if checks fail"

// FixPhaseSystemPrompt is the system prompt given to the fix agent between
// verify attempts: the previous attempt's output becomes "failures" in the
// user prompt, grounded on original_source's build_fix_prompt.
const FixPhaseSystemPrompt = "You are the fix agent for this plan. Analyze the " +
	"verification failures below, fix the root cause in the source code (don't " +
	"just suppress warnings or skip tests), then re-run ALL verification " +
	"commands to confirm.\n\n" +
	"Include \"VERIFY_PASS\" if all checks now pass, or \"VERIFY_FAIL\" " +
	"followed by remaining failures if not."

// RunPRPhase drives one agentic-loop turn that pushes the current branch
// and opens a PR/MR if the detected host supports it. verificationPassed
// controls the status note in the prompt: when verification did not pass
// within MaxVerifyAttempts, the PR still goes out but its body must carry
// a caveat (spec.md §4.7, "N attempts exhausted -> Pr (still proceed;
// caveat in PR body)"). It reuses the Worker's AgenticLoop rather than
// defining its own LLM-calling path.
func RunPRPhase(ctx context.Context, loop worker.AgenticLoop, dir, branch string, verificationPassed bool) (worker.TurnResult, error) {
	remote, _ := RemoteURL(ctx, dir)
	statusNote := "All verification checks passed."
	if !verificationPassed {
		statusNote = "Verification did not pass after all attempts. Include a " +
			"\"Known Issues\" section in the PR/MR body describing what failed."
	}
	prompt := fmt.Sprintf(
		"Branch `%s` is ready to ship.\n\n%s\n\nVerification status: %s\n\nRun the necessary git/CLI commands now.",
		branch, PRInstructions(remote), statusNote,
	)
	return loop.Run(ctx, worker.TurnRequest{
		Prompt:       prompt,
		SystemPrompt: PRPhaseSystemPrompt,
	})
}

// RunVerifyPhase reviews the plan's accumulated changes, giving the agent
// up to MaxVerifyAttempts turns to make every verification command pass.
// The first attempt gets the verifier prompt; subsequent attempts get the
// fix prompt seeded with the previous attempt's reported failures. It
// returns true as soon as an attempt's response contains VERIFY_PASS, and
// false if every attempt is exhausted without one, grounded on
// original_source's run_verify_phase.
func RunVerifyPhase(ctx context.Context, loop worker.AgenticLoop, planSummary string, changedFiles []string, verifyCommands []string) (bool, error) {
	commandList := "(no quality gate configured for this plan's language)"
	if len(verifyCommands) > 0 {
		commandList = strings.Join(verifyCommands, "\n")
	}
	fileList := strings.Join(changedFiles, "\n")

	previousFailures := ""
	for attempt := 0; attempt < MaxVerifyAttempts; attempt++ {
		var prompt, systemPrompt string
		if attempt == 0 {
			systemPrompt = VerifyPhaseSystemPrompt
			prompt = fmt.Sprintf(
				"Plan summary:\n%s\n\nFiles changed across this plan:\n%s\n\nVerification commands:\n%s",
				planSummary, fileList, commandList,
			)
		} else {
			systemPrompt = FixPhaseSystemPrompt
			prompt = fmt.Sprintf(
				"Previous verification attempt failed:\n%s\n\nVerification commands to re-run:\n%s",
				previousFailures, commandList,
			)
		}

		result, err := loop.Run(ctx, worker.TurnRequest{Prompt: prompt, SystemPrompt: systemPrompt})
		if err != nil {
			return false, err
		}
		if strings.Contains(result.Text, "VERIFY_PASS") {
			return true, nil
		}
		previousFailures = result.Text
	}

	return false, nil
}
