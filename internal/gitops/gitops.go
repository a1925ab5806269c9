// Package gitops detects the git remote host for a worktree and builds the
// PR/MR instructions the Coordinator's PR-phase agent is given, grounded
// on original_source's detect_pr_instructions (backend/agent_team/prompts.rs)
// and the teacher's subprocess style (internal/executor, exec.CommandContext
// + timeout).
package gitops

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Host identifies the detected git remote platform.
type Host string

const (
	HostGitHub    Host = "github"
	HostGitLab    Host = "gitlab"
	HostBitbucket Host = "bitbucket"
	HostUnknown   Host = "unknown" // push-only: no recognised host CLI
)

// RemoteProbeTimeout bounds how long `git remote get-url` is allowed to run
// (spec.md §5, "git remote probes 3–5s").
const RemoteProbeTimeout = 5 * time.Second

// DetectHost classifies a remote URL by substring match, matching
// original_source's detect_pr_instructions.
func DetectHost(remoteURL string) Host {
	lower := strings.ToLower(remoteURL)
	switch {
	case strings.Contains(lower, "github.com"):
		return HostGitHub
	case strings.Contains(lower, "gitlab"):
		return HostGitLab
	case strings.Contains(lower, "bitbucket"):
		return HostBitbucket
	default:
		return HostUnknown
	}
}

// RemoteURL runs `git remote get-url origin` in dir, returning "" (not an
// error) when the repository has no origin remote configured.
func RemoteURL(ctx context.Context, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, RemoteProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", "origin")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

// PRInstructions returns the PR/MR creation instructions for the PR-phase
// agent's prompt, given a (possibly empty) remote URL.
func PRInstructions(remoteURL string) string {
	if remoteURL == "" {
		return "No git remote detected. Push the branch only, skip PR/MR creation."
	}
	switch DetectHost(remoteURL) {
	case HostGitHub:
		return "Create a Pull Request: `gh pr create --fill`\nThis is a GitHub repo. Use `gh` only, never `glab`."
	case HostGitLab:
		return "Create a Merge Request: `glab mr create --fill --yes`\nThis is a GitLab repo. Use `glab` only, never `gh`."
	case HostBitbucket:
		return "Push the branch. Do not attempt to create a PR via CLI (Bitbucket CLI is not available)."
	default:
		return "Push the branch only. The remote `" + remoteURL + "` is not a recognized platform — skip PR/MR creation."
	}
}

// PushBranch runs `git push` for branch in dir with a short timeout.
func PushBranch(ctx context.Context, dir, branch string) error {
	ctx, cancel := context.WithTimeout(ctx, RemoteProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "push", "-u", "origin", branch)
	cmd.Dir = dir
	return cmd.Run()
}

// PRStateCache caches open/merged PR-state lookups per branch for 60s to
// bound subprocess usage (spec.md §4.8, §5).
type PRStateCache struct {
	ttl     time.Duration
	entries map[string]prStateEntry
}

type prStateEntry struct {
	state   PRState
	fetched time.Time
}

// PRState is the observed state of a branch's pull/merge request.
type PRState struct {
	Open   bool
	Merged bool
}

// NewPRStateCache builds a cache with the default 60s TTL.
func NewPRStateCache() *PRStateCache {
	return &PRStateCache{ttl: 60 * time.Second, entries: make(map[string]prStateEntry)}
}

// Get returns a cached PRState for branch if it was fetched within the
// TTL window, and false otherwise.
func (c *PRStateCache) Get(branch string) (PRState, bool) {
	entry, ok := c.entries[branch]
	if !ok || time.Since(entry.fetched) > c.ttl {
		return PRState{}, false
	}
	return entry.state, true
}

// Set records branch's freshly-fetched PRState.
func (c *PRStateCache) Set(branch string, state PRState) {
	c.entries[branch] = prStateEntry{state: state, fetched: time.Now()}
}

// PRStateProbeTimeout bounds how long the `gh pr view` liveness probe is
// allowed to run.
const PRStateProbeTimeout = 5 * time.Second

// CheckPRState reports whether branch's PR is currently in expectedState
// ("OPEN" or "MERGED"), consulting cache first and falling back to `gh pr
// view` on a miss. Errors (no gh CLI, no PR for the branch, network) are
// treated as "state unknown" and reported as false rather than propagated,
// since this feeds a best-effort liveness check
// (internal/liveness.Dependencies.CheckPRState), not a hard dependency.
func CheckPRState(ctx context.Context, dir, branch, expectedState string, cache *PRStateCache) bool {
	if cache != nil {
		if state, ok := cache.Get(branch); ok {
			return matchesPRState(state, expectedState)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, PRStateProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "gh", "pr", "view", branch, "--json", "state", "-q", ".state")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return false
	}

	raw := strings.ToUpper(strings.TrimSpace(string(out)))
	state := PRState{Open: raw == "OPEN", Merged: raw == "MERGED"}
	if cache != nil {
		cache.Set(branch, state)
	}
	return matchesPRState(state, expectedState)
}

func matchesPRState(state PRState, expected string) bool {
	switch strings.ToUpper(expected) {
	case "OPEN":
		return state.Open
	case "MERGED":
		return state.Merged
	default:
		return false
	}
}
