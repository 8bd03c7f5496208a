package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kpatel513/lyra/internal/adapter"
	m "github.com/kpatel513/lyra/internal/model"
)

// ErrAgentUnavailable reports that the external code-editing agent binary
// could not be found.
var ErrAgentUnavailable = errors.New("code-editing agent not found in PATH")

// OptimizeArgs describes one optimization attempt.
type OptimizeArgs struct {
	Repo m.Path

	// Prompt is handed verbatim to the external agent.
	Prompt string

	// Command is the human-readable description recorded in history.
	Command string

	// Apply gates mutation: without it the workflow is read-only and no
	// history entry is created.
	Apply bool

	// AgentTimeout bounds the agent child process. Zero means no deadline.
	AgentTimeout time.Duration
}

// OptimizeResult reports what an optimization attempt did.
type OptimizeResult struct {
	Mode        string // "plan" | "apply"
	RunID       string
	Changes     m.ChangeSet
	AgentOutput string
}

// Workflow coordinates the snapshot lifecycle around the external agent:
// create entry, run agent, finalize. The agent is trusted for nothing
// beyond "it ran and may have changed files on disk".
type Workflow interface {
	Optimize(ctx context.Context, args OptimizeArgs) (OptimizeResult, error)
}

type workflow struct {
	history HistoryLifecycle
	agent   adapter.AgentRunnerAdapter
}

// NewWorkflow constructs a Workflow.
func NewWorkflow(history HistoryLifecycle, agent adapter.AgentRunnerAdapter) Workflow {
	return &workflow{history: history, agent: agent}
}

// Optimize runs one attempt. In apply mode the entry is finalized even
// when the agent fails or its deadline expires, so the diff records
// whatever partial state the agent left behind.
func (w *workflow) Optimize(ctx context.Context, args OptimizeArgs) (OptimizeResult, error) {
	if !w.agent.IsAvailable() {
		return OptimizeResult{}, ErrAgentUnavailable
	}

	if !args.Apply {
		return OptimizeResult{Mode: "plan"}, nil
	}

	entry, err := w.history.Create(ctx, args.Repo, args.Command)
	if err != nil {
		return OptimizeResult{}, fmt.Errorf("create history entry: %w", err)
	}

	agentCtx := ctx

	if args.AgentTimeout > 0 {
		var cancel context.CancelFunc

		agentCtx, cancel = context.WithTimeout(ctx, args.AgentTimeout)
		defer cancel()
	}

	output, agentErr := w.agent.Run(agentCtx, string(args.Repo), args.Prompt)
	if agentErr != nil {
		slog.Warn("Agent run failed, finalizing against partial state", "run_id", entry.RunID, "error", agentErr)
	}

	changes, err := w.history.Finalize(ctx, entry)
	if err != nil {
		return OptimizeResult{}, fmt.Errorf("finalize history entry: %w", err)
	}

	result := OptimizeResult{
		Mode:        "apply",
		RunID:       entry.RunID,
		Changes:     changes,
		AgentOutput: output,
	}

	if agentErr != nil {
		return result, fmt.Errorf("agent run: %w", agentErr)
	}

	return result, nil
}
