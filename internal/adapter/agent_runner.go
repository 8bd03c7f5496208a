package adapter

import (
	"bytes"
	"context"
	"os/exec"
)

// AgentRunnerAdapter abstracts the external code-editing agent. The agent
// is a black box: it is handed a working directory plus a prompt and may
// edit arbitrary files. The snapshot lifecycle brackets it with manifest
// captures; nothing else is consumed from it.
type AgentRunnerAdapter interface {
	// IsAvailable reports whether the agent binary can be found.
	IsAvailable() bool

	// Run executes the agent in workDir with the given prompt, blocking
	// until it exits or ctx expires. On ctx expiry the child is killed and
	// the combined output produced so far is still returned, so the caller
	// can finalize against whatever partial state exists on disk.
	Run(ctx context.Context, workDir, prompt string) (output string, err error)
}

// LocalAgentRunnerAdapter runs the agent binary via os/exec.
type LocalAgentRunnerAdapter struct {
	binary string
}

// NewLocalAgentRunnerAdapter constructs a runner for the given agent
// binary name (e.g. "claude").
func NewLocalAgentRunnerAdapter(binary string) *LocalAgentRunnerAdapter {
	return &LocalAgentRunnerAdapter{binary: binary}
}

// IsAvailable checks the agent binary is on PATH.
func (a *LocalAgentRunnerAdapter) IsAvailable() bool {
	_, err := exec.LookPath(a.binary)
	return err == nil
}

// Run executes the agent with the prompt as its argument.
func (a *LocalAgentRunnerAdapter) Run(ctx context.Context, workDir, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, a.binary, "-p", prompt)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String() + stderr.String()

	return output, err
}
