// Package executor implements the Phase Executor: dispatching a phase's
// declared agents (sequential or worker-pool-bounded parallel), retrying
// transient failures with exponential backoff and jitter, enforcing
// per-invocation timeouts, and handling in-session suspension. It
// implements runstate.PhaseRunner so the Run State Machine drives it
// through an interface, never a concrete import.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
)

// Invocation describes one agent dispatch to a Variant. It deliberately
// carries nothing about the agent's business logic — prompt contents,
// LLM endpoints, and subprocess bodies are out of scope — only what the
// executor needs to start, bound, and observe the external worker.
type Invocation struct {
	AgentName string
	Command   []string
	Dir       string
	Env       []string
	Timeout   time.Duration
	LogWriter io.Writer
}

// Variant is one tagged executor kind: subprocess, llm (dispatched
// identically to subprocess), or in-session.
type Variant interface {
	Invoke(ctx context.Context, inv Invocation) (exitCode int, output string, err error)
}

// SubprocessVariant runs inv.Command as a child process: process-group
// cancellation, a wait-delay grace period before the kill signal, and
// combined stdout/stderr capture for the agent's output.
type SubprocessVariant struct{}

func (SubprocessVariant) Invoke(ctx context.Context, inv Invocation) (int, string, error) {
	if len(inv.Command) == 0 {
		return 0, "", fmt.Errorf("executor: agent %q has no command", inv.AgentName)
	}
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Command[0], inv.Command[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	var captured bytes.Buffer
	out := io.Writer(&captured)
	if inv.LogWriter != nil {
		out = io.MultiWriter(&captured, inv.LogWriter)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	runErr := cmd.Run()
	code, err := exitCode(runErr)
	if err != nil {
		return 0, captured.String(), err
	}
	if ctx.Err() != nil {
		return code, captured.String(), ctx.Err()
	}
	return code, captured.String(), nil
}

// exitCode extracts an exit code from a command error.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

// InSessionVariant never spawns a process: an in-session agent's body is
// external (an attached operator, a live coding session) and out of
// scope for the core. Every invocation reports the reserved suspension
// exit code so the Phase Executor leaves the phase in_progress and
// returns a PhaseOutcome with InSession set.
type InSessionVariant struct{}

func (InSessionVariant) Invoke(ctx context.Context, inv Invocation) (int, string, error) {
	return runstate.InSessionSuspendExitCode, "", nil
}

// DefaultVariants returns the production Variant set keyed by executor
// kind, with llm dispatched identically to subprocess per the executor's
// tagged-variant design.
func DefaultVariants() map[config.ExecutorKind]Variant {
	sub := SubprocessVariant{}
	return map[config.ExecutorKind]Variant{
		config.ExecutorSubprocess: sub,
		config.ExecutorLLM:        sub,
		config.ExecutorInSession:  InSessionVariant{},
	}
}
