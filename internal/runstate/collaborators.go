package runstate

import (
	"context"
	"time"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
)

// RunOptions carries the per-invocation CLI overrides the Phase Executor
// must honor when present: force parallel dispatch, cap the worker count,
// and override the per-agent timeout. By the time a PhaseRunner sees a
// RunOptions, MaxWorkers has already been resolved by the Machine against
// the profile's configured cap — a PhaseRunner implementation can use it
// directly as the worker-pool capacity.
type RunOptions struct {
	ForceParallel *bool
	MaxWorkers    int
	Timeout       time.Duration
	Force         bool // checkpoint --force: advance over Partial/Fail verdicts
}

// PhaseRunner is the Phase Executor's interface as seen by the state
// machine: dispatch every agent for phase, validate checkpoint artifacts,
// and report the outcome. Concrete implementation lives in
// internal/executor; this package only depends on the interface, so it has
// no import-time dependency on subprocess/LLM dispatch mechanics.
type PhaseRunner interface {
	RunPhase(ctx context.Context, rs *RunState, phase config.PhaseSpec, agents map[string]config.AgentSpec, opts RunOptions) (*PhaseOutcome, error)
	// Checkpoint re-validates a phase's artifacts without re-invoking any
	// agent — used by the `checkpoint` command after an in-session
	// suspension.
	Checkpoint(ctx context.Context, rs *RunState, phase config.PhaseSpec, agents map[string]config.AgentSpec) (*PhaseOutcome, error)
}

// ConsensusGate is the Consensus Gate's interface as seen by the state
// machine.
type ConsensusGate interface {
	EmitRequest(runID string, phase config.PhaseSpec, outcome *PhaseOutcome) error
	RecordApproval(runID, phase string) error
	RecordRejection(runID, phase, reason string) error
}

// LogTag tags a run-log record with the kind of event it documents.
type LogTag string

const (
	LogPhaseStart         LogTag = "phase-start"
	LogPhaseEnd           LogTag = "phase-end"
	LogAgentStart         LogTag = "agent-start"
	LogAgentEnd           LogTag = "agent-end"
	LogRetry              LogTag = "retry"
	LogConsensusRequested LogTag = "consensus-requested"
	LogConsensusApproved  LogTag = "consensus-approved"
	LogConsensusRejected  LogTag = "consensus-rejected"
	LogRollback           LogTag = "rollback"
	LogAbort              LogTag = "abort"
	LogResume             LogTag = "resume"
	LogJump               LogTag = "jump"
	LogDenied             LogTag = "denied"
)

// LogRecord is one append-only run-log entry. Records for the same run are
// totally ordered by append order within a process, but consumers must use
// Timestamp for ordering across restarts.
type LogRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"runId"`
	Tag       LogTag         `json:"tag"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Store is the persistence layer's interface as seen by the state machine:
// durable state document, append-only run log. Every state-mutating
// operation calls Store before returning success to its caller.
type Store interface {
	SaveState(rs *RunState) error
	LoadState(runID string) (*RunState, error)
	AppendLog(record LogRecord) error
	// WriteAdvisory persists a free-form advisory document — currently only
	// the rollback operation's non-destructive ROLLBACK_<timestamp> record
	// — under the run's directory, and returns the path it was written to.
	WriteAdvisory(runID, name, content string) (string, error)
}
