// Package runstate owns the Run State Machine: the RunState data model, its
// status transitions, phase cursor, and completed-phase bookkeeping. It
// defines — but does not implement — the collaborators it needs (phase
// execution, consensus gating, durable persistence) as interfaces, so this
// package has no dependency on their concrete implementations; the
// orchestrator package wires the real ones in.
package runstate

import (
	"time"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/checkpoint"
)

// Status is the run's lifecycle state. Exactly one variant holds at a time.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusRunning            Status = "running"
	StatusAwaitingConsensus  Status = "awaiting_consensus"
	StatusNeedsRevision      Status = "needs_revision"
	StatusAborted            Status = "aborted"
	StatusCompleted          Status = "completed"
)

// PhaseStatus is a phase's per-run execution status.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
	PhaseSkipped    PhaseStatus = "skipped"
)

// AgentOutcome records a single agent invocation.
type AgentOutcome struct {
	AgentName  string    `json:"agentName"`
	Success    bool      `json:"success"`
	ExitCode   int       `json:"exitCode"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	RetryCount int       `json:"retryCount"`
	Notes      string    `json:"notes,omitempty"`
}

// InSessionSuspendExitCode is the reserved agent exit code for cooperative
// in-session suspension.
const InSessionSuspendExitCode = 2

// PhaseState is the per-run, per-phase execution record.
type PhaseState struct {
	Status        PhaseStatus         `json:"status"`
	StartedAt     *time.Time          `json:"startedAt,omitempty"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty"`
	ArtifactPaths []string            `json:"artifactPaths,omitempty"`
	AgentOutcomes []AgentOutcome      `json:"agentOutcomes,omitempty"`
	Validation    *checkpoint.Report  `json:"validation,omitempty"`
}

// ConsensusDecision is one approve/reject record in a run's consensus
// history. Kept append-only across the life of the run, retaining every
// decision rather than only the most recent.
type ConsensusDecision struct {
	Phase     string    `json:"phase"`
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}

// RunMetadata is the run's small metadata bag.
type RunMetadata struct {
	ProjectName string `json:"projectName,omitempty"`
	IntakeText  string `json:"intakeText,omitempty"`
	ClientSlug  string `json:"clientSlug,omitempty"`
}

// RunState is the full durable state of a single run.
type RunState struct {
	RunID            string                 `json:"runId"`
	Profile          string                 `json:"profile"`
	Status           Status                 `json:"status"`
	CurrentPhase     string                 `json:"currentPhase,omitempty"`
	CompletedPhases  []string               `json:"completedPhases"`
	PhaseStates      map[string]*PhaseState `json:"phaseStates"`
	Metadata         RunMetadata            `json:"metadata"`
	AwaitingConsensus bool                  `json:"awaitingConsensus"`
	ConsensusPhase   string                 `json:"consensusPhase,omitempty"`
	ConsensusHistory []ConsensusDecision    `json:"consensusHistory,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// PhaseOutcome is the result of one phase dispatch: every agent outcome
// observed, the validation verdict, and whether the run should now wait
// on a consensus gate or an external in-session checkpoint.
type PhaseOutcome struct {
	PhaseName         string             `json:"phaseName"`
	AgentOutcomes     []AgentOutcome     `json:"agentOutcomes"`
	Validation        *checkpoint.Report `json:"validation"`
	AwaitingConsensus bool               `json:"awaitingConsensus"`
	InSession         bool               `json:"inSession"`
	Success           bool               `json:"success"`
}
