// Package consensus implements the Consensus Gate: emitting a REQUEST.md
// summary when a phase requires human sign-off, and recording every
// approve/reject decision as a durable, append-only history. It holds no
// state of its own beyond the documents it writes — the Run State Machine
// owns AwaitingConsensus/NeedsRevision transitions; this package only
// produces and consumes the on-disk record of why.
package consensus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
)

// Gate is the production runstate.ConsensusGate: it writes REQUEST.md at a
// canonical per-run path and appends every decision to an ndjson history
// file, so the request/decision protocol is durable and can be driven
// headlessly.
type Gate struct {
	Root  string // e.g. <runDir>/consensus
	Clock func() time.Time
}

// NewGate builds a Gate rooted at dir (typically <runDir>/consensus).
func NewGate(dir string) *Gate {
	return &Gate{Root: dir, Clock: time.Now}
}

func (g *Gate) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}

func (g *Gate) requestPath() string {
	return filepath.Join(g.Root, "REQUEST.md")
}

func (g *Gate) decisionsPath() string {
	return filepath.Join(g.Root, "decisions.ndjson")
}

// Decision is one append-only record in the consensus decision history.
// Records are retained for the life of the run, even across multiple
// revision cycles for the same phase.
type Decision struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	Phase     string    `json:"phase"`
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}

// EmitRequest writes REQUEST.md summarizing the phase, the agent outcomes
// it produced, and an excerpt of its validation report, then blocks the
// state machine until ApproveConsensus/RejectConsensus is called.
func (g *Gate) EmitRequest(runID string, phase config.PhaseSpec, outcome *runstate.PhaseOutcome) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Consensus request: %s\n\n", phase.Name)
	fmt.Fprintf(&b, "- Run: `%s`\n", runID)
	fmt.Fprintf(&b, "- Phase: `%s`\n", phase.Name)
	fmt.Fprintf(&b, "- Requested: %s\n\n", g.now().Format(time.RFC3339))

	fmt.Fprintln(&b, "## Agent outcomes")
	for _, a := range outcome.AgentOutcomes {
		status := "ok"
		if !a.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "- `%s`: %s (exit %d, %d retries)\n", a.AgentName, status, a.ExitCode, a.RetryCount)
	}

	if outcome.Validation != nil {
		fmt.Fprintln(&b, "\n## Validation")
		fmt.Fprintf(&b, "- Status: `%s`\n", outcome.Validation.Status)
		if len(outcome.Validation.Missing) > 0 {
			fmt.Fprintln(&b, "- Missing patterns:")
			for _, m := range outcome.Validation.Missing {
				fmt.Fprintf(&b, "  - `%s`\n", m)
			}
		}
	}

	fmt.Fprintln(&b, "\nRespond with `approve` or `reject <reason>`.")

	if err := os.MkdirAll(g.Root, 0o755); err != nil {
		return fmt.Errorf("consensus: creating %s: %w", g.Root, err)
	}
	if err := os.WriteFile(g.requestPath(), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("consensus: writing request: %w", err)
	}
	return nil
}

// RecordApproval appends an approved Decision and archives the pending
// REQUEST.md (removed, since the decision record now carries its outcome).
func (g *Gate) RecordApproval(runID, phase string) error {
	return g.record(runID, phase, true, "")
}

// RecordRejection appends a rejected Decision carrying the operator's
// reason, and archives the pending REQUEST.md.
func (g *Gate) RecordRejection(runID, phase, reason string) error {
	return g.record(runID, phase, false, reason)
}

func (g *Gate) record(runID, phase string, approved bool, reason string) error {
	d := Decision{
		ID:        uuid.NewString(),
		RunID:     runID,
		Phase:     phase,
		Approved:  approved,
		Reason:    reason,
		DecidedAt: g.now(),
	}
	if err := appendDecision(g.decisionsPath(), d); err != nil {
		return fmt.Errorf("consensus: recording decision: %w", err)
	}
	// The request has been resolved; remove it so a stale REQUEST.md never
	// outlives its decision. The decision history is the durable record.
	_ = os.Remove(g.requestPath())
	return nil
}

// History reads every decision recorded for the gate's run, in append
// order, for callers (status/metrics reporting) that need the full
// revision-cycle history rather than only the most recent decision.
func (g *Gate) History() ([]Decision, error) {
	return readDecisions(g.decisionsPath())
}
