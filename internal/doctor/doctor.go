// Package doctor gathers failure context for a run — the phase that
// stalled, its agent outcomes, checkpoint verdict, and recent consensus
// history — and classifies it into one of the core's error kinds so an
// operator can decide the next command without reading raw JSON.
// Diagnosis is a deterministic decision tree over already-typed state;
// it never calls out to any external analyzer.
package doctor

import (
	"fmt"
	"strings"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/checkpoint"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
)

const maxLogLines = 200

// Classification names the error kind a diagnosis falls under, plus two
// diagnosis-only states for a clean run and a not-yet-executed phase.
type Classification string

const (
	ClassOK           Classification = "ok"
	ClassNotStarted   Classification = "not_started"
	ClassAgent        Classification = "transient_agent"
	ClassValidation   Classification = "validation"
	ClassConsensus    Classification = "consensus"
	ClassStateMachine Classification = "state_machine"
)

// LogReader is the subset of persistence.Store doctor needs to pull recent
// log records for the diagnosed phase.
type LogReader interface {
	TailLog(runID string, n int) ([]runstate.LogRecord, error)
}

// Report is doctor's gathered-and-classified diagnosis for one run.
type Report struct {
	RunID          string
	Phase          string
	Classification Classification
	Summary        string
	LogExcerpt     []runstate.LogRecord
	Suggestions    []string
}

// Diagnose inspects rs and, if store is non-nil, the run's recent log
// records, and returns a classified Report. It never mutates rs or the
// run's durable state — diagnosis is read-only.
func Diagnose(store LogReader, rs *runstate.RunState) (*Report, error) {
	phase := diagnosedPhase(rs)
	report := &Report{RunID: rs.RunID, Phase: phase}

	if store != nil {
		records, err := store.TailLog(rs.RunID, 0)
		if err != nil {
			return nil, fmt.Errorf("doctor: reading log: %w", err)
		}
		report.LogExcerpt = filterByPhase(records, phase, maxLogLines)
	}

	classify(rs, phase, report)
	return report, nil
}

// diagnosedPhase picks the phase most relevant to the run's current
// status: the gated/current phase for Running, AwaitingConsensus, and
// NeedsRevision; the last completed phase otherwise.
func diagnosedPhase(rs *runstate.RunState) string {
	switch rs.Status {
	case runstate.StatusRunning, runstate.StatusAwaitingConsensus, runstate.StatusNeedsRevision:
		return rs.CurrentPhase
	}
	if n := len(rs.CompletedPhases); n > 0 {
		return rs.CompletedPhases[n-1]
	}
	return rs.CurrentPhase
}

func classify(rs *runstate.RunState, phase string, report *Report) {
	if rs.Status == runstate.StatusCompleted {
		report.Classification = ClassOK
		report.Summary = "run completed; nothing to diagnose."
		return
	}

	ps := rs.PhaseStates[phase]
	if ps == nil {
		report.Classification = ClassNotStarted
		report.Summary = fmt.Sprintf("phase %q has not been dispatched yet.", phase)
		return
	}

	if rs.Status == runstate.StatusNeedsRevision {
		reason := lastRejectionReason(rs, phase)
		report.Classification = ClassConsensus
		report.Summary = fmt.Sprintf("phase %q was rejected at consensus: %s", phase, reason)
		report.Suggestions = []string{
			fmt.Sprintf("orc resume %s", rs.RunID),
			fmt.Sprintf("orc next %s", rs.RunID),
		}
		return
	}

	if failed := failedAgents(ps.AgentOutcomes); len(failed) > 0 {
		report.Classification = ClassAgent
		report.Summary = fmt.Sprintf("phase %q has %d agent(s) that exhausted retries: %s",
			phase, len(failed), strings.Join(failed, ", "))
		report.Suggestions = []string{
			fmt.Sprintf("orc replay %s %s", rs.RunID, phase),
		}
		return
	}

	if ps.Validation != nil && ps.Validation.Status != checkpoint.Pass {
		report.Classification = ClassValidation
		report.Summary = fmt.Sprintf("phase %q checkpoint verdict is %s; missing: %s",
			phase, ps.Validation.Status, strings.Join(ps.Validation.Missing, ", "))
		suggestion := fmt.Sprintf("orc checkpoint %s --force", rs.RunID)
		if ps.Validation.Status == checkpoint.Fail {
			suggestion += "   (Fail verdicts require explicit --force)"
		}
		report.Suggestions = []string{suggestion, fmt.Sprintf("orc replay %s %s", rs.RunID, phase)}
		return
	}

	if ps.Status == runstate.PhaseFailed {
		report.Classification = ClassStateMachine
		report.Summary = fmt.Sprintf("phase %q is marked failed with no agent or validation cause recorded.", phase)
		return
	}

	report.Classification = ClassOK
	report.Summary = fmt.Sprintf("phase %q shows no failure; run 'orc next %s' to continue.", phase, rs.RunID)
}

func failedAgents(outcomes []runstate.AgentOutcome) []string {
	var names []string
	for _, a := range outcomes {
		if !a.Success {
			names = append(names, fmt.Sprintf("%s(exit %d)", a.AgentName, a.ExitCode))
		}
	}
	return names
}

func lastRejectionReason(rs *runstate.RunState, phase string) string {
	for i := len(rs.ConsensusHistory) - 1; i >= 0; i-- {
		d := rs.ConsensusHistory[i]
		if d.Phase == phase && !d.Approved {
			return d.Reason
		}
	}
	return "(no reason recorded)"
}

func filterByPhase(records []runstate.LogRecord, phase string, max int) []runstate.LogRecord {
	var out []runstate.LogRecord
	for _, r := range records {
		if phase == "" || strings.Contains(r.Message, fmt.Sprintf("%q", phase)) {
			out = append(out, r)
		}
	}
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// Render formats a Report as plain text for terminal display.
func Render(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s — phase %q\n", r.RunID, r.Phase)
	fmt.Fprintf(&b, "classification: %s\n", r.Classification)
	fmt.Fprintf(&b, "%s\n", r.Summary)
	if len(r.Suggestions) > 0 {
		fmt.Fprintf(&b, "\nsuggested next command(s):\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}
	if len(r.LogExcerpt) > 0 {
		fmt.Fprintf(&b, "\nrecent log records for this phase:\n")
		for _, rec := range r.LogExcerpt {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", rec.Timestamp.Format("15:04:05"), rec.Tag, rec.Message)
		}
	}
	return b.String()
}
