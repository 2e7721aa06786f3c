package runstate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/checkpoint"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
)

// Machine executes the Run State Machine's operations against a RunState,
// delegating phase execution, consensus gating, and persistence to its
// collaborators. Machine itself holds no run-specific state — every
// operation takes the RunState (and, where relevant, the resolved Profile)
// explicitly, so one Machine value can drive any number of runs.
type Machine struct {
	Runner PhaseRunner
	Gate   ConsensusGate
	Store  Store

	Now      func() time.Time
	NewRunID func() string
}

// NewMachine builds a Machine with production clock/ID-generator defaults.
func NewMachine(runner PhaseRunner, gate ConsensusGate, store Store) *Machine {
	return &Machine{
		Runner:   runner,
		Gate:     gate,
		Store:    store,
		Now:      time.Now,
		NewRunID: func() string { return uuid.NewString() },
	}
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Machine) persist(rs *RunState) error {
	rs.UpdatedAt = m.now()
	if err := m.Store.SaveState(rs); err != nil {
		return &CoreError{Kind: ErrPersistence, Message: "saving run state", Cause: err}
	}
	return nil
}

func (m *Machine) log(rs *RunState, tag LogTag, message string, fields map[string]any) error {
	rec := LogRecord{Timestamp: m.now(), RunID: rs.RunID, Tag: tag, Message: message, Fields: fields}
	if err := m.Store.AppendLog(rec); err != nil {
		return &CoreError{Kind: ErrPersistence, Message: "appending run log", Cause: err}
	}
	return nil
}

// StartRun transitions idle -> running, seeding the phase cursor at the
// profile's first declared phase, or at fromPhase when the operator
// supplies one.
func (m *Machine) StartRun(ctx context.Context, profile *config.Profile, meta RunMetadata, fromPhase string) (*RunState, error) {
	if len(profile.Phases) == 0 {
		return nil, newStateMachineErr("profile %q declares no phases", profile.Name)
	}

	start := profile.Phases[0].Name
	if fromPhase != "" {
		if _, ok := profile.Phase(fromPhase); !ok {
			return nil, newStateMachineErr("unknown phase %q", fromPhase)
		}
		start = fromPhase
	}

	now := m.now()
	rs := &RunState{
		RunID:           m.NewRunID(),
		Profile:         profile.Name,
		Status:          StatusRunning,
		CurrentPhase:    start,
		CompletedPhases: []string{},
		PhaseStates:     map[string]*PhaseState{},
		Metadata:        meta,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, ph := range profile.Phases {
		status := PhasePending
		if ph.Name != start && profile.PhaseIndex(ph.Name) < profile.PhaseIndex(start) {
			status = PhaseSkipped
		}
		rs.PhaseStates[ph.Name] = &PhaseState{Status: status}
	}

	if err := m.persist(rs); err != nil {
		return nil, err
	}
	if err := m.log(rs, LogPhaseStart, fmt.Sprintf("run started at phase %q", start), nil); err != nil {
		return nil, err
	}
	return rs, nil
}

func requireStatus(rs *RunState, want Status) error {
	if rs.Status != want {
		return newStateMachineErr("operation requires status %q, run is %q", want, rs.Status)
	}
	return nil
}

// NextPhase dispatches the current phase via the Phase Executor and applies
// its outcome:
//
//	checkpoint Pass/Partial(--force), no consensus required -> advance cursor
//	checkpoint Pass/Partial(--force), consensus required     -> awaiting_consensus
//	checkpoint Fail, or Partial without --force               -> needs_revision
//	agent suspended in-session                                 -> stays running, phase left in_progress
func (m *Machine) NextPhase(ctx context.Context, profile *config.Profile, rs *RunState, opts RunOptions) (*PhaseOutcome, error) {
	if err := requireStatus(rs, StatusRunning); err != nil {
		return nil, err
	}
	if rs.CurrentPhase == "" {
		return nil, newStateMachineErr("run has no current phase")
	}

	phase, ok := profile.Phase(rs.CurrentPhase)
	if !ok {
		return nil, newStateMachineErr("current phase %q not declared in profile", rs.CurrentPhase)
	}
	agents, err := profile.AgentsFor(phase)
	if err != nil {
		return nil, newStateMachineErr("%s", err)
	}
	agentByName := make(map[string]config.AgentSpec, len(agents))
	for _, a := range agents {
		agentByName[a.Name] = a
	}

	started := m.now()
	ps := rs.PhaseStates[phase.Name]
	if ps == nil {
		ps = &PhaseState{}
		rs.PhaseStates[phase.Name] = ps
	}
	ps.Status = PhaseInProgress
	ps.StartedAt = &started
	if err := m.persist(rs); err != nil {
		return nil, err
	}
	if err := m.log(rs, LogPhaseStart, fmt.Sprintf("phase %q dispatched", phase.Name), nil); err != nil {
		return nil, err
	}

	opts.MaxWorkers = profile.WorkerCap(opts.MaxWorkers)
	outcome, err := m.Runner.RunPhase(ctx, rs, phase, agentByName, opts)
	if err != nil {
		return nil, &CoreError{Kind: ErrTransientAgent, Message: fmt.Sprintf("phase %q execution failed", phase.Name), Cause: err}
	}

	return outcome, m.applyPhaseOutcome(profile, rs, phase, outcome, opts.Force)
}

// Checkpoint re-validates the current phase's artifacts without
// re-dispatching any agent — the `checkpoint` command issued after an
// in-session suspension resolves to this path.
func (m *Machine) Checkpoint(ctx context.Context, profile *config.Profile, rs *RunState, force bool) (*PhaseOutcome, error) {
	if err := requireStatus(rs, StatusRunning); err != nil {
		return nil, err
	}
	phase, ok := profile.Phase(rs.CurrentPhase)
	if !ok {
		return nil, newStateMachineErr("current phase %q not declared in profile", rs.CurrentPhase)
	}
	agents, err := profile.AgentsFor(phase)
	if err != nil {
		return nil, newStateMachineErr("%s", err)
	}
	agentByName := make(map[string]config.AgentSpec, len(agents))
	for _, a := range agents {
		agentByName[a.Name] = a
	}

	outcome, err := m.Runner.Checkpoint(ctx, rs, phase, agentByName)
	if err != nil {
		return nil, &CoreError{Kind: ErrValidation, Message: fmt.Sprintf("phase %q checkpoint failed", phase.Name), Cause: err}
	}
	return outcome, m.applyPhaseOutcome(profile, rs, phase, outcome, force)
}

func (m *Machine) applyPhaseOutcome(profile *config.Profile, rs *RunState, phase config.PhaseSpec, outcome *PhaseOutcome, force bool) error {
	ps := rs.PhaseStates[phase.Name]
	ps.AgentOutcomes = outcome.AgentOutcomes
	ps.Validation = outcome.Validation
	if outcome.Validation != nil {
		ps.ArtifactPaths = outcome.Validation.Found
	}

	if outcome.InSession {
		// Agent cooperatively suspended; leave the phase in_progress so a
		// later `checkpoint` call can resolve it without re-invoking anyone.
		return m.persist(rs)
	}

	if !phaseAdvances(outcome.Validation, force) {
		// NeedsRevision is reserved for a rejected consensus; an unforced
		// Partial or Fail leaves the phase uncompleted and the run Running
		// so the operator can re-execute it or advance with an explicit
		// `checkpoint --force`.
		ps.Status = PhaseFailed
		if err := m.persist(rs); err != nil {
			return err
		}
		return m.log(rs, LogPhaseEnd, fmt.Sprintf("phase %q failed validation", phase.Name), nil)
	}

	completedAt := m.now()
	ps.Status = PhaseCompleted
	ps.CompletedAt = &completedAt
	if err := m.log(rs, LogPhaseEnd, fmt.Sprintf("phase %q completed", phase.Name), nil); err != nil {
		return err
	}

	if phase.ConsensusRequired {
		outcome.AwaitingConsensus = true
		rs.Status = StatusAwaitingConsensus
		rs.AwaitingConsensus = true
		rs.ConsensusPhase = phase.Name
		if err := m.persist(rs); err != nil {
			return err
		}
		if err := m.Gate.EmitRequest(rs.RunID, phase, outcome); err != nil {
			return &CoreError{Kind: ErrPersistence, Message: "emitting consensus request", Cause: err}
		}
		return m.log(rs, LogConsensusRequested, fmt.Sprintf("phase %q awaiting consensus", phase.Name), nil)
	}

	m.markCompletedAndAdvance(profile, rs, phase.Name)
	return m.persist(rs)
}

// phaseAdvances reports whether a checkpoint verdict is sufficient to
// advance the run cursor: an exact Pass always advances; Partial and Fail
// advance only when the operator forced it. The `next` command never sets
// force — only an explicit `checkpoint --force` does, so advancing over a
// Fail is always a deliberate operator action.
func phaseAdvances(report *checkpoint.Report, force bool) bool {
	if report == nil {
		return false
	}
	if report.Status == checkpoint.Pass {
		return true
	}
	return force
}

func (m *Machine) markCompletedAndAdvance(profile *config.Profile, rs *RunState, phaseName string) {
	rs.CompletedPhases = append(rs.CompletedPhases, phaseName)

	idx := profile.PhaseIndex(phaseName)
	if idx < 0 || idx+1 >= len(profile.Phases) {
		rs.Status = StatusCompleted
		rs.CurrentPhase = ""
		return
	}
	rs.CurrentPhase = profile.Phases[idx+1].Name
}

// ApproveConsensus transitions awaiting_consensus -> running (or completed,
// if the approved phase was the profile's last), recording the decision in
// the run's append-only consensus history.
func (m *Machine) ApproveConsensus(ctx context.Context, profile *config.Profile, rs *RunState) error {
	if err := requireStatus(rs, StatusAwaitingConsensus); err != nil {
		return err
	}
	phase := rs.ConsensusPhase
	rs.ConsensusHistory = append(rs.ConsensusHistory, ConsensusDecision{Phase: phase, Approved: true, DecidedAt: m.now()})
	rs.AwaitingConsensus = false
	rs.ConsensusPhase = ""
	rs.Status = StatusRunning

	m.markCompletedAndAdvance(profile, rs, phase)
	if err := m.Gate.RecordApproval(rs.RunID, phase); err != nil {
		return &CoreError{Kind: ErrPersistence, Message: "recording consensus approval", Cause: err}
	}
	if err := m.persist(rs); err != nil {
		return err
	}
	return m.log(rs, LogConsensusApproved, fmt.Sprintf("phase %q consensus approved", phase), nil)
}

// RejectConsensus transitions awaiting_consensus -> needs_revision, leaving
// the rejected phase marked failed so ResumeRun re-attempts it.
func (m *Machine) RejectConsensus(ctx context.Context, rs *RunState, reason string) error {
	if err := requireStatus(rs, StatusAwaitingConsensus); err != nil {
		return err
	}
	phase := rs.ConsensusPhase
	rs.ConsensusHistory = append(rs.ConsensusHistory, ConsensusDecision{Phase: phase, Approved: false, Reason: reason, DecidedAt: m.now()})
	rs.AwaitingConsensus = false
	rs.Status = StatusNeedsRevision
	if ps := rs.PhaseStates[phase]; ps != nil {
		ps.Status = PhaseFailed
	}

	if err := m.Gate.RecordRejection(rs.RunID, phase, reason); err != nil {
		return &CoreError{Kind: ErrPersistence, Message: "recording consensus rejection", Cause: err}
	}
	if err := m.persist(rs); err != nil {
		return err
	}
	return m.log(rs, LogConsensusRejected, fmt.Sprintf("phase %q consensus rejected: %s", phase, reason), map[string]any{"reason": reason})
}

// AbortRun transitions any non-terminal status to aborted. Aborting an
// already-terminal run is a state-machine error, not a silent no-op.
func (m *Machine) AbortRun(ctx context.Context, rs *RunState) error {
	switch rs.Status {
	case StatusAborted, StatusCompleted:
		return newStateMachineErr("cannot abort a run that is already %q", rs.Status)
	}
	rs.Status = StatusAborted
	rs.AwaitingConsensus = false
	if err := m.persist(rs); err != nil {
		return err
	}
	return m.log(rs, LogAbort, "run aborted", nil)
}

// ResumeRun transitions needs_revision or aborted -> running, leaving the
// cursor on whatever phase it was last pointed at so the next NextPhase
// call re-attempts it.
func (m *Machine) ResumeRun(ctx context.Context, rs *RunState) error {
	switch rs.Status {
	case StatusNeedsRevision, StatusAborted:
	default:
		return newStateMachineErr("resume requires status %q or %q, run is %q", StatusNeedsRevision, StatusAborted, rs.Status)
	}
	rs.Status = StatusRunning
	if err := m.persist(rs); err != nil {
		return err
	}
	return m.log(rs, LogResume, fmt.Sprintf("run resumed at phase %q", rs.CurrentPhase), nil)
}

// JumpToPhase moves the cursor directly to target, marking any declared
// phase strictly between the old cursor and target as skipped if it was
// not already completed. Jumping requires status Running and never
// implicitly clears completed-phase history.
func (m *Machine) JumpToPhase(ctx context.Context, profile *config.Profile, rs *RunState, target string) error {
	if err := requireStatus(rs, StatusRunning); err != nil {
		return err
	}
	targetIdx := profile.PhaseIndex(target)
	if targetIdx < 0 {
		return newStateMachineErr("unknown phase %q", target)
	}

	fromIdx := profile.PhaseIndex(rs.CurrentPhase)
	if fromIdx >= 0 && targetIdx > fromIdx {
		for i := fromIdx; i < targetIdx; i++ {
			name := profile.Phases[i].Name
			if ps := rs.PhaseStates[name]; ps != nil && ps.Status != PhaseCompleted {
				ps.Status = PhaseSkipped
			}
		}
	}

	rs.CurrentPhase = target
	rs.Status = StatusRunning
	rs.AwaitingConsensus = false
	rs.ConsensusPhase = ""
	if err := m.persist(rs); err != nil {
		return err
	}
	return m.log(rs, LogJump, fmt.Sprintf("jumped to phase %q", target), nil)
}

// RollbackToPhase moves the cursor back to target and un-commits every
// phase at or after it: completed-phase entries are dropped and their
// PhaseState resets to pending, so NextPhase re-runs them from scratch.
// Valid from any run status — rolling back an aborted or completed
// run reactivates it at the target phase. Writes a non-destructive
// ROLLBACK_<timestamp> advisory document summarizing the reset; no
// artifact is ever deleted.
func (m *Machine) RollbackToPhase(ctx context.Context, profile *config.Profile, rs *RunState, target string) error {
	targetIdx := profile.PhaseIndex(target)
	if targetIdx < 0 {
		return newStateMachineErr("unknown phase %q", target)
	}

	at := m.now()
	advisory := fmt.Sprintf(
		"# Rollback advisory\n\n- Run: `%s`\n- From phase: `%s`\n- To phase: `%s`\n- Recorded: %s\n\n"+
			"No artifacts were deleted; completed-phase history before the target phase is preserved.\n",
		rs.RunID, rs.CurrentPhase, target, at.Format(time.RFC3339),
	)
	advisoryPath, err := m.Store.WriteAdvisory(rs.RunID, fmt.Sprintf("ROLLBACK_%s", at.UTC().Format("20060102T150405.000000000Z")), advisory)
	if err != nil {
		return &CoreError{Kind: ErrPersistence, Message: "writing rollback advisory", Cause: err}
	}

	kept := rs.CompletedPhases[:0:0]
	for _, name := range rs.CompletedPhases {
		if profile.PhaseIndex(name) < targetIdx {
			kept = append(kept, name)
		}
	}
	rs.CompletedPhases = kept

	for i := targetIdx; i < len(profile.Phases); i++ {
		rs.PhaseStates[profile.Phases[i].Name] = &PhaseState{Status: PhasePending}
	}

	rs.CurrentPhase = target
	rs.Status = StatusRunning
	rs.AwaitingConsensus = false
	rs.ConsensusPhase = ""
	if err := m.persist(rs); err != nil {
		return err
	}
	return m.log(rs, LogRollback, fmt.Sprintf("rolled back to phase %q", target), map[string]any{"advisory": advisoryPath})
}

// ReplayPhase re-dispatches a named phase out of normal cursor order
// (typically the current phase, after an operator fixes something by
// hand) and appends a fresh PhaseOutcome to the run log. It never applies
// the outcome to the run's lifecycle: CurrentPhase, CompletedPhases, and
// Status are left exactly as they were, so replaying an already-completed
// phase cannot duplicate it in CompletedPhases and replaying a phase of a
// terminal run cannot reactivate it. Valid from any run status.
func (m *Machine) ReplayPhase(ctx context.Context, profile *config.Profile, rs *RunState, name string, opts RunOptions) (*PhaseOutcome, error) {
	phase, ok := profile.Phase(name)
	if !ok {
		return nil, newStateMachineErr("unknown phase %q", name)
	}
	agents, err := profile.AgentsFor(phase)
	if err != nil {
		return nil, newStateMachineErr("%s", err)
	}
	agentByName := make(map[string]config.AgentSpec, len(agents))
	for _, a := range agents {
		agentByName[a.Name] = a
	}

	opts.MaxWorkers = profile.WorkerCap(opts.MaxWorkers)
	outcome, err := m.Runner.RunPhase(ctx, rs, phase, agentByName, opts)
	if err != nil {
		return nil, &CoreError{Kind: ErrTransientAgent, Message: fmt.Sprintf("phase %q replay failed", name), Cause: err}
	}

	if err := m.log(rs, LogPhaseEnd, fmt.Sprintf("phase %q replayed", name), map[string]any{"success": outcome.Success}); err != nil {
		return nil, err
	}
	return outcome, nil
}
