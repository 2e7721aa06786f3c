package runstate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/checkpoint"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
)

// fakeRunner is a scripted PhaseRunner: each call to RunPhase/Checkpoint
// pops the next outcome queued for that phase name.
type fakeRunner struct {
	outcomes map[string][]*PhaseOutcome
	calls    []string
}

func (f *fakeRunner) pop(phase string) *PhaseOutcome {
	q := f.outcomes[phase]
	if len(q) == 0 {
		return &PhaseOutcome{PhaseName: phase, Validation: &checkpoint.Report{Status: checkpoint.Pass}}
	}
	out := q[0]
	f.outcomes[phase] = q[1:]
	return out
}

func (f *fakeRunner) RunPhase(ctx context.Context, rs *RunState, phase config.PhaseSpec, agents map[string]config.AgentSpec, opts RunOptions) (*PhaseOutcome, error) {
	f.calls = append(f.calls, "run:"+phase.Name)
	return f.pop(phase.Name), nil
}

func (f *fakeRunner) Checkpoint(ctx context.Context, rs *RunState, phase config.PhaseSpec, agents map[string]config.AgentSpec) (*PhaseOutcome, error) {
	f.calls = append(f.calls, "checkpoint:"+phase.Name)
	return f.pop(phase.Name), nil
}

type fakeGate struct {
	requested []string
	approved  []string
	rejected  []string
}

func (g *fakeGate) EmitRequest(runID string, phase config.PhaseSpec, outcome *PhaseOutcome) error {
	g.requested = append(g.requested, phase.Name)
	return nil
}
func (g *fakeGate) RecordApproval(runID, phase string) error {
	g.approved = append(g.approved, phase)
	return nil
}
func (g *fakeGate) RecordRejection(runID, phase, reason string) error {
	g.rejected = append(g.rejected, phase)
	return nil
}

type fakeStore struct {
	states     map[string]*RunState
	log        []LogRecord
	advisories map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: map[string]*RunState{}}
}
func (s *fakeStore) SaveState(rs *RunState) error {
	s.states[rs.RunID] = rs
	return nil
}
func (s *fakeStore) LoadState(runID string) (*RunState, error) {
	rs, ok := s.states[runID]
	if !ok {
		return nil, newStateMachineErr("no such run %q", runID)
	}
	return rs, nil
}
func (s *fakeStore) AppendLog(rec LogRecord) error {
	s.log = append(s.log, rec)
	return nil
}
func (s *fakeStore) WriteAdvisory(runID, name, content string) (string, error) {
	if s.advisories == nil {
		s.advisories = map[string]string{}
	}
	s.advisories[name] = content
	return name, nil
}

func testProfile() *config.Profile {
	return &config.Profile{
		Name: "default",
		Phases: []config.PhaseSpec{
			{Name: "plan", Agents: []string{"architect"}},
			{Name: "build", Agents: []string{"coder"}, ConsensusRequired: true},
			{Name: "ship", Agents: []string{"releaser"}},
		},
		Agents: map[string]config.AgentSpec{
			"architect": {Name: "architect", Executor: config.ExecutorSubprocess},
			"coder":     {Name: "coder", Executor: config.ExecutorSubprocess},
			"releaser":  {Name: "releaser", Executor: config.ExecutorSubprocess},
		},
	}
}

func newTestMachine() (*Machine, *fakeRunner, *fakeGate, *fakeStore) {
	runner := &fakeRunner{outcomes: map[string][]*PhaseOutcome{}}
	gate := &fakeGate{}
	store := newFakeStore()
	m := NewMachine(runner, gate, store)
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { tick = tick.Add(time.Second); return tick }
	return m, runner, gate, store
}

func passOutcome(phase string) *PhaseOutcome {
	return &PhaseOutcome{PhaseName: phase, Validation: &checkpoint.Report{Status: checkpoint.Pass}, Success: true}
}

func TestStartRun_SeedsCursorAtFirstPhase(t *testing.T) {
	m, _, _, _ := newTestMachine()
	rs, err := m.StartRun(context.Background(), testProfile(), RunMetadata{ProjectName: "acme"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusRunning || rs.CurrentPhase != "plan" {
		t.Fatalf("got status=%s phase=%s", rs.Status, rs.CurrentPhase)
	}
	if len(rs.CompletedPhases) != 0 {
		t.Fatalf("expected no completed phases yet, got %v", rs.CompletedPhases)
	}
}

func TestNextPhase_LinearRunToCompletion(t *testing.T) {
	m, _, _, _ := newTestMachine()
	profile := testProfile()
	profile.Phases[1].ConsensusRequired = false // linear, no gate
	rs, err := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"plan", "build", "ship"} {
		if rs.CurrentPhase != want {
			t.Fatalf("expected cursor at %q, got %q", want, rs.CurrentPhase)
		}
		if _, err := m.NextPhase(context.Background(), profile, rs, RunOptions{}); err != nil {
			t.Fatalf("NextPhase(%s): %v", want, err)
		}
	}
	if rs.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", rs.Status)
	}
	if len(rs.CompletedPhases) != 3 {
		t.Fatalf("expected 3 completed phases, got %v", rs.CompletedPhases)
	}
}

func TestNextPhase_ConsensusRequiredAwaitsApproval(t *testing.T) {
	m, _, gate, _ := newTestMachine()
	profile := testProfile()
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	if _, err := m.NextPhase(context.Background(), profile, rs, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.NextPhase(context.Background(), profile, rs, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusAwaitingConsensus || rs.ConsensusPhase != "build" {
		t.Fatalf("got status=%s consensusPhase=%s", rs.Status, rs.ConsensusPhase)
	}
	if len(gate.requested) != 1 || gate.requested[0] != "build" {
		t.Fatalf("expected consensus request for build, got %v", gate.requested)
	}

	// NextPhase is refused while awaiting consensus.
	if _, err := m.NextPhase(context.Background(), profile, rs, RunOptions{}); err == nil {
		t.Fatal("expected error calling NextPhase while awaiting consensus")
	}
}

func TestApproveConsensus_AdvancesPastGatedPhase(t *testing.T) {
	m, _, gate, _ := newTestMachine()
	profile := testProfile()
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	m.NextPhase(context.Background(), profile, rs, RunOptions{})
	m.NextPhase(context.Background(), profile, rs, RunOptions{})

	if err := m.ApproveConsensus(context.Background(), profile, rs); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusRunning || rs.CurrentPhase != "ship" {
		t.Fatalf("got status=%s phase=%s", rs.Status, rs.CurrentPhase)
	}
	if len(rs.ConsensusHistory) != 1 || !rs.ConsensusHistory[0].Approved {
		t.Fatalf("expected one approved decision, got %v", rs.ConsensusHistory)
	}
	if len(gate.approved) != 1 {
		t.Fatalf("expected gate.RecordApproval called once, got %v", gate.approved)
	}
}

func TestRejectConsensus_MovesToNeedsRevision(t *testing.T) {
	m, _, gate, _ := newTestMachine()
	profile := testProfile()
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	m.NextPhase(context.Background(), profile, rs, RunOptions{})
	m.NextPhase(context.Background(), profile, rs, RunOptions{})

	if err := m.RejectConsensus(context.Background(), rs, "needs another pass"); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusNeedsRevision {
		t.Fatalf("got status=%s", rs.Status)
	}
	if rs.PhaseStates["build"].Status != PhaseFailed {
		t.Fatalf("expected build marked failed, got %s", rs.PhaseStates["build"].Status)
	}
	if len(gate.rejected) != 1 {
		t.Fatalf("expected gate.RecordRejection called once, got %v", gate.rejected)
	}

	if err := m.ResumeRun(context.Background(), rs); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusRunning || rs.CurrentPhase != "build" {
		t.Fatalf("resume should leave cursor on failed phase: status=%s phase=%s", rs.Status, rs.CurrentPhase)
	}
}

func TestNextPhase_ValidationFailLeavesRunRunning(t *testing.T) {
	m, runner, _, _ := newTestMachine()
	profile := testProfile()
	runner.outcomes["plan"] = []*PhaseOutcome{
		{PhaseName: "plan", Validation: &checkpoint.Report{Status: checkpoint.Fail}},
	}
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")

	if _, err := m.NextPhase(context.Background(), profile, rs, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusRunning {
		t.Fatalf("a failed validation is not a consensus rejection; expected status=running, got %s", rs.Status)
	}
	if rs.CurrentPhase != "plan" {
		t.Fatalf("expected cursor to stay on the uncompleted phase, got %s", rs.CurrentPhase)
	}
	if rs.PhaseStates["plan"].Status != PhaseFailed {
		t.Fatalf("expected plan marked failed, got %s", rs.PhaseStates["plan"].Status)
	}
	if len(rs.CompletedPhases) != 0 {
		t.Fatalf("a failed phase must not be recorded completed, got %v", rs.CompletedPhases)
	}

	// The operator re-runs the same phase; this time it passes and the run
	// advances normally.
	runner.outcomes["plan"] = []*PhaseOutcome{passOutcome("plan")}
	if _, err := m.NextPhase(context.Background(), profile, rs, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusRunning || rs.CurrentPhase != "build" {
		t.Fatalf("expected re-execution to advance past plan, got status=%s phase=%s", rs.Status, rs.CurrentPhase)
	}
}

func TestNextPhase_PartialWithForceAdvances(t *testing.T) {
	m, runner, _, _ := newTestMachine()
	profile := testProfile()
	runner.outcomes["plan"] = []*PhaseOutcome{
		{PhaseName: "plan", Validation: &checkpoint.Report{Status: checkpoint.Partial}},
	}
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")

	if _, err := m.NextPhase(context.Background(), profile, rs, RunOptions{Force: true}); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusRunning || rs.CurrentPhase != "build" {
		t.Fatalf("expected forced partial to advance, got status=%s phase=%s", rs.Status, rs.CurrentPhase)
	}
}

func TestNextPhase_InSessionSuspendLeavesPhaseInProgress(t *testing.T) {
	m, runner, _, _ := newTestMachine()
	profile := testProfile()
	runner.outcomes["plan"] = []*PhaseOutcome{
		{PhaseName: "plan", InSession: true},
	}
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")

	if _, err := m.NextPhase(context.Background(), profile, rs, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusRunning || rs.CurrentPhase != "plan" {
		t.Fatalf("expected run to stay on plan awaiting checkpoint, got status=%s phase=%s", rs.Status, rs.CurrentPhase)
	}
	if rs.PhaseStates["plan"].Status != PhaseInProgress {
		t.Fatalf("expected plan in_progress, got %s", rs.PhaseStates["plan"].Status)
	}

	// Checkpoint resolves it without re-invoking the runner.
	runner.outcomes["plan"] = []*PhaseOutcome{passOutcome("plan")}
	if _, err := m.Checkpoint(context.Background(), profile, rs, false); err != nil {
		t.Fatal(err)
	}
	if rs.CurrentPhase != "build" {
		t.Fatalf("expected checkpoint to advance cursor, got %s", rs.CurrentPhase)
	}
}

func TestCheckpoint_ForceAdvancesOverFail(t *testing.T) {
	m, runner, _, _ := newTestMachine()
	profile := testProfile()
	runner.outcomes["plan"] = []*PhaseOutcome{
		{PhaseName: "plan", Validation: &checkpoint.Report{Status: checkpoint.Fail}},
	}
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")

	// Without force the Fail verdict holds the cursor.
	if _, err := m.Checkpoint(context.Background(), profile, rs, false); err != nil {
		t.Fatal(err)
	}
	if rs.CurrentPhase != "plan" {
		t.Fatalf("unforced Fail must not advance, got %s", rs.CurrentPhase)
	}

	runner.outcomes["plan"] = []*PhaseOutcome{
		{PhaseName: "plan", Validation: &checkpoint.Report{Status: checkpoint.Fail}},
	}
	if _, err := m.Checkpoint(context.Background(), profile, rs, true); err != nil {
		t.Fatal(err)
	}
	if rs.CurrentPhase != "build" {
		t.Fatalf("explicit --force must advance over Fail, got %s", rs.CurrentPhase)
	}
	if got := rs.CompletedPhases; len(got) != 1 || got[0] != "plan" {
		t.Fatalf("forced advance must commit the phase, got %v", got)
	}
}

func TestNextPhase_SetsOutcomeAwaitingConsensus(t *testing.T) {
	m, _, _, _ := newTestMachine()
	profile := testProfile()
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	m.NextPhase(context.Background(), profile, rs, RunOptions{})

	outcome, err := m.NextPhase(context.Background(), profile, rs, RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.AwaitingConsensus {
		t.Fatal("expected the gated phase's outcome to carry AwaitingConsensus")
	}
}

func TestAbortRun_RefusesFromTerminalStatus(t *testing.T) {
	m, _, _, _ := newTestMachine()
	profile := testProfile()
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")

	if err := m.AbortRun(context.Background(), rs); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusAborted {
		t.Fatalf("got %s", rs.Status)
	}
	if err := m.AbortRun(context.Background(), rs); err == nil {
		t.Fatal("expected error aborting an already-aborted run")
	}
}

func TestResumeRun_FromAbortedOrNeedsRevision(t *testing.T) {
	m, _, _, _ := newTestMachine()
	profile := testProfile()
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")

	if err := m.AbortRun(context.Background(), rs); err != nil {
		t.Fatal(err)
	}
	if err := m.ResumeRun(context.Background(), rs); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusRunning {
		t.Fatalf("expected resume from aborted to reach running, got %s", rs.Status)
	}

	if err := m.ResumeRun(context.Background(), rs); err == nil {
		t.Fatal("expected error resuming a run that is already running")
	}
}

func TestJumpToPhase_MarksSkippedPhasesWithoutClearingCompleted(t *testing.T) {
	m, _, _, _ := newTestMachine()
	profile := testProfile()
	profile.Phases[1].ConsensusRequired = false
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")

	if err := m.JumpToPhase(context.Background(), profile, rs, "ship"); err != nil {
		t.Fatal(err)
	}
	if rs.CurrentPhase != "ship" {
		t.Fatalf("got %s", rs.CurrentPhase)
	}
	if rs.PhaseStates["plan"].Status != PhaseSkipped || rs.PhaseStates["build"].Status != PhaseSkipped {
		t.Fatalf("expected plan and build skipped, got %s / %s", rs.PhaseStates["plan"].Status, rs.PhaseStates["build"].Status)
	}
	if len(rs.CompletedPhases) != 0 {
		t.Fatalf("jump must not fabricate completed-phase history, got %v", rs.CompletedPhases)
	}
}

func TestRollbackToPhase_UncommitsLaterPhases(t *testing.T) {
	m, _, _, store := newTestMachine()
	profile := testProfile()
	profile.Phases[1].ConsensusRequired = false
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	m.NextPhase(context.Background(), profile, rs, RunOptions{})
	m.NextPhase(context.Background(), profile, rs, RunOptions{})
	if rs.CurrentPhase != "ship" || len(rs.CompletedPhases) != 2 {
		t.Fatalf("setup failed: phase=%s completed=%v", rs.CurrentPhase, rs.CompletedPhases)
	}

	if err := m.RollbackToPhase(context.Background(), profile, rs, "plan"); err != nil {
		t.Fatal(err)
	}
	if rs.CurrentPhase != "plan" {
		t.Fatalf("got %s", rs.CurrentPhase)
	}
	if len(rs.CompletedPhases) != 0 {
		t.Fatalf("expected completed-phase history cleared from rollback point, got %v", rs.CompletedPhases)
	}
	if rs.PhaseStates["build"].Status != PhasePending {
		t.Fatalf("expected build reset to pending, got %s", rs.PhaseStates["build"].Status)
	}
	foundAdvisory := false
	for name := range store.advisories {
		if strings.HasPrefix(name, "ROLLBACK_") {
			foundAdvisory = true
		}
	}
	if !foundAdvisory {
		t.Fatalf("expected a ROLLBACK_<timestamp> advisory document, got %v", store.advisories)
	}
}

func TestReplayPhase_NeverMovesCursorOrLifecycle(t *testing.T) {
	m, runner, _, _ := newTestMachine()
	profile := testProfile()
	profile.Phases[1].ConsensusRequired = false
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	m.NextPhase(context.Background(), profile, rs, RunOptions{}) // now on build, plan completed

	// Replaying an already-completed phase that passes again must not
	// duplicate it in CompletedPhases, move the cursor, or touch Status —
	// ReplayPhase never calls into the lifecycle, win or lose.
	runner.outcomes["plan"] = []*PhaseOutcome{passOutcome("plan")}
	if _, err := m.ReplayPhase(context.Background(), profile, rs, "plan", RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if rs.CurrentPhase != "build" {
		t.Fatalf("replay must not move the cursor, got %s", rs.CurrentPhase)
	}
	if rs.Status != StatusRunning {
		t.Fatalf("replay must not touch run status, got %s", rs.Status)
	}
	if got := rs.CompletedPhases; len(got) != 1 || got[0] != "plan" {
		t.Fatalf("replaying a passing, already-completed phase must not duplicate it, got %v", got)
	}

	// A failing replay is equally inert on the lifecycle.
	runner.outcomes["plan"] = []*PhaseOutcome{
		{PhaseName: "plan", Validation: &checkpoint.Report{Status: checkpoint.Fail}},
	}
	if _, err := m.ReplayPhase(context.Background(), profile, rs, "plan", RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if rs.CurrentPhase != "build" || rs.Status != StatusRunning {
		t.Fatalf("expected cursor/status untouched by a failing replay, got status=%s phase=%s", rs.Status, rs.CurrentPhase)
	}
	if got := rs.CompletedPhases; len(got) != 1 || got[0] != "plan" {
		t.Fatalf("a failing replay must not alter completed-phase history, got %v", got)
	}
}

func TestReplayPhase_OfMiddlePhaseOfCompletedRunDoesNotReactivateIt(t *testing.T) {
	m, runner, _, _ := newTestMachine()
	profile := testProfile()
	profile.Phases[1].ConsensusRequired = false
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	for range profile.Phases {
		if _, err := m.NextPhase(context.Background(), profile, rs, RunOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if rs.Status != StatusCompleted {
		t.Fatalf("precondition: expected run completed, got %s", rs.Status)
	}

	runner.outcomes["plan"] = []*PhaseOutcome{passOutcome("plan")}
	if _, err := m.ReplayPhase(context.Background(), profile, rs, "plan", RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if rs.Status != StatusCompleted {
		t.Fatalf("replaying a phase of a completed run must not reactivate it, got %s", rs.Status)
	}
	if rs.CurrentPhase != "" {
		t.Fatalf("replay must not set a cursor on a terminal run, got %q", rs.CurrentPhase)
	}
	if got := rs.CompletedPhases; len(got) != len(profile.Phases) {
		t.Fatalf("replay must not duplicate completed-phase history, got %v", got)
	}
}

func TestRollbackToPhase_ValidFromTerminalStatus(t *testing.T) {
	m, _, _, _ := newTestMachine()
	profile := testProfile()
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	if err := m.AbortRun(context.Background(), rs); err != nil {
		t.Fatal(err)
	}

	if err := m.RollbackToPhase(context.Background(), profile, rs, "plan"); err != nil {
		t.Fatalf("rollback must be valid from any status, got error: %v", err)
	}
	if rs.Status != StatusRunning || rs.CurrentPhase != "plan" {
		t.Fatalf("got status=%s phase=%s", rs.Status, rs.CurrentPhase)
	}
}

func TestReplayPhase_ValidFromTerminalStatus(t *testing.T) {
	m, _, _, _ := newTestMachine()
	profile := testProfile()
	rs, _ := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	if err := m.AbortRun(context.Background(), rs); err != nil {
		t.Fatal(err)
	}

	if _, err := m.ReplayPhase(context.Background(), profile, rs, "plan", RunOptions{}); err != nil {
		t.Fatalf("replay must be valid from any status, got error: %v", err)
	}
}

func TestPersistenceCalledOnEveryMutation(t *testing.T) {
	m, _, _, store := newTestMachine()
	profile := testProfile()
	rs, err := m.StartRun(context.Background(), profile, RunMetadata{}, "")
	if err != nil {
		t.Fatal(err)
	}
	saved, err := store.LoadState(rs.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if saved.CurrentPhase != "plan" {
		t.Fatalf("expected persisted state to reflect start, got %s", saved.CurrentPhase)
	}
	if len(store.log) == 0 {
		t.Fatal("expected at least one log record appended on StartRun")
	}
}
