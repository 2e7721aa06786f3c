// Package orchestrator wires the run state machine, phase executor,
// checkpoint validator, consensus gate, persistence layer, metrics
// recorder, and hygiene scanner together behind one facade, exposing one
// method per command. It is the one package that knows about every
// concrete collaborator; everything it depends on (internal/runstate,
// internal/executor, internal/consensus, internal/persistence,
// internal/metrics, internal/hygiene, internal/config) stays decoupled
// from the others.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/consensus"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/executor"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/hygiene"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/metrics"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/persistence"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
)

// Orchestrator is the top-level facade a CLI command handler drives: it
// resolves a run's profile and collaborators on demand, so a single value
// can serve any number of runs rooted under the same project.
type Orchestrator struct {
	ProjectRoot string
	Registry    *config.Registry
	Store       *persistence.Store
	Live        *metrics.Live

	// HygieneConfigPath, if set, is loaded by Hygiene(); otherwise
	// hygiene.DefaultConfig() is used.
	HygieneConfigPath string
}

// New builds an Orchestrator rooted at projectRoot, with runs persisted
// under runsRoot (typically projectRoot/.orc/runs), using reg for profile
// lookups.
func New(projectRoot, runsRoot string, reg *config.Registry) *Orchestrator {
	return &Orchestrator{
		ProjectRoot: projectRoot,
		Registry:    reg,
		Store:       persistence.NewStore(runsRoot),
		Live:        metrics.NewLive(),
	}
}

// machineFor builds a Machine wired with the production Executor and
// Consensus Gate for a single run, rooting their artifacts/reports/
// consensus directories under that run's persisted layout.
func (o *Orchestrator) machineFor(runID string) *runstate.Machine {
	ex := executor.NewExecutor(o.ProjectRoot, o.Store.ArtifactsDir(runID), o.Store.ReportsDir(runID))
	gate := consensus.NewGate(o.Store.ConsensusDir(runID))
	return runstate.NewMachine(ex, gate, o.Store)
}

func (o *Orchestrator) metricsRecorder(runID string) (*metrics.Recorder, error) {
	return metrics.Load(runID, o.Store.MetricsPath(runID))
}

func (o *Orchestrator) profile(name string) (*config.Profile, error) {
	p, ok := o.Registry.Profile(name)
	if !ok {
		return nil, fmt.Errorf("orchestrator: unknown profile %q", name)
	}
	return p, nil
}

// Load reads a run's current state document.
func (o *Orchestrator) Load(runID string) (*runstate.RunState, error) {
	return o.Store.LoadState(runID)
}

// Start begins a new run of profileName, optionally seeded at fromPhase.
// A new run is refused while any persisted run is still active (running,
// awaiting consensus, or in needs_revision) — the orchestrator owns one
// run at a time; completed and aborted runs never block a new start.
// StartRun only touches the Store collaborator, so which run ID the
// Machine's Executor/Gate happen to be rooted at does not matter here —
// the run ID does not exist yet until StartRun mints it.
func (o *Orchestrator) Start(ctx context.Context, profileName string, meta runstate.RunMetadata, fromPhase string) (*runstate.RunState, error) {
	profile, err := o.profile(profileName)
	if err != nil {
		return nil, err
	}
	existing, err := o.Store.ListRuns()
	if err != nil {
		return nil, err
	}
	for _, rs := range existing {
		switch rs.Status {
		case runstate.StatusRunning, runstate.StatusAwaitingConsensus, runstate.StatusNeedsRevision:
			return nil, fmt.Errorf("orchestrator: run %s is %s: %w", rs.RunID, rs.Status, runstate.ErrAlreadyActive)
		}
	}
	return o.machineFor("").StartRun(ctx, profile, meta, fromPhase)
}

// Next dispatches the run's current phase.
func (o *Orchestrator) Next(ctx context.Context, rs *runstate.RunState, opts runstate.RunOptions) (*runstate.PhaseOutcome, error) {
	profile, err := o.profile(rs.Profile)
	if err != nil {
		return nil, err
	}
	if rs.Status != runstate.StatusRunning || rs.CurrentPhase == "" {
		// Let the machine produce its typed rejection without recording a
		// phantom phase attempt in the metrics document.
		return o.machineFor(rs.RunID).NextPhase(ctx, profile, rs, opts)
	}
	rec, err := o.metricsRecorder(rs.RunID)
	if err != nil {
		return nil, err
	}
	// NextPhase advances rs.CurrentPhase on success, so pin the dispatched
	// phase's name before the call for the finish-side bookkeeping.
	phaseName := rs.CurrentPhase
	rec.StartPhase(phaseName)
	started := time.Now()
	outcome, err := o.machineFor(rs.RunID).NextPhase(ctx, profile, rs, opts)
	rec.FinishPhase(phaseName)
	o.Live.ObservePhaseDuration(phaseName, time.Since(started).Seconds())
	if outcome != nil {
		o.recordOutcome(rec, outcome)
	}
	if saveErr := rec.Save(); saveErr != nil && err == nil {
		err = saveErr
	}
	return outcome, err
}

// Checkpoint re-validates the run's current phase without dispatching any
// agent.
func (o *Orchestrator) Checkpoint(ctx context.Context, rs *runstate.RunState, force bool) (*runstate.PhaseOutcome, error) {
	profile, err := o.profile(rs.Profile)
	if err != nil {
		return nil, err
	}
	return o.machineFor(rs.RunID).Checkpoint(ctx, profile, rs, force)
}

// Approve records a consensus approval for the run's currently gated
// phase.
func (o *Orchestrator) Approve(ctx context.Context, rs *runstate.RunState) error {
	profile, err := o.profile(rs.Profile)
	if err != nil {
		return err
	}
	return o.machineFor(rs.RunID).ApproveConsensus(ctx, profile, rs)
}

// Reject records a consensus rejection with reason.
func (o *Orchestrator) Reject(ctx context.Context, rs *runstate.RunState, reason string) error {
	return o.machineFor(rs.RunID).RejectConsensus(ctx, rs, reason)
}

// Abort aborts the run.
func (o *Orchestrator) Abort(ctx context.Context, rs *runstate.RunState) error {
	return o.machineFor(rs.RunID).AbortRun(ctx, rs)
}

// Resume resumes a needs_revision or aborted run.
func (o *Orchestrator) Resume(ctx context.Context, rs *runstate.RunState) error {
	return o.machineFor(rs.RunID).ResumeRun(ctx, rs)
}

// Jump moves the run's cursor directly to target.
func (o *Orchestrator) Jump(ctx context.Context, rs *runstate.RunState, target string) error {
	profile, err := o.profile(rs.Profile)
	if err != nil {
		return err
	}
	return o.machineFor(rs.RunID).JumpToPhase(ctx, profile, rs, target)
}

// Rollback moves the run's cursor back to target, un-committing later
// phases and writing a rollback advisory document.
func (o *Orchestrator) Rollback(ctx context.Context, rs *runstate.RunState, target string) error {
	profile, err := o.profile(rs.Profile)
	if err != nil {
		return err
	}
	return o.machineFor(rs.RunID).RollbackToPhase(ctx, profile, rs, target)
}

// Replay re-dispatches a named phase out of cursor order.
func (o *Orchestrator) Replay(ctx context.Context, rs *runstate.RunState, name string, opts runstate.RunOptions) (*runstate.PhaseOutcome, error) {
	profile, err := o.profile(rs.Profile)
	if err != nil {
		return nil, err
	}
	rec, err := o.metricsRecorder(rs.RunID)
	if err != nil {
		return nil, err
	}
	rec.StartPhase(name)
	started := time.Now()
	outcome, err := o.machineFor(rs.RunID).ReplayPhase(ctx, profile, rs, name, opts)
	rec.FinishPhase(name)
	o.Live.ObservePhaseDuration(name, time.Since(started).Seconds())
	if outcome != nil {
		o.recordOutcome(rec, outcome)
	}
	if saveErr := rec.Save(); saveErr != nil && err == nil {
		err = saveErr
	}
	return outcome, err
}

// Log returns the last n records of the run's append-only log (all of
// them if n <= 0).
func (o *Orchestrator) Log(runID string, n int) ([]runstate.LogRecord, error) {
	return o.Store.TailLog(runID, n)
}

// Metrics returns the run's current metrics document.
func (o *Orchestrator) Metrics(runID string) (metrics.Document, error) {
	rec, err := o.metricsRecorder(runID)
	if err != nil {
		return metrics.Document{}, err
	}
	return rec.Document(), nil
}

func (o *Orchestrator) recordOutcome(rec *metrics.Recorder, outcome *runstate.PhaseOutcome) {
	for _, a := range outcome.AgentOutcomes {
		rec.RecordAgentOutcome(outcome.PhaseName, a)
		o.Live.ObserveAgentOutcome(outcome.PhaseName, a.AgentName, a.RetryCount, a.ExitCode)
	}
}

// RunHygiene runs the hygiene scanner over the project root, persists its
// report/PR_PLAN.md under the run's reports directory, and records a
// snapshot into that run's metrics document.
func (o *Orchestrator) RunHygiene(runID string) (*hygiene.Report, hygiene.ApplySafety, error) {
	cfg := hygiene.DefaultConfig()
	if o.HygieneConfigPath != "" {
		loaded, err := hygiene.LoadConfig(o.HygieneConfigPath)
		if err != nil {
			return nil, hygiene.ApplySafety{}, err
		}
		cfg = loaded
	}

	scanner := hygiene.NewScanner(o.ProjectRoot, cfg)
	report, err := scanner.Scan()
	if err != nil {
		return nil, hygiene.ApplySafety{}, err
	}
	safety := hygiene.CheckApplySafety(report, cfg.Safety)

	dir := o.Store.ReportsDir(runID)
	if err := hygiene.Save(dir, report, safety); err != nil {
		return nil, hygiene.ApplySafety{}, err
	}

	rec, err := o.metricsRecorder(runID)
	if err == nil {
		rec.RecordHygieneSnapshot(report.Score, filepath.Join(dir, "hygiene_summary.json"))
		_ = rec.Save()
	}
	o.Live.SetHygieneScore(report.Score.Score)

	return report, safety, nil
}

// ApplyHygiene performs the hygiene subsystem's one destructive action
// (notebook output clearing) if the last computed safety check allows it.
func (o *Orchestrator) ApplyHygiene(report *hygiene.Report, safety hygiene.ApplySafety) ([]string, error) {
	cfg := hygiene.DefaultConfig()
	if o.HygieneConfigPath != "" {
		if loaded, err := hygiene.LoadConfig(o.HygieneConfigPath); err == nil {
			cfg = loaded
		}
	}
	scanner := hygiene.NewScanner(o.ProjectRoot, cfg)
	return scanner.Apply(report, safety)
}
