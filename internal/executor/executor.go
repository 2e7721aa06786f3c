package executor

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/checkpoint"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
)

// Executor is the production runstate.PhaseRunner: it dispatches every
// agent declared for a phase — sequentially or, when the phase (or a CLI
// override) asks for it, across a bounded worker pool — then validates
// the artifacts produced against the phase's checkpoint patterns.
type Executor struct {
	ProjectRoot  string
	ArtifactsDir string
	ReportsDir   string
	Variants     map[config.ExecutorKind]Variant

	Clock func() time.Time
	Rand  *rand.Rand
	// BaseEnv returns the child-process environment to extend per
	// invocation; defaults to a filtered os.Environ() (inherit, then strip
	// CLAUDECODE so agent subprocesses don't mistake themselves for the
	// parent CLI).
	BaseEnv func() []string
}

// NewExecutor builds a production Executor rooted at projectRoot, writing
// per-phase agent logs under artifactsDir and checkpoint reports under
// reportsDir.
func NewExecutor(projectRoot, artifactsDir, reportsDir string) *Executor {
	return &Executor{
		ProjectRoot:  projectRoot,
		ArtifactsDir: artifactsDir,
		ReportsDir:   reportsDir,
		Variants:     DefaultVariants(),
		Clock:        time.Now,
		Rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
		BaseEnv:      filteredEnviron,
	}
}

func filteredEnviron() []string {
	var out []string
	for _, e := range os.Environ() {
		key := strings.SplitN(e, "=", 2)[0]
		if strings.HasPrefix(key, "CLAUDECODE") {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (e *Executor) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// RunPhase dispatches every agent declared for phase and validates
// resulting artifacts against its checkpoint patterns.
func (e *Executor) RunPhase(ctx context.Context, rs *runstate.RunState, phase config.PhaseSpec, agents map[string]config.AgentSpec, opts runstate.RunOptions) (*runstate.PhaseOutcome, error) {
	outcomes, inSession := e.dispatchPhase(ctx, rs, phase, agents, opts)
	result := &runstate.PhaseOutcome{
		PhaseName:     phase.Name,
		AgentOutcomes: outcomes,
		InSession:     inSession,
	}
	if inSession {
		return result, nil
	}

	report, err := e.validate(phase, agents)
	if err != nil {
		return nil, err
	}
	result.Validation = report
	result.Success = report.Status == checkpoint.Pass && allSucceeded(outcomes)
	return result, nil
}

// Checkpoint re-validates phase's artifacts without invoking any agent —
// the path the `checkpoint` command takes after an in-session suspension.
func (e *Executor) Checkpoint(ctx context.Context, rs *runstate.RunState, phase config.PhaseSpec, agents map[string]config.AgentSpec) (*runstate.PhaseOutcome, error) {
	report, err := e.validate(phase, agents)
	if err != nil {
		return nil, err
	}
	prior := rs.PhaseStates[phase.Name]
	var priorOutcomes []runstate.AgentOutcome
	if prior != nil {
		priorOutcomes = prior.AgentOutcomes
	}
	return &runstate.PhaseOutcome{
		PhaseName:     phase.Name,
		AgentOutcomes: priorOutcomes,
		Validation:    report,
		Success:       report.Status == checkpoint.Pass,
	}, nil
}

func (e *Executor) validate(phase config.PhaseSpec, agents map[string]config.AgentSpec) (*checkpoint.Report, error) {
	required := collectArtifactPatterns(phase, agents)
	report, err := checkpoint.Validate(e.ProjectRoot, required)
	if err != nil {
		return nil, &runstate.CoreError{Kind: runstate.ErrValidation, Message: fmt.Sprintf("phase %q checkpoint validation", phase.Name), Cause: err}
	}
	if err := report.Save(e.ReportsDir, phase.Name); err != nil {
		return nil, &runstate.CoreError{Kind: runstate.ErrPersistence, Message: "saving checkpoint report", Cause: err}
	}
	return report, nil
}

// collectArtifactPatterns is the union of every dispatched agent's
// declared checkpointArtifacts, deduplicated and sorted for a
// deterministic Required list on the Report. A phase whose agents
// declare no patterns has nothing to validate — a vacuous Pass.
func collectArtifactPatterns(phase config.PhaseSpec, agents map[string]config.AgentSpec) []string {
	seen := make(map[string]bool)
	var patterns []string
	for _, name := range phase.Agents {
		for _, p := range agents[name].CheckpointArtifacts {
			if !seen[p] {
				seen[p] = true
				patterns = append(patterns, p)
			}
		}
	}
	sort.Strings(patterns)
	return patterns
}

func allSucceeded(outcomes []runstate.AgentOutcome) bool {
	for _, o := range outcomes {
		if !o.Success {
			return false
		}
	}
	return true
}

func (e *Executor) dispatchPhase(ctx context.Context, rs *runstate.RunState, phase config.PhaseSpec, agents map[string]config.AgentSpec, opts runstate.RunOptions) ([]runstate.AgentOutcome, bool) {
	parallel := phase.Parallel
	if opts.ForceParallel != nil {
		parallel = *opts.ForceParallel
	}

	if !parallel {
		var outcomes []runstate.AgentOutcome
		var anySuspended bool
		for _, name := range phase.Agents {
			outcome := e.dispatchAgent(ctx, rs, phase, agents[name], opts)
			outcomes = append(outcomes, outcome)
			if outcome.ExitCode == runstate.InSessionSuspendExitCode {
				anySuspended = true
			}
		}
		return outcomes, anySuspended
	}

	workerCap := opts.MaxWorkers
	if workerCap <= 0 {
		workerCap = len(phase.Agents)
	}
	sem := make(chan struct{}, workerCap)
	results := make([]runstate.AgentOutcome, len(phase.Agents))
	var wg sync.WaitGroup
	for i, name := range phase.Agents {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.dispatchAgent(ctx, rs, phase, agents[name], opts)
		}(i, name)
	}
	wg.Wait()

	var anySuspended bool
	for _, o := range results {
		if o.ExitCode == runstate.InSessionSuspendExitCode {
			anySuspended = true
		}
	}
	return results, anySuspended
}

// dispatchAgent runs one agent through its full retry policy. A timeout or
// non-suspend non-zero exit is a transient failure subject to retry; exit
// code 2 (in-session suspension) is never retried.
func (e *Executor) dispatchAgent(ctx context.Context, rs *runstate.RunState, phase config.PhaseSpec, agent config.AgentSpec, opts runstate.RunOptions) runstate.AgentOutcome {
	variant := e.Variants[agent.Executor]
	policy := config.EffectiveRetry(agent, phase)
	timeout := time.Duration(config.EffectiveTimeoutSeconds(agent, phase)) * time.Second
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var outcome runstate.AgentOutcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(policy, attempt, e.Rand)
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return finalOutcome(agent.Name, attempt-1, e.now(), e.now(), 0, false, "cancelled during backoff")
				}
			}
		}

		logFile := e.agentLogWriter(phase, agent)
		var logWriter io.Writer
		if logFile != nil {
			logWriter = logFile
		}
		started := e.now()
		exitCode, output, err := variant.Invoke(ctx, Invocation{
			AgentName: agent.Name,
			Command:   agent.Command,
			Dir:       e.ProjectRoot,
			Env:       e.BaseEnv(),
			Timeout:   timeout,
			LogWriter: logWriter,
		})
		finished := e.now()
		if logFile != nil {
			logFile.Close()
		}

		if exitCode == runstate.InSessionSuspendExitCode {
			e.writeInSessionInstructions(rs, phase, agent, output)
			return runstate.AgentOutcome{
				AgentName: agent.Name, Success: false, ExitCode: exitCode,
				StartedAt: started, FinishedAt: finished, RetryCount: attempt - 1,
				Notes: "in-session suspension",
			}
		}
		if err == nil && exitCode == 0 {
			return runstate.AgentOutcome{
				AgentName: agent.Name, Success: true, ExitCode: 0,
				StartedAt: started, FinishedAt: finished, RetryCount: attempt - 1,
			}
		}

		notes := truncateOutput(output)
		if err != nil {
			notes = err.Error()
		}
		outcome = runstate.AgentOutcome{
			AgentName: agent.Name, Success: false, ExitCode: exitCode,
			StartedAt: started, FinishedAt: finished, RetryCount: attempt - 1,
			Notes: notes,
		}
		if ctx.Err() != nil {
			break
		}
	}
	return outcome
}

func finalOutcome(name string, retries int, started, finished time.Time, code int, success bool, notes string) runstate.AgentOutcome {
	return runstate.AgentOutcome{
		AgentName: name, Success: success, ExitCode: code,
		StartedAt: started, FinishedAt: finished, RetryCount: retries, Notes: notes,
	}
}

func truncateOutput(s string) string {
	const maxNotesLen = 2000
	if len(s) <= maxNotesLen {
		return s
	}
	return s[:maxNotesLen] + "... (truncated)"
}

// writeInSessionInstructions records a suspended agent's instructions at a
// well-known path under the phase's artifact directory, so the operator
// knows what external work resolves the suspension before running
// `checkpoint`.
func (e *Executor) writeInSessionInstructions(rs *runstate.RunState, phase config.PhaseSpec, agent config.AgentSpec, output string) {
	if e.ArtifactsDir == "" {
		return
	}
	dir := filepath.Join(e.ArtifactsDir, phase.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# In-session work: %s\n\n", agent.Name)
	fmt.Fprintf(&b, "Agent %q suspended phase %q for external work.\n", agent.Name, phase.Name)
	fmt.Fprintf(&b, "Complete the work described below, then run:\n\n")
	fmt.Fprintf(&b, "    orc checkpoint %s\n\n", rs.RunID)
	if output != "" {
		fmt.Fprintf(&b, "## Instructions\n\n%s\n", output)
	}
	_ = os.WriteFile(filepath.Join(dir, agent.Name+".IN_SESSION.md"), []byte(b.String()), 0o644)
}

func (e *Executor) agentLogWriter(phase config.PhaseSpec, agent config.AgentSpec) *os.File {
	if e.ArtifactsDir == "" {
		return nil
	}
	dir := filepath.Join(e.ArtifactsDir, phase.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, agent.Name+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	return f
}
