package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/atomicfile"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/hygiene"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
)

// Recorder accumulates a run's metrics document in memory and persists it
// on demand. Safe for concurrent use since the Phase Executor may dispatch
// several agents within a phase in parallel.
type Recorder struct {
	mu   sync.Mutex
	doc  *Document
	now  func() time.Time
	path string
}

// NewRecorder builds a Recorder for runID, persisting to path.
func NewRecorder(runID, path string) *Recorder {
	return &Recorder{doc: NewDocument(runID), now: time.Now, path: path}
}

// Load reads an existing metrics document from path, or starts a fresh one
// for runID if none exists yet.
func Load(runID, path string) (*Recorder, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewRecorder(runID, path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("metrics: reading %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("metrics: parsing %s: %w", path, err)
	}
	if doc.Phases == nil {
		doc.Phases = make(map[string]*PhaseMetrics)
	}
	if doc.Agents == nil {
		doc.Agents = make(map[string]*AgentMetrics)
	}
	if doc.TokenUsage == nil {
		doc.TokenUsage = make(map[string]int64)
	}
	return &Recorder{doc: &doc, now: time.Now, path: path}, nil
}

// StartPhase marks a phase attempt as started, incrementing its attempt
// count (retried phases accumulate attempts rather than resetting).
func (r *Recorder) StartPhase(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pm, ok := r.doc.Phases[phase]
	if !ok {
		pm = &PhaseMetrics{Phase: phase}
		r.doc.Phases[phase] = pm
	}
	pm.AttemptCount++
	pm.StartedAt = r.now()
}

// FinishPhase records a phase attempt's completion and accumulates its
// elapsed duration.
func (r *Recorder) FinishPhase(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pm, ok := r.doc.Phases[phase]
	if !ok {
		return
	}
	finished := r.now()
	pm.FinishedAt = finished
	if !pm.StartedAt.IsZero() {
		pm.Duration += finished.Sub(pm.StartedAt)
	}
}

// RecordAgentOutcome folds one agent attempt's exit code into the running
// retry count and last-exit-code for that phase/agent pair.
func (r *Recorder) RecordAgentOutcome(phase string, outcome runstate.AgentOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := agentKey(phase, outcome.AgentName)
	am, ok := r.doc.Agents[key]
	if !ok {
		am = &AgentMetrics{Phase: phase, AgentName: outcome.AgentName}
		r.doc.Agents[key] = am
	}
	am.RetryCount += outcome.RetryCount
	am.LastExit = outcome.ExitCode
}

// RecordTokenUsage adds delta to the named token-usage counter. The key
// space is opaque to this package — agents may report whatever buckets
// their own accounting uses (e.g. "claude-opus/input", "claude-opus/output").
func (r *Recorder) RecordTokenUsage(key string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc.TokenUsage[key] += delta
}

// RecordHygieneSnapshot stores a reference to a just-computed cleanliness
// score for inclusion in the run's metrics document.
func (r *Recorder) RecordHygieneSnapshot(score hygiene.ScoreResult, reportPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc.Hygiene = &HygieneSnapshot{
		Score:      score.Score,
		Grade:      score.Grade,
		RecordedAt: r.now(),
		ReportPath: reportPath,
	}
}

// Document returns a snapshot copy of the current metrics document.
func (r *Recorder) Document() Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.doc
}

// Save persists the current document to the recorder's configured path.
func (r *Recorder) Save() error {
	r.mu.Lock()
	r.doc.UpdatedAt = r.now()
	data, err := json.MarshalIndent(r.doc, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("metrics: marshaling document: %w", err)
	}
	if err := atomicfile.Write(r.path, data, 0o644); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", r.path, err)
	}
	return nil
}
