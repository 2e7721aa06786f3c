// Package persistence implements the Persistence & Recovery layer: the
// durable state document, the append-only run log, and the metrics
// document described in the external interfaces' persisted layout. It
// implements runstate.Store, so the Run State Machine depends only on the
// interface — never on this package's on-disk layout directly.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/atomicfile"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
)

// ErrNoSuchRun is returned by LoadState when no state document exists yet
// for the given run — the orchestrator is Idle with respect to that run.
var ErrNoSuchRun = errors.New("persistence: no such run")

// Store roots every run's durable artifacts under Root/<runID>/..., mirroring
// the external interfaces' "persisted layout" (state/run.json,
// log/run-<id>.ndjson, metrics/run-<id>.json, plus consensus/ and reports/
// directories this package exposes paths for but does not itself write to).
type Store struct {
	Root string
}

// NewStore builds a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.Root, runID)
}

func (s *Store) statePath(runID string) string {
	return filepath.Join(s.runDir(runID), "state", "run.json")
}

func (s *Store) logPath(runID string) string {
	return filepath.Join(s.runDir(runID), "log", fmt.Sprintf("run-%s.ndjson", runID))
}

func (s *Store) metricsPath(runID string) string {
	return filepath.Join(s.runDir(runID), "metrics", fmt.Sprintf("run-%s.json", runID))
}

// ConsensusDir is where internal/consensus should root its REQUEST.md and
// decision history for this run.
func (s *Store) ConsensusDir(runID string) string {
	return filepath.Join(s.runDir(runID), "consensus")
}

// ArtifactsDir is where internal/executor should root per-phase agent
// output for this run.
func (s *Store) ArtifactsDir(runID string) string {
	return filepath.Join(s.runDir(runID), "artifacts")
}

// ReportsDir is where internal/checkpoint and internal/hygiene should
// write their reports for this run.
func (s *Store) ReportsDir(runID string) string {
	return filepath.Join(s.runDir(runID), "reports")
}

// MetricsPath is where internal/metrics should read/write runID's metrics
// document.
func (s *Store) MetricsPath(runID string) string {
	return s.metricsPath(runID)
}

// SaveState writes rs's state document atomically (write-temp-then-rename).
// Called before every state-mutating operation returns success to its
// caller, so the in-memory state is never ahead of the durable one.
func (s *Store) SaveState(rs *runstate.RunState) error {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshaling state: %w", err)
	}
	if err := atomicfile.Write(s.statePath(rs.RunID), data, 0o644); err != nil {
		return fmt.Errorf("persistence: writing state: %w", err)
	}
	return nil
}

// LoadState reads runID's state document. This alone is the recovery
// contract: a freshly restarted orchestrator process that loads the state
// document can resume correctly at currentPhase with the correct status
// without consulting the run log. Returns ErrNoSuchRun if no state
// document has ever been written for runID.
func (s *Store) LoadState(runID string) (*runstate.RunState, error) {
	data, err := os.ReadFile(s.statePath(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSuchRun
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: reading state: %w", err)
	}
	var rs runstate.RunState
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("persistence: unmarshaling state: %w", err)
	}
	return &rs, nil
}

// ListRuns loads the state document of every run persisted under Root, in
// directory order. Run directories without a readable state document are
// skipped — a run that never completed its first SaveState has no state to
// list.
func (s *Store) ListRuns() ([]*runstate.RunState, error) {
	entries, err := os.ReadDir(s.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: reading runs root: %w", err)
	}
	var runs []*runstate.RunState
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rs, err := s.LoadState(e.Name())
		if errors.Is(err, ErrNoSuchRun) {
			continue
		}
		if err != nil {
			return nil, err
		}
		runs = append(runs, rs)
	}
	return runs, nil
}

// AppendLog appends one record to runID's run log. The log is the
// authoritative audit trail but, per the recovery contract, is never
// required to resume a run — only for diagnostics and metrics replay.
func (s *Store) AppendLog(record runstate.LogRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("persistence: marshaling log record: %w", err)
	}
	if err := atomicfile.AppendRecord(s.logPath(record.RunID), data); err != nil {
		return fmt.Errorf("persistence: appending log: %w", err)
	}
	return nil
}

// TailLog reads runID's full run log and returns the last n records (all
// of them if n <= 0), serving the `log(lines?)` command surface.
func (s *Store) TailLog(runID string, n int) ([]runstate.LogRecord, error) {
	records, err := readLog(s.logPath(runID))
	if err != nil {
		return nil, err
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// WriteAdvisory writes a free-form advisory document (currently only the
// rollback operation's ROLLBACK_<timestamp> record) under the run's
// directory and returns the path written.
func (s *Store) WriteAdvisory(runID, name, content string) (string, error) {
	path := filepath.Join(s.runDir(runID), "advisories", name+".md")
	if err := atomicfile.Write(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("persistence: writing advisory: %w", err)
	}
	return path, nil
}
