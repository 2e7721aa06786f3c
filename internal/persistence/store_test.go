package persistence

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
)

func sampleState() *runstate.RunState {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &runstate.RunState{
		RunID:           "run-abc",
		Profile:         "default",
		Status:          runstate.StatusRunning,
		CurrentPhase:    "build",
		CompletedPhases: []string{"plan"},
		PhaseStates: map[string]*runstate.PhaseState{
			"plan": {Status: runstate.PhaseCompleted},
		},
		Metadata:         runstate.RunMetadata{ProjectName: "demo"},
		AwaitingConsensus: false,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	want := sampleState()

	if err := store.SaveState(want); err != nil {
		t.Fatal(err)
	}
	got, err := store.LoadState(want.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round-trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestStore_LoadState_NoSuchRun(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.LoadState("nonexistent"); !errors.Is(err, ErrNoSuchRun) {
		t.Fatalf("err = %v, want ErrNoSuchRun", err)
	}
}

func TestStore_SaveState_OverwritesAtomically(t *testing.T) {
	store := NewStore(t.TempDir())
	rs := sampleState()
	if err := store.SaveState(rs); err != nil {
		t.Fatal(err)
	}
	rs.Status = runstate.StatusCompleted
	rs.CurrentPhase = ""
	if err := store.SaveState(rs); err != nil {
		t.Fatal(err)
	}
	got, err := store.LoadState(rs.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != runstate.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	// No .tmp file should remain after a successful rename.
	if _, err := os.Stat(store.statePath(rs.RunID) + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected .tmp cleaned up by rename, stat err = %v", err)
	}
}

// TestStore_TruncatedStateNeverPartiallyParses is a crash simulation:
// truncating the state document to any prefix of its bytes must either
// yield a parseable *prior* version or a read failure, never a partially
// updated object. Because
// SaveState always writes a complete file and renames it into place, the
// only bytes ever observable at the final path are either a complete write
// or (after truncation, simulating a torn read) invalid JSON that fails to
// unmarshal.
func TestStore_TruncatedStateNeverPartiallyParses(t *testing.T) {
	store := NewStore(t.TempDir())
	rs := sampleState()
	if err := store.SaveState(rs); err != nil {
		t.Fatal(err)
	}

	path := store.statePath(rs.RunID)
	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	for n := 0; n < len(full); n++ {
		if err := os.WriteFile(path, full[:n], 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := store.LoadState(rs.RunID)
		if err == nil && !reflect.DeepEqual(got, rs) {
			t.Fatalf("prefix len %d parsed into a different, non-prior state: %+v", n, got)
		}
	}

	// Restore the full document; loading it back must succeed cleanly.
	if err := os.WriteFile(path, full, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadState(rs.RunID); err != nil {
		t.Fatalf("restoring full document should load cleanly, got %v", err)
	}
}

func TestStore_AppendLogAndTail(t *testing.T) {
	store := NewStore(t.TempDir())
	runID := "run-log"
	for i, tag := range []runstate.LogTag{runstate.LogPhaseStart, runstate.LogPhaseEnd, runstate.LogAbort} {
		rec := runstate.LogRecord{
			Timestamp: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
			RunID:     runID,
			Tag:       tag,
			Message:   string(tag),
		}
		if err := store.AppendLog(rec); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.TailLog(runID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}

	last2, err := store.TailLog(runID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last2) != 2 || last2[0].Tag != runstate.LogPhaseEnd || last2[1].Tag != runstate.LogAbort {
		t.Fatalf("last2 = %+v", last2)
	}
}

func TestStore_TailLog_NoSuchLogYieldsEmpty(t *testing.T) {
	store := NewStore(t.TempDir())
	records, err := store.TailLog("never-ran", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %v, want empty", records)
	}
}

func TestStore_ListRuns(t *testing.T) {
	store := NewStore(t.TempDir())
	if runs, err := store.ListRuns(); err != nil || len(runs) != 0 {
		t.Fatalf("expected empty listing for a fresh root, got %v / %v", runs, err)
	}

	a := sampleState()
	b := sampleState()
	b.RunID = "run-def"
	b.Status = runstate.StatusCompleted
	for _, rs := range []*runstate.RunState{a, b} {
		if err := store.SaveState(rs); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.ListRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	byID := map[string]*runstate.RunState{}
	for _, rs := range runs {
		byID[rs.RunID] = rs
	}
	if byID["run-abc"] == nil || byID["run-def"] == nil {
		t.Fatalf("expected both runs listed, got %v", byID)
	}
	if byID["run-def"].Status != runstate.StatusCompleted {
		t.Fatalf("expected listed state to carry its persisted status, got %s", byID["run-def"].Status)
	}
}

func TestStore_WriteAdvisory(t *testing.T) {
	store := NewStore(t.TempDir())
	path, err := store.WriteAdvisory("run-abc", "ROLLBACK_20260102", "rolled back to plan")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "rolled back to plan" {
		t.Fatalf("advisory content = %q", data)
	}
}
