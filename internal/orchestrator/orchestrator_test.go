package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
)

func testRegistry(t *testing.T) *config.Registry {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	doc := `
workflow:
  phases:
    discovery:
      agents: [scout]
subagents:
  scout:
    executor: subprocess
    command: ["true"]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return reg
}

func TestOrchestrator_StartAndLoad(t *testing.T) {
	projectRoot := t.TempDir()
	runsRoot := t.TempDir()
	reg := testRegistry(t)
	orch := New(projectRoot, runsRoot, reg)

	rs, err := orch.Start(context.Background(), "default", runstate.RunMetadata{ProjectName: "demo"}, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if rs.Status != runstate.StatusRunning {
		t.Fatalf("expected running status, got %s", rs.Status)
	}

	loaded, err := orch.Load(rs.RunID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RunID != rs.RunID {
		t.Fatalf("expected loaded run to match started run")
	}
}

func TestOrchestrator_StartRefusedWhileRunActive(t *testing.T) {
	orch := New(t.TempDir(), t.TempDir(), testRegistry(t))

	rs, err := orch.Start(context.Background(), "default", runstate.RunMetadata{}, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := orch.Start(context.Background(), "default", runstate.RunMetadata{}, ""); !errors.Is(err, runstate.ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive while a run is active, got %v", err)
	}

	// An aborted run no longer blocks a new start.
	if err := orch.Abort(context.Background(), rs); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := orch.Start(context.Background(), "default", runstate.RunMetadata{}, ""); err != nil {
		t.Fatalf("Start after abort: %v", err)
	}
}

func TestOrchestrator_RunHygiene(t *testing.T) {
	projectRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectRoot, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runsRoot := t.TempDir()
	reg := testRegistry(t)
	orch := New(projectRoot, runsRoot, reg)

	rs, err := orch.Start(context.Background(), "default", runstate.RunMetadata{}, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	report, safety, err := orch.RunHygiene(rs.RunID)
	if err != nil {
		t.Fatalf("RunHygiene: %v", err)
	}
	if report == nil {
		t.Fatalf("expected a non-nil report")
	}
	if !safety.IsSafe {
		t.Fatalf("expected a clean tiny repo to be apply-safe, got reasons: %v", safety.Reasons)
	}

	summaryPath := filepath.Join(runsRoot, rs.RunID, "reports", "hygiene_summary.json")
	if _, err := os.Stat(summaryPath); err != nil {
		t.Fatalf("expected hygiene_summary.json to be written: %v", err)
	}
}
