// Package scaffold writes a new project's initial .orc/ directory: a
// minimal default profile document and a .gitignore for the runs
// directory. It intentionally does not call any LLM to draft a
// project-tailored config — agent implementations (LLM prompting,
// subprocess bodies) are someone else's concern, not the orchestration
// core's — so Init always writes the same deterministic template rather
// than trying to infer one from repository context.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/ux"
)

const defaultWorkflow = `workflow:
  phases:
    plan:
      required: true
      parallel: false
      consensusRequired: true
      agents: [planner]
      timeoutSeconds: 600
    build:
      required: true
      parallel: false
      agents: [implementer]
      timeoutSeconds: 1800
    review:
      required: true
      parallel: false
      agents: [reviewer]
      timeoutSeconds: 600

subagents:
  planner:
    executor: subprocess
    command: [".orc/agents/plan.sh"]
    checkpointArtifacts: ["docs/PLAN.md"]
    retry: { maxAttempts: 2, backoffBaseMs: 500, backoffJitterMs: 200 }
  implementer:
    executor: subprocess
    command: [".orc/agents/build.sh"]
    checkpointArtifacts: ["re:^src/.+"]
    retry: { maxAttempts: 3, backoffBaseMs: 1000, backoffJitterMs: 500 }
  reviewer:
    executor: in-session
    checkpointArtifacts: ["docs/REVIEW.md"]
`

// Init creates a new .orc/ directory with a default workflow.yaml, a runs/
// directory for persisted run state, and a .gitignore excluding it.
// Fails if .orc already exists — Init never overwrites operator edits.
func Init(targetDir string) error {
	orcDir := filepath.Join(targetDir, ".orc")
	if _, err := os.Stat(orcDir); err == nil {
		return fmt.Errorf("scaffold: .orc directory already exists in %s", targetDir)
	}

	configPath := filepath.Join(orcDir, "workflow.yaml")
	if err := os.MkdirAll(orcDir, 0o755); err != nil {
		return fmt.Errorf("scaffold: creating .orc: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultWorkflow), 0o644); err != nil {
		return fmt.Errorf("scaffold: writing workflow.yaml: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(orcDir, "runs"), 0o755); err != nil {
		return fmt.Errorf("scaffold: creating runs dir: %w", err)
	}
	gitignorePath := filepath.Join(orcDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("runs/\n"), 0o644); err != nil {
		return fmt.Errorf("scaffold: writing .gitignore: %w", err)
	}

	printSuccess([]string{
		".orc/workflow.yaml",
		".orc/runs/",
		".orc/.gitignore",
	})

	reg, err := config.Load(configPath)
	if err == nil {
		if profile, ok := reg.Profile("default"); ok {
			fmt.Printf("\n  Workflow: %s%s%s\n", ux.Bold, renderWorkflowSummary(profile), ux.Reset)
		}
	}

	fmt.Printf("\n  %sCustomize .orc/workflow.yaml for your project.%s\n", ux.Dim, ux.Reset)
	fmt.Printf("\n  Next: %sorc start default%s\n\n", ux.Cyan, ux.Reset)
	return nil
}

func printSuccess(written []string) {
	fmt.Printf("\n%s%s  ✓ Initialized .orc/ directory%s\n\n", ux.Bold, ux.Green, ux.Reset)
	fmt.Printf("  Created:\n")
	for _, path := range written {
		fmt.Printf("    %s%s%s\n", ux.Cyan, path, ux.Reset)
	}
}

// renderWorkflowSummary builds a human-readable "a -> b -> c" line for a
// profile's declared phase order, marking parallel phases with ∥.
func renderWorkflowSummary(profile *config.Profile) string {
	var parts []string
	for _, p := range profile.Phases {
		name := p.Name
		if p.Parallel {
			name = fmt.Sprintf("%s ∥", name)
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " → ")
}
