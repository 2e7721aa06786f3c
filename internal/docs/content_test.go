package docs

import (
	"strings"
	"testing"
)

func TestAll_CoversEveryOrchestrationConcern(t *testing.T) {
	want := []string{"quickstart", "config", "phases", "checkpoints", "commands", "hygiene", "persistence"}
	got := All()
	if len(got) != len(want) {
		t.Fatalf("All() returned %d topics, want %d: %v", len(got), len(want), got)
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("topic %d = %q, want %q (declaration order is display order)", i, got[i].Name, name)
		}
	}
}

func TestAll_NoDuplicateNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, topic := range All() {
		if seen[topic.Name] {
			t.Errorf("duplicate topic name: %q", topic.Name)
		}
		seen[topic.Name] = true
	}
}

func TestAll_AllFieldsPopulated(t *testing.T) {
	for _, topic := range All() {
		if topic.Name == "" {
			t.Error("topic has empty Name")
		}
		if topic.Title == "" {
			t.Errorf("topic %q has empty Title", topic.Name)
		}
		if topic.Summary == "" {
			t.Errorf("topic %q has empty Summary", topic.Name)
		}
		if topic.Content == "" {
			t.Errorf("topic %q has empty Content", topic.Name)
		}
	}
}

func TestGet_Checkpoints_DocumentsThePatternLanguageAndVerdicts(t *testing.T) {
	topic, err := Get("checkpoints")
	if err != nil {
		t.Fatalf("Get(checkpoints) error: %v", err)
	}
	for _, want := range []string{"re:", "Pass", "Partial", "Fail"} {
		if !strings.Contains(topic.Content, want) {
			t.Errorf("checkpoints topic content missing %q", want)
		}
	}
}

func TestGet_Persistence_DocumentsTheThreeDurableArtifacts(t *testing.T) {
	topic, err := Get("persistence")
	if err != nil {
		t.Fatalf("Get(persistence) error: %v", err)
	}
	for _, want := range []string{"run.json", "ndjson", "metrics/run-"} {
		if !strings.Contains(topic.Content, want) {
			t.Errorf("persistence topic content missing %q", want)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	_, err := Get("nonexistent")
	if err == nil {
		t.Fatal("Get(nonexistent) should return error")
	}
	if !strings.Contains(err.Error(), "docs") {
		t.Errorf("error should hint at the docs command, got: %v", err)
	}
}
