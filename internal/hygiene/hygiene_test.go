package hygiene

import (
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestComputeScore_WorkedExample(t *testing.T) {
	// 0 orphans, 0 large files, 3 unused functions, 0 notebook issues,
	// 0 secrets -> 30 + 25 + 16 + 15 + 10 = 96, grade A+.
	r := &Report{
		DeadCode: []DeadCodeFinding{
			{Name: "a", Kind: DeadCodeFunction},
			{Name: "b", Kind: DeadCodeFunction},
			{Name: "c", Kind: DeadCodeFunction},
		},
	}
	weights := DefaultConfig().Weights
	result := ComputeScore(r, weights)

	if !almostEqual(result.Score, 96.0) {
		t.Fatalf("expected score 96.0, got %v", result.Score)
	}
	if result.Grade != "A+" {
		t.Fatalf("expected grade A+, got %s", result.Grade)
	}
}

func TestComputeScore_AllClean(t *testing.T) {
	r := &Report{}
	weights := DefaultConfig().Weights
	result := ComputeScore(r, weights)
	if !almostEqual(result.Score, 100.0) {
		t.Fatalf("expected a perfectly clean repo to score 100, got %v", result.Score)
	}
	if result.Grade != "A+" {
		t.Fatalf("expected grade A+, got %s", result.Grade)
	}
}

func TestGradeFor_Thresholds(t *testing.T) {
	cases := []struct {
		score float64
		grade string
	}{
		{95, "A+"}, {94.9, "A"}, {90, "A"}, {89.9, "B+"},
		{85, "B+"}, {84.9, "B"}, {80, "B"}, {79.9, "C+"},
		{75, "C+"}, {74.9, "C"}, {70, "C"}, {69.9, "D"},
		{60, "D"}, {59.9, "F"}, {0, "F"},
	}
	for _, c := range cases {
		if got := gradeFor(c.score); got != c.grade {
			t.Errorf("gradeFor(%v) = %s, want %s", c.score, got, c.grade)
		}
	}
}

func TestDeadCodeWeightedTotal(t *testing.T) {
	findings := []DeadCodeFinding{
		{Kind: DeadCodeFunction},
		{Kind: DeadCodeType},
		{Kind: DeadCodeImport},
	}
	if got := deadCodeWeightedTotal(findings); got != 7 {
		t.Fatalf("expected weighted total 7 (3+3+1), got %d", got)
	}
}

func TestCheckApplySafety_BlocksOverThreshold(t *testing.T) {
	r := &Report{}
	for i := 0; i < 60; i++ {
		r.Orphans = append(r.Orphans, OrphanFinding{Path: "f"})
	}
	cfg := SafetyConfig{MaxApplyDeletions: 50, MaxApplyBytesRemoved: 10 * 1024 * 1024}

	safety := CheckApplySafety(r, cfg)
	if safety.IsSafe {
		t.Fatalf("expected apply to be blocked with 60 orphans over a 50 cap")
	}
	if len(safety.Reasons) == 0 {
		t.Fatalf("expected a reason to be recorded")
	}

	plan := GeneratePRPlan(r, safety)
	if !strings.Contains(plan, "APPLY BLOCKED") {
		t.Fatalf("expected PR plan to contain an APPLY BLOCKED banner, got:\n%s", plan)
	}
}

func TestCheckApplySafety_AllowsUnderThreshold(t *testing.T) {
	r := &Report{
		Orphans: []OrphanFinding{{Path: "old/unused.go"}},
	}
	cfg := SafetyConfig{MaxApplyDeletions: 50, MaxApplyBytesRemoved: 10 * 1024 * 1024}

	safety := CheckApplySafety(r, cfg)
	if !safety.IsSafe {
		t.Fatalf("expected apply to be allowed, got reasons: %v", safety.Reasons)
	}

	plan := GeneratePRPlan(r, safety)
	if !strings.Contains(plan, "git rm old/unused.go") {
		t.Fatalf("expected PR plan to suggest removing the orphan, got:\n%s", plan)
	}
}
