package hygiene

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/atomicfile"
)

// Save writes the report as hygiene_summary.json and a human-readable
// repo_hygiene_report.md under dir, plus PR_PLAN.md describing (or
// blocking) the apply-mode cleanup it would perform.
func Save(dir string, r *Report, safety ApplySafety) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("hygiene: marshaling report: %w", err)
	}
	if err := atomicfile.Write(filepath.Join(dir, "hygiene_summary.json"), data, 0o644); err != nil {
		return fmt.Errorf("hygiene: writing summary: %w", err)
	}

	if err := atomicfile.Write(filepath.Join(dir, "repo_hygiene_report.md"), []byte(renderMarkdown(r)), 0o644); err != nil {
		return fmt.Errorf("hygiene: writing report: %w", err)
	}

	plan := GeneratePRPlan(r, safety)
	if err := atomicfile.Write(filepath.Join(dir, "PR_PLAN.md"), []byte(plan), 0o644); err != nil {
		return fmt.Errorf("hygiene: writing PR plan: %w", err)
	}
	return nil
}

func renderMarkdown(r *Report) string {
	return fmt.Sprintf(
		"# Repository Hygiene Report\n\n"+
			"Generated: %s\n\n"+
			"| Component | Findings | Score |\n"+
			"|---|---|---|\n"+
			"| Orphaned files | %d | %.2f |\n"+
			"| Large files | %d | %.2f |\n"+
			"| Dead code | %d | %.2f |\n"+
			"| Dirty notebooks | %d | %.2f |\n"+
			"| Secret findings | %d | %.2f |\n\n"+
			"**Overall score: %.1f (%s)**\n",
		r.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		len(r.Orphans), r.Score.Breakdown["orphans"],
		len(r.nonWhitelistedLargeFiles()), r.Score.Breakdown["largeFiles"],
		len(r.DeadCode), r.Score.Breakdown["deadCode"],
		len(r.nonWhitelistedNotebooks()), r.Score.Breakdown["notebooks"],
		len(r.Secrets), r.Score.Breakdown["secrets"],
		r.Score.Score, r.Score.Grade,
	)
}
