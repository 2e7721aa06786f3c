package hygiene

import (
	"fmt"
	"strings"
)

// ApplySafety is the outcome of checking a Report's destructive-cleanup
// candidates against the configured safety thresholds.
type ApplySafety struct {
	IsSafe        bool
	DeletionCount int
	BytesToRemove int64
	Reasons       []string
}

// CheckApplySafety computes whether the orphan and non-whitelisted
// large-file candidates in r fall within cfg's safety caps.
func CheckApplySafety(r *Report, cfg SafetyConfig) ApplySafety {
	largeFiles := r.nonWhitelistedLargeFiles()
	deletionCount := len(r.Orphans) + len(largeFiles)
	var bytesToRemove int64
	for _, f := range largeFiles {
		bytesToRemove += f.SizeBytes
	}

	safety := ApplySafety{DeletionCount: deletionCount, BytesToRemove: bytesToRemove, IsSafe: true}
	if cfg.MaxApplyDeletions > 0 && deletionCount > cfg.MaxApplyDeletions {
		safety.IsSafe = false
		safety.Reasons = append(safety.Reasons, fmt.Sprintf(
			"deletion count %d exceeds the configured maximum of %d", deletionCount, cfg.MaxApplyDeletions))
	}
	if cfg.MaxApplyBytesRemoved > 0 && bytesToRemove > cfg.MaxApplyBytesRemoved {
		safety.IsSafe = false
		safety.Reasons = append(safety.Reasons, fmt.Sprintf(
			"bytes to remove %d exceeds the configured maximum of %d", bytesToRemove, cfg.MaxApplyBytesRemoved))
	}
	return safety
}

// GeneratePRPlan renders PR_PLAN.md: an "APPLY BLOCKED" banner with reasons
// when safety is unsafe, otherwise a listing of the safe actions apply
// would take — orphan removal suggestions and the notebooks that would
// have their outputs cleared. Apply never calls git rm itself for orphans
// or large files; it only ever rewrites notebook outputs in place.
func GeneratePRPlan(r *Report, safety ApplySafety) string {
	var b strings.Builder
	b.WriteString("# Repository Cleanup Plan\n\n")

	if !safety.IsSafe {
		b.WriteString("## ⚠️ APPLY BLOCKED - Safety Thresholds Exceeded\n\n")
		b.WriteString("Apply mode will refuse to run until the repository is brought back under\n")
		b.WriteString("the configured safety thresholds, or the thresholds are deliberately raised.\n\n")
		for _, reason := range safety.Reasons {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Deletion candidates: %d. Bytes to remove: %d.\n\n", safety.DeletionCount, safety.BytesToRemove)

	if len(r.Orphans) > 0 {
		b.WriteString("## Safe Actions: Orphaned Files\n\n")
		b.WriteString("These files were last modified before the configured minimum age and have\n")
		b.WriteString("no detected references elsewhere in the repository. Review and remove with:\n\n")
		for _, o := range r.Orphans {
			fmt.Fprintf(&b, "- `git rm %s`\n", o.Path)
		}
		b.WriteString("\n")
	}

	if large := r.nonWhitelistedLargeFiles(); len(large) > 0 {
		b.WriteString("## Safe Actions: Large Files\n\n")
		b.WriteString("These files exceed the configured size threshold and are not whitelisted:\n\n")
		for _, f := range large {
			fmt.Fprintf(&b, "- `%s` (%d bytes)\n", f.Path, f.SizeBytes)
		}
		b.WriteString("\n")
	}

	if nb := r.nonWhitelistedNotebooks(); len(nb) > 0 {
		b.WriteString("## Apply Action: Notebook Output Clearing\n\n")
		b.WriteString("Apply mode will clear cell outputs and execution counts in place for:\n\n")
		for _, n := range nb {
			fmt.Fprintf(&b, "- `%s` (%d dirty cells)\n", n.Path, n.CellsWithOutputs)
		}
		b.WriteString("\n")
	}

	if len(r.Orphans) == 0 && len(r.nonWhitelistedLargeFiles()) == 0 && len(r.nonWhitelistedNotebooks()) == 0 {
		b.WriteString("No cleanup actions are needed.\n")
	}

	return b.String()
}
