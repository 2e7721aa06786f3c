package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/atomicfile"
)

// Save writes the report as indented JSON to its per-phase, per-timestamp
// path and records that path on the report.
func (r *Report) Save(reportsDir, phase string) error {
	path := WritePath(reportsDir, phase, r.GeneratedAt)
	r.ReportPath = path
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshaling report: %w", err)
	}
	return atomicfile.Write(path, data, 0o644)
}
