package hygiene

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/atomicfile"
)

// notebookCell mirrors the subset of the Jupyter notebook cell schema that
// the sanitizer cares about: whether a code cell carries stale outputs or
// an execution count.
type notebookCell struct {
	CellType       string            `json:"cell_type"`
	Outputs        []json.RawMessage `json:"outputs,omitempty"`
	ExecutionCount json.RawMessage   `json:"execution_count,omitempty"`
}

type notebookDoc struct {
	Cells []notebookCell `json:"cells"`
}

// ScanNotebooks flags .ipynb files whose code cells carry non-empty
// outputs or a set execution_count.
func (s *Scanner) ScanNotebooks() ([]NotebookFinding, error) {
	var findings []NotebookFinding
	err := s.walkFiles(func(rel string, fi fs.FileInfo) error {
		if filepath.Ext(rel) != ".ipynb" {
			return nil
		}
		data, err := os.ReadFile(filepath.Join(s.Root, rel))
		if err != nil {
			return nil
		}
		var doc notebookDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil // not our concern if it isn't valid notebook JSON
		}
		dirty := 0
		for _, c := range doc.Cells {
			if c.CellType != "code" {
				continue
			}
			hasOutputs := len(c.Outputs) > 0
			hasExecCount := len(c.ExecutionCount) > 0 && string(c.ExecutionCount) != "null"
			if hasOutputs || hasExecCount {
				dirty++
			}
		}
		if dirty == 0 {
			return nil
		}
		findings = append(findings, NotebookFinding{
			Path:             rel,
			CellsWithOutputs: dirty,
			Whitelisted:      s.isWhitelisted(rel),
		})
		return nil
	})
	return findings, err
}

// ClearNotebookOutputs rewrites path in place, clearing every code cell's
// outputs and execution_count to nil/empty. It is the one hygiene action
// that actually mutates a file; everything else is advisory-only in
// PR_PLAN.md.
func ClearNotebookOutputs(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var cells []map[string]json.RawMessage
	if err := json.Unmarshal(raw["cells"], &cells); err != nil {
		return err
	}
	for _, cell := range cells {
		var cellType string
		_ = json.Unmarshal(cell["cell_type"], &cellType)
		if cellType != "code" {
			continue
		}
		cell["outputs"] = json.RawMessage("[]")
		cell["execution_count"] = json.RawMessage("null")
	}
	cellsJSON, err := json.Marshal(cells)
	if err != nil {
		return err
	}
	raw["cells"] = cellsJSON
	out, err := json.MarshalIndent(raw, "", " ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	return atomicfile.Write(path, out, 0o644)
}
