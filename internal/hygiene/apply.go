package hygiene

import "path/filepath"

// Apply performs the one destructive action hygiene ever takes on its
// own: clearing stale outputs from non-whitelisted notebooks. It refuses
// outright when safety is unsafe; cleanup never runs once APPLY BLOCKED
// fires.
func (s *Scanner) Apply(r *Report, safety ApplySafety) ([]string, error) {
	if !safety.IsSafe {
		return nil, nil
	}
	var cleared []string
	for _, n := range r.nonWhitelistedNotebooks() {
		path := filepath.Join(s.Root, n.Path)
		if err := ClearNotebookOutputs(path); err != nil {
			return cleared, err
		}
		cleared = append(cleared, n.Path)
	}
	return cleared, nil
}
