package hygiene

import "time"

// LargeFileFinding is one file flagged by the large-file scanner.
type LargeFileFinding struct {
	Path        string `json:"path"`
	SizeBytes   int64  `json:"sizeBytes"`
	Ext         string `json:"ext"`
	Whitelisted bool   `json:"whitelisted"`
}

// OrphanFinding is one file flagged by the orphan scanner: old enough, not
// whitelisted, not protected, and with zero references found.
type OrphanFinding struct {
	Path         string    `json:"path"`
	LastModified time.Time `json:"lastModified"`
}

// DeadCodeKind classifies a dead-code finding.
type DeadCodeKind string

const (
	DeadCodeFunction DeadCodeKind = "function"
	DeadCodeType     DeadCodeKind = "type"
	DeadCodeImport   DeadCodeKind = "import"
)

// DeadCodeFinding is one defined-but-unreferenced name.
type DeadCodeFinding struct {
	Name string       `json:"name"`
	File string       `json:"file"`
	Line int          `json:"line"`
	Kind DeadCodeKind `json:"kind"`
}

// NotebookFinding is one notebook whose code cells carry outputs.
type NotebookFinding struct {
	Path             string `json:"path"`
	CellsWithOutputs int    `json:"cellsWithOutputs"`
	Whitelisted      bool   `json:"whitelisted"`
}

// SecretFinding is one line matching a known secret-shaped pattern.
type SecretFinding struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Rule string `json:"rule"`
}

// ScoreResult is the weighted cleanliness score and its component
// breakdown.
type ScoreResult struct {
	Score     float64            `json:"score"`
	Grade     string             `json:"grade"`
	Breakdown map[string]float64 `json:"breakdown"`
	Weights   ScoreWeights       `json:"weights"`
}

// Report is the full HygieneReport: every scanner's findings plus the
// derived cleanliness score.
type Report struct {
	GeneratedAt time.Time          `json:"generatedAt"`
	LargeFiles  []LargeFileFinding `json:"largeFiles"`
	Orphans     []OrphanFinding    `json:"orphans"`
	DeadCode    []DeadCodeFinding  `json:"deadCode"`
	Notebooks   []NotebookFinding  `json:"notebooks"`
	Secrets     []SecretFinding    `json:"secrets"`
	Score       ScoreResult        `json:"score"`
}

// nonWhitelistedLargeFiles returns large-file findings that are not
// whitelisted — the ones the score and PR plan treat as review candidates.
func (r *Report) nonWhitelistedLargeFiles() []LargeFileFinding {
	var out []LargeFileFinding
	for _, f := range r.LargeFiles {
		if !f.Whitelisted {
			out = append(out, f)
		}
	}
	return out
}

func (r *Report) nonWhitelistedNotebooks() []NotebookFinding {
	var out []NotebookFinding
	for _, n := range r.Notebooks {
		if !n.Whitelisted {
			out = append(out, n)
		}
	}
	return out
}
