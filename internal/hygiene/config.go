// Package hygiene implements repository hygiene scanning and cleanliness
// scoring: a sequence of scanners (large files, orphans, dead code,
// notebooks, secrets), a weighted cleanliness score over their findings,
// and a safety-gated PR_PLAN.md for destructive cleanup. It is invokable
// as a named workflow phase (repo-hygiene) and directly from the CLI,
// feeding its report reference into the run's metrics document. The
// dead-code scanner parses Go source via go/parser, since the scanned
// tree is always Go.
package hygiene

// Config is the hygiene subsystem's tunable thresholds. Zero-value fields
// are filled in by DefaultConfig; Load (config.go's YAML loader)
// deep-merges a partial document over the defaults.
type Config struct {
	LargeFileMB          float64           `yaml:"largeFileMB"`
	BinaryExts           []string          `yaml:"binaryExts"`
	WhitelistGlobs       []string          `yaml:"whitelistGlobs"`
	NotebookClearOutputs bool              `yaml:"notebookClearOutputs"`
	DeadCode             DeadCodeConfig    `yaml:"deadCode"`
	Orphan               OrphanConfig      `yaml:"orphanDetection"`
	Weights              ScoreWeights      `yaml:"scoreWeights"`
	Safety               SafetyConfig      `yaml:"safety"`
}

// DeadCodeConfig controls the dead-code scanner's exclusions.
type DeadCodeConfig struct {
	ExcludePathPatterns   []string `yaml:"excludePathPatterns"`   // regex over relative path, e.g. `_test\.go$`
	ExcludeNames          []string `yaml:"excludeNames"`          // e.g. main, init, String
	IgnoreUnusedImportsIn []string `yaml:"ignoreUnusedImportsIn"` // basenames
}

// OrphanConfig controls the orphan scanner.
type OrphanConfig struct {
	MinAgeDays           int      `yaml:"minAgeDays"`
	ReferenceExtensions  []string `yaml:"referenceExtensions"`
	ProtectedNamePatterns []string `yaml:"protectedNamePatterns"` // substrings, e.g. "example", "template"
}

// ScoreWeights are the five component weights, summing to 100 by default.
type ScoreWeights struct {
	Orphans   int `yaml:"orphans"`
	LargeFiles int `yaml:"largeFiles"`
	DeadCode  int `yaml:"deadCode"`
	Notebooks int `yaml:"notebooks"`
	Secrets   int `yaml:"secrets"`
}

// SafetyConfig gates destructive `apply` cleanup behind deletion-count and
// byte-count thresholds.
type SafetyConfig struct {
	MaxApplyDeletions   int   `yaml:"maxApplyDeletions"`
	MaxApplyBytesRemoved int64 `yaml:"maxApplyBytesRemoved"`
}

// DefaultConfig returns the package's baseline thresholds: a 1MB
// large-file threshold, a common binary extension set, a conservative
// default whitelist, and safety caps of 50 deletions / 10MiB removed.
func DefaultConfig() Config {
	return Config{
		LargeFileMB: 1,
		BinaryExts:  []string{".png", ".jpg", ".jpeg", ".gif", ".pdf", ".zip", ".tar", ".gz"},
		WhitelistGlobs: []string{
			"data/external/**",
			"docs/**",
			".github/**",
			"models/**",
			"data/processed/**",
		},
		DeadCode: DeadCodeConfig{
			ExcludePathPatterns:   []string{`_test\.go$`},
			ExcludeNames:          []string{"main", "init", "String", "Error"},
			IgnoreUnusedImportsIn: []string{"doc.go"},
		},
		Orphan: OrphanConfig{
			MinAgeDays:            30,
			ReferenceExtensions:   []string{".go", ".md", ".yaml", ".yml", ".toml", ".json"},
			ProtectedNamePatterns: []string{"example", "template", "fixture", "sample"},
		},
		Weights: ScoreWeights{Orphans: 30, LargeFiles: 25, DeadCode: 20, Notebooks: 15, Secrets: 10},
		Safety:  SafetyConfig{MaxApplyDeletions: 50, MaxApplyBytesRemoved: 10 * 1024 * 1024},
	}
}
