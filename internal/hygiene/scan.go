package hygiene

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Scanner runs the hygiene scanners over a single repository root,
// reusing the checkpoint package's glob matcher (bmatcuk/doublestar) for
// whitelist patterns so the two pattern languages stay consistent.
type Scanner struct {
	Root   string
	Config Config
	Clock  func() time.Time
}

// NewScanner builds a Scanner rooted at root with the given config.
func NewScanner(root string, cfg Config) *Scanner {
	return &Scanner{Root: root, Config: cfg, Clock: time.Now}
}

func (s *Scanner) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// skipDirs are pruned outright during any repository walk: VCS metadata,
// dependency caches, and build output that is never a hygiene candidate.
var skipDirNames = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, ".venv": true,
	"venv": true, "__pycache__": true, "dist": true, "build": true,
	".ipynb_checkpoints": true,
}

// walkFiles invokes fn for every regular, non-symlink file under root in
// lexicographic order, pruning skipDirNames and hidden directories (a
// leading-dot path component other than the walk root itself).
func (s *Scanner) walkFiles(fn func(relPath string, info fs.FileInfo) error) error {
	var files []string
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.Root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != s.Root && (skipDirNames[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, rel := range files {
		info, err := os.Lstat(filepath.Join(s.Root, rel))
		if err != nil {
			continue
		}
		if err := fn(rel, info); err != nil {
			return err
		}
	}
	return nil
}

// isWhitelisted reports whether relPath matches any configured whitelist
// glob or a pattern in the repo's .tidyignore; the two sets are unioned,
// never substituted.
func (s *Scanner) isWhitelisted(relPath string) bool {
	for _, g := range s.Config.WhitelistGlobs {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
	}
	for _, g := range s.tidyignorePatterns() {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
		if ok, _ := doublestar.Match("**/"+g, relPath); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) tidyignorePatterns() []string {
	data, err := os.ReadFile(filepath.Join(s.Root, ".tidyignore"))
	if err != nil {
		return nil
	}
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// Scan runs every scanner in sequence and returns the aggregate Report
// with its derived cleanliness score.
func (s *Scanner) Scan() (*Report, error) {
	largeFiles, err := s.ScanLargeFiles()
	if err != nil {
		return nil, err
	}
	orphans, err := s.ScanOrphans()
	if err != nil {
		return nil, err
	}
	deadCode, err := s.ScanDeadCode()
	if err != nil {
		return nil, err
	}
	notebooks, err := s.ScanNotebooks()
	if err != nil {
		return nil, err
	}
	secrets, err := s.ScanSecrets()
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt: s.now(),
		LargeFiles:  largeFiles,
		Orphans:     orphans,
		DeadCode:    deadCode,
		Notebooks:   notebooks,
		Secrets:     secrets,
	}
	report.Score = ComputeScore(report, s.Config.Weights)
	return report, nil
}
