package hygiene

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ScanOrphans flags files older than the configured minimum age with zero
// references found anywhere else in the repository. Reference detection is
// a literal substring search (filename or repo-relative path) across files
// with a reference extension — it overcounts references rather than risks
// a false orphan.
func (s *Scanner) ScanOrphans() ([]OrphanFinding, error) {
	type candidate struct {
		rel     string
		modTime time.Time
		base    string
	}

	var candidates []candidate
	cutoff := s.now().AddDate(0, 0, -s.Config.Orphan.MinAgeDays)

	err := s.walkFiles(func(rel string, fi fs.FileInfo) error {
		if s.isWhitelisted(rel) || s.isProtectedName(rel) {
			return nil
		}
		if fi.ModTime().After(cutoff) {
			return nil
		}
		candidates = append(candidates, candidate{rel: rel, modTime: fi.ModTime(), base: filepath.Base(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	refCount := make(map[string]int, len(candidates))
	err = s.walkFiles(func(rel string, fi fs.FileInfo) error {
		if !s.hasReferenceExt(rel) {
			return nil
		}
		data, err := os.ReadFile(filepath.Join(s.Root, rel))
		if err != nil {
			return nil
		}
		text := string(data)
		for _, c := range candidates {
			if rel == c.rel {
				continue
			}
			if strings.Contains(text, c.base) || strings.Contains(text, c.rel) {
				refCount[c.rel]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var orphans []OrphanFinding
	for _, c := range candidates {
		if refCount[c.rel] == 0 {
			orphans = append(orphans, OrphanFinding{Path: c.rel, LastModified: c.modTime})
		}
	}
	return orphans, nil
}

func (s *Scanner) isProtectedName(rel string) bool {
	lower := strings.ToLower(rel)
	for _, p := range s.Config.Orphan.ProtectedNamePatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func (s *Scanner) hasReferenceExt(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	for _, e := range s.Config.Orphan.ReferenceExtensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
