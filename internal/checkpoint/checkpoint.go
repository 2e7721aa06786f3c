// Package checkpoint implements the Checkpoint Validator: matching a
// phase's declared checkpoint artifact patterns against files actually
// produced, and classifying the result as Pass, Partial, or Fail.
package checkpoint

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Status is the validation verdict.
type Status string

const (
	Pass    Status = "pass"
	Partial Status = "partial"
	Fail    Status = "fail"
)

// Report is the outcome of validating a set of required patterns against a
// root directory.
type Report struct {
	Status     Status    `json:"status"`
	Required   []string  `json:"required"`
	Found      []string  `json:"found"`
	Missing    []string  `json:"missing"`
	ReportPath string    `json:"reportPath"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// reSep marks a pattern as an anchored regular expression rather than a
// glob, per the artifact pattern language in the external interfaces.
const reSep = "re:"

// compiled is a single pattern's matcher, either a glob or an anchored
// regexp, over a path relative to the validation root.
type compiled struct {
	raw   string
	isRe  bool
	re    *regexp.Regexp
	glob  string
}

func compile(pattern string) (*compiled, error) {
	if strings.HasPrefix(pattern, reSep) {
		exprSrc := strings.TrimPrefix(pattern, reSep)
		// The pattern language treats re:<regex> as anchored to the whole
		// relative path, not merely matched somewhere within it; wrap the
		// operator's expression rather than relying on it to supply its own
		// ^/$ anchors.
		re, err := regexp.Compile(`\A(?:` + exprSrc + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: invalid pattern %q: %w", pattern, err)
		}
		return &compiled{raw: pattern, isRe: true, re: re}, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("checkpoint: invalid glob pattern %q", pattern)
	}
	return &compiled{raw: pattern, isRe: false, glob: pattern}, nil
}

func (c *compiled) matches(relPath string) bool {
	if c.isRe {
		return c.re.MatchString(relPath)
	}
	ok, _ := doublestar.Match(c.glob, relPath)
	return ok
}

// Validate walks root in lexicographic order (without following symlinks)
// looking for at least one match per required pattern, and returns a
// deterministic Report. root is either the project root or a phase-specific
// artifact directory, per the caller's configuration.
func Validate(root string, required []string) (*Report, error) {
	matchers := make([]*compiled, len(required))
	for i, pattern := range required {
		c, err := compile(pattern)
		if err != nil {
			return nil, err
		}
		matchers[i] = c
	}

	foundSet := make(map[string]bool)
	matchedPattern := make([]bool, len(required))

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			// Symbolic links are not followed.
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: walking %s: %w", root, err)
	}
	sort.Strings(files)

	for _, rel := range files {
		for i, m := range matchers {
			if m.matches(rel) {
				matchedPattern[i] = true
				foundSet[rel] = true
			}
		}
	}

	found := make([]string, 0, len(foundSet))
	for p := range foundSet {
		found = append(found, p)
	}
	sort.Strings(found)

	var missing []string
	matchedCount := 0
	for i, ok := range matchedPattern {
		if ok {
			matchedCount++
		} else {
			missing = append(missing, required[i])
		}
	}

	status := Partial
	switch {
	case len(required) == 0 || matchedCount == len(required):
		status = Pass
	case matchedCount == 0:
		status = Fail
	}

	return &Report{
		Status:      status,
		Required:    append([]string(nil), required...),
		Found:       found,
		Missing:     missing,
		GeneratedAt: time.Now(),
	}, nil
}

// WritePath returns the per-phase, per-timestamp report path so repeated
// replays accumulate distinct report documents rather than overwriting one
// another, per the Checkpoint Validator's edge policy.
func WritePath(reportsDir, phase string, at time.Time) string {
	stamp := at.UTC().Format("20060102T150405.000000000Z")
	return filepath.Join(reportsDir, fmt.Sprintf("checkpoint_%s_%s.json", phase, stamp))
}
