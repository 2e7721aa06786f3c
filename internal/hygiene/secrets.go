package hygiene

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

// secretRule is one named regex heuristic for a credential-shaped string.
type secretRule struct {
	name string
	re   *regexp.Regexp
}

// secretRules covers the common credential shapes a line scan can flag
// cheaply: cloud access keys, PEM private-key headers, and generic
// key/secret/token assignments.
var secretRules = []secretRule{
	{"aws-access-key-id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"private-key-header", regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |DSA |PGP )?PRIVATE KEY-----`)},
	{"generic-api-key-assignment", regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*['"][A-Za-z0-9/+=_\-]{16,}['"]`)},
	{"slack-token", regexp.MustCompile(`xox[baprs]-[0-9A-Za-z-]{10,}`)},
}

var secretScanExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".json": true,
	".yaml": true, ".yml": true, ".env": true, ".toml": true, ".ini": true,
	".sh": true, ".txt": true, ".cfg": true, ".properties": true,
}

// ScanSecrets flags lines matching a known secret-shaped pattern across
// text files, skipping binary extensions and anything whitelisted.
func (s *Scanner) ScanSecrets() ([]SecretFinding, error) {
	var findings []SecretFinding
	err := s.walkFiles(func(rel string, fi fs.FileInfo) error {
		ext := filepath.Ext(rel)
		if !secretScanExts[ext] || s.isWhitelisted(rel) {
			return nil
		}
		f, err := os.Open(filepath.Join(s.Root, rel))
		if err != nil {
			return nil
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Text()
			for _, rule := range secretRules {
				if rule.re.MatchString(text) {
					findings = append(findings, SecretFinding{Path: rel, Line: line, Rule: rule.name})
					break
				}
			}
		}
		return nil
	})
	return findings, err
}
