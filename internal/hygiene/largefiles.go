package hygiene

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// ScanLargeFiles flags files at or above the configured size threshold:
// binary-extension filter, whitelist/tidyignore exclusion, results carried
// in size-descending order for the report.
func (s *Scanner) ScanLargeFiles() ([]LargeFileFinding, error) {
	thresholdBytes := int64(s.Config.LargeFileMB * 1024 * 1024)
	var findings []LargeFileFinding

	err := s.walkFiles(func(rel string, fi fs.FileInfo) error {
		if fi.Size() < thresholdBytes {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(rel))
		if !s.isBinaryExt(ext) {
			return nil
		}
		findings = append(findings, LargeFileFinding{
			Path:        rel,
			SizeBytes:   fi.Size(),
			Ext:         ext,
			Whitelisted: s.isWhitelisted(rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortLargeFilesDesc(findings)
	return findings, nil
}

func (s *Scanner) isBinaryExt(ext string) bool {
	for _, e := range s.Config.BinaryExts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func sortLargeFilesDesc(findings []LargeFileFinding) {
	for i := 1; i < len(findings); i++ {
		for j := i; j > 0 && findings[j].SizeBytes > findings[j-1].SizeBytes; j-- {
			findings[j], findings[j-1] = findings[j-1], findings[j]
		}
	}
}
