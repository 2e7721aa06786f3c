// Package atomicfile provides crash-safe durable writes: write to a
// temporary file in the same directory, then rename over the target. The
// rename is atomic on POSIX filesystems, so a reader never observes a
// partially written file. Every durable artifact the orchestration core
// writes (state document, run log records, metrics document,
// checkpoint/consensus/hygiene reports) goes through this package.
package atomicfile

import (
	"os"
	"path/filepath"
)

// Write writes data to path atomically via write-temp-then-rename.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return err
	}
	return nil
}

// AppendRecord appends data followed by a newline to path, creating the
// file and its directory if necessary. A single os.File.Write of a
// complete record is atomic with respect to other appenders on POSIX
// filesystems as long as the record stays under the platform's atomic
// pipe/write buffer size, which run-log records are expected to.
func AppendRecord(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	data = append(append([]byte(nil), data...), '\n')
	_, err = f.Write(data)
	return err
}
