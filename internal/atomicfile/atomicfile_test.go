package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWrite_CreatesFileAndParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state", "run.json")

	if err := Write(path, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("data = %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected .tmp removed after rename, err = %v", err)
	}
}

func TestWrite_OverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")

	if err := Write(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Write(path, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Fatalf("data = %q, want %q", data, "second")
	}
}

func TestAppendRecord_AccumulatesNewlineDelimited(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log", "run-1.ndjson")

	for _, line := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		if err := AppendRecord(path, []byte(line)); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\"n\":1}\n{\"n\":2}\n{\"n\":3}\n"
	if string(data) != want {
		t.Fatalf("data = %q, want %q", data, want)
	}
}
