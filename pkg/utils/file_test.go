package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileExt(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"report.pdf", "pdf"},
		{"REPORT.PDF", "pdf"},
		{"archive.tar.gz", "gz"},
		{"/tmp/dir/notes.md", "md"},
		{"Makefile", ""},
		{"trailing.", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := FileExt(tt.path); got != tt.want {
				t.Errorf("FileExt(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestEnsureReadable(t *testing.T) {
	dir := t.TempDir()

	readable := filepath.Join(dir, "ok.txt")
	if err := os.WriteFile(readable, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureReadable(readable); err != nil {
		t.Errorf("EnsureReadable(%q) = %v, want nil", readable, err)
	}

	missing := filepath.Join(dir, "missing.txt")
	if err := EnsureReadable(missing); err == nil {
		t.Error("EnsureReadable should fail for a missing file")
	} else if GetErrorType(err) != ErrorTypeIO {
		t.Errorf("missing file classified as %q, want %q", GetErrorType(err), ErrorTypeIO)
	}

	if err := EnsureReadable(dir); err == nil {
		t.Error("EnsureReadable should fail for a directory")
	}
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(path, make([]byte, 1234), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := FileSize(path); got != 1234 {
		t.Errorf("FileSize() = %d, want 1234", got)
	}
	if got := FileSize(filepath.Join(dir, "nope")); got != 0 {
		t.Errorf("FileSize() for missing file = %d, want 0", got)
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   \n\t ", 0},
		{"one", 1},
		{"one two\nthree", 3},
	}
	for _, tt := range tests {
		if got := WordCount(tt.text); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %q, want unchanged", got)
	}
	if got := Truncate("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("  padded  ", 10); got != "padded" {
		t.Errorf("Truncate() should trim whitespace first, got %q", got)
	}
}
