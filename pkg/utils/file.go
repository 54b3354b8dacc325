package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileExt returns the lowercased extension without the leading dot.
// A name without a dot yields the empty string ("unknown file type"),
// not an error.
func FileExt(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return strings.TrimPrefix(ext, ".")
}

// FileSize returns the size of a file in bytes, or 0 if it cannot be
// determined
func FileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}

// EnsureReadable verifies the file exists and can be opened for reading
func EnsureReadable(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewIOError(fmt.Sprintf("file not found: %s", path), err)
		}
		return NewIOError(fmt.Sprintf("cannot stat file: %s", path), err)
	}
	if st.IsDir() {
		return NewIOError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return NewIOError(fmt.Sprintf("cannot read file: %s", path), err)
	}
	f.Close()
	return nil
}

// WordCount counts whitespace-separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Truncate shortens a string for inclusion in log and error messages
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
