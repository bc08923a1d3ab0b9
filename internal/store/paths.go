package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DatabasePath resolves the results database path. Relative paths are
// taken relative to the output directory; an empty name disables the
// database and returns "".
func DatabasePath(outDir, name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(outDir, name)
}

// EnsureOutputDir creates the output directory if it doesn't exist.
func EnsureOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
