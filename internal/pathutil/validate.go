// Package pathutil resolves output file paths against the output directory.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for log and
// error messages. For example, "/home/user/runs/flu/reassort.db" becomes
// ".../flu/reassort.db".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	parent := filepath.Base(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// Resolve cleans path, makes it absolute and resolves symlinks on its
// deepest existing ancestor. The path itself need not exist.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("path contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path: %w", err)
	}
	return resolveExistingParent(abs)
}

// Rel returns path relative to dir with forward slashes, for use in object
// keys. Both are resolved first, so a path reached through a symlinked
// directory still maps into dir. Paths outside dir are an error.
func Rel(dir, path string) (string, error) {
	resolvedDir, err := Resolve(dir)
	if err != nil {
		return "", fmt.Errorf("output directory: %w", err)
	}
	resolvedPath, err := Resolve(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", RedactPath(path), err)
	}
	if resolvedPath == resolvedDir || !isSubpath(resolvedPath, resolvedDir) {
		return "", fmt.Errorf("%q is outside the output directory", RedactPath(path))
	}

	rel, err := filepath.Rel(resolvedDir, resolvedPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// resolveExistingParent walks up the directory tree to find the deepest
// existing ancestor, resolves symlinks on it, then re-appends the
// non-existent tail.
func resolveExistingParent(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}

	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// isSubpath checks whether path is equal to or below base.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	// "/tmp/foo" must not match "/tmp/foobar"
	prefix := base + string(os.PathSeparator)
	return strings.HasPrefix(path, prefix)
}
