package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// EnsureDir creates dir and its parents if needed and returns it.
func EnsureDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}
	return dir, nil
}

// ListFiles returns the regular files directly inside dir whose extension is
// in exts (compared case-insensitively, with leading dots), sorted by name.
// An empty exts matches every file.
func ListFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory '%s': %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if len(exts) > 0 && !HasExtension(e.Name(), exts) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

// HasExtension reports whether name ends in one of exts.
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, want := range exts {
		want = strings.ToLower(want)
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if ext == want {
			return true
		}
	}
	return false
}
