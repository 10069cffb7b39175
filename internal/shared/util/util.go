package util

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// HasDottedPrefix returns true when name equals prefix or is nested below it
// in dotted notation.
func HasDottedPrefix(name, prefix string) bool {
	name = strings.Trim(strings.TrimSpace(name), ".")
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if name == "" || prefix == "" {
		return name == prefix
	}
	return name == prefix || strings.HasPrefix(name, prefix+".")
}

// ContainsPathSeparator returns true when value includes either slash separator.
func ContainsPathSeparator(value string) bool {
	return strings.Contains(value, "/") || strings.Contains(value, "\\")
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// WriteFileWithDirs creates parent directories (0755) and writes the file with perm.
func WriteFileWithDirs(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, perm)
}
