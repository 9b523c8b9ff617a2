package extract

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SubDir resolves a named subdirectory of root, tolerating case differences
// in the on-disc spelling. Returns false when no such directory exists.
func SubDir(root, name string) (string, bool) {
	direct := filepath.Join(root, name)
	if info, err := os.Stat(direct); err == nil && info.IsDir() {
		return direct, true
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return filepath.Join(root, entry.Name()), true
		}
	}
	return "", false
}

// ListFiles returns the files in dir whose extension matches ext
// (case-insensitive, including the dot), sorted by name.
func ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Stem returns the file name without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Limit truncates files to the first n entries when n is positive.
func Limit(files []string, n int) []string {
	if n > 0 && len(files) > n {
		return files[:n]
	}
	return files
}
