package filesystem

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multipleDots = regexp.MustCompile(`\.{2,}`)
)

// CleanPath cleans a path component for safe filesystem use
func CleanPath(path string) string {
	if path == "" {
		return "unknown"
	}

	// Replace invalid characters
	path = invalidChars.ReplaceAllString(path, "_")

	// Replace multiple dots with single dot
	path = multipleDots.ReplaceAllString(path, ".")

	// Trim dots and spaces from ends
	path = strings.Trim(path, ". ")

	// Replace spaces with underscores
	path = strings.ReplaceAll(path, " ", "_")

	if path == "" || path == "." || path == ".." {
		return "unknown"
	}

	if len(path) > 100 {
		path = path[:100]
	}

	return path
}

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
