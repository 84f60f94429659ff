// Package pathutil provides pure path manipulation helpers used during
// archive extraction.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Strip removes level leading directory components from path, preserving
// the final leaf name. If path has fewer directory components than level,
// the input is returned unchanged (normalized). A root separator on an
// absolute input is not a directory component; stripping an absolute path
// yields a relative one. Strip performs no I/O and cannot fail.
//
//	Strip("a/b/c.txt", 1)  == "b/c.txt"
//	Strip("/a/b/c.txt", 1) == "b/c.txt"
//	Strip("a/b/c.txt", 5)  == "a/b/c.txt"
//	Strip("c.txt", 3)      == "c.txt"
func Strip(path string, level int) string {
	cleaned := filepath.Clean(path)
	if level <= 0 {
		return cleaned
	}

	trimmed := strings.TrimPrefix(cleaned, string(filepath.Separator))
	parts := strings.Split(trimmed, string(filepath.Separator))
	leaf := parts[len(parts)-1]
	dirs := parts[:len(parts)-1]

	if len(dirs) < level {
		return cleaned
	}

	return filepath.Join(append(dirs[level:], leaf)...)
}
