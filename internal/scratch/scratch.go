// Package scratch manages scoped temporary files and directories. A
// resource is created, handed to a task, and removed once the task
// settles, whether it returned normally or with an error.
package scratch

import (
	"fmt"
	"os"
)

// WithTempFile allocates a uniquely named temporary file, invokes task
// with its path, and removes the file afterwards. Removal failures never
// mask the task's error; a file the task already deleted or moved away
// is not an error.
func WithTempFile(task func(path string) error) error {
	file, err := os.CreateTemp("", "binforge-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	path := file.Name()
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close temp file: %w", err)
	}

	defer func() {
		_ = os.Remove(path)
	}()

	return task(path)
}

// WithTempDir allocates a uniquely named temporary directory, invokes
// task with its path, and removes the directory tree afterwards. A
// directory the task renamed into its final location no longer exists at
// cleanup time; that is tolerated, not an error.
func WithTempDir(task func(dir string) error) error {
	dir, err := os.MkdirTemp("", "binforge-build-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(dir)
	}()

	return task(dir)
}
