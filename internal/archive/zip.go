package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/binforge/binforge/internal/pathutil"
)

// extractZip unpacks a zip archive into destDir. The zip decoder has no
// native strip support, so stripping happens in two phases: a full
// extraction followed by a bounded-depth flattening of destDir.
func extractZip(archivePath, destDir string, stripLevel int) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip archive: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for _, entry := range reader.File {
		if err := writeZipEntry(entry, destDir); err != nil {
			return err
		}
	}

	if stripLevel > 0 {
		return stripExtracted(destDir, stripLevel)
	}
	return nil
}

// writeZipEntry writes a single zip entry under destDir.
func writeZipEntry(entry *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.FromSlash(entry.Name))

	// Security check: prevent path traversal
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal file path: %s", entry.Name)
	}

	if entry.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", target, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	mode := entry.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(outFile, src); err != nil {
		outFile.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}

	return outFile.Close()
}

// stripExtracted flattens destDir by level directory components. The
// walk descends at most level directories deep: entries found at the
// cutoff depth are moved as opaque leaves, directories above it are
// recursed into but never moved themselves. Emptied container
// directories are removed afterwards, best effort.
//
// A rename failure surfaces as a StripError; moves already performed
// are not rolled back.
func stripExtracted(destDir string, level int) error {
	var leaves []string
	var containers []string

	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if entry.IsDir() && depth < level {
				containers = append(containers, full)
				if err := walk(full, depth+1); err != nil {
					return err
				}
				continue
			}
			leaves = append(leaves, full)
		}
		return nil
	}

	if err := walk(destDir, 0); err != nil {
		return err
	}

	for _, leaf := range leaves {
		rel, err := filepath.Rel(destDir, leaf)
		if err != nil {
			return &StripError{Level: level, Path: leaf, Err: err}
		}

		stripped := pathutil.Strip(rel, level)
		if stripped == rel {
			continue
		}

		target := filepath.Join(destDir, stripped)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return &StripError{Level: level, Path: leaf, Err: err}
		}
		if err := os.Rename(leaf, target); err != nil {
			return &StripError{Level: level, Path: leaf, Err: err}
		}
	}

	// Remove emptied wrapper directories, deepest first. Non-empty
	// containers are left in place.
	for i := len(containers) - 1; i >= 0; i-- {
		_ = os.Remove(containers[i])
	}

	return nil
}
