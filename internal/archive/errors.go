package archive

import (
	"fmt"
)

// UnsupportedFormatError reports a file whose detected content type does
// not map to any archive format the extractor can handle.
type UnsupportedFormatError struct {
	Path     string // offending file (or the URL it came from)
	Detected string // sniffed content type, may be empty
}

func (e *UnsupportedFormatError) Error() string {
	if e.Detected == "" {
		return fmt.Sprintf("unsupported archive format: %s", e.Path)
	}
	return fmt.Sprintf("unsupported archive format %q: %s", e.Detected, e.Path)
}

// StripError reports a rename failure while flattening an extracted zip
// archive. Extraction is not rolled back; entries moved before the
// failure stay where they were moved.
type StripError struct {
	Level int    // requested strip level
	Path  string // entry that failed to move
	Err   error
}

func (e *StripError) Error() string {
	return fmt.Sprintf("strip %d directory component(s): move %s: %v", e.Level, e.Path, e.Err)
}

func (e *StripError) Unwrap() error {
	return e.Err
}
