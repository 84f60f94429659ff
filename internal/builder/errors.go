package builder

import (
	"errors"
	"fmt"
)

// Configuration sentinel errors.
var (
	errMissingTarget           = errors.New("no target directory configured")
	errSignatureWithoutKeyring = errors.New("source carries a signature URL but no keyring is configured")
)

// TargetNotDirectoryError indicates the configured target path exists
// but is not a directory.
type TargetNotDirectoryError struct {
	Path string
}

func (e *TargetNotDirectoryError) Error() string {
	return fmt.Sprintf("target path exists and is not a directory: %s", e.Path)
}

// NoBinaryForPlatformError indicates no registered source matches the
// current host.
type NoBinaryForPlatformError struct {
	Pair string // "OS-ARCH" host identity
}

func (e *NoBinaryForPlatformError) Error() string {
	return fmt.Sprintf("no binary distribution registered for %s", e.Pair)
}

// CommandError reports a build pipeline command that exited non-zero or
// failed to start. Remaining commands are not executed.
type CommandError struct {
	Command  Command
	ExitCode int // -1 when the command could not be started
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("build command %q exited with code %d: %v", e.Command, e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// RemapError reports a failed move while laying out the target
// directory. Earlier completed moves are not rolled back.
type RemapError struct {
	Remap Remap
	Err   error
}

func (e *RemapError) Error() string {
	return fmt.Sprintf("remap %s -> %s: %v", e.Remap.Src, e.Remap.Destination(), e.Err)
}

func (e *RemapError) Unwrap() error {
	return e.Err
}
