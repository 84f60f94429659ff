// Package builder orchestrates binforge builds: it selects the sources
// registered for the current host, downloads and extracts them into a
// scoped temporary build directory, runs the configured command pipeline
// there, and remaps the results into the target directory.
package builder

import (
	"os"
	"strings"

	"github.com/binforge/binforge/internal/platform"
)

// Source identifies where to fetch a platform-specific artifact.
// Immutable once registered; a registry never mutates stored entries.
type Source struct {
	OS   string // normalized OS tag, e.g. "linux"
	Arch string // normalized architecture tag, e.g. "amd64"
	URL  string // local path, file: URL, or remote URL

	// Strip is the number of leading directory components removed while
	// unpacking this source's archive.
	Strip int

	// Checksum, when set, is the expected hex SHA-256 digest of the
	// fetched artifact. Verified after download, before extraction.
	Checksum string

	// SignatureURL, when set, locates a detached GPG signature for the
	// artifact, verified against Config.KeyringPath.
	SignatureURL string
}

// Matches reports whether the source targets the given host pair.
func (s Source) Matches(os, arch string) bool {
	return s.OS == os && s.Arch == arch
}

// Command is one step of the build pipeline: an executable and its
// arguments, run without shell interpretation.
type Command struct {
	Executable string
	Args       []string
}

// String renders the command the way a shell prompt would show it.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Executable
	}
	return c.Executable + " " + strings.Join(c.Args, " ")
}

// Remap relocates a file or directory from the temporary build directory
// into the target directory.
type Remap struct {
	Src  string // relative to the temporary build directory root
	Dest string // relative to the target directory; empty means Src
}

// Destination returns the effective destination path, defaulting to Src.
func (r Remap) Destination() string {
	if r.Dest == "" {
		return r.Src
	}
	return r.Dest
}

// Config is the complete, immutable description of one build. Construct
// it once (directly, via a Registry, or from a Lua manifest) and pass it
// to Build; the same value can be reused across Build calls.
type Config struct {
	// TargetDir receives the final files. It must either not exist yet
	// or already be a directory.
	TargetDir string

	// Sources are candidate distributions; every source matching the
	// current host is downloaded.
	Sources []Source

	// Commands run sequentially inside the temporary build directory.
	Commands []Command

	// Remaps determine the final layout. When empty, the whole
	// temporary build directory is renamed to TargetDir.
	Remaps []Remap

	// Silent suppresses inherited stdout/stderr of pipeline commands.
	Silent bool

	// KeyringPath locates an armored or binary GPG public keyring used
	// for sources that carry a SignatureURL.
	KeyringPath string

	// Logger receives build progress; nil means no logging.
	Logger Logger
}

// Validate checks the configuration invariants that are decidable
// without running a build.
func (c *Config) Validate() error {
	if c.TargetDir == "" {
		return errMissingTarget
	}

	info, err := os.Stat(c.TargetDir)
	if err == nil && !info.IsDir() {
		return &TargetNotDirectoryError{Path: c.TargetDir}
	}

	for _, src := range c.Sources {
		if src.SignatureURL != "" && c.KeyringPath == "" {
			return errSignatureWithoutKeyring
		}
	}

	return nil
}

// Result describes a completed build.
type Result struct {
	// TargetDir is the directory the build populated.
	TargetDir string

	// Downloaded lists the URLs of sources whose fetch and extraction
	// fully succeeded, in completion order (not registration order).
	Downloaded []string

	// HostPair is the "OS-ARCH" identity the build ran on.
	HostPair string
}

// HostPair returns the current host's "OS-ARCH" identity string.
func HostPair() string {
	return platform.Host().Pair()
}
