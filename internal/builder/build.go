package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/binforge/binforge/internal/platform"
	"github.com/binforge/binforge/internal/scratch"
)

// Build runs one complete build described by cfg: it ensures the target
// directory exists, downloads every source matching the current host
// concurrently into a scoped temporary build directory, runs the command
// pipeline there sequentially, and moves the results into the target
// directory according to the remap list.
//
// The first failing phase aborts the build and surfaces its error
// unmodified; the temporary build directory is cleaned up regardless.
// One Build call owns its temporary directory exclusively, and a Config
// value may be shared across calls.
func Build(ctx context.Context, cfg Config) (*Result, error) {
	log := cfg.Logger
	if log == nil {
		log = defaultLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureTargetDir(cfg.TargetDir); err != nil {
		return nil, err
	}

	host := platform.Host()
	matching := matchingSources(cfg.Sources, host)
	if len(matching) == 0 {
		return nil, &NoBinaryForPlatformError{Pair: host.Pair()}
	}

	result := &Result{
		TargetDir: cfg.TargetDir,
		HostPair:  host.Pair(),
	}

	pl := newPipeline(cfg.KeyringPath, log)

	err := scratch.WithTempDir(func(buildDir string) error {
		if err := downloadAll(ctx, pl, matching, buildDir, result); err != nil {
			return err
		}

		for _, cmd := range cfg.Commands {
			log.Info("running build command", "command", cmd.String())
			if err := runCommand(ctx, cmd, buildDir, cfg.Silent); err != nil {
				return err
			}
		}

		return remapAll(cfg, buildDir, log)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// matchingSources filters sources to those targeting the host, in
// registration order.
func matchingSources(sources []Source, host *platform.Info) []Source {
	var matched []Source
	for _, src := range sources {
		if src.Matches(host.OS, host.Arch) {
			matched = append(matched, src)
		}
	}
	return matched
}

// ensureTargetDir guarantees the target directory exists. An existing
// directory is left untouched; Validate has already rejected an existing
// non-directory.
func ensureTargetDir(targetDir string) error {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	return nil
}

// downloadAll fans out one download per matching source and joins on all
// of them. The first failure cancels the remaining fetches and surfaces
// alone. Completed URLs are appended to the result in completion order.
func downloadAll(ctx context.Context, pl *pipeline, sources []Source, buildDir string, result *Result) error {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for _, src := range sources {
		src := src
		g.Go(func() error {
			if err := pl.downloadAndExtract(gctx, src, buildDir); err != nil {
				return err
			}
			mu.Lock()
			result.Downloaded = append(result.Downloaded, src.URL)
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// runCommand executes one pipeline command inside dir. Unless silent,
// the command inherits the caller's standard streams.
func runCommand(ctx context.Context, cmd Command, dir string, silent bool) error {
	c := exec.CommandContext(ctx, cmd.Executable, cmd.Args...)
	c.Dir = dir
	if !silent {
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
	}

	if err := c.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &CommandError{Command: cmd, ExitCode: exitCode, Err: err}
	}
	return nil
}

// remapAll performs the final layout step. With remaps configured, each
// entry moves in order from the build directory into the target
// directory; completed moves are not rolled back when a later entry
// fails. With no remaps, the whole build directory is renamed onto the
// target path as a single unit, with host rename semantics deciding how
// an existing target is treated.
func remapAll(cfg Config, buildDir string, log Logger) error {
	if len(cfg.Remaps) == 0 {
		log.Debug("moving build directory to target", "target", cfg.TargetDir)
		if err := os.Rename(buildDir, cfg.TargetDir); err != nil {
			return &RemapError{Remap: Remap{Src: "."}, Err: err}
		}
		return nil
	}

	for _, remap := range cfg.Remaps {
		srcPath := filepath.Join(buildDir, remap.Src)
		destPath := filepath.Join(cfg.TargetDir, remap.Destination())

		log.Debug("remapping", "src", remap.Src, "dest", remap.Destination())

		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return &RemapError{Remap: remap, Err: err}
		}
		if err := os.Rename(srcPath, destPath); err != nil {
			return &RemapError{Remap: remap, Err: err}
		}
	}
	return nil
}
