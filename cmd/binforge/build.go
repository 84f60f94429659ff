package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/binforge/binforge/internal/builder"
	"github.com/binforge/binforge/internal/manifest"
	"github.com/binforge/binforge/internal/platform"
)

const defaultManifest = "binforge.lua"

// runBuild handles the `binforge build` subcommand.
func runBuild(args []string) error {
	showHelp := false
	silent := false
	verbose := false
	manifestPath := defaultManifest

	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			showHelp = true
		case "--silent", "-s":
			silent = true
		case "--verbose", "-v":
			verbose = true
		default:
			manifestPath = arg
		}
	}

	if showHelp {
		printBuildHelp()
		return nil
	}

	ctx := context.Background()

	parser := manifest.NewParser(platform.NewDetector())
	cfg, err := parser.ParseFile(ctx, manifestPath)
	if err != nil {
		var parseErr *manifest.ParseError
		if errors.As(err, &parseErr) {
			return errors.New(manifest.FormatError(err, verbose))
		}
		return err
	}

	if silent {
		cfg.Silent = true
	}

	result, err := builder.Build(ctx, *cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Built %s for %s\n", result.TargetDir, result.HostPair)
	for _, url := range result.Downloaded {
		fmt.Printf("  fetched %s\n", url)
	}
	return nil
}

func printBuildHelp() {
	fmt.Println("Usage: binforge build [options] [manifest]")
	fmt.Println()
	fmt.Println("Runs the build described by a Lua manifest (default: ./binforge.lua):")
	fmt.Println("downloads the sources matching this host, extracts them into a")
	fmt.Println("temporary build directory, runs the command pipeline there, and")
	fmt.Println("moves the results into the target directory.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --silent, -s    Suppress pipeline command output")
	fmt.Println("  --verbose, -v   Show full error details")
	fmt.Println("  --help, -h      Show this help")
}
