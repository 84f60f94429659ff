package main

import (
	"fmt"
	"os"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version":
			fmt.Printf("binforge %s\n", Version)
			return
		case "build":
			if err := runBuild(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Println("binforge - fetch, build, and install binary distributions")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  binforge build [manifest]   Run the build described by a Lua manifest")
	fmt.Println("                              (default: ./binforge.lua)")
	fmt.Println("  binforge --version          Show version information")
	fmt.Println()
	fmt.Println("Build options:")
	fmt.Println("  --silent, -s                Suppress pipeline command output")
	fmt.Println("  --verbose, -v               Show full error details")
}
