// Package main provides the CLI entry point for the drone application.
package main

import (
	"fmt"
	"os"

	"github.com/harrison/drones/internal/cmd"
)

// version and repoRoot are injected at build time via -ldflags.
var (
	version  = "dev"
	repoRoot = ""
)

func main() {
	cmd.Version = version
	cmd.HiveRepoRoot = repoRoot

	rootCmd := cmd.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
