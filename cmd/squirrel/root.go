// Package main provides the entry point for the Squirrel CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for Squirrel.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "squirrel",
		Short: "Crawl frontier for structured-data web crawling",
		Long: `Squirrel is a crawl frontier for structured-data web crawling.
It tracks which resources are already known, decides what should be
crawled next, and enforces per-address politeness for a fleet of fetch
workers.

The serve command runs the frontier and its HTTP API. Workers submit
discovered references, claim batches of crawl work, and report
completions over JSON endpoints.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
