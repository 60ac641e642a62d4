// Package main provides the pnet CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/papernet/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

var (
	verboseLogs bool
	quietLogs   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pnet",
	Short: "Citation network crawler",
	Long: `pnet builds a citation network around a seed paper.

Starting from a DOI, it follows references (via Crossref) and citing papers
(via OpenCitations) breadth-first, under depth and size budgets, and writes
the result as node-link JSON, YAML, BibTeX or an interactive HTML page.

Fetched records are cached in .papernet/ so repeated crawls are cheap.
All commands output JSON by default; use --human for text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// A missing .env is fine.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verboseLogs, "verbose", "v", false, "Debug logging in console format")
	rootCmd.PersistentFlags().BoolVarP(&quietLogs, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.Version = Version
}

// mustLogger builds the process logger or exits.
func mustLogger() *zap.Logger {
	logger, err := logging.New(logging.Options{Verbose: verboseLogs, Quiet: quietLogs})
	if err != nil {
		exitWithError(ExitConfigError, "creating logger: %v", err)
	}
	return logger
}
