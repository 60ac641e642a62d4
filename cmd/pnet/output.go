package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	warnColor    = color.New(color.FgYellow)
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// CrawlResponse is the response for the crawl command.
type CrawlResponse struct {
	RunID         string            `json:"run_id"`
	Seed          string            `json:"seed"`
	Nodes         int               `json:"nodes"`
	Edges         int               `json:"edges"`
	Batches       int               `json:"batches"`
	Dropped       int               `json:"dropped"`
	Pending       int               `json:"pending"`
	BudgetReached bool              `json:"budget_reached"`
	Interrupted   bool              `json:"interrupted,omitempty"`
	Outputs       map[string]string `json:"outputs,omitempty"`
}

// CacheInfoResponse is the response for cache info.
type CacheInfoResponse struct {
	Backend     string   `json:"backend"`
	Dir         string   `json:"dir"`
	Metadata    int      `json:"metadata"`
	Citations   int      `json:"citations"`
	MetadataIDs []string `json:"metadata_ids,omitempty"`
	CitationIDs []string `json:"citation_ids,omitempty"`
}

// MigrateResponse is the response for cache migrate.
type MigrateResponse struct {
	Status    string `json:"status"`
	Path      string `json:"path"`
	Metadata  int    `json:"metadata"`
	Citations int    `json:"citations"`
}

// printCrawlHuman prints a crawl summary.
func printCrawlHuman(r CrawlResponse) {
	headingColor.Printf("Crawl of %s\n", r.Seed)
	outputHuman("  Nodes:   %d\n", r.Nodes)
	outputHuman("  Edges:   %d\n", r.Edges)
	outputHuman("  Batches: %d\n", r.Batches)
	if r.BudgetReached {
		warnColor.Printf("  Node budget reached (%d dropped, %d pending)\n", r.Dropped, r.Pending)
	}
	if r.Interrupted {
		warnColor.Printf("  Interrupted; partial graph written\n")
	}
	for _, kind := range outputKinds {
		if path, ok := r.Outputs[kind]; ok {
			outputHuman("  %-7s  %s\n", kind+":", path)
		}
	}
}
