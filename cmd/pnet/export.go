package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/papernet/internal/graph"
)

var exportOutputs = newOutputFlags()

func init() {
	exportOutputs.register(exportCmd, nil)
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <graph.json>",
	Short: "Render a saved graph in other formats",
	Long: `Render a node-link JSON graph written by crawl as YAML, HTML, BibTeX
or normalized JSON. At least one output flag is required.

Examples:
  pnet export graph.json --html graph.html
  pnet export graph.json --bibtex refs.bib --yaml graph.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	if len(exportOutputs.requested()) == 0 {
		return fmt.Errorf("no output requested (use --json, --yaml, --html or --bibtex)")
	}

	doc, err := graph.LoadNodeLink(args[0])
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	g := graph.FromNodeLink(doc)

	written, err := writeOutputs(g, doc.Attrs, exportOutputs)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		for _, kind := range outputKinds {
			if path, ok := written[kind]; ok {
				outputHuman("Wrote %s to %s\n", kind, path)
			}
		}
		return nil
	}
	return outputJSON(written)
}
