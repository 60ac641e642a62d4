package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/papernet/internal/export"
	"github.com/matsen/papernet/internal/graph"
	"github.com/matsen/papernet/internal/viz"
)

// Output kinds, in the order they are written and reported.
const (
	OutputJSON   = "json"
	OutputYAML   = "yaml"
	OutputHTML   = "html"
	OutputBibTeX = "bibtex"
)

var outputKinds = []string{OutputJSON, OutputYAML, OutputHTML, OutputBibTeX}

// outputFlags holds the per-kind output paths shared by crawl and export.
// An empty path skips that kind.
type outputFlags struct {
	paths  map[string]*string
	layout string
	title  string
}

func newOutputFlags() *outputFlags {
	o := &outputFlags{paths: make(map[string]*string)}
	for _, kind := range outputKinds {
		o.paths[kind] = new(string)
	}
	return o
}

// register adds the output flags to cmd. defaults maps a kind to its
// default path.
func (o *outputFlags) register(cmd *cobra.Command, defaults map[string]string) {
	f := cmd.Flags()
	f.StringVar(o.paths[OutputJSON], "json", defaults[OutputJSON], "Node-link JSON output file")
	f.StringVar(o.paths[OutputYAML], "yaml", defaults[OutputYAML], "Node-link YAML output file")
	f.StringVar(o.paths[OutputHTML], "html", defaults[OutputHTML], "Interactive HTML output file")
	f.StringVar(o.paths[OutputBibTeX], "bibtex", defaults[OutputBibTeX], "BibTeX output file")
	f.StringVar(&o.layout, "layout", "force", "HTML layout: "+strings.Join(viz.ValidLayouts, ", "))
	f.StringVar(&o.title, "title", "", "HTML page title")
}

// requested returns the kinds with a non-empty path.
func (o *outputFlags) requested() map[string]string {
	out := make(map[string]string)
	for _, kind := range outputKinds {
		if p := *o.paths[kind]; p != "" {
			out[kind] = p
		}
	}
	return out
}

// writeOutputs renders g into every requested format and returns the
// written paths by kind.
func writeOutputs(g *graph.Graph, attrs map[string]string, o *outputFlags) (map[string]string, error) {
	paths := o.requested()
	for _, kind := range outputKinds {
		path, ok := paths[kind]
		if !ok {
			continue
		}
		write, err := writerFor(kind, g, attrs, o)
		if err != nil {
			return nil, err
		}
		if err := export.WriteFile(path, write); err != nil {
			return nil, fmt.Errorf("writing %s output: %w", kind, err)
		}
	}
	return paths, nil
}

func writerFor(kind string, g *graph.Graph, attrs map[string]string, o *outputFlags) (func(io.Writer) error, error) {
	switch kind {
	case OutputJSON:
		doc := export.Document(g, attrs)
		return func(w io.Writer) error { return export.WriteJSON(w, doc) }, nil
	case OutputYAML:
		doc := export.Document(g, attrs)
		return func(w io.Writer) error { return export.WriteYAML(w, doc) }, nil
	case OutputBibTeX:
		return func(w io.Writer) error { return export.WriteBibTeX(w, g) }, nil
	case OutputHTML:
		html, err := viz.GenerateHTML(viz.BuildGraphData(g), viz.HTMLOptions{Layout: o.layout, Title: o.title})
		if err != nil {
			return nil, fmt.Errorf("generating HTML: %w", err)
		}
		return func(w io.Writer) error {
			_, err := io.WriteString(w, html)
			return err
		}, nil
	}
	return nil, fmt.Errorf("unknown output kind %q", kind)
}
