package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/matsen/papernet/internal/graph"
	"gopkg.in/yaml.v3"
)

// Document returns the node-link form of g with attrs as graph attributes.
func Document(g *graph.Graph, attrs map[string]string) graph.NodeLink {
	doc := g.NodeLink()
	if len(attrs) > 0 {
		doc.Attrs = attrs
	}
	return doc
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc graph.NodeLink) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("writing JSON graph: %w", err)
	}
	return nil
}

// WriteYAML writes doc as YAML.
func WriteYAML(w io.Writer, doc graph.NodeLink) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("writing YAML graph: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("writing YAML graph: %w", err)
	}
	return nil
}

// WriteFile creates path and fills it with write. Parent directories are
// created as needed.
func WriteFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
