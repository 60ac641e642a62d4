package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matsen/papernet/internal/reference"
)

// NodeLink is the serialized form of a graph: a node list and an edge list.
type NodeLink struct {
	Directed   bool              `json:"directed" yaml:"directed"`
	Multigraph bool              `json:"multigraph" yaml:"multigraph"`
	Attrs      map[string]string `json:"graph,omitempty" yaml:"graph,omitempty"`
	Nodes      []LinkNode        `json:"nodes" yaml:"nodes"`
	Edges      []LinkEdge        `json:"edges" yaml:"edges"`
	Links      []LinkEdge        `json:"links,omitempty" yaml:"-"` // Older files name the edge list "links"
}

// LinkNode is a serialized node.
type LinkNode struct {
	ID        string      `json:"id" yaml:"id"`
	DOI       string      `json:"doi,omitempty" yaml:"doi,omitempty"`
	Title     string      `json:"title" yaml:"title"`
	Authors   []string    `json:"authors" yaml:"authors"`
	Year      *int        `json:"year" yaml:"year"`
	Journal   string      `json:"journal" yaml:"journal"`
	Roles     []RoleEntry `json:"roles" yaml:"roles"`
	Highlight bool        `json:"highlight,omitempty" yaml:"highlight,omitempty"`
}

// LinkEdge is a serialized edge.
type LinkEdge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// RoleEntry is a discovery written as a [role, from] pair. From is null
// for the seed.
type RoleEntry [2]*string

// NewRoleEntry encodes a discovery.
func NewRoleEntry(d reference.Discovery) RoleEntry {
	role := string(d.Role)
	e := RoleEntry{&role, nil}
	if d.From != "" {
		from := d.From
		e[1] = &from
	}
	return e
}

// Discovery decodes the entry. It reports false for an unknown role.
func (e RoleEntry) Discovery() (reference.Discovery, bool) {
	if e[0] == nil {
		return reference.Discovery{}, false
	}
	d := reference.Discovery{Role: reference.Role(*e[0])}
	if e[1] != nil {
		d.From = *e[1]
	}
	return d, d.Role.Valid()
}

// NodeLink returns the serialized form of g.
func (g *Graph) NodeLink() NodeLink {
	out := NodeLink{
		Directed: true,
		Nodes:    make([]LinkNode, 0, len(g.nodeOrder)),
		Edges:    make([]LinkEdge, 0, len(g.edgeOrder)),
	}
	for _, n := range g.Nodes() {
		ln := LinkNode{
			ID:        n.ID,
			DOI:       n.ID,
			Title:     n.Metadata.Title,
			Authors:   n.Metadata.Authors,
			Journal:   n.Metadata.Venue,
			Roles:     make([]RoleEntry, 0, len(n.Roles)),
			Highlight: n.Highlight,
		}
		if n.Metadata.Year != 0 {
			year := n.Metadata.Year
			ln.Year = &year
		}
		for _, d := range n.Roles {
			ln.Roles = append(ln.Roles, NewRoleEntry(d))
		}
		out.Nodes = append(out.Nodes, ln)
	}
	for _, e := range g.edgeOrder {
		out.Edges = append(out.Edges, LinkEdge{Source: e.Source, Target: e.Target})
	}
	return out
}

// FromNodeLink rebuilds a graph. Nodes are replayed through their
// recorded discoveries; nodes without any become plain entries. Edges
// whose endpoints are missing are skipped.
func FromNodeLink(nl NodeLink) *Graph {
	g := New()
	for _, ln := range nl.Nodes {
		if ln.ID == "" || g.Has(ln.ID) {
			continue
		}
		md := &reference.Metadata{
			Title:   ln.Title,
			Authors: ln.Authors,
			Venue:   ln.Journal,
		}
		if ln.Year != nil {
			md.Year = *ln.Year
		}

		n := &Node{ID: ln.ID, Metadata: nodeMetadata(ln.ID, md), Highlight: ln.Highlight}
		for _, e := range ln.Roles {
			if d, ok := e.Discovery(); ok {
				n.Roles = append(n.Roles, d)
				if d.Role == reference.RoleInput {
					n.Highlight = true
				}
			}
		}
		g.nodes[n.ID] = n
		g.nodeOrder = append(g.nodeOrder, n.ID)
	}

	edges := nl.Edges
	if len(edges) == 0 {
		edges = nl.Links
	}
	for _, e := range edges {
		if g.Has(e.Source) && g.Has(e.Target) {
			g.AddDirectedEdge(e.Source, e.Target)
		}
	}
	return g
}

// Read decodes a node-link JSON graph.
func Read(r io.Reader) (*Graph, error) {
	nl, err := decode(r)
	if err != nil {
		return nil, err
	}
	return FromNodeLink(nl), nil
}

// Load reads a node-link JSON graph from path.
func Load(path string) (*Graph, error) {
	nl, err := LoadNodeLink(path)
	if err != nil {
		return nil, err
	}
	return FromNodeLink(nl), nil
}

// LoadNodeLink reads the node-link document at path without building a
// graph, keeping its graph attributes.
func LoadNodeLink(path string) (NodeLink, error) {
	f, err := os.Open(path)
	if err != nil {
		return NodeLink{}, fmt.Errorf("opening graph: %w", err)
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) (NodeLink, error) {
	var nl NodeLink
	if err := json.NewDecoder(r).Decode(&nl); err != nil {
		return NodeLink{}, fmt.Errorf("decoding graph: %w", err)
	}
	return nl, nil
}
