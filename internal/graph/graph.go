// Package graph holds the citation graph assembled by a crawl.
package graph

import (
	"github.com/matsen/papernet/internal/docid"
	"github.com/matsen/papernet/internal/reference"
)

// Node is a document in the graph.
type Node struct {
	ID        string
	Metadata  reference.Metadata
	Roles     []reference.Discovery // Every discovery path, in application order
	Highlight bool                  // Set once any discovery had role input
}

// Edge is a directed citation: Source cites Target.
type Edge struct {
	Source string
	Target string
}

// Graph is a directed graph keyed by document id. Nodes and edges keep
// insertion order. A Graph is not safe for concurrent use.
type Graph struct {
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[Edge]struct{}
	edgeOrder []Edge
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[Edge]struct{}),
	}
}

// Has reports whether id is a node.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of the node for id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// UpsertNode records a discovery of id. A new node takes md, or Unknown
// metadata when md is nil. An existing node gets the discovery appended
// and adopts md only if its own metadata is unresolved. It reports
// whether the node was created.
func (g *Graph) UpsertNode(id string, role reference.Role, from string, md *reference.Metadata) bool {
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{ID: id, Metadata: nodeMetadata(id, md)}
		g.nodes[id] = n
		g.nodeOrder = append(g.nodeOrder, id)
	} else if !n.Metadata.Resolved() && md.Resolved() {
		n.Metadata = *md
	}

	n.Roles = append(n.Roles, reference.Discovery{Role: role, From: from})
	if role == reference.RoleInput {
		n.Highlight = true
	}
	return !ok
}

// nodeMetadata returns the metadata a new node starts with. Placeholder
// ids without a resolved title get one derived from the id.
func nodeMetadata(id string, md *reference.Metadata) reference.Metadata {
	out := reference.Unknown()
	if md != nil {
		out = *md
		if out.Authors == nil {
			out.Authors = []string{}
		}
	}
	if !out.Resolved() && docid.IsPlaceholder(id) {
		out.Title = docid.TitleFromPlaceholder(id)
	}
	if out.Title == "" {
		out.Title = reference.UnknownTitle
	}
	return out
}

// AddDirectedEdge inserts source→target. Self-edges are kept. It reports
// whether the edge was new.
func (g *Graph) AddDirectedEdge(source, target string) bool {
	e := Edge{Source: source, Target: target}
	if _, ok := g.edges[e]; ok {
		return false
	}
	g.edges[e] = struct{}{}
	g.edgeOrder = append(g.edgeOrder, e)
	return true
}

// HasEdge reports whether source→target exists.
func (g *Graph) HasEdge(source, target string) bool {
	_, ok := g.edges[Edge{Source: source, Target: target}]
	return ok
}

// Link adds the edge implied by discovering id from from with role.
// A reference points from the parent to id; a citation points from id to
// the parent. The input role and an empty from add nothing.
func (g *Graph) Link(role reference.Role, from, id string) bool {
	if from == "" {
		return false
	}
	switch role {
	case reference.RoleReference:
		return g.AddDirectedEdge(from, id)
	case reference.RoleCitation:
		return g.AddDirectedEdge(id, from)
	}
	return false
}

// Size returns the node and edge counts.
func (g *Graph) Size() (nodes, edges int) {
	return len(g.nodes), len(g.edgeOrder)
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id].clone())
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edgeOrder))
	copy(out, g.edgeOrder)
	return out
}

func (n *Node) clone() Node {
	c := *n
	c.Roles = append([]reference.Discovery(nil), n.Roles...)
	c.Metadata.Authors = append([]string{}, n.Metadata.Authors...)
	return c
}
