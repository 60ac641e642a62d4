package viz

import (
	"fmt"
	"strings"

	"github.com/matsen/papernet/internal/docid"
	"github.com/matsen/papernet/internal/graph"
	"github.com/matsen/papernet/internal/reference"
)

// doiResolver prefixes DOIs to form links.
const doiResolver = "https://doi.org/"

// BuildGraphData converts a crawled graph into visualization data.
func BuildGraphData(g *graph.Graph) *GraphData {
	connectionCounts := make(map[string]int)
	edges := g.Edges()
	out := &GraphData{
		Nodes: make([]Node, 0),
		Edges: make([]Edge, 0, len(edges)),
	}
	for _, e := range edges {
		connectionCounts[e.Source]++
		connectionCounts[e.Target]++
		out.Edges = append(out.Edges, Edge{Source: e.Source, Target: e.Target})
	}

	for _, n := range g.Nodes() {
		out.Nodes = append(out.Nodes, Node{
			ID:              n.ID,
			Label:           NodeLabel(n.Metadata),
			Seed:            n.Highlight,
			Title:           n.Metadata.Title,
			Authors:         strings.Join(n.Metadata.Authors, ", "),
			Year:            n.Metadata.Year,
			Journal:         n.Metadata.Venue,
			URL:             DOIURL(n.ID),
			Roles:           formatRoles(n.Roles),
			ConnectionCount: connectionCounts[n.ID],
		})
	}
	return out
}

// NodeLabel formats a short label: first author, "et al." when there are
// several, and the year.
func NodeLabel(md reference.Metadata) string {
	author := md.FirstAuthor()
	if author == "" {
		author = reference.UnknownTitle
	}
	if len(md.Authors) > 1 {
		author += " et al."
	}
	year := "n.d."
	if md.Year != 0 {
		year = fmt.Sprintf("%d", md.Year)
	}
	return author + ", " + year
}

// DOIURL returns the resolver link for a formal id, or "" for a placeholder.
func DOIURL(id string) string {
	if id == "" || docid.IsPlaceholder(id) {
		return ""
	}
	return doiResolver + id
}

func formatRoles(roles []reference.Discovery) string {
	parts := make([]string, 0, len(roles))
	for _, d := range roles {
		if d.From == "" {
			parts = append(parts, string(d.Role))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s of %s", d.Role, d.From))
	}
	return strings.Join(parts, "; ")
}
