// Package viz renders a citation graph as an interactive HTML page.
package viz

// GraphData contains all data needed to render the visualization.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node represents a document in the graph.
type Node struct {
	ID string `json:"id"`

	// Display
	Label string `json:"label"` // "Smith et al., 2020"
	Seed  bool   `json:"seed"`

	// Tooltip and sidebar fields
	Title   string `json:"title"`
	Authors string `json:"authors,omitempty"` // Surnames joined with ", "
	Year    int    `json:"year,omitempty"`
	Journal string `json:"journal,omitempty"`
	URL     string `json:"url,omitempty"` // DOI resolver link; empty for placeholders
	Roles   string `json:"roles,omitempty"`

	// Sizing
	ConnectionCount int `json:"connectionCount"`
}

// Edge is a citation: Source cites Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// IsEmpty returns true if the graph has no nodes.
func (g *GraphData) IsEmpty() bool {
	return len(g.Nodes) == 0
}
