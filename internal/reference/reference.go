// Package reference defines the core domain types for documents in a citation graph.
package reference

// UnknownTitle is the display title for a document whose metadata could not be resolved.
const UnknownTitle = "Unknown"

// Metadata describes a document as resolved from a metadata source.
type Metadata struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"` // Surnames, in publication order
	Year    int      `json:"year,omitempty"`
	Venue   string   `json:"journal"` // Journal, conference, or preprint server
}

// Resolved reports whether the metadata carries a real title.
func (m *Metadata) Resolved() bool {
	return m != nil && m.Title != "" && m.Title != UnknownTitle
}

// FirstAuthor returns the first author's surname, or "" if there are none.
func (m Metadata) FirstAuthor() string {
	if len(m.Authors) == 0 {
		return ""
	}
	return m.Authors[0]
}

// Unknown returns the placeholder metadata used for unresolved documents.
func Unknown() Metadata {
	return Metadata{Title: UnknownTitle, Authors: []string{}}
}

// Role is the discovery relationship that caused a document to enter the graph.
type Role string

const (
	RoleInput     Role = "input"     // The crawl seed
	RoleReference Role = "reference" // Cited by the originating document
	RoleCitation  Role = "citation"  // Cites the originating document
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleInput, RoleReference, RoleCitation:
		return true
	}
	return false
}

// Discovery records one path by which a document was reached.
// From is empty for the seed.
type Discovery struct {
	Role Role   `json:"role"`
	From string `json:"from,omitempty"`
}
