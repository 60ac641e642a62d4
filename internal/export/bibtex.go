// Package export writes a crawled citation graph to files.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/matsen/papernet/internal/docid"
	"github.com/matsen/papernet/internal/graph"
	"github.com/matsen/papernet/internal/reference"
)

// Fallbacks for fields a node does not have.
const (
	unknownAuthor  = "Unknown"
	unknownTitle   = "Unknown Title"
	unknownJournal = "Unknown Journal"
	unknownYear    = "????"
)

// BibTeXKey returns the citation key for a document id.
func BibTeXKey(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}

// ToBibTeX converts a graph node to a BibTeX entry.
func ToBibTeX(n graph.Node) string {
	md := n.Metadata
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", determineEntryType(md), BibTeXKey(n.ID)))

	title := md.Title
	if title == "" || title == reference.UnknownTitle {
		title = unknownTitle
	}
	b.WriteString(fmt.Sprintf("  title   = {%s},\n", escapeLatex(title)))

	authors := unknownAuthor
	if len(md.Authors) > 0 {
		authors = strings.Join(md.Authors, " and ")
	}
	b.WriteString(fmt.Sprintf("  author  = {%s},\n", escapeLatex(authors)))

	venue := md.Venue
	if venue == "" {
		venue = unknownJournal
	}
	fieldName := "journal"
	if determineEntryType(md) == "inproceedings" {
		fieldName = "booktitle"
	}
	b.WriteString(fmt.Sprintf("  %-7s = {%s},\n", fieldName, escapeLatex(venue)))

	year := unknownYear
	if md.Year != 0 {
		year = fmt.Sprintf("%d", md.Year)
	}
	b.WriteString(fmt.Sprintf("  year    = {%s},\n", year))

	// Placeholder ids are not DOIs
	if !docid.IsPlaceholder(n.ID) {
		b.WriteString(fmt.Sprintf("  doi     = {%s},\n", n.ID))
	}

	b.WriteString("}")
	return b.String()
}

// WriteBibTeX writes one entry per node, separated by blank lines.
func WriteBibTeX(w io.Writer, g *graph.Graph) error {
	nodes := g.Nodes()
	entries := make([]string, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, ToBibTeX(n))
	}
	if _, err := io.WriteString(w, strings.Join(entries, "\n\n")+"\n"); err != nil {
		return fmt.Errorf("writing BibTeX: %w", err)
	}
	return nil
}

// determineEntryType returns the BibTeX entry type for a document.
func determineEntryType(md reference.Metadata) string {
	venue := strings.ToLower(md.Venue)

	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}

	return "article"
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
