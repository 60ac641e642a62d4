// Package crossref decodes Crossref work records into document metadata.
//
// Records are decoded field by field: a field with an unexpected shape is
// treated as absent rather than failing the whole record.
package crossref

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/matsen/papernet/internal/reference"
)

// DefaultBaseURL is the Crossref REST API base URL.
const DefaultBaseURL = "https://api.crossref.org"

// Author is an author entry of a work record.
type Author struct {
	Family reference.FlexString `json:"family,omitempty"`
	Given  reference.FlexString `json:"given,omitempty"`
	Name   reference.FlexString `json:"name,omitempty"`
}

// Surname returns the family name, falling back to the literal name.
func (a Author) Surname() string {
	if s := a.Family.String(); s != "" {
		return s
	}
	return a.Name.String()
}

// DateParts is Crossref's nested date structure: {"date-parts": [[year, month, day]]}.
type DateParts struct {
	Parts [][]reference.FlexString `json:"date-parts,omitempty"`
}

// Year returns the first element of the first date, or 0.
func (d DateParts) Year() int {
	if len(d.Parts) == 0 || len(d.Parts[0]) == 0 {
		return 0
	}
	return reference.ParseYear(d.Parts[0][0].String())
}

// Work is the typed view of a Crossref work record.
type Work struct {
	DOI            string
	Title          string
	Authors        []Author
	Issued         DateParts
	ContainerTitle string
	References     []reference.RawReference
}

// WorkURL returns the metadata endpoint for a DOI.
func WorkURL(baseURL, doi string) string {
	segments := strings.Split(doi, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(baseURL, "/") + "/works/" + strings.Join(segments, "/")
}

// ParseWork decodes a metadata response. A nested "message" envelope is
// unwrapped if present. It returns nil when raw is not a JSON object.
func ParseWork(raw json.RawMessage) *Work {
	fields := decodeObject(raw)
	if fields == nil {
		return nil
	}
	if msg, ok := fields["message"]; ok {
		fields = decodeObject(msg)
		if fields == nil {
			return nil
		}
	}

	var w Work
	var s reference.FlexString
	if decodeField(fields, "DOI", &s) {
		w.DOI = s.String()
	}
	s = ""
	if decodeField(fields, "title", &s) {
		w.Title = s.String()
	}
	decodeField(fields, "author", &w.Authors)
	decodeField(fields, "issued", &w.Issued)
	s = ""
	if decodeField(fields, "container-title", &s) {
		w.ContainerTitle = s.String()
	}
	decodeField(fields, "reference", &w.References)
	return &w
}

// Metadata converts the work into document metadata.
func (w *Work) Metadata() reference.Metadata {
	meta := reference.Metadata{
		Title:   w.Title,
		Authors: make([]string, 0, len(w.Authors)),
		Year:    w.Issued.Year(),
		Venue:   w.ContainerTitle,
	}
	for _, a := range w.Authors {
		if name := a.Surname(); name != "" {
			meta.Authors = append(meta.Authors, name)
		}
	}
	return meta
}

// PlaceholderResponse builds a response envelope for a reference that has no
// DOI, in the same shape the API returns, so it can sit in the metadata cache
// next to fetched records.
func PlaceholderResponse(title string, authors []string, year int) json.RawMessage {
	msg := map[string]any{
		"title":           []string{title},
		"author":          placeholderAuthors(authors),
		"issued":          map[string]any{},
		"container-title": []string{},
	}
	if year != 0 {
		msg["issued"] = map[string]any{"date-parts": [][]int{{year}}}
	}
	data, err := json.Marshal(map[string]any{"message": msg})
	if err != nil {
		// Only strings and ints above; Marshal cannot fail.
		panic(err)
	}
	return data
}

func placeholderAuthors(authors []string) []map[string]string {
	out := make([]map[string]string, 0, len(authors))
	for _, a := range authors {
		out = append(out, map[string]string{"family": a})
	}
	return out
}

func decodeObject(raw json.RawMessage) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

// decodeField decodes fields[key] into dst and reports success.
func decodeField(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
