// Package opencitations decodes citation lists from the OpenCitations COCI index.
package opencitations

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/matsen/papernet/internal/reference"
)

// DefaultBaseURL is the COCI REST API base URL.
const DefaultBaseURL = "https://opencitations.net/index/coci/api/v1"

// Citation is one record of a citations response.
type Citation struct {
	OCI    reference.FlexString `json:"oci,omitempty"`
	Citing reference.FlexString `json:"citing,omitempty"`
	Cited  reference.FlexString `json:"cited,omitempty"`
}

// CitationsURL returns the citations endpoint for a DOI.
func CitationsURL(baseURL, doi string) string {
	segments := strings.Split(doi, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(baseURL, "/") + "/citations/" + strings.Join(segments, "/")
}

// ParseCiting extracts the citing-document DOIs from a citations response,
// in response order, keeping at most maxCount (all when maxCount < 0).
// Records without a citing identifier are skipped. It reports false when
// raw is not a JSON array.
func ParseCiting(raw json.RawMessage, maxCount int) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}

	citing := make([]string, 0, len(items))
	for _, item := range items {
		if maxCount >= 0 && len(citing) >= maxCount {
			break
		}
		var c Citation
		if err := json.Unmarshal(item, &c); err != nil {
			continue
		}
		if doi := citingDOI(c.Citing.String()); doi != "" {
			citing = append(citing, doi)
		}
	}
	return citing, true
}

// citingDOI picks the DOI out of a citing field. Newer index versions send
// several space-separated prefixed identifiers ("omid:br/1 doi:10.1/x").
func citingDOI(field string) string {
	parts := strings.Fields(field)
	if len(parts) <= 1 {
		return strings.TrimPrefix(field, "doi:")
	}
	for _, p := range parts {
		if strings.HasPrefix(p, "doi:") {
			return strings.TrimPrefix(p, "doi:")
		}
	}
	return ""
}
