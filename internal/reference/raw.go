package reference

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes a JSON value that a remote source may send as a string,
// a number, or a list of strings. Lists collapse to their first element;
// anything else decodes to "".
type FlexString string

// UnmarshalJSON implements json.Unmarshaler and never fails.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	*f = ""
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		var parts []string
		for _, item := range list {
			var elem FlexString
			_ = elem.UnmarshalJSON(item)
			if elem != "" {
				parts = append(parts, string(elem))
			}
		}
		if len(parts) > 0 {
			*f = FlexString(parts[0])
		}
	}
	return nil
}

// String returns the trimmed value.
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// FlexList decodes a JSON value sent as either a list of strings or a single
// string. Used for reference author fields, which arrive in both shapes.
type FlexList []string

// UnmarshalJSON implements json.Unmarshaler and never fails.
func (f *FlexList) UnmarshalJSON(data []byte) error {
	*f = nil
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		for _, item := range list {
			var elem FlexString
			_ = elem.UnmarshalJSON(item)
			if elem != "" {
				*f = append(*f, string(elem))
			}
		}
		return nil
	}
	var single FlexString
	_ = single.UnmarshalJSON(data)
	if single != "" {
		*f = FlexList{string(single)}
	}
	return nil
}

// RawReference is one entry of a document's reference list as delivered by
// the metadata source. Every field is optional.
type RawReference struct {
	DOI          FlexString `json:"DOI,omitempty"`
	ArticleTitle FlexString `json:"article-title,omitempty"`
	Title        FlexString `json:"title,omitempty"`
	Unstructured FlexString `json:"unstructured,omitempty"`
	JournalTitle FlexString `json:"journal-title,omitempty"`
	Author       FlexList   `json:"author,omitempty"`
	Year         FlexString `json:"year,omitempty"`
	YearSuffix   FlexString `json:"year-suffix,omitempty"`
}

// HasDOI reports whether the reference carries a formal identifier.
func (r RawReference) HasDOI() bool {
	return r.DOI.String() != ""
}

// ParseYear parses a year field, returning 0 when it is not an integer.
func ParseYear(s string) int {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return y
}
