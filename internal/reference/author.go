package reference

import (
	"regexp"
	"strings"
)

// authorSeparators splits free-text author strings on ";", ",", "&" and " and ".
var authorSeparators = regexp.MustCompile(`;|,|&| and `)

// SplitAuthors splits a free-text author string into trimmed, non-empty names.
func SplitAuthors(raw string) []string {
	parts := authorSeparators.Split(raw, -1)
	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			authors = append(authors, p)
		}
	}
	return authors
}
