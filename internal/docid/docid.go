// Package docid canonicalizes document identifiers and synthesizes stable
// placeholder identifiers for references that lack a DOI.
package docid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/matsen/papernet/internal/reference"
)

const (
	// PlaceholderPrefix marks identifiers synthesized from title and year.
	PlaceholderPrefix = "title:"

	// DefaultSlugLength bounds the title part of a placeholder identifier.
	DefaultSlugLength = 80

	// UntitledSlug is used when a title normalizes to nothing.
	UntitledSlug = "untitled"
)

var (
	nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)
	yearToken   = regexp.MustCompile(`\b(19|20)\d{2}`)
)

// Canonicalize returns the canonical form of a formal identifier.
// It is idempotent.
func Canonicalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// StripDOIPrefix removes resolver URL and "doi:" prefixes from user input.
// The crawl itself only case-folds; this is for seeds typed or pasted by a user.
func StripDOIPrefix(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			return doi[len(prefix):]
		}
	}
	return doi
}

// IsPlaceholder reports whether id was produced by SynthesizePlaceholder.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// TitleFromPlaceholder derives a readable title from a placeholder identifier.
func TitleFromPlaceholder(id string) string {
	return strings.ReplaceAll(strings.TrimPrefix(id, PlaceholderPrefix), "-", " ")
}

// Slugify lower-cases a title, collapses every run of non-alphanumeric
// characters into one "-", trims separators and truncates to maxLen.
func Slugify(title string, maxLen int) string {
	s := strings.Trim(nonAlnumRun.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	if s == "" {
		return UntitledSlug
	}
	return s
}

// SynthesizePlaceholder builds the identifier for a reference with no DOI.
// References with the same normalized title and year collide on purpose.
// Authors do not take part in the identifier.
func SynthesizePlaceholder(title string, authors []string, year int) string {
	id := PlaceholderPrefix + Slugify(title, DefaultSlugLength)
	if year != 0 {
		id = fmt.Sprintf("%s-%d", id, year)
	}
	return id
}

// ExtractReferenceFields pulls a title, author list and year out of a raw
// reference. It never fails: missing fields come back empty, and callers
// skip the reference when the title is "".
func ExtractReferenceFields(ref reference.RawReference) (title string, authors []string, year int) {
	for _, candidate := range []reference.FlexString{ref.ArticleTitle, ref.Title, ref.Unstructured, ref.JournalTitle} {
		if s := candidate.String(); s != "" {
			title = s
			break
		}
	}

	authors = reference.SplitAuthors(strings.Join(ref.Author, ";"))

	yearField := ref.Year.String()
	if yearField == "" {
		yearField = ref.YearSuffix.String()
	}
	year = reference.ParseYear(yearField)
	if year == 0 {
		if m := yearToken.FindString(ref.Unstructured.String()); m != "" {
			year = reference.ParseYear(m)
		}
	}

	return title, authors, year
}
