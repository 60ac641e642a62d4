// Package pdf finds the DOI printed in a paper's PDF, so a crawl can be
// seeded from a file instead of an identifier.
package pdf

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxPages is how many leading pages are searched for a DOI.
const DefaultMaxPages = 3

// ErrNoDOI is returned when no DOI appears in the searched pages.
var ErrNoDOI = errors.New("no DOI found in PDF")

// DOI pattern: 10.XXXX/... where XXXX is 4-9 digits
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// ExtractDOI returns the first DOI in the first maxPages pages of the PDF
// at filePath.
func ExtractDOI(filePath string, maxPages int) (string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()
	return searchPages(r, maxPages)
}

// ExtractDOIReader is ExtractDOI for a PDF held in memory or an open file.
func ExtractDOIReader(ra io.ReaderAt, size int64, maxPages int) (string, error) {
	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return "", fmt.Errorf("reading PDF: %w", err)
	}
	return searchPages(r, maxPages)
}

func searchPages(r *pdf.Reader, maxPages int) (string, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	maxPages = min(maxPages, r.NumPage())

	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		if doi := findDOI(text); doi != "" {
			return doi, nil
		}
	}
	return "", ErrNoDOI
}

// findDOI finds a DOI in text.
func findDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return match
		}
	}
	return ""
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	// Must have something after the /
	slashIdx := strings.Index(doi, "/")
	return slashIdx != -1 && slashIdx < len(doi)-1
}
