package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	yearRe       = regexp.MustCompile(`\d{4}`)
	// groupedRe matches German-style grouped numbers: 1.234 or 1.234.567,89.
	groupedRe = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+(,\d+)?$`)
)

// NormalizeName turns a source district name into the canonical join key:
// NFC-composed, inner whitespace collapsed to single spaces, trimmed.
// "Bad  Cannstatt " and "Bad Cannstatt" normalize to the same key.
func NormalizeName(s string) string {
	s = norm.NFC.String(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// totalMarkers are the values a statistics table uses for an "all groups"
// row. Matching is exact (after fold and trim) so a district name that
// merely contains one of these words is not mistaken for a total row.
var totalMarkers = map[string]struct{}{
	"insgesamt": {},
	"total":     {},
	"summe":     {},
	"alle":      {},
}

// IsTotalMarker reports whether the value denotes an "all groups" total row.
func IsTotalMarker(s string) bool {
	_, ok := totalMarkers[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// YearOf extracts the first 4-digit year from a date string in any common
// layout ("31.12.2023", "2023-12-31", "Stand 2023").
func YearOf(s string) (int, bool) {
	m := yearRe.FindString(s)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// ParseNumber parses a numeric cell, accepting German formatting: grouped
// thousands with dots (1.234), decimal commas (12,5), and non-breaking
// spaces. Plain decimal-point numbers parse unchanged.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, errkind.New(errkind.MalformedInput, eris.New("ingest: empty numeric cell"))
	}

	if groupedRe.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errkind.New(errkind.MalformedInput, eris.Wrapf(err, "ingest: parse number %q", s))
	}
	return v, nil
}
