// Package ingest reads the source layers a city analysis needs: district and
// land-use polygons (GeoJSON or shapefile), categorized point features
// (GeoJSON or Parquet with WKB geometry), and district population tables
// (CSV or XLSX). Malformed records are skipped with a warning and counted;
// only structural failures (unreadable file, missing required columns) abort
// a load.
package ingest

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

// Stats counts what a loader did with the records it saw. Skipped maps a
// short reason code to the number of records dropped for that reason.
type Stats struct {
	Read    int
	Loaded  int
	Skipped map[string]int
}

func newStats() *Stats {
	return &Stats{Skipped: make(map[string]int)}
}

func (s *Stats) skip(reason string) {
	s.Skipped[reason]++
}

// SkippedTotal returns the number of records dropped across all reasons.
func (s *Stats) SkippedTotal() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

// decodeCharset wraps r with a decoder for the named charset. UTF-8 and the
// empty string pass through unchanged. Charset names follow the WHATWG index
// (iso-8859-1, windows-1252, ...).
func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return r, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, errkind.New(errkind.MalformedInput, eris.Wrapf(err, "ingest: unsupported charset %q", charset))
	}
	return enc.NewDecoder().Reader(r), nil
}
