// Package hexgrid wraps the H3 hierarchical hex-grid library behind string
// cell IDs. Nothing else in the repo imports the library directly.
package hexgrid

import (
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/uber/h3-go/v4"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

// MaxResolution is the finest H3 resolution.
const MaxResolution = 15

// CellAt returns the ID of the cell containing the point at the given
// resolution.
func CellAt(lat, lng float64, res int) (string, error) {
	if res < 0 || res > MaxResolution {
		return "", errkind.New(errkind.MalformedInput, eris.Errorf("hexgrid: resolution %d out of range 0..%d", res, MaxResolution))
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res)
	if err != nil {
		return "", errkind.New(errkind.MalformedInput, eris.Wrapf(err, "hexgrid: cell lookup at (%f, %f) res %d", lat, lng, res))
	}
	return cell.String(), nil
}

// CellToPolygon returns the cell's boundary ring in (lon, lat) axis order,
// closed by repeating the first vertex. The library reports vertices as
// (lat, lng); the swap happens here.
func CellToPolygon(id string) (orb.Polygon, error) {
	cell, err := parseCell(id)
	if err != nil {
		return nil, err
	}
	boundary, err := cell.Boundary()
	if err != nil {
		return nil, errkind.New(errkind.MalformedInput, eris.Wrapf(err, "hexgrid: boundary of %s", id))
	}
	ring := make(orb.Ring, 0, len(boundary)+1)
	for _, v := range boundary {
		ring = append(ring, orb.Point{v.Lng, v.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}

// CellCentroid returns the cell's center point.
func CellCentroid(id string) (lat, lng float64, err error) {
	cell, err := parseCell(id)
	if err != nil {
		return 0, 0, err
	}
	ll, err := cell.LatLng()
	if err != nil {
		return 0, 0, errkind.New(errkind.MalformedInput, eris.Wrapf(err, "hexgrid: centroid of %s", id))
	}
	return ll.Lat, ll.Lng, nil
}

// Resolution returns the resolution encoded in the cell ID.
func Resolution(id string) (int, error) {
	cell, err := parseCell(id)
	if err != nil {
		return 0, err
	}
	return cell.Resolution(), nil
}

// Valid reports whether id parses to a valid cell.
func Valid(id string) bool {
	return h3.Cell(h3.IndexFromString(id)).IsValid()
}

func parseCell(id string) (h3.Cell, error) {
	cell := h3.Cell(h3.IndexFromString(id))
	if !cell.IsValid() {
		return 0, errkind.New(errkind.MalformedInput, eris.Errorf("hexgrid: invalid cell id %q", id))
	}
	return cell, nil
}
