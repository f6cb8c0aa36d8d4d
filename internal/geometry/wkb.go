package geometry

import (
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

const sridWGS84 = 4326

// EncodePoint converts a lng/lat point to EWKB bytes with SRID 4326.
func EncodePoint(p orb.Point) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{p[0], p[1]}).SetSRID(sridWGS84)

	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode point WKB")
	}
	return data, nil
}

// EncodeMultiPolygon converts a multipolygon to EWKB bytes with SRID 4326.
// Returns nil, nil for an empty multipolygon.
func EncodeMultiPolygon(mp orb.MultiPolygon) ([]byte, error) {
	if len(mp) == 0 {
		return nil, nil
	}

	g := geom.NewMultiPolygon(geom.XY).SetSRID(sridWGS84)

	for _, poly := range mp {
		gp := geom.NewPolygon(geom.XY)
		for _, ring := range poly {
			lr := geom.NewLinearRingFlat(geom.XY, flatCoords(ring))
			if err := gp.Push(lr); err != nil {
				return nil, eris.Wrap(err, "geometry: push polygon ring")
			}
		}
		if err := g.Push(gp); err != nil {
			return nil, eris.Wrap(err, "geometry: push polygon")
		}
	}

	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode multipolygon WKB")
	}
	return data, nil
}

// Decode parses WKB or EWKB bytes into an orb geometry. Points, polygons
// and multipolygons are supported; polygons come back as multipolygons so
// callers see a single geometry type for areal features.
func Decode(data []byte) (orb.Geometry, error) {
	if len(data) == 0 {
		return nil, errkind.New(errkind.MalformedInput, eris.New("geometry: empty WKB payload"))
	}

	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, errkind.New(errkind.MalformedInput, eris.Wrap(err, "geometry: decode WKB"))
	}

	switch t := g.(type) {
	case *geom.Point:
		c := t.Coords()
		return orb.Point{c[0], c[1]}, nil

	case *geom.Polygon:
		return orb.MultiPolygon{ringsToPolygon(t.Coords())}, nil

	case *geom.MultiPolygon:
		mp := make(orb.MultiPolygon, 0, t.NumPolygons())
		for _, rings := range t.Coords() {
			mp = append(mp, ringsToPolygon(rings))
		}
		return mp, nil

	default:
		return nil, errkind.New(errkind.MalformedInput, eris.Errorf("geometry: unsupported WKB type %T", g))
	}
}

// DecodeMultiPolygon parses WKB bytes that must contain an areal geometry.
func DecodeMultiPolygon(data []byte) (orb.MultiPolygon, error) {
	g, err := Decode(data)
	if err != nil {
		return nil, err
	}
	mp := PolygonOf(g)
	if mp == nil {
		return nil, errkind.New(errkind.MalformedInput, eris.Errorf("geometry: expected areal WKB, got %T", g))
	}
	return mp, nil
}

func ringsToPolygon(rings [][]geom.Coord) orb.Polygon {
	poly := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(orb.Ring, 0, len(ring))
		for _, c := range ring {
			r = append(r, orb.Point{c[0], c[1]})
		}
		poly = append(poly, r)
	}
	return poly
}

// flatCoords converts a ring to flat coordinate pairs for go-geom.
func flatCoords(ring orb.Ring) []float64 {
	flat := make([]float64, 0, len(ring)*2)
	for _, pt := range ring {
		flat = append(flat, pt[0], pt[1])
	}
	return flat
}
