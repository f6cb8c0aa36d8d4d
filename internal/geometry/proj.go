package geometry

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

const longlatProj = "+proj=longlat +datum=WGS84 +no_defs"

// Transform projects geographic (lon, lat degree) geometries into a metric
// CRS for area-correct intersection math.
type Transform struct {
	tr proj.Transformer
}

// NewTransform builds a Transform from a proj4 string, e.g.
// "+proj=utm +zone=32 +ellps=GRS80 +units=m +no_defs" for ETRS89 / UTM 32N.
func NewTransform(projStr string) (*Transform, error) {
	src, err := proj.Parse(longlatProj)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: parse longlat CRS")
	}
	dst, err := proj.Parse(projStr)
	if err != nil {
		return nil, errkind.New(errkind.MalformedInput, eris.Wrapf(err, "geometry: parse CRS %q", projStr))
	}
	tr, err := src.NewTransform(dst)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: build CRS transform")
	}
	return &Transform{tr: tr}, nil
}

// Polygon projects an orb polygon into the metric CRS.
func (t *Transform) Polygon(p orb.Polygon) (geom.Polygon, error) {
	g, err := ToGeomPolygon(p).Transform(t.tr)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: project polygon")
	}
	poly, ok := g.(geom.Polygon)
	if !ok {
		return nil, eris.Errorf("geometry: unexpected projected type %T", g)
	}
	return poly, nil
}

// MultiPolygon projects an orb multipolygon into the metric CRS.
func (t *Transform) MultiPolygon(mp orb.MultiPolygon) (geom.MultiPolygon, error) {
	g, err := ToGeomMultiPolygon(mp).Transform(t.tr)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: project multipolygon")
	}
	out, ok := g.(geom.MultiPolygon)
	if !ok {
		return nil, eris.Errorf("geometry: unexpected projected type %T", g)
	}
	return out, nil
}

// Point projects a single (lon, lat) point into the metric CRS.
func (t *Transform) Point(pt orb.Point) (geom.Point, error) {
	g, err := geom.Point{X: pt[0], Y: pt[1]}.Transform(t.tr)
	if err != nil {
		return geom.Point{}, eris.Wrap(err, "geometry: project point")
	}
	p, ok := g.(geom.Point)
	if !ok {
		return geom.Point{}, eris.Errorf("geometry: unexpected projected type %T", g)
	}
	return p, nil
}

// AreaKm2 returns the metric area of a multipolygon in square kilometers.
func (t *Transform) AreaKm2(mp orb.MultiPolygon) (float64, error) {
	projected, err := t.MultiPolygon(mp)
	if err != nil {
		return 0, err
	}
	return projected.Area() / 1e6, nil
}
