// Package geometry holds the shared geometry math: conversions between the
// GeoJSON-facing types and the clipping library, metric reprojection, WKB
// codec and geodesic helpers.
package geometry

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const earthRadiusM = 6371000.0

// ToGeomPolygon converts an orb polygon to the clipping library's type.
func ToGeomPolygon(p orb.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, len(p))
	for _, ring := range p {
		path := make([]geom.Point, 0, len(ring))
		for _, pt := range ring {
			path = append(path, geom.Point{X: pt[0], Y: pt[1]})
		}
		out = append(out, path)
	}
	return out
}

// ToGeomMultiPolygon converts an orb multipolygon.
func ToGeomMultiPolygon(mp orb.MultiPolygon) geom.MultiPolygon {
	out := make(geom.MultiPolygon, 0, len(mp))
	for _, p := range mp {
		out = append(out, ToGeomPolygon(p))
	}
	return out
}

// FromGeomPolygon converts back to orb.
func FromGeomPolygon(p geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, len(p))
	for _, path := range p {
		ring := make(orb.Ring, 0, len(path))
		for _, pt := range path {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		out = append(out, ring)
	}
	return out
}

// PolygonOf normalizes any polygonal orb geometry to a multipolygon.
// Returns nil for non-polygonal input.
func PolygonOf(g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}
	case orb.MultiPolygon:
		return v
	default:
		return nil
	}
}

// Contains reports whether the point lies inside the multipolygon
// (planar test in degree space, matching the rasterizer's contract).
func Contains(mp orb.MultiPolygon, pt orb.Point) bool {
	return planar.MultiPolygonContains(mp, pt)
}

// Haversine returns the great-circle distance in meters between two
// (lat, lng) points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BBoxAround returns the geographic bounding box of the circle with the
// given radius (meters) around a (lat, lng) center. Used to prefilter
// spatial index queries before the exact haversine test.
func BBoxAround(lat, lng, radiusM float64) orb.Bound {
	dLat := radiusM / earthRadiusM * 180 / math.Pi
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-12 {
		cos = 1e-12
	}
	dLng := dLat / cos
	return orb.Bound{
		Min: orb.Point{lng - dLng, lat - dLat},
		Max: orb.Point{lng + dLng, lat + dLat},
	}
}
