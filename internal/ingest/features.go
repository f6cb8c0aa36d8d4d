package ingest

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/classify"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"

	"github.com/rotisserie/eris"
)

// featureIDProps are the property keys tried in order when looking for a
// stable feature ID.
var featureIDProps = []string{"id", "osm_id", "@id", "feature_id"}

// LoadPointFeatures reads a feature layer and categorizes every record. When
// rules is non-nil the cascade decides the category; otherwise the amenity/
// shop/leisure tag precedence applies. Polygonal features collapse to their
// centroid so platform outlines and building footprints still count as
// points.
func LoadPointFeatures(path, layer string, rules []classify.Rule) ([]model.PointFeature, *Stats, error) {
	table, _, err := LoadTable(path)
	if err != nil {
		return nil, nil, err
	}

	stats := newStats()
	out := make([]model.PointFeature, 0, len(table.Features))

	for i, f := range table.Features {
		stats.Read++

		pt, ok := pointOf(f.Geometry)
		if !ok {
			stats.skip("no_point")
			continue
		}

		var category string
		if rules != nil {
			category, _ = classify.Classify(rules, f.Properties)
		} else {
			category = classify.AmenityCategory(f.Properties)
		}

		out = append(out, model.PointFeature{
			ID:       featureID(f.Properties, layer, i),
			Name:     f.Properties["name"],
			Category: category,
			Layer:    layer,
			Lat:      pt[1],
			Lng:      pt[0],
			Tags:     f.Properties,
		})
		stats.Loaded++
	}

	if len(out) == 0 {
		return nil, stats, errkind.New(errkind.NoData, eris.Errorf("ingest: no point features in %s", path))
	}
	logSkipped(path, stats)
	return out, stats, nil
}

// pointOf reduces any supported geometry to a representative point.
func pointOf(g orb.Geometry) (orb.Point, bool) {
	switch v := g.(type) {
	case orb.Point:
		return v, true
	case orb.MultiPoint:
		if len(v) > 0 {
			return v[0], true
		}
		return orb.Point{}, false
	case orb.LineString, orb.MultiLineString, orb.Polygon, orb.MultiPolygon:
		c, _ := planar.CentroidArea(g)
		return c, true
	default:
		return orb.Point{}, false
	}
}

func featureID(props map[string]string, layer string, index int) string {
	for _, key := range featureIDProps {
		if v := props[key]; v != "" {
			return v
		}
	}
	return fmt.Sprintf("%s-%d", layer, index)
}
