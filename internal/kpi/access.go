// Package kpi computes the per-cell accessibility indicators (transit
// gravity, essentials coverage, service diversity) and the per-district
// densities that feed the scoring stage.
package kpi

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/classify"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

// Layer names of the computed KPIs.
const (
	KPIPopulation        = "population"
	KPIPTGravity         = "pt_gravity"
	KPIEssentials        = "essentials_coverage"
	KPIDiversity         = "service_diversity"
	KPIPopulationDensity = "population_density"
	KPIStopDensity       = "pt_stop_density"
	KPIGreenShare        = "green_share"
)

// Near pairs a feature with its haversine distance from a query point.
type Near struct {
	Feature  model.PointFeature
	Distance float64
}

// Index answers radius queries over point features. A bounding box query
// against the spatial index prefilters candidates and the exact haversine
// test runs afterwards, so results match a full scan of the feature list.
type Index struct {
	tree *rtree.Rtree
	size int
}

type pointRec struct {
	geom.Point
	feature model.PointFeature
}

// NewIndex builds a point index. Input order does not affect query results.
func NewIndex(features []model.PointFeature) *Index {
	tree := rtree.NewTree(25, 50)
	for _, f := range features {
		tree.Insert(pointRec{Point: geom.Point{X: f.Lng, Y: f.Lat}, feature: f})
	}
	return &Index{tree: tree, size: len(features)}
}

// Size returns the number of indexed features.
func (ix *Index) Size() int { return ix.size }

// Within returns every feature within radiusM meters of (lat, lng).
func (ix *Index) Within(lat, lng, radiusM float64) []Near {
	if ix.size == 0 || radiusM <= 0 {
		return nil
	}

	b := geometry.BBoxAround(lat, lng, radiusM)
	bounds := &geom.Bounds{
		Min: geom.Point{X: b.Min[0], Y: b.Min[1]},
		Max: geom.Point{X: b.Max[0], Y: b.Max[1]},
	}

	var out []Near
	for _, hit := range ix.tree.SearchIntersect(bounds) {
		rec := hit.(pointRec)
		d := geometry.Haversine(lat, lng, rec.feature.Lat, rec.feature.Lng)
		if d <= radiusM {
			out = append(out, Near{Feature: rec.feature, Distance: d})
		}
	}
	return out
}

// Weights maps feature categories to gravity weights. A category missing
// from the map falls back to the weight of classify.DefaultCategory when
// that is set, else 1.0. A nil map weighs every category 1.0.
type Weights map[string]float64

func (w Weights) of(category string) float64 {
	if w == nil {
		return 1.0
	}
	if v, ok := w[category]; ok {
		return v
	}
	if v, ok := w[classify.DefaultCategory]; ok {
		return v
	}
	return 1.0
}

// Gravity sums weight/d² over the features within radiusM of the point,
// d in haversine meters. Features exactly at the point are skipped.
func (ix *Index) Gravity(lat, lng, radiusM float64, weights Weights) float64 {
	var score float64
	for _, n := range ix.Within(lat, lng, radiusM) {
		if n.Distance == 0 {
			continue
		}
		score += weights.of(n.Feature.Category) / (n.Distance * n.Distance)
	}
	return score
}

// CoverageCount counts the distinct allow-listed categories present
// within radiusM of the point. Total feature count does not matter; five
// pharmacies still cover one category.
func (ix *Index) CoverageCount(lat, lng, radiusM float64, allow []string) int {
	allowed := make(map[string]bool, len(allow))
	for _, c := range allow {
		allowed[c] = true
	}

	seen := make(map[string]bool)
	for _, n := range ix.Within(lat, lng, radiusM) {
		if allowed[n.Feature.Category] {
			seen[n.Feature.Category] = true
		}
	}
	return len(seen)
}
