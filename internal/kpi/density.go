package kpi

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

type districtRec struct {
	geom.MultiPolygon
	idx int
}

// CountByDistrict assigns each point feature to the district containing
// it and returns per-district counts. Features outside every district are
// not counted.
func CountByDistrict(districts []model.District, features []model.PointFeature) map[string]int {
	tree := rtree.NewTree(25, 50)
	for i, d := range districts {
		if len(d.Geometry) == 0 {
			continue
		}
		tree.Insert(districtRec{MultiPolygon: geometry.ToGeomMultiPolygon(d.Geometry), idx: i})
	}

	counts := make(map[string]int, len(districts))
	for _, f := range features {
		pt := geom.Point{X: f.Lng, Y: f.Lat}
		for _, hit := range tree.SearchIntersect(&geom.Bounds{Min: pt, Max: pt}) {
			rec := hit.(districtRec)
			if geometry.Contains(districts[rec.idx].Geometry, orb.Point{f.Lng, f.Lat}) {
				counts[districts[rec.idx].Name]++
				break
			}
		}
	}
	return counts
}

type landuseRec struct {
	geom.MultiPolygon
}

// GreenShareByDistrict computes the fraction of each district's metric
// area covered by green land use, clamped to [0, 1]. Overlapping green
// polygons can overcount, hence the clamp.
func GreenShareByDistrict(districts []model.District, landuse []model.LandUseArea, greenCategories []string, tr *geometry.Transform) (map[string]float64, error) {
	green := make(map[string]bool, len(greenCategories))
	for _, c := range greenCategories {
		green[c] = true
	}

	tree := rtree.NewTree(25, 50)
	indexed := 0
	for _, lu := range landuse {
		if !green[lu.Category] || len(lu.Geometry) == 0 {
			continue
		}
		mp, err := tr.MultiPolygon(lu.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "kpi: project land use %s", lu.ID)
		}
		tree.Insert(landuseRec{MultiPolygon: mp})
		indexed++
	}

	shares := make(map[string]float64, len(districts))
	for _, d := range districts {
		if len(d.Geometry) == 0 {
			shares[d.Name] = 0
			continue
		}
		mp, err := tr.MultiPolygon(d.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "kpi: project district %s", d.Name)
		}
		total := mp.Area()
		if total <= 0 {
			shares[d.Name] = 0
			continue
		}

		var covered float64
		for _, hit := range tree.SearchIntersect(mp.Bounds()) {
			rec := hit.(landuseRec)
			covered += mp.Intersection(rec.MultiPolygon).Area()
		}

		share := covered / total
		if share > 1 {
			share = 1
		}
		shares[d.Name] = share
	}

	zap.L().Debug("kpi: green share computed",
		zap.Int("districts", len(districts)),
		zap.Int("green_areas", indexed))

	return shares, nil
}

// DensityRows computes the per-district density KPIs: population per km²,
// transit stops per km² and green land-use share. Districts without a
// metric area yield zeros and a warning.
func DensityRows(districts []model.District, transit []model.PointFeature, landuse []model.LandUseArea, greenCategories []string, tr *geometry.Transform) ([]model.KPIRow, error) {
	stopCounts := CountByDistrict(districts, transit)
	greenShares, err := GreenShareByDistrict(districts, landuse, greenCategories, tr)
	if err != nil {
		return nil, err
	}

	rows := make([]model.KPIRow, 0, len(districts)*3)
	for _, d := range districts {
		area := d.AreaKm2
		if area <= 0 && len(d.Geometry) > 0 {
			area, err = tr.AreaKm2(d.Geometry)
			if err != nil {
				return nil, eris.Wrapf(err, "kpi: area of district %s", d.Name)
			}
		}

		var popDensity, stopDensity float64
		if area > 0 {
			popDensity = d.Population / area
			stopDensity = float64(stopCounts[d.Name]) / area
		} else {
			zap.L().Warn("kpi: district has no metric area", zap.String("district", d.Name))
		}

		rows = append(rows,
			model.KPIRow{Entity: d.Name, KPIName: KPIPopulationDensity, Value: popDensity},
			model.KPIRow{Entity: d.Name, KPIName: KPIStopDensity, Value: stopDensity},
			model.KPIRow{Entity: d.Name, KPIName: KPIGreenShare, Value: greenShares[d.Name]},
		)
	}
	return rows, nil
}
