package export

import (
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/hexgrid"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

// Boundary writes the city boundary as a single-feature collection.
func (w *Writer) Boundary(city string, boundary orb.MultiPolygon) error {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(boundary)
	f.Properties["city"] = city
	fc.Append(f)
	return w.writeFeatureCollection(BoundaryFile, fc)
}

// Districts writes the district polygons with population, density and, when
// present, score columns. Scores are keyed by district name.
func (w *Writer) Districts(districts []model.District, scores map[string]model.ScoreRow) error {
	fc := geojson.NewFeatureCollection()
	for _, d := range districts {
		f := geojson.NewFeature(d.Geometry)
		f.Properties["name"] = d.Name
		f.Properties["population"] = d.Population
		f.Properties["area_km2"] = d.AreaKm2
		f.Properties["density"] = density(d)
		if s, ok := scores[d.Name]; ok {
			f.Properties["composite"] = s.Composite
			f.Properties["rank"] = s.Rank
			f.Properties["scores"] = s.Normalized
		}
		fc.Append(f)
	}
	if err := w.writeFeatureCollection(DistrictsFile, fc); err != nil {
		return err
	}
	return w.districtsParquet(districts, scores)
}

// Cells writes the hex cells with one property per KPI. kpis maps KPI name
// to per-cell values; cells without a value for a KPI omit the property.
func (w *Writer) Cells(cells []model.GridCell, kpis map[string]map[string]float64) error {
	fc := geojson.NewFeatureCollection()
	badBoundary := 0

	for _, c := range cells {
		poly, err := hexgrid.CellToPolygon(c.ID)
		if err != nil {
			badBoundary++
			continue
		}
		f := geojson.NewFeature(poly)
		f.Properties["cell_id"] = c.ID
		for name, values := range kpis {
			if v, ok := values[c.ID]; ok {
				f.Properties[name] = v
			}
		}
		fc.Append(f)
	}

	if badBoundary > 0 {
		zap.L().Warn("export: cells without boundary", zap.Int("count", badBoundary))
	}
	if err := w.writeFeatureCollection(CellsFile, fc); err != nil {
		return err
	}
	return w.cellsParquet(cells, kpis)
}

// Features writes the categorized point features.
func (w *Writer) Features(features []model.PointFeature) error {
	fc := geojson.NewFeatureCollection()
	for _, pf := range features {
		f := geojson.NewFeature(orb.Point{pf.Lng, pf.Lat})
		f.Properties["id"] = pf.ID
		f.Properties["category"] = pf.Category
		f.Properties["layer"] = pf.Layer
		if pf.Name != "" {
			f.Properties["name"] = pf.Name
		}
		fc.Append(f)
	}
	return w.writeFeatureCollection(FeaturesFile, fc)
}

func (w *Writer) writeFeatureCollection(name string, fc *geojson.FeatureCollection) error {
	return w.writeAtomic(name, func(f io.Writer) error {
		data, err := fc.MarshalJSON()
		if err != nil {
			return eris.Wrap(err, "marshal feature collection")
		}
		_, err = f.Write(data)
		return err
	})
}

func density(d model.District) float64 {
	if d.AreaKm2 <= 0 {
		return 0
	}
	return d.Population / d.AreaKm2
}
