package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

// landUseAttrs are the attributes consulted for a land-use category, first
// non-empty wins. OSM tags parks as leisure and forests as landuse or
// natural, so all three are needed.
var landUseAttrs = []string{"landuse", "leisure", "natural"}

// LoadLandUse reads a polygonal land-use layer and computes metric areas.
// Records without polygonal geometry or without a category are skipped.
func LoadLandUse(path string, tr *geometry.Transform) ([]model.LandUseArea, *Stats, error) {
	table, _, err := LoadTable(path)
	if err != nil {
		return nil, nil, err
	}

	stats := newStats()
	out := make([]model.LandUseArea, 0, len(table.Features))

	for i, f := range table.Features {
		stats.Read++

		mp := geometry.PolygonOf(f.Geometry)
		if len(mp) == 0 {
			stats.skip("not_polygonal")
			continue
		}

		category := landUseCategory(f.Properties)
		if category == "" {
			stats.skip("no_category")
			continue
		}

		area, err := tr.AreaKm2(mp)
		if err != nil {
			zap.L().Warn("ingest: land-use area projection failed",
				zap.String("path", path),
				zap.Error(err),
			)
			stats.skip("bad_projection")
			continue
		}

		out = append(out, model.LandUseArea{
			ID:       featureID(f.Properties, "landuse", i),
			Category: category,
			Geometry: mp,
			AreaKm2:  area,
		})
		stats.Loaded++
	}

	if len(out) == 0 {
		return nil, stats, errkind.New(errkind.NoData, eris.Errorf("ingest: no land-use areas in %s", path))
	}
	logSkipped(path, stats)
	return out, stats, nil
}

func landUseCategory(props map[string]string) string {
	for _, attr := range landUseAttrs {
		if v := strings.TrimSpace(props[attr]); v != "" {
			return v
		}
	}
	return ""
}
