package ingest

import (
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

// districtNameProps are the property keys tried in order when looking for a
// district's name. City open-data portals disagree on the attribute; this
// list covers the usual suspects including the AGS "GEN" field.
var districtNameProps = []string{
	"district_norm", "name", "bezirk", "district", "GEN", "STADTBEZIRKNAME",
}

// LoadDistricts reads the district polygons from a GeoJSON, Parquet or
// shapefile source. Names are normalized into join keys; records without a
// name or without polygonal geometry are skipped and counted.
func LoadDistricts(path string) ([]model.District, *Stats, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return loadShapefileDistricts(path)
	}

	table, _, err := LoadTable(path)
	if err != nil {
		return nil, nil, err
	}

	stats := newStats()
	out := make([]model.District, 0, len(table.Features))

	for _, f := range table.Features {
		stats.Read++
		d, reason := districtOf(f.Geometry, f.Properties)
		if reason != "" {
			stats.skip(reason)
			continue
		}
		out = append(out, d)
		stats.Loaded++
	}

	if len(out) == 0 {
		return nil, stats, errkind.New(errkind.NoData, eris.Errorf("ingest: no districts in %s", path))
	}
	logSkipped(path, stats)
	return out, stats, nil
}

func loadShapefileDistricts(path string) ([]model.District, *Stats, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, nil, errkind.New(errkind.NoData, eris.Wrapf(err, "ingest: open shapefile %s", path))
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	stats := newStats()
	var out []model.District

	for reader.Next() {
		stats.Read++
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			stats.skip("not_polygonal")
			continue
		}

		props := make(map[string]string, len(fields))
		for name, idx := range fieldIdx {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
			if val != "" {
				props[name] = val
			}
		}

		d, reason := districtOf(shpPolygonToMulti(poly), props)
		if reason != "" {
			stats.skip(reason)
			continue
		}
		out = append(out, d)
		stats.Loaded++
	}

	if len(out) == 0 {
		return nil, stats, errkind.New(errkind.NoData, eris.Errorf("ingest: no districts in %s", path))
	}
	logSkipped(path, stats)
	return out, stats, nil
}

func districtOf(g orb.Geometry, props map[string]string) (model.District, string) {
	mp := geometry.PolygonOf(g)
	if len(mp) == 0 {
		return model.District{}, "not_polygonal"
	}
	raw := districtName(props)
	if raw == "" {
		return model.District{}, "no_name"
	}
	return model.District{
		Name:       NormalizeName(raw),
		RawName:    raw,
		Geometry:   mp,
		Properties: props,
	}, ""
}

func districtName(props map[string]string) string {
	for _, key := range districtNameProps {
		if v := strings.TrimSpace(props[key]); v != "" {
			return v
		}
		// Shapefile attributes arrive lowercased.
		if v := strings.TrimSpace(props[strings.ToLower(key)]); v != "" {
			return v
		}
	}
	return ""
}

// shpPolygonToMulti assembles shapefile parts into polygons with holes.
// Shapefile outer rings wind clockwise and holes counter-clockwise; a hole
// attaches to the most recent outer ring.
func shpPolygonToMulti(p *shp.Polygon) orb.MultiPolygon {
	var mp orb.MultiPolygon

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		ring := make(orb.Ring, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{p.Points[j].X, p.Points[j].Y})
		}
		if len(ring) < 4 {
			continue
		}

		if ring.Orientation() == orb.CW || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
		} else {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
		}
	}

	return mp
}
