package ingest

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
)

// Table is a uniform in-memory spatial layer: one geometry plus flat string
// properties per feature, whatever the source format was.
type Table struct {
	Features []TableFeature
}

// TableFeature is a single record of a spatial table.
type TableFeature struct {
	Geometry   orb.Geometry
	Properties map[string]string
}

// LoadTable reads a spatial table from a GeoJSON file or a Parquet file with
// a WKB geometry column. Missing files carry kind NoData, undecodable files
// MalformedInput. Records without usable geometry are skipped and counted.
func LoadTable(path string) (*Table, *Stats, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return loadGeoJSONTable(path)
	case ".parquet":
		return loadParquetTable(path)
	default:
		return nil, nil, errkind.New(errkind.MalformedInput,
			eris.Errorf("ingest: unsupported table format %q", filepath.Ext(path)))
	}
}

func loadGeoJSONTable(path string) (*Table, *Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errkind.New(errkind.NoData, eris.Wrapf(err, "ingest: table %s", path))
		}
		return nil, nil, eris.Wrapf(err, "ingest: read table %s", path)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, nil, errkind.New(errkind.MalformedInput, eris.Wrapf(err, "ingest: parse GeoJSON %s", path))
	}

	stats := newStats()
	table := &Table{Features: make([]TableFeature, 0, len(fc.Features))}

	for _, f := range fc.Features {
		stats.Read++
		if f == nil || f.Geometry == nil {
			stats.skip("no_geometry")
			continue
		}
		table.Features = append(table.Features, TableFeature{
			Geometry:   f.Geometry,
			Properties: stringProperties(f.Properties),
		})
		stats.Loaded++
	}

	logSkipped(path, stats)
	return table, stats, nil
}

func loadParquetTable(path string) (*Table, *Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errkind.New(errkind.NoData, eris.Wrapf(err, "ingest: table %s", path))
		}
		return nil, nil, eris.Wrapf(err, "ingest: open table %s", path)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: stat table %s", path)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, nil, errkind.New(errkind.MalformedInput, eris.Wrapf(err, "ingest: parse parquet %s", path))
	}

	names, geomCol := leafColumns(pf)
	if geomCol < 0 {
		return nil, nil, errkind.New(errkind.MalformedInput,
			eris.Errorf("ingest: parquet %s has no geometry column", path))
	}

	stats := newStats()
	table := &Table{}

	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(rg, names, geomCol, table, stats); err != nil {
			return nil, nil, eris.Wrapf(err, "ingest: read parquet %s", path)
		}
	}

	logSkipped(path, stats)
	return table, stats, nil
}

// leafColumns returns the leaf column names of the file schema and the index
// of the geometry column, or -1 when none matches. The geometry column is
// the first leaf whose name contains "geom".
func leafColumns(pf *parquet.File) ([]string, int) {
	paths := pf.Schema().Columns()
	names := make([]string, len(paths))
	geomCol := -1
	for i, p := range paths {
		names[i] = p[len(p)-1]
		if geomCol < 0 && strings.Contains(strings.ToLower(names[i]), "geom") {
			geomCol = i
		}
	}
	return names, geomCol
}

func readRowGroup(rg parquet.RowGroup, names []string, geomCol int, table *Table, stats *Stats) error {
	rows := rg.Rows()
	defer rows.Close() //nolint:errcheck

	buf := make([]parquet.Row, 128)
	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			stats.Read++
			feat, reason := parquetFeature(row, names, geomCol)
			if reason != "" {
				stats.skip(reason)
				continue
			}
			table.Features = append(table.Features, feat)
			stats.Loaded++
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func parquetFeature(row parquet.Row, names []string, geomCol int) (TableFeature, string) {
	feat := TableFeature{Properties: make(map[string]string)}
	var geomRaw []byte

	for _, v := range row {
		ci := v.Column()
		if ci < 0 || ci >= len(names) {
			continue
		}
		if ci == geomCol {
			if !v.IsNull() {
				geomRaw = v.ByteArray()
			}
			continue
		}
		if v.IsNull() {
			continue
		}

		switch v.Kind() {
		case parquet.ByteArray, parquet.FixedLenByteArray:
			feat.Properties[names[ci]] = string(v.ByteArray())
		case parquet.Int32:
			feat.Properties[names[ci]] = strconv.FormatInt(int64(v.Int32()), 10)
		case parquet.Int64:
			feat.Properties[names[ci]] = strconv.FormatInt(v.Int64(), 10)
		case parquet.Float:
			feat.Properties[names[ci]] = strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
		case parquet.Double:
			feat.Properties[names[ci]] = strconv.FormatFloat(v.Double(), 'f', -1, 64)
		case parquet.Boolean:
			feat.Properties[names[ci]] = strconv.FormatBool(v.Boolean())
		}
	}

	if len(geomRaw) == 0 {
		return feat, "no_geometry"
	}
	g, err := geometry.Decode(geomRaw)
	if err != nil {
		return feat, "bad_geometry"
	}
	feat.Geometry = g
	return feat, ""
}

// stringProperties flattens GeoJSON properties to string attributes. Nested
// objects and arrays are not attribute data and are dropped.
func stringProperties(props geojson.Properties) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			out[k] = strconv.Itoa(t)
		case bool:
			out[k] = strconv.FormatBool(t)
		}
	}
	return out
}

func logSkipped(path string, stats *Stats) {
	if stats.SkippedTotal() == 0 {
		return
	}
	zap.L().Warn("ingest: skipped records",
		zap.String("path", path),
		zap.Int("read", stats.Read),
		zap.Any("skipped", stats.Skipped),
	)
}
