package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTable_GeoJSON(t *testing.T) {
	path := writeFixture(t, "stops.geojson", `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Point", "coordinates": [9.18, 48.78]},
				"properties": {"name": "Hauptbahnhof", "railway": "station", "platforms": 16, "lit": true}
			},
			{
				"type": "Feature",
				"geometry": null,
				"properties": {"name": "orphan"}
			}
		]
	}`)

	table, stats, err := LoadTable(path)
	require.NoError(t, err)
	require.Len(t, table.Features, 1)

	f := table.Features[0]
	assert.Equal(t, orb.Point{9.18, 48.78}, f.Geometry)
	assert.Equal(t, "Hauptbahnhof", f.Properties["name"])
	assert.Equal(t, "station", f.Properties["railway"])
	assert.Equal(t, "16", f.Properties["platforms"])
	assert.Equal(t, "true", f.Properties["lit"])

	assert.Equal(t, 2, stats.Read)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.Skipped["no_geometry"])
}

func TestLoadTable_GeoJSONMalformed(t *testing.T) {
	path := writeFixture(t, "broken.geojson", `{"type": "FeatureCollection", "features": [`)

	_, _, err := LoadTable(path)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.MalformedInput))
}

func TestLoadTable_Missing(t *testing.T) {
	_, _, err := LoadTable(filepath.Join(t.TempDir(), "nope.geojson"))
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.NoData))
}

func TestLoadTable_UnsupportedFormat(t *testing.T) {
	path := writeFixture(t, "layer.gpkg", "not really")

	_, _, err := LoadTable(path)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.MalformedInput))
}

type parquetFixtureRow struct {
	Name     string  `parquet:"name"`
	Capacity int64   `parquet:"capacity"`
	Share    float64 `parquet:"share"`
	Geometry []byte  `parquet:"geometry"`
}

func TestLoadTable_ParquetWKB(t *testing.T) {
	wkb, err := geometry.EncodePoint(orb.Point{9.2, 48.75})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "features.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := parquet.NewGenericWriter[parquetFixtureRow](f)
	_, err = w.Write([]parquetFixtureRow{
		{Name: "Marienplatz", Capacity: 120, Share: 0.25, Geometry: wkb},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	table, stats, err := LoadTable(path)
	require.NoError(t, err)
	require.Len(t, table.Features, 1)

	feat := table.Features[0]
	pt, ok := feat.Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, 9.2, pt[0], 1e-9)
	assert.InDelta(t, 48.75, pt[1], 1e-9)
	assert.Equal(t, "Marienplatz", feat.Properties["name"])
	assert.Equal(t, "120", feat.Properties["capacity"])
	assert.Equal(t, "0.25", feat.Properties["share"])
	assert.Equal(t, 1, stats.Loaded)
}

func TestLoadTable_ParquetBadGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := parquet.NewGenericWriter[parquetFixtureRow](f)
	_, err = w.Write([]parquetFixtureRow{
		{Name: "garbled", Geometry: []byte{0xde, 0xad, 0xbe, 0xef}},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	table, stats, err := LoadTable(path)
	require.NoError(t, err)
	assert.Empty(t, table.Features)
	assert.Equal(t, 1, stats.Skipped["bad_geometry"])
}
