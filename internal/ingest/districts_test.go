package ingest

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

func TestLoadDistricts_GeoJSON(t *testing.T) {
	path := writeFixture(t, "districts.geojson", `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Polygon", "coordinates": [[[9.1,48.7],[9.3,48.7],[9.3,48.9],[9.1,48.9],[9.1,48.7]]]},
				"properties": {"bezirk": "Bad  Cannstatt "}
			},
			{
				"type": "Feature",
				"geometry": {"type": "MultiPolygon", "coordinates": [[[[9.0,48.6],[9.1,48.6],[9.1,48.7],[9.0,48.6]]]]},
				"properties": {"STADTBEZIRKNAME": "Vaihingen"}
			},
			{
				"type": "Feature",
				"geometry": {"type": "Polygon", "coordinates": [[[9.4,48.7],[9.5,48.7],[9.5,48.8],[9.4,48.7]]]},
				"properties": {"population": 100}
			},
			{
				"type": "Feature",
				"geometry": {"type": "Point", "coordinates": [9.2, 48.8]},
				"properties": {"name": "not a polygon"}
			}
		]
	}`)

	districts, stats, err := LoadDistricts(path)
	require.NoError(t, err)
	require.Len(t, districts, 2)

	assert.Equal(t, "Bad Cannstatt", districts[0].Name)
	assert.Equal(t, "Bad  Cannstatt", districts[0].RawName)
	require.Len(t, districts[0].Geometry, 1)

	assert.Equal(t, "Vaihingen", districts[1].Name)

	assert.Equal(t, 4, stats.Read)
	assert.Equal(t, 2, stats.Loaded)
	assert.Equal(t, 1, stats.Skipped["no_name"])
	assert.Equal(t, 1, stats.Skipped["not_polygonal"])
}

func TestLoadDistricts_NoUsableFeatures(t *testing.T) {
	path := writeFixture(t, "empty.geojson", `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Point", "coordinates": [9.2, 48.8]},
				"properties": {"name": "just a point"}
			}
		]
	}`)

	_, _, err := LoadDistricts(path)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.NoData))
}

func TestLoadDistricts_Shapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "districts.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{shp.StringField("NAME", 40)})

	// Clockwise ring, as the shapefile spec requires for outer rings.
	ring := []shp.Point{
		{X: 9.1, Y: 48.7}, {X: 9.1, Y: 48.9}, {X: 9.3, Y: 48.9}, {X: 9.3, Y: 48.7}, {X: 9.1, Y: 48.7},
	}
	w.Write((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{ring})))
	w.WriteAttribute(0, 0, "Feuerbach")
	w.Close()

	districts, stats, err := LoadDistricts(path)
	require.NoError(t, err)
	require.Len(t, districts, 1)

	assert.Equal(t, "Feuerbach", districts[0].Name)
	require.Len(t, districts[0].Geometry, 1)
	require.Len(t, districts[0].Geometry[0], 1)
	assert.Len(t, districts[0].Geometry[0][0], 5)
	assert.Equal(t, 1, stats.Loaded)
}

func TestLoadDistricts_ShapefileMissing(t *testing.T) {
	_, _, err := LoadDistricts(filepath.Join(t.TempDir(), "nope.shp"))
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.NoData))
}

func TestShpPolygonToMulti_OuterAndHole(t *testing.T) {
	outer := []shp.Point{ // clockwise
		{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0},
	}
	hole := []shp.Point{ // counter-clockwise
		{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2},
	}
	second := []shp.Point{ // clockwise, separate island
		{X: 20, Y: 20}, {X: 20, Y: 25}, {X: 25, Y: 25}, {X: 25, Y: 20}, {X: 20, Y: 20},
	}

	poly := (*shp.Polygon)(shp.NewPolyLine([][]shp.Point{outer, hole, second}))
	mp := shpPolygonToMulti(poly)

	require.Len(t, mp, 2)
	require.Len(t, mp[0], 2, "first polygon carries the hole")
	assert.Len(t, mp[1], 1)
}
