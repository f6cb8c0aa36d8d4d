package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
)

func newTestTransform(t *testing.T) *geometry.Transform {
	t.Helper()
	tr, err := geometry.NewTransform("+proj=utm +zone=32 +ellps=GRS80 +units=m +no_defs")
	require.NoError(t, err)
	return tr
}

func TestLoadLandUse(t *testing.T) {
	path := writeFixture(t, "landuse.geojson", `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Polygon", "coordinates": [[[9.10,48.70],[9.12,48.70],[9.12,48.72],[9.10,48.72],[9.10,48.70]]]},
				"properties": {"leisure": "park", "name": "Schlossgarten"}
			},
			{
				"type": "Feature",
				"geometry": {"type": "Polygon", "coordinates": [[[9.20,48.70],[9.22,48.70],[9.22,48.72],[9.20,48.72],[9.20,48.70]]]},
				"properties": {"landuse": "forest"}
			},
			{
				"type": "Feature",
				"geometry": {"type": "Polygon", "coordinates": [[[9.30,48.70],[9.32,48.70],[9.32,48.72],[9.30,48.72],[9.30,48.70]]]},
				"properties": {"building": "yes"}
			},
			{
				"type": "Feature",
				"geometry": {"type": "Point", "coordinates": [9.4, 48.7]},
				"properties": {"natural": "tree"}
			}
		]
	}`)

	areas, stats, err := LoadLandUse(path, newTestTransform(t))
	require.NoError(t, err)
	require.Len(t, areas, 2)

	assert.Equal(t, "park", areas[0].Category)
	assert.Equal(t, "forest", areas[1].Category)

	// A 0.02 x 0.02 degree box near 48.7N spans ~1.47km x ~2.22km.
	assert.InDelta(t, 3.3, areas[0].AreaKm2, 0.4)

	assert.Equal(t, 1, stats.Skipped["no_category"])
	assert.Equal(t, 1, stats.Skipped["not_polygonal"])
}

func TestLoadLandUse_CategoryPrecedence(t *testing.T) {
	props := map[string]string{"natural": "wood", "landuse": "forest"}
	assert.Equal(t, "forest", landUseCategory(props))

	assert.Equal(t, "park", landUseCategory(map[string]string{"leisure": "park"}))
	assert.Equal(t, "", landUseCategory(map[string]string{"building": "yes"}))
}

func TestLoadLandUse_Empty(t *testing.T) {
	path := writeFixture(t, "empty.geojson", `{"type": "FeatureCollection", "features": []}`)

	_, _, err := LoadLandUse(path, newTestTransform(t))
	require.Error(t, err)
}
