package hexgrid

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

const (
	stuttgartLat = 48.7758
	stuttgartLng = 9.1829
)

func TestCellAtRoundTrip(t *testing.T) {
	t.Parallel()

	id, err := CellAt(stuttgartLat, stuttgartLng, 8)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.True(t, Valid(id))

	res, err := Resolution(id)
	require.NoError(t, err)
	assert.Equal(t, 8, res)

	// The centroid must resolve back to the same cell.
	lat, lng, err := CellCentroid(id)
	require.NoError(t, err)
	back, err := CellAt(lat, lng, 8)
	require.NoError(t, err)
	assert.Equal(t, id, back)
}

func TestCellAtResolutionRange(t *testing.T) {
	t.Parallel()

	_, err := CellAt(stuttgartLat, stuttgartLng, -1)
	require.Error(t, err)
	assert.Equal(t, errkind.MalformedInput, errkind.Classify(err))

	_, err = CellAt(stuttgartLat, stuttgartLng, 16)
	assert.Error(t, err)
}

func TestCellToPolygon(t *testing.T) {
	t.Parallel()

	id, err := CellAt(stuttgartLat, stuttgartLng, 8)
	require.NoError(t, err)

	poly, err := CellToPolygon(id)
	require.NoError(t, err)
	require.Len(t, poly, 1)

	ring := poly[0]
	// Hexagon (or pentagon) boundary, closed.
	require.GreaterOrEqual(t, len(ring), 6)
	assert.Equal(t, ring[0], ring[len(ring)-1])

	// Axis order is (lon, lat): around Stuttgart lon ~9, lat ~48.
	for _, pt := range ring {
		assert.InDelta(t, stuttgartLng, pt[0], 0.5, "x must be longitude")
		assert.InDelta(t, stuttgartLat, pt[1], 0.5, "y must be latitude")
	}
}

func TestCentroidInsideBoundaryBBox(t *testing.T) {
	t.Parallel()

	id, err := CellAt(stuttgartLat, stuttgartLng, 9)
	require.NoError(t, err)

	lat, lng, err := CellCentroid(id)
	require.NoError(t, err)

	poly, err := CellToPolygon(id)
	require.NoError(t, err)
	bound := poly.Bound()
	assert.True(t, bound.Contains(orb.Point{lng, lat}))
}

func TestInvalidCellID(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "zzzz", "not-a-cell"} {
		assert.False(t, Valid(id))
		_, err := CellToPolygon(id)
		require.Error(t, err)
		assert.Equal(t, errkind.MalformedInput, errkind.Classify(err))
		_, _, err = CellCentroid(id)
		assert.Error(t, err)
		_, err = Resolution(id)
		assert.Error(t, err)
	}
}

func TestDeterministicIDs(t *testing.T) {
	t.Parallel()

	a, err := CellAt(stuttgartLat, stuttgartLng, 8)
	require.NoError(t, err)
	b, err := CellAt(stuttgartLat, stuttgartLng, 8)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
