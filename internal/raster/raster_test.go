package raster

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/hexgrid"
)

func boundaryAround(lat, lng, halfDeg float64) orb.MultiPolygon {
	return orb.MultiPolygon{orb.Polygon{orb.Ring{
		{lng - halfDeg, lat - halfDeg},
		{lng + halfDeg, lat - halfDeg},
		{lng + halfDeg, lat + halfDeg},
		{lng - halfDeg, lat + halfDeg},
		{lng - halfDeg, lat - halfDeg},
	}}}
}

func TestNew_ResolutionRange(t *testing.T) {
	_, err := New(-1, 0)
	assert.Error(t, err)

	_, err = New(16, 0)
	assert.Error(t, err)

	g, err := New(8, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, g.Resolution())
	assert.Equal(t, DefaultStepDeg, g.StepDeg())
}

func TestCover_SquareBoundary(t *testing.T) {
	g, err := New(8, 0)
	require.NoError(t, err)

	boundary := boundaryAround(48.7758, 9.1829, 0.025)
	cells, err := g.Cover(boundary)
	require.NoError(t, err)
	require.NotEmpty(t, cells)

	seen := make(map[string]bool)
	for i, c := range cells {
		assert.False(t, seen[c.ID], "duplicate cell %s", c.ID)
		seen[c.ID] = true

		assert.Equal(t, 8, c.Resolution)
		assert.True(t, hexgrid.Valid(c.ID))
		assert.True(t, geometry.Contains(boundary, orb.Point{c.CentroidLng, c.CentroidLat}),
			"centroid of %s outside boundary", c.ID)

		if i > 0 {
			assert.Less(t, cells[i-1].ID, c.ID, "cells not sorted")
		}
	}
}

func TestCover_Deterministic(t *testing.T) {
	g, err := New(8, 0)
	require.NoError(t, err)

	boundary := boundaryAround(48.7758, 9.1829, 0.02)

	first, err := g.Cover(boundary)
	require.NoError(t, err)
	second, err := g.Cover(boundary)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCover_FinerStepFindsAtLeastAsMany(t *testing.T) {
	coarse, err := New(8, 0.01)
	require.NoError(t, err)
	fine, err := New(8, 0.0025)
	require.NoError(t, err)

	boundary := boundaryAround(48.7758, 9.1829, 0.025)

	coarseCells, err := coarse.Cover(boundary)
	require.NoError(t, err)
	fineCells, err := fine.Cover(boundary)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(fineCells), len(coarseCells))
}

func TestCover_TinyBoundaryKeepsNothing(t *testing.T) {
	g, err := New(8, 0)
	require.NoError(t, err)

	// center the sliver well away from its own cell centroid so the
	// centroid test rejects the only scanned cell
	id, err := hexgrid.CellAt(48.7758, 9.1829, 8)
	require.NoError(t, err)
	clat, clng, err := hexgrid.CellCentroid(id)
	require.NoError(t, err)

	cells, err := g.Cover(boundaryAround(clat+0.002, clng, 1e-6))
	require.NoError(t, err)
	assert.Empty(t, cells)
}

func TestCover_EmptyBoundary(t *testing.T) {
	g, err := New(8, 0)
	require.NoError(t, err)

	_, err = g.Cover(nil)
	require.Error(t, err)
}
