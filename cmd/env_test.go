package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputsFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addInputFlags(cmd)

	require.NoError(t, cmd.Flags().Set("districts", "d.geojson"))
	require.NoError(t, cmd.Flags().Set("population", "p.csv"))
	require.NoError(t, cmd.Flags().Set("transit", "t.geojson"))
	require.NoError(t, cmd.Flags().Set("amenities", "a.geojson"))

	in := inputsFromFlags(cmd)
	assert.Equal(t, "d.geojson", in.Districts)
	assert.Equal(t, "p.csv", in.Population)
	assert.Equal(t, "t.geojson", in.Transit)
	assert.Equal(t, "a.geojson", in.Amenities)
	assert.Empty(t, in.LandUse)
}

func TestInputsFromFlags_LandUse(t *testing.T) {
	cmd := &cobra.Command{}
	addInputFlags(cmd)

	require.NoError(t, cmd.Flags().Set("landuse", "lu.geojson"))

	in := inputsFromFlags(cmd)
	assert.Equal(t, "lu.geojson", in.LandUse)
}
