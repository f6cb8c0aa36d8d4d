package kpi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

func TestEntropy_Empty(t *testing.T) {
	assert.Zero(t, Entropy(nil))
	assert.Zero(t, Entropy([]string{}))
}

func TestEntropy_SingleCategory(t *testing.T) {
	assert.Zero(t, Entropy([]string{"cafe"}))
	assert.Zero(t, Entropy([]string{"cafe", "cafe", "cafe"}))
}

func TestEntropy_Uniform(t *testing.T) {
	assert.InDelta(t, math.Log(2), Entropy([]string{"a", "b"}), 1e-12)
	assert.InDelta(t, math.Log(2), Entropy([]string{"a", "a", "b", "b"}), 1e-12)
	assert.InDelta(t, math.Log(4), Entropy([]string{"a", "b", "c", "d"}), 1e-12)
}

func TestEntropy_Bounds(t *testing.T) {
	cats := []string{"a", "a", "a", "b", "c"}
	h := Entropy(cats)

	assert.Greater(t, h, 0.0)
	assert.Less(t, h, math.Log(3))
}

func TestEntropy_OrderInvariant(t *testing.T) {
	h1 := Entropy([]string{"a", "b", "a", "c"})
	h2 := Entropy([]string{"c", "a", "b", "a"})

	assert.Equal(t, h1, h2)
}

func TestDiversityAt(t *testing.T) {
	ix := NewIndex([]model.PointFeature{
		feat("a", "cafe", baseLat+0.001, baseLng),
		feat("b", "pharmacy", baseLat-0.001, baseLng),
		feat("c", "school", baseLat+0.01, baseLng), // ~1.1 km, outside 300 m
	})

	assert.InDelta(t, math.Log(2), ix.DiversityAt(baseLat, baseLng, 300), 1e-9)
}

func TestDiversityAt_NoFeatures(t *testing.T) {
	assert.Zero(t, NewIndex(nil).DiversityAt(baseLat, baseLng, 300))
}
