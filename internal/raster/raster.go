// Package raster converts district polygons into hex grid coverage.
//
// The scan walks the polygon bounding box on a fixed degree step and keeps
// every cell whose centroid falls inside the polygon. The step is
// independent of the grid resolution, so very fine grids can undersample
// narrow slivers; callers that care pass a smaller step.
package raster

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/hexgrid"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

// DefaultStepDeg is the bounding box scan step in degrees.
const DefaultStepDeg = 0.01

// Grid rasterizes polygons at a fixed hex resolution.
type Grid struct {
	res  int
	step float64
}

// New returns a Grid for the given resolution. A step of zero or less
// selects DefaultStepDeg.
func New(resolution int, stepDeg float64) (*Grid, error) {
	if resolution < 0 || resolution > hexgrid.MaxResolution {
		return nil, errkind.New(errkind.MalformedInput,
			eris.Errorf("raster: resolution %d out of range 0..%d", resolution, hexgrid.MaxResolution))
	}
	if stepDeg <= 0 {
		stepDeg = DefaultStepDeg
	}
	return &Grid{res: resolution, step: stepDeg}, nil
}

// Resolution returns the grid resolution.
func (g *Grid) Resolution() int { return g.res }

// StepDeg returns the scan step in degrees.
func (g *Grid) StepDeg() float64 { return g.step }

// Cover returns the cells whose centroid lies inside the boundary, sorted
// by cell ID. An empty result is not an error; callers decide whether a
// zero-cell boundary is fatal.
func (g *Grid) Cover(boundary orb.MultiPolygon) ([]model.GridCell, error) {
	if len(boundary) == 0 {
		return nil, errkind.New(errkind.NoData, eris.New("raster: empty boundary"))
	}

	bound := boundary.Bound()

	seen := make(map[string]struct{})
	lookupFailed := 0
	for lat := bound.Min[1]; lat <= bound.Max[1]; lat += g.step {
		for lng := bound.Min[0]; lng <= bound.Max[0]; lng += g.step {
			id, err := hexgrid.CellAt(lat, lng, g.res)
			if err != nil {
				lookupFailed++
				zap.L().Warn("raster: cell lookup failed",
					zap.Float64("lat", lat),
					zap.Float64("lng", lng),
					zap.Error(err))
				continue
			}
			seen[id] = struct{}{}
		}
	}

	cells := make([]model.GridCell, 0, len(seen))
	outside := 0
	for id := range seen {
		clat, clng, err := hexgrid.CellCentroid(id)
		if err != nil {
			lookupFailed++
			zap.L().Warn("raster: centroid lookup failed", zap.String("cell", id), zap.Error(err))
			continue
		}
		if !geometry.Contains(boundary, orb.Point{clng, clat}) {
			outside++
			continue
		}
		cells = append(cells, model.GridCell{
			ID:          id,
			Resolution:  g.res,
			CentroidLat: clat,
			CentroidLng: clng,
		})
	}

	sort.Slice(cells, func(i, j int) bool { return cells[i].ID < cells[j].ID })

	zap.L().Debug("raster: covered boundary",
		zap.Int("resolution", g.res),
		zap.Float64("step_deg", g.step),
		zap.Int("scanned", len(seen)),
		zap.Int("kept", len(cells)),
		zap.Int("outside", outside),
		zap.Int("lookup_failed", lookupFailed))

	return cells, nil
}
