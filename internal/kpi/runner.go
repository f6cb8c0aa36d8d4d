package kpi

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

// Params carries the KPI stage tuning: radii, essentials allow-list,
// transit mode weights and the layer parallelism bound.
type Params struct {
	GravityRadiusM      float64
	EssentialsRadiusM   float64
	DiversityRadiusM    float64
	EssentialCategories []string
	ModeWeights         Weights
	Workers             int
}

// Layers computes the per-cell KPI layers over the grid. The three layers
// run concurrently; each layer scans the cells in order, so the output is
// deterministic regardless of scheduling.
func Layers(ctx context.Context, p Params, cells []model.GridCell, transit, amenities []model.PointFeature) (map[string][]model.CellValue, error) {
	if len(cells) == 0 {
		return nil, eris.New("kpi: no grid cells")
	}

	transitIdx := NewIndex(transit)
	amenityIdx := NewIndex(amenities)

	out := make(map[string][]model.CellValue, 3)
	var mu sync.Mutex

	store := func(name string, layer []model.CellValue) {
		mu.Lock()
		out[name] = layer
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	if p.Workers > 0 {
		g.SetLimit(p.Workers)
	}

	g.Go(func() error {
		layer := make([]model.CellValue, 0, len(cells))
		for _, c := range cells {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "kpi: gravity layer canceled")
			}
			layer = append(layer, model.CellValue{
				CellID: c.ID,
				Value:  transitIdx.Gravity(c.CentroidLat, c.CentroidLng, p.GravityRadiusM, p.ModeWeights),
			})
		}
		store(KPIPTGravity, layer)
		return nil
	})

	g.Go(func() error {
		layer := make([]model.CellValue, 0, len(cells))
		for _, c := range cells {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "kpi: essentials layer canceled")
			}
			count := amenityIdx.CoverageCount(c.CentroidLat, c.CentroidLng, p.EssentialsRadiusM, p.EssentialCategories)
			layer = append(layer, model.CellValue{CellID: c.ID, Value: float64(count)})
		}
		store(KPIEssentials, layer)
		return nil
	})

	g.Go(func() error {
		layer := make([]model.CellValue, 0, len(cells))
		for _, c := range cells {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "kpi: diversity layer canceled")
			}
			layer = append(layer, model.CellValue{
				CellID: c.ID,
				Value:  amenityIdx.DiversityAt(c.CentroidLat, c.CentroidLng, p.DiversityRadiusM),
			})
		}
		store(KPIDiversity, layer)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("kpi: layers computed",
		zap.Int("cells", len(cells)),
		zap.Int("transit_features", transitIdx.Size()),
		zap.Int("amenity_features", amenityIdx.Size()))

	return out, nil
}

// AggregateByDistrict rolls a per-cell layer up to districts through the
// interpolation weights: Σ weight × cell value per district. With weights
// normalized per district this is the areal-weighted district mean.
func AggregateByDistrict(weights []model.WeightRecord, layer []model.CellValue) map[string]float64 {
	byCell := make(map[string]float64, len(layer))
	for _, v := range layer {
		byCell[v.CellID] = v.Value
	}

	out := make(map[string]float64)
	for _, w := range weights {
		if v, ok := byCell[w.CellID]; ok {
			out[w.District] += w.Weight * v
		}
	}
	return out
}

// RowsFromMap converts a per-district value map into sorted long-format
// KPI rows.
func RowsFromMap(kpiName string, values map[string]float64) []model.KPIRow {
	rows := make([]model.KPIRow, 0, len(values))
	for entity, v := range values {
		rows = append(rows, model.KPIRow{Entity: entity, KPIName: kpiName, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Entity < rows[j].Entity })
	return rows
}

// RowsFromLayer converts a per-cell layer into long-format KPI rows,
// preserving cell order.
func RowsFromLayer(kpiName string, layer []model.CellValue) []model.KPIRow {
	rows := make([]model.KPIRow, 0, len(layer))
	for _, v := range layer {
		rows = append(rows, model.KPIRow{Entity: v.CellID, KPIName: kpiName, Value: v.Value})
	}
	return rows
}
