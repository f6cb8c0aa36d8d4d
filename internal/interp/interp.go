// Package interp distributes district-level population onto the hex grid
// by areal weighting: each (district, cell) intersection area in a metric
// CRS becomes a weight, normalized per district, and cell population is
// the weight-blended sum over districts.
package interp

import (
	"context"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/hexgrid"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/raster"
)

// Interpolator runs areal-weighted interpolation at a fixed grid
// resolution and metric CRS.
type Interpolator struct {
	grid *raster.Grid
	tr   *geometry.Transform
}

// New wires a rasterizer and a metric transform into an Interpolator.
func New(grid *raster.Grid, tr *geometry.Transform) *Interpolator {
	return &Interpolator{grid: grid, tr: tr}
}

// Result bundles the grid, the weight records and the per-cell
// population estimates of one interpolation pass.
type Result struct {
	Cells           []model.GridCell
	Weights         []model.WeightRecord
	Values          []model.CellValue
	TotalPopulation float64
}

// Mismatch reports names that failed to join between district geometry
// and the population table.
type Mismatch struct {
	MissingPopulation []string // districts with no population row
	UnknownDistricts  []string // population rows with no district polygon
}

// Empty reports whether the join matched every name on both sides.
func (m Mismatch) Empty() bool {
	return len(m.MissingPopulation) == 0 && len(m.UnknownDistricts) == 0
}

// JoinPopulation left-joins a population table onto districts by
// normalized name. Districts without a population row keep a zero
// population; both kinds of misses are reported, never dropped silently.
func JoinPopulation(districts []model.District, population map[string]float64) ([]model.District, Mismatch) {
	var mm Mismatch

	matched := make(map[string]bool, len(population))
	out := make([]model.District, len(districts))
	for i, d := range districts {
		out[i] = d
		if pop, ok := population[d.Name]; ok {
			out[i].Population = pop
			matched[d.Name] = true
		} else {
			out[i].Population = 0
			mm.MissingPopulation = append(mm.MissingPopulation, d.Name)
		}
	}

	for name := range population {
		if !matched[name] {
			mm.UnknownDistricts = append(mm.UnknownDistricts, name)
		}
	}

	sort.Strings(mm.MissingPopulation)
	sort.Strings(mm.UnknownDistricts)

	if !mm.Empty() {
		zap.L().Warn("interp: population join mismatch",
			zap.Int("districts_without_population", len(mm.MissingPopulation)),
			zap.Int("population_rows_without_district", len(mm.UnknownDistricts)),
			zap.Strings("missing_population", mm.MissingPopulation),
			zap.Strings("unknown_districts", mm.UnknownDistricts))
	}

	return out, mm
}

// districtRec wraps a projected district for the spatial index.
type districtRec struct {
	geom.MultiPolygon
	idx int
}

// Distribute rasterizes the districts, intersects every grid cell with
// the district polygons it may touch and turns the metric intersection
// areas into per-district weights and per-cell population.
func (ip *Interpolator) Distribute(ctx context.Context, districts []model.District) (*Result, error) {
	if len(districts) == 0 {
		return nil, errkind.New(errkind.NoData, eris.New("interp: no districts"))
	}

	tree := rtree.NewTree(25, 50)
	indexed := 0
	for i, d := range districts {
		if len(d.Geometry) == 0 {
			zap.L().Warn("interp: district has no geometry", zap.String("district", d.Name))
			continue
		}
		mp, err := ip.tr.MultiPolygon(d.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "interp: project district %s", d.Name)
		}
		tree.Insert(districtRec{MultiPolygon: mp, idx: i})
		indexed++
	}
	if indexed == 0 {
		return nil, errkind.New(errkind.NoData, eris.New("interp: no districts with geometry"))
	}

	// union of the per-district rasters is the working grid
	cellSet := make(map[string]model.GridCell)
	for _, d := range districts {
		if len(d.Geometry) == 0 {
			continue
		}
		cells, err := ip.grid.Cover(d.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "interp: rasterize district %s", d.Name)
		}
		if len(cells) == 0 {
			zap.L().Warn("interp: district rasterized to zero cells", zap.String("district", d.Name))
		}
		for _, c := range cells {
			cellSet[c.ID] = c
		}
	}
	if len(cellSet) == 0 {
		return nil, errkind.New(errkind.NoData,
			eris.Errorf("interp: no grid cells at resolution %d", ip.grid.Resolution()))
	}

	ids := make([]string, 0, len(cellSet))
	for id := range cellSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		recs         []model.WeightRecord
		recDistrict  []int
		districtArea = make([]float64, len(districts))
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "interp: canceled")
		}

		poly, err := hexgrid.CellToPolygon(id)
		if err != nil {
			return nil, eris.Wrapf(err, "interp: boundary of cell %s", id)
		}
		projected, err := ip.tr.Polygon(poly)
		if err != nil {
			return nil, eris.Wrapf(err, "interp: project cell %s", id)
		}

		for _, hit := range tree.SearchIntersect(projected.Bounds()) {
			rec := hit.(districtRec)
			area := projected.Intersection(rec.MultiPolygon).Area()
			if area <= 0 {
				continue
			}
			recs = append(recs, model.WeightRecord{
				CellID:   id,
				District: districts[rec.idx].Name,
				AreaM2:   area,
			})
			recDistrict = append(recDistrict, rec.idx)
			districtArea[rec.idx] += area
		}
	}

	for i, d := range districts {
		if len(d.Geometry) > 0 && districtArea[i] <= 0 {
			zap.L().Warn("interp: district has no grid overlap", zap.String("district", d.Name))
		}
	}

	values := make(map[string]float64, len(ids))
	var total float64
	for j := range recs {
		di := recDistrict[j]
		sum := districtArea[di]
		if sum <= 0 {
			sum = 1.0
		}
		w := recs[j].AreaM2 / sum
		recs[j].Weight = w
		contrib := districts[di].Population * w
		values[recs[j].CellID] += contrib
		total += contrib
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].District != recs[j].District {
			return recs[i].District < recs[j].District
		}
		return recs[i].CellID < recs[j].CellID
	})

	out := &Result{
		Cells:           make([]model.GridCell, 0, len(ids)),
		Weights:         recs,
		Values:          make([]model.CellValue, 0, len(ids)),
		TotalPopulation: total,
	}
	for _, id := range ids {
		out.Cells = append(out.Cells, cellSet[id])
		out.Values = append(out.Values, model.CellValue{CellID: id, Value: values[id]})
	}

	zap.L().Info("interp: distributed population",
		zap.Int("districts", len(districts)),
		zap.Int("cells", len(out.Cells)),
		zap.Int("weights", len(out.Weights)),
		zap.Float64("total_population", total))

	return out, nil
}
