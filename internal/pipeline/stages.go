package pipeline

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/classify"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/ingest"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/interp"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/kpi"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/metrics"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/scorer"
)

// Inputs names the source files of one run. LandUse may be empty; the
// green-share KPI then scores zero everywhere.
type Inputs struct {
	Districts  string
	Population string
	Transit    string
	Amenities  string
	LandUse    string
}

// SourceData is the ingested and classified source material of a run.
type SourceData struct {
	Districts  []model.District
	Population map[string]float64
	Transit    []model.PointFeature
	Amenities  []model.PointFeature
	LandUse    []model.LandUseArea
}

// Ingest loads and classifies every input layer. Per-record problems are
// skipped with counts; a missing or undecodable file aborts the stage.
func (p *Pipeline) Ingest(ctx context.Context, in Inputs) (*SourceData, error) {
	rules := p.transitRules()

	districts, dStats, err := ingest.LoadDistricts(in.Districts)
	if err != nil {
		return nil, err
	}
	metrics.ObserveIngest(model.LayerDistricts, len(districts), dStats.Skipped)

	// Metric area once per district, shared by density KPIs and export.
	for i := range districts {
		if districts[i].AreaKm2 > 0 || len(districts[i].Geometry) == 0 {
			continue
		}
		area, aErr := p.tr.AreaKm2(districts[i].Geometry)
		if aErr != nil {
			return nil, eris.Wrapf(aErr, "pipeline: area of district %s", districts[i].Name)
		}
		districts[i].AreaKm2 = area
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: ingest canceled")
	}

	population, pStats, err := ingest.LoadPopulation(in.Population, p.PopulationOptions())
	if err != nil {
		return nil, err
	}
	metrics.ObserveIngest("population", len(population), pStats.Skipped)

	transit, tStats, err := ingest.LoadPointFeatures(in.Transit, model.LayerTransitStops, rules)
	if err != nil {
		return nil, err
	}
	metrics.ObserveIngest(model.LayerTransitStops, len(transit), tStats.Skipped)

	amenities, aStats, err := ingest.LoadPointFeatures(in.Amenities, model.LayerAmenities, nil)
	if err != nil {
		return nil, err
	}
	metrics.ObserveIngest(model.LayerAmenities, len(amenities), aStats.Skipped)

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: ingest canceled")
	}

	var landuse []model.LandUseArea
	if in.LandUse != "" {
		lu, lStats, luErr := ingest.LoadLandUse(in.LandUse, p.tr)
		if luErr != nil {
			return nil, luErr
		}
		landuse = lu
		metrics.ObserveIngest(model.LayerLandUse, len(lu), lStats.Skipped)
	} else {
		zap.L().Warn("pipeline: no land-use input, green share will be zero")
	}

	return &SourceData{
		Districts:  districts,
		Population: population,
		Transit:    transit,
		Amenities:  amenities,
		LandUse:    landuse,
	}, nil
}

// transitRules resolves the classification cascade: the configured YAML
// file when it loads, the built-in cascade otherwise.
func (p *Pipeline) transitRules() []classify.Rule {
	path := p.cfg.Ingest.RulesFile
	if path == "" {
		return classify.DefaultTransitRules()
	}
	rules, err := classify.LoadRules(path)
	if err != nil {
		zap.L().Warn("pipeline: rules file unusable, using built-in cascade",
			zap.String("path", path), zap.Error(err))
		return classify.DefaultTransitRules()
	}
	return rules
}

// PopulationOptions maps the ingest configuration onto the population
// loader's options.
func (p *Pipeline) PopulationOptions() ingest.PopulationOptions {
	opts := ingest.PopulationOptions{
		Charset:          p.cfg.Ingest.Charset,
		DateColumn:       p.cfg.Ingest.DateColumn,
		DistrictColumn:   p.cfg.Ingest.DistrictColumn,
		AgeGroupColumn:   p.cfg.Ingest.AgeGroupColumn,
		PopulationColumn: p.cfg.Ingest.PopulationColumn,
	}
	if p.cfg.Ingest.CSVDelimiter != "" {
		opts.Delimiter = []rune(p.cfg.Ingest.CSVDelimiter)[0]
	}
	return opts
}

// Rasterize covers the merged district boundary with grid cells. Zero
// cells out of a non-empty boundary is a data problem, not an empty
// result, and fails with a NoData kind.
func (p *Pipeline) Rasterize(districts []model.District) ([]model.GridCell, error) {
	cells, err := p.grid.Cover(Boundary(districts))
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, errkind.New(errkind.NoData,
			eris.Errorf("pipeline: boundary rasterized to zero cells at resolution %d", p.grid.Resolution()))
	}
	return cells, nil
}

// Interpolate distributes district populations onto the grid with areal
// weighting. Districts must already carry their population.
func (p *Pipeline) Interpolate(ctx context.Context, districts []model.District) (*interp.Result, error) {
	return interp.New(p.grid, p.tr).Distribute(ctx, districts)
}

// KPILayers computes the per-cell KPI layers and attaches the interpolated
// population as its own layer.
func (p *Pipeline) KPILayers(ctx context.Context, src *SourceData, ir *interp.Result) (map[string][]model.CellValue, error) {
	layers, err := kpi.Layers(ctx, p.kpiParams(), ir.Cells, src.Transit, src.Amenities)
	if err != nil {
		return nil, err
	}
	layers[kpi.KPIPopulation] = ir.Values
	return layers, nil
}

// Boundary merges the district polygons into one city boundary.
func Boundary(districts []model.District) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, d := range districts {
		mp = append(mp, d.Geometry...)
	}
	return mp
}

// DistrictKPIs rolls the per-cell layers up to districts through the
// interpolation weights and adds the district-level density KPIs. It
// returns the wide raw table for scoring plus the long-format rows for
// the registry.
func (p *Pipeline) DistrictKPIs(src *SourceData, ir *interp.Result, layers map[string][]model.CellValue) (map[string]map[string]float64, []model.KPIRow, error) {
	raw := make(map[string]map[string]float64)
	var rows []model.KPIRow

	for name, layer := range layers {
		if name == kpi.KPIPopulation {
			// District population is source data, not an aggregate.
			continue
		}
		agg := kpi.AggregateByDistrict(ir.Weights, layer)
		raw[name] = agg
		rows = append(rows, kpi.RowsFromMap(name, agg)...)
	}

	densityRows, err := kpi.DensityRows(src.Districts, src.Transit, src.LandUse, p.cfg.KPI.GreenCategories, p.tr)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range densityRows {
		col := raw[r.KPIName]
		if col == nil {
			col = make(map[string]float64)
			raw[r.KPIName] = col
		}
		col[r.Entity] = r.Value
	}
	rows = append(rows, densityRows...)

	return raw, rows, nil
}

// Score normalizes the raw district KPI table and builds the weighted
// composite ranking.
func (p *Pipeline) Score(raw map[string]map[string]float64) ([]model.ScoreRow, error) {
	ws, err := scorer.LoadWeightSet(p.cfg.Score.WeightsFile)
	if err != nil {
		zap.L().Warn("pipeline: weight set unusable, using defaults", zap.Error(err))
	}
	return scorer.BuildScores(raw, ws, scorer.Method(p.cfg.Score.Method))
}
