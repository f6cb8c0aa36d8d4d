package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/config"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/export"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/interp"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/kpi"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/report"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/store"
)

const districtsFixture = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"name":"Mitte"},"geometry":{"type":"Polygon","coordinates":[[[9.10,48.70],[9.14,48.70],[9.14,48.74],[9.10,48.74],[9.10,48.70]]]}},
	{"type":"Feature","properties":{"name":"Ost"},"geometry":{"type":"Polygon","coordinates":[[[9.14,48.70],[9.18,48.70],[9.18,48.74],[9.14,48.74],[9.14,48.70]]]}}
]}`

const populationFixture = `Stichtag;Stadtbezirk;Alter in 10 Gruppen;Einwohner
31.12.2023;Mitte;unter 10;500
31.12.2023;Mitte;10 bis 20;450
31.12.2023;Mitte;Insgesamt;950
31.12.2023;Ost;unter 10;300
31.12.2023;Ost;10 bis 20;200
31.12.2022;Mitte;unter 10;999
31.12.2023;Insgesamt;;8999
`

const transitFixture = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"railway":"tram_stop","name":"Rathaus"},"geometry":{"type":"Point","coordinates":[9.11,48.71]}},
	{"type":"Feature","properties":{"highway":"bus_stop"},"geometry":{"type":"Point","coordinates":[9.12,48.72]}},
	{"type":"Feature","properties":{"name":"S Untertürkheim"},"geometry":{"type":"Point","coordinates":[9.15,48.71]}}
]}`

const amenitiesFixture = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"amenity":"pharmacy"},"geometry":{"type":"Point","coordinates":[9.115,48.715]}},
	{"type":"Feature","properties":{"shop":"supermarket"},"geometry":{"type":"Point","coordinates":[9.125,48.725]}},
	{"type":"Feature","properties":{"amenity":"school"},"geometry":{"type":"Point","coordinates":[9.15,48.72]}}
]}`

const landuseFixture = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"leisure":"park"},"geometry":{"type":"Polygon","coordinates":[[[9.105,48.705],[9.115,48.705],[9.115,48.715],[9.105,48.715],[9.105,48.705]]]}}
]}`

func orbSquare(lng, lat, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{lng, lat},
		{lng + size, lat},
		{lng + size, lat + size},
		{lng, lat + size},
		{lng, lat},
	}}}
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testInputs(t *testing.T) Inputs {
	t.Helper()
	dir := t.TempDir()
	return Inputs{
		Districts:  writeFixture(t, dir, "districts.geojson", districtsFixture),
		Population: writeFixture(t, dir, "population.csv", populationFixture),
		Transit:    writeFixture(t, dir, "transit.geojson", transitFixture),
		Amenities:  writeFixture(t, dir, "amenities.geojson", amenitiesFixture),
		LandUse:    writeFixture(t, dir, "landuse.geojson", landuseFixture),
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		City: config.CityConfig{
			Name: "stuttgart",
			Proj: "+proj=utm +zone=32 +ellps=GRS80 +units=m +no_defs",
		},
		Grid: config.GridConfig{Resolution: 8, ScanStepDeg: 0.01},
		KPI: config.KPIConfig{
			GravityRadiusM:      1500,
			EssentialsRadiusM:   800,
			DiversityRadiusM:    300,
			EssentialCategories: []string{"supermarket", "pharmacy", "school", "doctors", "hospital"},
			ModeWeights:         map[string]float64{"s_bahn": 3.0, "tram": 2.0, "bus": 1.0, "other": 0.5},
			GreenCategories:     []string{"park", "forest"},
			Workers:             4,
		},
		Score:  config.ScoreConfig{Method: "minmax"},
		Ingest: config.IngestConfig{CSVDelimiter: ";", Charset: "utf-8"},
		Output: config.OutputConfig{Dir: t.TempDir()},
	}
}

func newTestRegistry(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRun_Complete(t *testing.T) {
	cfg := testConfig(t)
	reg := newTestRegistry(t)

	p, err := New(cfg, reg, nil)
	require.NoError(t, err)

	run, err := p.Run(context.Background(), testInputs(t))
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 2, run.Result.Districts)
	assert.Equal(t, 6, run.Result.Features)
	assert.Greater(t, run.Result.Cells, 0)
	assert.InDelta(t, 1450.0, run.Result.TotalPopulation, 1e-6)
	assert.Contains(t, run.Result.Layers, kpi.KPIPTGravity)
	assert.Contains(t, run.Result.Layers, kpi.KPIEssentials)
	assert.Contains(t, run.Result.Layers, kpi.KPIDiversity)
	assert.Contains(t, run.Result.Layers, kpi.KPIPopulation)

	wantPhases := []string{"ingest", "grid", "interpolate", "kpi", "score", "export"}
	require.Len(t, run.Result.Phases, len(wantPhases))
	for i, ph := range run.Result.Phases {
		assert.Equal(t, wantPhases[i], ph.Name)
		assert.Equal(t, model.PhaseStatusComplete, ph.Status)
	}

	scores, err := reg.ListScores(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	byRank := map[int]string{}
	for _, s := range scores {
		byRank[s.Rank] = s.District
		assert.Contains(t, []string{"Mitte", "Ost"}, s.District)
	}
	assert.Len(t, byRank, 2)

	rows, err := reg.ListKPIResults(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	kpiNames := map[string]bool{}
	for _, r := range rows {
		kpiNames[r.KPIName] = true
	}
	assert.True(t, kpiNames[kpi.KPIPTGravity])
	assert.True(t, kpiNames[kpi.KPIGreenShare])
	assert.True(t, kpiNames[kpi.KPIPopulationDensity])

	outDir := filepath.Join(cfg.Output.Dir, run.ID)
	assert.Equal(t, outDir, run.Result.OutputDir)
	for _, name := range []string{
		export.BoundaryFile,
		export.DistrictsFile,
		export.DistrictsParquetFile,
		export.CellsFile,
		export.CellsParquetFile,
		export.FeaturesFile,
		export.ScoresFile,
		export.MetadataFile,
		report.HTMLFile,
		report.JSONFile,
	} {
		_, statErr := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, statErr, name)
	}
}

func TestRun_FailsOnMissingInput(t *testing.T) {
	cfg := testConfig(t)
	reg := newTestRegistry(t)

	p, err := New(cfg, reg, nil)
	require.NoError(t, err)

	in := testInputs(t)
	in.Districts = filepath.Join(t.TempDir(), "missing.geojson")

	run, err := p.Run(context.Background(), in)
	require.Error(t, err)
	require.NotNil(t, run)

	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, model.ErrorCategoryPermanent, run.Error.Category)
	assert.NotEmpty(t, run.Error.Message)

	phases, err := reg.ListPhases(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, phases, 1)
	assert.Equal(t, "ingest", phases[0].Name)
	assert.Equal(t, model.PhaseStatusFailed, phases[0].Status)
}

func TestIngest_ClassifiesAndCounts(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, newTestRegistry(t), nil)
	require.NoError(t, err)

	src, err := p.Ingest(context.Background(), testInputs(t))
	require.NoError(t, err)

	require.Len(t, src.Districts, 2)
	assert.Greater(t, src.Districts[0].AreaKm2, 1.0)

	require.Len(t, src.Transit, 3)
	categories := map[string]bool{}
	for _, f := range src.Transit {
		categories[f.Category] = true
		assert.Equal(t, model.LayerTransitStops, f.Layer)
	}
	assert.True(t, categories["tram"])
	assert.True(t, categories["bus"])
	assert.True(t, categories["s_bahn"])

	require.Len(t, src.Amenities, 3)
	amenityCats := map[string]bool{}
	for _, f := range src.Amenities {
		amenityCats[f.Category] = true
	}
	assert.True(t, amenityCats["pharmacy"])
	assert.True(t, amenityCats["supermarket"])
	assert.True(t, amenityCats["school"])

	require.Len(t, src.LandUse, 1)
	assert.Equal(t, "park", src.LandUse[0].Category)

	assert.Equal(t, map[string]float64{"Mitte": 950, "Ost": 500}, src.Population)
}

func TestIngest_LandUseOptional(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, newTestRegistry(t), nil)
	require.NoError(t, err)

	in := testInputs(t)
	in.LandUse = ""

	src, err := p.Ingest(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, src.LandUse)
}

func TestBoundary(t *testing.T) {
	districts := []model.District{
		{Name: "a", Geometry: orbSquare(9.10, 48.70, 0.04)},
		{Name: "b", Geometry: orbSquare(9.14, 48.70, 0.04)},
	}
	mp := Boundary(districts)
	assert.Len(t, mp, 2)
}

func TestDistrictKPIs_FoldsLayersAndDensities(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, newTestRegistry(t), nil)
	require.NoError(t, err)

	src := &SourceData{
		Districts: []model.District{
			{Name: "Mitte", Geometry: orbSquare(9.10, 48.70, 0.04), Population: 950, AreaKm2: 10},
			{Name: "Ost", Geometry: orbSquare(9.14, 48.70, 0.04), Population: 500, AreaKm2: 10},
		},
	}
	ir := &interp.Result{
		Weights: []model.WeightRecord{
			{CellID: "c1", District: "Mitte", Weight: 1.0},
			{CellID: "c2", District: "Ost", Weight: 1.0},
		},
	}
	layers := map[string][]model.CellValue{
		kpi.KPIPTGravity: {
			{CellID: "c1", Value: 4.0},
			{CellID: "c2", Value: 2.0},
		},
		kpi.KPIPopulation: {
			{CellID: "c1", Value: 950},
			{CellID: "c2", Value: 500},
		},
	}

	raw, rows, err := p.DistrictKPIs(src, ir, layers)
	require.NoError(t, err)

	// The population layer is source data, not an aggregated KPI column.
	assert.NotContains(t, raw, kpi.KPIPopulation)
	assert.InDelta(t, 4.0, raw[kpi.KPIPTGravity]["Mitte"], 1e-9)
	assert.InDelta(t, 2.0, raw[kpi.KPIPTGravity]["Ost"], 1e-9)
	assert.InDelta(t, 95.0, raw[kpi.KPIPopulationDensity]["Mitte"], 1e-9)
	assert.InDelta(t, 50.0, raw[kpi.KPIPopulationDensity]["Ost"], 1e-9)
	assert.Contains(t, raw, kpi.KPIGreenShare)

	names := map[string]int{}
	for _, r := range rows {
		names[r.KPIName]++
	}
	assert.Equal(t, 2, names[kpi.KPIPTGravity])
	assert.Equal(t, 2, names[kpi.KPIPopulationDensity])
	assert.Equal(t, 0, names[kpi.KPIPopulation])
}
