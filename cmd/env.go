package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/interp"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/pipeline"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/store"
)

// initRegistry opens the SQLite run registry and applies its migrations.
func initRegistry(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.NewSQLite(cfg.Store.RegistryDSN)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate registry")
	}
	return st, nil
}

// initSpatial opens the optional Postgres spatial store. With the sqlite
// driver there is no spatial store and the return is nil.
func initSpatial(ctx context.Context) (*store.SpatialStore, error) {
	if cfg.Store.Driver != "postgres" {
		return nil, nil
	}
	sp, err := store.NewSpatial(ctx, cfg.Store.DatabaseURL, nil)
	if err != nil {
		return nil, err
	}
	if err := sp.Migrate(ctx); err != nil {
		_ = sp.Close()
		return nil, eris.Wrap(err, "migrate spatial store")
	}
	return sp, nil
}

// pipelineEnv holds the opened stores and the pipeline shared by the run
// and stage commands.
type pipelineEnv struct {
	Registry store.Store
	Spatial  *store.SpatialStore // nil with the sqlite driver
	Pipeline *pipeline.Pipeline
}

// Close releases the stores.
func (pe *pipelineEnv) Close() {
	if pe.Spatial != nil {
		_ = pe.Spatial.Close()
	}
	if pe.Registry != nil {
		_ = pe.Registry.Close()
	}
}

// initPipeline opens the stores and builds the pipeline. Callers should
// defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("city", "grid", "kpi"); err != nil {
		return nil, err
	}

	st, err := initRegistry(ctx)
	if err != nil {
		return nil, err
	}
	sp, err := initSpatial(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	// The interface must stay nil without a spatial store; a typed nil
	// *store.SpatialStore would not compare equal to nil.
	var spatial pipeline.SpatialWriter
	if sp != nil {
		spatial = sp
	}

	p, err := pipeline.New(cfg, st, spatial)
	if err != nil {
		if sp != nil {
			_ = sp.Close()
		}
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{Registry: st, Spatial: sp, Pipeline: p}, nil
}

// addInputFlags registers the source-file flags shared by the commands
// that recompute the full chain.
func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("districts", "", "district polygons (GeoJSON or shapefile)")
	f.String("population", "", "population table (CSV or XLSX)")
	f.String("transit", "", "transit stop points (GeoJSON)")
	f.String("amenities", "", "amenity points (GeoJSON)")
	f.String("landuse", "", "land-use polygons (GeoJSON or shapefile, optional)")
}

// markInputsRequired marks every input flag except land use as required.
func markInputsRequired(cmd *cobra.Command) {
	for _, name := range []string{"districts", "population", "transit", "amenities"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

// inputsFromFlags reads the source-file flags into pipeline inputs.
func inputsFromFlags(cmd *cobra.Command) pipeline.Inputs {
	districts, _ := cmd.Flags().GetString("districts")
	population, _ := cmd.Flags().GetString("population")
	transit, _ := cmd.Flags().GetString("transit")
	amenities, _ := cmd.Flags().GetString("amenities")
	landuse, _ := cmd.Flags().GetString("landuse")
	return pipeline.Inputs{
		Districts:  districts,
		Population: population,
		Transit:    transit,
		Amenities:  amenities,
		LandUse:    landuse,
	}
}

// computeLayers recomputes the chain up to the per-cell KPI layers in
// memory: ingest, population join, interpolation, KPI computation.
func computeLayers(ctx context.Context, p *pipeline.Pipeline, in pipeline.Inputs) (*pipeline.SourceData, *interp.Result, map[string][]model.CellValue, error) {
	src, err := p.Ingest(ctx, in)
	if err != nil {
		return nil, nil, nil, err
	}
	joined, _ := interp.JoinPopulation(src.Districts, src.Population)
	src.Districts = joined

	ir, err := p.Interpolate(ctx, joined)
	if err != nil {
		return nil, nil, nil, err
	}
	layers, err := p.KPILayers(ctx, src, ir)
	if err != nil {
		return nil, nil, nil, err
	}
	return src, ir, layers, nil
}
