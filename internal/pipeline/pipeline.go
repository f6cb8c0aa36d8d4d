// Package pipeline orchestrates the analysis stages: ingest, grid,
// interpolate, kpi, score, export. A full run is tracked in the run
// registry with one phase record per stage; the first stage error marks
// the run failed with its error category and aborts the rest.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/config"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/export"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/interp"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/kpi"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/metrics"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/raster"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/report"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/store"
)

// SpatialWriter persists spatial layers to the optional Postgres store.
// A nil SpatialWriter disables spatial persistence; the file exports and
// the run registry are unaffected.
type SpatialWriter interface {
	SaveDistricts(ctx context.Context, city string, districts []model.District) (int64, error)
	SaveFeatures(ctx context.Context, city string, features []model.PointFeature) (int64, error)
	SaveLandUse(ctx context.Context, city string, areas []model.LandUseArea) (int64, error)
	SaveCells(ctx context.Context, city string, cells []model.GridCell) (int64, error)
	SaveKPIValues(ctx context.Context, runID, kpiName string, values []model.CellValue) (int64, error)
	SaveScores(ctx context.Context, runID, city string, scores []model.ScoreRow) (int64, error)
}

// Pipeline wires the stages to the configuration and the stores.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	spatial SpatialWriter
	tr      *geometry.Transform
	grid    *raster.Grid
}

// New builds a Pipeline from the configuration. The metric transform and
// the rasterizer are constructed once and shared by every stage.
func New(cfg *config.Config, st store.Store, spatial SpatialWriter) (*Pipeline, error) {
	tr, err := geometry.NewTransform(cfg.City.Proj)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: metric transform")
	}
	grid, err := raster.New(cfg.Grid.Resolution, cfg.Grid.ScanStepDeg)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: rasterizer")
	}
	return &Pipeline{cfg: cfg, store: st, spatial: spatial, tr: tr, grid: grid}, nil
}

// Run executes the full pipeline over one city's input files as a single
// tracked run and returns the completed run record.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*model.Run, error) {
	city := p.cfg.City.Name
	log := zap.L().With(zap.String("city", city))
	log.Info("pipeline: starting run",
		zap.Int("resolution", p.cfg.Grid.Resolution))

	run, err := p.store.CreateRun(ctx, city, p.cfg.Grid.Resolution)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	var phases []model.PhaseResult

	var (
		src    *SourceData
		ir     *interp.Result
		layers map[string][]model.CellValue
		rows   []model.KPIRow
		scores []model.ScoreRow
	)

	// ===== ingest =====
	p.setStatus(ctx, run.ID, model.RunStatusIngesting)
	err = p.trackPhase(ctx, run.ID, "ingest", &phases, func() (map[string]any, error) {
		data, ingErr := p.Ingest(ctx, in)
		if ingErr != nil {
			return nil, ingErr
		}
		src = data
		if p.spatial != nil {
			if _, sErr := p.spatial.SaveDistricts(ctx, city, src.Districts); sErr != nil {
				return nil, sErr
			}
			feats := append(append([]model.PointFeature{}, src.Transit...), src.Amenities...)
			if _, sErr := p.spatial.SaveFeatures(ctx, city, feats); sErr != nil {
				return nil, sErr
			}
			if _, sErr := p.spatial.SaveLandUse(ctx, city, src.LandUse); sErr != nil {
				return nil, sErr
			}
		}
		return map[string]any{
			"districts":       len(src.Districts),
			"transit_stops":   len(src.Transit),
			"amenities":       len(src.Amenities),
			"landuse_areas":   len(src.LandUse),
			"population_rows": len(src.Population),
		}, nil
	})
	if err != nil {
		return p.fail(ctx, run.ID, err)
	}

	// ===== grid =====
	p.setStatus(ctx, run.ID, model.RunStatusRasterizing)
	err = p.trackPhase(ctx, run.ID, "grid", &phases, func() (map[string]any, error) {
		cells, gridErr := p.Rasterize(src.Districts)
		if gridErr != nil {
			return nil, gridErr
		}
		return map[string]any{"cells": len(cells)}, nil
	})
	if err != nil {
		return p.fail(ctx, run.ID, err)
	}

	// ===== interpolate =====
	p.setStatus(ctx, run.ID, model.RunStatusInterpolating)
	err = p.trackPhase(ctx, run.ID, "interpolate", &phases, func() (map[string]any, error) {
		joined, mm := interp.JoinPopulation(src.Districts, src.Population)
		src.Districts = joined

		res, ipErr := p.Interpolate(ctx, joined)
		if ipErr != nil {
			return nil, ipErr
		}
		ir = res
		if p.spatial != nil {
			if _, sErr := p.spatial.SaveCells(ctx, city, ir.Cells); sErr != nil {
				return nil, sErr
			}
		}
		return map[string]any{
			"cells":             len(ir.Cells),
			"weights":           len(ir.Weights),
			"total_population":  ir.TotalPopulation,
			"join_missing_pop":  len(mm.MissingPopulation),
			"join_unknown_rows": len(mm.UnknownDistricts),
		}, nil
	})
	if err != nil {
		return p.fail(ctx, run.ID, err)
	}

	// ===== kpi =====
	p.setStatus(ctx, run.ID, model.RunStatusAggregating)
	err = p.trackPhase(ctx, run.ID, "kpi", &phases, func() (map[string]any, error) {
		computed, kpiErr := p.KPILayers(ctx, src, ir)
		if kpiErr != nil {
			return nil, kpiErr
		}
		layers = computed

		for name, layer := range layers {
			metrics.KPIValuesTotal.WithLabelValues(name).Add(float64(len(layer)))
			if p.spatial != nil {
				if _, sErr := p.spatial.SaveKPIValues(ctx, run.ID, name, layer); sErr != nil {
					return nil, sErr
				}
			}
		}
		return map[string]any{"layers": len(layers), "cells": len(ir.Cells)}, nil
	})
	if err != nil {
		return p.fail(ctx, run.ID, err)
	}

	// ===== score =====
	p.setStatus(ctx, run.ID, model.RunStatusScoring)
	err = p.trackPhase(ctx, run.ID, "score", &phases, func() (map[string]any, error) {
		raw, kpiRows, tblErr := p.DistrictKPIs(src, ir, layers)
		if tblErr != nil {
			return nil, tblErr
		}
		rows = kpiRows
		if sErr := p.store.SaveKPIResults(ctx, run.ID, rows); sErr != nil {
			return nil, sErr
		}

		built, scErr := p.Score(raw)
		if scErr != nil {
			return nil, scErr
		}
		scores = built
		if sErr := p.store.SaveScores(ctx, run.ID, city, scores); sErr != nil {
			return nil, sErr
		}
		if p.spatial != nil {
			if _, sErr := p.spatial.SaveScores(ctx, run.ID, city, scores); sErr != nil {
				return nil, sErr
			}
		}
		return map[string]any{"kpi_rows": len(rows), "districts": len(scores)}, nil
	})
	if err != nil {
		return p.fail(ctx, run.ID, err)
	}

	// ===== export =====
	p.setStatus(ctx, run.ID, model.RunStatusExporting)
	writer := export.NewWriter(p.cfg.Output.Dir, run.ID)
	err = p.trackPhase(ctx, run.ID, "export", &phases, func() (map[string]any, error) {
		if expErr := p.Export(writer, run.ID, run.CreatedAt, src, ir, layers, scores); expErr != nil {
			return nil, expErr
		}
		return map[string]any{"dir": writer.Dir()}, nil
	})
	if err != nil {
		return p.fail(ctx, run.ID, err)
	}

	// Finalize the run record; UpdateRunResult marks the run complete.
	result := &model.RunResult{
		Districts:       len(src.Districts),
		Cells:           len(ir.Cells),
		Features:        len(src.Transit) + len(src.Amenities),
		TotalPopulation: ir.TotalPopulation,
		Layers:          layerNames(layers),
		Phases:          phases,
		OutputDir:       writer.Dir(),
	}
	if err := p.store.UpdateRunResult(ctx, run.ID, result); err != nil {
		return p.fail(ctx, run.ID, err)
	}
	metrics.RunsTotal.WithLabelValues(string(model.RunStatusComplete)).Inc()

	final, err := p.store.GetRun(ctx, run.ID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reload run")
	}

	p.writeReport(ctx, writer.Dir(), *final, scores, layers)

	log.Info("pipeline: run complete",
		zap.Int("districts", result.Districts),
		zap.Int("cells", result.Cells),
		zap.Int("features", result.Features),
		zap.Float64("total_population", result.TotalPopulation),
		zap.String("output", writer.Dir()))

	return final, nil
}

// trackPhase records one stage in the registry and the duration histogram.
// The stage error is returned unchanged so the caller can abort the run.
func (p *Pipeline) trackPhase(ctx context.Context, runID, name string, phases *[]model.PhaseResult, fn func() (map[string]any, error)) error {
	phase, err := p.store.CreatePhase(ctx, runID, name)
	if err != nil {
		zap.L().Warn("pipeline: create phase",
			zap.String("phase", name), zap.Error(err))
	}

	start := time.Now()
	meta, fnErr := fn()
	elapsed := time.Since(start)

	pr := model.PhaseResult{
		Name:     name,
		Duration: elapsed.Milliseconds(),
		Metadata: meta,
	}
	if fnErr != nil {
		pr.Status = model.PhaseStatusFailed
		pr.Error = fnErr.Error()
		zap.L().Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", pr.Duration),
			zap.Error(fnErr))
	} else {
		pr.Status = model.PhaseStatusComplete
		zap.L().Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", pr.Duration))
	}

	if phase != nil {
		if cErr := p.store.CompletePhase(ctx, phase.ID, &pr); cErr != nil {
			zap.L().Warn("pipeline: complete phase",
				zap.String("phase", name), zap.Error(cErr))
		}
	}
	metrics.PhaseDurationSeconds.WithLabelValues(name).Observe(elapsed.Seconds())

	*phases = append(*phases, pr)
	return fnErr
}

func (p *Pipeline) setStatus(ctx context.Context, runID string, status model.RunStatus) {
	if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("pipeline: update status",
			zap.String("status", string(status)), zap.Error(err))
	}
}

// fail marks the run failed with the error's category. Bookkeeping runs on
// an uncancelable context so a ctrl-C abort still records the failure.
func (p *Pipeline) fail(ctx context.Context, runID string, runErr error) (*model.Run, error) {
	category := model.ErrorCategoryPermanent
	if errkind.IsTransient(runErr) {
		category = model.ErrorCategoryTransient
	}

	ctx = context.WithoutCancel(ctx)
	if err := p.store.FailRun(ctx, runID, model.RunError{
		Category: category,
		Message:  runErr.Error(),
	}); err != nil {
		zap.L().Warn("pipeline: record failure", zap.Error(err))
	}
	metrics.RunsTotal.WithLabelValues(string(model.RunStatusFailed)).Inc()

	run, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return nil, runErr
	}
	return run, runErr
}

// Export writes every layer artifact into the writer's directory. The
// run ID and start time only stamp the metadata file; an empty ID marks
// an untracked export.
func (p *Pipeline) Export(w *export.Writer, runID string, startedAt time.Time, src *SourceData, ir *interp.Result, layers map[string][]model.CellValue, scores []model.ScoreRow) error {
	city := p.cfg.City.Name

	if err := w.Boundary(city, Boundary(src.Districts)); err != nil {
		return err
	}

	scoreIdx := make(map[string]model.ScoreRow, len(scores))
	for _, s := range scores {
		scoreIdx[s.District] = s
	}
	if err := w.Districts(src.Districts, scoreIdx); err != nil {
		return err
	}

	if err := w.Cells(ir.Cells, export.CellColumns(layers)); err != nil {
		return err
	}

	feats := append(append([]model.PointFeature{}, src.Transit...), src.Amenities...)
	if err := w.Features(feats); err != nil {
		return err
	}

	if err := w.Scores(scores); err != nil {
		return err
	}

	return w.Metadata(export.RunMetadata{
		RunID:       runID,
		City:        city,
		Resolution:  p.cfg.Grid.Resolution,
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
		Layers: map[string]int{
			model.LayerDistricts:    len(src.Districts),
			model.LayerCells:        len(ir.Cells),
			model.LayerTransitStops: len(src.Transit),
			model.LayerAmenities:    len(src.Amenities),
			model.LayerLandUse:      len(src.LandUse),
		},
		KPINames: layerNames(layers),
	})
}

// writeReport renders the HTML and JSON run report. Report failures are
// logged, not fatal: the run itself already completed.
func (p *Pipeline) writeReport(ctx context.Context, dir string, run model.Run, scores []model.ScoreRow, layers map[string][]model.CellValue) {
	phases, err := p.store.ListPhases(ctx, run.ID)
	if err != nil {
		zap.L().Warn("pipeline: list phases for report", zap.Error(err))
	}
	data := report.Build(run, scores, export.CellColumns(layers), phases)
	if err := report.Write(dir, data); err != nil {
		zap.L().Warn("pipeline: write report", zap.Error(err))
		return
	}
	zap.L().Info("pipeline: report written", zap.String("dir", dir))
}

func (p *Pipeline) kpiParams() kpi.Params {
	return kpi.Params{
		GravityRadiusM:      p.cfg.KPI.GravityRadiusM,
		EssentialsRadiusM:   p.cfg.KPI.EssentialsRadiusM,
		DiversityRadiusM:    p.cfg.KPI.DiversityRadiusM,
		EssentialCategories: p.cfg.KPI.EssentialCategories,
		ModeWeights:         kpi.Weights(p.cfg.KPI.ModeWeights),
		Workers:             p.cfg.KPI.Workers,
	}
}

func layerNames(layers map[string][]model.CellValue) []string {
	names := make([]string, 0, len(layers))
	for name := range layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
