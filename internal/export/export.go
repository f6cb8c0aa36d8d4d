// Package export writes the analysis layers of a run into a run-scoped
// output directory: GeoJSON feature collections for maps, Parquet tables
// with WKB geometry for downstream tooling, and a JSON run summary. Every
// file lands atomically via temp file + rename, so a crashed export never
// leaves a truncated layer behind.
package export

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

// Layer file names inside a run directory.
const (
	BoundaryFile         = "boundary.geojson"
	DistrictsFile        = "districts.geojson"
	DistrictsParquetFile = "districts.parquet"
	CellsFile            = "cells.geojson"
	CellsParquetFile     = "cells.parquet"
	FeaturesFile         = "features.geojson"
	ScoresFile           = "scores.json"
	MetadataFile         = "run.json"
)

// RunMetadata is the run summary written next to the layers.
type RunMetadata struct {
	RunID       string         `json:"run_id"`
	City        string         `json:"city"`
	Resolution  int            `json:"resolution"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Layers      map[string]int `json:"layers"`
	KPINames    []string       `json:"kpi_names,omitempty"`
}

// CellColumns reindexes per-cell layers by cell ID, the column shape the
// cell writers and the report take their KPI values in.
func CellColumns(layers map[string][]model.CellValue) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(layers))
	for name, layer := range layers {
		m := make(map[string]float64, len(layer))
		for _, v := range layer {
			m[v.CellID] = v.Value
		}
		out[name] = m
	}
	return out
}

// Writer writes layers for one run. Zero-value is not usable; construct with
// NewWriter.
type Writer struct {
	dir string
}

// NewWriter returns a Writer targeting <outputDir>/<runID>.
func NewWriter(outputDir, runID string) *Writer {
	return &Writer{dir: filepath.Join(outputDir, runID)}
}

// Dir returns the run-scoped output directory.
func (w *Writer) Dir() string { return w.dir }

// Metadata writes the run summary.
func (w *Writer) Metadata(meta RunMetadata) error {
	return w.writeJSON(MetadataFile, meta)
}

// Scores writes the district score table.
func (w *Writer) Scores(scores []model.ScoreRow) error {
	return w.writeJSON(ScoresFile, scores)
}

func (w *Writer) writeJSON(name string, v any) error {
	return w.writeAtomic(name, func(f io.Writer) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// writeAtomic writes name via a temp file in the same directory and renames
// it into place.
func (w *Writer) writeAtomic(name string, write func(io.Writer) error) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create output dir %s", w.dir)
	}

	tmp, err := os.CreateTemp(w.dir, "."+name+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "export: create temp file for %s", name)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()          //nolint:errcheck
		os.Remove(tmpName)   //nolint:errcheck
		return eris.Wrapf(err, "export: write %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "export: close %s", name)
	}

	if err := os.Rename(tmpName, filepath.Join(w.dir, name)); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "export: move %s into place", name)
	}
	return nil
}
