package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued        RunStatus = "queued"
	RunStatusIngesting     RunStatus = "ingesting"
	RunStatusRasterizing   RunStatus = "rasterizing"
	RunStatusInterpolating RunStatus = "interpolating"
	RunStatusAggregating   RunStatus = "aggregating"
	RunStatusScoring       RunStatus = "scoring"
	RunStatusExporting     RunStatus = "exporting"
	RunStatusComplete      RunStatus = "complete"
	RunStatusFailed        RunStatus = "failed"
)

// ErrorCategory classifies a run failure for filtering and retry decisions.
type ErrorCategory string

const (
	ErrorCategoryTransient ErrorCategory = "transient"
	ErrorCategoryPermanent ErrorCategory = "permanent"
)

// Run represents a single pipeline run over one city's data. The ID is
// passed explicitly by the caller to every stage; there is no filesystem
// scanning to infer run numbering.
type Run struct {
	ID         string     `json:"id"`
	City       string     `json:"city"`
	Resolution int        `json:"resolution"`
	Status     RunStatus  `json:"status"`
	Result     *RunResult `json:"result,omitempty"`
	Error      *RunError  `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RunError carries the failure category and message of a failed run.
type RunError struct {
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
}

// RunResult holds the final outcome of a completed run.
type RunResult struct {
	Districts       int           `json:"districts"`
	Cells           int           `json:"cells"`
	Features        int           `json:"features"`
	TotalPopulation float64       `json:"total_population"`
	Layers          []string      `json:"layers"`
	Phases          []PhaseResult `json:"phases"`
	OutputDir       string        `json:"output_dir,omitempty"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
