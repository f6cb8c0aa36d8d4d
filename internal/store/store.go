// Package store persists pipeline state. The run registry (runs, phases,
// district-level KPI results and scores) always lives in a local SQLite
// file; large spatial layers can additionally be written to Postgres via
// the SpatialStore when the postgres driver is configured.
package store

import (
	"context"
	"time"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status        model.RunStatus     `json:"status,omitempty"`
	City          string              `json:"city,omitempty"`
	ErrorCategory model.ErrorCategory `json:"error_category,omitempty"`
	CreatedAfter  time.Time           `json:"created_after,omitempty"`
	Limit         int                 `json:"limit,omitempty"`
	Offset        int                 `json:"offset,omitempty"`
}

// Store is the run registry. Run IDs are generated once by CreateRun and
// passed explicitly to every other operation; nothing infers run identity
// from the filesystem.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, city string, resolution int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, runErr model.RunError) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// District-level KPI results
	SaveKPIResults(ctx context.Context, runID string, rows []model.KPIRow) error
	ListKPIResults(ctx context.Context, runID string) ([]model.KPIRow, error)

	// District scores
	SaveScores(ctx context.Context, runID, city string, rows []model.ScoreRow) error
	ListScores(ctx context.Context, runID string) ([]model.ScoreRow, error)
	LatestScores(ctx context.Context, city string) ([]model.ScoreRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
