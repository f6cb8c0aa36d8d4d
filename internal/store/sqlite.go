package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	city           TEXT NOT NULL,
	resolution     INTEGER NOT NULL,
	status         TEXT NOT NULL DEFAULT 'queued',
	result         TEXT,
	error_category TEXT,
	error_message  TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS kpi_results (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	entity   TEXT NOT NULL,
	kpi_name TEXT NOT NULL,
	value    REAL NOT NULL,
	PRIMARY KEY (run_id, entity, kpi_name)
);

CREATE TABLE IF NOT EXISTS district_scores (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	city       TEXT NOT NULL,
	district   TEXT NOT NULL,
	raw        TEXT NOT NULL,
	normalized TEXT NOT NULL,
	composite  REAL NOT NULL,
	rank       INTEGER NOT NULL,
	PRIMARY KEY (run_id, district)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_city ON runs(city);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_kpi_results_run_id ON kpi_results(run_id);
CREATE INDEX IF NOT EXISTS idx_district_scores_city ON district_scores(city);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, city string, resolution int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, city, resolution, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, city, resolution, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:         id,
		City:       city,
		Resolution: resolution,
		Status:     model.RunStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr model.RunError) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_category = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), string(runErr.Category), runErr.Message, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, city, resolution, status, result, error_category, error_message, created_at, updated_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, city, resolution, status, result, error_category, error_message, created_at, updated_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	if filter.ErrorCategory != "" {
		query += ` AND error_category = ?`
		args = append(args, string(filter.ErrorCategory))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phase result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, result = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

func (s *SQLiteStore) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, status, result, started_at FROM run_phases
		 WHERE run_id = ? ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list phases for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var phases []model.RunPhase
	for rows.Next() {
		var p model.RunPhase
		var resultJSON sql.NullString
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.Status, &resultJSON, &p.StartedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan phase")
		}
		if resultJSON.Valid {
			p.Result = &model.PhaseResult{}
			if err := json.Unmarshal([]byte(resultJSON.String), p.Result); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal phase result")
			}
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "sqlite: list phases iterate")
}

func (s *SQLiteStore) SaveKPIResults(ctx context.Context, runID string, rows []model.KPIRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin kpi results tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO kpi_results (run_id, entity, kpi_name, value) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare kpi results insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, runID, row.Entity, row.KPIName, row.Value); err != nil {
			return eris.Wrapf(err, "sqlite: insert kpi result %s/%s", row.Entity, row.KPIName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit kpi results")
}

func (s *SQLiteStore) ListKPIResults(ctx context.Context, runID string) ([]model.KPIRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity, kpi_name, value FROM kpi_results
		 WHERE run_id = ? ORDER BY kpi_name, entity`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list kpi results for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.KPIRow
	for rows.Next() {
		var r model.KPIRow
		if err := rows.Scan(&r.Entity, &r.KPIName, &r.Value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan kpi result")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list kpi results iterate")
}

func (s *SQLiteStore) SaveScores(ctx context.Context, runID, city string, rows []model.ScoreRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin scores tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO district_scores (run_id, city, district, raw, normalized, composite, rank)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare scores insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range rows {
		rawJSON, err := json.Marshal(row.Raw)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal raw scores %s", row.District)
		}
		normJSON, err := json.Marshal(row.Normalized)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal normalized scores %s", row.District)
		}
		if _, err := stmt.ExecContext(ctx, runID, city, row.District, string(rawJSON), string(normJSON), row.Composite, row.Rank); err != nil {
			return eris.Wrapf(err, "sqlite: insert score %s", row.District)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit scores")
}

func (s *SQLiteStore) ListScores(ctx context.Context, runID string) ([]model.ScoreRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT district, raw, normalized, composite, rank FROM district_scores
		 WHERE run_id = ? ORDER BY rank, district`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list scores for run %s", runID)
	}
	return collectScores(rows)
}

func (s *SQLiteStore) LatestScores(ctx context.Context, city string) ([]model.ScoreRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT district, raw, normalized, composite, rank FROM district_scores
		 WHERE run_id = (
		   SELECT id FROM runs WHERE city = ? AND status = ? ORDER BY created_at DESC LIMIT 1
		 )
		 ORDER BY rank, district`,
		city, string(model.RunStatusComplete),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest scores for %s", city)
	}
	return collectScores(rows)
}

// helpers

func collectScores(rows *sql.Rows) ([]model.ScoreRow, error) {
	defer rows.Close() //nolint:errcheck

	var out []model.ScoreRow
	for rows.Next() {
		var r model.ScoreRow
		var rawJSON, normJSON string
		if err := rows.Scan(&r.District, &rawJSON, &normJSON, &r.Composite, &r.Rank); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		if err := json.Unmarshal([]byte(rawJSON), &r.Raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal raw scores")
		}
		if err := json.Unmarshal([]byte(normJSON), &r.Normalized); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal normalized scores")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: scores iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errkind.New(errkind.NoData, eris.Errorf("%s not found: %s", entity, id))
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON, errCategory, errMessage sql.NullString

	err := row.Scan(&r.ID, &r.City, &r.Resolution, &r.Status, &resultJSON, &errCategory, &errMessage, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errkind.New(errkind.NoData, eris.New("run not found"))
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	if errCategory.Valid {
		r.Error = &model.RunError{
			Category: model.ErrorCategory(errCategory.String),
			Message:  errMessage.String,
		}
	}
	return &r, nil
}
