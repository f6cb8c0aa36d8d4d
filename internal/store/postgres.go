package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/db"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

const spatialSchema = "geodata"

// SpatialStore persists the large spatial layers (district polygons, point
// features, land-use areas, grid cells, per-cell KPI values, district
// scores) in Postgres. Geometries are stored as EWKB bytea so bulk COPY
// needs no custom codec; PostGIS readers can parse the column with
// ST_GeomFromEWKB.
type SpatialStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists the hot read queries prepared on each new
// connection. Query methods reference them by statement name, which pgx
// resolves to the prepared statement.
var preparedStatements = map[string]string{
	"get_districts":  `SELECT name, raw_name, population, area_km2, geom, properties FROM geodata.districts WHERE city = $1 ORDER BY name`,
	"get_features":   `SELECT feature_id, name, category, layer, lat, lng, tags FROM geodata.features WHERE city = $1 AND layer = $2 ORDER BY feature_id`,
	"get_landuse":    `SELECT area_id, category, area_km2, geom FROM geodata.landuse WHERE city = $1 ORDER BY area_id`,
	"get_cells":      `SELECT cell_id, resolution, centroid_lat, centroid_lng FROM geodata.cells WHERE city = $1 ORDER BY cell_id`,
	"get_kpi_values": `SELECT cell_id, value FROM geodata.kpi_values WHERE run_id = $1 AND kpi_name = $2 ORDER BY cell_id`,
	"get_scores":     `SELECT district, raw, normalized, composite, rank FROM geodata.district_scores WHERE run_id = $1 ORDER BY rank, district`,
}

// NewSpatial creates a SpatialStore with a connection pool.
func NewSpatial(ctx context.Context, connString string, poolCfg *PoolConfig) (*SpatialStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare the hot read statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &SpatialStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *SpatialStore) Pool() db.Pool {
	return s.pool
}

const spatialMigration = `
CREATE SCHEMA IF NOT EXISTS geodata;

CREATE TABLE IF NOT EXISTS geodata.districts (
	city       TEXT NOT NULL,
	name       TEXT NOT NULL,
	raw_name   TEXT NOT NULL DEFAULT '',
	population DOUBLE PRECISION NOT NULL DEFAULT 0,
	area_km2   DOUBLE PRECISION NOT NULL DEFAULT 0,
	geom       BYTEA NOT NULL,
	properties JSONB,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (city, name)
);

CREATE TABLE IF NOT EXISTS geodata.features (
	city       TEXT NOT NULL,
	feature_id TEXT NOT NULL,
	name       TEXT,
	category   TEXT NOT NULL,
	layer      TEXT NOT NULL,
	lat        DOUBLE PRECISION NOT NULL,
	lng        DOUBLE PRECISION NOT NULL,
	geom       BYTEA NOT NULL,
	tags       JSONB,
	PRIMARY KEY (city, feature_id)
);

CREATE TABLE IF NOT EXISTS geodata.landuse (
	city     TEXT NOT NULL,
	area_id  TEXT NOT NULL,
	category TEXT NOT NULL,
	area_km2 DOUBLE PRECISION NOT NULL DEFAULT 0,
	geom     BYTEA NOT NULL,
	PRIMARY KEY (city, area_id)
);

CREATE TABLE IF NOT EXISTS geodata.cells (
	city         TEXT NOT NULL,
	cell_id      TEXT NOT NULL,
	resolution   INTEGER NOT NULL,
	centroid_lat DOUBLE PRECISION NOT NULL,
	centroid_lng DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (city, cell_id)
);

CREATE TABLE IF NOT EXISTS geodata.kpi_values (
	run_id   TEXT NOT NULL,
	cell_id  TEXT NOT NULL,
	kpi_name TEXT NOT NULL,
	value    DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, cell_id, kpi_name)
);

CREATE TABLE IF NOT EXISTS geodata.district_scores (
	run_id     TEXT NOT NULL,
	city       TEXT NOT NULL,
	district   TEXT NOT NULL,
	raw        JSONB NOT NULL,
	normalized JSONB NOT NULL,
	composite  DOUBLE PRECISION NOT NULL,
	rank       INTEGER NOT NULL,
	PRIMARY KEY (run_id, district)
);

CREATE INDEX IF NOT EXISTS idx_features_city_layer ON geodata.features(city, layer);
CREATE INDEX IF NOT EXISTS idx_features_category ON geodata.features(category);
CREATE INDEX IF NOT EXISTS idx_landuse_category ON geodata.landuse(category);
CREATE INDEX IF NOT EXISTS idx_kpi_values_run_name ON geodata.kpi_values(run_id, kpi_name);
CREATE INDEX IF NOT EXISTS idx_district_scores_city ON geodata.district_scores(city);
`

func (s *SpatialStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *SpatialStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, spatialMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *SpatialStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveDistricts upserts district polygons for a city keyed on (city, name).
func (s *SpatialStore) SaveDistricts(ctx context.Context, city string, districts []model.District) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(districts))
	for _, d := range districts {
		geom, err := geometry.EncodeMultiPolygon(d.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: encode district %s", d.Name)
		}
		props, err := marshalNullable(d.Properties)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal properties %s", d.Name)
		}
		rows = append(rows, []any{city, d.Name, d.RawName, d.Population, d.AreaKm2, geom, props, now})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        spatialSchema + ".districts",
		Columns:      []string{"city", "name", "raw_name", "population", "area_km2", "geom", "properties", "updated_at"},
		ConflictKeys: []string{"city", "name"},
	}, rows)
}

// Districts returns a city's district polygons, geometry decoded from EWKB.
func (s *SpatialStore) Districts(ctx context.Context, city string) ([]model.District, error) {
	rows, err := s.pool.Query(ctx, "get_districts", city)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get districts for %s", city)
	}
	defer rows.Close()

	var out []model.District
	for rows.Next() {
		var d model.District
		var geom []byte
		var props []byte
		if err := rows.Scan(&d.Name, &d.RawName, &d.Population, &d.AreaKm2, &geom, &props); err != nil {
			return nil, eris.Wrap(err, "postgres: scan district")
		}
		mp, err := geometry.DecodeMultiPolygon(geom)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: decode district %s", d.Name)
		}
		d.Geometry = mp
		if len(props) > 0 {
			if err := json.Unmarshal(props, &d.Properties); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal properties %s", d.Name)
			}
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: districts iterate")
}

// SaveFeatures upserts classified point features keyed on (city, feature_id).
func (s *SpatialStore) SaveFeatures(ctx context.Context, city string, features []model.PointFeature) (int64, error) {
	rows := make([][]any, 0, len(features))
	for _, f := range features {
		geom, err := geometry.EncodePoint(orb.Point{f.Lng, f.Lat})
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: encode feature %s", f.ID)
		}
		tags, err := marshalNullable(f.Tags)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal tags %s", f.ID)
		}
		rows = append(rows, []any{city, f.ID, f.Name, f.Category, f.Layer, f.Lat, f.Lng, geom, tags})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        spatialSchema + ".features",
		Columns:      []string{"city", "feature_id", "name", "category", "layer", "lat", "lng", "geom", "tags"},
		ConflictKeys: []string{"city", "feature_id"},
	}, rows)
}

// Features returns a city's point features for one layer (e.g. "transit").
func (s *SpatialStore) Features(ctx context.Context, city, layer string) ([]model.PointFeature, error) {
	rows, err := s.pool.Query(ctx, "get_features", city, layer)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get features for %s/%s", city, layer)
	}
	defer rows.Close()

	var out []model.PointFeature
	for rows.Next() {
		var f model.PointFeature
		var tags []byte
		if err := rows.Scan(&f.ID, &f.Name, &f.Category, &f.Layer, &f.Lat, &f.Lng, &tags); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feature")
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &f.Tags); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal tags %s", f.ID)
			}
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: features iterate")
}

// SaveLandUse upserts land-use polygons keyed on (city, area_id).
func (s *SpatialStore) SaveLandUse(ctx context.Context, city string, areas []model.LandUseArea) (int64, error) {
	rows := make([][]any, 0, len(areas))
	for _, a := range areas {
		geom, err := geometry.EncodeMultiPolygon(a.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: encode land use %s", a.ID)
		}
		rows = append(rows, []any{city, a.ID, a.Category, a.AreaKm2, geom})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        spatialSchema + ".landuse",
		Columns:      []string{"city", "area_id", "category", "area_km2", "geom"},
		ConflictKeys: []string{"city", "area_id"},
	}, rows)
}

// LandUse returns a city's land-use polygons, geometry decoded from EWKB.
func (s *SpatialStore) LandUse(ctx context.Context, city string) ([]model.LandUseArea, error) {
	rows, err := s.pool.Query(ctx, "get_landuse", city)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get land use for %s", city)
	}
	defer rows.Close()

	var out []model.LandUseArea
	for rows.Next() {
		var a model.LandUseArea
		var geom []byte
		if err := rows.Scan(&a.ID, &a.Category, &a.AreaKm2, &geom); err != nil {
			return nil, eris.Wrap(err, "postgres: scan land use")
		}
		mp, err := geometry.DecodeMultiPolygon(geom)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: decode land use %s", a.ID)
		}
		a.Geometry = mp
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: land use iterate")
}

// SaveCells upserts grid cells keyed on (city, cell_id). Cell polygons are
// derived from the cell ID on demand and never stored.
func (s *SpatialStore) SaveCells(ctx context.Context, city string, cells []model.GridCell) (int64, error) {
	rows := make([][]any, 0, len(cells))
	for _, c := range cells {
		rows = append(rows, []any{city, c.ID, c.Resolution, c.CentroidLat, c.CentroidLng})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        spatialSchema + ".cells",
		Columns:      []string{"city", "cell_id", "resolution", "centroid_lat", "centroid_lng"},
		ConflictKeys: []string{"city", "cell_id"},
	}, rows)
}

// Cells returns a city's grid cells sorted by cell ID.
func (s *SpatialStore) Cells(ctx context.Context, city string) ([]model.GridCell, error) {
	rows, err := s.pool.Query(ctx, "get_cells", city)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cells for %s", city)
	}
	defer rows.Close()

	var out []model.GridCell
	for rows.Next() {
		var c model.GridCell
		if err := rows.Scan(&c.ID, &c.Resolution, &c.CentroidLat, &c.CentroidLng); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cell")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: cells iterate")
}

// SaveKPIValues replaces one KPI layer for a run and COPY-loads the new
// values. Delete-then-copy keeps the load on the COPY fast path instead of
// row-by-row upserts.
func (s *SpatialStore) SaveKPIValues(ctx context.Context, runID, kpiName string, values []model.CellValue) (int64, error) {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM geodata.kpi_values WHERE run_id = $1 AND kpi_name = $2`,
		runID, kpiName,
	); err != nil {
		return 0, eris.Wrapf(err, "postgres: clear kpi values %s/%s", runID, kpiName)
	}

	rows := make([][]any, 0, len(values))
	for _, v := range values {
		rows = append(rows, []any{runID, v.CellID, kpiName, v.Value})
	}
	return db.CopyFromSchema(ctx, s.pool, spatialSchema, "kpi_values",
		[]string{"run_id", "cell_id", "kpi_name", "value"}, rows)
}

// KPIValues returns one KPI layer of a run sorted by cell ID.
func (s *SpatialStore) KPIValues(ctx context.Context, runID, kpiName string) ([]model.CellValue, error) {
	rows, err := s.pool.Query(ctx, "get_kpi_values", runID, kpiName)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get kpi values %s/%s", runID, kpiName)
	}
	defer rows.Close()

	var out []model.CellValue
	for rows.Next() {
		var v model.CellValue
		if err := rows.Scan(&v.CellID, &v.Value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan kpi value")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: kpi values iterate")
}

// SaveScores upserts district score rows for a run.
func (s *SpatialStore) SaveScores(ctx context.Context, runID, city string, scores []model.ScoreRow) (int64, error) {
	rows := make([][]any, 0, len(scores))
	for _, sc := range scores {
		raw, err := json.Marshal(sc.Raw)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal raw scores %s", sc.District)
		}
		norm, err := json.Marshal(sc.Normalized)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal normalized scores %s", sc.District)
		}
		rows = append(rows, []any{runID, city, sc.District, raw, norm, sc.Composite, sc.Rank})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        spatialSchema + ".district_scores",
		Columns:      []string{"run_id", "city", "district", "raw", "normalized", "composite", "rank"},
		ConflictKeys: []string{"run_id", "district"},
	}, rows)
}

// Scores returns a run's district score rows ordered by rank.
func (s *SpatialStore) Scores(ctx context.Context, runID string) ([]model.ScoreRow, error) {
	rows, err := s.pool.Query(ctx, "get_scores", runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get scores for %s", runID)
	}
	defer rows.Close()

	var out []model.ScoreRow
	for rows.Next() {
		var r model.ScoreRow
		var raw, norm []byte
		if err := rows.Scan(&r.District, &raw, &norm, &r.Composite, &r.Rank); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		if err := json.Unmarshal(raw, &r.Raw); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal raw scores")
		}
		if err := json.Unmarshal(norm, &r.Normalized); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal normalized scores")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: scores iterate")
}

// marshalNullable marshals a map to JSON, mapping empty to SQL NULL.
func marshalNullable(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}
