package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/labelkit/zeroshot/internal/db"
	"github.com/labelkit/zeroshot/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":   `INSERT INTO runs (id, source, labels, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"fail_run":     `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"complete_run": `UPDATE runs SET status = $1, row_count = $2, accuracy = $3, updated_at = $4 WHERE id = $5`,
	"get_run":      `SELECT id, source, labels, status, row_count, accuracy, COALESCE(error, ''), created_at, updated_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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

	// Prepare frequently-used statements on each new connection.
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	labels     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	row_count  INTEGER NOT NULL DEFAULT 0,
	accuracy   DOUBLE PRECISION,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS result_rows (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	idx          INTEGER NOT NULL,
	body         TEXT NOT NULL,
	percentages  JSONB NOT NULL,
	predicted    TEXT NOT NULL,
	ground_truth TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string, labels model.LabelSet) (*model.Run, error) {
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal labels")
	}

	run := &model.Run{
		ID:        uuid.New().String(),
		Source:    source,
		Labels:    labels,
		Status:    model.RunStatusRunning,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, labels, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Source, labelsJSON, string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, report *model.RunReport, accuracy *float64) error {
	rows := make([][]any, 0, len(report.Rows))
	for i, row := range report.Rows {
		pctJSON, err := json.Marshal(row.Percentages)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal percentages for row %d", i)
		}
		rows = append(rows, []any{runID, i, row.Text, pctJSON, row.Predicted, row.GroundTruth})
	}

	if _, err := db.CopyFrom(ctx, s.pool, "result_rows",
		[]string{"run_id", "idx", "body", "percentages", "predicted", "ground_truth"}, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy result rows for run %s", runID)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, row_count = $2, accuracy = $3, updated_at = $4 WHERE id = $5`,
		string(model.RunStatusCompleted), len(report.Rows), accuracy, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), cause, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var labelsJSON []byte
	var accuracy *float64

	err := s.pool.QueryRow(ctx,
		`SELECT id, source, labels, status, row_count, accuracy, COALESCE(error, ''), created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Source, &labelsJSON, &r.Status, &r.RowCount, &accuracy, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(labelsJSON, &r.Labels); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal labels")
	}
	r.Accuracy = accuracy
	return &r, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, runID string) (*model.RunReport, error) {
	var labelsJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT labels FROM runs WHERE id = $1`, runID).Scan(&labelsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("run not found: %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get report labels %s", runID)
	}

	report := &model.RunReport{}
	if err := json.Unmarshal(labelsJSON, &report.Labels); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal labels")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT body, percentages, predicted, ground_truth FROM result_rows WHERE run_id = $1 ORDER BY idx`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get report rows %s", runID)
	}
	defer rows.Close()

	for rows.Next() {
		var row model.ResultRow
		var pctJSON []byte
		if err := rows.Scan(&row.Text, &pctJSON, &row.Predicted, &row.GroundTruth); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result row")
		}
		if err := json.Unmarshal(pctJSON, &row.Percentages); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal percentages")
		}
		report.Rows = append(report.Rows, row)
	}
	return report, eris.Wrap(rows.Err(), "postgres: iterate result rows")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, labels, status, row_count, accuracy, COALESCE(error, ''), created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var labelsJSON []byte
		var accuracy *float64
		if err := rows.Scan(&r.ID, &r.Source, &labelsJSON, &r.Status, &r.RowCount, &accuracy, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(labelsJSON, &r.Labels); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal labels")
		}
		r.Accuracy = accuracy
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
