package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gst-analyzer/internal/db"
	"github.com/sells-group/gst-analyzer/internal/model"
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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	root_pan        TEXT NOT NULL,
	root_file       TEXT NOT NULL,
	bogus_threshold DOUBLE PRECISION NOT NULL,
	status          TEXT NOT NULL DEFAULT 'running',
	metrics         JSONB,
	error           TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_nodes (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	pan        TEXT NOT NULL,
	is_bogus   BOOLEAN NOT NULL DEFAULT false,
	risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	data       JSONB NOT NULL,
	PRIMARY KEY (run_id, pan)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_root_pan ON runs(root_pan);
CREATE INDEX IF NOT EXISTS idx_run_nodes_bogus ON run_nodes(run_id, is_bogus);
`

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

func (s *PostgresStore) CreateRun(ctx context.Context, rootPAN, rootFile string, bogusThreshold float64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, root_pan, root_file, bogus_threshold, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, rootPAN, rootFile, bogusThreshold, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:             id,
		RootPAN:        rootPAN,
		RootFile:       rootFile,
		BogusThreshold: bogusThreshold,
		Status:         model.RunStatusRunning,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, metrics model.AnalysisMetrics) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metrics")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET metrics = $1, status = $2, updated_at = $3 WHERE id = $4`,
		metricsJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		errorText(cause), string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

const runColumns = `id, root_pan, root_file, bogus_threshold, status, metrics, error, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`,
		runID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.RootPAN != "" {
		query += fmt.Sprintf(` AND root_pan = $%d`, argIdx)
		args = append(args, filter.RootPAN)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveNodes bulk-loads the node set of a run with COPY.
func (s *PostgresStore) SaveNodes(ctx context.Context, runID string, nodes model.NodeSet) (int, error) {
	rows, err := nodeRows(runID, nodes)
	if err != nil {
		return 0, err
	}
	n, err := db.CopyFrom(ctx, s.pool, "run_nodes", nodeColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save nodes %s", runID)
	}
	return int(n), nil
}

func (s *PostgresStore) LoadNodes(ctx context.Context, runID string) (model.NodeSet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM run_nodes WHERE run_id = $1 ORDER BY pan`, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load nodes %s", runID)
	}
	defer rows.Close()

	nodes := make(model.NodeSet)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan node")
		}
		n, err := decodeNode(data)
		if err != nil {
			return nil, err
		}
		nodes[n.PAN] = n
	}
	return nodes, eris.Wrap(rows.Err(), "postgres: load nodes iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var metricsJSON *[]byte
	var errText *string

	if err := row.Scan(&r.ID, &r.RootPAN, &r.RootFile, &r.BogusThreshold, &r.Status,
		&metricsJSON, &errText, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if metricsJSON != nil {
		r.Metrics = &model.AnalysisMetrics{}
		if err := json.Unmarshal(*metricsJSON, r.Metrics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metrics")
		}
	}
	if errText != nil {
		r.Error = *errText
	}
	return &r, nil
}
