package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/gst-analyzer/internal/model"
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	root_pan        TEXT NOT NULL,
	root_file       TEXT NOT NULL,
	bogus_threshold REAL NOT NULL,
	status          TEXT NOT NULL DEFAULT 'running',
	metrics         TEXT,
	error           TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_nodes (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	pan        TEXT NOT NULL,
	is_bogus   INTEGER NOT NULL DEFAULT 0,
	risk_score REAL NOT NULL DEFAULT 0,
	data       TEXT NOT NULL,
	PRIMARY KEY (run_id, pan)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_root_pan ON runs(root_pan);
CREATE INDEX IF NOT EXISTS idx_run_nodes_bogus ON run_nodes(run_id, is_bogus);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, rootPAN, rootFile string, bogusThreshold float64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, root_pan, root_file, bogus_threshold, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rootPAN, rootFile, bogusThreshold, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, metrics model.AnalysisMetrics) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metrics")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET metrics = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(metricsJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		errorText(cause), string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, root_pan, root_file, bogus_threshold, status, metrics, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, root_pan, root_file, bogus_threshold, status, metrics, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.RootPAN != "" {
		query += ` AND root_pan = ?`
		args = append(args, filter.RootPAN)
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
	defer rows.Close()

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

// SaveNodes writes the node set of a run in one transaction.
func (s *SQLiteStore) SaveNodes(ctx context.Context, runID string, nodes model.NodeSet) (int, error) {
	rows, err := nodeRows(runID, nodes)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save nodes")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO run_nodes (run_id, pan, is_bogus, risk_score, data) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare save nodes")
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row[0], row[1], row[2], row[3], string(row[4].([]byte))); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert node %s", row[1])
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save nodes")
	}
	return len(rows), nil
}

func (s *SQLiteStore) LoadNodes(ctx context.Context, runID string) (model.NodeSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM run_nodes WHERE run_id = ? ORDER BY pan`, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load nodes %s", runID)
	}
	defer rows.Close()

	nodes := make(model.NodeSet)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan node")
		}
		n, err := decodeNode([]byte(data))
		if err != nil {
			return nil, err
		}
		nodes[n.PAN] = n
	}
	return nodes, eris.Wrap(rows.Err(), "sqlite: load nodes iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var metricsJSON, errText sql.NullString

	err := row.Scan(&r.ID, &r.RootPAN, &r.RootFile, &r.BogusThreshold, &r.Status,
		&metricsJSON, &errText, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if metricsJSON.Valid {
		r.Metrics = &model.AnalysisMetrics{}
		if err := json.Unmarshal([]byte(metricsJSON.String), r.Metrics); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
		}
	}
	r.Error = errText.String
	return &r, nil
}
