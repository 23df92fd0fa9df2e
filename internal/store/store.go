// Package store persists analysis runs and their classified node sets.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gst-analyzer/internal/config"
	"github.com/sells-group/gst-analyzer/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	RootPAN string          `json:"root_pan,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, rootPAN, rootFile string, bogusThreshold float64) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, metrics model.AnalysisMetrics) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Nodes
	SaveNodes(ctx context.Context, runID string, nodes model.NodeSet) (int, error)
	LoadNodes(ctx context.Context, runID string) (model.NodeSet, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open connects the configured backend and migrates it. The none driver
// disables persistence and returns a nil Store.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case DriverNone, "":
		return nil, nil
	case DriverSQLite:
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "gst-analysis.db"
		}
		s, err = NewSQLite(dsn)
	case DriverPostgres:
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Latest returns the most recent completed run, or ErrNotFound.
func Latest(ctx context.Context, s Store, rootPAN string) (*model.Run, error) {
	runs, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete, RootPAN: rootPAN, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[0], nil
}

func errorText(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}
