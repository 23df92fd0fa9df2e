package api

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gst-analyzer/internal/model"
	"github.com/sells-group/gst-analyzer/internal/report"
	"github.com/sells-group/gst-analyzer/internal/store"
)

// ErrNoAnalysis is returned by a Loader when no analysis has been produced yet.
var ErrNoAnalysis = eris.New("api: analysis data not found")

// Loader returns the node set to serve. It is called once per request so a
// rerun of the analysis is picked up without restarting the server.
type Loader func(ctx context.Context) (model.NodeSet, error)

// JSONFileLoader serves the table export written by the analyze command.
func JSONFileLoader(path string) Loader {
	return func(_ context.Context) (model.NodeSet, error) {
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoAnalysis
		}
		if err != nil {
			return nil, eris.Wrapf(err, "api: open %s", path)
		}
		defer f.Close()
		return report.LoadJSON(f)
	}
}

// StoreLoader serves the latest completed run for rootPAN. An empty rootPAN
// matches any root.
func StoreLoader(s store.Store, rootPAN string) Loader {
	return func(ctx context.Context) (model.NodeSet, error) {
		run, err := store.Latest(ctx, s, rootPAN)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoAnalysis
		}
		if err != nil {
			return nil, err
		}
		return s.LoadNodes(ctx, run.ID)
	}
}
