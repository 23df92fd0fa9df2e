package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gst-analyzer/internal/sheet"
)

// Entity name cell in the ledger header block (row 6, column C).
const (
	nameRow = 5
	nameCol = 2
)

// EntityName reads the entity name from the ledger header of pan. It falls
// back to the PAN when the ledger or the cell is missing.
func (s *DirSupplier) EntityName(ctx context.Context, pan string) string {
	path := s.Path(pan)
	if path == "" {
		return pan
	}
	rows, err := sheet.Read(ctx, path, sheet.Options{})
	if err != nil {
		zap.L().Debug("ledger: entity name unavailable", zap.String("pan", pan), zap.Error(err))
		return pan
	}
	if len(rows) <= nameRow {
		return pan
	}
	if name := sheet.Cell(rows[nameRow], nameCol); name != "" {
		return name
	}
	return pan
}

// LoadNames resolves entity names for pans using a bounded worker pool.
func (s *DirSupplier) LoadNames(ctx context.Context, pans []string) (map[string]string, error) {
	workers := s.opts.NameWorkers
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	names := make(map[string]string, len(pans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, pan := range pans {
		pan := pan
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := s.EntityName(gctx, pan)
			mu.Lock()
			names[pan] = name
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}
