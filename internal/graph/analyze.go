package graph

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gst-analyzer/internal/classify"
	"github.com/sells-group/gst-analyzer/internal/config"
	"github.com/sells-group/gst-analyzer/internal/ledger"
	"github.com/sells-group/gst-analyzer/internal/metrics"
	"github.com/sells-group/gst-analyzer/internal/model"
)

// ErrEmptyRootLedger is returned when the root ledger has no records.
var ErrEmptyRootLedger = eris.New("graph: root ledger has no records")

// RootSource supplies ledgers by PAN and the root ledger by file path.
type RootSource interface {
	ledger.Supplier
	ReadFile(ctx context.Context, path string) ([]model.TransactionRecord, error)
}

// Optional RootSource capabilities.
type (
	nameLoader interface {
		LoadNames(ctx context.Context, pans []string) (map[string]string, error)
	}
	statsReporter interface {
		Stats() ledger.Stats
	}
)

// Result is a classified purchase graph.
type Result struct {
	RootPAN string
	Nodes   model.NodeSet
	Metrics model.AnalysisMetrics
}

// AnalyzeHierarchy reads the configured root ledger, builds the purchase
// graph from it and runs the classifier pipeline.
func AnalyzeHierarchy(ctx context.Context, cfg config.AnalysisConfig, src RootSource) (*Result, error) {
	start := time.Now()
	rootPAN := cfg.RootPAN()
	log := zap.L().With(zap.String("root_pan", rootPAN))
	log.Info("graph: starting hierarchical analysis", zap.String("root_file", cfg.RootFile))

	rootRecords, err := src.ReadFile(ctx, cfg.RootPath())
	if err != nil {
		return nil, eris.Wrap(err, "graph: read root ledger")
	}
	if len(rootRecords) == 0 {
		log.Error("graph: no records found in root ledger")
		return nil, ErrEmptyRootLedger
	}

	b := NewBuilder(src, OptionsFromConfig(cfg))
	nodes, err := b.Build(ctx, rootPAN, rootRecords)
	if err != nil {
		return nil, eris.Wrapf(err, "graph: build from %s", rootPAN)
	}

	if err := classify.Default(src).Run(ctx, nodes); err != nil {
		return nil, err
	}

	if nl, ok := src.(nameLoader); ok {
		names, err := nl.LoadNames(ctx, nodes.PANs())
		if err != nil {
			return nil, eris.Wrap(err, "graph: load entity names")
		}
		for pan, n := range nodes {
			n.EntityName = names[pan]
		}
	}

	res := &Result{RootPAN: rootPAN, Nodes: nodes}
	c := b.Counters()
	res.Metrics.CacheHits = c.CacheHits
	res.Metrics.CacheMisses = c.CacheMisses
	res.Metrics.CyclesDetected = c.CyclesDetected
	if sr, ok := src.(statsReporter); ok {
		st := sr.Stats()
		res.Metrics.FilesProcessed = st.FilesProcessed
		res.Metrics.ErrorsEncountered = st.ErrorsEncountered
	}
	res.Metrics.Tally(nodes)
	res.Metrics.ProcessingTime = time.Since(start)

	metrics.AnalysisDuration.Observe(res.Metrics.ProcessingTime.Seconds())
	metrics.RecordNodes(res.Metrics.TotalNodes, res.Metrics.BogusNodes, res.Metrics.ContaminatedNodes)

	if root, ok := nodes[rootPAN]; ok {
		log.Info("graph: root node",
			zap.Float64("sales", root.TotalSales),
			zap.Float64("purchases", root.TotalPurchases),
			zap.Int("children", root.Children.Len()),
		)
	}
	log.Info("graph: analysis complete",
		zap.Int("nodes", res.Metrics.TotalNodes),
		zap.Int("bogus", res.Metrics.BogusNodes),
		zap.Int("contaminated", res.Metrics.ContaminatedNodes),
		zap.Duration("elapsed", res.Metrics.ProcessingTime),
	)
	return res, nil
}
