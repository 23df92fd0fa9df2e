// Package graph builds the purchase graph of taxpayers reachable from a root
// ledger.
package graph

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/gst-analyzer/internal/classify"
	"github.com/sells-group/gst-analyzer/internal/config"
	"github.com/sells-group/gst-analyzer/internal/ledger"
	"github.com/sells-group/gst-analyzer/internal/metrics"
	"github.com/sells-group/gst-analyzer/internal/model"
)

// Options tunes traversal.
type Options struct {
	BogusThreshold float64
	MaxCacheSize   int
	MaxDepth       int // 0 means unlimited
}

// OptionsFromConfig builds Options from the analysis configuration.
func OptionsFromConfig(cfg config.AnalysisConfig) Options {
	return Options{
		BogusThreshold: cfg.BogusThreshold,
		MaxCacheSize:   cfg.MaxCacheSize,
		MaxDepth:       cfg.MaxDepth,
	}
}

// Counters are traversal statistics for one Build.
type Counters struct {
	CacheHits      int
	CacheMisses    int
	CyclesDetected int
	DepthLimited   int
}

// Builder walks purchase edges depth-first, one node per PAN.
type Builder struct {
	supplier ledger.Supplier
	opts     Options
	counters Counters
}

// NewBuilder returns a Builder reading ledgers from supplier.
func NewBuilder(supplier ledger.Supplier, opts Options) *Builder {
	if opts.MaxCacheSize <= 0 {
		opts.MaxCacheSize = 10000
	}
	return &Builder{supplier: supplier, opts: opts}
}

// Counters returns the statistics of the last Build.
func (b *Builder) Counters() Counters { return b.counters }

// state is the per-build traversal state. The cache doubles as the result
// set; nodes past the capacity are computed but never stored.
type state struct {
	root      string
	cache     model.NodeSet
	capWarned bool
}

// Build returns every node reachable from rootPAN along purchase edges.
// rootRecords, when given, are the root ledger rows; rows whose counterparty
// is a visited PAN are folded into that node's totals.
func (b *Builder) Build(ctx context.Context, rootPAN string, rootRecords []model.TransactionRecord) (model.NodeSet, error) {
	b.counters = Counters{}
	st := &state{root: rootPAN, cache: make(model.NodeSet)}

	if _, err := b.visit(ctx, st, rootPAN, rootRecords, model.NewIDSet(), 0); err != nil {
		return nil, err
	}
	return st.cache, nil
}

// visit computes the node for pan. path holds the PANs on the current branch
// and is owned by this call.
func (b *Builder) visit(ctx context.Context, st *state, pan string, rootRecords []model.TransactionRecord, path model.IDSet, depth int) (*model.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if n, ok := st.cache[pan]; ok {
		b.counters.CacheHits++
		metrics.NodeCacheLookupsTotal.WithLabelValues("hit").Inc()
		return n, nil
	}
	b.counters.CacheMisses++
	metrics.NodeCacheLookupsTotal.WithLabelValues("miss").Inc()

	if path.Has(pan) {
		b.recordCycle(pan, pan)
		return model.NewNode(pan), nil
	}
	path.Add(pan)
	defer delete(path, pan)

	node := model.NewNode(pan)

	if own := ledger.FilterPAN(rootRecords, pan); len(own) > 0 {
		addTotals(node, ledger.Aggregate(own))
	}

	if b.supplier.HasLedger(pan) {
		records, err := b.supplier.Records(ctx, pan)
		if err != nil {
			return nil, err
		}
		addTotals(node, ledger.Aggregate(records))

		if b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth {
			b.counters.DepthLimited++
			zap.L().Warn("graph: depth limit reached, children not expanded",
				zap.String("pan", pan),
				zap.Int("max_depth", b.opts.MaxDepth),
			)
		} else if err := b.expand(ctx, st, node, records, path, depth); err != nil {
			return nil, err
		}
	}

	node.OriginalTotalPurchases = node.TotalPurchases
	node.AdjustedPurchases = node.TotalPurchases
	node.UpdateDerived()
	classify.Initial(node, b.opts.BogusThreshold)
	node.RiskScore = classify.RiskScore(node)

	if len(st.cache) < b.opts.MaxCacheSize {
		st.cache[pan] = node
	} else if !st.capWarned {
		st.capWarned = true
		zap.L().Warn("graph: node cache full, further nodes are not retained",
			zap.Int("max_cache_size", b.opts.MaxCacheSize),
		)
	}
	return node, nil
}

// expand adds the purchase counterparties of node as children and visits
// those that have a ledger. The visited child records node as a parent.
func (b *Builder) expand(ctx context.Context, st *state, node *model.Node, records []model.TransactionRecord, path model.IDSet, depth int) error {
	candidates := model.NewIDSet()
	back := model.NewIDSet()
	for _, r := range records {
		if !r.IsPurchase() || r.PAN == node.PAN || r.PAN == st.root {
			continue
		}
		if path.Has(r.PAN) {
			back.Add(r.PAN)
			continue
		}
		candidates.Add(r.PAN)
	}
	for _, ancestor := range back.Sorted() {
		b.recordCycle(node.PAN, ancestor)
	}

	for _, childPAN := range candidates.Sorted() {
		node.Children.Add(childPAN)
		if !b.supplier.HasLedger(childPAN) {
			continue
		}
		child, err := b.visit(ctx, st, childPAN, nil, path.Clone(), depth+1)
		if err != nil {
			return err
		}
		child.Parents.Add(node.PAN)
	}
	return nil
}

// recordCycle notes a purchase edge from pan back onto the current path.
func (b *Builder) recordCycle(pan, ancestor string) {
	b.counters.CyclesDetected++
	metrics.CyclesDetectedTotal.Inc()
	zap.L().Warn("graph: cycle detected", zap.String("pan", pan), zap.String("ancestor", ancestor))
}

func addTotals(n *model.Node, t ledger.Totals) {
	n.TotalSales += t.Sales
	n.TotalPurchases += t.Purchases
	n.TransactionCount += t.Count
}
