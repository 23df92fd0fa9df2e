package classify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gst-analyzer/internal/ledger"
	"github.com/sells-group/gst-analyzer/internal/metrics"
	"github.com/sells-group/gst-analyzer/internal/model"
)

// PassFunc applies one batch pass to the whole node set and returns the
// number of nodes it changed.
type PassFunc func(ctx context.Context, nodes model.NodeSet, src ledger.Supplier) (int, error)

// Pass is a named batch pass. After lists the passes whose output it reads;
// each must run earlier in the pipeline.
type Pass struct {
	Name  string
	After []string
	Apply PassFunc
}

// Pipeline runs passes in order over a complete node set.
type Pipeline struct {
	passes   []Pass
	supplier ledger.Supplier
}

// NewPipeline validates pass ordering and returns a pipeline.
func NewPipeline(src ledger.Supplier, passes ...Pass) (*Pipeline, error) {
	if err := checkOrder(passes); err != nil {
		return nil, err
	}
	return &Pipeline{passes: passes, supplier: src}, nil
}

// Default returns the standard six-pass pipeline.
func Default(src ledger.Supplier) *Pipeline {
	p, err := NewPipeline(src, DefaultPasses()...)
	if err != nil {
		panic(err) // DefaultPasses is statically ordered
	}
	return p
}

// Passes returns the pass names in run order.
func (p *Pipeline) Passes() []string {
	names := make([]string, len(p.passes))
	for i, ps := range p.passes {
		names[i] = ps.Name
	}
	return names
}

func checkOrder(passes []Pass) error {
	seen := make(map[string]bool, len(passes))
	for _, ps := range passes {
		if ps.Name == "" || ps.Apply == nil {
			return eris.New("classify: pass requires a name and a func")
		}
		if seen[ps.Name] {
			return eris.Errorf("classify: duplicate pass %q", ps.Name)
		}
		for _, dep := range ps.After {
			if !seen[dep] {
				return eris.Errorf("classify: pass %q must run after %q", ps.Name, dep)
			}
		}
		seen[ps.Name] = true
	}
	return nil
}

// Run applies every pass to the full node set before the next one starts.
// Bogus flags only ever turn on, so running again on a classified set can
// flag a node whose bogus child was only flagged during the previous run.
// Repeated runs settle once no further node is flagged.
func (p *Pipeline) Run(ctx context.Context, nodes model.NodeSet) error {
	log := zap.L().With(zap.Int("nodes", len(nodes)))

	for i, ps := range p.passes {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "classify: cancelled")
		}

		start := time.Now()
		changed, err := ps.Apply(ctx, nodes, p.supplier)
		metrics.PassDuration.WithLabelValues(ps.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			return eris.Wrapf(err, "classify: pass %s", ps.Name)
		}

		log.Info("classify: pass complete",
			zap.Int("pass", i+1),
			zap.String("name", ps.Name),
			zap.Int("changed", changed),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}
