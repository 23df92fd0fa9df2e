package classify

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gst-analyzer/internal/ledger"
	"github.com/sells-group/gst-analyzer/internal/model"
)

const (
	panX = "XXXXX1111X"
	panY = "YYYYY2222Y"
	panZ = "ZZZZZ3333Z"
	panW = "WWWWW4444W"
	panV = "VVVVV5555V"
)

func TestInitial(t *testing.T) {
	tests := []struct {
		name      string
		sales     float64
		purchases float64
		want      bool
	}{
		{"no activity", 0, 0, true},
		{"purchases only", 0, 100, true},
		{"sales only", 100, 0, true},
		{"below threshold", 100, 40, true},
		{"at threshold", 100, 50, false},
		{"balanced", 100, 100, false},
		{"at max ratio", 100, 200, false},
		{"above max ratio", 100, 201, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := model.NewNode(panX)
			n.TotalSales = tt.sales
			n.TotalPurchases = tt.purchases
			n.UpdateDerived()
			Initial(n, 0.5)
			assert.Equal(t, tt.want, n.IsBogus)
		})
	}
}

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name     string
		node     func() *model.Node
		expected float64
	}{
		{"quiet node", func() *model.Node { return testNode(panX, 100, 100) }, 0},
		{"very low ratio", func() *model.Node { return testNode(panX, 1000, 50) }, 40},
		{"low ratio", func() *model.Node { return testNode(panX, 1000, 200) }, 30},
		{"moderate ratio", func() *model.Node { return testNode(panX, 1000, 400) }, 20},
		{"purchases without sales", func() *model.Node { return testNode(panX, 0, 100) }, 50},
		{"high volume", func() *model.Node {
			n := testNode(panX, 6e8, 6e8)
			n.TransactionCount = 100
			n.UpdateDerived()
			return n
		}, 15},
		{"large average transaction", func() *model.Node { return testNode(panX, 6e7, 6e7) }, 20},
		{"wide fan-out", func() *model.Node {
			return testNode(panX, 100, 100, "A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9", "A10", "A11")
		}, 10},
		{"some fan-out", func() *model.Node {
			return testNode(panX, 100, 100, "A1", "A2", "A3", "A4", "A5", "A6")
		}, 5},
		{"stacked factors", func() *model.Node {
			return testNode(panX, 0, 5e9, "A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9", "A10", "A11")
		}, 85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RiskScore(tt.node()), 0.001)
		})
	}
}

func TestContamination_BogusChild(t *testing.T) {
	z := testNode(panZ, 1_200_000, 1_000_000, panW, panV)
	w := testNode(panW, 0, 0)
	v := testNode(panV, 500_000, 500_000)
	require.True(t, w.IsBogus)
	require.False(t, v.IsBogus)
	nodes := nodeSet(z, w, v)

	sup := new(mockSupplier)
	sup.On("Records", mock.Anything, panZ).Return([]model.TransactionRecord{
		purchase(panW, 600_000),
		purchase(panV, 400_000),
		sale("BUYER0000B", 1_200_000),
	}, nil)

	changed, err := contamination(context.Background(), nodes, sup)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	assert.InDelta(t, 600_000.0, z.BogusValue, 0.001)
	assert.InDelta(t, 60.0, z.ContaminationLevel, 0.001)
	assert.True(t, z.IsContaminated)
	assert.InDelta(t, 400_000.0, z.AdjustedPurchases, 0.001)
	assert.InDelta(t, 1_000_000.0, z.OriginalTotalPurchases, 0.001)
	assert.InDelta(t, 400_000.0/1_200_000.0, float64(z.PurchaseToSalesRatio), 0.0001)

	// Leaves have no children and are not re-read.
	sup.AssertNotCalled(t, "Records", mock.Anything, panW)
	sup.AssertExpectations(t)
}

func TestContamination_BelowThreshold(t *testing.T) {
	z := testNode(panZ, 1_000_000, 1_000_000, panW, panV)
	w := testNode(panW, 0, 0)
	v := testNode(panV, 1, 1)
	nodes := nodeSet(z, w, v)

	sup := ledger.NewMemorySupplier(map[string][]model.TransactionRecord{
		panZ: {purchase(panW, 50_000), purchase(panV, 950_000)},
	})

	_, err := contamination(context.Background(), nodes, sup)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, z.ContaminationLevel, 0.001)
	assert.False(t, z.IsContaminated)
	assert.InDelta(t, 1_000_000.0, z.AdjustedPurchases, 0.001)
	assert.InDelta(t, 1.0, float64(z.PurchaseToSalesRatio), 0.0001)
}

func TestContamination_ChildrenWithoutPurchases(t *testing.T) {
	z := testNode(panZ, 100, 0, panW)
	nodes := nodeSet(z, testNode(panW, 0, 0))
	sup := ledger.NewMemorySupplier(map[string][]model.TransactionRecord{panZ: nil})

	_, err := contamination(context.Background(), nodes, sup)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, z.ContaminationLevel, 0.001)
	assert.True(t, z.IsContaminated)
	assert.InDelta(t, 0.0, z.AdjustedPurchases, 0.001)
}

func TestContamination_SupplierError(t *testing.T) {
	boom := errors.New("disk gone")
	sup := new(mockSupplier)
	sup.On("Records", mock.Anything, panZ).Return(nil, boom)

	_, err := contamination(context.Background(), nodeSet(testNode(panZ, 1, 1, panW)), sup)
	assert.ErrorIs(t, err, boom)
}

func TestHighExposure(t *testing.T) {
	hit := testNode(panX, 100, 100)
	hit.BogusValue = 50
	miss := testNode(panY, 100, 100)
	miss.BogusValue = 49
	nodes := nodeSet(hit, miss)

	changed, err := highExposure(context.Background(), nodes, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.True(t, hit.IsBogus)
	assert.False(t, miss.IsBogus)
	assert.InDelta(t, 50.0, hit.BogusValue, 0.001)
}

func TestSalesWithoutPurchases(t *testing.T) {
	x := testNode(panX, 1_000_000, 0)
	x.BogusValue = 5_000_000
	nodes := nodeSet(x)

	_, err := salesWithoutPurchases(context.Background(), nodes, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1_000_000.0, x.BogusValue, 0.001)
	assert.True(t, x.IsBogus)
}

func TestAbnormalRatio(t *testing.T) {
	low := testNode(panX, 1_000_000, 150_000)
	high := testNode(panY, 100_000, 400_000)
	normal := testNode(panZ, 100_000, 100_000)
	nodes := nodeSet(low, high, normal)

	changed, err := abnormalRatio(context.Background(), nodes, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	assert.InDelta(t, 1_000_000.0, low.BogusValue, 0.001)
	assert.InDelta(t, 400_000.0, high.BogusValue, 0.001)
	assert.True(t, high.IsBogus)
	assert.False(t, normal.IsBogus)
	assert.InDelta(t, 0.0, normal.BogusValue, 0.001)
}

func TestRecomputeBogusValue(t *testing.T) {
	z := testNode(panZ, 1000, 1000, panW)
	z.BogusValue = 100
	w := testNode(panW, 0, 0)
	v := testNode(panV, 10, 10)
	v.BogusValue = 700
	nodes := nodeSet(z, w, v)

	sup := ledger.NewMemorySupplier(map[string][]model.TransactionRecord{
		panZ: {purchase(panW, 300), purchase(panV, 700)},
	})

	_, err := recomputeBogusValue(context.Background(), nodes, sup)
	require.NoError(t, err)
	assert.InDelta(t, 300.0, z.BogusValue, 0.001)
	// No ledger: value kept.
	assert.InDelta(t, 700.0, v.BogusValue, 0.001)
}

func TestRecomputeBogusValue_WithinTolerance(t *testing.T) {
	z := testNode(panZ, 1000, 1000, panW)
	z.BogusValue = 300.5
	nodes := nodeSet(z, testNode(panW, 0, 0))
	sup := ledger.NewMemorySupplier(map[string][]model.TransactionRecord{
		panZ: {purchase(panW, 300)},
	})

	changed, err := recomputeBogusValue(context.Background(), nodes, sup)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	assert.InDelta(t, 300.5, z.BogusValue, 0.001)
}

func TestRecomputeContamination(t *testing.T) {
	z := testNode(panZ, 1000, 1000)
	z.BogusValue = 2500
	y := testNode(panY, 1000, 1000)
	y.BogusValue = 400
	y.IsContaminated = true
	nodes := nodeSet(z, y)

	_, err := recomputeContamination(context.Background(), nodes, nil)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, z.ContaminationLevel, 0.001)
	assert.True(t, z.IsContaminated)
	assert.InDelta(t, 40.0, y.ContaminationLevel, 0.001)
	assert.False(t, y.IsContaminated)
}

func TestPipeline_Scenarios(t *testing.T) {
	x := testNode(panX, 1_000_000, 0)
	y := testNode(panY, 1_000_000, 150_000)
	z := testNode(panZ, 2_000_000, 1_000_000, panW, panV)
	w := testNode(panW, 0, 0)
	v := testNode(panV, 400_000, 400_000)
	nodes := nodeSet(x, y, z, w, v)
	require.True(t, y.IsBogus)

	sup := ledger.NewMemorySupplier(map[string][]model.TransactionRecord{
		panZ: {purchase(panW, 600_000), purchase(panV, 400_000)},
	})

	require.NoError(t, Default(sup).Run(context.Background(), nodes))

	assert.True(t, x.IsBogus)
	assert.InDelta(t, 1_000_000.0, x.BogusValue, 0.001)

	assert.True(t, y.IsBogus)
	assert.InDelta(t, 1_000_000.0, y.BogusValue, 0.001)

	assert.InDelta(t, 600_000.0, z.BogusValue, 0.001)
	assert.InDelta(t, 60.0, z.ContaminationLevel, 0.001)
	assert.True(t, z.IsContaminated)
	assert.InDelta(t, 400_000.0, z.AdjustedPurchases, 0.001)
	// 60% exposure flags the buyer itself.
	assert.True(t, z.IsBogus)
}

type classification struct {
	bogus        bool
	bogusValue   float64
	contaminated bool
	level        float64
}

func snapshot(nodes model.NodeSet) map[string]classification {
	out := make(map[string]classification, len(nodes))
	for pan, n := range nodes {
		out[pan] = classification{n.IsBogus, n.BogusValue, n.IsContaminated, n.ContaminationLevel}
	}
	return out
}

func TestPipeline_RerunStable(t *testing.T) {
	const panR, panA, panB = "RRRRR0000R", "AAAAA1111A", "BBBBB2222B"
	r := testNode(panR, 2000, 1000, panA, panB)
	a := testNode(panA, 1000, 0)
	b := testNode(panB, 1000, 1000)
	nodes := nodeSet(r, a, b)

	sup := ledger.NewMemorySupplier(map[string][]model.TransactionRecord{
		panR: {purchase(panA, 300), purchase(panB, 700), sale("BUYER0000B", 2000)},
		panA: {sale(panR, 1000)},
		panB: {purchase("CCCCC3333C", 1000), sale(panR, 1000)},
	})
	p := Default(sup)

	require.NoError(t, p.Run(context.Background(), nodes))
	first := snapshot(nodes)

	require.NoError(t, p.Run(context.Background(), nodes))
	assert.Equal(t, first, snapshot(nodes))

	assert.InDelta(t, 300.0, r.BogusValue, 0.001)
	assert.InDelta(t, 30.0, r.ContaminationLevel, 0.001)
	assert.False(t, r.IsContaminated)
	// Ledger recomputation replaces the sales-only value.
	assert.InDelta(t, 0.0, a.BogusValue, 0.001)
	assert.True(t, a.IsBogus)
}

func TestPipeline_RerunPropagatesChain(t *testing.T) {
	const panC, panE, panN = "CCCCC1111C", "EEEEE2222E", "NNNNN3333N"
	n := testNode(panN, 1000, 1000, panC, "DDDDD4444D")
	c := testNode(panC, 1000, 1000, panE, "ZZZZZ5555Z")
	e := testNode(panE, 0, 500)
	nodes := nodeSet(n, c, e)
	require.True(t, e.IsBogus)

	sup := ledger.NewMemorySupplier(map[string][]model.TransactionRecord{
		panN: {purchase(panC, 600), purchase("DDDDD4444D", 400), sale("BUYER0000B", 1000)},
		panC: {purchase(panE, 600), purchase("ZZZZZ5555Z", 400), sale(panN, 1000)},
		panE: {purchase("QQQQQ6666Q", 500)},
	})
	p := Default(sup)

	// C is flagged in pass 2, after N's pass-1 exposure was computed, so the
	// first run only raises N's bogus value in pass 5.
	require.NoError(t, p.Run(context.Background(), nodes))
	assert.True(t, c.IsBogus)
	assert.Equal(t, classification{false, 600, true, 60}, snapshot(nodes)[panN])

	// The next run sees C as bogus in pass 1 and pass 2 flags N.
	require.NoError(t, p.Run(context.Background(), nodes))
	second := snapshot(nodes)
	assert.Equal(t, classification{true, 600, true, 60}, second[panN])

	require.NoError(t, p.Run(context.Background(), nodes))
	assert.Equal(t, second, snapshot(nodes))
}

func TestPipeline_Order(t *testing.T) {
	noop := func(context.Context, model.NodeSet, ledger.Supplier) (int, error) { return 0, nil }

	_, err := NewPipeline(nil,
		Pass{Name: "b", After: []string{"a"}, Apply: noop},
		Pass{Name: "a", Apply: noop},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"b" must run after "a"`)

	_, err = NewPipeline(nil, Pass{Name: "a", Apply: noop}, Pass{Name: "a", Apply: noop})
	assert.Error(t, err)

	_, err = NewPipeline(nil, Pass{Name: "a"})
	assert.Error(t, err)

	p, err := NewPipeline(nil, Pass{Name: "a", Apply: noop}, Pass{Name: "b", After: []string{"a"}, Apply: noop})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.Passes())
}

func TestDefaultPasses(t *testing.T) {
	p := Default(nil)
	assert.Equal(t, []string{
		PassContamination, PassHighExposure, PassSalesOnly,
		PassAbnormalRatio, PassRecomputeBogus, PassRecomputeContam,
	}, p.Passes())
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Default(ledger.NewMemorySupplier(nil)).Run(ctx, nodeSet(testNode(panX, 1, 1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_InfiniteRatioSurvives(t *testing.T) {
	n := testNode(panX, 0, 500)
	nodes := nodeSet(n)
	require.NoError(t, Default(ledger.NewMemorySupplier(nil)).Run(context.Background(), nodes))
	assert.True(t, math.IsInf(float64(n.PurchaseToSalesRatio), 1))
	assert.True(t, n.IsBogus)
}
