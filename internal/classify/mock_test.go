package classify

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/gst-analyzer/internal/model"
)

// --- Ledger Supplier Mock ---

type mockSupplier struct {
	mock.Mock
}

func (m *mockSupplier) Records(ctx context.Context, pan string) ([]model.TransactionRecord, error) {
	args := m.Called(ctx, pan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TransactionRecord), args.Error(1)
}

func (m *mockSupplier) HasLedger(pan string) bool {
	args := m.Called(pan)
	return args.Bool(0)
}

func purchase(pan string, amount float64) model.TransactionRecord {
	return model.TransactionRecord{PAN: pan, Direction: model.DirectionPurchase, Code: model.CodePurchase, Amount: amount}
}

func sale(pan string, amount float64) model.TransactionRecord {
	return model.TransactionRecord{PAN: pan, Direction: model.DirectionSale, Code: model.CodeSale, Amount: amount}
}

// testNode builds a node the way the graph builder leaves it.
func testNode(pan string, sales, purchases float64, children ...string) *model.Node {
	n := model.NewNode(pan)
	n.TotalSales = sales
	n.TotalPurchases = purchases
	n.OriginalTotalPurchases = purchases
	n.AdjustedPurchases = purchases
	n.TransactionCount = 1
	for _, c := range children {
		n.Children.Add(c)
	}
	n.UpdateDerived()
	Initial(n, 0.5)
	return n
}

func nodeSet(nodes ...*model.Node) model.NodeSet {
	s := make(model.NodeSet, len(nodes))
	for _, n := range nodes {
		s[n.PAN] = n
	}
	return s
}
