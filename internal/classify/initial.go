// Package classify marks purchase-graph nodes bogus or contaminated.
//
// Classification happens in two stages. Initial and RiskScore run while the
// graph is built, one node at a time. The Pipeline then applies ordered batch
// passes over the finished node set; each pass reads flags written by the
// passes before it.
package classify

import (
	"github.com/sells-group/gst-analyzer/internal/model"
)

// MaxRatio is the purchase-to-sales ratio above which a node is bogus at
// build time.
const MaxRatio = 2.0

// Initial sets IsBogus from the purchase-to-sales ratio alone.
func Initial(n *model.Node, threshold float64) {
	r := n.PurchaseToSalesRatio
	n.IsBogus = r == 0 || float64(r) < threshold || float64(r) > MaxRatio || r.IsInf()
}

// RiskScore rates a node 0-100 from its ratio, volume, fan-out and average
// transaction size.
func RiskScore(n *model.Node) float64 {
	var score float64

	switch {
	case n.TotalSales > 0:
		r := float64(n.PurchaseToSalesRatio)
		switch {
		case r < 0.1:
			score += 40
		case r < 0.3:
			score += 30
		case r < 0.5:
			score += 20
		}
	case n.TotalPurchases > 0:
		score += 50
	}

	// 1e9 is 100 crore, 1e8 is 10 crore.
	volume := n.TotalSales + n.TotalPurchases
	switch {
	case volume > 1e9:
		score += 15
	case volume > 1e8:
		score += 10
	}

	switch {
	case len(n.Children) > 10:
		score += 10
	case len(n.Children) > 5:
		score += 5
	}

	if n.AvgTransactionSize > 1e8 {
		score += 10
	}

	if score > 100 {
		return 100
	}
	return score
}
