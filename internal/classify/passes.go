package classify

import (
	"context"
	"math"

	"github.com/sells-group/gst-analyzer/internal/ledger"
	"github.com/sells-group/gst-analyzer/internal/model"
)

// Thresholds used by the batch passes.
const (
	ContaminationThreshold      = 10.0 // pass 1
	HighExposurePercent         = 50.0 // pass 2
	LowRatio                    = 0.2  // pass 4
	HighRatio                   = 3.0  // pass 4
	BogusValueTolerance         = 1.0  // pass 5
	FinalContaminationThreshold = 50.0 // pass 6
	fullContamination           = 100.0
)

// Pass names.
const (
	PassContamination   = "contamination"
	PassHighExposure    = "high_exposure"
	PassSalesOnly       = "sales_without_purchases"
	PassAbnormalRatio   = "abnormal_ratio"
	PassRecomputeBogus  = "recompute_bogus_value"
	PassRecomputeContam = "recompute_contamination"
)

// DefaultPasses returns passes 1 through 6 in order.
func DefaultPasses() []Pass {
	return []Pass{
		{Name: PassContamination, Apply: contamination},
		{Name: PassHighExposure, After: []string{PassContamination}, Apply: highExposure},
		{Name: PassSalesOnly, After: []string{PassHighExposure}, Apply: salesWithoutPurchases},
		{Name: PassAbnormalRatio, After: []string{PassSalesOnly}, Apply: abnormalRatio},
		{Name: PassRecomputeBogus, After: []string{PassAbnormalRatio}, Apply: recomputeBogusValue},
		{Name: PassRecomputeContam, After: []string{PassRecomputeBogus}, Apply: recomputeContamination},
	}
}

// contamination sets bogus value from purchases paid to children already
// flagged bogus, then derives contamination and adjusted purchases.
func contamination(ctx context.Context, nodes model.NodeSet, src ledger.Supplier) (int, error) {
	changed := 0
	for _, n := range nodes.Sorted() {
		n.OriginalTotalPurchases = n.TotalPurchases
		if !n.HasChildren() {
			continue
		}

		records, err := src.Records(ctx, n.PAN)
		if err != nil {
			return changed, err
		}
		n.BogusValue = ledger.PurchasesFrom(records, func(pan string) bool {
			return n.Children.Has(pan) && nodes.IsBogus(pan)
		})

		if n.TotalPurchases > 0 {
			n.ContaminationLevel = n.BogusValue / n.TotalPurchases * 100
		} else {
			n.ContaminationLevel = fullContamination
		}
		n.IsContaminated = n.ContaminationLevel > ContaminationThreshold

		if n.IsContaminated {
			n.AdjustedPurchases = math.Max(0, n.TotalPurchases-n.BogusValue)
			n.PurchaseToSalesRatio = model.ComputeRatio(n.AdjustedPurchases, n.TotalSales)
			changed++
		} else {
			n.AdjustedPurchases = n.TotalPurchases
			n.PurchaseToSalesRatio = model.ComputeRatio(n.TotalPurchases, n.TotalSales)
		}
	}
	return changed, nil
}

func highExposure(_ context.Context, nodes model.NodeSet, _ ledger.Supplier) (int, error) {
	changed := 0
	for _, n := range nodes.Sorted() {
		if n.IsBogus || n.TotalPurchases <= 0 || n.BogusValue <= 0 {
			continue
		}
		if n.BogusValue/n.TotalPurchases*100 >= HighExposurePercent {
			n.IsBogus = true
			changed++
		}
	}
	return changed, nil
}

// salesWithoutPurchases overwrites bogus value with total sales.
func salesWithoutPurchases(_ context.Context, nodes model.NodeSet, _ ledger.Supplier) (int, error) {
	changed := 0
	for _, n := range nodes.Sorted() {
		if n.TotalSales > 0 && n.TotalPurchases == 0 {
			n.BogusValue = n.TotalSales
			n.IsBogus = true
			changed++
		}
	}
	return changed, nil
}

func abnormalRatio(_ context.Context, nodes model.NodeSet, _ ledger.Supplier) (int, error) {
	changed := 0
	for _, n := range nodes.Sorted() {
		if n.TotalSales <= 0 || n.TotalPurchases <= 0 {
			continue
		}
		switch r := n.TotalPurchases / n.TotalSales; {
		case r < LowRatio:
			n.BogusValue = math.Max(n.BogusValue, n.TotalSales)
			n.IsBogus = true
			changed++
		case r > HighRatio:
			n.BogusValue = math.Max(n.BogusValue, n.TotalPurchases)
			n.IsBogus = true
			changed++
		}
	}
	return changed, nil
}

// recomputeBogusValue replaces bogus value with purchases paid to any
// counterparty that ends up bogus. Differences within tolerance are kept.
func recomputeBogusValue(ctx context.Context, nodes model.NodeSet, src ledger.Supplier) (int, error) {
	changed := 0
	for _, n := range nodes.Sorted() {
		if !src.HasLedger(n.PAN) {
			continue
		}
		records, err := src.Records(ctx, n.PAN)
		if err != nil {
			return changed, err
		}
		v := ledger.PurchasesFrom(records, nodes.IsBogus)
		if math.Abs(v-n.BogusValue) > BogusValueTolerance {
			n.BogusValue = v
			changed++
		}
	}
	return changed, nil
}

func recomputeContamination(_ context.Context, nodes model.NodeSet, _ ledger.Supplier) (int, error) {
	changed := 0
	for _, n := range nodes.Sorted() {
		if n.TotalPurchases <= 0 || n.BogusValue <= 0 {
			continue
		}
		n.ContaminationLevel = math.Min(fullContamination, n.BogusValue/n.TotalPurchases*100)
		n.IsContaminated = n.ContaminationLevel > FinalContaminationThreshold
		if n.IsContaminated {
			changed++
		}
	}
	return changed, nil
}
