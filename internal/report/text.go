package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/gst-analyzer/internal/model"
)

// Input is everything a report or workbook is rendered from.
type Input struct {
	Nodes          model.NodeSet
	Metrics        model.AnalysisMetrics
	BogusThreshold float64
	RiskThreshold  float64
	GeneratedAt    time.Time
}

// FormatRatio renders a ratio with four decimals, or "∞".
func FormatRatio(r model.Ratio) string {
	if r.IsInf() {
		return "∞"
	}
	return fmt.Sprintf("%.4f", float64(r))
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// FormatText renders the plain-text analysis report.
func FormatText(in Input) string {
	var b strings.Builder
	rule := strings.Repeat("=", 100)
	dash := strings.Repeat("-", 100)
	s := Summarize(in.Nodes, in.RiskThreshold)
	m := in.Metrics

	b.WriteString(rule + "\n")
	b.WriteString("HIERARCHICAL GST ANALYSIS REPORT\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Generated on: %s\n", in.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Configuration: Bogus Threshold = %g\n\n", in.BogusThreshold)

	b.WriteString("PERFORMANCE METRICS:\n")
	fmt.Fprintf(&b, "Processing Time: %.2f seconds\n", m.ProcessingTime.Seconds())
	fmt.Fprintf(&b, "Files Processed: %d\n", m.FilesProcessed)
	fmt.Fprintf(&b, "Cache Hits: %d\n", m.CacheHits)
	fmt.Fprintf(&b, "Cache Misses: %d\n", m.CacheMisses)
	fmt.Fprintf(&b, "Cycles Detected: %d\n", m.CyclesDetected)
	fmt.Fprintf(&b, "Errors Encountered: %d\n\n", m.ErrorsEncountered)

	b.WriteString("SUMMARY STATISTICS:\n")
	fmt.Fprintf(&b, "Total Nodes Analyzed: %d\n", s.TotalNodes)
	fmt.Fprintf(&b, "Bogus Nodes Detected: %d (%.1f%%)\n", s.BogusNodes, s.BogusPercentage)
	fmt.Fprintf(&b, "Contaminated Nodes: %d (%.1f%%)\n", s.ContaminatedNodes, s.ContaminatedPercentage)
	fmt.Fprintf(&b, "High Risk Nodes (Score > %g): %d (%.1f%%)\n",
		in.RiskThreshold, s.HighRiskNodes, percent(s.HighRiskNodes, s.TotalNodes))
	fmt.Fprintf(&b, "Total Sales Amount: %s%s\n", rupee, FormatAmount(s.TotalSales))
	fmt.Fprintf(&b, "Total Purchases Amount: %s%s\n", rupee, FormatAmount(s.TotalPurchases))
	fmt.Fprintf(&b, "Total Bogus Value: %s\n", FormatCurrency(s.TotalBogusValue))
	if s.TotalSales > 0 {
		fmt.Fprintf(&b, "Overall P/S Ratio: %.4f\n", s.OverallPSRatio)
	} else {
		b.WriteString("Overall P/S Ratio: N/A\n")
	}
	b.WriteString("\n")

	b.WriteString("RISK DISTRIBUTION:\n")
	for _, label := range RiskBuckets {
		count := s.RiskDistribution[label]
		if count == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s: %d (%.1f%%)\n", label, count, percent(count, s.TotalNodes))
	}
	b.WriteString("\n")

	b.WriteString("DETAILED ANALYSIS:\n")
	b.WriteString(dash + "\n")
	fmt.Fprintf(&b, "%-15s %-15s %-15s %-10s %-6s %-8s %s\n",
		"PAN", "Sales", "Purchases", "P/S Ratio", "Risk", "Status", "Children")
	b.WriteString(dash + "\n")
	for _, n := range ByRisk(in.Nodes) {
		status := "OK"
		if n.IsBogus {
			status = "BOGUS"
		}
		fmt.Fprintf(&b, "%-15s %-15s %-15s %-10s %-6.1f %-8s %d\n",
			n.PAN,
			printer.Sprintf("%.0f", n.TotalSales),
			printer.Sprintf("%.0f", n.TotalPurchases),
			FormatRatio(n.PurchaseToSalesRatio),
			n.RiskScore,
			status,
			n.Children.Len(),
		)
	}
	return b.String()
}
