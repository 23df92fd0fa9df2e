// Package report projects a classified node set into summaries, text
// reports and JSON/XLSX exports.
package report

import (
	"sort"
	"strings"

	"github.com/sells-group/gst-analyzer/internal/model"
)

// Bucket labels, highest first.
var (
	ContaminationBuckets = []string{"Very High", "High", "Medium", "Low", "None"}
	RiskBuckets          = []string{"Very High", "High", "Medium", "Low", "Very Low"}
)

// HighContaminationLevel is the level above which a node is listed as
// highly contaminated.
const HighContaminationLevel = 50.0

// Default list sizes.
const (
	DefaultHighContaminationLimit = 20
	DefaultSearchLimit            = 10
)

// Summary aggregates a classified node set.
type Summary struct {
	TotalNodes                int            `json:"total_nodes"`
	BogusNodes                int            `json:"bogus_nodes"`
	BogusPercentage           float64        `json:"bogus_percentage"`
	ContaminatedNodes         int            `json:"contaminated_nodes"`
	ContaminatedPercentage    float64        `json:"contaminated_percentage"`
	HighRiskNodes             int            `json:"high_risk_nodes"`
	TotalSales                float64        `json:"total_sales"`
	TotalPurchases            float64        `json:"total_purchases"`
	TotalAdjustedPurchases    float64        `json:"total_adjusted_purchases"`
	TotalBogusValue           float64        `json:"total_bogus_value"`
	NodesWithBogusValue       int            `json:"nodes_with_bogus_value"`
	BogusValuePercentage      float64        `json:"bogus_value_percentage"`
	OverallPSRatio            float64        `json:"overall_ps_ratio"`
	AdjustedPSRatio           float64        `json:"adjusted_ps_ratio"`
	ContaminationDistribution map[string]int `json:"contamination_distribution"`
	RiskDistribution          map[string]int `json:"risk_distribution"`
}

// ContaminationBucket returns the distribution label for a contamination level.
func ContaminationBucket(level float64) string {
	return bucket(level, ContaminationBuckets)
}

// RiskBucket returns the distribution label for a risk score.
func RiskBucket(score float64) string {
	return bucket(score, RiskBuckets)
}

func bucket(v float64, labels []string) string {
	switch {
	case v >= 80:
		return labels[0]
	case v >= 60:
		return labels[1]
	case v >= 40:
		return labels[2]
	case v >= 20:
		return labels[3]
	default:
		return labels[4]
	}
}

// Summarize computes totals and distributions. Nodes with a risk score
// above riskThreshold count as high risk.
func Summarize(nodes model.NodeSet, riskThreshold float64) Summary {
	s := Summary{
		TotalNodes:                len(nodes),
		ContaminationDistribution: make(map[string]int, len(ContaminationBuckets)),
		RiskDistribution:          make(map[string]int, len(RiskBuckets)),
	}
	for _, label := range ContaminationBuckets {
		s.ContaminationDistribution[label] = 0
	}
	for _, label := range RiskBuckets {
		s.RiskDistribution[label] = 0
	}

	for _, n := range nodes {
		if n.IsBogus {
			s.BogusNodes++
		}
		if n.IsContaminated {
			s.ContaminatedNodes++
		}
		if n.RiskScore > riskThreshold {
			s.HighRiskNodes++
		}
		if n.BogusValue > 0 {
			s.NodesWithBogusValue++
		}
		s.TotalSales += n.TotalSales
		s.TotalPurchases += n.TotalPurchases
		s.TotalAdjustedPurchases += n.AdjustedPurchases
		s.TotalBogusValue += n.BogusValue
		s.ContaminationDistribution[ContaminationBucket(n.ContaminationLevel)]++
		s.RiskDistribution[RiskBucket(n.RiskScore)]++
	}

	if s.TotalNodes > 0 {
		total := float64(s.TotalNodes)
		s.BogusPercentage = float64(s.BogusNodes) / total * 100
		s.ContaminatedPercentage = float64(s.ContaminatedNodes) / total * 100
		s.BogusValuePercentage = float64(s.NodesWithBogusValue) / total * 100
	}
	if s.TotalSales > 0 {
		s.OverallPSRatio = s.TotalPurchases / s.TotalSales
		s.AdjustedPSRatio = s.TotalAdjustedPurchases / s.TotalSales
	}
	return s
}

// HighContamination returns nodes with contamination above
// HighContaminationLevel, most contaminated first.
func HighContamination(nodes model.NodeSet, limit int) []*model.Node {
	var out []*model.Node
	for _, n := range nodes.Sorted() {
		if n.ContaminationLevel > HighContaminationLevel {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ContaminationLevel > out[j].ContaminationLevel
	})
	return truncate(out, limit)
}

// Search returns nodes whose PAN or entity name contains query, ignoring case.
func Search(nodes model.NodeSet, query string, limit int) []*model.Node {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []*model.Node
	for _, n := range nodes.Sorted() {
		if strings.Contains(n.PAN, q) || strings.Contains(strings.ToUpper(n.EntityName), q) {
			out = append(out, n)
		}
	}
	return truncate(out, limit)
}

// ByRisk returns all nodes ordered by risk score, highest first.
func ByRisk(nodes model.NodeSet) []*model.Node {
	out := nodes.Sorted()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RiskScore > out[j].RiskScore
	})
	return out
}

func truncate(nodes []*model.Node, limit int) []*model.Node {
	if limit > 0 && len(nodes) > limit {
		return nodes[:limit]
	}
	return nodes
}
