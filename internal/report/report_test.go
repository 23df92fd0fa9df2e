package report

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gst-analyzer/internal/model"
)

func fixtureNodes() model.NodeSet {
	root := model.NewNode("RRRRR0000R")
	root.EntityName = "Root Traders"
	root.TotalSales = 2_000_000
	root.TotalPurchases = 1_000_000
	root.OriginalTotalPurchases = 1_000_000
	root.AdjustedPurchases = 400_000
	root.PurchaseToSalesRatio = 0.2
	root.BogusValue = 600_000
	root.ContaminationLevel = 60
	root.IsContaminated = true
	root.IsBogus = true
	root.RiskScore = 30
	root.TransactionCount = 3
	root.Children = model.NewIDSet("AAAAA1111A", "BBBBB2222B")

	a := model.NewNode("AAAAA1111A")
	a.TotalSales = 600_000
	a.PurchaseToSalesRatio = 0
	a.IsBogus = true
	a.BogusValue = 600_000
	a.RiskScore = 45
	a.Parents = model.NewIDSet("RRRRR0000R")

	b := model.NewNode("BBBBB2222B")
	b.EntityName = "Blue Impex"
	b.TotalPurchases = 50_000
	b.AdjustedPurchases = 50_000
	b.PurchaseToSalesRatio = model.Ratio(math.Inf(1))
	b.ContaminationLevel = 85
	b.RiskScore = 85
	b.Parents = model.NewIDSet("RRRRR0000R")

	return model.NodeSet{root.PAN: root, a.PAN: a, b.PAN: b}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "₹0"},
		{999, "₹999"},
		{999.6, "₹1,000"},
		{1500, "₹1.5K"},
		{250_000, "₹2.50 L"},
		{15_000_000, "₹1.50 Cr"},
		{-250_000, "-₹2.50 L"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(tt.amount), "amount %v", tt.amount)
	}
}

func TestFormatCurrencyCompact(t *testing.T) {
	assert.Equal(t, "₹1.5Cr", FormatCurrencyCompact(15_000_000))
	assert.Equal(t, "₹2.5L", FormatCurrencyCompact(250_000))
	assert.Equal(t, "₹2K", FormatCurrencyCompact(1500))
	assert.Equal(t, "₹0", FormatCurrencyCompact(0))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1,234,567.89", FormatAmount(1234567.891))
	assert.Equal(t, "12.00", FormatAmount(12))
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"₹1.50 Cr", 15_000_000},
		{"₹2.5L", 250_000},
		{"₹1.5K", 1500},
		{"-₹2.50 L", -250_000},
		{"₹3.00 Crores", 30_000_000},
		{"₹1,234", 1234},
	}
	for _, tt := range tests {
		got, err := ParseCurrency(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 0.001, tt.in)
	}

	_, err := ParseCurrency("₹abc")
	assert.Error(t, err)
}

func TestBuckets(t *testing.T) {
	assert.Equal(t, "Very High", ContaminationBucket(80))
	assert.Equal(t, "High", ContaminationBucket(79.9))
	assert.Equal(t, "Medium", ContaminationBucket(40))
	assert.Equal(t, "Low", ContaminationBucket(20))
	assert.Equal(t, "None", ContaminationBucket(19.99))
	assert.Equal(t, "Very Low", RiskBucket(0))
	assert.Equal(t, "High", RiskBucket(60))
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixtureNodes(), 70)

	assert.Equal(t, 3, s.TotalNodes)
	assert.Equal(t, 2, s.BogusNodes)
	assert.InDelta(t, 66.666, s.BogusPercentage, 0.01)
	assert.Equal(t, 1, s.ContaminatedNodes)
	assert.Equal(t, 1, s.HighRiskNodes)
	assert.Equal(t, 2, s.NodesWithBogusValue)
	assert.InDelta(t, 2_600_000.0, s.TotalSales, 0.001)
	assert.InDelta(t, 1_050_000.0, s.TotalPurchases, 0.001)
	assert.InDelta(t, 450_000.0, s.TotalAdjustedPurchases, 0.001)
	assert.InDelta(t, 1_200_000.0, s.TotalBogusValue, 0.001)
	assert.InDelta(t, 1_050_000.0/2_600_000.0, s.OverallPSRatio, 0.0001)

	assert.Equal(t, map[string]int{"Very High": 1, "High": 1, "Medium": 0, "Low": 0, "None": 1}, s.ContaminationDistribution)
	assert.Equal(t, 1, s.RiskDistribution["Very High"])
	assert.Equal(t, 1, s.RiskDistribution["Medium"])
	assert.Equal(t, 1, s.RiskDistribution["Low"])
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(model.NodeSet{}, 70)
	assert.Equal(t, 0, s.TotalNodes)
	assert.InDelta(t, 0.0, s.BogusPercentage, 0.001)
	assert.InDelta(t, 0.0, s.OverallPSRatio, 0.001)
}

func TestHighContamination(t *testing.T) {
	got := HighContamination(fixtureNodes(), DefaultHighContaminationLimit)
	require.Len(t, got, 2)
	assert.Equal(t, "BBBBB2222B", got[0].PAN)
	assert.Equal(t, "RRRRR0000R", got[1].PAN)

	assert.Len(t, HighContamination(fixtureNodes(), 1), 1)
}

func TestSearch(t *testing.T) {
	nodes := fixtureNodes()

	got := Search(nodes, "aaaaa", DefaultSearchLimit)
	require.Len(t, got, 1)
	assert.Equal(t, "AAAAA1111A", got[0].PAN)

	got = Search(nodes, "impex", DefaultSearchLimit)
	require.Len(t, got, 1)
	assert.Equal(t, "BBBBB2222B", got[0].PAN)

	assert.Len(t, Search(nodes, "a", 0), 2)
	assert.Len(t, Search(nodes, "a", 1), 1)
	assert.Empty(t, Search(nodes, "  ", DefaultSearchLimit))
}

func TestExportJSON_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, fixtureNodes()))

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	require.Len(t, raw, 3)
	assert.Equal(t, "AAAAA1111A", raw[0]["PAN"])
	assert.Equal(t, "AAAAA1111A", raw[0]["Entity_Name"])
	assert.Nil(t, raw[1]["Purchase_to_Sales_Ratio"])
	assert.Equal(t, "AAAAA1111A, BBBBB2222B", raw[2]["Children_PANs"])
	assert.Equal(t, true, raw[2]["Is_Contaminated"])

	nodes, err := LoadJSON(&buf)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.True(t, nodes["BBBBB2222B"].PurchaseToSalesRatio.IsInf())
	assert.True(t, nodes["RRRRR0000R"].Children.Has("BBBBB2222B"))
	assert.True(t, nodes["AAAAA1111A"].Parents.Has("RRRRR0000R"))
	assert.InDelta(t, 600_000.0, nodes["RRRRR0000R"].BogusValue, 0.001)
}

func TestLoadJSON_Invalid(t *testing.T) {
	_, err := LoadJSON(strings.NewReader("{"))
	assert.Error(t, err)
}

func testInput() Input {
	return Input{
		Nodes: fixtureNodes(),
		Metrics: model.AnalysisMetrics{
			ProcessingTime: 1500 * time.Millisecond,
			FilesProcessed: 4,
			CacheHits:      2,
			CacheMisses:    3,
		},
		BogusThreshold: 0.5,
		RiskThreshold:  70,
		GeneratedAt:    time.Date(2025, 9, 20, 10, 30, 0, 0, time.UTC),
	}
}

func TestFormatText(t *testing.T) {
	out := FormatText(testInput())

	assert.Contains(t, out, "HIERARCHICAL GST ANALYSIS REPORT")
	assert.Contains(t, out, "Generated on: 2025-09-20 10:30:00")
	assert.Contains(t, out, "Bogus Threshold = 0.5")
	assert.Contains(t, out, "Processing Time: 1.50 seconds")
	assert.Contains(t, out, "Bogus Nodes Detected: 2 (66.7%)")
	assert.Contains(t, out, "Total Sales Amount: ₹2,600,000.00")
	assert.Contains(t, out, "Very High: 1 (33.3%)")
	assert.NotContains(t, out, "Very Low:")
	assert.Contains(t, out, "∞")

	// Highest risk first.
	assert.Less(t, strings.Index(out, "BBBBB2222B "), strings.Index(out, "AAAAA1111A "))
	assert.Less(t, strings.Index(out, "AAAAA1111A "), strings.Index(out, "RRRRR0000R "))
}

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, ExportXLSX(path, testInput()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	results, ok := f.Sheet[SheetResults]
	require.True(t, ok)
	require.Len(t, results.Rows, 4)
	assert.Equal(t, "PAN", results.Rows[0].Cells[0].String())
	assert.Equal(t, "AAAAA1111A", results.Rows[1].Cells[0].String())
	assert.Equal(t, "inf", results.Rows[2].Cells[6].String())

	summary, ok := f.Sheet[SheetSummary]
	require.True(t, ok)
	assert.Equal(t, "Total Nodes", summary.Rows[1].Cells[0].String())

	bogus, ok := f.Sheet[SheetBogus]
	require.True(t, ok)
	assert.Len(t, bogus.Rows, 3)
}

func TestExportXLSX_NoBogusSheet(t *testing.T) {
	n := model.NewNode("AAAAA1111A")
	in := testInput()
	in.Nodes = model.NodeSet{n.PAN: n}

	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, ExportXLSX(path, in))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	_, ok := f.Sheet[SheetBogus]
	assert.False(t, ok)
}

func TestCheckRoots(t *testing.T) {
	nodes := fixtureNodes()

	rc := CheckRoots(nodes, "RRRRR0000R")
	assert.Equal(t, 3, rc.TotalNodes)
	require.Len(t, rc.Roots, 1)
	assert.Equal(t, "RRRRR0000R", rc.Roots[0].PAN)
	assert.True(t, rc.Found)
	assert.True(t, rc.IsRoot)
	assert.Empty(t, rc.Parents)

	rc = CheckRoots(nodes, "AAAAA1111A")
	assert.True(t, rc.Found)
	assert.False(t, rc.IsRoot)
	assert.Equal(t, []string{"RRRRR0000R"}, rc.Parents)

	rc = CheckRoots(nodes, "ZZZZZ9999Z")
	assert.False(t, rc.Found)
	assert.False(t, rc.IsRoot)
}

func TestExportSidecars(t *testing.T) {
	var names bytes.Buffer
	require.NoError(t, ExportNames(&names, fixtureNodes()))
	assert.JSONEq(t, `{"RRRRR0000R":"Root Traders","AAAAA1111A":"AAAAA1111A","BBBBB2222B":"Blue Impex"}`, names.String())

	var avail bytes.Buffer
	require.NoError(t, ExportAvailability(&avail, fixtureNodes()))
	assert.JSONEq(t, `{"RRRRR0000R":true,"AAAAA1111A":true,"BBBBB2222B":true}`, avail.String())
}
