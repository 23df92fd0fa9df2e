package report

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gst-analyzer/internal/model"
)

// Workbook sheet names.
const (
	SheetResults = "Analysis_Results"
	SheetSummary = "Summary"
	SheetBogus   = "Bogus_Nodes"
)

var resultColumns = []string{
	"PAN",
	"Entity_Name",
	"Total_Sales",
	"Total_Purchases",
	"Original_Total_Purchases",
	"Adjusted_Purchases",
	"Purchase_to_Sales_Ratio",
	"Risk_Score",
	"Is_Bogus",
	"Bogus_Value",
	"Is_Contaminated",
	"Contamination_Level",
	"Transaction_Count",
	"Avg_Transaction_Size",
	"Children_Count",
	"Parents_Count",
	"Children_PANs",
	"Parents_PANs",
}

// ExportXLSX writes the analysis workbook to path.
func ExportXLSX(path string, in Input) error {
	f := xlsx.NewFile()

	results, err := f.AddSheet(SheetResults)
	if err != nil {
		return eris.Wrap(err, "report: add results sheet")
	}
	addHeader(results, resultColumns)
	for _, n := range in.Nodes.Sorted() {
		addNodeRow(results, n)
	}

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	writeSummary(summary, in)

	if bogus := in.Nodes.Bogus(); len(bogus) > 0 {
		sh, err := f.AddSheet(SheetBogus)
		if err != nil {
			return eris.Wrap(err, "report: add bogus sheet")
		}
		addHeader(sh, resultColumns)
		for _, n := range bogus {
			addNodeRow(sh, n)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save workbook")
	}
	return nil
}

func addHeader(sh *xlsx.Sheet, cols []string) {
	row := sh.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

func addNodeRow(sh *xlsx.Sheet, n *model.Node) {
	r := NewRow(n)
	row := sh.AddRow()
	row.AddCell().SetString(r.PAN)
	row.AddCell().SetString(r.EntityName)
	row.AddCell().SetFloat(r.TotalSales)
	row.AddCell().SetFloat(r.TotalPurchases)
	row.AddCell().SetFloat(r.OriginalTotalPurchases)
	row.AddCell().SetFloat(r.AdjustedPurchases)
	if r.PurchaseToSalesRatio.IsInf() {
		row.AddCell().SetString("inf")
	} else {
		row.AddCell().SetFloat(float64(r.PurchaseToSalesRatio))
	}
	row.AddCell().SetFloat(r.RiskScore)
	row.AddCell().SetBool(r.IsBogus)
	row.AddCell().SetFloat(r.BogusValue)
	row.AddCell().SetBool(r.IsContaminated)
	row.AddCell().SetFloat(r.ContaminationLevel)
	row.AddCell().SetInt(r.TransactionCount)
	row.AddCell().SetFloat(r.AvgTransactionSize)
	row.AddCell().SetInt(r.ChildrenCount)
	row.AddCell().SetInt(r.ParentsCount)
	row.AddCell().SetString(r.ChildrenPANs)
	row.AddCell().SetString(r.ParentsPANs)
}

func writeSummary(sh *xlsx.Sheet, in Input) {
	s := Summarize(in.Nodes, in.RiskThreshold)
	addHeader(sh, []string{"Metric", "Value"})

	add := func(metric string, set func(c *xlsx.Cell)) {
		row := sh.AddRow()
		row.AddCell().SetString(metric)
		set(row.AddCell())
	}
	addInt := func(metric string, v int) { add(metric, func(c *xlsx.Cell) { c.SetInt(v) }) }
	addFloat := func(metric string, v float64) { add(metric, func(c *xlsx.Cell) { c.SetFloat(v) }) }

	addInt("Total Nodes", s.TotalNodes)
	addInt("Bogus Nodes", s.BogusNodes)
	add("Bogus Percentage", func(c *xlsx.Cell) { c.SetString(fmt.Sprintf("%.1f%%", s.BogusPercentage)) })
	addInt("Contaminated Nodes", s.ContaminatedNodes)
	addFloat("Total Sales", s.TotalSales)
	addFloat("Total Purchases", s.TotalPurchases)
	addFloat("Total Bogus Value", s.TotalBogusValue)
	if s.TotalSales > 0 {
		addFloat("Overall P/S Ratio", s.OverallPSRatio)
	} else {
		add("Overall P/S Ratio", func(c *xlsx.Cell) { c.SetString("N/A") })
	}
	addFloat("Processing Time (seconds)", in.Metrics.ProcessingTime.Seconds())
	addInt("Files Processed", in.Metrics.FilesProcessed)
	addInt("Errors Encountered", in.Metrics.ErrorsEncountered)
}
