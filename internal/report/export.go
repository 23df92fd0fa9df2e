package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gst-analyzer/internal/model"
)

// Row is one node in the table export. Field names are consumed by the
// dashboard and must not change.
type Row struct {
	PAN                    string      `json:"PAN"`
	EntityName             string      `json:"Entity_Name"`
	TotalSales             float64     `json:"Total_Sales"`
	TotalPurchases         float64     `json:"Total_Purchases"`
	OriginalTotalPurchases float64     `json:"Original_Total_Purchases"`
	AdjustedPurchases      float64     `json:"Adjusted_Purchases"`
	PurchaseToSalesRatio   model.Ratio `json:"Purchase_to_Sales_Ratio"`
	IsBogus                bool        `json:"Is_Bogus"`
	BogusValue             float64     `json:"Bogus_Value"`
	IsContaminated         bool        `json:"Is_Contaminated"`
	ContaminationLevel     float64     `json:"Contamination_Level"`
	RiskScore              float64     `json:"Risk_Score"`
	TransactionCount       int         `json:"Transaction_Count"`
	AvgTransactionSize     float64     `json:"Avg_Transaction_Size"`
	ChildrenCount          int         `json:"Children_Count"`
	ParentsCount           int         `json:"Parents_Count"`
	ChildrenPANs           string      `json:"Children_PANs"`
	ParentsPANs            string      `json:"Parents_PANs"`
}

const panSeparator = ", "

// NewRow flattens a node.
func NewRow(n *model.Node) Row {
	name := n.EntityName
	if name == "" {
		name = n.PAN
	}
	return Row{
		PAN:                    n.PAN,
		EntityName:             name,
		TotalSales:             n.TotalSales,
		TotalPurchases:         n.TotalPurchases,
		OriginalTotalPurchases: n.OriginalTotalPurchases,
		AdjustedPurchases:      n.AdjustedPurchases,
		PurchaseToSalesRatio:   n.PurchaseToSalesRatio,
		IsBogus:                n.IsBogus,
		BogusValue:             n.BogusValue,
		IsContaminated:         n.IsContaminated,
		ContaminationLevel:     n.ContaminationLevel,
		RiskScore:              n.RiskScore,
		TransactionCount:       n.TransactionCount,
		AvgTransactionSize:     n.AvgTransactionSize,
		ChildrenCount:          n.Children.Len(),
		ParentsCount:           n.Parents.Len(),
		ChildrenPANs:           strings.Join(n.Children.Sorted(), panSeparator),
		ParentsPANs:            strings.Join(n.Parents.Sorted(), panSeparator),
	}
}

// Node rebuilds a node from an exported row.
func (r Row) Node() *model.Node {
	n := model.NewNode(r.PAN)
	n.EntityName = r.EntityName
	n.TotalSales = r.TotalSales
	n.TotalPurchases = r.TotalPurchases
	n.OriginalTotalPurchases = r.OriginalTotalPurchases
	n.AdjustedPurchases = r.AdjustedPurchases
	n.PurchaseToSalesRatio = r.PurchaseToSalesRatio
	n.IsBogus = r.IsBogus
	n.BogusValue = r.BogusValue
	n.IsContaminated = r.IsContaminated
	n.ContaminationLevel = r.ContaminationLevel
	n.RiskScore = r.RiskScore
	n.TransactionCount = r.TransactionCount
	n.AvgTransactionSize = r.AvgTransactionSize
	n.Children = model.NewIDSet(splitPANs(r.ChildrenPANs)...)
	n.Parents = model.NewIDSet(splitPANs(r.ParentsPANs)...)
	return n
}

func splitPANs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Rows flattens nodes ordered by PAN.
func Rows(nodes model.NodeSet) []Row {
	rows := make([]Row, 0, len(nodes))
	for _, n := range nodes.Sorted() {
		rows = append(rows, NewRow(n))
	}
	return rows
}

// ExportJSON writes the table export as an indented JSON array.
func ExportJSON(w io.Writer, nodes model.NodeSet) error {
	return encodeIndented(w, Rows(nodes))
}

// LoadJSON reads a table export back into a node set.
func LoadJSON(r io.Reader) (model.NodeSet, error) {
	var rows []Row
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, eris.Wrap(err, "report: decode json")
	}
	nodes := make(model.NodeSet, len(rows))
	for _, row := range rows {
		nodes[row.PAN] = row.Node()
	}
	return nodes, nil
}

// Sidecar files written next to the table export.
const (
	NamesFilename        = "pan_names.json"
	AvailabilityFilename = "pan_availability.json"
)

// ExportNames writes the PAN to entity-name index. Missing names fall back
// to the PAN.
func ExportNames(w io.Writer, nodes model.NodeSet) error {
	names := make(map[string]string, len(nodes))
	for pan, n := range nodes {
		names[pan] = NewRow(n).EntityName
	}
	return encodeIndented(w, names)
}

// ExportAvailability marks every analyzed PAN as available.
func ExportAvailability(w io.Writer, nodes model.NodeSet) error {
	avail := make(map[string]bool, len(nodes))
	for pan := range nodes {
		avail[pan] = true
	}
	return encodeIndented(w, avail)
}

func encodeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}
