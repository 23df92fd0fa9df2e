package model

import (
	"encoding/json"
	"math"
	"sort"
)

// IDSet is a set of PAN identifiers. It marshals as a sorted JSON array.
type IDSet map[string]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id.
func (s IDSet) Add(id string) { s[id] = struct{}{} }

// Has reports whether id is a member.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of members.
func (s IDSet) Len() int { return len(s) }

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}

// Ratio is a purchase-to-sales ratio. +Inf marshals as JSON null.
type Ratio float64

// IsInf reports whether the ratio is +Inf (purchases without sales).
func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 1) }

func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.IsInf() || math.IsNaN(float64(r)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(r))
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// ComputeRatio returns purchases/sales, +Inf when only purchases exist and 0
// when both are zero.
func ComputeRatio(purchases, sales float64) Ratio {
	if sales > 0 {
		return Ratio(purchases / sales)
	}
	if purchases > 0 {
		return Ratio(math.Inf(1))
	}
	return 0
}

// Node is one taxpayer in the purchase graph. Totals cover the entity's own
// ledger only; nothing is rolled up from children or parents.
type Node struct {
	PAN                    string  `json:"pan"`
	EntityName             string  `json:"entity_name,omitempty"`
	TotalSales             float64 `json:"total_sales"`
	TotalPurchases         float64 `json:"total_purchases"`
	OriginalTotalPurchases float64 `json:"original_total_purchases"`
	AdjustedPurchases      float64 `json:"adjusted_purchases"`
	PurchaseToSalesRatio   Ratio   `json:"purchase_to_sales_ratio"`
	TransactionCount       int     `json:"transaction_count"`
	AvgTransactionSize     float64 `json:"avg_transaction_size"`
	IsBogus                bool    `json:"is_bogus"`
	BogusValue             float64 `json:"bogus_value"`
	IsContaminated         bool    `json:"is_contaminated"`
	ContaminationLevel     float64 `json:"contamination_level"`
	RiskScore              float64 `json:"risk_score"`
	Children               IDSet   `json:"children"`
	Parents                IDSet   `json:"parents"`
}

// NewNode returns a zero-valued node with initialized edge sets.
func NewNode(pan string) *Node {
	return &Node{
		PAN:      pan,
		Children: make(IDSet),
		Parents:  make(IDSet),
	}
}

// HasChildren reports whether the node purchased from any counterparty.
func (n *Node) HasChildren() bool { return len(n.Children) > 0 }

// UpdateDerived recomputes the ratio and average transaction size from the
// node's own totals.
func (n *Node) UpdateDerived() {
	n.PurchaseToSalesRatio = ComputeRatio(n.TotalPurchases, n.TotalSales)
	if n.TransactionCount > 0 {
		n.AvgTransactionSize = (n.TotalSales + n.TotalPurchases) / float64(n.TransactionCount)
	} else {
		n.AvgTransactionSize = 0
	}
}

// NodeSet maps PAN to node. Each PAN appears exactly once.
type NodeSet map[string]*Node

// PANs returns the keys in ascending order.
func (s NodeSet) PANs() []string {
	out := make([]string, 0, len(s))
	for pan := range s {
		out = append(out, pan)
	}
	sort.Strings(out)
	return out
}

// Sorted returns the nodes ordered by PAN.
func (s NodeSet) Sorted() []*Node {
	out := make([]*Node, 0, len(s))
	for _, pan := range s.PANs() {
		out = append(out, s[pan])
	}
	return out
}

// IsBogus reports whether pan is present and flagged bogus.
func (s NodeSet) IsBogus(pan string) bool {
	n, ok := s[pan]
	return ok && n.IsBogus
}

// Bogus returns the bogus nodes ordered by PAN.
func (s NodeSet) Bogus() []*Node {
	var out []*Node
	for _, n := range s.Sorted() {
		if n.IsBogus {
			out = append(out, n)
		}
	}
	return out
}

// Roots returns the nodes that have no parents, ordered by PAN.
func (s NodeSet) Roots() []*Node {
	var out []*Node
	for _, n := range s.Sorted() {
		if len(n.Parents) == 0 {
			out = append(out, n)
		}
	}
	return out
}
