package model

import "strings"

// Direction classifies a ledger row as a sale or a purchase.
type Direction string

const (
	DirectionSale     Direction = "sale"
	DirectionPurchase Direction = "purchase"
	DirectionUnknown  Direction = "unknown"
)

// Information codes used by the GSTR-1 ledger export.
const (
	CodeSale     = "GSTR1-R"
	CodePurchase = "GSTR1-P"
)

// ParseDirection maps a ledger information code to a Direction.
func ParseDirection(code string) Direction {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case CodeSale:
		return DirectionSale
	case CodePurchase:
		return DirectionPurchase
	default:
		return DirectionUnknown
	}
}

// TransactionRecord is a single ledger row. PAN identifies the counterparty.
type TransactionRecord struct {
	PAN            string    `json:"pan"`
	Direction      Direction `json:"direction"`
	Code           string    `json:"code"`
	Amount         float64   `json:"amount"`
	PartyName      string    `json:"party_name"`
	TaxpayerType   string    `json:"taxpayer_type"`
	BusinessNature string    `json:"business_nature,omitempty"`
	TurnoverRange  string    `json:"turnover_range,omitempty"`
	IncomeRange    string    `json:"income_range,omitempty"`
}

// IsSale reports whether the record is a sale row.
func (r TransactionRecord) IsSale() bool { return r.Direction == DirectionSale }

// IsPurchase reports whether the record is a purchase row.
func (r TransactionRecord) IsPurchase() bool { return r.Direction == DirectionPurchase }
