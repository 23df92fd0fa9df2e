// Package ledger supplies per-entity GST transaction records and reduces them
// to sales and purchase totals.
package ledger

import (
	"context"
	"strings"

	"github.com/sells-group/gst-analyzer/internal/model"
)

// Supplier returns the transaction records of one entity. A nil slice with a
// nil error means the entity has no readable ledger. A non-nil error aborts
// the caller's run.
type Supplier interface {
	Records(ctx context.Context, pan string) ([]model.TransactionRecord, error)
	HasLedger(pan string) bool
}

// Totals is the reduction of a ledger into sales, purchases and row count.
type Totals struct {
	Sales     float64
	Purchases float64
	Count     int
}

// Aggregate sums records by direction. Rows with an unknown code are ignored
// and not counted.
func Aggregate(records []model.TransactionRecord) Totals {
	var t Totals
	for _, r := range records {
		switch r.Direction {
		case model.DirectionSale:
			t.Sales += r.Amount
			t.Count++
		case model.DirectionPurchase:
			t.Purchases += r.Amount
			t.Count++
		}
	}
	return t
}

// FilterPAN returns the records whose counterparty is pan.
func FilterPAN(records []model.TransactionRecord, pan string) []model.TransactionRecord {
	var out []model.TransactionRecord
	for _, r := range records {
		if r.PAN == pan {
			out = append(out, r)
		}
	}
	return out
}

// PurchasesFrom sums purchase amounts paid to counterparties accepted by match.
func PurchasesFrom(records []model.TransactionRecord, match func(pan string) bool) float64 {
	var sum float64
	for _, r := range records {
		if r.IsPurchase() && match(r.PAN) {
			sum += r.Amount
		}
	}
	return sum
}

// NormalizePAN upper-cases and trims an identifier.
func NormalizePAN(pan string) string {
	return strings.ToUpper(strings.TrimSpace(pan))
}

// ValidPAN reports whether pan is a 10-character alphanumeric identifier.
func ValidPAN(pan string) bool {
	if len(pan) != 10 {
		return false
	}
	for _, c := range pan {
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
