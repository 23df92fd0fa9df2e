package ledger

import (
	"context"

	"github.com/sells-group/gst-analyzer/internal/model"
)

// MemorySupplier serves ledgers held in memory. Errs injects per-PAN
// failures, returned as-is from Records.
type MemorySupplier struct {
	Ledgers map[string][]model.TransactionRecord
	Errs    map[string]error
	Calls   map[string]int
}

// NewMemorySupplier returns a supplier over ledgers.
func NewMemorySupplier(ledgers map[string][]model.TransactionRecord) *MemorySupplier {
	if ledgers == nil {
		ledgers = make(map[string][]model.TransactionRecord)
	}
	return &MemorySupplier{
		Ledgers: ledgers,
		Errs:    make(map[string]error),
		Calls:   make(map[string]int),
	}
}

// HasLedger reports whether pan has a ledger or an injected error.
func (m *MemorySupplier) HasLedger(pan string) bool {
	if _, ok := m.Errs[pan]; ok {
		return true
	}
	_, ok := m.Ledgers[pan]
	return ok
}

// Records returns the ledger of pan and counts the call in Calls.
func (m *MemorySupplier) Records(_ context.Context, pan string) ([]model.TransactionRecord, error) {
	m.Calls[pan]++
	if err, ok := m.Errs[pan]; ok {
		return nil, err
	}
	return m.Ledgers[pan], nil
}
