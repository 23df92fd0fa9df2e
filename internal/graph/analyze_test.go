package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gst-analyzer/internal/config"
	"github.com/sells-group/gst-analyzer/internal/ledger"
	"github.com/sells-group/gst-analyzer/internal/model"
)

type memRoot struct {
	*ledger.MemorySupplier
	root []model.TransactionRecord
	err  error
}

func (m memRoot) ReadFile(context.Context, string) ([]model.TransactionRecord, error) {
	return m.root, m.err
}

func analysisConfig(dir string) config.AnalysisConfig {
	return config.AnalysisConfig{
		DataDir:             dir,
		RootFile:            panR + "_root.csv",
		DataStartRow:        1,
		Columns:             config.ColumnMapping{InfoCode: 1, PAN: 3, Amount: 7, PartyName: 4, TaxpayerType: 5, BusinessNature: 9, TurnoverRange: 10, IncomeRange: 11},
		BogusThreshold:      0.5,
		MaxCacheSize:        10000,
		ContinueOnFileError: true,
		SkipInvalidRows:     true,
		NameWorkers:         2,
	}
}

func TestAnalyzeHierarchy_EmptyRoot(t *testing.T) {
	src := memRoot{MemorySupplier: ledger.NewMemorySupplier(nil)}
	_, err := AnalyzeHierarchy(context.Background(), analysisConfig(t.TempDir()), src)
	assert.ErrorIs(t, err, ErrEmptyRootLedger)
}

func TestAnalyzeHierarchy_RootReadError(t *testing.T) {
	boom := errors.New("no such file")
	src := memRoot{MemorySupplier: ledger.NewMemorySupplier(nil), err: boom}
	_, err := AnalyzeHierarchy(context.Background(), analysisConfig(t.TempDir()), src)
	assert.ErrorIs(t, err, boom)
}

func TestAnalyzeHierarchy_Memory(t *testing.T) {
	ledgers := map[string][]model.TransactionRecord{
		panR: {purchase(panA, 600_000), purchase(panB, 400_000), sale(panX, 2_000_000)},
		panA: {sale(panR, 600_000)},
		panB: {purchase(panC, 380_000), sale(panR, 400_000)},
	}
	src := memRoot{MemorySupplier: ledger.NewMemorySupplier(ledgers), root: ledgers[panR]}

	res, err := AnalyzeHierarchy(context.Background(), analysisConfig(t.TempDir()), src)
	require.NoError(t, err)

	assert.Equal(t, panR, res.RootPAN)
	require.Len(t, res.Nodes, 3)

	a := res.Nodes[panA]
	assert.True(t, a.IsBogus)

	r := res.Nodes[panR]
	assert.InDelta(t, 600_000.0, r.BogusValue, 0.001)
	assert.InDelta(t, 60.0, r.ContaminationLevel, 0.001)
	assert.True(t, r.IsContaminated)

	assert.Equal(t, 3, res.Metrics.TotalNodes)
	assert.Equal(t, res.Metrics.BogusNodes, len(res.Nodes.Bogus()))
	assert.Equal(t, 3, res.Metrics.CacheMisses)
}

func writeCSV(t *testing.T, dir, name string, rows ...string) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("No,Code,Source,PAN,Party,Type,Period,Amount\n")
	for _, r := range rows {
		sb.WriteString(r)
		sb.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sb.String()), 0o644))
}

func row(code, pan string, amount float64) string {
	return fmt.Sprintf("1,%s,,%s,Party,Regular,,%.2f", code, pan, amount)
}

func TestAnalyzeHierarchy_DirSupplier(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, panR+"_root.csv",
		row(model.CodePurchase, panA, 500),
		row(model.CodePurchase, panB, 500),
		row(model.CodeSale, panX, 1000),
	)
	writeCSV(t, dir, panA+"_2024.csv",
		row(model.CodePurchase, panB, 100),
		row(model.CodeSale, panR, 500),
	)
	writeCSV(t, dir, strings.ToLower(panB)+"_2024.csv",
		row(model.CodePurchase, panC, 450),
		row(model.CodeSale, panR, 500),
		row(model.CodeSale, panA, 100),
	)
	require.NoError(t, os.WriteFile(filepath.Join(dir, panC+"_broken.xlsx"), []byte("garbage"), 0o644))

	cfg := analysisConfig(dir)
	src, err := ledger.NewDirSupplier(dir, ledger.OptionsFromConfig(cfg))
	require.NoError(t, err)

	res, err := AnalyzeHierarchy(context.Background(), cfg, src)
	require.NoError(t, err)

	require.Len(t, res.Nodes, 4)
	b := res.Nodes[panB]
	assert.Equal(t, 2, b.Parents.Len())
	assert.InDelta(t, 600.0, b.TotalSales, 0.001)
	assert.InDelta(t, 450.0, b.TotalPurchases, 0.001)
	assert.Equal(t, panB, b.EntityName)

	// The unreadable ledger is absorbed as an empty node.
	c := res.Nodes[panC]
	assert.Equal(t, 0, c.TransactionCount)
	assert.True(t, c.Parents.Has(panB))

	assert.Positive(t, res.Metrics.FilesProcessed)
	assert.Positive(t, res.Metrics.ErrorsEncountered)
	assert.Positive(t, res.Metrics.ProcessingTime)
}

func TestAnalyzeHierarchy_StrictReadError(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, panR+"_root.csv", row(model.CodePurchase, panC, 10))
	require.NoError(t, os.WriteFile(filepath.Join(dir, panC+"_broken.xlsx"), []byte("garbage"), 0o644))

	cfg := analysisConfig(dir)
	cfg.ContinueOnFileError = false
	src, err := ledger.NewDirSupplier(dir, ledger.OptionsFromConfig(cfg))
	require.NoError(t, err)

	_, err = AnalyzeHierarchy(context.Background(), cfg, src)
	require.Error(t, err)
	assert.True(t, ledger.IsReadError(err))
}
