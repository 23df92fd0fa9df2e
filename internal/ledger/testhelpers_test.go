package ledger

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gst-analyzer/internal/config"
)

const testStartRow = 19

func testOptions() Options {
	return Options{
		DataStartRow:    testStartRow,
		Columns:         config.ColumnMapping{InfoCode: 1, PAN: 3, Amount: 7, PartyName: 4, TaxpayerType: 5, BusinessNature: 9, TurnoverRange: 10, IncomeRange: 11},
		ContinueOnError: true,
		SkipInvalidRows: true,
		NameWorkers:     2,
	}
}

// dataRow builds a 12-column ledger row in the default column layout.
func dataRow(code, pan, amount, party string) []string {
	row := make([]string, 12)
	row[0] = "1"
	row[1] = code
	row[3] = pan
	row[4] = party
	row[5] = "Regular"
	row[7] = amount
	return row
}

// ledgerRows lays out the header block, the column header at testStartRow
// and the data rows.
func ledgerRows(entity string, data [][]string) [][]string {
	var rows [][]string
	for i := 1; i < testStartRow; i++ {
		if i == nameRow+1 {
			rows = append(rows, []string{"Name", "of", entity})
			continue
		}
		rows = append(rows, []string{"hdr"})
	}
	rows = append(rows, []string{"S.No", "Information Code", "Source", "PAN", "Party", "Type", "", "Amount"})
	return append(rows, data...)
}

func writeLedgerCSV(t *testing.T, dir, name, entity string, data [][]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(ledgerRows(entity, data)))
	return path
}

func writeLedgerXLSX(t *testing.T, dir, name, entity string, data [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range ledgerRows(entity, data) {
		row := sh.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.Save(path))
	return path
}
