package sheet

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX reads an XLSX file and returns all rows as string slices.
func ReadXLSX(path string, opts Options) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}

	return rows, nil
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

// rowToStrings renders cells as text. Numeric cells are rendered without
// display formatting so amounts survive number formats like "#,##0".
func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		if cell.Type() == xlsx.CellTypeNumeric {
			if f, err := cell.Float(); err == nil {
				cells[j] = strconv.FormatFloat(f, 'f', -1, 64)
				continue
			}
		}
		cells[j] = cell.String()
	}
	return cells
}
