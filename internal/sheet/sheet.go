// Package sheet reads tabular ledger files (XLSX and CSV) into string rows.
package sheet

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Options configures how a ledger file is read.
type Options struct {
	SheetIndex int    // XLSX only, default 0
	SheetName  string // XLSX only, overrides SheetIndex
	SkipRows   int    // leading rows to drop
	Delimiter  rune   // CSV only, default ','
}

// Supported reports whether name has a readable ledger extension. Office
// lock files ("~$...") are rejected.
func Supported(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".xlsx", ".csv":
		return true
	default:
		return false
	}
}

// Read reads every row of the file at path, dispatching on extension.
func Read(ctx context.Context, path string, opts Options) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, opts)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "csv: open file")
		}
		defer f.Close() //nolint:errcheck

		rowCh, errCh := StreamCSV(ctx, f, CSVOptions{Delimiter: opts.Delimiter, TrimSpace: true})
		var rows [][]string
		i := 0
		for row := range rowCh {
			if i >= opts.SkipRows {
				rows = append(rows, row)
			}
			i++
		}
		for err := range errCh {
			if err != nil {
				return nil, err
			}
		}
		return rows, nil
	default:
		return nil, eris.Errorf("sheet: unsupported file type %q", filepath.Ext(path))
	}
}

// Cell returns row[col] trimmed, or "" when the row is too short.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
