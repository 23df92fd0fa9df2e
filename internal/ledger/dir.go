package ledger

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gst-analyzer/internal/config"
	"github.com/sells-group/gst-analyzer/internal/metrics"
	"github.com/sells-group/gst-analyzer/internal/model"
	"github.com/sells-group/gst-analyzer/internal/sheet"
)

// Options configures ledger parsing and failure policy.
type Options struct {
	DataStartRow    int // 1-based header row; data begins on the next row
	Columns         config.ColumnMapping
	ContinueOnError bool
	SkipInvalidRows bool
	NameWorkers     int
}

// OptionsFromConfig builds Options from the analysis configuration.
func OptionsFromConfig(cfg config.AnalysisConfig) Options {
	return Options{
		DataStartRow:    cfg.DataStartRow,
		Columns:         cfg.Columns,
		ContinueOnError: cfg.ContinueOnFileError,
		SkipInvalidRows: cfg.SkipInvalidRows,
		NameWorkers:     cfg.NameWorkers,
	}
}

// Stats counts ledger file activity.
type Stats struct {
	FilesProcessed    int
	ErrorsEncountered int
}

// DirSupplier serves ledgers from a directory of XLSX/CSV files named
// "<PAN>_<anything>.<ext>". Each file is parsed once; later reads, including
// failed ones, are served from memory and do not touch Stats. It is not safe
// for concurrent Records calls.
type DirSupplier struct {
	dir    string
	opts   Options
	files  map[string]string
	stats  Stats
	parsed map[string]readResult
}

type readResult struct {
	records []model.TransactionRecord
	err     error
}

// NewDirSupplier scans dir and maps each ledger file to its PAN. Files whose
// prefix is not a valid PAN are ignored.
func NewDirSupplier(dir string, opts Options) (*DirSupplier, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: read dir %s", dir)
	}

	files := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !sheet.Supported(e.Name()) {
			continue
		}
		pan, ok := PANFromFilename(e.Name())
		if !ok {
			zap.L().Warn("ledger: invalid PAN in filename", zap.String("file", e.Name()))
			continue
		}
		files[pan] = e.Name()
	}

	zap.L().Info("ledger: built file mapping", zap.String("dir", dir), zap.Int("files", len(files)))
	return &DirSupplier{dir: dir, opts: opts, files: files, parsed: make(map[string]readResult)}, nil
}

// PANFromFilename extracts the upper-cased PAN prefix before the first "_".
func PANFromFilename(name string) (string, bool) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	pan, _, _ := strings.Cut(base, "_")
	if !ValidPAN(pan) {
		return "", false
	}
	return strings.ToUpper(pan), true
}

// HasLedger reports whether a ledger file exists for pan.
func (s *DirSupplier) HasLedger(pan string) bool {
	_, ok := s.files[pan]
	return ok
}

// Path returns the ledger file path for pan, or "" when there is none.
func (s *DirSupplier) Path(pan string) string {
	name, ok := s.files[pan]
	if !ok {
		return ""
	}
	return filepath.Join(s.dir, name)
}

// PANs returns the PANs with a ledger file, sorted.
func (s *DirSupplier) PANs() []string {
	out := make([]string, 0, len(s.files))
	for pan := range s.files {
		out = append(out, pan)
	}
	sort.Strings(out)
	return out
}

// Stats returns file activity counters.
func (s *DirSupplier) Stats() Stats { return s.stats }

// Records reads the ledger of pan. A missing ledger yields nil records.
func (s *DirSupplier) Records(ctx context.Context, pan string) ([]model.TransactionRecord, error) {
	path := s.Path(pan)
	if path == "" {
		return nil, nil
	}
	return s.read(ctx, pan, path)
}

// ReadFile reads a ledger by path, such as the configured root file.
func (s *DirSupplier) ReadFile(ctx context.Context, path string) ([]model.TransactionRecord, error) {
	pan, _ := PANFromFilename(path)
	return s.read(ctx, pan, path)
}

// read returns the memoized result for path, parsing it on first use.
// Reads interrupted by cancellation are not memoized.
func (s *DirSupplier) read(ctx context.Context, pan, path string) ([]model.TransactionRecord, error) {
	if r, ok := s.parsed[path]; ok {
		return r.records, r.err
	}
	records, err := s.readOnce(ctx, pan, path)
	if ctx.Err() == nil {
		s.parsed[path] = readResult{records: records, err: err}
	}
	return records, err
}

// readOnce applies the failure policy: with ContinueOnError a failed read is
// logged and yields no records, otherwise the ReadError is returned.
func (s *DirSupplier) readOnce(ctx context.Context, pan, path string) ([]model.TransactionRecord, error) {
	records, err := s.parse(ctx, path)
	if err != nil {
		s.stats.ErrorsEncountered++
		metrics.LedgerReadsTotal.WithLabelValues(metrics.StatusError).Inc()
		rerr := &ReadError{PAN: pan, Path: path, Err: err}
		zap.L().Error("ledger: read failed",
			zap.String("pan", pan),
			zap.String("path", path),
			zap.Error(err),
		)
		if !s.opts.ContinueOnError {
			return nil, rerr
		}
		return nil, nil
	}

	s.stats.FilesProcessed++
	metrics.LedgerReadsTotal.WithLabelValues(metrics.StatusOK).Inc()
	zap.L().Debug("ledger: read records", zap.String("path", path), zap.Int("records", len(records)))
	return records, nil
}

func (s *DirSupplier) parse(ctx context.Context, path string) ([]model.TransactionRecord, error) {
	start := s.opts.DataStartRow - 1
	if start < 0 {
		start = 0
	}

	rows, err := sheet.Read(ctx, path, sheet.Options{SkipRows: start})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := s.opts.Columns
	var records []model.TransactionRecord
	// rows[0] is the header row.
	for i, row := range rows[1:] {
		if sheet.Cell(row, cols.PAN) == "" {
			break
		}
		lineNo := start + i + 2

		rec, ok, err := parseRow(row, cols)
		if err != nil {
			ierr := &InvalidRowError{Path: path, Row: lineNo, Reason: err.Error()}
			if !s.opts.SkipInvalidRows {
				return nil, ierr
			}
			s.stats.ErrorsEncountered++
			metrics.InvalidRowsTotal.Inc()
			zap.L().Warn("ledger: skipping invalid row",
				zap.String("path", path),
				zap.Int("row", lineNo),
				zap.String("reason", ierr.Reason),
			)
			continue
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// parseRow converts one ledger row. ok is false for rows missing the PAN,
// information code or amount; those are skipped without error.
func parseRow(row []string, cols config.ColumnMapping) (model.TransactionRecord, bool, error) {
	pan := sheet.Cell(row, cols.PAN)
	code := sheet.Cell(row, cols.InfoCode)
	rawAmount := sheet.Cell(row, cols.Amount)
	if pan == "" || code == "" || rawAmount == "" {
		return model.TransactionRecord{}, false, nil
	}

	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return model.TransactionRecord{}, false, err
	}

	return model.TransactionRecord{
		PAN:            NormalizePAN(pan),
		Direction:      model.ParseDirection(code),
		Code:           strings.ToUpper(code),
		Amount:         amount,
		PartyName:      sheet.Cell(row, cols.PartyName),
		TaxpayerType:   sheet.Cell(row, cols.TaxpayerType),
		BusinessNature: sheet.Cell(row, cols.BusinessNature),
		TurnoverRange:  sheet.Cell(row, cols.TurnoverRange),
		IncomeRange:    sheet.Cell(row, cols.IncomeRange),
	}, true, nil
}

// ParseAmount parses a monetary cell, accepting thousands separators.
// Negative amounts are rejected.
func ParseAmount(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, eris.Errorf("unparseable amount %q", raw)
	}
	if f < 0 {
		return 0, eris.Errorf("negative amount %q", raw)
	}
	return f, nil
}
