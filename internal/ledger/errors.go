package ledger

import (
	"errors"
	"fmt"
)

// ReadError reports an I/O or parse failure for one entity's ledger.
type ReadError struct {
	PAN  string
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("ledger: read %s (%s): %v", e.PAN, e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// InvalidRowError reports a single malformed ledger row. Row is 1-based as
// shown in a spreadsheet.
type InvalidRowError struct {
	Path   string
	Row    int
	Reason string
}

func (e *InvalidRowError) Error() string {
	return fmt.Sprintf("ledger: invalid row %d in %s: %s", e.Row, e.Path, e.Reason)
}

// IsReadError reports whether err (or any error in its chain) is a ReadError.
func IsReadError(err error) bool {
	var re *ReadError
	return errors.As(err, &re)
}

// IsInvalidRow reports whether err (or any error in its chain) is an InvalidRowError.
func IsInvalidRow(err error) bool {
	var ie *InvalidRowError
	return errors.As(err, &ie)
}
