package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyDataset is returned for an upload with a header but no data rows.
	ErrEmptyDataset = errors.New("dataset has no rows")
	// ErrMalformedCSV wraps tokenizer failures such as ragged rows or bad quoting.
	ErrMalformedCSV = errors.New("malformed csv")
)

// MissingColumnError reports required columns absent from the header.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column(s): %s", strings.Join(e.Columns, ", "))
}

// DateParseError reports a Date_Time cell that is not month/day/year.
type DateParseError struct {
	Row   int
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("row %d: cannot parse %s %q as month/day/year", e.Row, ColDateTime, e.Value)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// InvalidInputError reports a weather attribute that is missing or not a number.
type InvalidInputError struct {
	Row    int
	Column string
	Value  string // raw cell text; empty when the cell was missing
}

func (e *InvalidInputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("row %d: %s is missing", e.Row, e.Column)
	}
	return fmt.Sprintf("row %d: %s value %q is not numeric", e.Row, e.Column, e.Value)
}

// Error kinds surfaced to users and used as metric labels.
const (
	KindMissingColumn = "missing_column"
	KindDateParse     = "date_parse"
	KindInvalidInput  = "invalid_input"
	KindEmptyDataset  = "empty_dataset"
	KindMalformedCSV  = "malformed_csv"
	KindInternal      = "internal"
)

// ErrorKind classifies err into one of the Kind* constants.
func ErrorKind(err error) string {
	var (
		missing *MissingColumnError
		date    *DateParseError
		invalid *InvalidInputError
	)
	switch {
	case errors.As(err, &missing):
		return KindMissingColumn
	case errors.As(err, &date):
		return KindDateParse
	case errors.As(err, &invalid):
		return KindInvalidInput
	case errors.Is(err, ErrEmptyDataset):
		return KindEmptyDataset
	case errors.Is(err, ErrMalformedCSV):
		return KindMalformedCSV
	default:
		return KindInternal
	}
}

// IsUserError reports whether err was caused by the uploaded data rather than
// by the service.
func IsUserError(err error) bool {
	return ErrorKind(err) != KindInternal
}
