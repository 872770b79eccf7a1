package cdf

import (
	"errors"
	"fmt"
)

// ErrNotNetCDF reports a file that does not start with the classic magic.
var ErrNotNetCDF = errors.New("cdf: not a netCDF classic file")

// ErrUnsupported reports a classic-format feature the codec does not handle
// (record dimensions, CDF-5).
var ErrUnsupported = errors.New("cdf: unsupported netCDF feature")

// FormatError reports a structurally malformed or truncated file.
type FormatError struct {
	Offset int64
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cdf: offset %d: %s", e.Offset, e.Msg)
}

func formatErr(offset int64, format string, args ...any) error {
	return &FormatError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
