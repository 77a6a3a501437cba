package xls

import (
	"errors"
	"fmt"
)

var (
	// ErrNoWorkbook reports a compound file without a Workbook or Book stream.
	ErrNoWorkbook = errors.New("xls: can't find workbook in OLE2 compound document")

	// ErrSheetNotFound reports a sheet index or name that does not exist.
	ErrSheetNotFound = errors.New("xls: no such sheet")

	// ErrArrayPart reports an edit that would split or resize an array formula.
	ErrArrayPart = errors.New("xls: cannot change part of an array")

	// ErrSheetFull reports an insertion that would push cells off the sheet.
	ErrSheetFull = errors.New("xls: cells would be pushed off the sheet")
)

// XLSError represents an error met while reading or editing a workbook.
type XLSError struct {
	Message string
}

func (e *XLSError) Error() string {
	return e.Message
}

// NewXLSError creates a new XLSError with the given message.
func NewXLSError(format string, args ...interface{}) *XLSError {
	return &XLSError{Message: fmt.Sprintf(format, args...)}
}
