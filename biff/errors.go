package biff

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is matched by every *TruncatedError.
	ErrTruncated = errors.New("biff: truncated record stream")

	// ErrPoolFull reports a shared string table that cannot take more strings.
	ErrPoolFull = errors.New("biff: string table full")

	// ErrUnknownToken reports a formula token the walker cannot size.
	ErrUnknownToken = errors.New("biff: unknown formula token")
)

// TruncatedError reports a record header or body cut short by the end of
// the stream.
type TruncatedError struct {
	Offset int // stream offset of the record header
	Need   int
	Have   int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("biff: record at offset %d needs %d bytes, %d left", e.Offset, e.Need, e.Have)
}

func (e *TruncatedError) Unwrap() error {
	return ErrTruncated
}

// RecordError reports a record whose payload does not match its layout.
type RecordError struct {
	Opcode  uint16
	Message string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("biff: %s record: %s", RecordName(e.Opcode), e.Message)
}

func recordErrorf(op uint16, format string, args ...interface{}) *RecordError {
	return &RecordError{Opcode: op, Message: fmt.Sprintf(format, args...)}
}
