package cfb

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidContainer is matched by every structural corruption error:
	// bad signature, broken header, cyclic or out-of-range sector chains.
	ErrInvalidContainer = errors.New("cfb: invalid container")

	// ErrNotCompoundFile reports input that does not carry the compound file signature.
	ErrNotCompoundFile = fmt.Errorf("%w: not a supported compound file", ErrInvalidContainer)

	// ErrPoolFull reports an allocation table that cannot take more sectors.
	ErrPoolFull = errors.New("cfb: allocation table full")

	// ErrClosed is returned by every operation on a closed File.
	ErrClosed = errors.New("cfb: file closed")

	// ErrNotReady is returned when a File is used before Load completed.
	ErrNotReady = errors.New("cfb: file not loaded")

	// ErrNotFound reports a path with no matching directory entry.
	ErrNotFound = errors.New("cfb: no such entry")
)

// CompDocError represents an error in compound document handling.
type CompDocError struct {
	Message string
}

func (e *CompDocError) Error() string {
	return e.Message
}

func (e *CompDocError) Unwrap() error {
	return ErrInvalidContainer
}

func compDocErrorf(format string, args ...interface{}) *CompDocError {
	return &CompDocError{Message: fmt.Sprintf(format, args...)}
}

// IndexError reports a sector index that cannot be followed: outside the
// table, revisited by the same chain, or pointing at a reserved marker.
// It always indicates an untrustworthy file.
type IndexError struct {
	Table  string // "FAT", "miniFAT", "DIFAT" or "directory"
	Sector uint32
	Limit  int
	Reason string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("cfb: %s index error at %d (limit %d): %s", e.Table, e.Sector, e.Limit, e.Reason)
}

func (e *IndexError) Unwrap() error {
	return ErrInvalidContainer
}

// StreamError carries an I/O failure that happened while a sector of a
// given stream was being written or read.
type StreamError struct {
	Stream string
	Sector uint32
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("cfb: stream %q, sector %d: %v", e.Stream, e.Sector, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
