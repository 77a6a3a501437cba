package xls

import (
	"fmt"
	"math"
	"time"
)

var (
	epoch1904       = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch1900       = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	epoch1900Minus1 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

const (
	xldaysTooLarge1900 = 2958466
	xldaysTooLarge1904 = 2958466 - 1462
)

// XLDateError is the base type for all datetime-related errors.
type XLDateError struct {
	Message string
}

func (e *XLDateError) Error() string {
	return e.Message
}

// XLDateNegative indicates that xldate < 0.00
type XLDateNegative struct {
	XLDateError
}

// XLDateAmbiguous indicates the 1900 leap-year problem (datemode == 0 and 1.0 <= xldate < 61.0)
type XLDateAmbiguous struct {
	XLDateError
}

// XLDateTooLarge indicates Gregorian year 10000 or later
type XLDateTooLarge struct {
	XLDateError
}

// XLDateBadDatemode indicates that datemode arg is neither 0 nor 1
type XLDateBadDatemode struct {
	XLDateError
}

// DateValue converts an Excel date number into a time in UTC.
//
// datemode: 0: 1900-based, 1: 1904-based.
//
// Numbers below 1.0 are times of day on the epoch date.
func DateValue(xldate float64, datemode int) (time.Time, error) {
	if datemode != 0 && datemode != 1 {
		return time.Time{}, &XLDateBadDatemode{XLDateError{Message: fmt.Sprintf("Invalid datemode: %d", datemode)}}
	}
	if xldate < 0 {
		return time.Time{}, &XLDateNegative{XLDateError{Message: fmt.Sprintf("xldate < 0.00: %f", xldate)}}
	}
	days := int(xldate)
	limit := xldaysTooLarge1900
	if datemode == 1 {
		limit = xldaysTooLarge1904
	}
	if days >= limit {
		return time.Time{}, &XLDateTooLarge{XLDateError{Message: fmt.Sprintf("xldate too large: %f", xldate)}}
	}
	epoch := epoch1904
	if datemode == 0 {
		switch {
		case days == 0:
			epoch = epoch1900
		case days < 61:
			return time.Time{}, &XLDateAmbiguous{XLDateError{Message: fmt.Sprintf("1900 leap-year problem: %f", xldate)}}
		default:
			// Excel counts a 29 February 1900 that never was
			epoch = epoch1900Minus1
		}
	}
	// Excel keeps millisecond resolution
	ms := int64(math.Round((xldate - float64(days)) * 86400000.0))
	return epoch.AddDate(0, 0, days).Add(time.Duration(ms) * time.Millisecond), nil
}

// DateNumber converts t into an Excel date number.
func DateNumber(t time.Time, datemode int) (float64, error) {
	if datemode != 0 && datemode != 1 {
		return 0, &XLDateBadDatemode{XLDateError{Message: fmt.Sprintf("Invalid datemode: %d", datemode)}}
	}
	epoch := epoch1904
	if datemode == 0 {
		epoch = epoch1900Minus1
	}
	t = t.UTC()
	v := float64(t.Sub(epoch).Milliseconds()) / 86400000.0
	if v < 0 {
		return 0, &XLDateNegative{XLDateError{Message: fmt.Sprintf("%s is before the epoch", t)}}
	}
	if datemode == 0 && v < 61 {
		return 0, &XLDateAmbiguous{XLDateError{Message: fmt.Sprintf("Before 1900-03-01: %s", t.Format(time.DateOnly))}}
	}
	return v, nil
}

// Time interprets a number cell, or the numeric result of a formula, as a
// date using the workbook's date system.
func (c *Cell) Time() (time.Time, error) {
	v, ok := c.Value.(float64)
	if !ok {
		return time.Time{}, NewXLSError("cell %s holds no number", c.Name())
	}
	return DateValue(v, c.Sheet.book.Datemode)
}
