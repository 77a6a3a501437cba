package xls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateValue(t *testing.T) {
	tests := []struct {
		xldate   float64
		datemode int
		want     time.Time
	}{
		{0, 0, time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)},
		{0.5, 0, time.Date(1899, 12, 31, 12, 0, 0, 0, time.UTC)},
		{61, 0, time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)},
		{43831.75, 0, time.Date(2020, 1, 1, 18, 0, 0, 0, time.UTC)},
		{0, 1, time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)},
		{42369, 1, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := DateValue(tc.xldate, tc.datemode)
		require.NoError(t, err, "%v in mode %d", tc.xldate, tc.datemode)
		assert.Equal(t, tc.want, got, "%v in mode %d", tc.xldate, tc.datemode)
	}
}

func TestDateValueErrors(t *testing.T) {
	_, err := DateValue(-1, 0)
	var negative *XLDateNegative
	assert.ErrorAs(t, err, &negative)

	_, err = DateValue(30, 0)
	var ambiguous *XLDateAmbiguous
	assert.ErrorAs(t, err, &ambiguous)

	_, err = DateValue(3000000, 0)
	var large *XLDateTooLarge
	assert.ErrorAs(t, err, &large)

	_, err = DateValue(1, 2)
	var mode *XLDateBadDatemode
	assert.ErrorAs(t, err, &mode)
}

func TestDateNumber(t *testing.T) {
	v, err := DateNumber(time.Date(2020, 1, 1, 18, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	assert.Equal(t, 43831.75, v)

	v, err = DateNumber(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 1)
	require.NoError(t, err)
	assert.Equal(t, 42369.0, v)

	_, err = DateNumber(time.Date(1900, 1, 15, 0, 0, 0, 0, time.UTC), 0)
	var ambiguous *XLDateAmbiguous
	assert.ErrorAs(t, err, &ambiguous)
}

func TestCellTime(t *testing.T) {
	b := newTestBook(t, nil)
	s := b.Sheets()[0]
	require.NoError(t, s.SetNumber(0, 0, 43831.75))
	require.NoError(t, s.SetString(0, 1, "not a date"))

	got, err := s.Cell(0, 0).Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 18, 0, 0, 0, time.UTC), got)

	_, err = s.Cell(0, 1).Time()
	assert.Error(t, err)
}
