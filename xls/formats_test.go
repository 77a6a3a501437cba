package xls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamitzky/xlbiff-go/biff"
)

func TestIsDateFormat(t *testing.T) {
	tests := []struct {
		format string
		want   bool
	}{
		{"yyyy-mm-dd", true},
		{"m/d/yy h:mm", true},
		{"mmm d, yyyy", true},
		{"[h]:mm:ss", true},
		{"General", false},
		{"0.00", false},
		{"#,##0", false},
		{"@", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, IsDateFormat(tc.format), "IsDateFormat(%q)", tc.format)
	}
}

func TestDecodeFormat(t *testing.T) {
	data := append(u16(164), biff.PackUnicode("yyyy-mm-dd", 2)...)
	key, format, err := decodeFormat(data)
	require.NoError(t, err)
	assert.Equal(t, 164, key)
	assert.Equal(t, "yyyy-mm-dd", format)

	_, _, err = decodeFormat([]byte{1})
	assert.Error(t, err)
}

func TestSetTime(t *testing.T) {
	b := newTestBook(t, nil)
	s := b.Sheets()[0]
	nxf := len(b.xfs)
	require.NoError(t, s.SetTime(0, 0, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, s.SetTime(1, 0, time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, s.SetTime(2, 0, time.Date(2020, 1, 1, 18, 0, 0, 0, time.UTC)))
	require.NoError(t, s.SetNumber(3, 0, 5))
	assert.Len(t, b.xfs, nxf+2, "one XF per format")

	got := reopen(t, b).Sheets()[0]
	c := got.Cell(0, 0)
	assert.True(t, c.IsDate())
	assert.Equal(t, 43831.0, c.Value)
	assert.True(t, got.Cell(1, 0).IsDate())
	assert.Equal(t, c.XFIndex, got.Cell(1, 0).XFIndex)

	c = got.Cell(2, 0)
	require.True(t, c.IsDate())
	when, err := c.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 18, 0, 0, 0, time.UTC), when)
	assert.False(t, got.Cell(3, 0).IsDate())
}

func TestIsDateXFCustomFormat(t *testing.T) {
	b := newTestBook(t, nil)
	b.formats[164] = "dd/mm/yyyy"
	b.formats[165] = "0.000"
	b.xfs = append(b.xfs, xfInfo{format: 164}, xfInfo{format: 165})
	n := len(b.xfs)
	assert.True(t, b.IsDateXF(n-2))
	assert.False(t, b.IsDateXF(n-1))
	assert.False(t, b.IsDateXF(DefaultXF))
	assert.False(t, b.IsDateXF(n))
	assert.False(t, b.IsDateXF(-1))
}
