package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func group(first, last, col int, tokens ...byte) *SharedGroup {
	return &SharedGroup{
		Range:  Area{FirstRow: first, LastRow: last, FirstCol: col, LastCol: col},
		Tokens: tokens,
	}
}

func TestShiftSharedUniform(t *testing.T) {
	// each cell refers to the cell above it
	g := group(2, 4, 1, 0x2C, 0xFF, 0xFF, 0x00, 0xC0)
	require.NoError(t, ShiftShared(g, Shift{Axis: Rows, Pivot: 0, Delta: 1}))
	assert.Equal(t, 3, g.Range.FirstRow)
	assert.Equal(t, 5, g.Range.LastRow)
	assert.Equal(t, []byte{0x2C, 0xFF, 0xFF, 0x00, 0xC0}, g.Tokens)

	require.NoError(t, ShiftShared(g, Shift{Axis: Rows, Pivot: 50, Delta: 1}))
	assert.Equal(t, 3, g.Range.FirstRow)
}

func TestShiftSharedAbsoluteRow(t *testing.T) {
	// $4 in the row, relative column
	g := group(5, 7, 1, 0x2C, 0x03, 0x00, 0x00, 0x40)
	require.NoError(t, ShiftShared(g, Shift{Axis: Rows, Pivot: 2, Delta: 1}))
	assert.Equal(t, Area{FirstRow: 6, LastRow: 8, FirstCol: 1, LastCol: 1}, g.Range)
	assert.Equal(t, []byte{0x2C, 0x04, 0x00, 0x00, 0x40}, g.Tokens)
}

func TestShiftSharedTargetsMove(t *testing.T) {
	// each cell refers five rows down
	g := group(0, 2, 0, 0x2C, 0x05, 0x00, 0x00, 0xC0)
	require.NoError(t, ShiftShared(g, Shift{Axis: Rows, Pivot: 3, Delta: 1}))
	assert.Equal(t, 0, g.Range.FirstRow)
	assert.Equal(t, []byte{0x2C, 0x06, 0x00, 0x00, 0xC0}, g.Tokens)
}

func TestShiftSharedNeedsUnshare(t *testing.T) {
	tests := []struct {
		name  string
		group *SharedGroup
		shift Shift
	}{
		{"insert inside group", group(2, 4, 1, 0x2C, 0xFF, 0xFF, 0x00, 0xC0), Shift{Axis: Rows, Pivot: 3, Delta: 1}},
		{"targets straddle pivot", group(0, 2, 0, 0x2C, 0x05, 0x00, 0x00, 0xC0), Shift{Axis: Rows, Pivot: 6, Delta: 1}},
		{"delete inside group", group(2, 4, 1, 0x2C, 0x00, 0x00, 0x01, 0xC0), Shift{Axis: Rows, Pivot: 3, Delta: -1}},
		{"delete referenced cells", group(5, 6, 0, 0x2C, 0xFD, 0xFF, 0x00, 0xC0), Shift{Axis: Rows, Pivot: 2, Delta: -2}},
		{"3-D token", group(0, 1, 0, 0x3A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00), Shift{Sheet: 3, Axis: Rows, Pivot: 0, Delta: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := append([]byte{}, tc.group.Tokens...)
			rng := tc.group.Range
			assert.ErrorIs(t, ShiftShared(tc.group, tc.shift), ErrUnshare)
			assert.Equal(t, before, tc.group.Tokens, "group is left untouched")
			assert.Equal(t, rng, tc.group.Range)
		})
	}
}

func TestShiftSharedOtherSheet(t *testing.T) {
	g := group(2, 4, 1, 0x2C, 0xFF, 0xFF, 0x00, 0xC0)
	g.Sheet = 1
	require.NoError(t, ShiftShared(g, Shift{Sheet: 0, Axis: Rows, Pivot: 0, Delta: 1}))
	assert.Equal(t, 2, g.Range.FirstRow)
}

func TestShiftSharedColumns(t *testing.T) {
	// area one column left of the cell, rows 0..1
	g := group(0, 0, 4, 0x2D, 0x00, 0x00, 0x01, 0x00, 0xFF, 0x40, 0xFF, 0x40)
	g.Range.LastCol = 5
	require.NoError(t, ShiftShared(g, Shift{Axis: Columns, Pivot: 0, Delta: 2}))
	assert.Equal(t, 6, g.Range.FirstCol)
	assert.Equal(t, 7, g.Range.LastCol)
	assert.Equal(t, []byte{0x2D, 0x00, 0x00, 0x01, 0x00, 0xFF, 0x40, 0xFF, 0x40}, g.Tokens)
}

func TestShiftSharedReversedCorners(t *testing.T) {
	// B20:B30 refer to A20:A$11, the relative corner stored first
	tokens := []byte{0x2D, 0x00, 0x00, 0x0A, 0x00, 0xFF, 0xC0, 0xFF, 0x40}
	g := group(19, 29, 1, tokens...)
	require.NoError(t, ShiftShared(g, Shift{Axis: Rows, Pivot: 15, Delta: 1}))
	assert.Equal(t, Area{FirstRow: 20, LastRow: 30, FirstCol: 1, LastCol: 1}, g.Range)
	assert.Equal(t, tokens, g.Tokens, "A$11 stays above the pivot")

	// same area stored the usual way round: A$11:A20
	g = group(19, 29, 1, 0x2D, 0x0A, 0x00, 0x00, 0x00, 0xFF, 0x40, 0xFF, 0xC0)
	require.NoError(t, ShiftShared(g, Shift{Axis: Rows, Pivot: 15, Delta: 1}))
	assert.Equal(t, []byte{0x2D, 0x0A, 0x00, 0x00, 0x00, 0xFF, 0x40, 0xFF, 0xC0}, g.Tokens)
}
