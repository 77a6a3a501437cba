package biff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relA1 is a tRef to A1 with relative row and column.
var relA1 = []byte{0x24, 0x00, 0x00, 0x00, 0xC0}

func TestTokenSize(t *testing.T) {
	tests := []struct {
		name string
		rgce []byte
		size int
	}{
		{"ref", relA1, 5},
		{"int", []byte{0x1E, 1, 0}, 3},
		{"add", []byte{0x03}, 1},
		{"area value class", []byte{0x45, 0, 0, 0, 0, 0, 0, 0, 0}, 9},
		{"ref3d", []byte{0x3A, 0, 0, 0, 0, 0, 0}, 7},
		{"area3d", []byte{0x3B, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 11},
		{"str compressed", []byte{0x17, 3, 0, 'a', 'b', 'c'}, 6},
		{"str wide", []byte{0x17, 2, 1, 'a', 0, 'b', 0}, 7},
		{"attr sum", []byte{0x19, 0x10, 0, 0}, 4},
		{"attr choose", []byte{0x19, 0x04, 2, 0, 0, 0, 0, 0, 0, 0}, 10},
		{"exp", []byte{0x01, 0, 0, 0, 0}, 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			size, err := TokenSize(tc.rgce, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.size, size)
		})
	}
}

func TestTokenSizeErrors(t *testing.T) {
	_, err := TokenSize([]byte{0x18, 0, 0}, 0)
	assert.ErrorIs(t, err, ErrUnknownToken)
	_, err = TokenSize([]byte{0x80}, 0)
	assert.ErrorIs(t, err, ErrUnknownToken)
	_, err = TokenSize([]byte{0x24, 0, 0}, 0)
	assert.ErrorIs(t, err, ErrUnknownToken, "token runs past the end")
}

func TestWalkTokens(t *testing.T) {
	rgce := append(append([]byte{}, relA1...), 0x1E, 1, 0, 0x03)
	var positions []int
	var ops []string
	require.NoError(t, WalkTokens(rgce, func(pos int, op byte) error {
		positions = append(positions, pos)
		ops = append(ops, TokenName(op))
		return nil
	}))
	assert.Equal(t, []int{0, 5, 8}, positions)
	assert.Equal(t, []string{"Ref", "Int", "Add"}, ops)
}

func TestCellAddrFields(t *testing.T) {
	a := AdjustCellAddrBiff8(7, 0xC003, false)
	assert.Equal(t, CellAddr{Row: 7, Col: 3, RowRel: true, ColRel: true}, a)

	rel := AdjustCellAddrBiff8(0xFFFF, 0xC0FF, true)
	assert.Equal(t, CellAddr{Row: -1, Col: -1, RowRel: true, ColRel: true}, rel)

	abs := AdjustCellAddrBiff8(0xFFFF, 0x00FF, true)
	assert.Equal(t, 65535, abs.Row, "absolute parts are never offsets")
	assert.Equal(t, 255, abs.Col)
}

func TestRefTokensAndWrite(t *testing.T) {
	rgce := []byte{
		0x24, 0x02, 0x00, 0x01, 0xC0, // B3
		0x3B, 0x01, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x02, 0x00, // Sheet!$A$1:$C$5
		0x1C, 0x17, // #REF! literal
		0x03,
	}
	refs, err := RefTokens(rgce)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.False(t, refs[0].Area)
	assert.Equal(t, CellAddr{Row: 2, Col: 1, RowRel: true, ColRel: true}, refs[0].First)
	assert.True(t, refs[1].Area)
	assert.True(t, refs[1].Sheet3D)
	assert.Equal(t, 1, refs[1].Ixti)
	assert.Equal(t, CellAddr{Row: 4, Col: 2}, refs[1].Last)

	refs[1].Last.Row = 9
	refs[1].Write(rgce)
	again, err := RefTokens(rgce)
	require.NoError(t, err)
	assert.Equal(t, 9, again[1].Last.Row)
	assert.Equal(t, 1, again[1].Ixti)
}

func TestBreak(t *testing.T) {
	rgce := []byte{
		0x3A, 0x01, 0x00, 0x05, 0x00, 0x02, 0xC0, // tRef3d
		0x45, 0x01, 0x00, 0x02, 0x00, 0x00, 0xC0, 0x01, 0xC0, // tArea, value class
		0x2C, 0x01, 0x00, 0x00, 0xC0, // tRefN
	}
	refs, err := RefTokens(rgce)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	for _, r := range refs {
		r.Break(rgce)
	}
	assert.Equal(t, []byte{0x3C, 0x01, 0x00, 0, 0, 0, 0}, rgce[0:7])
	assert.Equal(t, byte(0x4B), rgce[7])
	assert.Equal(t, make([]byte, 8), rgce[8:16])
	assert.Equal(t, byte(0x2A), rgce[16])

	left, err := RefTokens(rgce)
	require.NoError(t, err)
	assert.Empty(t, left, "error tokens are not live references")

	text, err := FormulaText(rgce[:7], &TextOptions{SheetName: func(int) string { return "Data" }})
	require.NoError(t, err)
	assert.Equal(t, "Data!#REF!", text)
}

func TestAbsolutize(t *testing.T) {
	rgce := []byte{
		0x2C, 0x01, 0x00, 0xFF, 0xC0, // one row down, one column left
		0x4D, 0xFF, 0xFF, 0x03, 0x00, 0x02, 0x80, 0x05, 0x00, // tAreaN value class
	}
	out, err := Absolutize(rgce, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, byte(0x2C), rgce[0], "input is left untouched")

	refs, err := RefTokens(out)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, byte(0x24), refs[0].Op)
	assert.Equal(t, CellAddr{Row: 5, Col: 1, RowRel: true, ColRel: true}, refs[0].First)
	assert.Equal(t, byte(0x45), refs[1].Op)
	assert.Equal(t, CellAddr{Row: 3, Col: 2, RowRel: true, ColRel: false}, refs[1].First)
	assert.Equal(t, CellAddr{Row: 3, Col: 5, RowRel: false, ColRel: false}, refs[1].Last)
}

func TestExpTokens(t *testing.T) {
	rgce := ExpTokens(12, 3)
	row, col, ok := ExpAnchor(rgce)
	require.True(t, ok)
	assert.Equal(t, 12, row)
	assert.Equal(t, 3, col)

	_, _, ok = ExpAnchor(relA1)
	assert.False(t, ok)
}

func TestRefTokens3D(t *testing.T) {
	ref := RefTokens3D(2, CellAddr{Row: 1, Col: 1}, CellAddr{}, false)
	assert.Len(t, ref, 7)
	area := RefTokens3D(2, CellAddr{Row: 0, Col: 0}, CellAddr{Row: 9, Col: 3}, true)
	assert.Len(t, area, 11)

	text, err := FormulaText(area, &TextOptions{SheetName: func(int) string { return "Other" }})
	require.NoError(t, err)
	assert.Equal(t, "Other!$A$1:$D$10", text)
}
