package xls

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamitzky/xlbiff-go/biff"
	"github.com/yamitzky/xlbiff-go/refs"
)

func TestCopySheet(t *testing.T) {
	b := newTestBook(t, nil)
	src := b.Sheets()[0]
	require.NoError(t, src.SetString(0, 0, "title"))
	require.NoError(t, src.SetNumber(4, 0, 2))
	require.NoError(t, src.SetFormulaTokens(0, 1, relRef(4, 0)))
	require.NoError(t, src.MergeCells(refs.Area{FirstRow: 1, LastRow: 2, FirstCol: 0, LastCol: 0}))

	cp, err := b.CopySheet(0, "Copy")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Copy"}, b.SheetNames())
	assert.Equal(t, 1, cp.Index())
	assert.Equal(t, "title", cp.CellValue(0, 0))
	assert.Equal(t, src.Merges(), cp.Merges())

	require.NoError(t, b.InsertRows(1, 0, 3))
	assert.Equal(t, "A8", formulaText(t, cp, 3, 1))
	assert.Equal(t, "A5", formulaText(t, src, 0, 1), "the source sheet is untouched")
	assert.Equal(t, 2.0, src.CellValue(4, 0))
	require.NoError(t, cp.SetNumber(0, 0, 1))
	assert.Equal(t, "title", src.CellValue(0, 0))

	_, err = b.CopySheet(0, "sheet1")
	assert.Error(t, err)
	_, err = b.CopySheet(0, "a/b")
	assert.Error(t, err)
	_, err = b.CopySheet(0, "")
	assert.Error(t, err)
	_, err = b.CopySheet(7, "Other")
	assert.ErrorIs(t, err, ErrSheetNotFound)

	got := reopen(t, b)
	assert.Equal(t, []string{"Sheet1", "Copy"}, got.SheetNames())
	assert.Equal(t, "A8", formulaText(t, got.Sheets()[1], 3, 1))
}

func TestCopySheetClearsSelection(t *testing.T) {
	b := newTestBook(t, nil)
	_, err := b.CopySheet(0, "Copy")
	require.NoError(t, err)
	recs, err := b.sheets[1].records()
	require.NoError(t, err)
	for _, rec := range recs {
		if rec.Opcode == biff.XL_WINDOW2 {
			assert.Zero(t, binary.LittleEndian.Uint16(rec.Data)&(window2Selected|window2Active))
		}
	}
}

func TestImportSheet(t *testing.T) {
	src := newTestBook(t, nil)
	s := src.Sheets()[0]
	require.NoError(t, s.SetString(0, 0, "from source"))
	require.NoError(t, s.SetNumber(1, 0, 4))
	ixti := src.ensureXTI(0)
	own := biff.RefTokens3D(ixti, biff.CellAddr{Row: 1}, biff.CellAddr{Row: 1}, false)
	require.NoError(t, s.SetFormulaTokens(2, 0, own))

	dst := newTestBook(t, nil)
	require.NoError(t, dst.Sheets()[0].SetString(0, 0, "already here"))

	imp, err := dst.ImportSheet(src, 0, "Imported")
	require.NoError(t, err)
	assert.Equal(t, "from source", imp.CellValue(0, 0))
	assert.Equal(t, 4.0, imp.CellValue(1, 0))
	assert.Equal(t, "Imported!$A$2", formulaText(t, imp, 2, 0))
	assert.Equal(t, 2, dst.SharedStrings().Len())
	assert.Equal(t, "already here", dst.Sheets()[0].CellValue(0, 0))

	require.NoError(t, dst.InsertRows(1, 0, 1))
	assert.Equal(t, "Imported!$A$3", formulaText(t, imp, 3, 0))

	got := reopen(t, dst)
	assert.Equal(t, "from source", got.Sheets()[1].CellValue(1, 0))
	assert.Equal(t, "Imported!$A$3", formulaText(t, got.Sheets()[1], 3, 0))
}

func TestImportSheetBreaksUnknownSheets(t *testing.T) {
	src := newTestBook(t, nil)
	_, err := src.CopySheet(0, "Elsewhere")
	require.NoError(t, err)
	ixti := src.ensureXTI(1)
	require.NoError(t, src.Sheets()[0].SetFormulaTokens(0, 0, biff.RefTokens3D(ixti, biff.CellAddr{}, biff.CellAddr{}, false)))

	dst := newTestBook(t, nil)
	imp, err := dst.ImportSheet(src, 0, "Imported")
	require.NoError(t, err)
	text := formulaText(t, imp, 0, 0)
	assert.Contains(t, text, "#REF!")
}
