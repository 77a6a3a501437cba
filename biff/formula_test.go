package biff

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(v float64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{0x1F}, math.Float64bits(v))
}

func TestFormulaText(t *testing.T) {
	cat := func(parts ...[]byte) []byte {
		var out []byte
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}
	tests := []struct {
		name string
		rgce []byte
		want string
	}{
		{"ref plus int", cat(relA1, []byte{0x1E, 1, 0, 0x03}), "A1+1"},
		{"absolute ref", []byte{0x24, 0x04, 0x00, 0x02, 0x00}, "$C$5"},
		{"mixed ref", []byte{0x24, 0x04, 0x00, 0x02, 0x40}, "C$5"},
		{"sum area", []byte{0x25, 0, 0, 1, 0, 0, 0xC0, 1, 0xC0, 0x22, 1, 4, 0}, "SUM(A1:B2)"},
		{"attr sum", []byte{0x25, 0, 0, 1, 0, 0, 0xC0, 1, 0xC0, 0x19, 0x10, 0, 0}, "SUM(A1:B2)"},
		{"fixed function", cat(relA1, []byte{0x21, 24, 0}), "ABS(A1)"},
		{"string", []byte{0x17, 2, 0, 'h', '"'}, `"h"""`},
		{"bool and paren", []byte{0x1D, 1, 0x15}, "(TRUE)"},
		{"number", cat(num(2.5), []byte{0x13}), "-2.5"},
		{"error literal", []byte{0x1C, 0x2A}, "#N/A"},
		{"shared anchor", ExpTokens(2, 1), "{shared B3}"},
		{"missing arg", []byte{0x16, 0x1E, 1, 0, 0x22, 2, 1, 0}, "IF(,1)"},
		{"percent", []byte{0x1E, 5, 0, 0x14}, "5%"},
		{"comparison", cat(relA1, []byte{0x1E, 0, 0, 0x0E}), "A1<>0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FormulaText(tc.rgce, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormulaTextRelativeOffsets(t *testing.T) {
	// tRefN one row up from the formula cell
	rgce := []byte{0x2C, 0xFF, 0xFF, 0x00, 0xC0}
	got, err := FormulaText(rgce, &TextOptions{Row: 9, Col: 2})
	require.NoError(t, err)
	assert.Equal(t, "C9", got)
}

func TestFormulaTextNames(t *testing.T) {
	names := func(i int) string { return []string{"", "Total", "Rate"}[i] }
	got, err := FormulaText([]byte{0x23, 2, 0, 0, 0, 0x23, 1, 0, 0, 0, 0x05}, &TextOptions{Name: names})
	require.NoError(t, err)
	assert.Equal(t, "Rate*Total", got)

	got, err = FormulaText([]byte{0x23, 3, 0, 0, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, "NAME3", got)
}

func TestFormulaTextErrors(t *testing.T) {
	_, err := FormulaText([]byte{0x03}, nil)
	var fe *FormulaError
	assert.ErrorAs(t, err, &fe, "operator without operands")

	_, err = FormulaText([]byte{0x1E, 1, 0, 0x1E, 2, 0}, nil)
	assert.ErrorAs(t, err, &fe, "two values left")

	_, err = FormulaText([]byte{0x18, 0, 0}, nil)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestColname(t *testing.T) {
	tests := map[int]string{0: "A", 25: "Z", 26: "AA", 51: "AZ", 255: "IV", 16383: "XFD"}
	for col, want := range tests {
		assert.Equal(t, want, Colname(col), "column %d", col)
	}
}

func TestQuoteSheetName(t *testing.T) {
	assert.Equal(t, "Sheet1", QuoteSheetName("Sheet1"))
	assert.Equal(t, "'My Sheet'", QuoteSheetName("My Sheet"))
	assert.Equal(t, "'1st'", QuoteSheetName("1st"))
	assert.Equal(t, "'it''s'", QuoteSheetName("it's"))
}
