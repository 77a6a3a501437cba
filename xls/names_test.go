package xls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamitzky/xlbiff-go/refs"
)

func TestDefineName(t *testing.T) {
	b := newTestBook(t, nil)
	n, err := b.DefineName("Totals", "$B$2:$C$4", -1)
	require.NoError(t, err)
	assert.Equal(t, -1, n.Scope)
	assert.Equal(t, "Totals = Sheet1!$B$2:$C$4", n.String())

	local, err := b.DefineName("totals", "D1", 0)
	require.NoError(t, err)
	text, err := local.Formula()
	require.NoError(t, err)
	assert.Equal(t, "Sheet1!$D$1", text)

	found, ok := b.NameByName("TOTALS", -1)
	require.True(t, ok)
	assert.Same(t, n, found)
	found, ok = b.NameByName("totals", 0)
	require.True(t, ok)
	assert.Same(t, local, found)

	got := reopen(t, b)
	require.Len(t, got.Names(), 2)
	gn, ok := got.NameByName("Totals", -1)
	require.True(t, ok)
	sheet, area, ok := gn.Area()
	require.True(t, ok)
	assert.Equal(t, 0, sheet)
	assert.Equal(t, refs.Area{FirstRow: 1, LastRow: 3, FirstCol: 1, LastCol: 2}, area)

	require.NoError(t, got.InsertRows(0, 0, 2))
	text, err = gn.Formula()
	require.NoError(t, err)
	assert.Equal(t, "Sheet1!$B$4:$C$6", text)
}

func TestDefineNameErrors(t *testing.T) {
	b := newTestBook(t, nil)
	_, err := b.DefineName("Target", "A1", -1)
	require.NoError(t, err)

	tests := []struct {
		name, text string
		scope      int
	}{
		{"", "A1", -1},
		{"A1", "A1", -1},
		{"1st", "A1", -1},
		{"has space", "A1", -1},
		{"target", "B2", -1},
		{"Other", "A1", 3},
		{"Other", "Missing!A1", -1},
		{"Other", "A1 B2", -1},
	}
	for _, tc := range tests {
		_, err := b.DefineName(tc.name, tc.text, tc.scope)
		assert.Error(t, err, "%q = %q in scope %d", tc.name, tc.text, tc.scope)
	}
	assert.Len(t, b.Names(), 1)
}
