package biff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSubstreams(t *testing.T) {
	recs := []Record{
		BOFRecord(XL_WORKBOOK_GLOBALS),
		{Opcode: XL_EOF},
		BOFRecord(XL_WORKSHEET),
		BOFRecord(XL_CHART),
		{Opcode: XL_EOF},
		{Opcode: XL_EOF},
	}
	stream := EncodeAll(recs)
	padded := append(append([]byte{}, stream...), 0, 0, 0, 0)

	subs, err := SplitSubstreams(padded)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, uint16(XL_WORKBOOK_GLOBALS), subs[0].Type)
	assert.Equal(t, 0, subs[0].Offset)
	assert.Len(t, subs[0].Records, 2)
	assert.Equal(t, uint16(XL_WORKSHEET), subs[1].Type)
	assert.Equal(t, 4+16+4, subs[1].Offset)
	assert.Len(t, subs[1].Records, 4, "embedded chart stays with its sheet")

	assert.Equal(t, stream, JoinSubstreams(subs))
}

func TestSplitSubstreamsErrors(t *testing.T) {
	_, err := SplitSubstreams(EncodeAll([]Record{{Opcode: XL_EOF}}))
	var re *RecordError
	assert.ErrorAs(t, err, &re)

	_, err = SplitSubstreams(EncodeAll([]Record{BOFRecord(XL_WORKSHEET)}))
	assert.Error(t, err)

	_, err = SplitSubstreams(nil)
	assert.Error(t, err)
}
