package cfb

import (
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkRedBlack returns the black height of the subtree at id.
func checkRedBlack(t *testing.T, recs []*dirRecord, id uint32, parentRed bool) int {
	if id == NoStream {
		return 1
	}
	r := recs[id]
	red := r.color == colorRed
	if red && parentRed {
		t.Fatalf("red node %q has a red parent", r.e.Name)
	}
	lh := checkRedBlack(t, recs, r.left, red)
	rh := checkRedBlack(t, recs, r.right, red)
	if lh != rh {
		t.Fatalf("black height differs below %q: %d vs %d", r.e.Name, lh, rh)
	}
	if red {
		return lh
	}
	return lh + 1
}

func inorder(recs []*dirRecord, id uint32, out *[]string) {
	if id == NoStream {
		return
	}
	inorder(recs, recs[id].left, out)
	*out = append(*out, recs[id].e.Name)
	inorder(recs, recs[id].right, out)
}

func TestSiblingTreeIsRedBlack(t *testing.T) {
	for n := 1; n <= 70; n++ {
		d := newDirectory()
		for i := 0; i < n; i++ {
			d.root.addChild(&Entry{Name: fmt.Sprintf("s%d", i), Type: TypeStream})
		}
		recs := d.flatten()
		require.Len(t, recs, n+1)
		top := recs[0].child
		assert.Equal(t, uint8(colorBlack), recs[top].color, "n=%d", n)
		checkRedBlack(t, recs, top, false)

		var names []string
		inorder(recs, top, &names)
		assert.True(t, sort.SliceIsSorted(names, func(i, j int) bool {
			return compareNames(names[i], names[j]) < 0
		}), "n=%d: %v", n, names)
	}
}

func TestCompareNames(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"B", "AA", -1},
		{"abc", "ABC", 0},
		{"Workbook", "WORKBOOK", 0},
		{"a", "b", -1},
		{"Zeta", "alpha", -1},
	}
	for _, tt := range tests {
		got := compareNames(tt.a, tt.b)
		switch {
		case tt.want < 0 && got >= 0, tt.want == 0 && got != 0, tt.want > 0 && got <= 0:
			t.Errorf("compareNames(%q, %q) = %d, want sign %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDirectoryRoundTripKeepsMetadata(t *testing.T) {
	f := New(nil)
	require.NoError(t, f.SetStream("Storage/s", []byte("x")))
	dir, err := f.Directory()
	require.NoError(t, err)
	st, err := dir.Lookup("Storage")
	require.NoError(t, err)
	id := uuid.MustParse("00020820-0000-0000-c000-000000000046")
	st.CLSID = id
	st.Modified = 132223104000000000 // 2020-01-01
	st.StateBits = 7

	b, err := f.Bytes()
	require.NoError(t, err)
	g, err := Parse(b, nil)
	require.NoError(t, err)
	gdir, err := g.Directory()
	require.NoError(t, err)
	got, err := gdir.Lookup("storage")
	require.NoError(t, err)
	assert.Equal(t, id, got.CLSID)
	assert.Equal(t, uint32(7), got.StateBits)
	assert.Equal(t, 2020, got.ModTime().Year())
	assert.Equal(t, "Storage/s", got.Children()[0].Path())
	assert.Equal(t, TypeStorage, got.Type)
}

func TestDirectoryRejectsBadLinks(t *testing.T) {
	b := buildSample(t, nil, map[string][]byte{"A": []byte("a"), "B": []byte("b")})
	f, err := Parse(b, nil)
	require.NoError(t, err)
	dirOffset := (int(f.Header().DirStart) + 1) * BigSectorSize
	raw := append([]byte(nil), b[dirOffset:dirOffset+4*dirEntryLen]...)

	// point the root's child link outside the array
	bad := append([]byte(nil), raw...)
	bad[76], bad[77], bad[78], bad[79] = 40, 0, 0, 0
	_, err = parseDirectory(bad, 3)
	var ie *IndexError
	assert.ErrorAs(t, err, &ie)

	// make a sibling link point back at the root's child
	loop := append([]byte(nil), raw...)
	child := loop[76]
	for id := 1; id <= 2; id++ {
		if id != int(child) {
			continue
		}
		loop[id*dirEntryLen+68] = child
	}
	_, err = parseDirectory(loop, 3)
	assert.ErrorAs(t, err, &ie)
}

func TestSectorsView(t *testing.T) {
	buf := make([]byte, 512+600)
	for i := range buf {
		buf[i] = byte(i)
	}
	s := newSectors(buf, 512, BigSector, 512)
	require.Equal(t, 2, s.Len())
	last, err := s.Sector(1)
	require.NoError(t, err)
	b := last.Bytes(0, 512)
	assert.Len(t, b, 512)
	assert.Equal(t, byte(0), b[100], "short sector pads with zeros")
	b[0] = 0xAA
	assert.Equal(t, b[1:], last.Bytes(0, 512)[1:])
	assert.NotEqual(t, byte(0xAA), last.Bytes(0, 1)[0], "reads return copies")

	_, err = s.Sector(2)
	var ie *IndexError
	assert.ErrorAs(t, err, &ie)
}

func TestSetRawBytes(t *testing.T) {
	root := &Entry{Name: RootName, Type: TypeRoot}
	src := make([]byte, 1000)
	root.SetRawBytes(src, 512)
	assert.Equal(t, 16, root.mini.Len())
	assert.Equal(t, 2, root.miniBig.Len())
	assert.Equal(t, int64(1000), root.Size)
	src[0] = 9
	sec, err := root.mini.Sector(0)
	require.NoError(t, err)
	assert.Equal(t, byte(0), sec.Bytes(0, 1)[0])
}
