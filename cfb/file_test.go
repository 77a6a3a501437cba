package cfb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richardlehane/mscfb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%251)
	}
	return b
}

func buildSample(t *testing.T, opts *Options, streams map[string][]byte) []byte {
	t.Helper()
	f := New(opts)
	for path, data := range streams {
		require.NoError(t, f.SetStream(path, data))
	}
	out, err := f.Bytes()
	require.NoError(t, err)
	return out
}

// readWithMscfb lists stream contents through an independent reader.
func readWithMscfb(t *testing.T, b []byte) map[string][]byte {
	t.Helper()
	r, err := mscfb.New(bytes.NewReader(b))
	require.NoError(t, err)
	got := make(map[string][]byte)
	for entry, err := r.Next(); err == nil; entry, err = r.Next() {
		if entry.FileInfo().IsDir() {
			continue
		}
		data, err := io.ReadAll(entry)
		require.NoError(t, err)
		got[strings.Join(append(append([]string{}, entry.Path...), entry.Name), "/")] = data
	}
	return got
}

func TestRoundTrip(t *testing.T) {
	streams := map[string][]byte{
		"Workbook":               pattern(10000, 1),
		"small":                  pattern(100, 2),
		"Storage/inner":          pattern(5000, 3),
		"Storage/Deeper/tiny":    pattern(1, 4),
		"\x05SummaryInformation": pattern(300, 5),
		"empty":                  {},
	}
	for _, size := range []int{BigSectorSize, LargeSectorSize} {
		opts := &Options{SectorSize: size}
		b := buildSample(t, opts, streams)
		assert.Equal(t, 0, (len(b)-size)%size, "file is header plus whole sectors")

		f, err := Parse(b, opts)
		require.NoError(t, err)
		assert.Equal(t, StateReady, f.State())
		for path, want := range streams {
			got, err := f.Stream(path)
			require.NoError(t, err, path)
			assert.Equal(t, want, got, path)
		}

		again, err := f.Bytes()
		require.NoError(t, err)
		assert.Equal(t, b, again, "rewriting an unmodified container is stable")

		ext := readWithMscfb(t, b)
		for path, want := range streams {
			if len(want) == 0 || path[0] < 0x20 {
				// mscfb strips the control character prefix of property set names
				continue
			}
			assert.Equal(t, want, ext[path], "mscfb %s", path)
		}
	}
}

func TestStreamSectorCount(t *testing.T) {
	b := buildSample(t, nil, map[string][]byte{"Workbook": pattern(10000, 0)})
	f, err := Parse(b, nil)
	require.NoError(t, err)
	e, err := f.dir.Lookup("Workbook")
	require.NoError(t, err)
	chain, err := f.fat.Chain(e.Start)
	require.NoError(t, err)
	assert.Len(t, chain, 20)
}

func TestMiniCutoff(t *testing.T) {
	b := buildSample(t, nil, map[string][]byte{
		"below": pattern(MiniStreamCutoff-1, 0),
		"at":    pattern(MiniStreamCutoff, 0),
	})
	f, err := Parse(b, nil)
	require.NoError(t, err)

	below, err := f.dir.Lookup("below")
	require.NoError(t, err)
	chain, err := f.minifat.Chain(below.Start)
	require.NoError(t, err)
	assert.Len(t, chain, 64)

	at, err := f.dir.Lookup("at")
	require.NoError(t, err)
	chain, err = f.fat.Chain(at.Start)
	require.NoError(t, err)
	assert.Len(t, chain, 8)
}

func TestChainTermination(t *testing.T) {
	b := buildSample(t, nil, map[string][]byte{"Workbook": pattern(5000, 0)})
	f, err := Parse(b, nil)
	require.NoError(t, err)
	e, err := f.dir.Lookup("Workbook")
	require.NoError(t, err)
	chain, err := f.fat.Chain(e.Start)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(chain), f.big.Len())
	last := chain[len(chain)-1]
	fatOffset := (int(f.Header().DIFAT[0]) + 1) * BigSectorSize

	tests := []struct {
		name string
		next uint32
	}{
		{"cycle", chain[0]},
		{"out of range", 5000},
		{"free sector", FreeSect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := append([]byte(nil), b...)
			binary.LittleEndian.PutUint32(bad[fatOffset+4*int(last):], tt.next)
			_, err := Parse(bad, nil)
			require.Error(t, err)
			var ie *IndexError
			assert.True(t, errors.As(err, &ie), "got %v", err)
			assert.ErrorIs(t, err, ErrInvalidContainer)
		})
	}
}

func TestCrossLinkedSectors(t *testing.T) {
	b := buildSample(t, nil, map[string][]byte{"A": pattern(5000, 0), "B": pattern(5000, 1)})
	f, err := Parse(b, nil)
	require.NoError(t, err)
	a, err := f.dir.Lookup("A")
	require.NoError(t, err)

	bad := append([]byte(nil), b...)
	dirOffset := (int(f.Header().DirStart) + 1) * BigSectorSize
	// entry 2 is "B": root first, then children in directory order
	binary.LittleEndian.PutUint32(bad[dirOffset+2*dirEntryLen+116:], a.Start)

	_, err = Parse(bad, nil)
	var cde *CompDocError
	require.True(t, errors.As(err, &cde), "got %v", err)
	assert.Contains(t, cde.Message, "Workbook corruption")

	var log bytes.Buffer
	g, err := Parse(bad, &Options{IgnoreWorkbookCorruption: true, Logfile: &log})
	require.NoError(t, err)
	assert.Contains(t, log.String(), "*** WARNING: Workbook corruption")
	got, err := g.Stream("A")
	require.NoError(t, err)
	assert.Equal(t, pattern(5000, 0), got)
}

func TestFailedLoadKeepsContent(t *testing.T) {
	b := buildSample(t, nil, map[string][]byte{"A": pattern(5000, 0), "B": pattern(5000, 1)})
	f, err := Parse(b, nil)
	require.NoError(t, err)
	a, err := f.dir.Lookup("A")
	require.NoError(t, err)
	crossLinked := append([]byte(nil), b...)
	dirOffset := (int(f.Header().DirStart) + 1) * BigSectorSize
	binary.LittleEndian.PutUint32(crossLinked[dirOffset+2*dirEntryLen+116:], a.Start)

	assert.Error(t, f.Load(crossLinked))
	assert.Error(t, f.Load(b[:100]))
	assert.Equal(t, StateReady, f.State())
	got, err := f.Stream("B")
	require.NoError(t, err)
	assert.Equal(t, pattern(5000, 1), got)

	fresh := newFile(nil)
	assert.Error(t, fresh.Load(crossLinked))
	assert.Equal(t, StateUninitialized, fresh.State())
}

func TestHeaderErrors(t *testing.T) {
	_, err := Parse([]byte("PK\x03\x04 not a compound file"), nil)
	assert.ErrorIs(t, err, ErrNotCompoundFile)
	assert.ErrorIs(t, err, ErrInvalidContainer)

	good := buildSample(t, nil, map[string][]byte{"x": {1}})
	bad := append([]byte(nil), good...)
	bad[28], bad[29] = 0xFF, 0xFE
	_, err = Parse(bad, nil)
	var cde *CompDocError
	assert.True(t, errors.As(err, &cde))

	_, err = Parse(good[:100], nil)
	assert.ErrorIs(t, err, ErrInvalidContainer)
}

func TestDIFAT(t *testing.T) {
	// more than 109 FAT sectors forces DIFAT sectors
	data := pattern(8<<20, 7)
	b := buildSample(t, nil, map[string][]byte{"big": data})
	f, err := Parse(b, nil)
	require.NoError(t, err)
	assert.Greater(t, f.Header().NumDIFATSectors, uint32(0))
	got, err := f.Stream("big")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
	assert.True(t, bytes.Equal(data, readWithMscfb(t, b)["big"]))
}

func TestPoolFull(t *testing.T) {
	f := New(&Options{MaxSectors: 4})
	require.NoError(t, f.SetStream("Workbook", pattern(5000, 0)))
	_, err := f.Bytes()
	assert.ErrorIs(t, err, ErrPoolFull)
}

func TestClosed(t *testing.T) {
	f := New(nil)
	require.NoError(t, f.SetStream("a", []byte("x")))
	require.NoError(t, f.Close())
	assert.Equal(t, StateClosed, f.State())

	_, err := f.Stream("a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.SetStream("b", nil), ErrClosed)
	_, err = f.Bytes()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.Load(nil), ErrClosed)
	assert.ErrorIs(t, f.Close(), ErrClosed)
}

func TestSetStreamAndRemove(t *testing.T) {
	f := New(nil)
	require.NoError(t, f.SetStream("Storage/s1", []byte("one")))
	require.NoError(t, f.SetStream("storage/S2", []byte("two")))
	assert.Error(t, f.SetStream("Storage/s1/child", nil))
	assert.Error(t, f.SetStream(strings.Repeat("n", 32), nil))

	dir, err := f.Directory()
	require.NoError(t, err)
	st, err := dir.Lookup("STORAGE")
	require.NoError(t, err)
	assert.Len(t, st.Children(), 2)

	require.NoError(t, f.Remove("Storage/s1"))
	_, err = f.Stream("Storage/s1")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := f.Stream("Storage/S2")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestClone(t *testing.T) {
	b := buildSample(t, nil, map[string][]byte{"Workbook": pattern(6000, 0), "s/x": []byte("abc")})
	f, err := Parse(b, nil)
	require.NoError(t, err)
	c, err := f.Clone()
	require.NoError(t, err)
	require.NoError(t, c.SetStream("s/x", []byte("changed")))

	got, err := f.Stream("s/x")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	got, err = c.Stream("Workbook")
	require.NoError(t, err)
	assert.Equal(t, pattern(6000, 0), got)
}

func TestSaveAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xls")
	f := New(nil)
	require.NoError(t, f.SetStream("Workbook", pattern(4100, 9)))
	require.NoError(t, f.Save(path))
	assert.Empty(t, PendingTempFiles())

	g, err := Open(path, nil)
	require.NoError(t, err)
	got, err := g.Stream("Workbook")
	require.NoError(t, err)
	assert.Equal(t, pattern(4100, 9), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenReaderSpools(t *testing.T) {
	b := buildSample(t, nil, map[string][]byte{"Workbook": []byte("hello")})
	f, err := OpenReader(io.MultiReader(bytes.NewReader(b)), nil)
	require.NoError(t, err)
	got, err := f.Stream("Workbook")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	assert.Empty(t, PendingTempFiles())
	assert.NoError(t, CleanupTempFiles())
}

func TestTraceLogging(t *testing.T) {
	b := buildSample(t, nil, map[string][]byte{"Workbook": []byte("hello")})
	var log bytes.Buffer
	_, err := Parse(b, &Options{Logfile: &log, Verbosity: 2})
	require.NoError(t, err)
	assert.Contains(t, log.String(), "state HEADER_PARSED")
	assert.Contains(t, log.String(), "state READY")
}
