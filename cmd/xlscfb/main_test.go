package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamitzky/xlbiff-go/xls"
)

func runCLI(args []string, stdin []byte) (string, string, int) {
	var out, errOut bytes.Buffer
	code := run(args, bytes.NewReader(stdin), &out, &errOut)
	return out.String(), errOut.String(), code
}

// samplePath writes a one-sheet workbook with a title in A1, a number in
// A5 and a formula in B1 pointing at A5.
func samplePath(t *testing.T) string {
	t.Helper()
	book, err := xls.New(&xls.Options{Logfile: io.Discard})
	require.NoError(t, err)
	s := book.Sheets()[0]
	require.NoError(t, s.SetString(0, 0, "title"))
	require.NoError(t, s.SetNumber(4, 0, 2))
	require.NoError(t, s.SetFormulaTokens(0, 1, []byte{0x24, 4, 0, 0, 0xC0}))
	path := filepath.Join(t.TempDir(), "sample.xls")
	require.NoError(t, book.Save(path))
	return path
}

func openOutput(t *testing.T, path string) *xls.Book {
	t.Helper()
	book, err := xls.Open(path, &xls.Options{Logfile: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { book.Close() })
	return book
}

func TestRunList(t *testing.T) {
	out, errOut, code := runCLI([]string{"ls", samplePath(t)}, nil)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "stream")
	assert.Contains(t, out, "Workbook")
	assert.NotContains(t, out, "root")
}

func TestRunCat(t *testing.T) {
	out, errOut, code := runCLI([]string{"cat", samplePath(t), "Workbook"}, nil)
	require.Equal(t, 0, code, errOut)
	require.True(t, len(out) > 4)
	assert.Equal(t, "\x09\x08", out[:2], "the stream starts with a BOF record")

	_, _, code = runCLI([]string{"cat", samplePath(t), "Missing"}, nil)
	assert.Equal(t, 1, code)
}

func TestRunRecords(t *testing.T) {
	sample := samplePath(t)
	out, errOut, code := runCLI([]string{"records", sample}, nil)
	require.Equal(t, 0, code, errOut)
	assert.NotEmpty(t, out)

	counted, errOut, code := runCLI([]string{"records", "--count", sample}, nil)
	require.Equal(t, 0, code, errOut)
	assert.NotEmpty(t, counted)
	assert.NotEqual(t, out, counted)
}

func TestRunCells(t *testing.T) {
	out, errOut, code := runCLI([]string{"cells", samplePath(t)}, nil)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "A1\ttext\t\"title\"\n")
	assert.Contains(t, out, "A5\tnumber\t2\n")
	assert.Contains(t, out, "\t=A5\n")

	_, _, code = runCLI([]string{"cells", "-s", "4", samplePath(t)}, nil)
	assert.Equal(t, 1, code)
}

func TestRunCellsDates(t *testing.T) {
	book, err := xls.New(&xls.Options{Logfile: io.Discard})
	require.NoError(t, err)
	s := book.Sheets()[0]
	require.NoError(t, s.SetTime(0, 0, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, s.SetTime(1, 0, time.Date(2020, 1, 1, 18, 0, 0, 0, time.UTC)))
	require.NoError(t, s.SetNumber(2, 0, 43831))
	path := filepath.Join(t.TempDir(), "dates.xls")
	require.NoError(t, book.Save(path))

	out, errOut, code := runCLI([]string{"cells", path}, nil)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "A1\tnumber\t2020-01-01\n")
	assert.Contains(t, out, "A2\tnumber\t2020-01-01 18:00:00\n")
	assert.Contains(t, out, "A3\tnumber\t43831\n")
}

func TestRunInsertRows(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.xls")
	_, errOut, code := runCLI([]string{"insert-rows", samplePath(t), dst, "--at", "0", "-n", "2"}, nil)
	require.Equal(t, 0, code, errOut)

	s := openOutput(t, dst).Sheets()[0]
	assert.Equal(t, "title", s.CellValue(2, 0))
	assert.Equal(t, 2.0, s.CellValue(6, 0))
	text, err := s.Formula(2, 1)
	require.NoError(t, err)
	assert.Equal(t, "A7", text)
}

func TestRunDeleteCols(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.xls")
	_, errOut, code := runCLI([]string{"delete-cols", samplePath(t), dst, "--at", "0"}, nil)
	require.Equal(t, 0, code, errOut)

	s := openOutput(t, dst).Sheets()[0]
	text, err := s.Formula(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "#REF!", text)
}

func TestRunDefineNameAndRefs(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.xls")
	_, errOut, code := runCLI([]string{"define-name", samplePath(t), dst, "Totals", "Sheet1!$A$1:$B$2"}, nil)
	require.Equal(t, 0, code, errOut)

	out, errOut, code := runCLI([]string{"refs", dst}, nil)
	require.Equal(t, 0, code, errOut)
	assert.True(t, strings.HasPrefix(out, "Sheet1:\n"))
	assert.Contains(t, out, "name Totals = Sheet1!$A$1:$B$2\n")

	_, _, code = runCLI([]string{"define-name", samplePath(t), dst, "A1", "Sheet1!$A$1"}, nil)
	assert.Equal(t, 1, code)
}

func TestRunCopySheet(t *testing.T) {
	sample := samplePath(t)
	dst := filepath.Join(t.TempDir(), "out.xls")
	_, errOut, code := runCLI([]string{"copy-sheet", sample, dst, "Copy"}, nil)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, []string{"Sheet1", "Copy"}, openOutput(t, dst).SheetNames())

	imported := filepath.Join(t.TempDir(), "imported.xls")
	_, errOut, code = runCLI([]string{"copy-sheet", sample, imported, "Other", "--from", dst, "-s", "1"}, nil)
	require.Equal(t, 0, code, errOut)
	book := openOutput(t, imported)
	assert.Equal(t, []string{"Sheet1", "Other"}, book.SheetNames())
	assert.Equal(t, "title", book.Sheets()[1].CellValue(0, 0))
}

func TestRunStdinStdout(t *testing.T) {
	content, err := os.ReadFile(samplePath(t))
	require.NoError(t, err)
	out, errOut, code := runCLI([]string{"roundtrip", "-", "-"}, content)
	require.Equal(t, 0, code, errOut)

	book, err := xls.Parse([]byte(out), &xls.Options{Logfile: io.Discard})
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, "title", book.Sheets()[0].CellValue(0, 0))

	listing, errOut, code := runCLI([]string{"ls", "-"}, content)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, listing, "Workbook")
}

func TestRunProps(t *testing.T) {
	out, errOut, code := runCLI([]string{"props", samplePath(t)}, nil)
	require.Equal(t, 0, code, errOut)
	assert.NotContains(t, out, "pivot cache")
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing operand", []string{"ls"}, 2},
		{"unknown flag", []string{"ls", "--bogus", "x.xls"}, 2},
		{"zero count", []string{"insert-rows", "a.xls", "b.xls", "-n", "0"}, 2},
		{"missing file", []string{"ls", filepath.Join(t.TempDir(), "none.xls")}, 1},
		{"not a workbook", []string{"roundtrip", "-", "-"}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, errOut, code := runCLI(tc.args, []byte("plain text"))
			assert.Equal(t, tc.want, code)
			assert.NotEmpty(t, errOut)
		})
	}
}
