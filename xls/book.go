package xls

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/yamitzky/xlbiff-go/biff"
	"github.com/yamitzky/xlbiff-go/cfb"
	"github.com/yamitzky/xlbiff-go/refs"
)

// Options contains options for opening and editing a workbook.
type Options struct {
	// Logfile is an open file to which messages and diagnostics are written.
	Logfile io.Writer

	// Verbosity increases the volume of trace material written to the logfile.
	Verbosity int

	// IgnoreWorkbookCorruption allows to read corrupted workbooks.
	// When false you may face CompDocError: Workbook corruption.
	// When true that error will be ignored.
	IgnoreWorkbookCorruption bool

	// ShareDuplicateStrings makes string cells with equal text share one
	// shared string table entry.
	ShareDuplicateStrings bool

	// InsertMode picks whether inserted rows and columns go at the pivot
	// (refs.ModeGeneric) or after it (refs.ModeExcel).
	InsertMode refs.Mode

	// Container overrides the options used for the compound file. When nil
	// they are derived from the fields above.
	Container *cfb.Options
}

func (o *Options) container() *cfb.Options {
	if o.Container != nil {
		return o.Container
	}
	return &cfb.Options{
		Logfile:                  o.Logfile,
		Verbosity:                o.Verbosity,
		IgnoreWorkbookCorruption: o.IgnoreWorkbookCorruption,
	}
}

func withDefaults(opts *Options) Options {
	if opts == nil {
		return Options{Logfile: os.Stdout}
	}
	out := *opts
	if out.Logfile == nil {
		out.Logfile = io.Discard
	}
	return out
}

// globalSlot marks globals records that are regenerated on write.
type globalSlot int

const (
	globalRecord  globalSlot = iota
	globalSheets             // BOUNDSHEET records
	globalLinks              // EXTERNSHEET and NAME records
	globalSST                // SST, its CONTINUE records and EXTSST
	globalSupBook            // the SUPBOOK naming this workbook
	globalTabID
)

type globalItem struct {
	slot globalSlot
	rec  biff.Record
}

// Book represents the contents of a "workbook".
//
// You should not instantiate this type yourself. You use the Book
// returned by Open, OpenReader, Parse or New.
type Book struct {
	mu sync.Mutex

	// Datemode indicates which date system was in force when this file was last saved.
	// 0: 1900 system (the Excel for Windows default).
	// 1: 1904 system (the Excel for Macintosh default).
	Datemode int

	// Codepage is the value of the CODEPAGE record, 1200 for BIFF8 files.
	Codepage int

	opts      Options
	logfile   io.Writer
	verbosity int

	container  *cfb.File
	streamName string
	globals    []globalItem
	sst        *biff.SST
	sheets     []*Sheet
	names      []*Name
	xtis       []biff.XTI
	numXF      int
	xfs        []xfInfo
	formats    map[int]string // FORMAT records by key

	supBooks     int // SUPBOOK records in the file
	internalSB   int // index of the internal SUPBOOK, -1 when absent
	addedSupBook bool

	tracker *refs.Tracker
}

func newBook(opts *Options) *Book {
	o := withDefaults(opts)
	return &Book{opts: o, logfile: o.Logfile, verbosity: o.Verbosity, internalSB: -1}
}

// Open opens the spreadsheet file at path.
func Open(path string, opts *Options) (*Book, error) {
	format, err := InspectFormat(path, nil)
	if err != nil {
		return nil, err
	}
	if format != "xls" {
		return nil, NewXLSError("%s; not supported", FileFormatDescriptions[format])
	}
	b := newBook(opts)
	f, err := cfb.Open(path, b.opts.container())
	if err != nil {
		return nil, err
	}
	if err := b.Load(f); err != nil {
		return nil, err
	}
	return b, nil
}

// OpenReader reads a workbook from r. Streams other than regular files are
// spooled through a temporary file.
func OpenReader(r io.Reader, opts *Options) (*Book, error) {
	b := newBook(opts)
	f, err := cfb.OpenReader(r, b.opts.container())
	if err != nil {
		return nil, err
	}
	if err := b.Load(f); err != nil {
		return nil, err
	}
	return b, nil
}

// Parse reads a workbook from an in-memory file image.
func Parse(content []byte, opts *Options) (*Book, error) {
	format, err := InspectFormat("", content)
	if err != nil {
		return nil, err
	}
	if format != "xls" {
		return nil, NewXLSError("%s; not supported", FileFormatDescriptions[format])
	}
	b := newBook(opts)
	f, err := cfb.Parse(content, b.opts.container())
	if err != nil {
		return nil, err
	}
	if err := b.Load(f); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Book) warnf(format string, args ...interface{}) {
	fmt.Fprintf(b.logfile, "*** WARNING: "+format+"\n", args...)
}

func (b *Book) tracef(format string, args ...interface{}) {
	if b.verbosity >= 2 {
		fmt.Fprintf(b.logfile, format+"\n", args...)
	}
}

// Load replaces the content of b with the workbook stored in f. The whole
// initialisation runs under one lock. On failure b keeps its previous
// content.
func (b *Book) Load(f *cfb.File) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	restore := b.snapshot()
	defer func() {
		if err != nil {
			restore()
		}
	}()

	var stream []byte
	for _, name := range []string{"Workbook", "Book"} {
		data, err := f.Stream(name)
		if err == nil {
			stream, b.streamName = data, name
			break
		}
	}
	if stream == nil {
		return ErrNoWorkbook
	}
	subs, err := biff.SplitSubstreams(stream)
	if err != nil {
		return err
	}
	version, dt, err := biff.BOFType(subs[0].Records[0].Data)
	if err != nil {
		return err
	}
	if dt != biff.XL_WORKBOOK_GLOBALS {
		return NewXLSError("Can't determine file's BIFF version")
	}
	if version != biff.BIFF8Version {
		return NewXLSError("BIFF version %#04x is not supported", version)
	}

	b.container = f
	b.globals, b.sheets, b.names, b.xtis = nil, nil, nil, nil
	b.sst, b.numXF, b.supBooks, b.internalSB, b.addedSupBook = nil, 0, 0, -1, false
	b.xfs, b.formats = nil, make(map[int]string)
	b.tracker = refs.NewTracker(&refs.Options{Logfile: b.logfile, Verbosity: b.verbosity, Mode: b.opts.InsertMode})

	bounds, err := b.parseGlobals(subs[0].Records)
	if err != nil {
		return err
	}
	byOffset := make(map[int]biff.Substream, len(subs))
	for _, sub := range subs[1:] {
		byOffset[sub.Offset] = sub
	}
	for i, bs := range bounds {
		sub, ok := byOffset[int(bs.Offset)]
		if !ok {
			msg := fmt.Sprintf("Workbook corruption: sheet %q has no substream at offset %d", bs.Name, bs.Offset)
			if !b.opts.IgnoreWorkbookCorruption {
				return NewXLSError("%s", msg)
			}
			b.warnf("%s", msg)
			sub = biff.Substream{Records: []biff.Record{biff.BOFRecord(biff.XL_WORKSHEET), {Opcode: biff.XL_EOF}}}
		}
		s, err := b.parseSheet(i, bs, sub.Records)
		if err != nil {
			return fmt.Errorf("xls: sheet %q: %w", bs.Name, err)
		}
		b.sheets = append(b.sheets, s)
	}
	for _, n := range b.names {
		b.track(n.owner)
	}
	for _, s := range b.sheets {
		s.register()
	}
	b.tracef("xls: %s stream: %d sheets, %d names, %d shared strings, %d references",
		b.streamName, len(b.sheets), len(b.names), b.sst.Len(), b.tracker.Len())
	return nil
}

// snapshot returns a function that puts back the content Load replaces.
func (b *Book) snapshot() func() {
	container, streamName, globals, sst := b.container, b.streamName, b.globals, b.sst
	sheets, names, xtis, numXF := b.sheets, b.names, b.xtis, b.numXF
	xfs, formats := b.xfs, b.formats
	supBooks, internalSB, addedSupBook := b.supBooks, b.internalSB, b.addedSupBook
	tracker, datemode, codepage := b.tracker, b.Datemode, b.Codepage
	return func() {
		b.container, b.streamName, b.globals, b.sst = container, streamName, globals, sst
		b.sheets, b.names, b.xtis, b.numXF = sheets, names, xtis, numXF
		b.xfs, b.formats = xfs, formats
		b.supBooks, b.internalSB, b.addedSupBook = supBooks, internalSB, addedSupBook
		b.tracker, b.Datemode, b.Codepage = tracker, datemode, codepage
	}
}

func (b *Book) parseGlobals(recs []biff.Record) ([]*biff.BoundSheetRecord, error) {
	var bounds []*biff.BoundSheetRecord
	seen := make(map[globalSlot]bool)
	slot := func(s globalSlot, rec biff.Record) {
		if !seen[s] {
			seen[s] = true
			b.globals = append(b.globals, globalItem{slot: s, rec: rec})
		}
	}
	for i := 0; i < len(recs); i++ {
		rec := recs[i]
		switch rec.Opcode {
		case biff.XL_FILEPASS:
			return nil, NewXLSError("Workbook is encrypted")
		case biff.XL_BOUNDSHEET:
			bs, err := biff.DecodeBoundSheet(rec.Data)
			if err != nil {
				return nil, err
			}
			bounds = append(bounds, bs)
			slot(globalSheets, rec)
		case biff.XL_SST:
			parts := [][]byte{rec.Data}
			for i+1 < len(recs) && recs[i+1].Opcode == biff.XL_CONTINUE {
				i++
				parts = append(parts, recs[i].Data)
			}
			sst, err := biff.DecodeSST(parts)
			if err != nil {
				return nil, err
			}
			sst.SetShare(b.opts.ShareDuplicateStrings)
			b.sst = sst
			slot(globalSST, rec)
		case biff.XL_EXTSST:
		case biff.XL_EXTERNSHEET:
			xtis, err := biff.DecodeExternSheet(rec.Data)
			if err != nil {
				return nil, err
			}
			b.xtis = append(b.xtis, xtis...)
			slot(globalLinks, rec)
		case biff.XL_NAME:
			nr, err := biff.DecodeName(rec.Data)
			if err != nil {
				return nil, err
			}
			b.names = append(b.names, b.newName(nr))
			slot(globalLinks, rec)
		case biff.XL_SUPBOOK:
			if biff.IsInternalSupBook(rec.Data) && b.internalSB < 0 {
				b.internalSB = b.supBooks
				b.globals = append(b.globals, globalItem{slot: globalSupBook, rec: rec})
			} else {
				b.globals = append(b.globals, globalItem{rec: rec})
			}
			b.supBooks++
		case biff.XL_TABID:
			slot(globalTabID, rec)
		default:
			switch rec.Opcode {
			case biff.XL_DATEMODE:
				if len(rec.Data) >= 2 {
					b.Datemode = int(binary.LittleEndian.Uint16(rec.Data))
				}
			case biff.XL_CODEPAGE:
				if len(rec.Data) >= 2 {
					b.Codepage = int(binary.LittleEndian.Uint16(rec.Data))
				}
			case biff.XL_XF:
				b.numXF++
				b.xfs = append(b.xfs, decodeXF(rec.Data))
			case biff.XL_FORMAT:
				key, format, err := decodeFormat(rec.Data)
				if err != nil {
					b.warnf("FORMAT record: %v", err)
					break
				}
				b.formats[key] = format
			}
			b.globals = append(b.globals, globalItem{rec: rec})
		}
	}
	if b.sst == nil {
		b.sst = biff.NewSST(b.opts.ShareDuplicateStrings)
		b.insertGlobal(len(b.globals)-1, globalItem{slot: globalSST, rec: biff.Record{Opcode: biff.XL_SST}})
	}
	if !seen[globalLinks] {
		at := 0
		for i, it := range b.globals {
			switch {
			case it.slot == globalSheets || it.slot == globalSupBook,
				it.rec.Opcode == biff.XL_COUNTRY, it.rec.Opcode == biff.XL_SUPBOOK, it.rec.Opcode == biff.XL_EXTERNNAME:
				at = i + 1
			}
		}
		b.insertGlobal(at, globalItem{slot: globalLinks, rec: biff.Record{Opcode: biff.XL_EXTERNSHEET}})
	}
	return bounds, nil
}

func (b *Book) insertGlobal(at int, it globalItem) {
	b.globals = append(b.globals, globalItem{})
	copy(b.globals[at+1:], b.globals[at:])
	b.globals[at] = it
}

func (b *Book) globalRecords(offsets []int) []biff.Record {
	var out []biff.Record
	for _, it := range b.globals {
		switch it.slot {
		case globalRecord:
			out = append(out, it.rec)
		case globalSheets:
			for i, s := range b.sheets {
				bs := biff.BoundSheetRecord{Visibility: s.Visibility, Type: s.kind, Name: s.Name}
				if offsets != nil {
					bs.Offset = uint32(offsets[i])
				}
				out = append(out, bs.Record())
			}
		case globalLinks:
			if b.addedSupBook {
				out = append(out, biff.InternalSupBookRecord(len(b.sheets)))
			}
			if len(b.xtis) > 0 {
				out = append(out, biff.ExternSheetRecord(b.xtis))
			}
			for _, n := range b.names {
				out = append(out, n.rec.Record())
			}
		case globalSST:
			b.sst.Total = b.countSSTRefs()
			out = append(out, b.sst.Records()...)
		case globalSupBook:
			out = append(out, biff.InternalSupBookRecord(len(b.sheets)))
		case globalTabID:
			var d []byte
			for i := range b.sheets {
				d = binary.LittleEndian.AppendUint16(d, uint16(i+1))
			}
			out = append(out, biff.Record{Opcode: biff.XL_TABID, Data: d})
		}
	}
	return out
}

func (b *Book) countSSTRefs() int {
	n := 0
	for _, s := range b.sheets {
		s.cells.Ascend(func(c *cell) bool {
			if c.rec.Opcode == biff.XL_LABELSST {
				n++
			}
			return true
		})
	}
	return n
}

// Stream encodes the workbook stream. BOUNDSHEET offsets are recomputed;
// INDEX, DBCELL and EXTSST records are not written.
func (b *Book) Stream() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.encodeStream()
}

func (b *Book) encodeStream() ([]byte, error) {
	if b.container == nil {
		return nil, NewXLSError("workbook is not loaded")
	}
	sheetData := make([][]byte, len(b.sheets))
	for i, s := range b.sheets {
		recs, err := s.records()
		if err != nil {
			return nil, fmt.Errorf("xls: sheet %q: %w", s.Name, err)
		}
		sheetData[i] = biff.EncodeAll(recs)
	}
	// BOUNDSHEET records have the same size whatever their offsets
	pos := len(biff.EncodeAll(b.globalRecords(nil)))
	offsets := make([]int, len(b.sheets))
	for i, d := range sheetData {
		offsets[i] = pos
		pos += len(d)
	}
	var buf bytes.Buffer
	buf.Write(biff.EncodeAll(b.globalRecords(offsets)))
	for _, d := range sheetData {
		buf.Write(d)
	}
	return buf.Bytes(), nil
}

func (b *Book) flush() error {
	stream, err := b.encodeStream()
	if err != nil {
		return err
	}
	return b.container.SetStream(b.streamName, stream)
}

// WriteTo writes the workbook as a compound file to w. Streams other than
// the workbook stream are carried over unchanged.
func (b *Book) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.flush(); err != nil {
		return 0, err
	}
	return b.container.WriteTo(w)
}

// Bytes returns the serialised workbook file.
func (b *Book) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the workbook to path, replacing it atomically.
func (b *Book) Save(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.flush(); err != nil {
		return err
	}
	return b.container.Save(path)
}

// Close releases the compound file.
func (b *Book) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.container == nil {
		return nil
	}
	return b.container.Close()
}

// Container returns the compound file holding the workbook.
func (b *Book) Container() *cfb.File { return b.container }

// Tracker returns the reference tracker of the workbook.
func (b *Book) Tracker() *refs.Tracker { return b.tracker }

// SharedStrings returns the shared string table.
func (b *Book) SharedStrings() *biff.SST { return b.sst }

// NSheets returns the number of sheets.
func (b *Book) NSheets() int { return len(b.sheets) }

// Sheets returns every sheet in workbook order.
func (b *Book) Sheets() []*Sheet {
	return append([]*Sheet(nil), b.sheets...)
}

// SheetNames returns the names of all sheets in workbook order.
func (b *Book) SheetNames() []string {
	out := make([]string, len(b.sheets))
	for i, s := range b.sheets {
		out[i] = s.Name
	}
	return out
}

// SheetByIndex returns the sheet at sheetx.
func (b *Book) SheetByIndex(sheetx int) (*Sheet, error) {
	if sheetx < 0 || sheetx >= len(b.sheets) {
		return nil, fmt.Errorf("%w: index %d", ErrSheetNotFound, sheetx)
	}
	return b.sheets[sheetx], nil
}

// SheetByName returns the sheet called name.
func (b *Book) SheetByName(name string) (*Sheet, error) {
	if i, ok := b.sheetIndex(name); ok {
		return b.sheets[i], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}

// sheetIndex matches sheet names case-insensitively, as Excel does.
func (b *Book) sheetIndex(name string) (int, bool) {
	for i, s := range b.sheets {
		if strings.EqualFold(s.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// textOptions resolves sheet and name references while formulas are rendered.
func (b *Book) textOptions(row, col int) *biff.TextOptions {
	return &biff.TextOptions{
		Row: row,
		Col: col,
		SheetName: func(ixti int) string {
			if ixti < 0 || ixti >= len(b.xtis) {
				return "#REF"
			}
			x := b.xtis[ixti]
			if x.SupBook != b.internalSB {
				return fmt.Sprintf("[%d]", x.SupBook)
			}
			name := func(i int) string {
				if i < 0 || i >= len(b.sheets) {
					return "#REF"
				}
				return b.sheets[i].Name
			}
			if x.FirstSheet == x.LastSheet {
				return biff.QuoteSheetName(name(x.FirstSheet))
			}
			return biff.QuoteSheetName(name(x.FirstSheet) + ":" + name(x.LastSheet))
		},
		Name: func(index int) string {
			if index < 1 || index > len(b.names) {
				return fmt.Sprintf("NAME%d", index)
			}
			return b.names[index-1].Name
		},
	}
}
