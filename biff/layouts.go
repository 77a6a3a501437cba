package biff

import (
	"encoding/binary"
	"fmt"
)

// FormulaShared is the fShrFmla bit of a FORMULA record's flags.
const FormulaShared = 0x0008

// FormulaRecord is the decoded payload of a FORMULA record.
type FormulaRecord struct {
	Row, Col int
	XF       uint16
	Result   [8]byte
	Flags    uint16
	Chn      uint32
	Tokens   []byte // rgce
	Extra    []byte // rgcb, trailing data of array and memory tokens
}

// DecodeFormula parses a FORMULA payload.
func DecodeFormula(d []byte) (*FormulaRecord, error) {
	if len(d) < 22 {
		return nil, recordErrorf(XL_FORMULA, "bad length %d", len(d))
	}
	le := binary.LittleEndian
	f := &FormulaRecord{
		Row:   int(le.Uint16(d)),
		Col:   int(le.Uint16(d[2:])),
		XF:    le.Uint16(d[4:]),
		Flags: le.Uint16(d[14:]),
		Chn:   le.Uint32(d[16:]),
	}
	copy(f.Result[:], d[6:14])
	cce := int(le.Uint16(d[20:]))
	if 22+cce > len(d) {
		return nil, recordErrorf(XL_FORMULA, "token length %d exceeds payload", cce)
	}
	f.Tokens = append([]byte{}, d[22:22+cce]...)
	f.Extra = append([]byte{}, d[22+cce:]...)
	return f, nil
}

// Shared reports a cell that displays a shared formula.
func (f *FormulaRecord) Shared() bool { return f.Flags&FormulaShared != 0 }

// Record encodes f as a FORMULA record.
func (f *FormulaRecord) Record() Record {
	le := binary.LittleEndian
	b := make([]byte, 22, 22+len(f.Tokens)+len(f.Extra))
	le.PutUint16(b, uint16(f.Row))
	le.PutUint16(b[2:], uint16(f.Col))
	le.PutUint16(b[4:], f.XF)
	copy(b[6:14], f.Result[:])
	le.PutUint16(b[14:], f.Flags)
	le.PutUint32(b[16:], f.Chn)
	le.PutUint16(b[20:], uint16(len(f.Tokens)))
	b = append(b, f.Tokens...)
	b = append(b, f.Extra...)
	return Record{Opcode: XL_FORMULA, Data: b}
}

// SharedFormulaRecord is the decoded payload of a SHRFMLA record: one
// token array used by every cell of a range.
type SharedFormulaRecord struct {
	FirstRow, LastRow int
	FirstCol, LastCol int
	Use               int
	Tokens            []byte
	Extra             []byte
}

// DecodeSharedFormula parses a SHRFMLA payload.
func DecodeSharedFormula(d []byte) (*SharedFormulaRecord, error) {
	if len(d) < 10 {
		return nil, recordErrorf(XL_SHRFMLA, "bad length %d", len(d))
	}
	le := binary.LittleEndian
	s := &SharedFormulaRecord{
		FirstRow: int(le.Uint16(d)),
		LastRow:  int(le.Uint16(d[2:])),
		FirstCol: int(d[4]),
		LastCol:  int(d[5]),
		Use:      int(d[7]),
	}
	cce := int(le.Uint16(d[8:]))
	if 10+cce > len(d) {
		return nil, recordErrorf(XL_SHRFMLA, "token length %d exceeds payload", cce)
	}
	s.Tokens = append([]byte{}, d[10:10+cce]...)
	s.Extra = append([]byte{}, d[10+cce:]...)
	return s, nil
}

// Record encodes s as a SHRFMLA record.
func (s *SharedFormulaRecord) Record() Record {
	le := binary.LittleEndian
	b := make([]byte, 10, 10+len(s.Tokens)+len(s.Extra))
	le.PutUint16(b, uint16(s.FirstRow))
	le.PutUint16(b[2:], uint16(s.LastRow))
	b[4] = byte(s.FirstCol)
	b[5] = byte(s.LastCol)
	b[7] = byte(s.Use)
	le.PutUint16(b[8:], uint16(len(s.Tokens)))
	b = append(b, s.Tokens...)
	b = append(b, s.Extra...)
	return Record{Opcode: XL_SHRFMLA, Data: b}
}

// RefURange reads the leading row/column range of ARRAY, SHRFMLA and
// TABLEOP payloads.
func RefURange(d []byte) (CellRange, error) {
	if len(d) < 6 {
		return CellRange{}, fmt.Errorf("biff: range needs 6 bytes, have %d", len(d))
	}
	le := binary.LittleEndian
	return CellRange{
		FirstRow: int(le.Uint16(d)),
		LastRow:  int(le.Uint16(d[2:])),
		FirstCol: int(d[4]),
		LastCol:  int(d[5]),
	}, nil
}

// SetRefURange rewrites the leading range of d in place.
func SetRefURange(d []byte, r CellRange) {
	binary.LittleEndian.PutUint16(d, uint16(r.FirstRow))
	binary.LittleEndian.PutUint16(d[2:], uint16(r.LastRow))
	d[4] = byte(r.FirstCol)
	d[5] = byte(r.LastCol)
}

// ArrayRecord is the decoded payload of an ARRAY record, the formula of a
// multi-cell array range.
type ArrayRecord struct {
	Range  CellRange
	Flags  uint16
	Chn    uint32
	Tokens []byte
	Extra  []byte
}

// DecodeArray parses an ARRAY payload.
func DecodeArray(d []byte) (*ArrayRecord, error) {
	if len(d) < 14 {
		return nil, recordErrorf(XL_ARRAY, "bad length %d", len(d))
	}
	le := binary.LittleEndian
	r, _ := RefURange(d)
	a := &ArrayRecord{Range: r, Flags: le.Uint16(d[6:]), Chn: le.Uint32(d[8:])}
	cce := int(le.Uint16(d[12:]))
	if 14+cce > len(d) {
		return nil, recordErrorf(XL_ARRAY, "token length %d exceeds payload", cce)
	}
	a.Tokens = append([]byte{}, d[14:14+cce]...)
	a.Extra = append([]byte{}, d[14+cce:]...)
	return a, nil
}

// Record encodes a as an ARRAY record.
func (a *ArrayRecord) Record() Record {
	le := binary.LittleEndian
	b := make([]byte, 14, 14+len(a.Tokens)+len(a.Extra))
	SetRefURange(b, a.Range)
	le.PutUint16(b[6:], a.Flags)
	le.PutUint32(b[8:], a.Chn)
	le.PutUint16(b[12:], uint16(len(a.Tokens)))
	b = append(b, a.Tokens...)
	b = append(b, a.Extra...)
	return Record{Opcode: XL_ARRAY, Data: b}
}

// Name option flags
const (
	NameHidden  = 0x0001
	NameBuiltin = 0x0020
)

// NameRecord is the decoded payload of a NAME record.
type NameRecord struct {
	Flags  uint16
	Key    byte
	Name   string // for built-in names, the single code character
	Sheet  int    // 1-based sheet scope, 0 for global names
	Tokens []byte
	// TextLens holds the character counts of the menu, description, help
	// and status texts stored in Tail.
	TextLens [4]byte
	Tail     []byte
}

// Builtin reports a built-in name such as Print_Area.
func (n *NameRecord) Builtin() bool { return n.Flags&NameBuiltin != 0 }

// DecodeName parses a BIFF8 NAME payload.
func DecodeName(d []byte) (*NameRecord, error) {
	if len(d) < 15 {
		return nil, recordErrorf(XL_NAME, "bad length %d", len(d))
	}
	le := binary.LittleEndian
	n := &NameRecord{
		Flags: le.Uint16(d),
		Key:   d[2],
		Sheet: int(le.Uint16(d[8:])),
	}
	cch := int(d[3])
	cce := int(le.Uint16(d[4:]))
	name, pos, err := UnpackUnicodeKnownLen(d, 14, cch)
	if err != nil {
		return nil, recordErrorf(XL_NAME, "%v", err)
	}
	n.Name = name
	copy(n.TextLens[:], d[10:14])
	if pos+cce > len(d) {
		return nil, recordErrorf(XL_NAME, "token length %d exceeds payload", cce)
	}
	n.Tokens = append([]byte{}, d[pos:pos+cce]...)
	n.Tail = append([]byte{}, d[pos+cce:]...)
	return n, nil
}

// Record encodes n as a NAME record.
func (n *NameRecord) Record() Record {
	le := binary.LittleEndian
	body, cch := PackUnicodeNoLen(n.Name)
	b := make([]byte, 14, 14+len(body)+len(n.Tokens)+len(n.Tail))
	le.PutUint16(b, n.Flags)
	b[2] = n.Key
	b[3] = byte(cch)
	le.PutUint16(b[4:], uint16(len(n.Tokens)))
	le.PutUint16(b[8:], uint16(n.Sheet))
	copy(b[10:14], n.TextLens[:])
	b = append(b, body...)
	b = append(b, n.Tokens...)
	b = append(b, n.Tail...)
	return Record{Opcode: XL_NAME, Data: b}
}

// CellRange is an inclusive rectangle of rows and columns.
type CellRange struct {
	FirstRow, LastRow int
	FirstCol, LastCol int
}

// DecodeMergedCells parses a MERGEDCELLS payload.
func DecodeMergedCells(d []byte) ([]CellRange, error) {
	if len(d) < 2 {
		return nil, recordErrorf(XL_MERGEDCELLS, "bad length %d", len(d))
	}
	le := binary.LittleEndian
	n := int(le.Uint16(d))
	if 2+8*n > len(d) {
		return nil, recordErrorf(XL_MERGEDCELLS, "%d ranges exceed payload", n)
	}
	out := make([]CellRange, n)
	for i := range out {
		p := d[2+8*i:]
		out[i] = CellRange{
			FirstRow: int(le.Uint16(p)),
			LastRow:  int(le.Uint16(p[2:])),
			FirstCol: int(le.Uint16(p[4:])),
			LastCol:  int(le.Uint16(p[6:])),
		}
	}
	return out, nil
}

// MaxMergedPerRecord is the number of ranges one MERGEDCELLS record holds.
const MaxMergedPerRecord = 1026

// MergedCellsRecords encodes ranges into as many MERGEDCELLS records as needed.
func MergedCellsRecords(ranges []CellRange) []Record {
	var out []Record
	for len(ranges) > 0 {
		n := min(len(ranges), MaxMergedPerRecord)
		b := binary.LittleEndian.AppendUint16(nil, uint16(n))
		for _, r := range ranges[:n] {
			b = appendRange(b, r)
		}
		out = append(out, Record{Opcode: XL_MERGEDCELLS, Data: b})
		ranges = ranges[n:]
	}
	return out
}

func appendRange(b []byte, r CellRange) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(r.FirstRow))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.LastRow))
	b = binary.LittleEndian.AppendUint16(b, uint16(r.FirstCol))
	return binary.LittleEndian.AppendUint16(b, uint16(r.LastCol))
}

// HyperlinkRange reads the anchor range of an HLINK payload.
func HyperlinkRange(d []byte) (CellRange, error) {
	if len(d) < 8 {
		return CellRange{}, recordErrorf(XL_HLINK, "bad length %d", len(d))
	}
	le := binary.LittleEndian
	return CellRange{
		FirstRow: int(le.Uint16(d)),
		LastRow:  int(le.Uint16(d[2:])),
		FirstCol: int(le.Uint16(d[4:])),
		LastCol:  int(le.Uint16(d[6:])),
	}, nil
}

// SetHyperlinkRange rewrites the anchor range of an HLINK payload in place.
func SetHyperlinkRange(d []byte, r CellRange) {
	appendRange(d[:0], r)
}

// BRAI reference types
const (
	BraiLiteral   = 1
	BraiWorksheet = 2
)

// ChartRefRecord is the decoded payload of a chart BRAI record: the source
// reference of one series component.
type ChartRefRecord struct {
	ID      byte
	RefType byte
	Flags   uint16
	Format  uint16
	Tokens  []byte
}

// DecodeChartRef parses a BRAI payload.
func DecodeChartRef(d []byte) (*ChartRefRecord, error) {
	if len(d) < 8 {
		return nil, recordErrorf(XL_CHBRAI, "bad length %d", len(d))
	}
	le := binary.LittleEndian
	c := &ChartRefRecord{ID: d[0], RefType: d[1], Flags: le.Uint16(d[2:]), Format: le.Uint16(d[4:])}
	cce := int(le.Uint16(d[6:]))
	if 8+cce > len(d) {
		return nil, recordErrorf(XL_CHBRAI, "token length %d exceeds payload", cce)
	}
	c.Tokens = append([]byte{}, d[8:8+cce]...)
	return c, nil
}

// Record encodes c as a BRAI record.
func (c *ChartRefRecord) Record() Record {
	le := binary.LittleEndian
	b := make([]byte, 8, 8+len(c.Tokens))
	b[0], b[1] = c.ID, c.RefType
	le.PutUint16(b[2:], c.Flags)
	le.PutUint16(b[4:], c.Format)
	le.PutUint16(b[6:], uint16(len(c.Tokens)))
	return Record{Opcode: XL_CHBRAI, Data: append(b, c.Tokens...)}
}

// BoundSheetRecord is the decoded payload of a BOUNDSHEET record.
type BoundSheetRecord struct {
	Offset     uint32 // stream offset of the sheet's BOF
	Visibility byte
	Type       byte
	Name       string
}

// DecodeBoundSheet parses a BIFF8 BOUNDSHEET payload.
func DecodeBoundSheet(d []byte) (*BoundSheetRecord, error) {
	if len(d) < 8 {
		return nil, recordErrorf(XL_BOUNDSHEET, "bad length %d", len(d))
	}
	name, _, err := UnpackUnicode(d, 6, 1)
	if err != nil {
		return nil, recordErrorf(XL_BOUNDSHEET, "%v", err)
	}
	return &BoundSheetRecord{
		Offset:     binary.LittleEndian.Uint32(d),
		Visibility: d[4] & 0x03,
		Type:       d[5],
		Name:       name,
	}, nil
}

// Record encodes b as a BOUNDSHEET record.
func (b *BoundSheetRecord) Record() Record {
	d := binary.LittleEndian.AppendUint32(nil, b.Offset)
	d = append(d, b.Visibility, b.Type)
	return Record{Opcode: XL_BOUNDSHEET, Data: append(d, PackUnicode(b.Name, 1)...)}
}

// XTI is one EXTERNSHEET entry: a supporting book and a sheet range in it.
type XTI struct {
	SupBook    int
	FirstSheet int
	LastSheet  int
}

// DecodeExternSheet parses a BIFF8 EXTERNSHEET payload.
func DecodeExternSheet(d []byte) ([]XTI, error) {
	if len(d) < 2 {
		return nil, recordErrorf(XL_EXTERNSHEET, "bad length %d", len(d))
	}
	le := binary.LittleEndian
	n := int(le.Uint16(d))
	if 2+6*n > len(d) {
		return nil, recordErrorf(XL_EXTERNSHEET, "%d entries exceed payload", n)
	}
	out := make([]XTI, n)
	for i := range out {
		p := d[2+6*i:]
		out[i] = XTI{
			SupBook:    int(le.Uint16(p)),
			FirstSheet: int(int16(le.Uint16(p[2:]))),
			LastSheet:  int(int16(le.Uint16(p[4:]))),
		}
	}
	return out, nil
}

// ExternSheetRecord encodes an EXTERNSHEET record.
func ExternSheetRecord(xtis []XTI) Record {
	le := binary.LittleEndian
	b := le.AppendUint16(nil, uint16(len(xtis)))
	for _, x := range xtis {
		b = le.AppendUint16(b, uint16(x.SupBook))
		b = le.AppendUint16(b, uint16(int16(x.FirstSheet)))
		b = le.AppendUint16(b, uint16(int16(x.LastSheet)))
	}
	return Record{Opcode: XL_EXTERNSHEET, Data: b}
}

// InternalSupBookRecord encodes the SUPBOOK record naming the workbook itself.
func InternalSupBookRecord(sheets int) Record {
	b := binary.LittleEndian.AppendUint16(nil, uint16(sheets))
	b = binary.LittleEndian.AppendUint16(b, 0x0401)
	return Record{Opcode: XL_SUPBOOK, Data: b}
}

// IsInternalSupBook reports a SUPBOOK record for the workbook itself.
func IsInternalSupBook(d []byte) bool {
	return len(d) == 4 && binary.LittleEndian.Uint16(d[2:]) == 0x0401
}

// BOFRecord builds a BIFF8 BOF record for the given substream type.
func BOFRecord(dt uint16) Record {
	le := binary.LittleEndian
	b := make([]byte, 16)
	le.PutUint16(b, BIFF8Version)
	le.PutUint16(b[2:], dt)
	le.PutUint16(b[4:], 0x0DBB) // build
	le.PutUint16(b[6:], 0x07CC) // year
	le.PutUint32(b[8:], 0x000100C1)
	le.PutUint32(b[12:], 0x00000406)
	return Record{Opcode: XL_BOF, Data: b}
}

// BOFType returns the version and substream type of a BOF payload.
func BOFType(d []byte) (version, dt uint16, err error) {
	if len(d) < 4 {
		return 0, 0, recordErrorf(XL_BOF, "bad length %d", len(d))
	}
	return binary.LittleEndian.Uint16(d), binary.LittleEndian.Uint16(d[2:]), nil
}

// DimensionRecord builds a BIFF8 DIMENSION record; lastRow and lastCol are
// exclusive.
func DimensionRecord(firstRow, lastRow, firstCol, lastCol int) Record {
	le := binary.LittleEndian
	b := make([]byte, 14)
	le.PutUint32(b, uint32(firstRow))
	le.PutUint32(b[4:], uint32(lastRow))
	le.PutUint16(b[8:], uint16(firstCol))
	le.PutUint16(b[10:], uint16(lastCol))
	return Record{Opcode: XL_DIMENSION, Data: b}
}
