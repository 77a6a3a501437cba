package biff

import (
	"encoding/binary"
	"math"
)

// CellKind classifies the value of a logical cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
	CellBool
	CellError
	CellBlank
	CellFormula
)

func (k CellKind) String() string {
	switch k {
	case CellNumber:
		return "number"
	case CellText:
		return "text"
	case CellBool:
		return "bool"
	case CellError:
		return "error"
	case CellBlank:
		return "blank"
	case CellFormula:
		return "formula"
	}
	return "empty"
}

// Cell is one logical cell decoded from a cell record. A MULRK or MULBLANK
// record yields several.
type Cell struct {
	Opcode  uint16
	Row     int
	Col     int
	XF      uint16
	Kind    CellKind
	Number  float64
	SST     int // shared string index of a LABELSST cell, -1 otherwise
	Text    string
	Bool    bool
	ErrCode byte
}

// DecodeRK converts an RK value to a float.
func DecodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

// EncodeRK returns the RK form of v when one exists without loss.
func EncodeRK(v float64) (uint32, bool) {
	if v == math.Trunc(v) && v >= -(1<<29) && v < (1<<29) {
		return uint32(int32(v))<<2 | 0x02, true
	}
	if bits := math.Float64bits(v); bits&0x3FFFFFFFF == 0 {
		return uint32(bits >> 32), true
	}
	if w := math.Round(v * 100); w >= -(1<<29) && w < (1<<29) {
		rk := uint32(int32(w))<<2 | 0x03
		if DecodeRK(rk) == v {
			return rk, true
		}
	}
	return 0, false
}

// CellScanner walks the logical cells of cell records. Its column cursor
// advances with each logical cell of one physical record and is reset by
// Reset when the next physical record arrives.
type CellScanner struct {
	rec   Record
	row   int
	first int
	n     int
	i     int
	err   error
}

// Reset points the scanner at a new physical record.
func (s *CellScanner) Reset(rec Record) error {
	*s = CellScanner{rec: rec}
	d := rec.Data
	switch rec.Opcode {
	case XL_MULRK, XL_MULBLANK:
		width := 6
		if rec.Opcode == XL_MULBLANK {
			width = 2
		}
		if len(d) < 6 || (len(d)-6)%width != 0 {
			s.err = recordErrorf(rec.Opcode, "bad length %d", len(d))
			return s.err
		}
		s.row = int(binary.LittleEndian.Uint16(d))
		s.first = int(binary.LittleEndian.Uint16(d[2:]))
		s.n = (len(d) - 6) / width
		last := int(binary.LittleEndian.Uint16(d[len(d)-2:]))
		if last-s.first+1 != s.n {
			s.err = recordErrorf(rec.Opcode, "columns %d..%d do not match %d cells", s.first, last, s.n)
			return s.err
		}
	default:
		if !IsCellOpcode(rec.Opcode) {
			s.err = recordErrorf(rec.Opcode, "not a cell record")
			return s.err
		}
		if len(d) < 6 {
			s.err = recordErrorf(rec.Opcode, "bad length %d", len(d))
			return s.err
		}
		s.row = int(binary.LittleEndian.Uint16(d))
		s.first = int(binary.LittleEndian.Uint16(d[2:]))
		s.n = 1
	}
	return nil
}

// Err returns the error that stopped the scanner.
func (s *CellScanner) Err() error { return s.err }

// Next returns the next logical cell of the current record.
func (s *CellScanner) Next() (Cell, bool) {
	if s.err != nil || s.i >= s.n {
		return Cell{}, false
	}
	d := s.rec.Data
	le := binary.LittleEndian
	c := Cell{Opcode: s.rec.Opcode, Row: s.row, Col: s.first + s.i, SST: -1}
	switch s.rec.Opcode {
	case XL_MULRK:
		off := 4 + 6*s.i
		c.XF = le.Uint16(d[off:])
		c.Kind = CellNumber
		c.Number = DecodeRK(le.Uint32(d[off+2:]))
	case XL_MULBLANK:
		c.XF = le.Uint16(d[4+2*s.i:])
		c.Kind = CellBlank
	default:
		if err := decodeSingle(s.rec, &c); err != nil {
			s.err = err
			return Cell{}, false
		}
	}
	s.i++
	return c, true
}

func decodeSingle(rec Record, c *Cell) error {
	d := rec.Data
	le := binary.LittleEndian
	c.XF = le.Uint16(d[4:])
	need := map[uint16]int{XL_NUMBER: 14, XL_RK: 10, XL_LABELSST: 10, XL_BOOLERR: 8, XL_BLANK: 6, XL_LABEL: 8, XL_FORMULA: 22}
	if len(d) < need[rec.Opcode] {
		return recordErrorf(rec.Opcode, "bad length %d", len(d))
	}
	switch rec.Opcode {
	case XL_NUMBER:
		c.Kind = CellNumber
		c.Number = math.Float64frombits(le.Uint64(d[6:]))
	case XL_RK:
		c.Kind = CellNumber
		c.Number = DecodeRK(le.Uint32(d[6:]))
	case XL_LABELSST:
		c.Kind = CellText
		c.SST = int(le.Uint32(d[6:]))
	case XL_LABEL:
		s, _, err := UnpackUnicode(d, 6, 2)
		if err != nil {
			return recordErrorf(rec.Opcode, "%v", err)
		}
		c.Kind = CellText
		c.Text = s
	case XL_BOOLERR:
		if d[7] != 0 {
			c.Kind = CellError
			c.ErrCode = d[6]
		} else {
			c.Kind = CellBool
			c.Bool = d[6] != 0
		}
	case XL_BLANK:
		c.Kind = CellBlank
	case XL_FORMULA:
		c.Kind = CellFormula
		if le.Uint16(d[12:]) != 0xFFFF {
			c.Number = math.Float64frombits(le.Uint64(d[6:]))
			break
		}
		switch d[6] {
		case 1:
			c.Bool = d[8] != 0
		case 2:
			c.ErrCode = d[8]
		}
	}
	return nil
}

// Cells decodes every logical cell of rec.
func Cells(rec Record) ([]Cell, error) {
	var s CellScanner
	if err := s.Reset(rec); err != nil {
		return nil, err
	}
	var out []Cell
	for c, ok := s.Next(); ok; c, ok = s.Next() {
		out = append(out, c)
	}
	return out, s.Err()
}

func cellHeader(row, col int, xf uint16, size int) []byte {
	b := make([]byte, 6, size)
	binary.LittleEndian.PutUint16(b, uint16(row))
	binary.LittleEndian.PutUint16(b[2:], uint16(col))
	binary.LittleEndian.PutUint16(b[4:], xf)
	return b
}

// NumberRecord builds a NUMBER cell.
func NumberRecord(row, col int, xf uint16, v float64) Record {
	b := cellHeader(row, col, xf, 14)
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	return Record{Opcode: XL_NUMBER, Data: b}
}

// RKRecord builds an RK cell; ok is false when v has no RK form.
func RKRecord(row, col int, xf uint16, v float64) (Record, bool) {
	rk, ok := EncodeRK(v)
	if !ok {
		return Record{}, false
	}
	b := cellHeader(row, col, xf, 10)
	b = binary.LittleEndian.AppendUint32(b, rk)
	return Record{Opcode: XL_RK, Data: b}, true
}

// LabelSSTRecord builds a LABELSST cell pointing at shared string idx.
func LabelSSTRecord(row, col int, xf uint16, idx int) Record {
	b := cellHeader(row, col, xf, 10)
	b = binary.LittleEndian.AppendUint32(b, uint32(idx))
	return Record{Opcode: XL_LABELSST, Data: b}
}

// LabelRecord builds an inline string cell.
func LabelRecord(row, col int, xf uint16, s string) Record {
	b := cellHeader(row, col, xf, 9+2*len(s))
	b = append(b, PackUnicode(s, 2)...)
	return Record{Opcode: XL_LABEL, Data: b}
}

// BoolErrRecord builds a BOOLERR cell holding a boolean or an error code.
func BoolErrRecord(row, col int, xf uint16, value byte, isError bool) Record {
	b := cellHeader(row, col, xf, 8)
	flag := byte(0)
	if isError {
		flag = 1
	}
	b = append(b, value, flag)
	return Record{Opcode: XL_BOOLERR, Data: b}
}

// BlankRecord builds a BLANK cell.
func BlankRecord(row, col int, xf uint16) Record {
	return Record{Opcode: XL_BLANK, Data: cellHeader(row, col, xf, 6)}
}

// ExpandMul splits a MULRK or MULBLANK record into one RK or BLANK record
// per logical cell. Other records come back unchanged.
func ExpandMul(rec Record) ([]Record, error) {
	if rec.Opcode != XL_MULRK && rec.Opcode != XL_MULBLANK {
		return []Record{rec}, nil
	}
	var s CellScanner
	if err := s.Reset(rec); err != nil {
		return nil, err
	}
	var out []Record
	for i := 0; i < s.n; i++ {
		col := s.first + i
		if rec.Opcode == XL_MULBLANK {
			out = append(out, BlankRecord(s.row, col, binary.LittleEndian.Uint16(rec.Data[4+2*i:])))
			continue
		}
		off := 4 + 6*i
		b := cellHeader(s.row, col, binary.LittleEndian.Uint16(rec.Data[off:]), 10)
		b = append(b, rec.Data[off+2:off+6]...)
		out = append(out, Record{Opcode: XL_RK, Data: b})
	}
	return out, nil
}

// CollapseMul joins RK records, or BLANK records, of adjacent cells in one
// row into MULRK or MULBLANK records, reversing ExpandMul. Records that
// are not part of such a run of at least two come back unchanged.
func CollapseMul(recs []Record) []Record {
	var out []Record
	for len(recs) > 0 {
		n := mulRun(recs)
		if n < 2 {
			out = append(out, recs[0])
			recs = recs[1:]
			continue
		}
		le := binary.LittleEndian
		row, _ := RowOf(recs[0])
		first, _ := ColOf(recs[0])
		op, width := uint16(XL_MULRK), 6
		if recs[0].Opcode == XL_BLANK {
			op, width = XL_MULBLANK, 2
		}
		b := make([]byte, 0, 6+width*n)
		b = le.AppendUint16(b, uint16(row))
		b = le.AppendUint16(b, uint16(first))
		for _, r := range recs[:n] {
			b = append(b, r.Data[4:4+width]...)
		}
		b = le.AppendUint16(b, uint16(first+n-1))
		out = append(out, Record{Opcode: op, Data: b})
		recs = recs[n:]
	}
	return out
}

// mulRun counts the leading records of recs that fit in one MULRK or
// MULBLANK record.
func mulRun(recs []Record) int {
	op := recs[0].Opcode
	var size int
	switch op {
	case XL_RK:
		size = 10
	case XL_BLANK:
		size = 6
	default:
		return 1
	}
	if len(recs[0].Data) < size {
		return 1
	}
	row, _ := RowOf(recs[0])
	first, _ := ColOf(recs[0])
	n := 1
	for ; n < len(recs); n++ {
		r := recs[n]
		rrow, _ := RowOf(r)
		rcol, _ := ColOf(r)
		if r.Opcode != op || len(r.Data) < size || rrow != row || rcol != first+n {
			break
		}
	}
	return n
}

// RowOf returns the row of a record whose payload starts with a row
// number: cell records, ROW and FORMULA.
func RowOf(rec Record) (int, bool) {
	if (!IsCellOpcode(rec.Opcode) && rec.Opcode != XL_ROW) || len(rec.Data) < 2 {
		return 0, false
	}
	return int(binary.LittleEndian.Uint16(rec.Data)), true
}

// WithRow returns a copy of rec moved to row.
func WithRow(rec Record, row int) Record {
	out := rec.Clone()
	binary.LittleEndian.PutUint16(out.Data, uint16(row))
	return out
}

// ColOf returns the first column of a cell record.
func ColOf(rec Record) (int, bool) {
	if !IsCellOpcode(rec.Opcode) || len(rec.Data) < 4 {
		return 0, false
	}
	return int(binary.LittleEndian.Uint16(rec.Data[2:])), true
}

// WithCol returns a copy of a single-cell record moved to col.
func WithCol(rec Record, col int) Record {
	out := rec.Clone()
	binary.LittleEndian.PutUint16(out.Data[2:], uint16(col))
	return out
}
