package biff

import (
	"encoding/binary"
	"fmt"
)

// Base token ids (the reference class bits folded out).
const (
	ptgExp       = 0x01
	ptgTbl       = 0x02
	ptgAdd       = 0x03
	ptgRange     = 0x11
	ptgUplus     = 0x12
	ptgUminus    = 0x13
	ptgPercent   = 0x14
	ptgParen     = 0x15
	ptgMissArg   = 0x16
	ptgStr       = 0x17
	ptgExtended  = 0x18
	ptgAttr      = 0x19
	ptgErr       = 0x1C
	ptgBool      = 0x1D
	ptgInt       = 0x1E
	ptgNum       = 0x1F
	ptgArray     = 0x20
	ptgFunc      = 0x21
	ptgFuncVar   = 0x22
	ptgName      = 0x23
	ptgRef       = 0x24
	ptgArea      = 0x25
	ptgMemArea   = 0x26
	ptgMemErr    = 0x27
	ptgMemNoMem  = 0x28
	ptgMemFunc   = 0x29
	ptgRefErr    = 0x2A
	ptgAreaErr   = 0x2B
	ptgRefN      = 0x2C
	ptgAreaN     = 0x2D
	ptgMemAreaN  = 0x2E
	ptgMemNoMemN = 0x2F
	ptgNameX     = 0x39
	ptgRef3d     = 0x3A
	ptgArea3d    = 0x3B
	ptgRefErr3d  = 0x3C
	ptgAreaErr3d = 0x3D
)

// ptgSize holds the BIFF8 size of each base token including its id byte;
// -1 is variable, -2 unknown.
var ptgSize = [64]int{
	-2, 5, 5, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, -1, -2, -1, -2, -2, 2, 2, 3, 9,
	8, 3, 4, 5, 5, 9, 7, 7, 7, 3, 5, 9, 5, 9, 3, 3,
	-2, -2, -2, -2, -2, -2, -2, -2, -2, 7, 7, 11, 7, 11, -2, -2,
}

var ptgNames = [64]string{
	"Unk00", "Exp", "Tbl", "Add", "Sub", "Mul", "Div", "Power", "Concat", "LT", "LE", "EQ", "GE", "GT", "NE",
	"Isect", "List", "Range", "Uplus", "Uminus", "Percent", "Paren", "MissArg", "Str", "Extended", "Attr",
	"Sheet", "EndSheet", "Err", "Bool", "Int", "Num", "Array", "Func", "FuncVar", "Name", "Ref", "Area",
	"MemArea", "MemErr", "MemNoMem", "MemFunc", "RefErr", "AreaErr", "RefN", "AreaN", "MemAreaN", "MemNoMemN",
	"", "", "", "", "", "", "", "", "FuncCE", "NameX", "Ref3d", "Area3d", "RefErr3d", "AreaErr3d", "", "",
}

// baseToken folds the reference class out of a token id.
func baseToken(op byte) byte {
	if op < 0x20 {
		return op
	}
	return op&0x1F | 0x20
}

// TokenName returns the mnemonic of a token id.
func TokenName(op byte) string {
	if op >= 0x80 {
		return fmt.Sprintf("Unk%02X", op)
	}
	return ptgNames[baseToken(op)]
}

// TokenSize returns the size of the token starting at rgce[pos].
func TokenSize(rgce []byte, pos int) (int, error) {
	op := rgce[pos]
	if op >= 0x80 {
		return 0, fmt.Errorf("%w 0x%02X at %d", ErrUnknownToken, op, pos)
	}
	base := baseToken(op)
	size := ptgSize[base]
	switch base {
	case ptgStr:
		if pos+3 > len(rgce) {
			return 0, fmt.Errorf("%w: truncated string token at %d", ErrUnknownToken, pos)
		}
		n := int(rgce[pos+1])
		if rgce[pos+2]&strUncompressed != 0 {
			n *= 2
		}
		size = 3 + n
	case ptgAttr:
		if pos+4 > len(rgce) {
			return 0, fmt.Errorf("%w: truncated attr token at %d", ErrUnknownToken, pos)
		}
		size = 4
		if rgce[pos+1]&0x04 != 0 { // choose: jump table follows
			size += 2 * (int(binary.LittleEndian.Uint16(rgce[pos+2:])) + 1)
		}
	}
	if size < 0 {
		return 0, fmt.Errorf("%w %s (0x%02X) at %d", ErrUnknownToken, TokenName(op), op, pos)
	}
	if pos+size > len(rgce) {
		return 0, fmt.Errorf("%w: %s at %d runs past the formula", ErrUnknownToken, TokenName(op), pos)
	}
	return size, nil
}

// WalkTokens calls fn for each token of rgce with its offset and id.
func WalkTokens(rgce []byte, fn func(pos int, op byte) error) error {
	for pos := 0; pos < len(rgce); {
		size, err := TokenSize(rgce, pos)
		if err != nil {
			return err
		}
		if err := fn(pos, rgce[pos]); err != nil {
			return err
		}
		pos += size
	}
	return nil
}

// CellAddr is one corner of a reference token. For relative-offset tokens
// (tRefN, tAreaN) a relative Row or Col is a signed offset from the cell
// using the formula.
type CellAddr struct {
	Row, Col       int
	RowRel, ColRel bool
}

// AdjustCellAddrBiff8 splits a BIFF8 row and column field. With reldelta,
// relative parts are decoded as signed offsets.
func AdjustCellAddrBiff8(rowval, colval int, reldelta bool) CellAddr {
	a := CellAddr{
		Row:    rowval,
		Col:    colval & 0xFF,
		RowRel: colval&0x8000 != 0,
		ColRel: colval&0x4000 != 0,
	}
	if reldelta {
		if a.RowRel && a.Row >= 32768 {
			a.Row -= 65536
		}
		if a.ColRel && a.Col >= 128 {
			a.Col -= 256
		}
	}
	return a
}

func (a CellAddr) fields() (uint16, uint16) {
	col := uint16(a.Col) & 0xFF
	if a.RowRel {
		col |= 0x8000
	}
	if a.ColRel {
		col |= 0x4000
	}
	return uint16(a.Row), col
}

// RefToken is a cell or area reference found in a token array.
type RefToken struct {
	Pos         int  // offset of the token id in rgce
	Op          byte // token id as stored
	Area        bool
	Sheet3D     bool
	Ixti        int // EXTERNSHEET index of 3-D tokens
	RelOffsets  bool
	First, Last CellAddr
}

// GetCellAddr reads a tRef style row/col pair at pos.
func GetCellAddr(data []byte, pos int, reldelta bool) CellAddr {
	le := binary.LittleEndian
	return AdjustCellAddrBiff8(int(le.Uint16(data[pos:])), int(le.Uint16(data[pos+2:])), reldelta)
}

// GetCellRangeAddr reads a tArea style rectangle at pos.
func GetCellRangeAddr(data []byte, pos int, reldelta bool) (CellAddr, CellAddr) {
	le := binary.LittleEndian
	r1, r2 := int(le.Uint16(data[pos:])), int(le.Uint16(data[pos+2:]))
	c1, c2 := int(le.Uint16(data[pos+4:])), int(le.Uint16(data[pos+6:]))
	return AdjustCellAddrBiff8(r1, c1, reldelta), AdjustCellAddrBiff8(r2, c2, reldelta)
}

// RefTokens lists every live reference token of rgce. Error tokens
// (tRefErr and friends) are skipped.
func RefTokens(rgce []byte) ([]RefToken, error) {
	var out []RefToken
	err := WalkTokens(rgce, func(pos int, op byte) error {
		t := RefToken{Pos: pos, Op: op}
		le := binary.LittleEndian
		switch baseToken(op) {
		case ptgRef:
			t.First = GetCellAddr(rgce, pos+1, false)
			t.Last = t.First
		case ptgRefN:
			t.RelOffsets = true
			t.First = GetCellAddr(rgce, pos+1, true)
			t.Last = t.First
		case ptgArea:
			t.Area = true
			t.First, t.Last = GetCellRangeAddr(rgce, pos+1, false)
		case ptgAreaN:
			t.Area, t.RelOffsets = true, true
			t.First, t.Last = GetCellRangeAddr(rgce, pos+1, true)
		case ptgRef3d:
			t.Sheet3D = true
			t.Ixti = int(le.Uint16(rgce[pos+1:]))
			t.First = GetCellAddr(rgce, pos+3, false)
			t.Last = t.First
		case ptgArea3d:
			t.Area, t.Sheet3D = true, true
			t.Ixti = int(le.Uint16(rgce[pos+1:]))
			t.First, t.Last = GetCellRangeAddr(rgce, pos+3, false)
		default:
			return nil
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

// Write stores the corners of t back into rgce.
func (t RefToken) Write(rgce []byte) {
	le := binary.LittleEndian
	at := t.Pos + 1
	if t.Sheet3D {
		le.PutUint16(rgce[at:], uint16(t.Ixti))
		at += 2
	}
	r1, c1 := t.First.fields()
	if !t.Area {
		le.PutUint16(rgce[at:], r1)
		le.PutUint16(rgce[at+2:], c1)
		return
	}
	r2, c2 := t.Last.fields()
	le.PutUint16(rgce[at:], r1)
	le.PutUint16(rgce[at+2:], r2)
	le.PutUint16(rgce[at+4:], c1)
	le.PutUint16(rgce[at+6:], c2)
}

// Break turns the reference token at t.Pos into the #REF! token of the
// same size and class. 3-D tokens keep their sheet index.
func (t RefToken) Break(rgce []byte) {
	var errBase byte
	switch baseToken(t.Op) {
	case ptgRef, ptgRefN:
		errBase = ptgRefErr
	case ptgArea, ptgAreaN:
		errBase = ptgAreaErr
	case ptgRef3d:
		errBase = ptgRefErr3d
	case ptgArea3d:
		errBase = ptgAreaErr3d
	default:
		return
	}
	rgce[t.Pos] = errBase&0x1F | t.Op&0x60
	start := t.Pos + 1
	if t.Sheet3D {
		start += 2
	}
	size := ptgSize[errBase]
	for i := start; i < t.Pos+size; i++ {
		rgce[i] = 0
	}
}

// ExpAnchor returns the anchor cell of a tExp token array, the form a
// FORMULA record takes when it shows a shared or array formula.
func ExpAnchor(rgce []byte) (row, col int, ok bool) {
	if len(rgce) < 5 || baseToken(rgce[0]) != ptgExp {
		return 0, 0, false
	}
	return int(binary.LittleEndian.Uint16(rgce[1:])), int(binary.LittleEndian.Uint16(rgce[3:])), true
}

// ExpTokens builds the tExp token array pointing at an anchor cell.
func ExpTokens(row, col int) []byte {
	b := []byte{ptgExp, 0, 0, 0, 0}
	binary.LittleEndian.PutUint16(b[1:], uint16(row))
	binary.LittleEndian.PutUint16(b[3:], uint16(col))
	return b
}

// Absolutize converts the relative-offset tokens of a shared formula into
// the standalone form used by a FORMULA record at (row, col): tRefN and
// tAreaN become tRef and tArea of the same class, and the relative parts of
// 3-D tokens are resolved in place.
func Absolutize(rgce []byte, row, col int) ([]byte, error) {
	out := append([]byte{}, rgce...)
	refs, err := RefTokens(out)
	if err != nil {
		return nil, err
	}
	for _, t := range refs {
		switch {
		case t.RelOffsets:
		case t.Sheet3D:
			// relative parts of 3-D tokens are offsets inside shared formulas
			t.First, t.Last = asOffset(t.First), asOffset(t.Last)
		default:
			continue
		}
		resolve := func(a CellAddr) CellAddr {
			if a.RowRel {
				a.Row = (row + a.Row) & 0xFFFF
			}
			if a.ColRel {
				a.Col = (col + a.Col) & 0xFF
			}
			return a
		}
		t.First, t.Last = resolve(t.First), resolve(t.Last)
		if t.RelOffsets {
			base := byte(ptgRef)
			if t.Area {
				base = ptgArea
			}
			t.Op = base&0x1F | t.Op&0x60
			out[t.Pos] = t.Op
			t.RelOffsets = false
		}
		t.Write(out)
	}
	return out, nil
}

func asOffset(a CellAddr) CellAddr {
	if a.RowRel && a.Row >= 32768 {
		a.Row -= 65536
	}
	if a.ColRel && a.Col >= 128 {
		a.Col -= 256
	}
	return a
}

// RefTokens3D builds a tRef3d or tArea3d token.
func RefTokens3D(ixti int, first, last CellAddr, area bool) []byte {
	t := RefToken{Op: ptgRef3d, Sheet3D: true, Ixti: ixti, First: first, Last: last, Area: area}
	size := 7
	if area {
		t.Op = ptgArea3d
		size = 11
	}
	b := make([]byte, size)
	b[0] = t.Op
	t.Write(b)
	return b
}

// HasRefError reports whether rgce holds a #REF! reference token.
func HasRefError(rgce []byte) bool {
	found := false
	_ = WalkTokens(rgce, func(_ int, op byte) error {
		switch baseToken(op) {
		case ptgRefErr, ptgAreaErr, ptgRefErr3d, ptgAreaErr3d:
			found = true
		}
		return nil
	})
	return found
}

// UsesNames reports whether rgce refers to a defined or external name.
func UsesNames(rgce []byte) bool {
	found := false
	_ = WalkTokens(rgce, func(_ int, op byte) error {
		if b := baseToken(op); b == ptgName || b == ptgNameX {
			found = true
		}
		return nil
	})
	return found
}
