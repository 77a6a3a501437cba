package xls

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/yamitzky/xlbiff-go/biff"
)

// WINDOW2 option bits that only one sheet of a workbook may carry.
const (
	window2Selected = 0x0200
	window2Active   = 0x0400
)

func (b *Book) checkSheetName(name string) error {
	if name == "" || len([]rune(name)) > 31 {
		return NewXLSError("sheet name %q must be 1 to 31 characters long", name)
	}
	if strings.ContainsAny(name, `[]:*?/\`) {
		return NewXLSError("sheet name %q contains a forbidden character", name)
	}
	if _, dup := b.sheetIndex(name); dup {
		return NewXLSError("sheet name %q is already in use", name)
	}
	return nil
}

// reparse encodes recs and decodes them again so the new sheet shares no
// payload with the sheet it was copied from.
func reparse(recs []biff.Record) ([]biff.Record, error) {
	out, err := biff.ReadAll(biff.EncodeAll(recs))
	if err != nil {
		return nil, err
	}
	for i, rec := range out {
		out[i] = rec.Clone()
		if rec.Opcode == biff.XL_WINDOW2 && len(rec.Data) >= 2 {
			grbit := binary.LittleEndian.Uint16(rec.Data)
			binary.LittleEndian.PutUint16(out[i].Data, grbit&^(window2Selected|window2Active))
		}
	}
	return out, nil
}

func (b *Book) appendSheet(bs *biff.BoundSheetRecord, recs []biff.Record) (*Sheet, error) {
	s, err := b.parseSheet(len(b.sheets), bs, recs)
	if err != nil {
		return nil, err
	}
	b.sheets = append(b.sheets, s)
	s.register()
	return s, nil
}

// CopySheet appends a copy of sheet sheetx called name. Formulas, merged
// cells, hyperlinks and chart series of the copy refer to the copy;
// references to other sheets are kept. Names scoped to the sheet are not
// copied.
func (b *Book) CopySheet(sheetx int, name string) (*Sheet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	src, err := b.SheetByIndex(sheetx)
	if err != nil {
		return nil, err
	}
	if err := b.checkSheetName(name); err != nil {
		return nil, err
	}
	recs, err := src.records()
	if err != nil {
		return nil, err
	}
	if recs, err = reparse(recs); err != nil {
		return nil, err
	}
	s, err := b.appendSheet(&biff.BoundSheetRecord{Type: src.kind, Name: name}, recs)
	if err != nil {
		return nil, err
	}
	b.tracef("xls: copied sheet %q to %q", src.Name, name)
	return s, nil
}

// ImportSheet appends a copy of sheet sheetx of another workbook. Strings
// move into this workbook's shared string table, cell formats missing here
// fall back to the default format, and 3-D references are matched to sheets
// of the same name, becoming #REF! when there is none. Formulas using
// defined names are replaced by their last calculated values.
func (b *Book) ImportSheet(src *Book, sheetx int, name string) (*Sheet, error) {
	if src == b {
		return b.CopySheet(sheetx, name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	src.mu.Lock()
	defer src.mu.Unlock()

	from, err := src.SheetByIndex(sheetx)
	if err != nil {
		return nil, err
	}
	if err := b.checkSheetName(name); err != nil {
		return nil, err
	}
	recs, err := from.records()
	if err != nil {
		return nil, err
	}
	imp := &importer{dst: b, src: src, from: sheetx, to: len(b.sheets)}
	if recs, err = imp.convert(recs); err != nil {
		return nil, err
	}
	if recs, err = reparse(recs); err != nil {
		return nil, err
	}
	s, err := b.appendSheet(&biff.BoundSheetRecord{Type: from.kind, Name: name}, recs)
	if err != nil {
		return nil, err
	}
	b.tracef("xls: imported sheet %q as %q, %d formulas flattened", from.Name, name, imp.flattened)
	return s, nil
}

type importer struct {
	dst, src  *Book
	from, to  int
	flattened int
}

type anchor struct{ row, col int }

func (imp *importer) convert(recs []biff.Record) ([]biff.Record, error) {
	// groups whose formula uses names are flattened with their cells
	flat := make(map[anchor]bool)
	for _, rec := range recs {
		var tokens []byte
		switch rec.Opcode {
		case biff.XL_SHRFMLA:
			sf, err := biff.DecodeSharedFormula(rec.Data)
			if err != nil {
				return nil, err
			}
			tokens = sf.Tokens
		case biff.XL_ARRAY:
			ar, err := biff.DecodeArray(rec.Data)
			if err != nil {
				return nil, err
			}
			tokens = ar.Tokens
		default:
			continue
		}
		if biff.UsesNames(tokens) {
			r, _ := biff.RefURange(rec.Data)
			flat[anchor{r.FirstRow, r.FirstCol}] = true
		}
	}

	out := make([]biff.Record, 0, len(recs))
	for i := 0; i < len(recs); i++ {
		rec := recs[i].Clone()
		switch rec.Opcode {
		case biff.XL_FORMULA:
			f, err := biff.DecodeFormula(rec.Data)
			if err != nil {
				return nil, err
			}
			f.XF = imp.xf(f.XF)
			flatten := biff.UsesNames(f.Tokens)
			if row, col, ok := biff.ExpAnchor(f.Tokens); ok {
				flatten = flat[anchor{row, col}]
			}
			if !flatten {
				if err := imp.remap(f.Tokens); err != nil {
					return nil, err
				}
				out = append(out, f.Record())
				continue
			}
			var str []byte
			for i+1 < len(recs) {
				next := recs[i+1].Opcode
				if next != biff.XL_SHRFMLA && next != biff.XL_ARRAY && next != biff.XL_STRING {
					break
				}
				i++
				if next == biff.XL_STRING {
					str = recs[i].Data
				}
			}
			v, err := imp.value(f, str)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			imp.flattened++
		case biff.XL_SHRFMLA:
			sf, err := biff.DecodeSharedFormula(rec.Data)
			if err != nil {
				return nil, err
			}
			if err := imp.remap(sf.Tokens); err != nil {
				return nil, err
			}
			out = append(out, sf.Record())
		case biff.XL_ARRAY:
			ar, err := biff.DecodeArray(rec.Data)
			if err != nil {
				return nil, err
			}
			if err := imp.remap(ar.Tokens); err != nil {
				return nil, err
			}
			out = append(out, ar.Record())
		case biff.XL_CHBRAI:
			cr, err := biff.DecodeChartRef(rec.Data)
			if err != nil {
				return nil, err
			}
			if cr.RefType == biff.BraiWorksheet {
				if err := imp.remap(cr.Tokens); err != nil {
					return nil, err
				}
			}
			out = append(out, cr.Record())
		case biff.XL_LABELSST:
			if len(rec.Data) < 10 {
				return nil, biff.ErrTruncated
			}
			str, err := imp.src.sst.Get(int(binary.LittleEndian.Uint32(rec.Data[6:])))
			if err != nil {
				return nil, err
			}
			idx, err := imp.dst.sst.Add(str)
			if err != nil {
				return nil, err
			}
			binary.LittleEndian.PutUint32(rec.Data[6:], uint32(idx))
			imp.clampXF(rec.Data, 4, 0xFFFF)
			out = append(out, rec)
		case biff.XL_COLINFO:
			imp.clampXF(rec.Data, 6, 0xFFFF)
			out = append(out, rec)
		case biff.XL_ROW:
			imp.clampXF(rec.Data, 14, 0x0FFF)
			out = append(out, rec)
		default:
			if biff.IsCellOpcode(rec.Opcode) {
				imp.clampXF(rec.Data, 4, 0xFFFF)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (imp *importer) xf(xf uint16) uint16 {
	if int(xf) >= imp.dst.numXF {
		return DefaultXF
	}
	return xf
}

// clampXF rewrites the XF index stored under mask at off.
func (imp *importer) clampXF(d []byte, off int, mask uint16) {
	if len(d) < off+2 {
		return
	}
	v := binary.LittleEndian.Uint16(d[off:])
	xf := imp.xf(v & mask)
	binary.LittleEndian.PutUint16(d[off:], v&^mask|xf)
}

// remap points the 3-D tokens of rgce at the destination workbook.
func (imp *importer) remap(rgce []byte) error {
	toks, err := biff.RefTokens(rgce)
	if err != nil {
		return err
	}
	for _, tk := range toks {
		if !tk.Sheet3D {
			continue
		}
		sheet := imp.src.xtiSheet(tk.Ixti)
		switch {
		case sheet == imp.from:
			sheet = imp.to
		case sheet >= 0:
			sheet, _ = imp.dst.sheetIndex(imp.src.sheets[sheet].Name)
		}
		if sheet < 0 {
			tk.Break(rgce)
			continue
		}
		tk.Ixti = imp.dst.ensureXTI(sheet)
		tk.Write(rgce)
	}
	return nil
}

// value turns a formula into a cell holding its cached result.
func (imp *importer) value(f *biff.FormulaRecord, str []byte) (biff.Record, error) {
	r := f.Result
	if r[6] != 0xFF || r[7] != 0xFF {
		v := math.Float64frombits(binary.LittleEndian.Uint64(r[:]))
		return biff.NumberRecord(f.Row, f.Col, f.XF, v), nil
	}
	switch r[0] {
	case 1:
		return biff.BoolErrRecord(f.Row, f.Col, f.XF, r[2], false), nil
	case 2:
		return biff.BoolErrRecord(f.Row, f.Col, f.XF, r[2], true), nil
	}
	text := ""
	if r[0] == 0 && str != nil {
		s, _, err := biff.UnpackUnicode(str, 0, 2)
		if err != nil {
			return biff.Record{}, err
		}
		text = s
	}
	idx, err := imp.dst.sst.Add(text)
	if err != nil {
		return biff.Record{}, err
	}
	return biff.LabelSSTRecord(f.Row, f.Col, f.XF, idx), nil
}
