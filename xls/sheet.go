package xls

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/google/btree"

	"github.com/yamitzky/xlbiff-go/biff"
	"github.com/yamitzky/xlbiff-go/refs"
)

// DefaultXF is the cell XF index of the default cell style.
const DefaultXF = 15

// rowBlockSize is the number of rows written per cell block.
const rowBlockSize = 32

type itemSlot int

const (
	itemRecord itemSlot = iota
	itemDimension
	itemCells
	itemMerges
	itemHyperlink
	itemColInfo
	itemNote
)

// sheetItem is one record of a sheet substream, or a slot regenerated on write.
type sheetItem struct {
	slot    itemSlot
	rec     biff.Record
	extra   []biff.Record // QUICKTIP records of a hyperlink
	ref     *refs.Ref
	owner   *tokenOwner
	dropped bool
}

// cell is the stored form of one logical cell.
type cell struct {
	row, col int
	rec      biff.Record // value record; formulas are encoded from f
	f        *biff.FormulaRecord
	str      *biff.Record // STRING record holding a formula's text result
	mulRun   int          // nonzero for cells read from one MULRK or MULBLANK
	owner    *tokenOwner
	shared   *sharedFormula
	array    *arrayFormula
}

func cellLess(a, b *cell) bool {
	if a.row != b.row {
		return a.row < b.row
	}
	return a.col < b.col
}

func newCellTree() *btree.BTreeG[*cell] {
	return btree.NewG(16, cellLess)
}

func (c *cell) xf() uint16 {
	if c.f != nil {
		return c.f.XF
	}
	if len(c.rec.Data) >= 6 {
		return binary.LittleEndian.Uint16(c.rec.Data[4:])
	}
	return DefaultXF
}

// relocate rewrites the stored position after a move.
func (c *cell) relocate(row, col int) {
	c.row, c.col = row, col
	if c.f != nil {
		c.f.Row, c.f.Col = row, col
		return
	}
	c.rec = biff.WithCol(biff.WithRow(c.rec, row), col)
}

func (c *cell) records() []biff.Record {
	if c.f == nil {
		return []biff.Record{c.rec}
	}
	out := []biff.Record{c.f.Record()}
	if g := c.shared; g != nil && g.group.Range.FirstRow == c.row && g.group.Range.FirstCol == c.col {
		out = append(out, g.record())
	}
	if a := c.array; a != nil && a.rng.FirstRow == c.row && a.rng.FirstCol == c.col {
		out = append(out, a.record())
	}
	if c.str != nil {
		out = append(out, *c.str)
	}
	return out
}

// Sheet contains the data for one worksheet, chart sheet or macro sheet.
//
// In the cell access functions, rowx is a row index, counting from zero,
// and colx is a column index, counting from zero.
//
// You don't instantiate this type yourself. You access Sheet objects via
// the Book they belong to.
type Sheet struct {
	// Name is the name of the sheet.
	Name string

	// Visibility: 0 = visible, 1 = hidden, 2 = "very hidden".
	Visibility byte

	book  *Book
	index int
	kind  byte   // BOUNDSHEET sheet type
	bof   uint16 // BOF substream type

	items  []*sheetItem
	cells  *btree.BTreeG[*cell]
	rows   map[int]biff.Record
	merges []*refs.Ref
	shared []*sharedFormula
	arrays []*arrayFormula
}

// Book returns the workbook the sheet belongs to.
func (s *Sheet) Book() *Book { return s.book }

// Index returns the position of the sheet in its workbook.
func (s *Sheet) Index() int { return s.index }

// IsWorksheet reports a sheet that holds cells.
func (s *Sheet) IsWorksheet() bool { return s.bof == biff.XL_WORKSHEET }

func (b *Book) parseSheet(index int, bs *biff.BoundSheetRecord, recs []biff.Record) (*Sheet, error) {
	s := &Sheet{
		Name:       bs.Name,
		Visibility: bs.Visibility,
		book:       b,
		index:      index,
		kind:       bs.Type,
		cells:      newCellTree(),
		rows:       make(map[int]biff.Record),
	}
	if len(recs) > 0 {
		if _, dt, err := biff.BOFType(recs[0].Data); err == nil {
			s.bof = dt
		}
	}
	var (
		lastFormula *cell
		lastLink    *sheetItem
		haveCells   bool
		haveMerges  bool
		depth       int
		mulRuns     int
	)
	add := func(it *sheetItem) { s.items = append(s.items, it) }
	for i, rec := range recs {
		if i > 0 && rec.Opcode == biff.XL_BOF {
			depth++
		}
		if depth > 0 {
			// embedded chart substream
			it := &sheetItem{rec: rec}
			if rec.Opcode == biff.XL_CHBRAI {
				if err := s.chartRef(it); err != nil {
					return nil, err
				}
			}
			if rec.Opcode == biff.XL_EOF {
				depth--
			}
			add(it)
			continue
		}
		if rec.Opcode != biff.XL_QUICKTIP {
			lastLink = nil
		}
		switch {
		case rec.Opcode == biff.XL_INDEX || rec.Opcode == biff.XL_DBCELL:
		case rec.Opcode == biff.XL_DIMENSION:
			add(&sheetItem{slot: itemDimension, rec: rec})
		case rec.Opcode == biff.XL_ROW:
			if !haveCells {
				haveCells = true
				add(&sheetItem{slot: itemCells})
			}
			row, _ := biff.RowOf(rec)
			s.rows[row] = rec
		case biff.IsCellOpcode(rec.Opcode):
			if !haveCells {
				haveCells = true
				add(&sheetItem{slot: itemCells})
			}
			singles, err := biff.ExpandMul(rec)
			if err != nil {
				return nil, err
			}
			run := 0
			if rec.Opcode == biff.XL_MULRK || rec.Opcode == biff.XL_MULBLANK {
				mulRuns++
				run = mulRuns
			}
			for _, r := range singles {
				c := &cell{rec: r, mulRun: run}
				c.row, _ = biff.RowOf(r)
				c.col, _ = biff.ColOf(r)
				if r.Opcode == biff.XL_FORMULA {
					f, err := biff.DecodeFormula(r.Data)
					if err != nil {
						return nil, err
					}
					c.f, c.rec = f, biff.Record{Opcode: biff.XL_FORMULA}
					lastFormula = c
				} else {
					lastFormula = nil
				}
				s.cells.ReplaceOrInsert(c)
			}
		case rec.Opcode == biff.XL_STRING:
			if lastFormula != nil {
				r := rec.Clone()
				lastFormula.str = &r
			}
		case rec.Opcode == biff.XL_SHRFMLA:
			sf, err := biff.DecodeSharedFormula(rec.Data)
			if err != nil {
				return nil, err
			}
			s.shared = append(s.shared, &sharedFormula{
				group: refs.SharedGroup{Sheet: index, Range: areaOf(sf.FirstRow, sf.LastRow, sf.FirstCol, sf.LastCol), Tokens: sf.Tokens},
				rec:   sf,
			})
		case rec.Opcode == biff.XL_ARRAY:
			ar, err := biff.DecodeArray(rec.Data)
			if err != nil {
				return nil, err
			}
			s.arrays = append(s.arrays, &arrayFormula{rng: rangeArea(ar.Range), arr: ar})
		case rec.Opcode == biff.XL_TABLEOP:
			r, err := biff.RefURange(rec.Data)
			if err != nil {
				return nil, err
			}
			s.arrays = append(s.arrays, &arrayFormula{rng: rangeArea(r), raw: rec.Clone()})
		case rec.Opcode == biff.XL_MERGEDCELLS:
			ranges, err := biff.DecodeMergedCells(rec.Data)
			if err != nil {
				return nil, err
			}
			for _, r := range ranges {
				s.merges = append(s.merges, &refs.Ref{Kind: refs.KindMerge, Sheet: index, Area: rangeArea(r)})
			}
			if !haveMerges {
				haveMerges = true
				add(&sheetItem{slot: itemMerges, rec: rec})
			}
		case rec.Opcode == biff.XL_HLINK:
			r, err := biff.HyperlinkRange(rec.Data)
			if err != nil {
				return nil, err
			}
			it := &sheetItem{slot: itemHyperlink, rec: rec.Clone()}
			it.ref = &refs.Ref{Kind: refs.KindHyperlink, Sheet: index, Area: rangeArea(r), Target: hyperlinkTarget(it)}
			add(it)
			lastLink = it
		case rec.Opcode == biff.XL_QUICKTIP && lastLink != nil:
			lastLink.extra = append(lastLink.extra, rec)
		case rec.Opcode == biff.XL_COLINFO:
			add(&sheetItem{slot: itemColInfo, rec: rec.Clone()})
		case rec.Opcode == biff.XL_NOTE:
			add(&sheetItem{slot: itemNote, rec: rec.Clone()})
		case rec.Opcode == biff.XL_CHBRAI:
			it := &sheetItem{rec: rec}
			if err := s.chartRef(it); err != nil {
				return nil, err
			}
			add(it)
		default:
			add(&sheetItem{rec: rec})
		}
	}
	if s.bof == biff.XL_WORKSHEET {
		if !haveCells {
			s.insertItem(s.cellsPosition(), &sheetItem{slot: itemCells})
		}
		if !haveMerges {
			s.insertItem(s.mergesPosition(), &sheetItem{slot: itemMerges, rec: biff.Record{Opcode: biff.XL_MERGEDCELLS}})
		}
	}
	s.linkAnchors()
	b.tracef("xls: sheet %q: %d cells, %d rows, %d shared formulas, %d arrays, %d merges",
		s.Name, s.cells.Len(), len(s.rows), len(s.shared), len(s.arrays), len(s.merges))
	return s, nil
}

func (s *Sheet) insertItem(at int, it *sheetItem) {
	s.items = append(s.items, nil)
	copy(s.items[at+1:], s.items[at:])
	s.items[at] = it
}

// topLevel lists the item positions outside embedded chart substreams.
func (s *Sheet) topLevel() []int {
	var out []int
	depth := 0
	for i, it := range s.items {
		if i > 0 && it.slot == itemRecord && it.rec.Opcode == biff.XL_BOF {
			depth++
		}
		if depth == 0 {
			out = append(out, i)
		} else if it.rec.Opcode == biff.XL_EOF {
			depth--
		}
	}
	return out
}

// cellsPosition places an empty cell table after DIMENSION, else before
// WINDOW2, else before EOF.
func (s *Sheet) cellsPosition() int {
	top := s.topLevel()
	for _, i := range top {
		if s.items[i].slot == itemDimension {
			return i + 1
		}
	}
	for _, i := range top {
		if s.items[i].rec.Opcode == biff.XL_WINDOW2 {
			return i
		}
	}
	return len(s.items) - 1
}

// mergesPosition places MERGEDCELLS after the window settings block.
func (s *Sheet) mergesPosition() int {
	at := -1
	for _, i := range s.topLevel() {
		switch s.items[i].rec.Opcode {
		case biff.XL_WINDOW2, biff.XL_SCL, biff.XL_PANE, biff.XL_SELECTION:
			at = i + 1
		}
	}
	if at < 0 {
		return len(s.items) - 1
	}
	return at
}

// linkAnchors connects formula cells holding a tExp token to the shared or
// array formula they display.
func (s *Sheet) linkAnchors() {
	type key struct{ row, col int }
	shared := make(map[key]*sharedFormula)
	for _, g := range s.shared {
		shared[key{g.group.Range.FirstRow, g.group.Range.FirstCol}] = g
	}
	arrays := make(map[key]*arrayFormula)
	for _, a := range s.arrays {
		arrays[key{a.rng.FirstRow, a.rng.FirstCol}] = a
	}
	s.cells.Ascend(func(c *cell) bool {
		if c.f == nil {
			return true
		}
		row, col, ok := biff.ExpAnchor(c.f.Tokens)
		if !ok {
			return true
		}
		if g := shared[key{row, col}]; g != nil && g.group.Range.Contains(c.row, c.col) {
			c.shared = g
		} else if a := arrays[key{row, col}]; a != nil && a.rng.Contains(c.row, c.col) {
			c.array = a
		} else {
			s.book.warnf("sheet %q: cell %s refers to missing formula at %s",
				s.Name, refs.Cell(c.row, c.col), refs.Cell(row, col))
		}
		return true
	})
}

// register hands every reference of the sheet to the tracker.
func (s *Sheet) register() {
	b := s.book
	s.cells.Ascend(func(c *cell) bool {
		if c.f != nil && c.shared == nil && c.array == nil {
			c.owner = s.formulaOwner(c)
			b.track(c.owner)
		}
		return true
	})
	for _, a := range s.arrays {
		if a.arr != nil {
			a.owner = &tokenOwner{kind: refs.KindFormula, sheet: s.index, tokens: &a.arr.Tokens}
			b.track(a.owner)
		}
	}
	for _, m := range s.merges {
		b.register(m)
	}
	for _, it := range s.items {
		switch {
		case it.ref != nil:
			b.register(it.ref)
		case it.owner != nil:
			b.track(it.owner)
		}
	}
}

func (s *Sheet) formulaOwner(c *cell) *tokenOwner {
	return &tokenOwner{kind: refs.KindFormula, sheet: s.index, tokens: &c.f.Tokens}
}

func (s *Sheet) chartRef(it *sheetItem) error {
	cr, err := biff.DecodeChartRef(it.rec.Data)
	if err != nil {
		return err
	}
	if cr.RefType != biff.BraiWorksheet || len(cr.Tokens) == 0 {
		return nil
	}
	it.owner = &tokenOwner{
		kind:   refs.KindChart,
		sheet:  s.index,
		tokens: &cr.Tokens,
		sync:   func() { it.rec = cr.Record() },
	}
	return nil
}

func hyperlinkTarget(it *sheetItem) refs.Target {
	return refs.TargetFunc(func(r *refs.Ref) {
		if r.Broken {
			it.dropped = true
			return
		}
		biff.SetHyperlinkRange(it.rec.Data, cellRange(r.Area))
	})
}

func areaOf(r1, r2, c1, c2 int) refs.Area {
	return refs.Area{FirstRow: min(r1, r2), LastRow: max(r1, r2), FirstCol: min(c1, c2), LastCol: max(c1, c2)}
}

func rangeArea(r biff.CellRange) refs.Area {
	return areaOf(r.FirstRow, r.LastRow, r.FirstCol, r.LastCol)
}

func cellRange(a refs.Area) biff.CellRange {
	return biff.CellRange{FirstRow: a.FirstRow, LastRow: a.LastRow, FirstCol: a.FirstCol, LastCol: a.LastCol}
}

// records encodes the sheet substream.
func (s *Sheet) records() ([]biff.Record, error) {
	var out []biff.Record
	for _, it := range s.items {
		if it.dropped {
			continue
		}
		switch it.slot {
		case itemDimension:
			out = append(out, s.dimension())
		case itemCells:
			out = append(out, s.cellRecords()...)
		case itemMerges:
			var ranges []biff.CellRange
			for _, m := range s.merges {
				if !m.Broken && !m.Area.Single() {
					ranges = append(ranges, cellRange(m.Area))
				}
			}
			out = append(out, biff.MergedCellsRecords(ranges)...)
		case itemHyperlink:
			if it.ref != nil && it.ref.Broken {
				continue
			}
			out = append(out, it.rec)
			out = append(out, it.extra...)
		default:
			out = append(out, it.rec)
		}
	}
	return out, nil
}

func (s *Sheet) dimension() biff.Record {
	if s.cells.Len() == 0 {
		return biff.DimensionRecord(0, 0, 0, 0)
	}
	first, _ := s.cells.Min()
	last, _ := s.cells.Max()
	minCol, maxCol := refs.MaxCol, 0
	s.cells.Ascend(func(c *cell) bool {
		minCol, maxCol = min(minCol, c.col), max(maxCol, c.col)
		return true
	})
	return biff.DimensionRecord(first.row, last.row+1, minCol, maxCol+1)
}

// cellRecords writes rows in blocks of 32: the ROW records of a block
// followed by its cells.
func (s *Sheet) cellRecords() []biff.Record {
	rowNums := make([]int, 0, len(s.rows))
	for r := range s.rows {
		rowNums = append(rowNums, r)
	}
	sort.Ints(rowNums)
	var cells []*cell
	s.cells.Ascend(func(c *cell) bool {
		cells = append(cells, c)
		return true
	})
	var out []biff.Record
	for len(rowNums) > 0 || len(cells) > 0 {
		block := math.MaxInt
		if len(rowNums) > 0 {
			block = rowNums[0] / rowBlockSize
		}
		if len(cells) > 0 {
			block = min(block, cells[0].row/rowBlockSize)
		}
		for len(rowNums) > 0 && rowNums[0]/rowBlockSize == block {
			out = append(out, s.rows[rowNums[0]])
			rowNums = rowNums[1:]
		}
		for len(cells) > 0 && cells[0].row/rowBlockSize == block {
			n := 1
			if run := cells[0].mulRun; run != 0 {
				for n < len(cells) && cells[n].mulRun == run {
					n++
				}
			}
			if n == 1 {
				out = append(out, cells[0].records()...)
			} else {
				singles := make([]biff.Record, n)
				for i, c := range cells[:n] {
					singles[i] = c.rec
				}
				out = append(out, biff.CollapseMul(singles)...)
			}
			cells = cells[n:]
		}
	}
	return out
}

func (s *Sheet) find(rowx, colx int) *cell {
	c, _ := s.cells.Get(&cell{row: rowx, col: colx})
	return c
}

// Dimensions returns the number of rows and columns in use: one more than
// the largest row and column index holding a cell.
func (s *Sheet) Dimensions() (nrows, ncols int) {
	if last, ok := s.cells.Max(); ok {
		nrows = last.row + 1
	}
	s.cells.Ascend(func(c *cell) bool {
		ncols = max(ncols, c.col+1)
		return true
	})
	return nrows, ncols
}

// NCells returns the number of stored cells.
func (s *Sheet) NCells() int { return s.cells.Len() }

// Merges returns the live merged ranges.
func (s *Sheet) Merges() []refs.Area {
	var out []refs.Area
	for _, m := range s.merges {
		if !m.Broken {
			out = append(out, m.Area)
		}
	}
	return out
}

// MergeCells merges the cells of area.
func (s *Sheet) MergeCells(area refs.Area) error {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	if !area.Valid() || area.Single() {
		return NewXLSError("cannot merge %s", area)
	}
	for _, m := range s.merges {
		if !m.Broken && overlaps(m.Area, area) {
			return NewXLSError("%s overlaps merged range %s", area, m.Area)
		}
	}
	m := &refs.Ref{Kind: refs.KindMerge, Sheet: s.index, Area: area}
	if err := s.book.tracker.Register(m); err != nil {
		return err
	}
	s.merges = append(s.merges, m)
	return nil
}

func overlaps(a, b refs.Area) bool {
	return a.FirstRow <= b.LastRow && b.FirstRow <= a.LastRow && a.FirstCol <= b.LastCol && b.FirstCol <= a.LastCol
}

// Cell is a snapshot of one cell. Sheet is a back-reference to the sheet
// the cell was read from.
type Cell struct {
	Sheet *Sheet
	Row   int
	Col   int

	// Kind is the type of the cell; formula cells report biff.CellFormula.
	Kind biff.CellKind

	// Value is a float64, string or bool, the error text of an error
	// cell, or the cached result of a formula. It is nil for empty cells.
	Value interface{}

	// XFIndex is the index of the XF record for this cell.
	XFIndex int
}

// Name returns the A1 name of the cell.
func (c *Cell) Name() string { return refs.Cell(c.Row, c.Col).String() }

// Formula renders the formula of a formula cell.
func (c *Cell) Formula() (string, error) { return c.Sheet.Formula(c.Row, c.Col) }

// Cell returns the cell at rowx, colx. Missing cells come back with Kind
// biff.CellEmpty.
func (s *Sheet) Cell(rowx, colx int) *Cell {
	out := &Cell{Sheet: s, Row: rowx, Col: colx, Kind: biff.CellEmpty, XFIndex: DefaultXF}
	c := s.find(rowx, colx)
	if c == nil {
		return out
	}
	out.XFIndex = int(c.xf())
	if c.f != nil {
		out.Kind = biff.CellFormula
		out.Value = formulaResult(c)
		return out
	}
	cells, err := biff.Cells(c.rec)
	if err != nil || len(cells) == 0 {
		s.book.warnf("sheet %q: cell %s: %v", s.Name, out.Name(), err)
		return out
	}
	bc := cells[0]
	out.Kind = bc.Kind
	switch bc.Kind {
	case biff.CellNumber:
		out.Value = bc.Number
	case biff.CellText:
		out.Value = bc.Text
		if bc.SST >= 0 {
			str, err := s.book.sst.Get(bc.SST)
			if err != nil {
				s.book.warnf("sheet %q: cell %s: %v", s.Name, out.Name(), err)
			}
			out.Value = str
		}
	case biff.CellBool:
		out.Value = bc.Bool
	case biff.CellError:
		out.Value = biff.ErrorTextFromCode[bc.ErrCode]
	}
	return out
}

func formulaResult(c *cell) interface{} {
	r := c.f.Result
	if r[6] != 0xFF || r[7] != 0xFF {
		return math.Float64frombits(binary.LittleEndian.Uint64(r[:]))
	}
	switch r[0] {
	case 0:
		if c.str != nil {
			if s, _, err := biff.UnpackUnicode(c.str.Data, 0, 2); err == nil {
				return s
			}
		}
		return ""
	case 1:
		return r[2] != 0
	case 2:
		return biff.ErrorTextFromCode[r[2]]
	}
	return ""
}

// CellValue returns the value of the cell at rowx, colx.
func (s *Sheet) CellValue(rowx, colx int) interface{} {
	return s.Cell(rowx, colx).Value
}

// Row returns the stored cells of row rowx in column order.
func (s *Sheet) Row(rowx int) []*Cell {
	var out []*Cell
	s.cells.AscendRange(&cell{row: rowx}, &cell{row: rowx + 1}, func(c *cell) bool {
		out = append(out, s.Cell(c.row, c.col))
		return true
	})
	return out
}

// Formula renders the formula of the cell at rowx, colx without the
// leading equals sign. Array formulas are wrapped in braces.
func (s *Sheet) Formula(rowx, colx int) (string, error) {
	c := s.find(rowx, colx)
	if c == nil || c.f == nil {
		return "", NewXLSError("cell %s holds no formula", refs.Cell(rowx, colx))
	}
	opts := s.book.textOptions(rowx, colx)
	switch {
	case c.shared != nil:
		return biff.FormulaText(c.shared.group.Tokens, opts)
	case c.array != nil && c.array.arr != nil:
		text, err := biff.FormulaText(c.array.arr.Tokens, opts)
		if err != nil {
			return "", err
		}
		return "{=" + text + "}", nil
	}
	return biff.FormulaText(c.f.Tokens, opts)
}

func checkCell(rowx, colx int) error {
	if rowx < 0 || rowx > refs.MaxRow || colx < 0 || colx > refs.MaxCol {
		return NewXLSError("cell (%d, %d) lies outside the sheet", rowx, colx)
	}
	return nil
}

// put stores a new cell at rowx, colx keeping the XF of the cell it
// replaces. A replaced formula stops being tracked; a replaced member of a
// shared formula turns the group into standalone formulas first.
func (s *Sheet) put(rowx, colx int, build func(xf uint16) (*cell, error)) error {
	b := s.book
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := checkCell(rowx, colx); err != nil {
		return err
	}
	if !s.IsWorksheet() {
		return NewXLSError("sheet %q holds no cells", s.Name)
	}
	xf := uint16(DefaultXF)
	old := s.find(rowx, colx)
	if old != nil {
		if old.array != nil {
			return ErrArrayPart
		}
		if old.shared != nil {
			if err := s.unshare(old.shared); err != nil {
				return err
			}
		}
		xf = old.xf()
	}
	c, err := build(xf)
	if err != nil {
		return err
	}
	if old != nil {
		b.untrack(old.owner)
		s.cells.Delete(old)
	}
	c.row, c.col = rowx, colx
	s.cells.ReplaceOrInsert(c)
	if c.owner != nil {
		b.track(c.owner)
	}
	return nil
}

// SetNumber stores a number, as an RK cell when it has an RK form.
func (s *Sheet) SetNumber(rowx, colx int, v float64) error {
	return s.put(rowx, colx, func(xf uint16) (*cell, error) {
		rec, ok := biff.RKRecord(rowx, colx, xf, v)
		if !ok {
			rec = biff.NumberRecord(rowx, colx, xf, v)
		}
		return &cell{rec: rec}, nil
	})
}

// SetString stores a string through the shared string table.
func (s *Sheet) SetString(rowx, colx int, str string) error {
	return s.put(rowx, colx, func(xf uint16) (*cell, error) {
		idx, err := s.book.sst.Add(str)
		if err != nil {
			return nil, err
		}
		return &cell{rec: biff.LabelSSTRecord(rowx, colx, xf, idx)}, nil
	})
}

// SetBool stores a boolean.
func (s *Sheet) SetBool(rowx, colx int, v bool) error {
	return s.put(rowx, colx, func(xf uint16) (*cell, error) {
		var b byte
		if v {
			b = 1
		}
		return &cell{rec: biff.BoolErrRecord(rowx, colx, xf, b, false)}, nil
	})
}

// SetError stores an error value given as text, such as "#N/A".
func (s *Sheet) SetError(rowx, colx int, text string) error {
	code, ok := biff.ErrorCodeFromText[text]
	if !ok {
		return NewXLSError("unknown error value %q", text)
	}
	return s.put(rowx, colx, func(xf uint16) (*cell, error) {
		return &cell{rec: biff.BoolErrRecord(rowx, colx, xf, code, true)}, nil
	})
}

// SetBlank stores a formatted empty cell.
func (s *Sheet) SetBlank(rowx, colx int) error {
	return s.put(rowx, colx, func(xf uint16) (*cell, error) {
		return &cell{rec: biff.BlankRecord(rowx, colx, xf)}, nil
	})
}

// SetFormulaTokens stores a formula given as a BIFF8 token array. Excel
// recalculates it on load.
func (s *Sheet) SetFormulaTokens(rowx, colx int, rgce []byte) error {
	if err := biff.WalkTokens(rgce, func(int, byte) error { return nil }); err != nil {
		return err
	}
	if _, _, ok := biff.ExpAnchor(rgce); ok {
		return NewXLSError("shared and array formulas cannot be stored directly")
	}
	return s.put(rowx, colx, func(xf uint16) (*cell, error) {
		f := &biff.FormulaRecord{Row: rowx, Col: colx, XF: xf, Flags: formulaCalcOnLoad, Tokens: append([]byte{}, rgce...)}
		c := &cell{f: f, rec: biff.Record{Opcode: biff.XL_FORMULA}}
		c.owner = s.formulaOwner(c)
		return c, nil
	})
}

// formulaCalcOnLoad is the fCalcOnLoad bit of a FORMULA record.
const formulaCalcOnLoad = 0x0002

// Delete removes the cell at rowx, colx.
func (s *Sheet) Delete(rowx, colx int) error {
	b := s.book
	b.mu.Lock()
	defer b.mu.Unlock()
	c := s.find(rowx, colx)
	if c == nil {
		return nil
	}
	if c.array != nil {
		return ErrArrayPart
	}
	if c.shared != nil {
		if err := s.unshare(c.shared); err != nil {
			return err
		}
	}
	b.untrack(c.owner)
	s.cells.Delete(c)
	return nil
}

func (s *Sheet) String() string {
	nrows, ncols := s.Dimensions()
	return fmt.Sprintf("sheet %d %q (%d x %d)", s.index, s.Name, nrows, ncols)
}
