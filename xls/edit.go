package xls

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/yamitzky/xlbiff-go/biff"
	"github.com/yamitzky/xlbiff-go/refs"
)

// InsertRows inserts n empty rows on sheet sheetx. With refs.ModeGeneric
// the new rows start at pivot; with refs.ModeExcel they go below it.
// References into the sheet from anywhere in the workbook are updated
// before the rows move.
func (b *Book) InsertRows(sheetx, pivot, n int) error {
	return b.shift(sheetx, refs.Rows, pivot, n)
}

// DeleteRows deletes the n rows starting at pivot. References to deleted
// cells become #REF!.
func (b *Book) DeleteRows(sheetx, pivot, n int) error {
	return b.shift(sheetx, refs.Rows, pivot, -n)
}

// InsertColumns inserts n empty columns, like InsertRows.
func (b *Book) InsertColumns(sheetx, pivot, n int) error {
	return b.shift(sheetx, refs.Columns, pivot, n)
}

// DeleteColumns deletes the n columns starting at pivot.
func (b *Book) DeleteColumns(sheetx, pivot, n int) error {
	return b.shift(sheetx, refs.Columns, pivot, -n)
}

func axisLimit(ax refs.Axis) int {
	if ax == refs.Columns {
		return refs.MaxCol
	}
	return refs.MaxRow
}

func axisOf(ax refs.Axis, row, col int) int {
	if ax == refs.Columns {
		return col
	}
	return row
}

func (b *Book) shift(sheetx int, axis refs.Axis, pivot, delta int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.SheetByIndex(sheetx)
	if err != nil {
		return err
	}
	if delta == 0 {
		return NewXLSError("count must be positive")
	}
	if !s.IsWorksheet() {
		return NewXLSError("sheet %q holds no cells", s.Name)
	}
	if pivot < 0 || pivot > axisLimit(axis) {
		return NewXLSError("pivot %d lies outside the sheet", pivot)
	}
	sh := refs.Shift{Sheet: sheetx, Axis: axis, Pivot: pivot, Delta: delta, Formulas: true, Mode: b.opts.InsertMode}
	if err := s.checkShift(sh); err != nil {
		return err
	}

	for _, t := range b.sheets {
		for _, g := range append([]*sharedFormula(nil), t.shared...) {
			err := refs.ShiftShared(&g.group, sh)
			switch {
			case errors.Is(err, refs.ErrUnshare):
				if err := t.unshare(g); err != nil {
					return err
				}
			case err != nil:
				return err
			}
		}
	}
	changed := b.tracker.Shift(sh)
	s.move(sh)
	if b.verbosity > 0 {
		verb := "inserted"
		if delta < 0 {
			verb = "deleted"
		}
		fmt.Fprintf(b.logfile, "xls: sheet %q: %s %d %s at %d, %d references changed\n",
			s.Name, verb, max(delta, -delta), axis, pivot, len(changed))
	}
	return nil
}

// checkShift refuses shifts that would resize an array formula or push
// cells past the last row or column.
func (s *Sheet) checkShift(sh refs.Shift) error {
	for _, a := range s.arrays {
		na, ok := sh.Apply(a.rng)
		if !ok {
			if sh.Delta > 0 {
				return ErrSheetFull
			}
			continue
		}
		if na.LastRow-na.FirstRow != a.rng.LastRow-a.rng.FirstRow || na.LastCol-na.FirstCol != a.rng.LastCol-a.rng.FirstCol {
			return fmt.Errorf("%w: %s", ErrArrayPart, a.rng)
		}
	}
	if sh.Delta < 0 {
		return nil
	}
	limit := axisLimit(sh.Axis)
	threshold := sh.Threshold()
	last := -1
	s.cells.Ascend(func(c *cell) bool {
		last = max(last, axisOf(sh.Axis, c.row, c.col))
		return true
	})
	if sh.Axis == refs.Rows {
		for row := range s.rows {
			last = max(last, row)
		}
	}
	if last >= threshold && last+sh.Delta > limit {
		return ErrSheetFull
	}
	return nil
}

// move relocates cells, rows, arrays, column settings and notes after the
// tracker has rewritten the references.
func (s *Sheet) move(sh refs.Shift) {
	b := s.book
	kept := s.arrays[:0]
	for _, a := range s.arrays {
		na, ok := sh.Apply(a.rng)
		if !ok {
			b.untrack(a.owner)
			continue
		}
		a.rng = na
		kept = append(kept, a)
	}
	s.arrays = kept

	var all []*cell
	s.cells.Ascend(func(c *cell) bool {
		all = append(all, c)
		return true
	})
	s.cells.Clear(false)
	for _, c := range all {
		x, ok := sh.Point(axisOf(sh.Axis, c.row, c.col))
		if !ok {
			b.untrack(c.owner)
			continue
		}
		if sh.Axis == refs.Rows {
			c.relocate(x, c.col)
		} else {
			c.relocate(c.row, x)
		}
		switch {
		case c.shared != nil:
			c.f.Tokens = biff.ExpTokens(c.shared.group.Range.FirstRow, c.shared.group.Range.FirstCol)
		case c.array != nil:
			c.f.Tokens = biff.ExpTokens(c.array.rng.FirstRow, c.array.rng.FirstCol)
		}
		s.cells.ReplaceOrInsert(c)
	}

	if sh.Axis == refs.Rows {
		rows := make(map[int]biff.Record, len(s.rows))
		for row, rec := range s.rows {
			if nr, ok := sh.Point(row); ok {
				rows[nr] = biff.WithRow(rec, nr)
			}
		}
		s.rows = rows
	}

	le := binary.LittleEndian
	for _, it := range s.items {
		switch {
		case it.slot == itemColInfo && sh.Axis == refs.Columns && len(it.rec.Data) >= 4:
			first, last, broken := sh.Span(int(le.Uint16(it.rec.Data)), int(le.Uint16(it.rec.Data[2:])))
			// settings running to the last column are cut there
			if broken && (sh.Delta < 0 || first > refs.MaxCol) {
				it.dropped = true
				continue
			}
			le.PutUint16(it.rec.Data, uint16(first))
			le.PutUint16(it.rec.Data[2:], uint16(min(last, refs.MaxCol)))
		case it.slot == itemNote && len(it.rec.Data) >= 4:
			row, col := int(le.Uint16(it.rec.Data)), int(le.Uint16(it.rec.Data[2:]))
			x, ok := sh.Point(axisOf(sh.Axis, row, col))
			if !ok {
				it.dropped = true
				continue
			}
			if sh.Axis == refs.Rows {
				le.PutUint16(it.rec.Data, uint16(x))
			} else {
				le.PutUint16(it.rec.Data[2:], uint16(x))
			}
		}
	}
}
