package refs

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/yamitzky/xlbiff-go/biff"
)

// ErrUnshare reports a shared formula group whose cells would stop sharing
// one token array after a shift. The caller converts the group into
// standalone formulas and shifts those instead.
var ErrUnshare = errors.New("refs: shared formula must be unshared")

// SharedGroup is a shared formula: one token array of relative-offset
// tokens used by every cell of Range.
type SharedGroup struct {
	Sheet  int
	Range  Area
	Tokens []byte
}

func resolveCorner(a biff.CellAddr, relOffsets bool, row, col int) biff.CellAddr {
	if !relOffsets {
		return a
	}
	if a.RowRel {
		a.Row += row
	}
	if a.ColRel {
		a.Col += col
	}
	return a
}

func encodeCorner(a biff.CellAddr, relOffsets bool, row, col int) biff.CellAddr {
	if !relOffsets {
		return a
	}
	if a.RowRel {
		a.Row -= row
	}
	if a.ColRel {
		a.Col -= col
	}
	return a
}

// putCorners stores the bounds of area into a and b, keeping the order in
// which the two corners were written: a token may hold its corners
// reversed, and each corner carries its own relative flags.
func putCorners(a, b biff.CellAddr, area Area) (biff.CellAddr, biff.CellAddr) {
	rowSwap, colSwap := a.Row > b.Row, a.Col > b.Col
	a.Row, b.Row = area.FirstRow, area.LastRow
	if rowSwap {
		a.Row, b.Row = b.Row, a.Row
	}
	a.Col, b.Col = area.FirstCol, area.LastCol
	if colSwap {
		a.Col, b.Col = b.Col, a.Col
	}
	return a, b
}

// ShiftShared applies s to a shared formula group. When every cell of the
// group and every cell it references move by a uniform amount, the group's
// range and tokens are rewritten in place. Otherwise ErrUnshare is returned
// and g is left untouched. Groups holding 3-D tokens always need unsharing
// because their target sheets are not known here.
func ShiftShared(g *SharedGroup, s Shift) error {
	if s.Delta == 0 {
		return nil
	}
	toks, err := biff.RefTokens(g.Tokens)
	if err != nil {
		return fmt.Errorf("refs: shared formula tokens: %w", err)
	}
	for _, tk := range toks {
		if tk.Sheet3D {
			return ErrUnshare
		}
	}
	if s.Sheet != g.Sheet {
		return nil
	}

	first, last := g.Range.axis(s.Axis)
	newRange, ok := s.Apply(g.Range)
	if !ok {
		return ErrUnshare
	}
	nf, _ := newRange.axis(s.Axis)
	cellDelta := nf - first

	out := append([]byte{}, g.Tokens...)
	for _, tk := range toks {
		var encoded []byte
		for x := first; x <= last; x++ {
			nx, ok := s.Point(x)
			if !ok || nx-x != cellDelta {
				return ErrUnshare
			}
			row, col := g.Range.FirstRow, g.Range.FirstCol
			nrow, ncol := row, col
			if s.Axis == Rows {
				row, nrow = x, nx
			} else {
				col, ncol = x, nx
			}
			a := resolveCorner(tk.First, tk.RelOffsets, row, col)
			b := resolveCorner(tk.Last, tk.RelOffsets, row, col)
			area, ok := s.Apply(Area{
				FirstRow: min(a.Row, b.Row), LastRow: max(a.Row, b.Row),
				FirstCol: min(a.Col, b.Col), LastCol: max(a.Col, b.Col),
			})
			if !ok {
				return ErrUnshare
			}
			a, b = putCorners(a, b, area)
			moved := tk
			moved.First = encodeCorner(a, tk.RelOffsets, nrow, ncol)
			moved.Last = encodeCorner(b, tk.RelOffsets, nrow, ncol)
			moved.Write(out)
			size, err := biff.TokenSize(out, tk.Pos)
			if err != nil {
				return err
			}
			enc := out[tk.Pos : tk.Pos+size]
			if encoded == nil {
				encoded = append([]byte{}, enc...)
			} else if !bytes.Equal(encoded, enc) {
				return ErrUnshare
			}
		}
	}
	copy(g.Tokens, out)
	g.Range = newRange
	return nil
}
