package xls

import (
	"github.com/yamitzky/xlbiff-go/biff"
	"github.com/yamitzky/xlbiff-go/refs"
)

// sharedFormula is a SHRFMLA record and the group of cells displaying it.
type sharedFormula struct {
	group refs.SharedGroup
	rec   *biff.SharedFormulaRecord
}

func (g *sharedFormula) record() biff.Record {
	r := *g.rec
	a := g.group.Range
	r.FirstRow, r.LastRow, r.FirstCol, r.LastCol = a.FirstRow, a.LastRow, a.FirstCol, a.LastCol
	r.Tokens = g.group.Tokens
	return r.Record()
}

// arrayFormula is an ARRAY record, or a TABLEOP record kept as raw bytes.
type arrayFormula struct {
	rng   refs.Area
	arr   *biff.ArrayRecord
	raw   biff.Record
	owner *tokenOwner
}

func (a *arrayFormula) record() biff.Record {
	if a.arr != nil {
		a.arr.Range = cellRange(a.rng)
		return a.arr.Record()
	}
	r := a.raw.Clone()
	biff.SetRefURange(r.Data, cellRange(a.rng))
	return r
}

// members lists the cells of s displaying g.
func (s *Sheet) members(g *sharedFormula) []*cell {
	var out []*cell
	rng := g.group.Range
	s.cells.AscendRange(&cell{row: rng.FirstRow}, &cell{row: rng.LastRow + 1}, func(c *cell) bool {
		if c.shared == g {
			out = append(out, c)
		}
		return true
	})
	return out
}

// unshare turns the cells of g into standalone formulas and drops the
// SHRFMLA record.
func (s *Sheet) unshare(g *sharedFormula) error {
	b := s.book
	members := s.members(g)
	converted := make([][]byte, len(members))
	for i, c := range members {
		toks, err := biff.Absolutize(g.group.Tokens, c.row, c.col)
		if err != nil {
			return err
		}
		converted[i] = toks
	}
	for i, c := range members {
		c.f.Tokens = converted[i]
		if len(c.f.Extra) == 0 {
			c.f.Extra = append([]byte{}, g.rec.Extra...)
		}
		c.f.Flags &^= biff.FormulaShared
		c.shared = nil
		c.owner = s.formulaOwner(c)
		b.track(c.owner)
	}
	for i, x := range s.shared {
		if x == g {
			s.shared = append(s.shared[:i], s.shared[i+1:]...)
			break
		}
	}
	b.tracef("xls: sheet %q: unshared formula %s into %d cells", s.Name, g.group.Range, len(members))
	return nil
}
