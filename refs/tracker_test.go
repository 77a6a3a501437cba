package refs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, tr *Tracker, refs ...*Ref) {
	t.Helper()
	for _, r := range refs {
		require.NoError(t, tr.Register(r))
	}
}

func TestInsertMovesRowAndGrowsMerge(t *testing.T) {
	for _, mode := range []Mode{ModeGeneric, ModeExcel} {
		tr := NewTracker(&Options{Mode: mode})
		formula := &Ref{Kind: KindFormula, Area: Cell(10, 0)}
		merge := &Ref{Kind: KindMerge, Area: Area{FirstRow: 3, LastRow: 7, FirstCol: 0, LastCol: 2}}
		above := &Ref{Kind: KindHyperlink, Area: Cell(1, 1)}
		register(t, tr, formula, merge, above)

		changed := tr.UpdateReferences(5, 1, 0, true)
		assert.Len(t, changed, 2, "mode %d", mode)
		assert.Equal(t, Cell(11, 0), formula.Area)
		assert.Equal(t, Area{FirstRow: 3, LastRow: 8, FirstCol: 0, LastCol: 2}, merge.Area)
		assert.Equal(t, Cell(1, 1), above.Area)
		assert.Empty(t, tr.Broken())
	}
}

func TestInsertAtPivotDependsOnMode(t *testing.T) {
	generic := NewTracker(nil)
	g := &Ref{Kind: KindFormula, Area: Cell(5, 0)}
	register(t, generic, g)
	generic.UpdateReferences(5, 2, 0, true)
	assert.Equal(t, 7, g.Area.FirstRow, "generic mode moves the pivot row")

	excel := NewTracker(&Options{Mode: ModeExcel})
	e := &Ref{Kind: KindFormula, Area: Cell(5, 0)}
	register(t, excel, e)
	excel.UpdateReferences(5, 2, 0, true)
	assert.Equal(t, 5, e.Area.FirstRow, "excel mode inserts after the pivot row")
	assert.Equal(t, ModeExcel, excel.Mode())
}

func TestDeleteBreaksName(t *testing.T) {
	tr := NewTracker(nil)
	name := &Ref{Kind: KindName, Area: Cell(5, 1)}
	below := &Ref{Kind: KindFormula, Area: Cell(10, 0)}
	tail := &Ref{Kind: KindMerge, Area: Area{FirstRow: 3, LastRow: 5, FirstCol: 0, LastCol: 0}}
	head := &Ref{Kind: KindMerge, Area: Area{FirstRow: 6, LastRow: 9, FirstCol: 1, LastCol: 1}}
	across := &Ref{Kind: KindChart, Area: Area{FirstRow: 4, LastRow: 8, FirstCol: 2, LastCol: 2}}
	inside := &Ref{Kind: KindChart, Area: Area{FirstRow: 5, LastRow: 6, FirstCol: 3, LastCol: 3}}
	register(t, tr, name, below, tail, head, across, inside)

	tr.UpdateReferences(5, -2, 0, true)

	assert.True(t, name.Broken)
	assert.True(t, inside.Broken)
	assert.ElementsMatch(t, []*Ref{name, inside}, tr.Broken())
	assert.Empty(t, tr.Refs(0, KindName))

	assert.Equal(t, Cell(8, 0), below.Area)
	assert.Equal(t, 3, tail.Area.FirstRow)
	assert.Equal(t, 4, tail.Area.LastRow)
	assert.Equal(t, 5, head.Area.FirstRow)
	assert.Equal(t, 7, head.Area.LastRow)
	assert.Equal(t, 4, across.Area.FirstRow)
	assert.Equal(t, 6, across.Area.LastRow)
	assert.Equal(t, 4, tr.Len())
}

func TestInsertDeleteInverse(t *testing.T) {
	areas := []Area{
		Cell(0, 0), Cell(6, 1), Cell(7, 2), Cell(8, 3), Cell(200, 4),
		{FirstRow: 2, LastRow: 12, FirstCol: 0, LastCol: 5},
		{FirstRow: 7, LastRow: 9, FirstCol: 0, LastCol: 0},
		{FirstRow: 0, LastRow: 6, FirstCol: 1, LastCol: 1},
	}
	for _, mode := range []Mode{ModeGeneric, ModeExcel} {
		tr := NewTracker(nil)
		var refs []*Ref
		for i, a := range areas {
			r := &Ref{Kind: Kind(i % 5), Area: a}
			refs = append(refs, r)
			register(t, tr, r)
		}
		ins := Shift{Axis: Rows, Pivot: 7, Delta: 3, Formulas: true, Mode: mode}
		tr.Shift(ins)
		tr.Shift(Shift{Axis: Rows, Pivot: ins.Threshold(), Delta: -3, Formulas: true})
		for i, r := range refs {
			assert.False(t, r.Broken)
			assert.Equal(t, areas[i], r.Area, "mode %d area %d", mode, i)
		}
	}
}

func TestSheetLimit(t *testing.T) {
	tr := NewTracker(nil)
	last := &Ref{Kind: KindFormula, Area: Cell(MaxRow, 0)}
	column := &Ref{Kind: KindName, Area: Area{FirstRow: 0, LastRow: MaxRow, FirstCol: 2, LastCol: 2}}
	edge := &Ref{Kind: KindMerge, Area: Area{FirstRow: 0, LastRow: 0, FirstCol: 250, LastCol: MaxCol}}
	register(t, tr, last, column, edge)

	tr.UpdateReferences(100, 1, 0, true)
	assert.True(t, last.Broken)
	assert.False(t, column.Broken, "whole-column references stay put")
	assert.Equal(t, MaxRow, column.Area.LastRow)

	tr.Shift(Shift{Axis: Columns, Pivot: 0, Delta: 1, Formulas: true})
	assert.True(t, edge.Broken)
	assert.Equal(t, 3, column.Area.FirstCol)
}

func TestColumnShift(t *testing.T) {
	tr := NewTracker(nil)
	r := &Ref{Kind: KindMerge, Area: Area{FirstRow: 0, LastRow: 4, FirstCol: 1, LastCol: 3}}
	register(t, tr, r)
	tr.Shift(Shift{Axis: Columns, Pivot: 2, Delta: 1})
	assert.Equal(t, Area{FirstRow: 0, LastRow: 4, FirstCol: 1, LastCol: 4}, r.Area)

	tr.Shift(Shift{Axis: Columns, Pivot: 1, Delta: -1})
	assert.Equal(t, Area{FirstRow: 0, LastRow: 4, FirstCol: 1, LastCol: 3}, r.Area)
}

func TestFormulasFlag(t *testing.T) {
	tr := NewTracker(nil)
	f := &Ref{Kind: KindFormula, Area: Cell(9, 0)}
	n := &Ref{Kind: KindName, Area: Cell(9, 0)}
	register(t, tr, f, n)
	changed := tr.UpdateReferences(0, 1, 0, false)
	assert.Equal(t, []*Ref{n}, changed)
	assert.Equal(t, 9, f.Area.FirstRow)
	assert.Equal(t, 10, n.Area.FirstRow)
}

func TestTargetsAreNotified(t *testing.T) {
	var seen []Area
	var broken int
	target := TargetFunc(func(r *Ref) {
		if r.Broken {
			broken++
			return
		}
		seen = append(seen, r.Area)
	})
	tr := NewTracker(nil)
	register(t, tr,
		&Ref{Kind: KindFormula, Area: Cell(3, 0), Target: target},
		&Ref{Kind: KindFormula, Area: Cell(1, 0), Target: target},
		&Ref{Kind: KindFormula, Area: Cell(2, 0), Target: target},
	)
	tr.UpdateReferences(2, -1, 0, true)
	assert.Equal(t, []Area{Cell(2, 0)}, seen)
	assert.Equal(t, 1, broken)
}

func TestSheetsAreSeparate(t *testing.T) {
	tr := NewTracker(nil)
	a := &Ref{Kind: KindFormula, Sheet: 0, Area: Cell(4, 0)}
	b := &Ref{Kind: KindFormula, Sheet: 1, Area: Cell(4, 0)}
	register(t, tr, a, b)
	tr.UpdateReferences(0, 1, 1, true)
	assert.Equal(t, 4, a.Area.FirstRow)
	assert.Equal(t, 5, b.Area.FirstRow)
	assert.Nil(t, tr.UpdateReferences(0, 1, 7, true))
}

func TestRefsAtAndCache(t *testing.T) {
	tr := NewTracker(nil)
	merge := &Ref{Kind: KindMerge, Area: Area{FirstRow: 2, LastRow: 4, FirstCol: 0, LastCol: 1}}
	cell := &Ref{Kind: KindFormula, Area: Cell(3, 1)}
	far := &Ref{Kind: KindName, Area: Cell(30, 1)}
	register(t, tr, merge, cell, far)

	assert.ElementsMatch(t, []*Ref{merge, cell}, tr.RefsAt(0, 3, 1))
	assert.Empty(t, tr.RefsAt(0, 5, 1))

	tr.UpdateReferences(0, 2, 0, true)
	assert.Empty(t, tr.RefsAt(0, 3, 1), "shifts invalidate the cache")
	assert.ElementsMatch(t, []*Ref{merge, cell}, tr.RefsAt(0, 5, 1))

	far.Area = Cell(5, 1)
	assert.Len(t, tr.RefsAt(0, 5, 1), 2, "cached until cleared")
	tr.ClearCaches()
	assert.Len(t, tr.RefsAt(0, 5, 1), 3)
}

func TestRefsOrderAndKinds(t *testing.T) {
	tr := NewTracker(nil)
	r1 := &Ref{Kind: KindMerge, Area: Cell(8, 0)}
	r2 := &Ref{Kind: KindHyperlink, Area: Cell(2, 0)}
	r3 := &Ref{Kind: KindMerge, Area: Cell(2, 5)}
	register(t, tr, r1, r2, r3)
	assert.Equal(t, []*Ref{r2, r3, r1}, tr.Refs(0))
	assert.Equal(t, []*Ref{r3, r1}, tr.Refs(0, KindMerge))
	assert.Nil(t, tr.Refs(4))
}

func TestRegisterAndUnregister(t *testing.T) {
	tr := NewTracker(nil)
	r := &Ref{Kind: KindFormula, Area: Cell(1, 1)}
	register(t, tr, r)
	assert.Error(t, tr.Register(r), "double registration")
	assert.Error(t, tr.Register(&Ref{Area: Area{FirstRow: 5, LastRow: 2}}))
	assert.Error(t, tr.Register(nil))

	assert.True(t, tr.Unregister(r))
	assert.False(t, tr.Unregister(r))
	assert.Equal(t, 0, tr.Len())

	dead := &Ref{Kind: KindName, Broken: true}
	register(t, tr, dead)
	assert.Equal(t, []*Ref{dead}, tr.Broken())
	assert.True(t, tr.Unregister(dead))
	assert.Empty(t, tr.Broken())
}

func TestTraceLogging(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(&Options{Logfile: &buf, Verbosity: 2})
	register(t, tr, &Ref{Kind: KindFormula, Area: Cell(4, 0)})
	tr.UpdateReferences(1, 1, 0, true)
	assert.Contains(t, buf.String(), "refs: sheet 0 rows pivot 1 delta 1: 1 references changed")
}
