package refs

import (
	"fmt"
	"io"

	"github.com/google/btree"
)

// Target owns the bytes a reference was decoded from. Apply is called
// after the tracker moved or broke the reference so the owner can rewrite
// its record.
type Target interface {
	Apply(r *Ref)
}

// TargetFunc adapts a function to Target.
type TargetFunc func(r *Ref)

func (f TargetFunc) Apply(r *Ref) { f(r) }

// Ref is one tracked reference. Sheet is the sheet the reference points
// into, which for 3-D formula tokens differs from the sheet holding the
// formula.
type Ref struct {
	Kind   Kind
	Sheet  int
	Area   Area
	Broken bool
	Target Target

	// Tag is free for the owner, typically a record index or name.
	Tag any

	seq     uint64
	tracked bool
}

func (r *Ref) String() string {
	if r.Broken {
		return fmt.Sprintf("%s sheet %d #REF!", r.Kind, r.Sheet)
	}
	return fmt.Sprintf("%s sheet %d %s", r.Kind, r.Sheet, r.Area)
}

type collection int

const (
	formulaRefs collection = iota
	nameRefs
	rangeRefs
	numCollections
)

func (k Kind) collection() collection {
	switch k {
	case KindFormula:
		return formulaRefs
	case KindName:
		return nameRefs
	}
	return rangeRefs
}

// refLess orders references by first row, then registration order.
func refLess(a, b *Ref) bool {
	if a.Area.FirstRow != b.Area.FirstRow {
		return a.Area.FirstRow < b.Area.FirstRow
	}
	return a.seq < b.seq
}

type sheetRefs [numCollections]*btree.BTreeG[*Ref]

type cellKey struct {
	sheet, row, col int
}

// Options configures a Tracker.
type Options struct {
	Logfile   io.Writer
	Verbosity int
	// Mode is the insert mode used by UpdateReferences.
	Mode Mode
}

// Tracker indexes the live references of a workbook per sheet. Formula
// references, names and ranges (merged cells, chart series, hyperlinks)
// are kept in separate collections. It is not safe for concurrent use.
type Tracker struct {
	opts   Options
	sheets map[int]*sheetRefs
	broken []*Ref
	seq    uint64
	cache  map[cellKey][]*Ref
}

// NewTracker returns an empty tracker. A nil opts uses generic mode and no
// logging.
func NewTracker(opts *Options) *Tracker {
	t := &Tracker{sheets: make(map[int]*sheetRefs)}
	if opts != nil {
		t.opts = *opts
	}
	if t.opts.Logfile == nil {
		t.opts.Logfile = io.Discard
	}
	return t
}

// Mode returns the insert mode UpdateReferences uses.
func (t *Tracker) Mode() Mode { return t.opts.Mode }

func (t *Tracker) sheet(idx int, create bool) *sheetRefs {
	s := t.sheets[idx]
	if s == nil && create {
		s = &sheetRefs{}
		for i := range s {
			s[i] = btree.NewG(8, refLess)
		}
		t.sheets[idx] = s
	}
	return s
}

// Register starts tracking r. A reference registered as broken is only
// listed by Broken.
func (t *Tracker) Register(r *Ref) error {
	if r == nil {
		return fmt.Errorf("refs: nil reference")
	}
	if r.tracked {
		return fmt.Errorf("refs: %s already registered", r)
	}
	if !r.Broken && !r.Area.Valid() {
		return fmt.Errorf("refs: invalid area %+v", r.Area)
	}
	t.seq++
	r.seq = t.seq
	r.tracked = true
	t.cache = nil
	if r.Broken {
		t.broken = append(t.broken, r)
		return nil
	}
	t.sheet(r.Sheet, true)[r.Kind.collection()].ReplaceOrInsert(r)
	return nil
}

// Unregister stops tracking r. It reports whether r was tracked.
func (t *Tracker) Unregister(r *Ref) bool {
	if r == nil || !r.tracked {
		return false
	}
	r.tracked = false
	t.cache = nil
	if r.Broken {
		for i, b := range t.broken {
			if b == r {
				t.broken = append(t.broken[:i], t.broken[i+1:]...)
				return true
			}
		}
		return false
	}
	s := t.sheet(r.Sheet, false)
	if s == nil {
		return false
	}
	_, ok := s[r.Kind.collection()].Delete(r)
	return ok
}

// UpdateReferences shifts the row references of sheet by delta rows at
// pivot using the tracker's mode. Call it before the rows are physically
// inserted or deleted. It returns the references that changed.
func (t *Tracker) UpdateReferences(pivot, delta, sheet int, updateFormulas bool) []*Ref {
	return t.Shift(Shift{
		Sheet:    sheet,
		Axis:     Rows,
		Pivot:    pivot,
		Delta:    delta,
		Formulas: updateFormulas,
		Mode:     t.opts.Mode,
	})
}

// Shift applies s to every tracked reference into s.Sheet. Changed
// references are re-indexed and their targets notified; references that
// collapse are marked Broken and moved to the broken list.
func (t *Tracker) Shift(s Shift) []*Ref {
	if s.Delta == 0 {
		return nil
	}
	sr := t.sheet(s.Sheet, false)
	if sr == nil {
		return nil
	}
	t.cache = nil
	var changed []*Ref
	for c, tree := range sr {
		if collection(c) == formulaRefs && !s.Formulas {
			continue
		}
		var items []*Ref
		tree.Ascend(func(r *Ref) bool {
			items = append(items, r)
			return true
		})
		for _, r := range items {
			area, ok := s.Apply(r.Area)
			if ok && area == r.Area {
				continue
			}
			tree.Delete(r)
			if ok {
				r.Area = area
				tree.ReplaceOrInsert(r)
			} else {
				r.Broken = true
				t.broken = append(t.broken, r)
			}
			changed = append(changed, r)
		}
	}
	for _, r := range changed {
		if r.Target != nil {
			r.Target.Apply(r)
		}
	}
	if t.opts.Verbosity >= 2 {
		fmt.Fprintf(t.opts.Logfile, "refs: sheet %d %s pivot %d delta %d: %d references changed\n",
			s.Sheet, s.Axis, s.Pivot, s.Delta, len(changed))
	}
	return changed
}

// ClearCaches drops the cached RefsAt results.
func (t *Tracker) ClearCaches() {
	t.cache = nil
}

// RefsAt returns the live references on sheet whose area contains the cell.
func (t *Tracker) RefsAt(sheet, row, col int) []*Ref {
	key := cellKey{sheet, row, col}
	if hit, ok := t.cache[key]; ok {
		return hit
	}
	var out []*Ref
	if sr := t.sheet(sheet, false); sr != nil {
		pivot := &Ref{Area: Area{FirstRow: row + 1}}
		for _, tree := range sr {
			tree.AscendLessThan(pivot, func(r *Ref) bool {
				if r.Area.Contains(row, col) {
					out = append(out, r)
				}
				return true
			})
		}
	}
	if t.cache == nil {
		t.cache = make(map[cellKey][]*Ref)
	}
	t.cache[key] = out
	return out
}

// Refs lists the live references into sheet in row order, limited to the
// given kinds when any are passed.
func (t *Tracker) Refs(sheet int, kinds ...Kind) []*Ref {
	sr := t.sheet(sheet, false)
	if sr == nil {
		return nil
	}
	want := func(k Kind) bool {
		if len(kinds) == 0 {
			return true
		}
		for _, w := range kinds {
			if w == k {
				return true
			}
		}
		return false
	}
	var out []*Ref
	for _, tree := range sr {
		tree.Ascend(func(r *Ref) bool {
			if want(r.Kind) {
				out = append(out, r)
			}
			return true
		})
	}
	return out
}

// Broken lists the references that collapsed, in the order they broke.
func (t *Tracker) Broken() []*Ref {
	return append([]*Ref(nil), t.broken...)
}

// Len returns the number of live references.
func (t *Tracker) Len() int {
	n := 0
	for _, sr := range t.sheets {
		for _, tree := range sr {
			n += tree.Len()
		}
	}
	return n
}
