package refs

// Axis selects the dimension a shift works on.
type Axis int

const (
	Rows Axis = iota
	Columns
)

func (ax Axis) String() string {
	if ax == Columns {
		return "columns"
	}
	return "rows"
}

// Mode picks the insert threshold.
type Mode int

const (
	// ModeGeneric moves every coordinate at or after the pivot.
	ModeGeneric Mode = iota
	// ModeExcel moves coordinates strictly after the pivot, the way Excel
	// inserts below a selected row.
	ModeExcel
)

// Shift describes one insertion (Delta > 0) or deletion (Delta < 0) of
// rows or columns on a sheet. A deletion removes [Pivot, Pivot-Delta).
type Shift struct {
	Sheet    int
	Axis     Axis
	Pivot    int
	Delta    int
	Formulas bool // include formula references
	Mode     Mode
}

func (s Shift) limit() int {
	if s.Axis == Columns {
		return MaxCol
	}
	return MaxRow
}

// Threshold returns the first coordinate an insertion moves. Deletions
// always start at the pivot.
func (s Shift) Threshold() int {
	if s.Delta > 0 && s.Mode == ModeExcel {
		return s.Pivot + 1
	}
	return s.Pivot
}

// Span maps the inclusive interval [first, last] through the shift.
// broken is set when the interval lies wholly inside a deleted span or is
// pushed past the sheet limit. Intervals covering the whole axis stay put.
func (s Shift) Span(first, last int) (nf, nl int, broken bool) {
	limit := s.limit()
	if s.Delta == 0 || (first == 0 && last >= limit) {
		return first, last, false
	}
	if s.Delta > 0 {
		t := s.Threshold()
		switch {
		case first >= t:
			first += s.Delta
			last += s.Delta
		case last >= t:
			last += s.Delta
		}
		return first, last, last > limit
	}
	n := -s.Delta
	p, e := s.Pivot, s.Pivot+n
	switch {
	case last < p:
	case first >= e:
		first -= n
		last -= n
	case first >= p && last < e:
		return first, last, true
	case first < p && last < e:
		last = p - 1
	case first < p:
		last -= n
	default:
		first = p
		last -= n
	}
	return first, last, false
}

// Point maps one coordinate through the shift; ok is false when the
// coordinate is deleted or pushed off the sheet.
func (s Shift) Point(x int) (int, bool) {
	if s.Delta == 0 {
		return x, true
	}
	nx, _, broken := s.Span(x, x)
	return nx, !broken
}

// Apply maps an area through the shift on its axis.
func (s Shift) Apply(a Area) (Area, bool) {
	first, last := a.axis(s.Axis)
	nf, nl, broken := s.Span(first, last)
	if broken {
		return a, false
	}
	a.setAxis(s.Axis, nf, nl)
	return a, true
}
