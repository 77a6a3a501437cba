// Package refs tracks cell references held by workbook records and keeps
// them consistent while rows and columns are inserted or deleted.
package refs

import (
	"fmt"
	"strings"

	"github.com/xuri/efp"
	"github.com/xuri/excelize/v2"
)

// Sheet limits of the BIFF8 grid, as 0-based indices.
const (
	MaxRow = 65535
	MaxCol = 255
)

// Kind says which record owns a reference.
type Kind int

const (
	KindFormula Kind = iota
	KindName
	KindMerge
	KindChart
	KindHyperlink
)

func (k Kind) String() string {
	switch k {
	case KindFormula:
		return "formula"
	case KindName:
		return "name"
	case KindMerge:
		return "merge"
	case KindChart:
		return "chart"
	case KindHyperlink:
		return "hyperlink"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Area is an inclusive rectangle of 0-based rows and columns. A single
// cell has FirstRow == LastRow and FirstCol == LastCol.
type Area struct {
	FirstRow, LastRow int
	FirstCol, LastCol int
}

// Cell returns the one-cell area at (row, col).
func Cell(row, col int) Area {
	return Area{FirstRow: row, LastRow: row, FirstCol: col, LastCol: col}
}

// Single reports a one-cell area.
func (a Area) Single() bool {
	return a.FirstRow == a.LastRow && a.FirstCol == a.LastCol
}

// Contains reports whether (row, col) lies inside a.
func (a Area) Contains(row, col int) bool {
	return row >= a.FirstRow && row <= a.LastRow && col >= a.FirstCol && col <= a.LastCol
}

// Valid reports an ordered area inside the sheet limits.
func (a Area) Valid() bool {
	return a.FirstRow >= 0 && a.FirstRow <= a.LastRow && a.LastRow <= MaxRow &&
		a.FirstCol >= 0 && a.FirstCol <= a.LastCol && a.LastCol <= MaxCol
}

func (a Area) axis(ax Axis) (int, int) {
	if ax == Columns {
		return a.FirstCol, a.LastCol
	}
	return a.FirstRow, a.LastRow
}

func (a *Area) setAxis(ax Axis, first, last int) {
	if ax == Columns {
		a.FirstCol, a.LastCol = first, last
		return
	}
	a.FirstRow, a.LastRow = first, last
}

func cellName(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row+1, col+1)
	}
	return name
}

// String renders a in A1 notation: "B3" or "A1:C10".
func (a Area) String() string {
	if a.Single() {
		return cellName(a.FirstRow, a.FirstCol)
	}
	return cellName(a.FirstRow, a.FirstCol) + ":" + cellName(a.LastRow, a.LastCol)
}

// ParseArea parses A1 reference text such as "B3", "$A$1:$C$10" or
// "'My Sheet'!A1:B2". The sheet name is empty when the text has none.
func ParseArea(text string) (sheet string, area Area, err error) {
	p := efp.ExcelParser()
	var operand string
	for _, tok := range p.Parse(text) {
		if tok.TType == efp.TokenTypeWhitespace {
			continue
		}
		if tok.TType != efp.TokenTypeOperand || tok.TSubType != efp.TokenSubTypeRange || operand != "" {
			return "", Area{}, fmt.Errorf("refs: %q is not a single reference", text)
		}
		operand = tok.TValue
	}
	if operand == "" {
		return "", Area{}, fmt.Errorf("refs: empty reference")
	}
	cells := operand
	if i := strings.LastIndexByte(operand, '!'); i >= 0 {
		sheet, cells = operand[:i], operand[i+1:]
		if sheet == "" {
			return "", Area{}, fmt.Errorf("refs: %q has an empty sheet name", text)
		}
	}
	parts := strings.Split(cells, ":")
	if len(parts) > 2 {
		return "", Area{}, fmt.Errorf("refs: %q has too many corners", text)
	}
	var corners [2][2]int
	for i, part := range parts {
		col, row, err := excelize.CellNameToCoordinates(part)
		if err != nil {
			return "", Area{}, fmt.Errorf("refs: bad cell %q: %w", part, err)
		}
		corners[i] = [2]int{row - 1, col - 1}
	}
	if len(parts) == 1 {
		corners[1] = corners[0]
	}
	area = Area{
		FirstRow: min(corners[0][0], corners[1][0]),
		LastRow:  max(corners[0][0], corners[1][0]),
		FirstCol: min(corners[0][1], corners[1][1]),
		LastCol:  max(corners[0][1], corners[1][1]),
	}
	if !area.Valid() {
		return "", Area{}, fmt.Errorf("refs: %q lies outside the sheet", text)
	}
	return sheet, area, nil
}

// ParseRef parses reference text into an unregistered Ref. lookup maps a
// sheet name to its index; text without a sheet name refers to defSheet.
func ParseRef(text string, kind Kind, defSheet int, lookup func(name string) (int, bool)) (*Ref, error) {
	name, area, err := ParseArea(text)
	if err != nil {
		return nil, err
	}
	sheet := defSheet
	if name != "" {
		idx, ok := lookup(name)
		if !ok {
			return nil, fmt.Errorf("refs: no sheet named %q", name)
		}
		sheet = idx
	}
	return &Ref{Kind: kind, Sheet: sheet, Area: area}, nil
}
