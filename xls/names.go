package xls

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/yamitzky/xlbiff-go/biff"
	"github.com/yamitzky/xlbiff-go/refs"
)

// builtinNames maps the code character of a built-in NAME record to the
// name Excel shows.
var builtinNames = map[string]string{
	"\x00": "Consolidate_Area",
	"\x01": "Auto_Open",
	"\x02": "Auto_Close",
	"\x03": "Extract",
	"\x04": "Database",
	"\x05": "Criteria",
	"\x06": "Print_Area",
	"\x07": "Print_Titles",
	"\x08": "Recorder",
	"\x09": "Data_Form",
	"\x0A": "Auto_Activate",
	"\x0B": "Auto_Deactivate",
	"\x0C": "Sheet_Title",
	"\x0D": "_FilterDatabase",
}

// Name is information relating to a named reference, formula, macro, etc.
type Name struct {
	Book *Book

	// Name is the name of the object. Built-in names get their English name.
	Name string

	// Scope is the sheet index (0-based) or -1 for global scope
	Scope int

	// Hidden names are not listed by Excel.
	Hidden bool

	// Builtin is set for names such as Print_Area.
	Builtin bool

	rec   *biff.NameRecord
	owner *tokenOwner
}

func (b *Book) newName(nr *biff.NameRecord) *Name {
	n := &Name{
		Book:    b,
		Name:    nr.Name,
		Scope:   nr.Sheet - 1,
		Hidden:  nr.Flags&biff.NameHidden != 0,
		Builtin: nr.Builtin(),
		rec:     nr,
	}
	if n.Builtin {
		if text, ok := builtinNames[nr.Name]; ok {
			n.Name = text
		} else {
			n.Name = fmt.Sprintf("??Unknown??%q", nr.Name)
		}
	}
	n.owner = &tokenOwner{kind: refs.KindName, sheet: -1, tokens: &nr.Tokens}
	return n
}

// Formula renders the definition of the name.
func (n *Name) Formula() (string, error) {
	return biff.FormulaText(n.rec.Tokens, n.Book.textOptions(0, 0))
}

// Broken reports a definition holding a #REF! reference, typically left
// behind when the rows or columns it referred to were deleted.
func (n *Name) Broken() bool {
	return biff.HasRefError(n.rec.Tokens)
}

// Area returns the sheet and cells of a name defined as one live reference.
func (n *Name) Area() (sheet int, area refs.Area, ok bool) {
	if len(n.owner.refs) != 1 || n.Broken() {
		return -1, refs.Area{}, false
	}
	r := n.owner.refs[0]
	if r.Broken {
		return -1, refs.Area{}, false
	}
	return r.Sheet, r.Area, true
}

func (n *Name) String() string {
	text, err := n.Formula()
	if err != nil {
		text = err.Error()
	}
	return n.Name + " = " + text
}

// Names returns the defined names in NAME record order.
func (b *Book) Names() []*Name {
	return append([]*Name(nil), b.names...)
}

// NameByName finds a name in the given scope, -1 being the workbook.
// Names are matched without regard to case.
func (b *Book) NameByName(name string, scope int) (*Name, bool) {
	for _, n := range b.names {
		if n.Scope == scope && strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return nil, false
}

func validName(name string) bool {
	if name == "" || len([]rune(name)) > 255 {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '\\' || unicode.IsLetter(r):
		case i > 0 && (r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	if _, _, err := refs.ParseArea(name); err == nil {
		// "A1" and "IV10" would read as cell references
		return false
	}
	return true
}

// DefineName adds a name for the reference refText, such as
// "Sheet1!$A$1:$B$4". scope is a sheet index, or -1 for a workbook name.
// Reference text without a sheet refers to the scope sheet, or to the
// first sheet for workbook names.
func (b *Book) DefineName(name, refText string, scope int) (*Name, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !validName(name) {
		return nil, NewXLSError("invalid name %q", name)
	}
	if scope < -1 || scope >= len(b.sheets) {
		return nil, fmt.Errorf("%w: scope %d", ErrSheetNotFound, scope)
	}
	if _, dup := b.NameByName(name, scope); dup {
		return nil, NewXLSError("name %q is already defined", name)
	}
	defSheet := max(scope, 0)
	r, err := refs.ParseRef(refText, refs.KindName, defSheet, b.sheetIndex)
	if err != nil {
		return nil, err
	}
	ixti := b.ensureXTI(r.Sheet)
	first := biff.CellAddr{Row: r.Area.FirstRow, Col: r.Area.FirstCol}
	last := biff.CellAddr{Row: r.Area.LastRow, Col: r.Area.LastCol}
	nr := &biff.NameRecord{
		Name:   name,
		Sheet:  scope + 1,
		Tokens: biff.RefTokens3D(ixti, first, last, !r.Area.Single()),
	}
	n := b.newName(nr)
	b.names = append(b.names, n)
	b.track(n.owner)
	b.tracef("xls: defined %s", n)
	return n, nil
}
