package xls

import (
	"github.com/yamitzky/xlbiff-go/biff"
	"github.com/yamitzky/xlbiff-go/refs"
)

// tokenOwner is a record holding a formula token array: a FORMULA or ARRAY
// record, a NAME or a chart series reference. Each reference token of the
// array is tracked as one refs.Ref.
type tokenOwner struct {
	kind   refs.Kind
	sheet  int // sheet holding the tokens, -1 for workbook names
	tokens *[]byte
	sync   func() // re-encodes the owning record after a token changed
	refs   []*refs.Ref
}

// tokenTarget writes a moved or broken reference back into its token.
// rowSwap and colSwap record a token stored with its corners reversed,
// as in A21:A$11, so each corner keeps its own relative flags.
type tokenTarget struct {
	owner   *tokenOwner
	tok     biff.RefToken
	rowSwap bool
	colSwap bool
}

func (t *tokenTarget) Apply(r *refs.Ref) {
	rgce := *t.owner.tokens
	if r.Broken {
		t.tok.Break(rgce)
	} else {
		t.tok.First.Row, t.tok.Last.Row = r.Area.FirstRow, r.Area.LastRow
		if t.rowSwap {
			t.tok.First.Row, t.tok.Last.Row = t.tok.Last.Row, t.tok.First.Row
		}
		t.tok.First.Col, t.tok.Last.Col = r.Area.FirstCol, r.Area.LastCol
		if t.colSwap {
			t.tok.First.Col, t.tok.Last.Col = t.tok.Last.Col, t.tok.First.Col
		}
		t.tok.Write(rgce)
	}
	if t.owner.sync != nil {
		t.owner.sync()
	}
}

// track registers the reference tokens of o. Relative-offset tokens and
// tokens into other workbooks or sheet ranges are not tracked.
func (b *Book) track(o *tokenOwner) {
	if o == nil {
		return
	}
	toks, err := biff.RefTokens(*o.tokens)
	if err != nil {
		b.warnf("%s tokens on sheet %d: %v", o.kind, o.sheet, err)
		return
	}
	for _, tk := range toks {
		if tk.RelOffsets {
			continue
		}
		sheet := o.sheet
		if tk.Sheet3D {
			sheet = b.xtiSheet(tk.Ixti)
		}
		if sheet < 0 {
			continue
		}
		r := &refs.Ref{
			Kind:   o.kind,
			Sheet:  sheet,
			Area:   areaOf(tk.First.Row, tk.Last.Row, tk.First.Col, tk.Last.Col),
			Target: &tokenTarget{
				owner:   o,
				tok:     tk,
				rowSwap: tk.First.Row > tk.Last.Row,
				colSwap: tk.First.Col > tk.Last.Col,
			},
		}
		if err := b.tracker.Register(r); err != nil {
			b.warnf("%v", err)
			continue
		}
		o.refs = append(o.refs, r)
	}
}

func (b *Book) untrack(o *tokenOwner) {
	if o == nil {
		return
	}
	for _, r := range o.refs {
		b.tracker.Unregister(r)
	}
	o.refs = nil
}

func (b *Book) register(r *refs.Ref) {
	if err := b.tracker.Register(r); err != nil {
		b.warnf("%v", err)
	}
}

// xtiSheet resolves an EXTERNSHEET index to a sheet of this workbook, or -1.
func (b *Book) xtiSheet(ixti int) int {
	if ixti < 0 || ixti >= len(b.xtis) || b.internalSB < 0 {
		return -1
	}
	x := b.xtis[ixti]
	if x.SupBook != b.internalSB || x.FirstSheet != x.LastSheet {
		return -1
	}
	if x.FirstSheet < 0 || x.FirstSheet >= len(b.sheets) {
		return -1
	}
	return x.FirstSheet
}

// ensureXTI returns the EXTERNSHEET index naming sheet, adding the entry
// and the internal SUPBOOK as needed.
func (b *Book) ensureXTI(sheet int) int {
	if b.internalSB < 0 {
		b.internalSB = b.supBooks
		b.supBooks++
		b.addedSupBook = true
	}
	for i, x := range b.xtis {
		if x.SupBook == b.internalSB && x.FirstSheet == sheet && x.LastSheet == sheet {
			return i
		}
	}
	b.xtis = append(b.xtis, biff.XTI{SupBook: b.internalSB, FirstSheet: sheet, LastSheet: sheet})
	return len(b.xtis) - 1
}
