package xls

import (
	"encoding/binary"
	"sync"

	"github.com/yamitzky/xlbiff-go/biff"
	"github.com/yamitzky/xlbiff-go/cfb"
)

type protoImage struct {
	once sync.Once
	data []byte
	err  error
}

var (
	protoMu sync.Mutex
	proto   = new(protoImage)
)

// prototype returns the file image of an empty workbook with one sheet,
// built on first use.
func prototype() ([]byte, error) {
	protoMu.Lock()
	p := proto
	protoMu.Unlock()
	p.once.Do(func() {
		p.data, p.err = buildPrototype()
	})
	return p.data, p.err
}

// ResetPrototype drops the cached empty workbook so the next New builds it
// again.
func ResetPrototype() {
	protoMu.Lock()
	defer protoMu.Unlock()
	proto = new(protoImage)
}

// New returns an empty workbook holding one worksheet named "Sheet1".
func New(opts *Options) (*Book, error) {
	image, err := prototype()
	if err != nil {
		return nil, err
	}
	b := newBook(opts)
	f, err := cfb.Parse(append([]byte{}, image...), b.opts.container())
	if err != nil {
		return nil, err
	}
	if err := b.Load(f); err != nil {
		return nil, err
	}
	return b, nil
}

func u16(vals ...uint16) []byte {
	var b []byte
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return b
}

func fontRecord(name string) biff.Record {
	// height 10pt, no attributes, automatic colour, normal weight
	d := u16(200, 0, 0x7FFF, 400, 0)
	d = append(d, 0, 0, 0, 0)
	return biff.Record{Opcode: biff.XL_FONT, Data: append(d, biff.PackUnicode(name, 1)...)}
}

func xfRecord(style bool) biff.Record {
	d := make([]byte, 20)
	if style {
		binary.LittleEndian.PutUint16(d[4:], 0xFFF5)
		d[9] = 0xF4
	} else {
		binary.LittleEndian.PutUint16(d[4:], 0x0001)
	}
	d[6] = 0x20 // bottom aligned
	binary.LittleEndian.PutUint16(d[18:], 0x20C0)
	return biff.Record{Opcode: biff.XL_XF, Data: d}
}

func buildPrototype() ([]byte, error) {
	globals := []biff.Record{
		biff.BOFRecord(biff.XL_WORKBOOK_GLOBALS),
		{Opcode: biff.XL_CODEPAGE, Data: u16(1200)},
		{Opcode: biff.XL_WINDOW1, Data: u16(0, 0, 0x3A98, 0x2328, 0x0038, 0, 0, 1, 0x0258)},
		{Opcode: biff.XL_DATEMODE, Data: u16(0)},
	}
	for i := 0; i < 4; i++ {
		globals = append(globals, fontRecord("Arial"))
	}
	for i := 0; i < DefaultXF; i++ {
		globals = append(globals, xfRecord(true))
	}
	globals = append(globals,
		xfRecord(false),
		biff.Record{Opcode: biff.XL_STYLE, Data: []byte{0x00, 0x80, 0x00, 0xFF}},
	)
	bs := &biff.BoundSheetRecord{Name: "Sheet1"}
	globals = append(globals, bs.Record())
	globals = append(globals, biff.NewSST(false).Records()...)
	globals = append(globals, biff.Record{Opcode: biff.XL_EOF})
	bs.Offset = uint32(len(biff.EncodeAll(globals)))
	for i, rec := range globals {
		if rec.Opcode == biff.XL_BOUNDSHEET {
			globals[i] = bs.Record()
		}
	}

	sheet := []biff.Record{
		biff.BOFRecord(biff.XL_WORKSHEET),
		biff.DimensionRecord(0, 0, 0, 0),
		{Opcode: biff.XL_WINDOW2, Data: append(u16(0x06B6, 0, 0, 0x0040, 0, 0, 0), 0, 0, 0, 0)},
		{Opcode: biff.XL_EOF},
	}
	stream := append(biff.EncodeAll(globals), biff.EncodeAll(sheet)...)

	f := cfb.New(nil)
	if err := f.SetStream("Workbook", stream); err != nil {
		return nil, err
	}
	return f.Bytes()
}
