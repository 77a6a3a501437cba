package xls

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/xuri/nfp"

	"github.com/yamitzky/xlbiff-go/biff"
)

// Built-in number formats used for new date cells.
const (
	FormatDate     = 14 // m/d/yy
	FormatDateTime = 22 // m/d/yy h:mm
)

// maxXF is the number of XF records a BIFF8 workbook can hold.
const maxXF = 4050

// builtinDateFormats lists the built-in format keys that display dates or
// times, including the Far East ones.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// xfInfo is the part of an XF record needed to classify cells.
type xfInfo struct {
	format int
	style  bool
}

func decodeXF(data []byte) xfInfo {
	if len(data) < 6 {
		return xfInfo{}
	}
	return xfInfo{
		format: int(binary.LittleEndian.Uint16(data[2:])),
		style:  binary.LittleEndian.Uint16(data[4:])&0x0004 != 0,
	}
}

// decodeFormat returns the key and format string of a FORMAT record.
func decodeFormat(data []byte) (int, string, error) {
	if len(data) < 4 {
		return 0, "", NewXLSError("FORMAT record of %d bytes", len(data))
	}
	s, _, err := biff.UnpackUnicode(data, 2, 2)
	if err != nil {
		return 0, "", err
	}
	return int(binary.LittleEndian.Uint16(data)), s, nil
}

// IsDateFormat reports whether a number format string displays a date or
// a time. Only the first section, used for positive numbers, is looked at.
func IsDateFormat(format string) bool {
	p := nfp.NumberFormatParser()
	sections := p.Parse(format)
	if len(sections) == 0 {
		return false
	}
	date := false
	for _, tok := range sections[0].Items {
		switch tok.TType {
		case nfp.TokenTypeDateTimes, nfp.TokenTypeElapsedDateTimes:
			date = true
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder:
			return false
		}
	}
	return date
}

// IsDateXF reports whether the XF record at index xf formats numbers as
// dates or times.
func (b *Book) IsDateXF(xf int) bool {
	if xf < 0 || xf >= len(b.xfs) {
		return false
	}
	key := b.xfs[xf].format
	if builtinDateFormats[key] {
		return true
	}
	format, ok := b.formats[key]
	return ok && IsDateFormat(format)
}

// IsDate reports a number, or a formula with a number result, whose cell
// format shows a date.
func (c *Cell) IsDate() bool {
	_, ok := c.Value.(float64)
	return ok && c.Sheet.book.IsDateXF(c.XFIndex)
}

// SetTime stores t as a date number formatted with FormatDate, or with
// FormatDateTime when t has a time of day.
func (s *Sheet) SetTime(rowx, colx int, t time.Time) error {
	v, err := DateNumber(t, s.book.Datemode)
	if err != nil {
		return err
	}
	key := FormatDate
	if v != math.Trunc(v) {
		key = FormatDateTime
	}
	return s.put(rowx, colx, func(uint16) (*cell, error) {
		xf, err := s.book.cellXF(key)
		if err != nil {
			return nil, err
		}
		rec, ok := biff.RKRecord(rowx, colx, xf, v)
		if !ok {
			rec = biff.NumberRecord(rowx, colx, xf, v)
		}
		return &cell{rec: rec}, nil
	})
}

// cellXF returns a cell XF using the number format key. When there is
// none, a copy of the default cell XF with that format is added after the
// last XF record.
func (b *Book) cellXF(key int) (uint16, error) {
	for i, x := range b.xfs {
		if x.format == key && !x.style {
			return uint16(i), nil
		}
	}
	if len(b.xfs) >= maxXF {
		return 0, NewXLSError("workbook already holds %d XF records", len(b.xfs))
	}
	var template biff.Record
	last, n := -1, 0
	for i, it := range b.globals {
		if it.slot != globalRecord || it.rec.Opcode != biff.XL_XF {
			continue
		}
		if x := decodeXF(it.rec.Data); !x.style && (n <= DefaultXF || template.Data == nil) {
			template = it.rec
		}
		last = i
		n++
	}
	if template.Data == nil || len(template.Data) < 10 {
		return 0, NewXLSError("workbook has no cell XF record to copy")
	}
	rec := template.Clone()
	binary.LittleEndian.PutUint16(rec.Data[2:], uint16(key))
	rec.Data[9] |= 0x04 // number format differs from the parent style
	b.insertGlobal(last+1, globalItem{rec: rec})
	b.xfs = append(b.xfs, decodeXF(rec.Data))
	b.numXF++
	return uint16(len(b.xfs) - 1), nil
}
