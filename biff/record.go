package biff

import (
	"encoding/binary"
	"io"
	"iter"
)

// MaxRecordData is the largest payload one BIFF8 record may carry; longer
// payloads continue in CONTINUE records.
const MaxRecordData = 8224

// Record is one framed BIFF record. The length prefix is derived from
// len(Data) when encoding.
type Record struct {
	Opcode uint16
	Data   []byte
}

// Len returns the payload length.
func (r Record) Len() int { return len(r.Data) }

// Clone returns a record with its own copy of the payload.
func (r Record) Clone() Record {
	return Record{Opcode: r.Opcode, Data: append([]byte{}, r.Data...)}
}

func (r Record) String() string {
	return RecordName(r.Opcode)
}

// Decoder reads records from an in-memory stream. Payloads are views into
// the stream. After an error, including io.EOF, every call returns that
// same error.
type Decoder struct {
	buf []byte
	pos int
	err error
}

// NewDecoder returns a decoder over b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Offset returns the stream offset of the next record header.
func (d *Decoder) Offset() int { return d.pos }

// Next decodes the next record. It returns io.EOF at a clean end of stream.
func (d *Decoder) Next() (Record, error) {
	if d.err != nil {
		return Record{}, d.err
	}
	left := len(d.buf) - d.pos
	if left == 0 {
		d.err = io.EOF
		return Record{}, d.err
	}
	if left < 4 {
		d.err = &TruncatedError{Offset: d.pos, Need: 4, Have: left}
		return Record{}, d.err
	}
	op := binary.LittleEndian.Uint16(d.buf[d.pos:])
	n := int(binary.LittleEndian.Uint16(d.buf[d.pos+2:]))
	if left-4 < n {
		d.err = &TruncatedError{Offset: d.pos, Need: 4 + n, Have: left}
		return Record{}, d.err
	}
	start := d.pos + 4
	d.pos = start + n
	return Record{Opcode: op, Data: d.buf[start:d.pos:d.pos]}, nil
}

// Peek returns the opcode of the next record without consuming it.
func (d *Decoder) Peek() (uint16, bool) {
	if d.err != nil || len(d.buf)-d.pos < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(d.buf[d.pos:]), true
}

// NextContinued decodes the next record together with the CONTINUE records
// that follow it. parts holds the payload of each physical record, data
// their concatenation.
func (d *Decoder) NextContinued() (rec Record, parts [][]byte, err error) {
	rec, err = d.Next()
	if err != nil {
		return rec, nil, err
	}
	parts = [][]byte{rec.Data}
	for {
		if op, ok := d.Peek(); !ok || op != XL_CONTINUE {
			break
		}
		cont, err := d.Next()
		if err != nil {
			return Record{}, nil, err
		}
		parts = append(parts, cont.Data)
	}
	if len(parts) > 1 {
		var data []byte
		for _, p := range parts {
			data = append(data, p...)
		}
		rec.Data = data
	}
	return rec, parts, nil
}

// All iterates the remaining records. A decoding error is yielded once and
// ends the sequence; io.EOF ends it silently.
func (d *Decoder) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := d.Next()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll decodes every record of b.
func ReadAll(b []byte) ([]Record, error) {
	var out []Record
	for rec, err := range NewDecoder(b).All() {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// AppendRecord frames rec onto b. Payloads over MaxRecordData are split
// into CONTINUE records.
func AppendRecord(b []byte, rec Record) []byte {
	data := rec.Data
	op := rec.Opcode
	for {
		n := min(len(data), MaxRecordData)
		b = binary.LittleEndian.AppendUint16(b, op)
		b = binary.LittleEndian.AppendUint16(b, uint16(n))
		b = append(b, data[:n]...)
		data = data[n:]
		if len(data) == 0 {
			return b
		}
		op = XL_CONTINUE
	}
}

// Encode writes rec to w.
func Encode(w io.Writer, rec Record) error {
	_, err := w.Write(AppendRecord(nil, rec))
	return err
}

// EncodeAll frames every record into one stream.
func EncodeAll(recs []Record) []byte {
	size := 0
	for _, r := range recs {
		size += 4 + len(r.Data)
	}
	b := make([]byte, 0, size)
	for _, r := range recs {
		b = AppendRecord(b, r)
	}
	return b
}

// EncodedLen returns the number of stream bytes rec occupies once framed.
func EncodedLen(rec Record) int {
	n := len(rec.Data)
	frames := 1
	if n > MaxRecordData {
		frames = (n + MaxRecordData - 1) / MaxRecordData
	}
	return n + 4*frames
}
