package biff

import "fmt"

// Substream is one BOF..EOF section of a workbook stream: the globals, a
// worksheet, a chart and so on. Records include the BOF and EOF.
type Substream struct {
	Type    uint16 // BOF document type
	Offset  int    // stream offset of the BOF record
	Records []Record
}

// SplitSubstreams cuts a workbook stream into its substreams. Embedded
// chart substreams inside a worksheet stay in the enclosing substream.
// Bytes after the last EOF are ignored.
func SplitSubstreams(stream []byte) ([]Substream, error) {
	d := NewDecoder(stream)
	var out []Substream
	var cur *Substream
	depth := 0
	for {
		pos := d.Offset()
		rec, err := d.Next()
		if err != nil {
			if cur == nil && len(out) > 0 {
				return out, nil
			}
			if cur == nil {
				return nil, fmt.Errorf("biff: stream has no BOF record: %w", err)
			}
			return nil, fmt.Errorf("biff: substream at offset %d has no EOF: %w", cur.Offset, err)
		}
		if cur == nil {
			if rec.Opcode != XL_BOF {
				if len(out) > 0 {
					// trailing padding or junk after the last substream
					return out, nil
				}
				return nil, recordErrorf(rec.Opcode, "expected BOF at offset %d", pos)
			}
			_, dt, err := BOFType(rec.Data)
			if err != nil {
				return nil, err
			}
			out = append(out, Substream{Type: dt, Offset: pos})
			cur = &out[len(out)-1]
		}
		cur.Records = append(cur.Records, rec)
		switch rec.Opcode {
		case XL_BOF:
			depth++
		case XL_EOF:
			depth--
			if depth == 0 {
				cur = nil
			}
		}
	}
}

// JoinSubstreams encodes substreams back to back.
func JoinSubstreams(subs []Substream) []byte {
	var b []byte
	for _, s := range subs {
		for _, rec := range s.Records {
			b = AppendRecord(b, rec)
		}
	}
	return b
}
