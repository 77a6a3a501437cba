package biff

import (
	"encoding/binary"
	"fmt"
)

// maxSSTStrings bounds the shared string table index space.
const maxSSTStrings = 1<<31 - 1

// SST is the workbook's shared string table.
type SST struct {
	Total   int // number of LABELSST references, as stored in the record
	Strings []string
	index   map[string]int
	share   bool
}

// NewSST returns an empty table. With share set, Add returns the index of
// an existing equal string instead of appending a duplicate.
func NewSST(share bool) *SST {
	return &SST{index: make(map[string]int), share: share}
}

// SetShare switches duplicate sharing on or off for later Adds.
func (s *SST) SetShare(share bool) {
	s.share = share
}

// Len returns the number of unique entries.
func (s *SST) Len() int { return len(s.Strings) }

// Get returns string i.
func (s *SST) Get(i int) (string, error) {
	if i < 0 || i >= len(s.Strings) {
		return "", fmt.Errorf("biff: shared string %d out of range (%d strings)", i, len(s.Strings))
	}
	return s.Strings[i], nil
}

// Add registers one more reference to str and returns its index.
func (s *SST) Add(str string) (int, error) {
	if s.share {
		if i, ok := s.index[str]; ok {
			s.Total++
			return i, nil
		}
	}
	if len(s.Strings) >= maxSSTStrings {
		return 0, ErrPoolFull
	}
	i := len(s.Strings)
	s.Strings = append(s.Strings, str)
	if _, ok := s.index[str]; !ok {
		s.index[str] = i
	}
	s.Total++
	return i, nil
}

// sstReader reads across the physical records of a continued SST.
type sstReader struct {
	parts [][]byte
	part  int
	pos   int
}

func (r *sstReader) avail() int {
	return len(r.parts[r.part]) - r.pos
}

// advance moves to the next physical record when the current one is spent.
func (r *sstReader) advance() error {
	for r.avail() == 0 {
		if r.part+1 >= len(r.parts) {
			return fmt.Errorf("biff: SST ends inside a string")
		}
		r.part++
		r.pos = 0
	}
	return nil
}

// bytes reads n raw bytes, crossing record boundaries transparently.
func (r *sstReader) bytes(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		if err := r.advance(); err != nil {
			return nil, err
		}
		k := min(n-len(out), r.avail())
		out = append(out, r.parts[r.part][r.pos:r.pos+k]...)
		r.pos += k
	}
	return out, nil
}

// chars reads nchars characters. A string split across records restarts
// with a fresh options byte in the continuing record.
func (r *sstReader) chars(nchars int, options byte) (string, error) {
	var out string
	for nchars > 0 {
		if r.avail() == 0 {
			if r.part+1 >= len(r.parts) || len(r.parts[r.part+1]) == 0 {
				return "", fmt.Errorf("biff: SST ends inside a string")
			}
			r.part++
			options = r.parts[r.part][0]
			r.pos = 1
			continue
		}
		width := 1
		if options&strUncompressed != 0 {
			width = 2
		}
		k := min(nchars, r.avail()/width)
		if k == 0 {
			return "", fmt.Errorf("biff: SST character split inside a code unit")
		}
		raw := r.parts[r.part][r.pos : r.pos+k*width]
		r.pos += k * width
		if width == 2 {
			out += decodeUTF16(raw)
		} else {
			s, err := decodeLatin1(raw)
			if err != nil {
				return "", err
			}
			out += s
		}
		nchars -= k
	}
	return out, nil
}

// DecodeSST parses an SST record given the payloads of the SST record and
// its CONTINUE records.
func DecodeSST(parts [][]byte) (*SST, error) {
	if len(parts) == 0 || len(parts[0]) < 8 {
		return nil, recordErrorf(XL_SST, "bad length")
	}
	le := binary.LittleEndian
	s := NewSST(false)
	s.Total = int(le.Uint32(parts[0]))
	unique := int(le.Uint32(parts[0][4:]))
	r := &sstReader{parts: parts, pos: 8}
	for i := 0; i < unique; i++ {
		hdr, err := r.bytes(3)
		if err != nil {
			return nil, recordErrorf(XL_SST, "string %d: %v", i, err)
		}
		nchars := int(le.Uint16(hdr))
		options := hdr[2]
		var runs, phonetic int
		if options&strRichText != 0 {
			b, err := r.bytes(2)
			if err != nil {
				return nil, recordErrorf(XL_SST, "string %d: %v", i, err)
			}
			runs = int(le.Uint16(b))
		}
		if options&strPhonetic != 0 {
			b, err := r.bytes(4)
			if err != nil {
				return nil, recordErrorf(XL_SST, "string %d: %v", i, err)
			}
			phonetic = int(le.Uint32(b))
		}
		str, err := r.chars(nchars, options)
		if err != nil {
			return nil, recordErrorf(XL_SST, "string %d: %v", i, err)
		}
		if _, err := r.bytes(4*runs + phonetic); err != nil {
			return nil, recordErrorf(XL_SST, "string %d: %v", i, err)
		}
		s.Strings = append(s.Strings, str)
		if _, ok := s.index[str]; !ok {
			s.index[str] = i
		}
	}
	return s, nil
}

// Records encodes the table as an SST record followed by CONTINUE records.
// String headers never straddle records; character data that does is
// resumed with a fresh options byte.
func (s *SST) Records() []Record {
	le := binary.LittleEndian
	var out []Record
	cur := make([]byte, 8, MaxRecordData)
	le.PutUint32(cur, uint32(s.Total))
	le.PutUint32(cur[4:], uint32(len(s.Strings)))
	op := uint16(XL_SST)
	flush := func() {
		out = append(out, Record{Opcode: op, Data: cur})
		cur = make([]byte, 0, MaxRecordData)
		op = XL_CONTINUE
	}
	for _, str := range s.Strings {
		options, chars, n := stringBody(str)
		if MaxRecordData-len(cur) < 4 {
			flush()
		}
		cur = le.AppendUint16(cur, uint16(n))
		cur = append(cur, options)
		width := 1
		if options&strUncompressed != 0 {
			width = 2
		}
		for len(chars) > 0 {
			room := (MaxRecordData - len(cur)) / width * width
			if room == 0 {
				flush()
				cur = append(cur, options)
				continue
			}
			k := min(room, len(chars))
			cur = append(cur, chars[:k]...)
			chars = chars[k:]
		}
	}
	flush()
	return out
}
