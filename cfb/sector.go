package cfb

import (
	"fmt"
)

// SectorKind tells big (FAT addressed) sectors from mini (miniFAT addressed) ones.
type SectorKind int

const (
	BigSector SectorKind = iota
	MiniSector
)

func (k SectorKind) String() string {
	if k == MiniSector {
		return "mini"
	}
	return "big"
}

func (k SectorKind) table() string {
	if k == MiniSector {
		return "miniFAT"
	}
	return "FAT"
}

// Chain is the ordered list of sector indices making up one stream.
type Chain []uint32

// Sector is a fixed-size block of the container. Its payload is a view into
// the buffer the Sectors were built from; the last sector of a file may be
// short and reads back zero padded.
type Sector struct {
	kind     SectorKind
	index    uint32
	size     int
	data     []byte
	next     uint32
	special  bool
	streamed bool
	owner    string
}

func (s *Sector) Kind() SectorKind { return s.kind }
func (s *Sector) Index() uint32    { return s.index }
func (s *Sector) Size() int        { return s.size }

// Bytes returns a copy of payload bytes [start, end), clamped to the sector.
func (s *Sector) Bytes(start, end int) []byte {
	if start < 0 {
		start = 0
	}
	if end > s.size {
		end = s.size
	}
	if end <= start {
		return []byte{}
	}
	out := make([]byte, end-start)
	if start < len(s.data) {
		copy(out, s.data[start:min(end, len(s.data))])
	}
	return out
}

// Next returns the cached successor taken from the allocation table.
func (s *Sector) Next() uint32 { return s.next }

func (s *Sector) SetNext(n uint32) { s.next = n }

// Special reports a sector holding FAT or DIFAT entries.
func (s *Sector) Special() bool { return s.special }

func (s *Sector) SetSpecial(v bool) { s.special = v }

// Streamed reports a sector already emitted by the writer.
func (s *Sector) Streamed() bool { return s.streamed }

func (s *Sector) MarkStreamed() { s.streamed = true }

func (s *Sector) ResetStreamed() { s.streamed = false }

// Sectors indexes a buffer as a sequence of equally sized sectors.
type Sectors struct {
	kind SectorKind
	size int
	list []*Sector
}

// newSectors splits buf[offset:] into sectors of the given size without
// copying. A trailing partial sector is kept.
func newSectors(buf []byte, size int, kind SectorKind, offset int) *Sectors {
	s := &Sectors{kind: kind, size: size}
	if offset >= len(buf) {
		return s
	}
	body := buf[offset:]
	n := ceilDiv(len(body), size)
	s.list = make([]*Sector, n)
	for i := 0; i < n; i++ {
		lo := i * size
		hi := min(lo+size, len(body))
		s.list[i] = &Sector{
			kind:  kind,
			index: uint32(i),
			size:  size,
			data:  body[lo:hi:hi],
			next:  FreeSect,
		}
	}
	return s
}

func (s *Sectors) Kind() SectorKind { return s.kind }
func (s *Sectors) SectorSize() int  { return s.size }
func (s *Sectors) Len() int         { return len(s.list) }

// Sector returns sector i or an *IndexError.
func (s *Sectors) Sector(i uint32) (*Sector, error) {
	if uint64(i) >= uint64(len(s.list)) {
		return nil, &IndexError{
			Table:  s.kind.table(),
			Sector: i,
			Limit:  len(s.list),
			Reason: "sector index out of range",
		}
	}
	return s.list[i], nil
}

// Read concatenates the payloads of chain into a fresh slice truncated to
// size. A negative size keeps every byte of the chain. Sectors flagged
// special are skipped.
func (s *Sectors) Read(chain Chain, size int64) ([]byte, error) {
	capacity := int64(len(chain) * s.size)
	if size >= 0 && size < capacity {
		capacity = size
	}
	out := make([]byte, 0, capacity)
	for _, idx := range chain {
		sec, err := s.Sector(idx)
		if err != nil {
			return nil, err
		}
		if sec.special {
			continue
		}
		out = append(out, sec.Bytes(0, s.size)...)
	}
	if size < 0 {
		return out, nil
	}
	if int64(len(out)) < size {
		return nil, compDocErrorf("Chain of %d %s sectors holds %d bytes, expected %d",
			len(chain), s.kind, len(out), size)
	}
	return out[:size], nil
}

// link caches next pointers from an allocation table on every sector.
func (s *Sectors) link(t *AllocTable) {
	for i, sec := range s.list {
		if i < len(t.next) {
			sec.next = t.next[i]
		}
	}
}

// resetStreamed clears the emission flag on all sectors.
func (s *Sectors) resetStreamed() {
	for _, sec := range s.list {
		sec.ResetStreamed()
	}
}

func (s *Sectors) String() string {
	return fmt.Sprintf("%d %s sectors of %d bytes", len(s.list), s.kind, s.size)
}
