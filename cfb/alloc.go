package cfb

import (
	"encoding/binary"
	"fmt"
)

// AllocTable maps each sector to its successor (the FAT or the miniFAT).
type AllocTable struct {
	name     string
	next     []uint32
	limit    int // number of addressable sectors
	capacity int // upper bound for Allocate
}

func newAllocTable(name string, entries []uint32, limit, capacity int) *AllocTable {
	if capacity <= 0 || capacity > int(MaxRegSect)+1 {
		capacity = int(MaxRegSect) + 1
	}
	return &AllocTable{name: name, next: entries, limit: limit, capacity: capacity}
}

// Len returns the number of table entries.
func (t *AllocTable) Len() int { return len(t.next) }

// Entries returns a copy of the table.
func (t *AllocTable) Entries() []uint32 {
	return append([]uint32(nil), t.next...)
}

// Next returns the successor of sector i.
func (t *AllocTable) Next(i uint32) (uint32, error) {
	if uint64(i) >= uint64(t.limit) || uint64(i) >= uint64(len(t.next)) {
		return 0, &IndexError{Table: t.name, Sector: i, Limit: min(t.limit, len(t.next)), Reason: "no table entry"}
	}
	return t.next[i], nil
}

// Chain follows the table from start to EndOfChain. A walk visits each
// addressable sector at most once, so it ends within limit steps or fails.
func (t *AllocTable) Chain(start uint32) (Chain, error) {
	if start == EndOfChain || start == FreeSect {
		return nil, nil
	}
	n := min(t.limit, len(t.next))
	seen := make([]bool, n)
	var chain Chain
	for cur := start; cur != EndOfChain; {
		if uint64(cur) >= uint64(n) {
			return nil, &IndexError{Table: t.name, Sector: cur, Limit: n, Reason: "sector index out of range"}
		}
		if seen[cur] {
			return nil, &IndexError{Table: t.name, Sector: cur, Limit: n, Reason: "cyclic chain"}
		}
		seen[cur] = true
		chain = append(chain, cur)
		next := t.next[cur]
		if next > MaxRegSect && next != EndOfChain {
			return nil, &IndexError{Table: t.name, Sector: cur, Limit: n, Reason: "chain runs into " + sectorName(next)}
		}
		cur = next
	}
	return chain, nil
}

// Allocate appends a linked run of n sectors and returns its first index,
// or EndOfChain for n == 0.
func (t *AllocTable) Allocate(n int) (uint32, error) {
	if n == 0 {
		return EndOfChain, nil
	}
	start, err := t.reserve(n, 0)
	if err != nil {
		return EndOfChain, err
	}
	for i := 0; i < n-1; i++ {
		t.next[int(start)+i] = start + uint32(i) + 1
	}
	t.next[int(start)+n-1] = EndOfChain
	return start, nil
}

// reserve appends n entries set to marker.
func (t *AllocTable) reserve(n int, marker uint32) (uint32, error) {
	start := len(t.next)
	if start+n > t.capacity {
		return EndOfChain, fmt.Errorf("%w: %s needs %d sectors, capacity %d", ErrPoolFull, t.name, start+n, t.capacity)
	}
	for i := 0; i < n; i++ {
		t.next = append(t.next, marker)
	}
	t.limit = len(t.next)
	return uint32(start), nil
}

func decodeTable(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return out
}

func encodeTable(entries []uint32, size int) []byte {
	b := make([]byte, size)
	for i := 0; i < size/4; i++ {
		v := FreeSect
		if i < len(entries) {
			v = entries[i]
		}
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return b
}

// fatSectorList collects the FAT sector indices from the header slots and
// the DIFAT chain, flagging DIFAT sectors special.
func fatSectorList(h *Header, big *Sectors) ([]uint32, error) {
	want := int(h.NumFATSectors)
	list := make([]uint32, 0, want)
	for i := 0; i < numHeaderDIFAT && len(list) < want; i++ {
		list = append(list, h.DIFAT[i])
	}
	perSector := big.SectorSize()/4 - 1
	seen := make(map[uint32]bool)
	cur := h.DIFATStart
	for n := uint32(0); n < h.NumDIFATSectors && len(list) < want; n++ {
		if cur == EndOfChain || cur == FreeSect {
			break
		}
		if seen[cur] {
			return nil, &IndexError{Table: "DIFAT", Sector: cur, Limit: big.Len(), Reason: "cyclic chain"}
		}
		seen[cur] = true
		sec, err := big.Sector(cur)
		if err != nil {
			return nil, &IndexError{Table: "DIFAT", Sector: cur, Limit: big.Len(), Reason: "sector index out of range"}
		}
		sec.SetSpecial(true)
		entries := decodeTable(sec.Bytes(0, big.SectorSize()))
		for _, v := range entries[:perSector] {
			if len(list) == want {
				break
			}
			list = append(list, v)
		}
		cur = entries[perSector]
	}
	if len(list) < want {
		return nil, compDocErrorf("DIFAT lists %d FAT sectors, header declares %d", len(list), want)
	}
	return list, nil
}

// buildFAT loads the sector allocation table of a parsed container.
func buildFAT(h *Header, big *Sectors, opts *Options) (*AllocTable, error) {
	sectors, err := fatSectorList(h, big)
	if err != nil {
		return nil, err
	}
	entries := make([]uint32, 0, len(sectors)*big.SectorSize()/4)
	for _, idx := range sectors {
		sec, err := big.Sector(idx)
		if err != nil {
			return nil, &IndexError{Table: "FAT", Sector: idx, Limit: big.Len(), Reason: "FAT sector out of range"}
		}
		sec.SetSpecial(true)
		entries = append(entries, decodeTable(sec.Bytes(0, big.SectorSize()))...)
	}
	fat := newAllocTable("FAT", entries, big.Len(), opts.MaxSectors)
	big.link(fat)
	return fat, nil
}

// buildMiniFAT loads the mini-sector allocation table. The walk limit is
// set once the mini-stream size is known.
func buildMiniFAT(h *Header, fat *AllocTable, big *Sectors, opts *Options) (*AllocTable, error) {
	chain, err := fat.Chain(h.MiniFATStart)
	if err != nil {
		return nil, err
	}
	raw, err := big.Read(chain, -1)
	if err != nil {
		return nil, err
	}
	entries := decodeTable(raw)
	if n := int(h.NumMiniFATSectors) * big.SectorSize() / 4; n < len(entries) {
		entries = entries[:n]
	}
	return newAllocTable("miniFAT", entries, 0, opts.MaxSectors), nil
}

// layout tracks allocations while a container is being written.
type layout struct {
	fat     *AllocTable
	minifat *AllocTable
	size    int
	cutoff  int64
}

func newLayout(sectorSize, maxSectors int) *layout {
	return &layout{
		fat:     newAllocTable("FAT", nil, 0, maxSectors),
		minifat: newAllocTable("miniFAT", nil, 0, maxSectors),
		size:    sectorSize,
		cutoff:  MiniStreamCutoff,
	}
}

// allocate places a stream of the given size and reports whether it went
// to the mini-stream.
func (l *layout) allocate(size int64) (start uint32, mini bool, err error) {
	if size == 0 {
		return EndOfChain, false, nil
	}
	if size < l.cutoff {
		start, err = l.minifat.Allocate(ceilDiv(int(size), MiniSectorSize))
		return start, true, err
	}
	start, err = l.fat.Allocate(ceilDiv(int(size), l.size))
	return start, false, err
}
