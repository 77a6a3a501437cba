package cfb

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// image is a fully laid out container ready to be emitted.
type image struct {
	header  []byte
	sectors []*Sector
	chains  []Chain
}

// build lays out every stream of f into a fresh set of sectors.
func (f *File) build() (*image, error) {
	ss := f.opts.SectorSize
	l := newLayout(ss, f.opts.MaxSectors)
	recs := f.dir.flatten()

	type bigStream struct {
		owner string
		start uint32
		data  []byte
	}
	var (
		bigs []bigStream
		mini []byte
	)
	for _, rec := range recs {
		e := rec.e
		if e.Type != TypeStream {
			rec.start = 0
			continue
		}
		data, err := f.read(e)
		if err != nil {
			return nil, err
		}
		start, isMini, err := l.allocate(int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("cfb: stream %q: %w", e.Path(), err)
		}
		rec.start, rec.size = start, int64(len(data))
		switch {
		case isMini:
			mini = append(mini, data...)
			if pad := len(mini) % MiniSectorSize; pad != 0 {
				mini = append(mini, make([]byte, MiniSectorSize-pad)...)
			}
		case len(data) > 0:
			bigs = append(bigs, bigStream{owner: e.Path(), start: start, data: data})
		}
	}

	img := &image{}
	place := func(start uint32, n int, owner string, special bool, payload func(i int) []byte) {
		if n == 0 {
			return
		}
		chain := make(Chain, n)
		for i := 0; i < n; i++ {
			idx := start + uint32(i)
			chain[i] = idx
			img.sectors[idx] = &Sector{
				kind:    BigSector,
				index:   idx,
				size:    ss,
				data:    payload(i),
				special: special,
				owner:   owner,
			}
		}
		img.chains = append(img.chains, chain)
	}
	chunk := func(b []byte) func(i int) []byte {
		return func(i int) []byte {
			out := make([]byte, ss)
			copy(out, b[min(i*ss, len(b)):min((i+1)*ss, len(b))])
			return out
		}
	}

	// mini-stream, carried by the root chain
	out := &Entry{Name: RootName, Type: TypeRoot}
	out.SetRawBytes(mini, ss)
	rootStart, err := l.fat.Allocate(out.miniBig.Len())
	if err != nil {
		return nil, err
	}
	recs[0].start, recs[0].size = rootStart, int64(len(mini))

	// directory
	perSector := ss / dirEntryLen
	dirSectors := ceilDiv(len(recs), perSector)
	dirStart, err := l.fat.Allocate(dirSectors)
	if err != nil {
		return nil, err
	}
	dirBytes := make([]byte, dirSectors*ss)
	for i := 0; i < dirSectors*perSector; i++ {
		b := dirBytes[i*dirEntryLen:]
		if i < len(recs) {
			recs[i].encode(b)
		} else {
			encodeFreeEntry(b)
		}
	}

	// miniFAT
	miniFATSectors := ceilDiv(l.minifat.Len()*4, ss)
	miniFATStart, err := l.fat.Allocate(miniFATSectors)
	if err != nil {
		return nil, err
	}
	miniFATBytes := encodeTable(l.minifat.Entries(), miniFATSectors*ss)

	// FAT and DIFAT sectors describe themselves, so their count is a fixed point
	entries := ss / 4
	nFAT, nDIFAT := 0, 0
	for {
		fatNeed := ceilDiv(l.fat.Len()+nFAT+nDIFAT, entries)
		difNeed := 0
		if fatNeed > numHeaderDIFAT {
			difNeed = ceilDiv(fatNeed-numHeaderDIFAT, entries-1)
		}
		if fatNeed == nFAT && difNeed == nDIFAT {
			break
		}
		nFAT, nDIFAT = fatNeed, difNeed
	}
	fatStart, err := l.fat.reserve(nFAT, FATSect)
	if err != nil {
		return nil, err
	}
	difStart := EndOfChain
	if nDIFAT > 0 {
		if difStart, err = l.fat.reserve(nDIFAT, DIFSect); err != nil {
			return nil, err
		}
	}

	img.sectors = make([]*Sector, l.fat.Len())
	for _, s := range bigs {
		place(s.start, ceilDiv(len(s.data), ss), s.owner, false, chunk(s.data))
	}
	place(rootStart, out.miniBig.Len(), RootName, false, func(i int) []byte {
		return out.miniBig.list[i].Bytes(0, ss)
	})
	place(dirStart, dirSectors, "<directory>", false, chunk(dirBytes))
	place(miniFATStart, miniFATSectors, "<miniFAT>", false, chunk(miniFATBytes))
	place(fatStart, nFAT, "<FAT>", true, chunk(encodeTable(l.fat.Entries(), nFAT*ss)))

	h := &Header{
		MinorVersion:      defaultMinorVers,
		MajorVersion:      3,
		SectorShift:       9,
		MiniSectorShift:   6,
		NumFATSectors:     uint32(nFAT),
		DirStart:          dirStart,
		MiniStreamCutoff:  MiniStreamCutoff,
		MiniFATStart:      miniFATStart,
		NumMiniFATSectors: uint32(miniFATSectors),
		DIFATStart:        difStart,
		NumDIFATSectors:   uint32(nDIFAT),
	}
	if ss == LargeSectorSize {
		h.MajorVersion, h.SectorShift = 4, 12
		h.NumDirSectors = uint32(dirSectors)
	}
	for i := range h.DIFAT {
		h.DIFAT[i] = FreeSect
		if i < nFAT {
			h.DIFAT[i] = fatStart + uint32(i)
		}
	}
	if nDIFAT > 0 {
		var rest []uint32
		for i := numHeaderDIFAT; i < nFAT; i++ {
			rest = append(rest, fatStart+uint32(i))
		}
		place(difStart, nDIFAT, "<DIFAT>", true, func(i int) []byte {
			lo := min(i*(entries-1), len(rest))
			hi := min(lo+entries-1, len(rest))
			list := append([]uint32(nil), rest[lo:hi]...)
			for len(list) < entries-1 {
				list = append(list, FreeSect)
			}
			next := EndOfChain
			if i < nDIFAT-1 {
				next = difStart + uint32(i) + 1
			}
			return encodeTable(append(list, next), ss)
		})
	}
	img.header = make([]byte, ss)
	copy(img.header, h.encode())
	f.tracef("cfb: layout %d sectors, %d FAT, %d DIFAT, mini-stream %d bytes", len(img.sectors), nFAT, nDIFAT, len(mini))
	return img, nil
}

// emit writes the header and then every chain in allocation order,
// skipping sectors already streamed. A final sweep in index order catches
// any sector no chain covered.
func (img *image) emit(w io.Writer) (int64, error) {
	var total int64
	n, err := w.Write(img.header)
	total += int64(n)
	if err != nil {
		return total, &StreamError{Stream: "<header>", Sector: EndOfChain, Err: err}
	}
	for _, s := range img.sectors {
		if s != nil {
			s.ResetStreamed()
		}
	}
	written := 0
	put := func(s *Sector) error {
		if s == nil || s.Streamed() {
			return nil
		}
		if int(s.index) != written {
			return &StreamError{Stream: s.owner, Sector: s.index, Err: fmt.Errorf("emitted out of order at position %d", written)}
		}
		n, err := w.Write(s.data)
		total += int64(n)
		if err != nil {
			return &StreamError{Stream: s.owner, Sector: s.index, Err: err}
		}
		s.MarkStreamed()
		written++
		return nil
	}
	for _, chain := range img.chains {
		for _, idx := range chain {
			if err := put(img.sectors[idx]); err != nil {
				return total, err
			}
		}
	}
	for _, s := range img.sectors {
		if err := put(s); err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteTo serialises the container.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	if err := f.ready(); err != nil {
		return 0, err
	}
	img, err := f.build()
	if err != nil {
		return 0, err
	}
	return img.emit(w)
}

// Bytes returns the serialised container.
func (f *File) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the container to path through a temporary file in the same
// directory, renamed into place once complete.
func (f *File) Save(path string) error {
	if err := f.ready(); err != nil {
		return err
	}
	return withTempFile(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp", func(tf *os.File) error {
		if _, err := f.WriteTo(tf); err != nil {
			return err
		}
		if err := tf.Sync(); err != nil {
			return err
		}
		if err := tf.Close(); err != nil {
			return err
		}
		return os.Rename(tf.Name(), path)
	})
}
