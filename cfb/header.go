package cfb

import (
	"bytes"
	"encoding/binary"
)

// Header is the decoded 512-byte compound file header.
type Header struct {
	MinorVersion      uint16
	MajorVersion      uint16
	SectorShift       uint16
	MiniSectorShift   uint16
	NumDirSectors     uint32
	NumFATSectors     uint32
	DirStart          uint32
	TransactionSig    uint32
	MiniStreamCutoff  uint32
	MiniFATStart      uint32
	NumMiniFATSectors uint32
	DIFATStart        uint32
	NumDIFATSectors   uint32
	DIFAT             [numHeaderDIFAT]uint32
}

// SectorSize returns the big sector size in bytes.
func (h *Header) SectorSize() int {
	return 1 << h.SectorShift
}

// MiniSectorSize returns the mini sector size in bytes.
func (h *Header) MiniSectorSize() int {
	return 1 << h.MiniSectorShift
}

func parseHeader(b []byte) (*Header, error) {
	if len(b) < len(Signature) || !bytes.Equal(b[:len(Signature)], Signature) {
		return nil, ErrNotCompoundFile
	}
	if len(b) < headerLen {
		return nil, compDocErrorf("Header truncated: %d bytes", len(b))
	}
	le := binary.LittleEndian
	if bom := le.Uint16(b[28:]); bom != byteOrderMark {
		return nil, compDocErrorf("Expected byte order mark 0xFFFE, got 0x%04X", bom)
	}
	h := &Header{
		MinorVersion:      le.Uint16(b[24:]),
		MajorVersion:      le.Uint16(b[26:]),
		SectorShift:       le.Uint16(b[30:]),
		MiniSectorShift:   le.Uint16(b[32:]),
		NumDirSectors:     le.Uint32(b[40:]),
		NumFATSectors:     le.Uint32(b[44:]),
		DirStart:          le.Uint32(b[48:]),
		TransactionSig:    le.Uint32(b[52:]),
		MiniStreamCutoff:  le.Uint32(b[56:]),
		MiniFATStart:      le.Uint32(b[60:]),
		NumMiniFATSectors: le.Uint32(b[64:]),
		DIFATStart:        le.Uint32(b[68:]),
		NumDIFATSectors:   le.Uint32(b[72:]),
	}
	for i := range h.DIFAT {
		h.DIFAT[i] = le.Uint32(b[76+4*i:])
	}
	switch {
	case h.MajorVersion == 3 && h.SectorShift == 9:
	case h.MajorVersion == 4 && h.SectorShift == 12:
	default:
		return nil, compDocErrorf("Unsupported version %d with sector shift %d", h.MajorVersion, h.SectorShift)
	}
	if h.MiniSectorShift != 6 {
		return nil, compDocErrorf("Unsupported mini sector shift %d", h.MiniSectorShift)
	}
	if h.MiniStreamCutoff == 0 {
		return nil, compDocErrorf("Mini stream cutoff is zero")
	}
	if h.DirStart > MaxRegSect {
		return nil, compDocErrorf("Directory start sector 0x%08X is not a regular sector", h.DirStart)
	}
	return h, nil
}

// encode renders the header as exactly 512 bytes.
func (h *Header) encode() []byte {
	b := make([]byte, headerLen)
	copy(b, Signature)
	le := binary.LittleEndian
	le.PutUint16(b[24:], h.MinorVersion)
	le.PutUint16(b[26:], h.MajorVersion)
	le.PutUint16(b[28:], byteOrderMark)
	le.PutUint16(b[30:], h.SectorShift)
	le.PutUint16(b[32:], h.MiniSectorShift)
	le.PutUint32(b[40:], h.NumDirSectors)
	le.PutUint32(b[44:], h.NumFATSectors)
	le.PutUint32(b[48:], h.DirStart)
	le.PutUint32(b[52:], h.TransactionSig)
	le.PutUint32(b[56:], h.MiniStreamCutoff)
	le.PutUint32(b[60:], h.MiniFATStart)
	le.PutUint32(b[64:], h.NumMiniFATSectors)
	le.PutUint32(b[68:], h.DIFATStart)
	le.PutUint32(b[72:], h.NumDIFATSectors)
	for i, v := range h.DIFAT {
		le.PutUint32(b[76+4*i:], v)
	}
	return b
}
