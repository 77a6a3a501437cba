package cfb

// Signature is the magic cookie in the first 8 bytes of every compound file.
var Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

const (
	headerLen        = 512 // fixed header, first sector in version 3 files
	dirEntryLen      = 128
	numHeaderDIFAT   = 109
	maxEntryNameLen  = 31 // UTF-16 code units, excluding the terminating null
	byteOrderMark    = 0xFFFE
	defaultMinorVers = 0x003E
)

// Sector sizes.
const (
	// BigSectorSize is the sector size of version 3 files.
	BigSectorSize = 512
	// LargeSectorSize is the sector size of version 4 files.
	LargeSectorSize = 4096
	// MiniSectorSize is the size of sectors inside the mini-stream.
	MiniSectorSize = 64
	// MiniStreamCutoff is the stream length below which streams live in the mini-stream.
	MiniStreamCutoff = 4096
)

// Special values found in allocation tables and directory links.
const (
	MaxRegSect uint32 = 0xFFFFFFFA // highest regular sector number
	DIFSect    uint32 = 0xFFFFFFFC // sector holds DIFAT entries
	FATSect    uint32 = 0xFFFFFFFD // sector holds FAT entries
	EndOfChain uint32 = 0xFFFFFFFE
	FreeSect   uint32 = 0xFFFFFFFF
	NoStream   uint32 = 0xFFFFFFFF // empty directory link
)

// RootName is the reserved name of the root storage.
const RootName = "Root Entry"

func sectorName(v uint32) string {
	switch v {
	case DIFSect:
		return "DIFSECT"
	case FATSect:
		return "FATSECT"
	case EndOfChain:
		return "ENDOFCHAIN"
	case FreeSect:
		return "FREESECT"
	}
	return "REGSECT"
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
