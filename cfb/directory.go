package cfb

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// EntryType is the object type byte of a directory entry.
type EntryType uint8

const (
	TypeUnknown EntryType = 0
	TypeStorage EntryType = 1
	TypeStream  EntryType = 2
	TypeRoot    EntryType = 5
)

func (t EntryType) String() string {
	switch t {
	case TypeStorage:
		return "storage"
	case TypeStream:
		return "stream"
	case TypeRoot:
		return "root"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

const (
	colorRed   = 0
	colorBlack = 1
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Entry is a node of the storage directory.
type Entry struct {
	Name      string
	Type      EntryType
	CLSID     uuid.UUID
	StateBits uint32
	Created   uint64 // FILETIME
	Modified  uint64 // FILETIME
	Start     uint32
	Size      int64

	id                 uint32
	left, right, child uint32
	color              uint8
	parent             *Entry
	children           []*Entry

	// content replaced through SetStream; nil means read from the container
	data  []byte
	dirty bool

	// root only: the current mini-stream image and its two sector views
	miniImage []byte
	miniBig   *Sectors
	mini      *Sectors
}

// IsDir reports storages and the root.
func (e *Entry) IsDir() bool {
	return e.Type == TypeStorage || e.Type == TypeRoot
}

// Parent returns the containing storage, nil for the root.
func (e *Entry) Parent() *Entry { return e.parent }

// Children returns the entries of a storage in directory order.
func (e *Entry) Children() []*Entry {
	return append([]*Entry(nil), e.children...)
}

// Path returns the slash-separated path below the root.
func (e *Entry) Path() string {
	var parts []string
	for cur := e; cur != nil && cur.Type != TypeRoot; cur = cur.parent {
		parts = append(parts, cur.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// ModTime converts the modified FILETIME, zero when unset.
func (e *Entry) ModTime() time.Time {
	return filetime(e.Modified)
}

func filetime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	// 100ns intervals since 1601-01-01
	const epochDelta = 116444736000000000
	return time.Unix(0, int64(ft-epochDelta)*100).UTC()
}

// SetRawBytes replaces the mini-stream image of the root entry. Both the
// big-sector view (the root chain) and the mini-sector view are rebuilt
// from one private copy and swapped in together.
func (e *Entry) SetRawBytes(b []byte, bigSize int) {
	image := append([]byte(nil), b...)
	big := newSectors(image, bigSize, BigSector, 0)
	mini := newSectors(image, MiniSectorSize, MiniSector, 0)
	e.miniImage, e.miniBig, e.mini = image, big, mini
	e.Size = int64(len(image))
}

// compareNames orders entry names the way compound files require: shorter
// names first, then by upper-cased UTF-16 code units.
func compareNames(a, b string) int {
	ua := utf16.Encode([]rune(strings.ToUpper(a)))
	ub := utf16.Encode([]rune(strings.ToUpper(b)))
	if len(ua) != len(ub) {
		return len(ua) - len(ub)
	}
	for i := range ua {
		if ua[i] != ub[i] {
			return int(ua[i]) - int(ub[i])
		}
	}
	return 0
}

func (e *Entry) find(name string) (int, bool) {
	i := sort.Search(len(e.children), func(i int) bool {
		return compareNames(e.children[i].Name, name) >= 0
	})
	return i, i < len(e.children) && compareNames(e.children[i].Name, name) == 0
}

func (e *Entry) addChild(c *Entry) {
	i, _ := e.find(c.Name)
	e.children = append(e.children, nil)
	copy(e.children[i+1:], e.children[i:])
	e.children[i] = c
	c.parent = e
}

func (e *Entry) removeChild(c *Entry) {
	if i, ok := e.find(c.Name); ok {
		e.children = append(e.children[:i], e.children[i+1:]...)
		c.parent = nil
	}
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("cfb: empty entry name")
	}
	if n := len(utf16.Encode([]rune(name))); n > maxEntryNameLen {
		return fmt.Errorf("cfb: entry name %q is %d UTF-16 units, limit %d", name, n, maxEntryNameLen)
	}
	if strings.ContainsAny(name, "/\\:!") {
		return fmt.Errorf("cfb: entry name %q contains a reserved character", name)
	}
	return nil
}

// Directory is the tree of storages and streams of a container.
type Directory struct {
	root *Entry
}

func newDirectory() *Directory {
	root := &Entry{Name: RootName, Type: TypeRoot, Start: EndOfChain}
	return &Directory{root: root}
}

// Root returns the root storage.
func (d *Directory) Root() *Entry { return d.root }

// Lookup resolves a slash-separated path. Components compare case-insensitively.
func (d *Directory) Lookup(path string) (*Entry, error) {
	cur := d.root
	for _, part := range splitPath(path) {
		if !cur.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		i, ok := cur.find(part)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		cur = cur.children[i]
	}
	return cur, nil
}

// Walk visits every entry depth-first in directory order. Returning false
// from fn skips the children of that entry.
func (d *Directory) Walk(fn func(e *Entry) bool) {
	var visit func(e *Entry)
	visit = func(e *Entry) {
		if !fn(e) {
			return
		}
		for _, c := range e.children {
			visit(c)
		}
	}
	visit(d.root)
}

// Streams returns every stream entry.
func (d *Directory) Streams() []*Entry {
	var out []*Entry
	d.Walk(func(e *Entry) bool {
		if e.Type == TypeStream {
			out = append(out, e)
		}
		return true
	})
	return out
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// clsidFromBytes reads a CLSID stored in GUID byte order (first three
// fields little-endian) into RFC 4122 order.
func clsidFromBytes(b []byte) uuid.UUID {
	var u uuid.UUID
	copy(u[:], b[:16])
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	return u
}

func clsidToBytes(u uuid.UUID, b []byte) {
	copy(b[:16], u[:])
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
}

func decodeEntry(b []byte, id uint32, version uint16) (*Entry, error) {
	le := binary.LittleEndian
	e := &Entry{
		id:        id,
		Type:      EntryType(b[66]),
		color:     b[67],
		left:      le.Uint32(b[68:]),
		right:     le.Uint32(b[72:]),
		child:     le.Uint32(b[76:]),
		CLSID:     clsidFromBytes(b[80:96]),
		StateBits: le.Uint32(b[96:]),
		Created:   le.Uint64(b[100:]),
		Modified:  le.Uint64(b[108:]),
		Start:     le.Uint32(b[116:]),
		Size:      int64(le.Uint64(b[120:])),
	}
	if version == 3 {
		// the high dword is undefined in version 3 files
		e.Size &= 0xFFFFFFFF
	}
	if e.Type == TypeUnknown {
		return e, nil
	}
	nameLen := int(le.Uint16(b[64:]))
	if nameLen > 64 || nameLen%2 != 0 {
		return nil, compDocErrorf("Directory entry %d: bad name length %d", id, nameLen)
	}
	if nameLen >= 2 {
		name, err := utf16le.NewDecoder().Bytes(b[:nameLen-2])
		if err != nil {
			return nil, compDocErrorf("Directory entry %d: %v", id, err)
		}
		e.Name = string(name)
	}
	return e, nil
}

// parseDirectory decodes the flat entry array and links it into a tree.
func parseDirectory(raw []byte, version uint16) (*Directory, error) {
	n := len(raw) / dirEntryLen
	if n == 0 {
		return nil, compDocErrorf("Directory is empty")
	}
	flat := make([]*Entry, n)
	for i := range flat {
		e, err := decodeEntry(raw[i*dirEntryLen:(i+1)*dirEntryLen], uint32(i), version)
		if err != nil {
			return nil, err
		}
		flat[i] = e
	}
	root := flat[0]
	if root.Type != TypeRoot {
		return nil, compDocErrorf("Directory entry 0 is %s, expected root storage", root.Type)
	}
	seen := make([]bool, n)
	seen[0] = true
	var linkStorage func(parent *Entry) error
	var linkSiblings func(parent *Entry, id uint32) error
	linkSiblings = func(parent *Entry, id uint32) error {
		if id == NoStream {
			return nil
		}
		if uint64(id) >= uint64(n) {
			return &IndexError{Table: "directory", Sector: id, Limit: n, Reason: "entry id out of range"}
		}
		if seen[id] {
			return &IndexError{Table: "directory", Sector: id, Limit: n, Reason: "entry reached twice"}
		}
		seen[id] = true
		e := flat[id]
		if e.Type == TypeUnknown || e.Type == TypeRoot {
			return compDocErrorf("Directory entry %d has type %s inside storage %q", id, e.Type, parent.Name)
		}
		if err := linkSiblings(parent, e.left); err != nil {
			return err
		}
		parent.addChild(e)
		if err := linkSiblings(parent, e.right); err != nil {
			return err
		}
		if e.Type == TypeStorage {
			return linkStorage(e)
		}
		return nil
	}
	linkStorage = func(parent *Entry) error {
		return linkSiblings(parent, parent.child)
	}
	if err := linkStorage(root); err != nil {
		return nil, err
	}
	return &Directory{root: root}, nil
}

// dirRecord is an entry with the ids assigned for one write.
type dirRecord struct {
	e                  *Entry
	left, right, child uint32
	color              uint8
	start              uint32
	size               int64
}

// flatten assigns ids depth-first (root is 0) and links every storage's
// children as a red-black tree.
func (d *Directory) flatten() []*dirRecord {
	var out []*dirRecord
	ids := make(map[*Entry]uint32)
	var visit func(e *Entry)
	visit = func(e *Entry) {
		ids[e] = uint32(len(out))
		out = append(out, &dirRecord{e: e, left: NoStream, right: NoStream, child: NoStream, color: colorBlack})
		for _, c := range e.children {
			visit(c)
		}
	}
	visit(d.root)
	for _, rec := range out {
		if len(rec.e.children) == 0 {
			continue
		}
		nodes := make([]*dirRecord, len(rec.e.children))
		for i, c := range rec.e.children {
			nodes[i] = out[ids[c]]
		}
		rec.child = buildSiblingTree(nodes, ids)
	}
	return out
}

func (r *dirRecord) encode(b []byte) {
	le := binary.LittleEndian
	for i := range b[:dirEntryLen] {
		b[i] = 0
	}
	e := r.e
	name, _ := utf16le.NewEncoder().Bytes([]byte(e.Name))
	copy(b[:62], name)
	le.PutUint16(b[64:], uint16(min(len(name), 62)+2))
	b[66] = byte(e.Type)
	b[67] = r.color
	le.PutUint32(b[68:], r.left)
	le.PutUint32(b[72:], r.right)
	le.PutUint32(b[76:], r.child)
	clsidToBytes(e.CLSID, b[80:96])
	le.PutUint32(b[96:], e.StateBits)
	le.PutUint64(b[100:], e.Created)
	le.PutUint64(b[108:], e.Modified)
	le.PutUint32(b[116:], r.start)
	le.PutUint64(b[120:], uint64(r.size))
}

func encodeFreeEntry(b []byte) {
	for i := range b[:dirEntryLen] {
		b[i] = 0
	}
	le := binary.LittleEndian
	le.PutUint32(b[68:], NoStream)
	le.PutUint32(b[72:], NoStream)
	le.PutUint32(b[76:], NoStream)
}
