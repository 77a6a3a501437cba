package cfb

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
)

// State is the lifecycle stage of a File.
type State int32

const (
	StateUninitialized State = iota
	StateHeaderParsed
	StateDirectoryParsed
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateHeaderParsed:
		return "HEADER_PARSED"
	case StateDirectoryParsed:
		return "DIRECTORY_PARSED"
	case StateReady:
		return "READY"
	case StateClosed:
		return "CLOSED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Options configures reading and writing of compound files. A nil
// *Options means defaults.
type Options struct {
	Logfile                  io.Writer
	Verbosity                int
	IgnoreWorkbookCorruption bool
	SectorSize               int // 512 (version 3, default) or 4096 (version 4) on write
	MaxSectors               int // allocation table capacity, 0 means the format limit
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.SectorSize != LargeSectorSize {
		out.SectorSize = BigSectorSize
	}
	return out
}

// File is a compound file container: a directory of storages and streams
// laid out over FAT-chained sectors.
type File struct {
	mu    sync.Mutex
	state atomic.Int32
	opts  Options

	buf     []byte
	header  *Header
	big     *Sectors
	fat     *AllocTable
	minifat *AllocTable
	dir     *Directory
	cutoff  int64
}

func newFile(opts *Options) *File {
	return &File{opts: opts.withDefaults(), cutoff: MiniStreamCutoff}
}

// New returns an empty, ready container holding only the root storage.
func New(opts *Options) *File {
	f := newFile(opts)
	f.dir = newDirectory()
	f.dir.root.SetRawBytes(nil, f.opts.SectorSize)
	f.setState(StateReady)
	return f
}

// Parse loads a container from an in-memory image. The buffer is shared,
// not copied, and must not be modified while the File is in use.
func Parse(buf []byte, opts *Options) (*File, error) {
	f := newFile(opts)
	if err := f.Load(buf); err != nil {
		return nil, err
	}
	return f, nil
}

// Open reads and parses the file at path.
func Open(path string, opts *Options) (*File, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(buf, opts)
}

// OpenReader parses a container from a stream. Input that is not an
// *os.File is spooled through a temporary file first.
func OpenReader(r io.Reader, opts *Options) (*File, error) {
	if f, ok := r.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
			buf, err := io.ReadAll(f)
			if err != nil {
				return nil, err
			}
			return Parse(buf, opts)
		}
	}
	var buf []byte
	err := withTempFile("", "cfb-spool-*.tmp", func(tf *os.File) error {
		if _, err := io.Copy(tf, r); err != nil {
			return err
		}
		if _, err := tf.Seek(0, io.SeekStart); err != nil {
			return err
		}
		var err error
		buf, err = io.ReadAll(tf)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Parse(buf, opts)
}

// State returns the current lifecycle state.
func (f *File) State() State {
	return State(f.state.Load())
}

func (f *File) setState(s State) {
	f.state.Store(int32(s))
	f.tracef("cfb: state %s", s)
}

func (f *File) ready() error {
	switch f.State() {
	case StateReady:
		return nil
	case StateClosed:
		return ErrClosed
	}
	return ErrNotReady
}

func (f *File) tracef(format string, args ...interface{}) {
	if f.opts.Logfile != nil && f.opts.Verbosity >= 2 {
		fmt.Fprintf(f.opts.Logfile, format+"\n", args...)
	}
}

func (f *File) warnf(format string, args ...interface{}) {
	if f.opts.Logfile != nil {
		fmt.Fprintf(f.opts.Logfile, "*** WARNING: "+format+"\n", args...)
	}
}

// Load parses buf into f, replacing any previous content. The whole
// initialisation runs under one lock. On failure f keeps its previous
// content and state.
func (f *File) Load(buf []byte) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.State()
	if prev == StateClosed {
		return ErrClosed
	}
	defer func() {
		if err != nil {
			f.setState(prev)
		}
	}()
	f.setState(StateUninitialized)

	h, err := parseHeader(buf)
	if err != nil {
		return err
	}
	f.setState(StateHeaderParsed)

	ss := h.SectorSize()
	big := newSectors(buf, ss, BigSector, ss)
	fat, err := buildFAT(h, big, &f.opts)
	if err != nil {
		return err
	}
	f.tracef("cfb: %s, %d FAT entries", big, fat.Len())

	dirChain, err := fat.Chain(h.DirStart)
	if err != nil {
		return err
	}
	raw, err := big.Read(dirChain, -1)
	if err != nil {
		return err
	}
	dir, err := parseDirectory(raw, h.MajorVersion)
	if err != nil {
		return err
	}
	f.tracef("cfb: directory chain of %d sectors", len(dirChain))
	f.setState(StateDirectoryParsed)

	minifat := newAllocTable("miniFAT", nil, 0, f.opts.MaxSectors)
	if h.NumMiniFATSectors > 0 && h.MiniFATStart != EndOfChain {
		if minifat, err = buildMiniFAT(h, fat, big, &f.opts); err != nil {
			return err
		}
	}
	root := dir.root
	rootChain, err := fat.Chain(root.Start)
	if err != nil {
		return err
	}
	image, err := big.Read(rootChain, root.Size)
	if err != nil {
		return fmt.Errorf("cfb: mini-stream: %w", err)
	}
	root.SetRawBytes(image, ss)
	minifat.limit = root.mini.Len()
	root.mini.link(minifat)

	next := &File{opts: f.opts, buf: buf, header: h, big: big, fat: fat, minifat: minifat, dir: dir, cutoff: int64(h.MiniStreamCutoff)}
	if err := next.checkCrossLinks(dirChain, rootChain); err != nil {
		return err
	}
	f.buf, f.header, f.big, f.fat, f.minifat, f.dir = next.buf, next.header, next.big, next.fat, next.minifat, next.dir
	f.cutoff = next.cutoff
	f.setState(StateReady)
	return nil
}

// checkCrossLinks verifies that no sector belongs to two chains.
func (f *File) checkCrossLinks(dirChain, rootChain Chain) error {
	bigOwners := make(map[uint32]string)
	miniOwners := make(map[uint32]string)
	claim := func(owners map[uint32]string, table string, chain Chain, name string) error {
		for _, idx := range chain {
			if prev, ok := owners[idx]; ok {
				msg := fmt.Sprintf("Workbook corruption: %s sector %d is used by %q and %q", table, idx, prev, name)
				if !f.opts.IgnoreWorkbookCorruption {
					return &CompDocError{Message: msg}
				}
				f.warnf("%s", msg)
				continue
			}
			owners[idx] = name
		}
		return nil
	}
	for i, sec := range f.big.list {
		if sec.special {
			bigOwners[uint32(i)] = "<FAT>"
		}
	}
	if err := claim(bigOwners, "FAT", dirChain, "<directory>"); err != nil {
		return err
	}
	if f.header.NumMiniFATSectors > 0 {
		chain, err := f.fat.Chain(f.header.MiniFATStart)
		if err != nil {
			return err
		}
		if err := claim(bigOwners, "FAT", chain, "<miniFAT>"); err != nil {
			return err
		}
	}
	if err := claim(bigOwners, "FAT", rootChain, RootName); err != nil {
		return err
	}
	for _, e := range f.dir.Streams() {
		if e.Size == 0 {
			continue
		}
		if e.Size < f.cutoff {
			chain, err := f.minifat.Chain(e.Start)
			if err != nil {
				return fmt.Errorf("cfb: stream %q: %w", e.Path(), err)
			}
			if err := claim(miniOwners, "miniFAT", chain, e.Path()); err != nil {
				return err
			}
			continue
		}
		chain, err := f.fat.Chain(e.Start)
		if err != nil {
			return fmt.Errorf("cfb: stream %q: %w", e.Path(), err)
		}
		if err := claim(bigOwners, "FAT", chain, e.Path()); err != nil {
			return err
		}
	}
	return nil
}

// Header returns the parsed header, nil for containers built with New.
func (f *File) Header() *Header { return f.header }

// Directory returns the entry tree.
func (f *File) Directory() (*Directory, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	return f.dir, nil
}

// Entries lists every entry depth-first, root first.
func (f *File) Entries() ([]*Entry, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	var out []*Entry
	f.dir.Walk(func(e *Entry) bool {
		out = append(out, e)
		return true
	})
	return out, nil
}

// Stream returns a fresh copy of the stream at path.
func (f *File) Stream(path string) ([]byte, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	e, err := f.dir.Lookup(path)
	if err != nil {
		return nil, err
	}
	if e.Type != TypeStream {
		return nil, fmt.Errorf("cfb: %s is a %s, not a stream", path, e.Type)
	}
	return f.read(e)
}

func (f *File) read(e *Entry) ([]byte, error) {
	if e.dirty {
		return append([]byte{}, e.data...), nil
	}
	if e.Size == 0 {
		return []byte{}, nil
	}
	var (
		chain Chain
		err   error
		from  *Sectors
	)
	if e.Size < f.cutoff {
		chain, err = f.minifat.Chain(e.Start)
		from = f.dir.root.mini
	} else {
		chain, err = f.fat.Chain(e.Start)
		from = f.big
	}
	if err != nil {
		return nil, fmt.Errorf("cfb: stream %q: %w", e.Path(), err)
	}
	data, err := from.Read(chain, e.Size)
	if err != nil {
		return nil, fmt.Errorf("cfb: stream %q: %w", e.Path(), err)
	}
	return data, nil
}

// SetStream creates or replaces the stream at path, creating missing
// storages on the way.
func (f *File) SetStream(path string, data []byte) error {
	if err := f.ready(); err != nil {
		return err
	}
	parts := splitPath(path)
	if len(parts) == 0 {
		return fmt.Errorf("cfb: empty stream path")
	}
	for _, p := range parts {
		if err := validName(p); err != nil {
			return err
		}
	}
	cur := f.dir.root
	for _, p := range parts[:len(parts)-1] {
		if i, ok := cur.find(p); ok {
			if !cur.children[i].IsDir() {
				return fmt.Errorf("cfb: %s is a stream, not a storage", cur.children[i].Path())
			}
			cur = cur.children[i]
			continue
		}
		s := &Entry{Name: p, Type: TypeStorage, Start: EndOfChain}
		cur.addChild(s)
		cur = s
	}
	name := parts[len(parts)-1]
	var e *Entry
	if i, ok := cur.find(name); ok {
		e = cur.children[i]
		if e.Type != TypeStream {
			return fmt.Errorf("cfb: %s is a %s, not a stream", e.Path(), e.Type)
		}
	} else {
		e = &Entry{Name: name, Type: TypeStream}
		cur.addChild(e)
	}
	e.data = append([]byte{}, data...)
	e.dirty = true
	e.Size = int64(len(data))
	return nil
}

// Remove deletes the entry at path together with everything below it.
func (f *File) Remove(path string) error {
	if err := f.ready(); err != nil {
		return err
	}
	e, err := f.dir.Lookup(path)
	if err != nil {
		return err
	}
	if e.Type == TypeRoot {
		return fmt.Errorf("cfb: cannot remove the root storage")
	}
	e.parent.removeChild(e)
	return nil
}

type entrySnapshot struct {
	Name      string
	Type      EntryType
	CLSID     uuid.UUID
	StateBits uint32
	Created   uint64
	Modified  uint64
	Data      []byte
	Children  []*entrySnapshot
}

func (f *File) snapshot(e *Entry) (*entrySnapshot, error) {
	s := &entrySnapshot{
		Name:      e.Name,
		Type:      e.Type,
		CLSID:     e.CLSID,
		StateBits: e.StateBits,
		Created:   e.Created,
		Modified:  e.Modified,
	}
	switch {
	case e.Type == TypeStream && e.dirty:
		s.Data = e.data
	case e.Type == TypeStream:
		data, err := f.read(e)
		if err != nil {
			return nil, err
		}
		s.Data = data
	}
	for _, c := range e.children {
		cs, err := f.snapshot(c)
		if err != nil {
			return nil, err
		}
		s.Children = append(s.Children, cs)
	}
	return s, nil
}

func restore(s *entrySnapshot) *Entry {
	e := &Entry{
		Name:      s.Name,
		Type:      s.Type,
		CLSID:     s.CLSID,
		StateBits: s.StateBits,
		Created:   s.Created,
		Modified:  s.Modified,
		Start:     EndOfChain,
	}
	if s.Type == TypeStream {
		e.data = s.Data
		if e.data == nil {
			e.data = []byte{}
		}
		e.dirty = true
		e.Size = int64(len(s.Data))
	}
	for _, cs := range s.Children {
		e.addChild(restore(cs))
	}
	return e
}

// Clone returns an independent ready container with the same tree and
// stream contents.
func (f *File) Clone() (*File, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	snap, err := f.snapshot(f.dir.root)
	if err != nil {
		return nil, err
	}
	var dup entrySnapshot
	if err := deepcopy.Copy(&dup, *snap); err != nil {
		return nil, fmt.Errorf("cfb: clone: %w", err)
	}
	out := newFile(&f.opts)
	out.dir = &Directory{root: restore(&dup)}
	out.dir.root.Type = TypeRoot
	out.dir.root.SetRawBytes(nil, out.opts.SectorSize)
	out.setState(StateReady)
	return out, nil
}

// Close releases the buffer. Every later call returns ErrClosed.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.State() == StateClosed {
		return ErrClosed
	}
	f.buf, f.big, f.fat, f.minifat, f.dir = nil, nil, nil, nil, nil
	f.setState(StateClosed)
	return nil
}
