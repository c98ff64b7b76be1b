package cdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	picklehost "github.com/wippyai/pickle-host"
)

const (
	tableCount = 256
	headerSize = tableCount * 8
	version    = 0x010100
)

var (
	// ErrReadOnly is returned by Add on a database opened for reading.
	ErrReadOnly = errors.New("cdb: database is read-only")
	// ErrNotFinalized is returned by read operations while a database is
	// being created.
	ErrNotFinalized = errors.New("cdb: database is not finalized")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("cdb: database is closed")
	// ErrTooLarge is returned when a record would not fit the 32-bit format.
	ErrTooLarge = errors.New("cdb: database too large")
	// ErrNoMemory is returned when the allocator refuses a buffer.
	ErrNoMemory = errors.New("cdb: out of memory")
	// ErrFormat is returned when the file is not a valid database.
	ErrFormat = errors.New("cdb: invalid format")
)

// Mode selects how FS.Open opens a file.
type Mode int

const (
	// ModeRead opens an existing file for reading.
	ModeRead Mode = iota
	// ModeCreate creates or truncates a file for reading and writing.
	ModeCreate
)

// File is the set of file primitives the engine uses.
type File interface {
	io.ReadWriteSeeker
	io.Closer
	Flush() error
}

// FS opens files for the engine.
type FS interface {
	Open(name string, mode Mode) (File, error)
}

// Options configures Open. FS is required.
type Options struct {
	// Allocator provides the engine's scratch buffers.
	Allocator picklehost.Allocator
	// Hash defaults to Hash.
	Hash func(key []byte) uint32
	// Compare reports whether two keys are equal; defaults to bytes.Equal.
	Compare func(a, b []byte) bool
	FS      FS
	// Offset is where the database starts within the file.
	Offset int64
}

// Position locates a value within the file.
type Position struct {
	Offset uint32
	Length uint32
}

// Hash is the DJB hash used by the cdb format.
func Hash(key []byte) uint32 {
	h := uint32(5381)
	for _, c := range key {
		h = ((h << 5) + h) ^ uint32(c)
	}
	return h
}

// Version returns the engine version packed as 0x00MMmmpp.
func Version() uint32 {
	return version
}

type slot struct {
	hash uint32
	pos  uint32
}

type table struct {
	pos   uint32
	slots uint32
}

// DB is an open database.
type DB struct {
	opts   Options
	f      File
	create bool
	closed bool

	// create mode
	w       *bufio.Writer
	pos     uint32
	pending [tableCount][]slot

	// read mode
	tables [tableCount]table
	end    uint32
	buf    []byte
}

// Open opens the database at path. With create set the file is created or
// truncated and records may be added until Close finalizes it.
func Open(opts Options, create bool, path string) (*DB, error) {
	if opts.FS == nil {
		return nil, errors.New("cdb: no file system")
	}
	if opts.Hash == nil {
		opts.Hash = Hash
	}
	if opts.Compare == nil {
		opts.Compare = bytes.Equal
	}

	mode := ModeRead
	if create {
		mode = ModeCreate
	}
	f, err := opts.FS.Open(path, mode)
	if err != nil {
		return nil, err
	}

	db := &DB{opts: opts, f: f, create: create}
	if create {
		err = db.startCreate()
	} else {
		err = db.readHeader()
	}
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) seek(pos uint32) error {
	_, err := db.f.Seek(db.opts.Offset+int64(pos), io.SeekStart)
	return err
}

func (db *DB) startCreate() error {
	if err := db.seek(headerSize); err != nil {
		return err
	}
	db.w = bufio.NewWriter(db.f)
	db.pos = headerSize
	return nil
}

func (db *DB) readHeader() error {
	if err := db.seek(0); err != nil {
		return err
	}
	var hdr [headerSize]byte
	if _, err := io.ReadFull(db.f, hdr[:]); err != nil {
		return fmt.Errorf("%w: short header: %v", ErrFormat, err)
	}
	db.end = math.MaxUint32
	for i := range db.tables {
		t := table{
			pos:   binary.LittleEndian.Uint32(hdr[i*8:]),
			slots: binary.LittleEndian.Uint32(hdr[i*8+4:]),
		}
		if t.pos < headerSize {
			return fmt.Errorf("%w: table %d at %d", ErrFormat, i, t.pos)
		}
		if t.pos < db.end {
			db.end = t.pos
		}
		db.tables[i] = t
	}
	return nil
}

func (db *DB) usable() error {
	if db.closed {
		return ErrClosed
	}
	if db.create {
		return ErrNotFinalized
	}
	return nil
}

// Add appends a record. Duplicate keys are kept.
func (db *DB) Add(key, value []byte) error {
	if db.closed {
		return ErrClosed
	}
	if !db.create {
		return ErrReadOnly
	}
	size := uint64(8) + uint64(len(key)) + uint64(len(value))
	if uint64(db.pos)+size > math.MaxUint32 {
		return ErrTooLarge
	}

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(key)))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(value)))
	for _, b := range [][]byte{hdr[:], key, value} {
		if _, err := db.w.Write(b); err != nil {
			return err
		}
	}

	h := db.opts.Hash(key)
	db.pending[h&0xff] = append(db.pending[h&0xff], slot{hash: h, pos: db.pos})
	db.pos += uint32(size)
	return nil
}

// finalize writes the hash tables and the header.
func (db *DB) finalize() error {
	var hdr [headerSize]byte
	var word [8]byte
	for i, entries := range db.pending {
		n := uint32(len(entries)) * 2
		if uint64(db.pos)+uint64(n)*8 > math.MaxUint32 {
			return ErrTooLarge
		}
		binary.LittleEndian.PutUint32(hdr[i*8:], db.pos)
		binary.LittleEndian.PutUint32(hdr[i*8+4:], n)
		if n == 0 {
			continue
		}

		slots := make([]slot, n)
		for _, e := range entries {
			j := (e.hash >> 8) % n
			for slots[j].pos != 0 {
				j = (j + 1) % n
			}
			slots[j] = e
		}
		for _, s := range slots {
			binary.LittleEndian.PutUint32(word[0:], s.hash)
			binary.LittleEndian.PutUint32(word[4:], s.pos)
			if _, err := db.w.Write(word[:]); err != nil {
				return err
			}
		}
		db.pos += n * 8
	}
	if err := db.w.Flush(); err != nil {
		return err
	}
	if err := db.seek(0); err != nil {
		return err
	}
	if _, err := db.f.Write(hdr[:]); err != nil {
		return err
	}
	return db.f.Flush()
}

// Close releases the database. In create mode it first writes the hash
// tables; the file is closed even when that fails.
func (db *DB) Close() error {
	if db.closed {
		return ErrClosed
	}
	db.closed = true

	var err error
	if db.create {
		err = db.finalize()
		db.pending = [tableCount][]slot{}
	}
	if db.buf != nil && db.opts.Allocator != nil {
		db.opts.Allocator.Allocate(db.buf[:cap(db.buf)], cap(db.buf), 0)
	}
	db.buf = nil
	if cerr := db.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// scratch returns a buffer of n bytes grown through the allocator.
func (db *DB) scratch(n int) ([]byte, error) {
	if cap(db.buf) >= n {
		return db.buf[:n], nil
	}
	if db.opts.Allocator == nil {
		db.buf = make([]byte, n)
		return db.buf, nil
	}
	var old []byte
	if db.buf != nil {
		old = db.buf[:cap(db.buf)]
	}
	grown := db.opts.Allocator.Allocate(old, cap(db.buf), n)
	if grown == nil {
		return nil, ErrNoMemory
	}
	db.buf = grown
	return grown[:n], nil
}

func (db *DB) readWords(pos uint32) (uint32, uint32, error) {
	if err := db.seek(pos); err != nil {
		return 0, 0, err
	}
	var w [8]byte
	if _, err := io.ReadFull(db.f, w[:]); err != nil {
		return 0, 0, fmt.Errorf("%w: read at %d: %v", ErrFormat, pos, err)
	}
	return binary.LittleEndian.Uint32(w[0:]), binary.LittleEndian.Uint32(w[4:]), nil
}

// scan probes the table for key and calls fn with every matching value, in
// write order, until fn returns false.
func (db *DB) scan(key []byte, fn func(Position) bool) error {
	if err := db.usable(); err != nil {
		return err
	}
	h := db.opts.Hash(key)
	t := db.tables[h&0xff]
	if t.slots == 0 {
		return nil
	}
	j := (h >> 8) % t.slots
	for i := uint32(0); i < t.slots; i++ {
		sh, spos, err := db.readWords(t.pos + j*8)
		if err != nil {
			return err
		}
		if spos == 0 {
			return nil
		}
		if sh == h {
			match, pos, err := db.matchRecord(spos, key)
			if err != nil {
				return err
			}
			if match && !fn(pos) {
				return nil
			}
		}
		j = (j + 1) % t.slots
	}
	return nil
}

func (db *DB) matchRecord(pos uint32, key []byte) (bool, Position, error) {
	klen, vlen, err := db.readWords(pos)
	if err != nil {
		return false, Position{}, err
	}
	if int(klen) != len(key) {
		return false, Position{}, nil
	}
	buf, err := db.scratch(int(klen))
	if err != nil {
		return false, Position{}, err
	}
	if _, err := io.ReadFull(db.f, buf); err != nil {
		return false, Position{}, fmt.Errorf("%w: key at %d: %v", ErrFormat, pos, err)
	}
	if !db.opts.Compare(buf, key) {
		return false, Position{}, nil
	}
	return true, Position{Offset: pos + 8 + klen, Length: vlen}, nil
}

// Lookup finds the record-th value stored under key.
func (db *DB) Lookup(key []byte, record int) (Position, bool, error) {
	var (
		found Position
		ok    bool
		n     int
	)
	err := db.scan(key, func(p Position) bool {
		if n == record {
			found, ok = p, true
			return false
		}
		n++
		return true
	})
	if err != nil {
		return Position{}, false, err
	}
	return found, ok, nil
}

// Count returns the number of values stored under key.
func (db *DB) Count(key []byte) (int, error) {
	n := 0
	err := db.scan(key, func(Position) bool {
		n++
		return true
	})
	return n, err
}

// Read reads the value at pos into buf, which must hold pos.Length bytes.
func (db *DB) Read(pos Position, buf []byte) ([]byte, error) {
	if err := db.usable(); err != nil {
		return nil, err
	}
	if len(buf) < int(pos.Length) {
		return nil, io.ErrShortBuffer
	}
	if err := db.seek(pos.Offset); err != nil {
		return nil, err
	}
	buf = buf[:pos.Length]
	if _, err := io.ReadFull(db.f, buf); err != nil {
		return nil, fmt.Errorf("%w: value at %d: %v", ErrFormat, pos.Offset, err)
	}
	return buf, nil
}

// Foreach calls fn for every record in write order. The slices passed to fn
// are only valid during the call. A non-nil error from fn stops iteration
// and is returned.
func (db *DB) Foreach(fn func(key, value []byte) error) error {
	if err := db.usable(); err != nil {
		return err
	}
	if err := db.seek(headerSize); err != nil {
		return err
	}
	r := bufio.NewReader(db.f)
	var hdr [8]byte
	for pos := uint32(headerSize); pos < db.end; {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return fmt.Errorf("%w: record at %d: %v", ErrFormat, pos, err)
		}
		klen := binary.LittleEndian.Uint32(hdr[0:])
		vlen := binary.LittleEndian.Uint32(hdr[4:])
		size := uint64(klen) + uint64(vlen)
		if uint64(pos)+8+size > uint64(db.end) {
			return fmt.Errorf("%w: record at %d overruns data", ErrFormat, pos)
		}
		buf, err := db.scratch(int(size))
		if err != nil {
			return err
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("%w: record at %d: %v", ErrFormat, pos, err)
		}
		if err := fn(buf[:klen], buf[klen:]); err != nil {
			return err
		}
		pos += 8 + uint32(size)
	}
	return nil
}
