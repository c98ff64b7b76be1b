package cdb

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/spf13/afero"

	"github.com/wippyai/pickle-host/heap"
)

type memFile struct{ afero.File }

func (f memFile) Flush() error { return f.Sync() }

type memFS struct{ fs afero.Fs }

func (m memFS) Open(name string, mode Mode) (File, error) {
	var (
		f   afero.File
		err error
	)
	if mode == ModeCreate {
		f, err = m.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	} else {
		f, err = m.fs.Open(name)
	}
	if err != nil {
		return nil, err
	}
	return memFile{f}, nil
}

func newOptions() (Options, afero.Fs) {
	fs := afero.NewMemMapFs()
	return Options{Allocator: heap.New(), FS: memFS{fs}}, fs
}

func build(t *testing.T, opts Options, path string, pairs ...[2]string) {
	t.Helper()
	db, err := Open(opts, true, path)
	if err != nil {
		t.Fatalf("Open(create) failed: %v", err)
	}
	for _, p := range pairs {
		if err := db.Add([]byte(p[0]), []byte(p[1])); err != nil {
			t.Fatalf("Add(%q) failed: %v", p[0], err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close(create) failed: %v", err)
	}
}

func value(t *testing.T, db *DB, key string, record int) (string, bool) {
	t.Helper()
	pos, ok, err := db.Lookup([]byte(key), record)
	if err != nil {
		t.Fatalf("Lookup(%q, %d) failed: %v", key, record, err)
	}
	if !ok {
		return "", false
	}
	v, err := db.Read(pos, make([]byte, pos.Length))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return string(v), true
}

func TestHash(t *testing.T) {
	if got := Hash(nil); got != 5381 {
		t.Fatalf("Hash(nil) = %d, want 5381", got)
	}
	// 5381*33 ^ 'a'
	if got := Hash([]byte("a")); got != 177573^'a' {
		t.Fatalf("Hash(a) = %d", got)
	}
}

func TestRoundTrip(t *testing.T) {
	opts, _ := newOptions()
	var pairs [][2]string
	for i := 0; i < 500; i++ {
		pairs = append(pairs, [2]string{fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i*i)})
	}
	build(t, opts, "db.cdb", pairs...)

	db, err := Open(opts, false, "db.cdb")
	if err != nil {
		t.Fatalf("Open(read) failed: %v", err)
	}
	defer db.Close()

	for _, p := range pairs {
		got, ok := value(t, db, p[0], 0)
		if !ok || got != p[1] {
			t.Fatalf("value(%q) = %q, %v; want %q", p[0], got, ok, p[1])
		}
	}
	if _, ok := value(t, db, "missing", 0); ok {
		t.Fatal("missing key found")
	}
}

func TestDuplicates(t *testing.T) {
	opts, _ := newOptions()
	build(t, opts, "dup.cdb",
		[2]string{"k", "first"}, [2]string{"other", "x"},
		[2]string{"k", "second"}, [2]string{"k", "third"})

	db, err := Open(opts, false, "dup.cdb")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	n, err := db.Count([]byte("k"))
	if err != nil || n != 3 {
		t.Fatalf("Count(k) = %d, %v; want 3", n, err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if got, ok := value(t, db, "k", i); !ok || got != want {
			t.Errorf("record %d = %q, %v; want %q", i, got, ok, want)
		}
	}
	if _, ok := value(t, db, "k", 3); ok {
		t.Error("record 3 should not exist")
	}
	if n, _ := db.Count([]byte("none")); n != 0 {
		t.Errorf("Count(none) = %d, want 0", n)
	}
}

func TestEmptyKeyAndValue(t *testing.T) {
	opts, _ := newOptions()
	build(t, opts, "e.cdb", [2]string{"", "empty key"}, [2]string{"empty value", ""})

	db, err := Open(opts, false, "e.cdb")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if got, ok := value(t, db, "", 0); !ok || got != "empty key" {
		t.Errorf("empty key = %q, %v", got, ok)
	}
	if got, ok := value(t, db, "empty value", 0); !ok || got != "" {
		t.Errorf("empty value = %q, %v", got, ok)
	}
}

func TestForeach(t *testing.T) {
	opts, _ := newOptions()
	build(t, opts, "f.cdb", [2]string{"ab", "1"}, [2]string{"abcd", "123"}, [2]string{"ab", "x"})

	db, err := Open(opts, false, "f.cdb")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var got []string
	err = db.Foreach(func(k, v []byte) error {
		got = append(got, string(k)+"="+string(v))
		return nil
	})
	if err != nil {
		t.Fatalf("Foreach failed: %v", err)
	}
	want := []string{"ab=1", "abcd=123", "ab=x"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Foreach = %v, want %v", got, want)
	}

	stop := stderrors.New("stop")
	calls := 0
	err = db.Foreach(func(k, v []byte) error {
		calls++
		return stop
	})
	if !stderrors.Is(err, stop) || calls != 1 {
		t.Fatalf("Foreach stop: err=%v calls=%d", err, calls)
	}
}

func TestEmptyDatabase(t *testing.T) {
	opts, fs := newOptions()
	build(t, opts, "empty.cdb")

	info, err := fs.Stat("empty.cdb")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != headerSize {
		t.Fatalf("empty database size = %d, want %d", info.Size(), headerSize)
	}

	db, err := Open(opts, false, "empty.cdb")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	calls := 0
	if err := db.Foreach(func(k, v []byte) error { calls++; return nil }); err != nil || calls != 0 {
		t.Fatalf("Foreach on empty db: calls=%d err=%v", calls, err)
	}
}

func TestModeErrors(t *testing.T) {
	opts, fs := newOptions()
	build(t, opts, "ro.cdb", [2]string{"k", "v"})
	before, _ := afero.ReadFile(fs, "ro.cdb")

	ro, err := Open(opts, false, "ro.cdb")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := ro.Add([]byte("k2"), []byte("v2")); !stderrors.Is(err, ErrReadOnly) {
		t.Fatalf("Add on read-only: %v", err)
	}
	_ = ro.Close()
	after, _ := afero.ReadFile(fs, "ro.cdb")
	if !bytes.Equal(before, after) {
		t.Fatal("read-only database was modified")
	}

	w, err := Open(opts, true, "w.cdb")
	if err != nil {
		t.Fatalf("Open(create) failed: %v", err)
	}
	if _, _, err := w.Lookup([]byte("k"), 0); !stderrors.Is(err, ErrNotFinalized) {
		t.Errorf("Lookup while creating: %v", err)
	}
	if _, err := w.Count([]byte("k")); !stderrors.Is(err, ErrNotFinalized) {
		t.Errorf("Count while creating: %v", err)
	}
	if err := w.Foreach(func(k, v []byte) error { return nil }); !stderrors.Is(err, ErrNotFinalized) {
		t.Errorf("Foreach while creating: %v", err)
	}
	_ = w.Close()
	if err := w.Add([]byte("k"), nil); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Add after Close: %v", err)
	}
}

func TestOpenMissing(t *testing.T) {
	opts, _ := newOptions()
	if _, err := Open(opts, false, "nope.cdb"); err == nil {
		t.Fatal("expected error opening missing file")
	}
}

func TestOpenCorrupt(t *testing.T) {
	opts, fs := newOptions()
	_ = afero.WriteFile(fs, "short.cdb", []byte("not a database"), 0o644)
	if _, err := Open(opts, false, "short.cdb"); !stderrors.Is(err, ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestOffset(t *testing.T) {
	opts, fs := newOptions()
	opts.Offset = 100
	build(t, opts, "off.cdb", [2]string{"k", "v"})

	raw, _ := afero.ReadFile(fs, "off.cdb")
	if len(raw) < 100+headerSize {
		t.Fatalf("file too short: %d", len(raw))
	}
	db, err := Open(opts, false, "off.cdb")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	if got, ok := value(t, db, "k", 0); !ok || got != "v" {
		t.Fatalf("value(k) = %q, %v", got, ok)
	}
}

func TestScratchOutOfMemory(t *testing.T) {
	opts, _ := newOptions()
	build(t, opts, "big.cdb", [2]string{"a-long-key", "v"})

	opts.Allocator = heap.New(heap.WithLimit(4))
	db, err := Open(opts, false, "big.cdb")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	if _, _, err := db.Lookup([]byte("a-long-key"), 0); !stderrors.Is(err, ErrNoMemory) {
		t.Fatalf("expected ErrNoMemory, got %v", err)
	}
}

func TestScratchReleased(t *testing.T) {
	opts, _ := newOptions()
	build(t, opts, "r.cdb", [2]string{"key", "value"})
	arena := heap.New()
	opts.Allocator = arena

	db, err := Open(opts, false, "r.cdb")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_, _ = db.Count([]byte("key"))
	_ = db.Close()
	if s := arena.Stats(); s.Allocations == 0 || s.Frees != 1 {
		t.Fatalf("stats = %s, want released scratch buffer", s)
	}
}

func TestVersion(t *testing.T) {
	if Version() != 0x010100 {
		t.Fatalf("Version = %#x", Version())
	}
}
