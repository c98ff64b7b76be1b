package cdbmod

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/heap"
	"github.com/wippyai/pickle-host/interp"
	"github.com/wippyai/pickle-host/module"
)

type harness struct {
	t     *testing.T
	ctx   context.Context
	fs    afero.Fs
	arena *heap.Arena
	in    *interp.Interp
	reg   *module.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, ctx: context.Background(), fs: afero.NewMemMapFs(), arena: heap.New()}
	h.in = interp.New(interp.WithAllocator(h.arena))
	reg, err := module.Build(h.ctx, h.in, New(h.fs))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	h.reg = reg
	t.Cleanup(func() { _ = reg.Close(h.ctx) })
	return h
}

func (h *harness) eval(src string) string {
	h.t.Helper()
	got, err := h.in.Eval(h.ctx, src)
	if err != nil {
		h.t.Fatalf("Eval(%q) failed: %v", src, err)
	}
	return got
}

func (h *harness) fail(src string, kind errors.Kind) error {
	h.t.Helper()
	_, err := h.in.Eval(h.ctx, src)
	if errors.KindOf(err) != kind {
		h.t.Fatalf("Eval(%q): kind = %q, want %q (err: %v)", src, errors.KindOf(err), kind, err)
	}
	return err
}

func (h *harness) tags() int {
	m, _ := h.reg.Module(Name)
	return m.Tags().Len()
}

func TestScenario_RoundTrip(t *testing.T) {
	h := newHarness(t)
	h.eval(`set id [cdb open db.dat w]; cdb write $id k1 v1; cdb close $id`)
	h.eval(`set id [cdb open db.dat r]`)

	if got := h.eval(`cdb read $id k1`); got != "v1" {
		t.Fatalf("read k1 = %q, want v1", got)
	}
	if got := h.eval(`cdb exists $id missing`); got != "0" {
		t.Fatalf("exists missing = %q, want 0", got)
	}
	if got := h.eval(`cdb exists $id k1`); got != "1" {
		t.Fatalf("exists k1 = %q, want 1", got)
	}
}

func TestScenario_Stats(t *testing.T) {
	h := newHarness(t)
	h.eval(`set id [cdb open s.cdb w]; cdb write $id ab x; cdb write $id abcd xyz; cdb close $id`)
	got := h.eval(`set id [cdb open s.cdb r]; cdb stats $id`)
	want := "{records 2} {key-min 2} {key-max 4} {key-bytes 6} {value-min 1} {value-max 3} {value-bytes 4}"
	if got != want {
		t.Fatalf("stats = %q\nwant    %q", got, want)
	}
}

func TestRoundTrip_Many(t *testing.T) {
	h := newHarness(t)
	h.eval(`set id [cdb open many.cdb w]`)
	for i := 0; i < 100; i++ {
		h.eval(fmt.Sprintf(`cdb write $id key%d {value %d}`, i, i))
	}
	h.eval(`cdb close $id; set id [cdb open many.cdb r]`)
	for i := 0; i < 100; i++ {
		if got := h.eval(fmt.Sprintf(`cdb read $id key%d`, i)); got != fmt.Sprintf("value %d", i) {
			t.Fatalf("read key%d = %q", i, got)
		}
	}
}

func TestCount(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		h := newHarness(t)
		h.eval(`set id [cdb open c.cdb w]; cdb write $id other o`)
		for i := 0; i < n; i++ {
			h.eval(fmt.Sprintf(`cdb write $id k v%d`, i))
		}
		h.eval(`cdb close $id; set id [cdb open c.cdb r]`)
		if got := h.eval(`cdb count $id k`); got != fmt.Sprint(n) {
			t.Errorf("count after %d writes = %q", n, got)
		}
		if n > 1 {
			if got := h.eval(fmt.Sprintf(`cdb read $id k %d`, n-1)); got != fmt.Sprintf("v%d", n-1) {
				t.Errorf("read record %d = %q", n-1, got)
			}
			if got := h.eval(fmt.Sprintf(`cdb exists $id k %d`, n)); got != "0" {
				t.Errorf("exists record %d = %q", n, got)
			}
		}
	}
}

func TestStats_Empty(t *testing.T) {
	h := newHarness(t)
	h.eval(`set id [cdb open e.cdb w]; cdb close $id`)
	got := h.eval(`set id [cdb open e.cdb r]; cdb stats $id`)
	if got != "{records 0} {key-min 0} {key-max 0} {key-bytes 0} {value-min 0} {value-max 0} {value-bytes 0}" {
		t.Fatalf("empty stats = %q", got)
	}
}

func TestOpen_BadMode(t *testing.T) {
	h := newHarness(t)
	for _, mode := range []string{"rw", "W", "", "a"} {
		err := h.fail(fmt.Sprintf(`cdb open x.cdb {%s}`, mode), errors.KindInvalidArgument)
		if !strings.HasPrefix(err.Error(), "cdb open:") {
			t.Errorf("error %q does not name the command", err)
		}
	}
	if ok, _ := afero.Exists(h.fs, "x.cdb"); ok {
		t.Fatal("bad mode touched storage")
	}
	if h.tags() != 0 {
		t.Fatal("bad mode registered a tag")
	}
}

func TestOpen_Missing(t *testing.T) {
	h := newHarness(t)
	err := h.fail(`cdb open nope.cdb r`, errors.KindEngine)
	if !strings.Contains(err.Error(), `"nope.cdb"`) {
		t.Errorf("error %q does not name the path", err)
	}
}

func TestWrite_ReadOnly(t *testing.T) {
	h := newHarness(t)
	h.eval(`set id [cdb open ro.cdb w]; cdb write $id k v; cdb close $id`)
	before, _ := afero.ReadFile(h.fs, "ro.cdb")

	h.eval(`set id [cdb open ro.cdb r]`)
	h.fail(`cdb write $id k2 v2`, errors.KindReadOnly)
	h.eval(`cdb close $id`)

	after, _ := afero.ReadFile(h.fs, "ro.cdb")
	if !bytes.Equal(before, after) {
		t.Fatal("read-only database was modified")
	}
}

func TestRead_Errors(t *testing.T) {
	h := newHarness(t)
	h.eval(`set id [cdb open r.cdb w]; cdb write $id k v`)
	// Not finalized until close.
	h.fail(`cdb read $id k`, errors.KindEngine)
	h.fail(`cdb exists $id k`, errors.KindEngine)
	h.fail(`cdb stats $id`, errors.KindEngine)
	h.eval(`cdb close $id; set id [cdb open r.cdb r]`)

	h.fail(`cdb read $id nope`, errors.KindNotFound)
	h.fail(`cdb read $id k 1`, errors.KindNotFound)
	h.fail(`cdb read $id k -1`, errors.KindInvalidArgument)
	h.fail(`cdb exists $id k x`, errors.KindInvalidArgument)
}

func TestUnknownHandle(t *testing.T) {
	h := newHarness(t)
	for _, sub := range []string{"close cdb9", "read cdb9 k", "write cdb9 k v", "exists cdb9 k", "count cdb9 k", "stats cdb9"} {
		h.fail("cdb "+sub, errors.KindNotFound)
	}
}

func TestClose_Twice(t *testing.T) {
	h := newHarness(t)
	h.eval(`set id [cdb open t.cdb w]; cdb close $id`)
	h.fail(`cdb close $id`, errors.KindNotFound)
	h.fail(`cdb read $id k`, errors.KindNotFound)
}

func TestIdentifiers_NotReused(t *testing.T) {
	h := newHarness(t)
	first := h.eval(`set a [cdb open a.cdb w]; cdb close $a; set a`)
	second := h.eval(`cdb open b.cdb w`)
	if first == second {
		t.Fatalf("identifier %q reused", first)
	}
	if !strings.HasPrefix(first, "cdb") {
		t.Fatalf("identifier %q lacks prefix", first)
	}
}

func TestDispatchErrors(t *testing.T) {
	h := newHarness(t)
	h.fail(`cdb`, errors.KindArity)
	h.fail(`cdb open x.cdb`, errors.KindArity)
	h.fail(`cdb write a b`, errors.KindArity)
	h.fail(`cdb version extra`, errors.KindArity)
	err := h.fail(`cdb frobnicate`, errors.KindUnknownSubcommand)
	if !strings.Contains(err.Error(), `"frobnicate"`) {
		t.Errorf("error %q does not name the token", err)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	if got := h.eval(`cdb version`); got != "1 1 0" {
		t.Fatalf("version = %q", got)
	}
}

func TestTeardown_FinalizesOpenHandles(t *testing.T) {
	h := newHarness(t)
	h.eval(`set w [cdb open open.cdb w]; cdb write $w k v; cdb open other.cdb w`)
	if got := h.tags(); got != 2 {
		t.Fatalf("tags = %d, want 2", got)
	}
	if err := h.reg.Close(h.ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s := h.arena.Stats(); s.Allocations != s.Frees {
		t.Fatalf("leaked after teardown: %s", s)
	}
}

func TestOpen_TagFailureKeepsExistingFile(t *testing.T) {
	for _, existing := range []bool{false, true} {
		ctx := context.Background()
		fs := afero.NewMemMapFs()
		if err := fs.MkdirAll("/db", 0o755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if existing {
			if err := afero.WriteFile(fs, "/db/f.cdb", []byte("precious"), 0o644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
		}
		// Only the module record's allocation succeeds.
		arena := heap.New(heap.WithFailAfter(1))
		in := interp.New(interp.WithAllocator(arena))
		reg, err := module.Build(ctx, in, New(fs))
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		_, err = in.Eval(ctx, `cdb open /db/f.cdb w`)
		if !stderrors.Is(err, errors.ErrOutOfMemory) {
			t.Fatalf("existing=%v: expected out of memory, got %v", existing, err)
		}
		m, _ := reg.Module(Name)
		if m.Tags().Len() != 0 {
			t.Fatalf("existing=%v: tag registered despite failure", existing)
		}
		infos, err := afero.ReadDir(fs, "/db")
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		want := 0
		if existing {
			want = 1
		}
		if len(infos) != want {
			t.Fatalf("existing=%v: %d entries left in /db, want %d", existing, len(infos), want)
		}
		if existing {
			data, _ := afero.ReadFile(fs, "/db/f.cdb")
			if string(data) != "precious" {
				t.Fatalf("existing file changed to %q", data)
			}
		}
		_ = reg.Close(ctx)
	}
}

func TestClose_ReplacesFileOnFinalize(t *testing.T) {
	h := newHarness(t)
	if err := afero.WriteFile(h.fs, "/db/r.cdb", []byte("old"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	h.eval(`set w [cdb open /db/r.cdb w]; cdb write $w k v`)
	if data, _ := afero.ReadFile(h.fs, "/db/r.cdb"); string(data) != "old" {
		t.Fatalf("file replaced before close: %q", data)
	}
	h.eval(`cdb close $w`)
	if got := h.eval(`set r [cdb open /db/r.cdb r]; cdb read $r k`); got != "v" {
		t.Fatalf("read = %q, want v", got)
	}
	h.eval(`cdb close $r`)
	infos, _ := afero.ReadDir(h.fs, "/db")
	if len(infos) != 1 {
		t.Fatalf("%d entries in /db, want 1", len(infos))
	}
}

func TestCollect(t *testing.T) {
	s := Stats{Records: 1, KeyMin: 1, KeyMax: 1, KeyBytes: 1}
	if !strings.HasPrefix(s.Record(), "{records 1} {key-min 1}") {
		t.Fatalf("Record = %q", s.Record())
	}
}
