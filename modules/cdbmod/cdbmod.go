package cdbmod

import (
	"context"
	"math"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/pickle-host/cdb"
	"github.com/wippyai/pickle-host/command"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/module"
)

// Name is the module and command name.
const Name = "cdb"

// Mode is fixed when a handle is opened.
type Mode uint8

const (
	ReadOnly Mode = iota
	Creating
)

func (m Mode) String() string {
	if m == Creating {
		return "creating"
	}
	return "read-only"
}

type store struct {
	db   *cdb.DB
	path string
	// tmp is the file a Creating handle writes; it replaces path on close.
	tmp  string
	mode Mode
}

// Kind is the cdb module kind.
type Kind struct {
	fs afero.Fs
}

// New returns a cdb module whose databases live on fs.
func New(fs afero.Fs) *Kind {
	return &Kind{fs: fs}
}

// Name implements module.Kind.
func (k *Kind) Name() string { return Name }

// Register implements module.Kind.
func (k *Kind) Register(m *module.Module) error {
	return m.RegisterCommands(command.Group{Name: Name, Subs: []command.Fixed{
		{Name: "open", Usage: "path mode", Min: 2, Max: 2, Run: k.open},
		{Name: "close", Usage: "id", Min: 1, Max: 1, Run: closeStore},
		{Name: "read", Usage: "id key ?record?", Min: 2, Max: 3, Run: read},
		{Name: "write", Usage: "id key value", Min: 3, Max: 3, Run: write},
		{Name: "exists", Usage: "id key ?record?", Min: 2, Max: 3, Run: exists},
		{Name: "count", Usage: "id key", Min: 2, Max: 2, Run: count},
		{Name: "stats", Usage: "id", Min: 1, Max: 1, Run: stats},
		{Name: "version", Min: 0, Max: 0, Run: version},
	}})
}

// Cleanup implements module.Cleaner. Closing a Creating handle finalizes
// the database.
func (k *Kind) Cleanup(_ context.Context, h module.Handle) error {
	st, ok := h.(*store)
	if !ok {
		return errors.New(errors.PhaseTeardown, errors.KindInvalidArgument).
			Detail("cdb: unexpected handle %T", h).Build()
	}
	if err := st.db.Close(); err != nil {
		if st.tmp != "" {
			_ = k.fs.Remove(st.tmp)
		}
		return errors.Engine(nil, "close "+st.path, err)
	}
	if st.tmp != "" {
		if err := k.fs.Rename(st.tmp, st.path); err != nil {
			_ = k.fs.Remove(st.tmp)
			return errors.Engine(nil, "replace "+st.path, err)
		}
	}
	return nil
}

// reserve creates an empty sibling of path for a Creating handle to write.
func (k *Kind) reserve(path string) (string, error) {
	f, err := afero.TempFile(k.fs, filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = k.fs.Remove(name)
		return "", err
	}
	return name, nil
}

func (k *Kind) open(_ context.Context, c *command.Call) (string, error) {
	m := c.Data.(*module.Module)
	path, tok := c.Args[0], c.Args[1]

	var mode Mode
	switch tok {
	case "w":
		mode = Creating
	case "r":
		mode = ReadOnly
	default:
		return "", errors.InvalidArgument(c.Path, tok, "mode must be w or r")
	}

	var undo command.Undo
	defer func() { _ = undo.Release() }()

	target, tmp := path, ""
	if mode == Creating {
		var err error
		if tmp, err = k.reserve(path); err != nil {
			return "", errors.New(errors.PhaseEngine, errors.KindEngine).
				Command(c.Path...).Token(path).Detail("cannot open").Cause(err).Build()
		}
		target = tmp
		undo.Push(func() error { return k.fs.Remove(tmp) })
	}

	opts := cdb.Options{Allocator: m.Allocator(), FS: fileSystem{k.fs}}
	db, err := cdb.Open(opts, mode == Creating, target)
	if err != nil {
		return "", errors.New(errors.PhaseEngine, errors.KindEngine).
			Command(c.Path...).Token(path).Detail("cannot open").Cause(err).Build()
	}
	undo.Push(db.Close)

	id, err := m.Open(Name, &store{db: db, path: path, tmp: tmp, mode: mode})
	if err != nil {
		return "", errors.New(errors.PhaseCommand, errors.KindOf(err)).
			Command(c.Path...).Token(path).Detail("cannot register handle").Cause(err).Build()
	}
	undo.Commit()
	m.Logger().Debug("database opened",
		zap.String("id", id), zap.String("path", path), zap.Stringer("mode", mode))
	return id, nil
}

func lookup(c *command.Call) (*store, error) {
	m := c.Data.(*module.Module)
	h, err := m.Lookup(c.Path, c.Args[0])
	if err != nil {
		return nil, err
	}
	return h.(*store), nil
}

func closeStore(ctx context.Context, c *command.Call) (string, error) {
	m := c.Data.(*module.Module)
	return "", m.Close(ctx, c.Path, c.Args[0])
}

func write(_ context.Context, c *command.Call) (string, error) {
	st, err := lookup(c)
	if err != nil {
		return "", err
	}
	if st.mode != Creating {
		return "", errors.ReadOnly(c.Path, c.Args[0])
	}
	if err := st.db.Add([]byte(c.Args[1]), []byte(c.Args[2])); err != nil {
		return "", errors.Engine(c.Path, "add failed", err)
	}
	return "", nil
}

func record(c *command.Call) (int, error) {
	if len(c.Args) < 3 {
		return 0, nil
	}
	n, err := command.ParseUint(c.Path, c.Args[2])
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	return int(n), nil
}

func find(c *command.Call) (*store, cdb.Position, bool, error) {
	st, err := lookup(c)
	if err != nil {
		return nil, cdb.Position{}, false, err
	}
	rec, err := record(c)
	if err != nil {
		return nil, cdb.Position{}, false, err
	}
	pos, ok, err := st.db.Lookup([]byte(c.Args[1]), rec)
	if err != nil {
		return nil, cdb.Position{}, false, errors.Engine(c.Path, "lookup failed", err)
	}
	return st, pos, ok, nil
}

func read(_ context.Context, c *command.Call) (string, error) {
	st, pos, ok, err := find(c)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.NotFound(c.Path, "key not found", c.Args[1])
	}

	alloc := c.Data.(*module.Module).Allocator()
	size := int(pos.Length) + 1
	buf := alloc.Allocate(nil, 0, size)
	if buf == nil {
		return "", errors.OutOfMemory(c.Path, size)
	}
	defer alloc.Allocate(buf, size, 0)

	v, err := st.db.Read(pos, buf)
	if err != nil {
		return "", errors.Engine(c.Path, "read failed", err)
	}
	return string(v), nil
}

func exists(_ context.Context, c *command.Call) (string, error) {
	_, _, ok, err := find(c)
	if err != nil {
		return "", err
	}
	return command.Bool(ok), nil
}

func count(_ context.Context, c *command.Call) (string, error) {
	st, err := lookup(c)
	if err != nil {
		return "", err
	}
	n, err := st.db.Count([]byte(c.Args[1]))
	if err != nil {
		return "", errors.Engine(c.Path, "count failed", err)
	}
	return command.Int(int64(n)), nil
}

// Stats summarizes every record of a database.
type Stats struct {
	Records    uint64
	KeyMin     uint64
	KeyMax     uint64
	KeyBytes   uint64
	ValueMin   uint64
	ValueMax   uint64
	ValueBytes uint64
}

// Collect scans db. Minima start at the 32-bit maximum and are reported as
// 0 for an empty database.
func Collect(db *cdb.DB) (Stats, error) {
	s := Stats{KeyMin: math.MaxUint32, ValueMin: math.MaxUint32}
	err := db.Foreach(func(key, value []byte) error {
		kl, vl := uint64(len(key)), uint64(len(value))
		s.Records++
		s.KeyBytes += kl
		s.ValueBytes += vl
		s.KeyMin = min(s.KeyMin, kl)
		s.KeyMax = max(s.KeyMax, kl)
		s.ValueMin = min(s.ValueMin, vl)
		s.ValueMax = max(s.ValueMax, vl)
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	if s.Records == 0 {
		s.KeyMin, s.ValueMin = 0, 0
	}
	return s, nil
}

// Record renders s as {key value} pairs in fixed order.
func (s Stats) Record() string {
	return command.Record(
		command.Field{Key: "records", Value: command.Uint(s.Records)},
		command.Field{Key: "key-min", Value: command.Uint(s.KeyMin)},
		command.Field{Key: "key-max", Value: command.Uint(s.KeyMax)},
		command.Field{Key: "key-bytes", Value: command.Uint(s.KeyBytes)},
		command.Field{Key: "value-min", Value: command.Uint(s.ValueMin)},
		command.Field{Key: "value-max", Value: command.Uint(s.ValueMax)},
		command.Field{Key: "value-bytes", Value: command.Uint(s.ValueBytes)},
	)
}

func stats(_ context.Context, c *command.Call) (string, error) {
	st, err := lookup(c)
	if err != nil {
		return "", err
	}
	s, err := Collect(st.db)
	if err != nil {
		return "", errors.Engine(c.Path, "scan failed", err)
	}
	return s.Record(), nil
}

func version(context.Context, *command.Call) (string, error) {
	return command.Version(cdb.Version()), nil
}
