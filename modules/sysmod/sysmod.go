package sysmod

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/pickle-host/command"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/heap"
	"github.com/wippyai/pickle-host/interp"
	"github.com/wippyai/pickle-host/module"
)

// Name is the module name.
const Name = "sys"

// DefaultClockFormat is used by clock format when no format is given.
const DefaultClockFormat = "%a %b %d %H:%M:%S %Z %Y"

// Option configures a Kind.
type Option func(*Kind)

// WithStdin sets the reader used by gets and by source without a path.
func WithStdin(r io.Reader) Option {
	return func(k *Kind) { k.stdin = bufio.NewReader(r) }
}

// WithStdout sets the writer used by puts.
func WithStdout(w io.Writer) Option {
	return func(k *Kind) { k.stdout = w }
}

// WithFS sets the file system used by file and source.
func WithFS(fs afero.Fs) Option {
	return func(k *Kind) { k.fs = fs }
}

// WithEnv sets the environment lookup used by getenv.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(k *Kind) { k.env = lookup }
}

// WithClock sets the time source used by clock.
func WithClock(now func() time.Time) Option {
	return func(k *Kind) { k.now = now }
}

// Kind is the system module kind.
type Kind struct {
	stdin  *bufio.Reader
	stdout io.Writer
	fs     afero.Fs
	env    func(string) (string, bool)
	now    func() time.Time
	start  time.Time
}

// New returns a system module bound to the process by default.
func New(opts ...Option) *Kind {
	k := &Kind{
		stdin:  bufio.NewReader(os.Stdin),
		stdout: os.Stdout,
		fs:     afero.NewOsFs(),
		env:    os.LookupEnv,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Name implements module.Kind.
func (k *Kind) Name() string { return Name }

// Cleanup implements module.Cleaner. The module hands out no tags.
func (k *Kind) Cleanup(context.Context, module.Handle) error { return nil }

// Register implements module.Kind.
func (k *Kind) Register(m *module.Module) error {
	k.start = k.now()
	return m.RegisterCommands(
		command.Fixed{Name: "gets", Min: 0, Max: 0, Run: k.gets},
		command.Flagged{Name: "puts", Flags: []string{"-nonewline"}, Optional: true, Run: k.puts},
		command.Fixed{Name: "getenv", Usage: "name", Min: 1, Max: 1, Run: k.getenv},
		command.Fixed{Name: "exit", Usage: "?code?", Min: 0, Max: 1, Run: exit},
		command.Group{Name: "clock", Subs: []command.Fixed{
			{Name: "clicks", Min: 0, Max: 0, Run: k.clicks},
			{Name: "seconds", Min: 0, Max: 0, Run: k.seconds},
			{Name: "format", Usage: "seconds ?format?", Min: 1, Max: 2, Run: clockFormat},
		}},
		command.Group{Name: "file", Subs: []command.Fixed{
			{Name: "rename", Usage: "old new", Min: 2, Max: 2, Run: k.rename},
			{Name: "delete", Usage: "path ?path ...?", Min: 1, Max: -1, Run: k.remove},
		}},
		command.Fixed{Name: "source", Usage: "?path?", Min: 0, Max: 1, Run: k.source},
		command.Group{Name: "heap", Subs: []command.Fixed{
			{Name: "allocations", Min: 0, Max: 0, Run: heapStat},
			{Name: "frees", Min: 0, Max: 0, Run: heapStat},
			{Name: "reallocations", Min: 0, Max: 0, Run: heapStat},
			{Name: "total", Min: 0, Max: 0, Run: heapStat},
		}},
		command.Fixed{Name: "sleep", Usage: "milliseconds", Min: 1, Max: 1, Run: sleep},
	)
}

func (k *Kind) gets(context.Context, *command.Call) (string, error) {
	line, err := k.stdin.ReadString('\n')
	if err != nil && !stderrors.Is(err, io.EOF) {
		return "", errors.Engine([]string{"gets"}, "read failed", err)
	}
	if line == "" {
		return "EOF", interp.ErrBreak
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func (k *Kind) puts(_ context.Context, c *command.Call) (string, error) {
	s := c.Arg(0, "")
	if c.Flag == "" {
		s += "\n"
	}
	if _, err := io.WriteString(k.stdout, s); err != nil {
		return "", errors.Engine(c.Path, "write failed", err)
	}
	return "", nil
}

func (k *Kind) getenv(_ context.Context, c *command.Call) (string, error) {
	v, _ := k.env(c.Args[0])
	return v, nil
}

func exit(_ context.Context, c *command.Call) (string, error) {
	code := 0
	if len(c.Args) == 1 {
		n, err := strconv.Atoi(c.Args[0])
		if err != nil {
			return "", errors.InvalidArgument(c.Path, c.Args[0], "expected integer exit code")
		}
		code = n
	}
	return "", &interp.ExitError{Code: code}
}

func (k *Kind) clicks(context.Context, *command.Call) (string, error) {
	return command.Int(k.now().Sub(k.start).Milliseconds()), nil
}

func (k *Kind) seconds(context.Context, *command.Call) (string, error) {
	return command.Int(k.now().Unix()), nil
}

func clockFormat(_ context.Context, c *command.Call) (string, error) {
	secs, err := command.ParseInt(c.Path, c.Args[0])
	if err != nil {
		return "", err
	}
	layout := c.Arg(1, DefaultClockFormat)
	return strftime.Format(layout, time.Unix(secs, 0).UTC()), nil
}

func (k *Kind) rename(_ context.Context, c *command.Call) (string, error) {
	from, to := c.Args[0], c.Args[1]
	if err := k.fs.Rename(from, to); err != nil {
		return "", errors.New(errors.PhaseEngine, errors.KindEngine).
			Command(c.Path...).Token(from).Detail("rename to %q failed", to).Cause(err).Build()
	}
	return "", nil
}

func (k *Kind) remove(_ context.Context, c *command.Call) (string, error) {
	for _, path := range c.Args {
		if err := k.fs.Remove(path); err != nil {
			return "", errors.New(errors.PhaseEngine, errors.KindEngine).
				Command(c.Path...).Token(path).Detail("delete failed").Cause(err).Build()
		}
	}
	return "", nil
}

func (k *Kind) slurp(c *command.Call) ([]byte, error) {
	if len(c.Args) == 0 {
		return io.ReadAll(k.stdin)
	}
	return afero.ReadFile(k.fs, c.Args[0])
}

func (k *Kind) source(ctx context.Context, c *command.Call) (string, error) {
	data, err := k.slurp(c)
	if err != nil {
		return "", errors.New(errors.PhaseEngine, errors.KindEngine).
			Command(c.Path...).Token(c.Arg(0, "stdin")).Detail("cannot read").Cause(err).Build()
	}

	alloc := c.Interp.Allocator()
	program, ok := heap.Dup(alloc, string(data))
	if !ok {
		return "", errors.OutOfMemory(c.Path, len(data)+1)
	}
	defer heap.Release(alloc, program)

	c.Data.(*module.Module).Logger().Debug("sourcing script",
		zap.String("path", c.Arg(0, "stdin")), zap.Int("bytes", len(data)))

	out, err := c.Interp.Eval(ctx, string(program))
	var ret *interp.ReturnError
	if stderrors.As(err, &ret) {
		return ret.Value, nil
	}
	return out, err
}

type statser interface {
	Stats() heap.Stats
}

func heapStat(_ context.Context, c *command.Call) (string, error) {
	s, ok := c.Interp.Allocator().(statser)
	if !ok {
		return "", errors.New(errors.PhaseCommand, errors.KindEngine).
			Command(c.Path...).Detail("allocator keeps no statistics").Build()
	}
	st := s.Stats()
	switch c.Path[1] {
	case "allocations":
		return command.Uint(st.Allocations), nil
	case "frees":
		return command.Uint(st.Frees), nil
	case "reallocations":
		return command.Uint(st.Reallocations), nil
	default:
		return command.Uint(st.Total), nil
	}
}

// maxSleep is the longest sleep, in milliseconds, a time.Duration holds.
const maxSleep = uint64(math.MaxInt64 / int64(time.Millisecond))

func sleep(ctx context.Context, c *command.Call) (string, error) {
	ms, err := command.ParseUint(c.Path, c.Args[0])
	if err != nil {
		return "", err
	}
	if ms > maxSleep {
		return "", errors.InvalidArgument(c.Path, c.Args[0], "duration out of range")
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
