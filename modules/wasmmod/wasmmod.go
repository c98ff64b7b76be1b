package wasmmod

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/pickle-host/command"
	"github.com/wippyai/pickle-host/engine"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/module"
)

// Name is the module and command name.
const Name = "wasm"

// Option configures a Kind.
type Option func(*Kind)

// WithFS sets the filesystem modules are loaded from.
func WithFS(fs afero.Fs) Option {
	return func(k *Kind) { k.fs = fs }
}

// WithConfig sets the engine configuration.
func WithConfig(cfg engine.Config) Option {
	return func(k *Kind) { k.cfg = cfg }
}

// Kind is the wasm module kind.
type Kind struct {
	fs  afero.Fs
	eng *engine.WazeroEngine
	cfg engine.Config
	mu  sync.Mutex
}

// New returns the wasm module.
func New(opts ...Option) *Kind {
	k := &Kind{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Name implements module.Kind.
func (k *Kind) Name() string { return Name }

// Register implements module.Kind. The runtime lives until Shutdown.
func (k *Kind) Register(m *module.Module) error {
	eng, err := engine.NewWazeroEngine(context.Background(), &k.cfg)
	if err != nil {
		return errors.New(errors.PhaseRegister, errors.KindEngine).
			Detail("cannot create runtime").Cause(err).Build()
	}
	k.mu.Lock()
	k.eng = eng
	k.mu.Unlock()

	return m.RegisterCommands(command.Group{Name: Name, Subs: []command.Fixed{
		{Name: "load", Usage: "path", Min: 1, Max: 1, Run: k.load},
		{Name: "exports", Usage: "id", Min: 1, Max: 1, Run: exports},
		{Name: "call", Usage: "id func ?arg ...?", Min: 2, Max: -1, Run: call},
		{Name: "memory", Usage: "id", Min: 1, Max: 1, Run: memory},
		{Name: "close", Usage: "id", Min: 1, Max: 1, Run: closeInstance},
	}})
}

// Cleanup implements module.Cleaner.
func (k *Kind) Cleanup(ctx context.Context, h module.Handle) error {
	inst, ok := h.(*engine.Instance)
	if !ok {
		return errors.New(errors.PhaseTeardown, errors.KindInvalidArgument).
			Detail("wasm: unexpected handle %T", h).Build()
	}
	return inst.Close(ctx)
}

// Shutdown implements module.Shutdowner.
func (k *Kind) Shutdown(ctx context.Context) error {
	k.mu.Lock()
	eng := k.eng
	k.eng = nil
	k.mu.Unlock()
	if eng == nil {
		return nil
	}
	return eng.Close(ctx)
}

func (k *Kind) load(ctx context.Context, c *command.Call) (string, error) {
	m := c.Data.(*module.Module)
	path := c.Args[0]

	k.mu.Lock()
	eng := k.eng
	k.mu.Unlock()
	if eng == nil {
		return "", errors.Engine(c.Path, "runtime closed", nil)
	}

	wasmBytes, err := afero.ReadFile(k.fs, path)
	if err != nil {
		return "", errors.New(errors.PhaseEngine, errors.KindNotFound).
			Command(c.Path...).Token(path).Detail("cannot read").Cause(err).Build()
	}
	inst, err := eng.Load(ctx, wasmBytes)
	if err != nil {
		return "", errors.New(errors.PhaseEngine, errors.KindEngine).
			Command(c.Path...).Token(path).Detail("cannot load").Cause(err).Build()
	}

	var undo command.Undo
	defer func() { _ = undo.Release() }()
	undo.Push(func() error { return inst.Close(ctx) })

	id, err := m.Open(Name, inst)
	if err != nil {
		return "", errors.New(errors.PhaseCommand, errors.KindOf(err)).
			Command(c.Path...).Token(path).Detail("cannot register handle").Cause(err).Build()
	}
	undo.Commit()
	m.Logger().Debug("instance loaded", zap.String("id", id), zap.String("path", path))
	return id, nil
}

func lookup(c *command.Call) (*engine.Instance, error) {
	m := c.Data.(*module.Module)
	h, err := m.Lookup(c.Path, c.Args[0])
	if err != nil {
		return nil, err
	}
	return h.(*engine.Instance), nil
}

func exports(_ context.Context, c *command.Call) (string, error) {
	inst, err := lookup(c)
	if err != nil {
		return "", err
	}
	var entries []string
	for _, fn := range inst.Exports() {
		entries = append(entries, command.List(
			fn.Name,
			command.List(fn.ParamNames()...),
			command.List(fn.ResultNames()...),
		))
	}
	return command.List(entries...), nil
}

func call(ctx context.Context, c *command.Call) (string, error) {
	inst, err := lookup(c)
	if err != nil {
		return "", err
	}
	name := c.Args[1]
	if _, ok := inst.Function(name); !ok {
		return "", errors.NotFound(c.Path, "no such export", name)
	}
	results, err := inst.Call(ctx, name, c.Args[2:]...)
	switch {
	case stderrors.Is(err, engine.ErrArgCount):
		return "", errors.New(errors.PhaseCommand, errors.KindArity).
			Command(c.Path...).Token(name).Detail("%v", err).Build()
	case stderrors.Is(err, engine.ErrBadValue):
		return "", errors.New(errors.PhaseDispatch, errors.KindInvalidArgument).
			Command(c.Path...).Token(name).Detail("%v", err).Build()
	case err != nil:
		return "", errors.Engine(c.Path, "call failed", err)
	}
	return command.List(results...), nil
}

func memory(_ context.Context, c *command.Call) (string, error) {
	inst, err := lookup(c)
	if err != nil {
		return "", err
	}
	return command.Uint(uint64(inst.MemorySize())), nil
}

func closeInstance(ctx context.Context, c *command.Call) (string, error) {
	m := c.Data.(*module.Module)
	return "", m.Close(ctx, c.Path, c.Args[0])
}
