package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrNoFunction is returned when a module does not export the function.
	ErrNoFunction = errors.New("no such exported function")
	// ErrArgCount is returned when a call passes the wrong number of arguments.
	ErrArgCount = errors.New("wrong number of arguments")
	// ErrBadValue is returned when an argument does not fit its parameter type.
	ErrBadValue = errors.New("invalid value")
)

// WazeroEngine owns a wazero runtime.
type WazeroEngine struct {
	runtime wazero.Runtime
	cfg     Config
}

// Config holds configuration for engine creation
type Config struct {
	// Stdout and Stderr receive WASI output; nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// WASI instantiates wasi_snapshot_preview1 so modules may import it.
	WASI bool
}

// NewWazeroEngine creates a new engine. A nil cfg uses the defaults.
func NewWazeroEngine(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	e := &WazeroEngine{}
	if cfg != nil {
		e.cfg = *cfg
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if e.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if e.cfg.WASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
			_ = e.runtime.Close(ctx)
			return nil, fmt.Errorf("instantiate wasi: %w", err)
		}
	}
	return e, nil
}

// Load compiles wasmBytes and instantiates the result anonymously.
func (e *WazeroEngine) Load(ctx context.Context, wasmBytes []byte) (*Instance, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile failed: %w", err)
	}

	modConfig := wazero.NewModuleConfig().WithName("") // anonymous for repeated loads
	if e.cfg.Stdout != nil {
		modConfig = modConfig.WithStdout(e.cfg.Stdout)
	}
	if e.cfg.Stderr != nil {
		modConfig = modConfig.WithStderr(e.cfg.Stderr)
	}
	// Start functions run only when called explicitly.
	modConfig = modConfig.WithStartFunctions()

	mod, err := e.runtime.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("instantiate failed: %w", err)
	}

	inst := &Instance{compiled: compiled, module: mod, exports: exportsOf(compiled)}
	Logger().Debug("module loaded", zap.Int("bytes", len(wasmBytes)), zap.Int("exports", len(inst.exports)))
	return inst, nil
}

// Close releases the runtime and every instance still in it.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Function describes an exported function.
type Function struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// ParamNames returns the parameter type names.
func (f Function) ParamNames() []string { return typeNames(f.Params) }

// ResultNames returns the result type names.
func (f Function) ResultNames() []string { return typeNames(f.Results) }

func exportsOf(compiled wazero.CompiledModule) []Function {
	defs := compiled.ExportedFunctions()
	fns := make([]Function, 0, len(defs))
	for name, def := range defs {
		fns = append(fns, Function{Name: name, Params: def.ParamTypes(), Results: def.ResultTypes()})
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return fns
}

// Instance is an instantiated module.
type Instance struct {
	compiled wazero.CompiledModule
	module   api.Module
	exports  []Function
	closed   bool
}

// Exports returns the exported functions sorted by name.
func (i *Instance) Exports() []Function {
	return append([]Function(nil), i.exports...)
}

// Function returns the export named name.
func (i *Instance) Function(name string) (Function, bool) {
	for _, f := range i.exports {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// Call invokes the export name with text arguments and returns its results
// as text.
func (i *Instance) Call(ctx context.Context, name string, args ...string) ([]string, error) {
	sig, ok := i.Function(name)
	fn := i.module.ExportedFunction(name)
	if !ok || fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoFunction, name)
	}
	if len(args) != len(sig.Params) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArgCount, name, len(sig.Params), len(args))
	}

	params := make([]uint64, len(args))
	for j, tok := range args {
		v, err := ParseValue(sig.Params[j], tok)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", j+1, err)
		}
		params[j] = v
	}

	raw, err := fn.Call(ctx, params...)
	if err != nil {
		var exit *sys.ExitError
		if errors.As(err, &exit) && exit.ExitCode() == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	out := make([]string, len(raw))
	for j, v := range raw {
		out[j] = FormatValue(sig.Results[j], v)
	}
	return out, nil
}

// MemorySize returns the size of the exported memory in bytes, or 0.
func (i *Instance) MemorySize() uint32 {
	if mem := i.module.Memory(); mem != nil {
		return mem.Size()
	}
	return 0
}

// Close releases the instance and its compiled code.
func (i *Instance) Close(ctx context.Context) error {
	if i.closed {
		return nil
	}
	i.closed = true
	return multierr.Combine(i.module.Close(ctx), i.compiled.Close(ctx))
}
