package main

import (
	"bufio"
	"context"
	"io"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/pickle-host/config"
	"github.com/wippyai/pickle-host/engine"
	"github.com/wippyai/pickle-host/heap"
	"github.com/wippyai/pickle-host/interp"
	"github.com/wippyai/pickle-host/module"
	"github.com/wippyai/pickle-host/modules/cdbmod"
	"github.com/wippyai/pickle-host/modules/exprmod"
	"github.com/wippyai/pickle-host/modules/httpmod"
	"github.com/wippyai/pickle-host/modules/sntpmod"
	"github.com/wippyai/pickle-host/modules/sysmod"
	"github.com/wippyai/pickle-host/modules/utf8mod"
	"github.com/wippyai/pickle-host/modules/wasmmod"
)

type stdio struct {
	in  *bufio.Reader
	out io.Writer
	err io.Writer
}

// host is one interpreter with its modules.
type host struct {
	arena *heap.Arena
	in    *interp.Interp
	reg   *module.Registry
}

func fileSystem(cfg *config.Config) afero.Fs {
	fs := afero.NewOsFs()
	if cfg.FS.Root != "" {
		return afero.NewBasePathFs(fs, cfg.FS.Root)
	}
	return fs
}

// kinds lists the enabled modules in registration order.
func kinds(cfg *config.Config, fs afero.Fs, std stdio) []module.Kind {
	all := []module.Kind{
		sysmod.New(sysmod.WithStdin(std.in), sysmod.WithStdout(std.out), sysmod.WithFS(fs)),
		cdbmod.New(fs),
		utf8mod.New(),
		exprmod.New(),
		httpmod.New(fs, httpmod.WithTimeout(cfg.HTTPC.Timeout), httpmod.WithDebug(cfg.HTTPC.Debug)),
		sntpmod.New(sntpmod.WithPort(cfg.SNTP.Port), sntpmod.WithTimeout(cfg.SNTP.Timeout)),
		wasmmod.New(wasmmod.WithFS(fs), wasmmod.WithConfig(engine.Config{
			Stdout:           std.out,
			Stderr:           std.err,
			MemoryLimitPages: cfg.Wasm.MemoryLimitPages,
			WASI:             true,
		})),
	}
	enabled := all[:0]
	for _, k := range all {
		if !cfg.Disabled(k.Name()) {
			enabled = append(enabled, k)
		}
	}
	return enabled
}

func newHost(ctx context.Context, cfg *config.Config, std stdio, args []string) (*host, error) {
	var opts []heap.Option
	if cfg.Heap.FailAfter > 0 {
		opts = append(opts, heap.WithFailAfter(cfg.Heap.FailAfter))
	}
	h := &host{arena: heap.New(opts...)}
	h.in = interp.New(interp.WithAllocator(h.arena))
	h.in.SetArgs("argv", args)

	reg, err := module.Build(ctx, h.in, kinds(cfg, fileSystem(cfg), std)...)
	if err != nil {
		return nil, err
	}
	h.reg = reg
	return h, nil
}

// close tears the modules down and reports whether every cleanup succeeded.
func (h *host) close(ctx context.Context) bool {
	if err := h.reg.Close(ctx); err != nil {
		module.Logger().Debug("teardown reported errors", zap.Error(err))
		return false
	}
	return true
}
