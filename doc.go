// Package picklehost provides the extension layer of a small embeddable
// command interpreter.
//
// A host registers modules. Each module binds named commands into the
// interpreter and privately owns a table of named resource handles (open
// database files, loaded WebAssembly modules) that are cleaned up when the
// script closes them or when the host tears the registry down.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	picklehost/          Root package with the shared Allocator interface
//	├── heap/            Instrumented allocator and lifetime heap statistics
//	├── interp/          Minimal Tcl-like interpreter hosting the commands
//	├── command/         Command dispatch adapter (arity, subcommands, flags)
//	├── module/          Modules, resource tag tables and the module registry
//	├── cdb/             Constant database storage engine
//	├── modules/         Module kinds: cdb, sys, utf8, expr, httpc, sntp, wasm
//	├── engine/          wazero host for WebAssembly core modules
//	├── config/          viper backed configuration
//	├── logging/         zap logger construction
//	├── shell/           Interactive prompt
//	├── errors/          Structured error types
//	└── cmd/pickle/      Script runner and shell front-end
//
// # Quick Start
//
//	arena := heap.New()
//	in := interp.New(interp.WithAllocator(arena))
//
//	reg, err := module.Build(ctx, in, sysmod.New(), cdbmod.New(afero.NewOsFs()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Close(ctx)
//
//	out, err := in.Eval(ctx, `set db [cdb open test.cdb w]; cdb write $db k v; cdb close $db`)
//
// # Thread Safety
//
// The interpreter evaluates one command to completion before the next and is
// not safe for concurrent use. Heap statistics use atomic counters and may be
// read from any goroutine.
package picklehost
