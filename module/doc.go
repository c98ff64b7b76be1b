// Package module binds host modules into an interpreter and tracks the
// resources they hand out to scripts.
//
// # Architecture
//
//	Registry
//	├── module command (loaded, list, tags)
//	└── Module (one per Kind, in build order)
//	    ├── commands bound into the interpreter namespace
//	    └── TagTable: name -> Handle, cleaned up through the Kind
//
// A resource tag is the only owner of its handle. Scripts refer to it by the
// identifier returned from Module.Open; removing the tag is the only way the
// handle is cleaned up, and it happens exactly once.
//
// # Lifecycle
//
//	reg, err := module.Build(ctx, in, sysmod.New(), cdbmod.New(fs))
//	...
//	err = reg.Close(ctx) // cleans every remaining tag, then shuts modules down
//
// Build rolls back everything it did when any module fails to register.
// Close always finishes and reports every failure combined.
package module
