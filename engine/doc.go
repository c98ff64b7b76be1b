// Package engine hosts WebAssembly core modules on wazero.
//
// # Architecture
//
//	WazeroEngine  - owns one wazero runtime, shared by every instance
//	Instance      - a compiled and instantiated module with its exports
//
// # Flow
//
//  1. NewWazeroEngine creates the runtime, optionally with WASI preview1
//  2. WazeroEngine.Load compiles the binary and instantiates it anonymously,
//     so one binary can be loaded many times
//  3. Instance.Call converts text arguments to core values by the export's
//     signature, calls it, and formats the results as text
//  4. Instance.Close releases the instance and its compiled code;
//     WazeroEngine.Close releases the runtime and everything still in it
//
// # Values
//
//	Core Type   Text Form
//	───────────────────────────────────────────
//	i32         decimal, signed or unsigned 32-bit
//	i64         decimal, signed or unsigned 64-bit
//	f32, f64    decimal floating point
//
// Results print i32 and i64 as signed integers. Reference types are not
// supported as parameters or results.
package engine
