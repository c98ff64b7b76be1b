// Package wasmmod exposes WebAssembly core modules to scripts.
//
//	wasm load path              ;# handle id, e.g. wasm1
//	wasm exports id             ;# {name {params} {results}} ...
//	wasm call id func ?arg ...? ;# results as a list
//	wasm memory id              ;# exported memory size in bytes
//	wasm close id
//
// Arguments and results are decimal text converted by the export's
// signature. Each handle is its own instance; closing the interpreter
// closes every instance and then the runtime.
package wasmmod
