// Package cdb implements a constant database: a file written once, in
// create mode, and then only read.
//
// # File format
//
// All words are little-endian uint32 and all positions are relative to
// Options.Offset.
//
//	header   256 x {table position, slot count}
//	records  {key length, value length, key, value} ...
//	tables   256 open-addressed tables of {hash, record position}
//
// A key hashes to table hash&255 and starts probing at slot
// (hash>>8) % slots. Every table has twice as many slots as the records it
// indexes, so probing always reaches an empty slot. Duplicate keys are kept;
// Lookup selects among them by their zero-based record index, in write
// order.
//
// The engine performs no I/O of its own: every file operation goes through
// the FS supplied in Options.
package cdb
