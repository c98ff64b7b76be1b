// Package sysmod provides the host system commands: console I/O,
// environment, clock, files, script sourcing, heap statistics and exit.
//
//	puts ?-nonewline? ?string?
//	gets                          ;# "EOF" and break at end of input
//	getenv name
//	exit ?code?
//	clock clicks|seconds|format seconds ?format?
//	file rename old new
//	file delete path ?path ...?
//	source ?path?                 ;# standard input when path is omitted
//	heap allocations|frees|reallocations|total
//	sleep milliseconds
package sysmod
