// Package cdbmod binds constant databases into the interpreter as the cdb
// command.
//
//	set db [cdb open data.cdb w]
//	cdb write $db key value
//	cdb close $db
//	set db [cdb open data.cdb r]
//	cdb read $db key        ;# value of the first record under key
//	cdb read $db key 1      ;# value of the second
//	cdb exists $db key      ;# 1 or 0
//	cdb count $db key
//	cdb stats $db           ;# {records N} {key-min N} ... {value-bytes N}
//	cdb version
//	cdb close $db
//
// A handle opened with mode w is Creating: it accepts writes and nothing
// else until it is closed, which finalizes the database. Writes go to a
// hidden sibling file that replaces the path only once finalized, so a
// failed open or close leaves an existing file as it was.
//
// A handle opened with mode r is ReadOnly for its whole lifetime.
package cdbmod
