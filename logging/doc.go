// Package logging builds the process logger and hands it to the packages
// that log: module, engine and the per-module loggers derived from them.
package logging
