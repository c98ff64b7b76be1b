package command

import (
	"fmt"
	"strconv"

	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/interp"
)

// Int renders a signed number in decimal.
func Int(n int64) string {
	return strconv.FormatInt(n, 10)
}

// Uint renders an unsigned number in decimal.
func Uint(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// Bool renders a boolean as "1" or "0".
func Bool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// List renders words as an interpreter list.
func List(words ...string) string {
	return interp.List(words...)
}

// Field is one key/value pair of a Record.
type Field struct {
	Key   string
	Value string
}

// Record renders fields as a flat list of {key value} pairs, in order.
func Record(fields ...Field) string {
	pairs := make([]string, len(fields))
	for i, f := range fields {
		pairs[i] = interp.List(f.Key, f.Value)
	}
	return interp.List(pairs...)
}

// Version renders a packed version integer as "major minor patch", taking
// one byte per field from the most significant of the low three bytes.
func Version(packed uint32) string {
	return fmt.Sprintf("%d %d %d", (packed>>16)&0xff, (packed>>8)&0xff, packed&0xff)
}

// ParseUint parses a decimal argument of the command at path.
func ParseUint(path []string, tok string) (uint64, error) {
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, errors.InvalidArgument(path, tok, "expected unsigned integer")
	}
	return n, nil
}

// ParseInt parses a signed decimal argument of the command at path.
func ParseInt(path []string, tok string) (int64, error) {
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, errors.InvalidArgument(path, tok, "expected integer")
	}
	return n, nil
}
