// Package utf8mod provides the utf8 command for inspecting UTF-8 text.
//
//	utf8 length string      ;# number of code points
//	utf8 valid string       ;# 1 if string is well-formed UTF-8
//	utf8 codepoints string  ;# list of decimal code points
//	utf8 char cp ?cp ...?   ;# string made of the given code points
//	utf8 width string       ;# display width in terminal cells
package utf8mod

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/wippyai/pickle-host/command"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/module"
)

// Name is the module and command name.
const Name = "utf8"

// Kind is the utf8 module kind.
type Kind struct{}

// New returns the utf8 module.
func New() Kind { return Kind{} }

// Name implements module.Kind.
func (Kind) Name() string { return Name }

// Cleanup implements module.Cleaner.
func (Kind) Cleanup(context.Context, module.Handle) error { return nil }

// Register implements module.Kind.
func (Kind) Register(m *module.Module) error {
	return m.RegisterCommands(command.Group{Name: Name, Subs: []command.Fixed{
		{Name: "length", Usage: "string", Min: 1, Max: 1, Run: length},
		{Name: "valid", Usage: "string", Min: 1, Max: 1, Run: valid},
		{Name: "codepoints", Usage: "string", Min: 1, Max: 1, Run: codepoints},
		{Name: "char", Usage: "codepoint ?codepoint ...?", Min: 1, Max: -1, Run: char},
		{Name: "width", Usage: "string", Min: 1, Max: 1, Run: width},
	}})
}

func length(_ context.Context, c *command.Call) (string, error) {
	return strconv.Itoa(utf8.RuneCountInString(c.Args[0])), nil
}

func valid(_ context.Context, c *command.Call) (string, error) {
	return command.Bool(utf8.ValidString(c.Args[0])), nil
}

func codepoints(_ context.Context, c *command.Call) (string, error) {
	s := c.Args[0]
	var cps []string
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			return "", errors.InvalidArgument(c.Path, s,
				"invalid UTF-8 at byte "+strconv.Itoa(i))
		}
		cps = append(cps, strconv.Itoa(int(r)))
		i += size
	}
	return command.List(cps...), nil
}

func char(_ context.Context, c *command.Call) (string, error) {
	var b strings.Builder
	for _, tok := range c.Args {
		n, err := command.ParseUint(c.Path, tok)
		if err != nil {
			return "", err
		}
		if n > utf8.MaxRune || !utf8.ValidRune(rune(n)) {
			return "", errors.InvalidArgument(c.Path, tok, "not a Unicode scalar value")
		}
		b.WriteRune(rune(n))
	}
	return b.String(), nil
}

func width(_ context.Context, c *command.Call) (string, error) {
	return strconv.Itoa(runewidth.StringWidth(c.Args[0])), nil
}
