package command

import (
	"context"
	"strings"

	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/interp"
)

// Call is one validated invocation.
type Call struct {
	Interp *interp.Interp
	Data   any
	// Flag is the flag token given to a Flagged command, or "".
	Flag string
	// Path holds the command words, e.g. ["cdb", "open"].
	Path []string
	// Args holds the positional arguments after Path.
	Args []string
}

// Arg returns the i-th positional argument, or def when absent.
func (c *Call) Arg(i int, def string) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return def
}

// Run executes a validated call and returns its result text.
type Run func(ctx context.Context, c *Call) (string, error)

// Shape is a command definition that can be bound into an interpreter.
type Shape interface {
	CommandName() string
	Func() interp.Func
}

// Fixed is a command taking between Min and Max positional arguments.
// A negative Max means no upper bound.
type Fixed struct {
	Run   Run
	Name  string
	Usage string
	Min   int
	Max   int
}

// CommandName implements Shape.
func (f Fixed) CommandName() string { return f.Name }

// Func implements Shape.
func (f Fixed) Func() interp.Func {
	return func(ctx context.Context, in *interp.Interp, argv []string, data any) (string, error) {
		return f.invoke(ctx, in, []string{argv[0]}, argv[1:], data)
	}
}

func (f Fixed) invoke(ctx context.Context, in *interp.Interp, path, args []string, data any) (string, error) {
	if len(args) < f.Min || (f.Max >= 0 && len(args) > f.Max) {
		return "", errors.Arity(path, shape(path, f.Usage))
	}
	return f.Run(ctx, &Call{Interp: in, Data: data, Path: path, Args: args})
}

// Group dispatches on its first argument among a closed set of subcommands.
type Group struct {
	Name string
	Subs []Fixed
}

// CommandName implements Shape.
func (g Group) CommandName() string { return g.Name }

// Names returns the subcommand names in declaration order.
func (g Group) Names() []string {
	names := make([]string, len(g.Subs))
	for i, s := range g.Subs {
		names[i] = s.Name
	}
	return names
}

// Func implements Shape.
func (g Group) Func() interp.Func {
	return func(ctx context.Context, in *interp.Interp, argv []string, data any) (string, error) {
		if len(argv) < 2 {
			return "", errors.Arity([]string{argv[0]}, shape([]string{argv[0]}, g.usage()))
		}
		for _, sub := range g.Subs {
			if sub.Name == argv[1] {
				return sub.invoke(ctx, in, []string{argv[0], argv[1]}, argv[2:], data)
			}
		}
		return "", errors.UnknownSubcommand([]string{argv[0]}, argv[1], g.Names())
	}
}

func (g Group) usage() string {
	return "{" + strings.Join(g.Names(), "|") + "} ?arg ...?"
}

// Flagged takes an optional literal flag followed by one positional string.
// When Optional is set the positional string may be omitted as well.
type Flagged struct {
	Run      Run
	Name     string
	Flags    []string
	Optional bool
}

// CommandName implements Shape.
func (f Flagged) CommandName() string { return f.Name }

// Func implements Shape.
func (f Flagged) Func() interp.Func {
	return func(ctx context.Context, in *interp.Interp, argv []string, data any) (string, error) {
		path := []string{argv[0]}
		args := argv[1:]
		call := &Call{Interp: in, Data: data, Path: path}
		switch {
		case len(args) == 0 && f.Optional:
		case len(args) == 1:
			call.Args = args
		case len(args) == 2:
			if !f.known(args[0]) {
				return "", errors.UnknownFlag(path, args[0])
			}
			call.Flag = args[0]
			call.Args = args[1:]
		default:
			return "", errors.Arity(path, shape(path, f.usage()))
		}
		return f.Run(ctx, call)
	}
}

func (f Flagged) known(tok string) bool {
	for _, fl := range f.Flags {
		if fl == tok {
			return true
		}
	}
	return false
}

func (f Flagged) usage() string {
	u := ""
	for _, fl := range f.Flags {
		u += "?" + fl + "? "
	}
	if f.Optional {
		return u + "?string?"
	}
	return u + "string"
}

func shape(path []string, usage string) string {
	s := strings.Join(path, " ")
	if usage != "" {
		s += " " + usage
	}
	return s
}
