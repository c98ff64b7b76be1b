package interp

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"

	picklehost "github.com/wippyai/pickle-host"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/heap"
)

// Func is the signature of a script-visible command. argv[0] is the command
// name. data is the context value supplied at registration.
type Func func(ctx context.Context, in *Interp, argv []string, data any) (string, error)

const defaultMaxDepth = 256

type command struct {
	fn   Func
	data any
}

// Interp holds the command namespace, variables and allocator of one
// interpreter instance.
type Interp struct {
	alloc    picklehost.Allocator
	commands map[string]command
	vars     map[string]string
	result   string
	depth    int
	maxDepth int
}

// Option configures an Interp.
type Option func(*Interp)

// WithAllocator sets the allocator returned by Allocator.
func WithAllocator(a picklehost.Allocator) Option {
	return func(in *Interp) {
		in.alloc = a
	}
}

// WithMaxDepth bounds nested evaluation.
func WithMaxDepth(n int) Option {
	return func(in *Interp) {
		in.maxDepth = n
	}
}

// New creates an interpreter with the builtin commands registered.
func New(opts ...Option) *Interp {
	in := &Interp{
		commands: make(map[string]command),
		vars:     make(map[string]string),
		maxDepth: defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.alloc == nil {
		in.alloc = heap.New()
	}
	registerBuiltins(in)
	return in
}

// Allocator returns the allocator the interpreter was created with.
func (in *Interp) Allocator() picklehost.Allocator {
	return in.alloc
}

// RegisterCommand binds fn under name. Registering a name twice fails.
func (in *Interp) RegisterCommand(name string, fn Func, data any) error {
	if name == "" {
		return errors.New(errors.PhaseRegister, errors.KindInvalidArgument).
			Detail("command name cannot be empty").
			Build()
	}
	if fn == nil {
		return errors.New(errors.PhaseRegister, errors.KindInvalidArgument).
			Token(name).
			Detail("command function cannot be nil").
			Build()
	}
	if _, exists := in.commands[name]; exists {
		return errors.Duplicate(errors.PhaseRegister, "command", name)
	}
	in.commands[name] = command{fn: fn, data: data}
	return nil
}

// UnregisterCommand removes name. It reports whether the command existed.
func (in *Interp) UnregisterCommand(name string) bool {
	if _, exists := in.commands[name]; !exists {
		return false
	}
	delete(in.commands, name)
	return true
}

// HasCommand reports whether name is bound.
func (in *Interp) HasCommand(name string) bool {
	_, ok := in.commands[name]
	return ok
}

// Commands returns the bound command names in sorted order.
func (in *Interp) Commands() []string {
	names := make([]string, 0, len(in.commands))
	for name := range in.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetVar sets a variable.
func (in *Interp) SetVar(name, value string) {
	in.vars[name] = value
}

// Var returns a variable's value.
func (in *Interp) Var(name string) (string, bool) {
	v, ok := in.vars[name]
	return v, ok
}

// UnsetVar removes a variable. It reports whether the variable existed.
func (in *Interp) UnsetVar(name string) bool {
	if _, ok := in.vars[name]; !ok {
		return false
	}
	delete(in.vars, name)
	return true
}

// SetArgs stores args as a list in the variable name.
func (in *Interp) SetArgs(name string, args []string) {
	in.vars[name] = List(args...)
}

// Result returns the result or error text of the last top-level evaluation.
func (in *Interp) Result() string {
	return in.result
}

// Eval evaluates a script and returns the result of its last command.
func (in *Interp) Eval(ctx context.Context, src string) (string, error) {
	top := in.depth == 0
	out, err := in.eval(ctx, src)
	if top {
		var ret *ReturnError
		if stderrors.As(err, &ret) {
			out, err = ret.Value, nil
		}
		if err != nil {
			in.result = errorText(err)
		} else {
			in.result = out
		}
	}
	return out, err
}

func (in *Interp) eval(ctx context.Context, src string) (string, error) {
	if in.depth >= in.maxDepth {
		return "", errors.New(errors.PhaseEval, errors.KindInvalidArgument).
			Detail("too many nested evaluations (max %d)", in.maxDepth).
			Build()
	}
	in.depth++
	defer func() { in.depth-- }()

	p := &parser{src: src, in: in, ctx: ctx}
	var result string
	for {
		words, more, err := p.command()
		if err != nil {
			return "", err
		}
		if len(words) > 0 {
			result, err = in.call(ctx, words)
			if err != nil {
				return result, err
			}
		}
		if !more {
			return result, nil
		}
	}
}

// Call invokes a command with already-split words.
func (in *Interp) Call(ctx context.Context, argv ...string) (string, error) {
	if len(argv) == 0 {
		return "", nil
	}
	return in.call(ctx, argv)
}

func (in *Interp) call(ctx context.Context, argv []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cmd, ok := in.commands[argv[0]]
	if !ok {
		return "", errors.UnknownCommand(argv[0])
	}
	return cmd.fn(ctx, in, argv, cmd.data)
}

func errorText(err error) string {
	var ret *ReturnError
	if stderrors.As(err, &ret) {
		return ret.Value
	}
	return err.Error()
}

// List renders words as a list, bracing words that need it.
func List(words ...string) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(quoteWord(w))
	}
	return b.String()
}

func quoteWord(w string) string {
	if w == "" {
		return "{}"
	}
	if !strings.ContainsAny(w, " \t\n\r;$[]{}\"\\") {
		return w
	}
	if balanced(w) && !strings.HasSuffix(w, "\\") {
		return "{" + w + "}"
	}
	var b strings.Builder
	for _, r := range w {
		switch r {
		case ' ', ';', '$', '[', ']', '{', '}', '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func balanced(w string) bool {
	depth := 0
	for i := 0; i < len(w); i++ {
		switch w[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// SplitList parses s as a list without performing substitutions.
func SplitList(s string) ([]string, error) {
	p := &parser{src: s, literal: true}
	var out []string
	for {
		words, more, err := p.command()
		if err != nil {
			return nil, err
		}
		out = append(out, words...)
		if !more {
			return out, nil
		}
	}
}

func usage(argv []string, rest string) error {
	u := argv[0]
	if rest != "" {
		u += " " + rest
	}
	return errors.Arity([]string{argv[0]}, u)
}

func noVariable(name string) error {
	return errors.New(errors.PhaseEval, errors.KindNotFound).
		Token(name).
		Detail("no such variable").
		Build()
}
