package interp

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/wippyai/pickle-host/errors"
)

func registerBuiltins(in *Interp) {
	builtins := map[string]Func{
		"set":      cmdSet,
		"unset":    cmdUnset,
		"incr":     cmdIncr,
		"eval":     cmdEval,
		"catch":    cmdCatch,
		"if":       cmdIf,
		"while":    cmdWhile,
		"break":    cmdBreak,
		"continue": cmdContinue,
		"return":   cmdReturn,
		"list":     cmdList,
		"llength":  cmdLlength,
		"lindex":   cmdLindex,
	}
	for name, fn := range builtins {
		in.commands[name] = command{fn: fn}
	}
}

func cmdSet(_ context.Context, in *Interp, argv []string, _ any) (string, error) {
	switch len(argv) {
	case 2:
		v, ok := in.vars[argv[1]]
		if !ok {
			return "", noVariable(argv[1])
		}
		return v, nil
	case 3:
		in.vars[argv[1]] = argv[2]
		return argv[2], nil
	}
	return "", usage(argv, "varName ?newValue?")
}

func cmdUnset(_ context.Context, in *Interp, argv []string, _ any) (string, error) {
	if len(argv) < 2 {
		return "", usage(argv, "varName ?varName ...?")
	}
	for _, name := range argv[1:] {
		if !in.UnsetVar(name) {
			return "", noVariable(name)
		}
	}
	return "", nil
}

func cmdIncr(_ context.Context, in *Interp, argv []string, _ any) (string, error) {
	if len(argv) != 2 && len(argv) != 3 {
		return "", usage(argv, "varName ?increment?")
	}
	by := int64(1)
	if len(argv) == 3 {
		n, err := strconv.ParseInt(argv[2], 10, 64)
		if err != nil {
			return "", errors.InvalidArgument([]string{argv[0]}, argv[2], "expected integer")
		}
		by = n
	}
	cur := int64(0)
	if v, ok := in.vars[argv[1]]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return "", errors.InvalidArgument([]string{argv[0]}, v, "expected integer")
		}
		cur = n
	}
	s := strconv.FormatInt(cur+by, 10)
	in.vars[argv[1]] = s
	return s, nil
}

func cmdEval(ctx context.Context, in *Interp, argv []string, _ any) (string, error) {
	if len(argv) < 2 {
		return "", usage(argv, "arg ?arg ...?")
	}
	return in.eval(ctx, strings.Join(argv[1:], " "))
}

func cmdCatch(ctx context.Context, in *Interp, argv []string, _ any) (string, error) {
	if len(argv) != 2 && len(argv) != 3 {
		return "", usage(argv, "script ?varName?")
	}
	out, err := in.eval(ctx, argv[1])
	var exit *ExitError
	if stderrors.As(err, &exit) {
		return "", err
	}
	if len(argv) == 3 {
		if err != nil {
			in.vars[argv[2]] = errorText(err)
		} else {
			in.vars[argv[2]] = out
		}
	}
	return strconv.Itoa(Status(err)), nil
}

// truthy reports whether a condition result counts as true.
func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}

// condition evaluates a condition word as a script.
func condition(ctx context.Context, in *Interp, cond string) (bool, error) {
	out, err := in.eval(ctx, cond)
	if err != nil {
		return false, err
	}
	return truthy(out), nil
}

func cmdIf(ctx context.Context, in *Interp, argv []string, _ any) (string, error) {
	const shape = "condition body ?elseif condition body ...? ?else body?"
	args := argv[1:]
	for {
		if len(args) < 2 {
			return "", usage(argv, shape)
		}
		ok, err := condition(ctx, in, args[0])
		if err != nil {
			return "", err
		}
		if ok {
			return in.eval(ctx, args[1])
		}
		args = args[2:]
		switch {
		case len(args) == 0:
			return "", nil
		case args[0] == "elseif":
			args = args[1:]
		case args[0] == "else" && len(args) == 2:
			return in.eval(ctx, args[1])
		default:
			return "", usage(argv, shape)
		}
	}
}

func cmdWhile(ctx context.Context, in *Interp, argv []string, _ any) (string, error) {
	if len(argv) != 3 {
		return "", usage(argv, "condition body")
	}
	for {
		ok, err := condition(ctx, in, argv[1])
		if err != nil {
			if stderrors.Is(err, ErrBreak) {
				return "", nil
			}
			return "", err
		}
		if !ok {
			return "", nil
		}
		if _, err := in.eval(ctx, argv[2]); err != nil {
			if stderrors.Is(err, ErrBreak) {
				return "", nil
			}
			if stderrors.Is(err, ErrContinue) {
				continue
			}
			return "", err
		}
	}
}

func cmdBreak(_ context.Context, _ *Interp, argv []string, _ any) (string, error) {
	if len(argv) != 1 {
		return "", usage(argv, "")
	}
	return "", ErrBreak
}

func cmdContinue(_ context.Context, _ *Interp, argv []string, _ any) (string, error) {
	if len(argv) != 1 {
		return "", usage(argv, "")
	}
	return "", ErrContinue
}

func cmdReturn(_ context.Context, _ *Interp, argv []string, _ any) (string, error) {
	switch len(argv) {
	case 1:
		return "", &ReturnError{}
	case 2:
		return argv[1], &ReturnError{Value: argv[1]}
	}
	return "", usage(argv, "?value?")
}

func cmdList(_ context.Context, _ *Interp, argv []string, _ any) (string, error) {
	return List(argv[1:]...), nil
}

func cmdLlength(_ context.Context, _ *Interp, argv []string, _ any) (string, error) {
	if len(argv) != 2 {
		return "", usage(argv, "list")
	}
	words, err := SplitList(argv[1])
	if err != nil {
		return "", err
	}
	return strconv.Itoa(len(words)), nil
}

func cmdLindex(_ context.Context, _ *Interp, argv []string, _ any) (string, error) {
	if len(argv) != 3 {
		return "", usage(argv, "list index")
	}
	words, err := SplitList(argv[1])
	if err != nil {
		return "", err
	}
	i, err := strconv.Atoi(argv[2])
	if err != nil {
		return "", errors.InvalidArgument([]string{argv[0]}, argv[2], "expected integer")
	}
	if i < 0 || i >= len(words) {
		return "", nil
	}
	return words[i], nil
}
