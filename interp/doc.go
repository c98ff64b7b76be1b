// Package interp implements the small command interpreter that hosts module
// commands.
//
// The language is a minimal Tcl dialect. A script is a sequence of commands
// separated by newlines or semicolons; each command is a list of words
// separated by blanks. The first word names the command.
//
//	set db [cdb open data.cdb w]   ;# command substitution
//	cdb write $db "key one" {v}    ;# variable substitution, quoting, bracing
//	# comments start a command with a hash
//
// Braced words are taken literally. Quoted and bare words undergo $variable,
// [command] and backslash substitution.
//
// Commands are plain functions registered under a global name:
//
//	in := interp.New()
//	in.RegisterCommand("hello", func(ctx context.Context, in *interp.Interp, argv []string, data any) (string, error) {
//	    return "hello " + argv[1], nil
//	}, nil)
//	out, err := in.Eval(ctx, "hello world")
//
// A command returns its result text or an error. The error text is the
// script-visible error message. Control flow uses the ErrBreak, ErrContinue,
// *ReturnError and *ExitError values.
//
// An Interp is not safe for concurrent use.
package interp
