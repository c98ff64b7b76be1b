// Package command adapts module operations to the interpreter's command
// contract.
//
// Three shapes cover every script-visible command:
//
//	command.Fixed{Name: "getenv", Usage: "name", Min: 1, Max: 1, Run: getenv}
//
//	command.Group{Name: "cdb", Subs: []command.Fixed{
//	    {Name: "open", Usage: "path mode", Min: 2, Max: 2, Run: open},
//	    {Name: "close", Usage: "id", Min: 1, Max: 1, Run: closeDB},
//	}}
//
//	command.Flagged{Name: "puts", Flags: []string{"-nonewline"}, Optional: true, Run: puts}
//
// Arity is checked before anything else. Unknown subcommands and flags are
// rejected with an error naming the token. Results are rendered as
// interpreter text with Int, Uint, Bool, List, Record and Version.
//
// Undo collects release actions while a command acquires resources, so that
// a failure halfway through leaves no partial side effects.
package command
