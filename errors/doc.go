// Package errors provides structured error types for the module layer.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Errors raised while executing a script command carry the command
// words and the offending token, so the text shown to the script names what
// went wrong:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindInvalidArgument).
//		Command("cdb", "open").
//		Token("x").
//		Detail("mode must be w or r").
//		Build()
//	// cdb open: invalid argument "x": mode must be w or r
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Arity([]string{"cdb", "close"}, "cdb close id")
//	err := errors.NotFound([]string{"cdb", "read"}, "cdb handle", "cdb7")
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Kind, and on Phase when the target sets one:
//
//	if errors.Is(err, errors.ErrNotFound) { ... }
package errors
