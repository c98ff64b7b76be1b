package interp

import (
	stderrors "errors"
	"strconv"
)

var (
	// ErrBreak is returned by the break command.
	ErrBreak = stderrors.New("invoked \"break\" outside of a loop")

	// ErrContinue is returned by the continue command.
	ErrContinue = stderrors.New("invoked \"continue\" outside of a loop")
)

// ReturnError carries the value of a return command up to the caller of Eval.
type ReturnError struct {
	Value string
}

func (e *ReturnError) Error() string {
	return e.Value
}

// ExitError asks the front-end to terminate with Code once modules are torn
// down.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "exit " + strconv.Itoa(e.Code)
}

// Status maps an evaluation error to the conventional numeric completion code:
// 0 ok, 1 error, 2 return, 3 break, 4 continue.
func Status(err error) int {
	var ret *ReturnError
	switch {
	case err == nil:
		return 0
	case stderrors.As(err, &ret):
		return 2
	case stderrors.Is(err, ErrBreak):
		return 3
	case stderrors.Is(err, ErrContinue):
		return 4
	default:
		return 1
	}
}
