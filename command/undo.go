package command

import (
	"go.uber.org/multierr"
)

// Undo records release actions for resources acquired by a command that has
// not finished yet. Release runs them in reverse order unless Commit was
// called first.
type Undo struct {
	actions []func() error
	done    bool
}

// Push records a release action.
func (u *Undo) Push(fn func() error) {
	u.actions = append(u.actions, fn)
}

// Commit keeps everything acquired so far.
func (u *Undo) Commit() {
	u.done = true
	u.actions = nil
}

// Release runs the recorded actions, last first, and returns their combined
// error. It does nothing after Commit or a previous Release.
func (u *Undo) Release() error {
	if u.done {
		return nil
	}
	u.done = true
	var err error
	for i := len(u.actions) - 1; i >= 0; i-- {
		err = multierr.Append(err, u.actions[i]())
	}
	u.actions = nil
	return err
}
