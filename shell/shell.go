package shell

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/wippyai/pickle-host/interp"
)

// DefaultPrompt follows the status number.
const DefaultPrompt = "psh>"

// Options configures a session.
type Options struct {
	Input  io.Reader
	Output io.Writer
	Prompt string
}

func (o *Options) defaults() {
	if o.Input == nil {
		o.Input = os.Stdin
	}
	if o.Output == nil {
		o.Output = os.Stdout
	}
	if o.Prompt == "" {
		o.Prompt = DefaultPrompt
	}
}

// Prompt renders the prompt shown after a line completed with status.
func Prompt(status int, prompt string) string {
	return fmt.Sprintf("[%d] %s ", status, prompt)
}

// IsTerminal reports whether both r and w are terminals.
func IsTerminal(r io.Reader, w io.Writer) bool {
	in, ok := r.(*os.File)
	if !ok {
		return false
	}
	out, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(in.Fd())) && term.IsTerminal(int(out.Fd()))
}

// Run starts a session, interactive when opts name a terminal. It returns
// an *interp.ExitError when a script calls exit.
func Run(ctx context.Context, in *interp.Interp, opts Options) error {
	opts.defaults()
	if IsTerminal(opts.Input, opts.Output) {
		return RunTUI(ctx, in, opts)
	}
	return RunLines(ctx, in, opts)
}

// RunLines reads one script line at a time from opts.Input.
func RunLines(ctx context.Context, in *interp.Interp, opts Options) error {
	opts.defaults()
	r := bufio.NewReader(opts.Input)
	w := opts.Output

	if _, err := io.WriteString(w, Prompt(0, opts.Prompt)); err != nil {
		return err
	}
	for {
		line, rerr := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if rerr != nil && rerr != io.EOF {
				return rerr
			}
			return nil
		}

		text, status, err := evalLine(ctx, in, line)
		if err != nil {
			return err
		}
		if text != "" {
			if _, err := fmt.Fprintln(w, text); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, Prompt(status, opts.Prompt)); err != nil {
			return err
		}
		if rerr != nil {
			return nil
		}
	}
}

// evalLine evaluates one line and returns its result or error text with its
// status. Only an exit request is returned as an error.
func evalLine(ctx context.Context, in *interp.Interp, line string) (string, int, error) {
	_, err := in.Eval(ctx, line)
	var exit *interp.ExitError
	if stderrors.As(err, &exit) {
		return "", 0, exit
	}
	return in.Result(), interp.Status(err), nil
}
