// Command pickle runs scripts against the module host.
//
//	pickle [file ...]   ;# source each file in order, stdin when none
//	pickle shell        ;# interactive prompt
package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wippyai/pickle-host/config"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/interp"
	"github.com/wippyai/pickle-host/logging"
	"github.com/wippyai/pickle-host/shell"
)

type app struct {
	v       *viper.Viper
	cfg     *config.Config
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	flush   func()
	cfgFile string
	code    int
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{v: config.New(), stdin: stdin, stdout: stdout, stderr: stderr, flush: func() {}}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pickle [file ...]",
		Short:         "pickle runs scripts with storage, network and wasm modules",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			flush, err := logging.Install(logging.Config{
				Level:       cfg.Log.Level,
				Development: cfg.Log.Development,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return err
			}
			a.flush = flush
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFiles(cmd.Context(), args)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./pickle.yaml or $HOME/pickle.yaml)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Bool("heap-report", false, "print allocator statistics at exit")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("heap.report", flags.Lookup("heap-report"))

	root.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Start an interactive prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd.Context())
		},
	})
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	return root
}

func (a *app) streams() stdio {
	return stdio{in: bufio.NewReader(a.stdin), out: a.stdout, err: a.stderr}
}

// runFiles sources each file, stopping at the first error or at a break.
func (a *app) runFiles(ctx context.Context, files []string) error {
	h, err := newHost(ctx, a.cfg, a.streams(), files)
	if err != nil {
		return err
	}
	if !h.in.HasCommand("source") {
		_ = h.close(ctx)
		return errors.New(errors.PhaseConfig, errors.KindNotFound).
			Token("source").Detail("the sys module is disabled").Build()
	}

	sources := make([]string, 0, len(files))
	for _, f := range files {
		sources = append(sources, interp.List("source", f))
	}
	if len(files) == 0 {
		sources = append(sources, "source")
	}

	for _, src := range sources {
		_, err := h.in.Eval(ctx, src)
		if err == nil {
			continue
		}
		var exit *interp.ExitError
		if stderrors.As(err, &exit) {
			a.code = exit.Code
			break
		}
		if stderrors.Is(err, interp.ErrBreak) {
			break
		}
		fmt.Fprintln(a.stdout, h.in.Result())
		a.code = 1
		break
	}
	a.finish(ctx, h)
	return nil
}

func (a *app) runShell(ctx context.Context) error {
	std := a.streams()
	h, err := newHost(ctx, a.cfg, std, nil)
	if err != nil {
		return err
	}

	opts := shell.Options{Input: std.in, Output: a.stdout, Prompt: a.cfg.Shell.Prompt}
	if shell.IsTerminal(a.stdin, a.stdout) {
		opts.Input = a.stdin
		err = shell.RunTUI(ctx, h.in, opts)
	} else {
		err = shell.RunLines(ctx, h.in, opts)
	}

	var exit *interp.ExitError
	switch {
	case stderrors.As(err, &exit):
		a.code = exit.Code
	case err != nil:
		fmt.Fprintln(a.stderr, err)
		a.code = 1
	}
	a.finish(ctx, h)
	return nil
}

// finish tears the host down. A failed cleanup turns a clean exit into 1.
func (a *app) finish(ctx context.Context, h *host) {
	if !h.close(ctx) && a.code == 0 {
		a.code = 1
	}
	if a.cfg.Heap.Report {
		fmt.Fprintln(a.stderr, h.arena.Stats())
	}
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	a.flush()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return a.code
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
