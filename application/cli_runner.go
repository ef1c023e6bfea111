package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/kong"

	"testbed/domain"
	"testbed/logging"
	"testbed/ports"
)

// UsageExitCode is reported when the arguments do not match the command line.
const UsageExitCode = 2

// CLIResult is the outcome of one command invocation.
type CLIResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Err is the parse or command error, nil on success.
	Err error
}

// CLIRunner invokes the application's commands in process, capturing what
// they print and how they exit.
type CLIRunner struct {
	appCtx *Context
	cli    ports.CommandLine
}

// NewCLIRunner creates a runner for the application of appCtx. The
// application must implement ports.CommandLine.
func NewCLIRunner(appCtx *Context) (*CLIRunner, error) {
	cli, ok := appCtx.App.(ports.CommandLine)
	if !ok {
		return nil, fmt.Errorf("%w: application %s has no command line", domain.ErrSetup, appCtx.App.Name())
	}
	return &CLIRunner{appCtx: appCtx, cli: cli}, nil
}

// exitCoder is implemented by command errors carrying their own exit code.
type exitCoder interface {
	ExitCode() int
}

type exitSignal struct{ code int }

// Invoke runs the command named by args with an empty standard input.
func (r *CLIRunner) Invoke(ctx context.Context, args ...string) *CLIResult {
	return r.InvokeWithInput(ctx, "", args...)
}

// InvokeWithInput runs the command named by args, reading input as its
// standard input.
func (r *CLIRunner) InvokeWithInput(ctx context.Context, input string, args ...string) *CLIResult {
	var stdout, stderr bytes.Buffer
	res := &CLIResult{}
	defer func() {
		res.Stdout, res.Stderr = stdout.String(), stderr.String()
	}()

	r.run(ctx, res, &ports.Streams{In: strings.NewReader(input), Out: &stdout, Err: &stderr}, args)
	logging.Logger.Debug("Command invoked", "args", args, "exit_code", res.ExitCode)
	return res
}

func (r *CLIRunner) run(ctx context.Context, res *CLIResult, streams *ports.Streams, args []string) {
	// kong exits after printing help or version
	defer func() {
		if v := recover(); v != nil {
			sig, ok := v.(exitSignal)
			if !ok {
				panic(v)
			}
			res.ExitCode = sig.code
		}
	}()

	name := r.appCtx.App.Name()
	parser, err := kong.New(r.cli.Commands(),
		kong.Name(name),
		kong.Writers(streams.Out, streams.Err),
		kong.Exit(func(code int) { panic(exitSignal{code}) }),
		kong.Bind(r.appCtx, streams, r.appCtx.App),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(r.appCtx.App, (*ports.Application)(nil)),
	)
	if err != nil {
		res.ExitCode, res.Err = 1, fmt.Errorf("%w: invalid command line of %s: %w", domain.ErrSetup, name, err)
		return
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(streams.Err, "%s: error: %v\n", name, err)
		res.ExitCode, res.Err = UsageExitCode, err
		return
	}

	if err := kctx.Run(); err != nil {
		fmt.Fprintf(streams.Err, "Error: %v\n", err)
		res.ExitCode, res.Err = 1, err
		var coded exitCoder
		if errors.As(err, &coded) {
			res.ExitCode = coded.ExitCode()
		}
	}
}
