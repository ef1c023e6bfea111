package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alessio/shellescape"
	"github.com/fatih/color"
	"github.com/mattn/go-shellwords"
	"golang.org/x/sync/errgroup"

	"testbed/logging"
)

// serviceStopTimeout is how long a service gets to exit after SIGTERM.
const serviceStopTimeout = 10 * time.Second

// RunCmd runs style checks, starts services and runs go test
type RunCmd struct {
	Args        []string      `arg:"" optional:"" passthrough:"" help:"Arguments passed to go test (default: ./...)"`
	Browsers    []string      `help:"Browsers for end-to-end tests"`
	Dir         string        `help:"Module directory" type:"existingdir" default:"."`
	E2E         bool          `help:"Enable end-to-end browser tests"`
	GoBin       string        `help:"go binary" default:"go" hidden:""`
	GofmtBin    string        `help:"gofmt binary" default:"gofmt" hidden:""`
	NoChecks    bool          `help:"Skip gofmt and go vet"`
	Service     []string      `help:"Command starting a service the tests need (repeatable)" short:"s"`
	ServiceWait time.Duration `help:"Time to wait after starting services" default:"0s"`

	stdout   io.Writer
	stderr   io.Writer
	extraEnv []string
}

// Run executes the test run. A failed run returns an *ExitError carrying
// the exit code of the failing step.
func (r *RunCmd) Run(cli *CLI) error {
	r.stdout = cli.output()
	if r.stderr == nil {
		r.stderr = os.Stderr
	}
	r.applySettings(cli)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !r.NoChecks {
		if err := r.checks(ctx); err != nil {
			return err
		}
	}

	services, err := r.startServices(ctx)
	defer r.stopServices(services)
	if err != nil {
		return err
	}
	if r.ServiceWait > 0 && len(services) > 0 {
		time.Sleep(r.ServiceWait)
	}

	return r.test(ctx)
}

func (r *RunCmd) applySettings(cli *CLI) {
	settings := cli.loadedSettings()
	if len(r.Service) == 0 {
		r.Service = settings.Services
	}
	if r.E2E || settings.E2EEnabled() {
		r.extraEnv = append(r.extraEnv, "E2E=yes")
	} else {
		r.extraEnv = append(r.extraEnv, "E2E=no")
	}
	if len(r.Browsers) > 0 {
		r.extraEnv = append(r.extraEnv, "E2E_WEBDRIVER_BROWSERS="+strings.Join(r.Browsers, " "))
	}
}

func (r *RunCmd) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = r.Dir
	c.Env = append(os.Environ(), r.extraEnv...)
	return c
}

func (r *RunCmd) echo(argv ...string) {
	color.New(color.Faint).Fprintf(r.stdout, "+ %s\n", shellescape.QuoteCommand(argv))
}

// checks runs gofmt and go vet concurrently.
func (r *RunCmd) checks(ctx context.Context) error {
	var fmtOut, vetOut bytes.Buffer
	fmtArgv := []string{r.GofmtBin, "-l", "."}
	vetArgv := []string{r.GoBin, "vet", "./..."}
	r.echo(fmtArgv...)
	r.echo(vetArgv...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c := r.command(gctx, fmtArgv[0], fmtArgv[1:]...)
		c.Stdout = &fmtOut
		c.Stderr = &fmtOut
		if err := c.Run(); err != nil {
			return fmt.Errorf("gofmt failed: %w", err)
		}
		if strings.TrimSpace(fmtOut.String()) != "" {
			return errors.New("files are not gofmt-ed")
		}
		return nil
	})

	g.Go(func() error {
		c := r.command(gctx, vetArgv[0], vetArgv[1:]...)
		c.Stdout = &vetOut
		c.Stderr = &vetOut
		if err := c.Run(); err != nil {
			return fmt.Errorf("go vet failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	r.stderr.Write(fmtOut.Bytes())
	r.stderr.Write(vetOut.Bytes())
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(r.stderr, "style checks failed: %v\n", err)
		logging.Logger.Info("Style checks failed", "error", err)
		return &ExitError{Code: 1}
	}
	return nil
}

type service struct {
	argv []string
	cmd  *exec.Cmd
}

func (r *RunCmd) startServices(ctx context.Context) ([]*service, error) {
	var started []*service
	for _, line := range r.Service {
		parser := shellwords.NewParser()
		parser.ParseEnv = true
		argv, err := parser.Parse(line)
		if err != nil {
			return started, fmt.Errorf("invalid service command %q: %w", line, err)
		}
		if len(argv) == 0 {
			continue
		}

		r.echo(argv...)
		c := r.command(ctx, argv[0], argv[1:]...)
		c.Stdout = r.stderr
		c.Stderr = r.stderr
		c.Cancel = func() error { return c.Process.Signal(syscall.SIGTERM) }
		c.WaitDelay = serviceStopTimeout
		if err := c.Start(); err != nil {
			return started, fmt.Errorf("failed to start service %q: %w", line, err)
		}
		logging.Logger.Info("Service started", "command", line, "pid", c.Process.Pid)
		started = append(started, &service{argv: argv, cmd: c})
	}
	return started, nil
}

// stopServices stops services in reverse start order.
func (r *RunCmd) stopServices(services []*service) {
	for i := len(services) - 1; i >= 0; i-- {
		s := services[i]
		if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logging.Logger.Warn("Failed to signal service", "command", s.argv[0], "error", err)
		}
		done := make(chan struct{})
		go func() {
			s.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(serviceStopTimeout):
			s.cmd.Process.Kill()
			<-done
		}
		logging.Logger.Info("Service stopped", "command", s.argv[0])
	}
}

func (r *RunCmd) test(ctx context.Context) error {
	args := r.Args
	if len(args) == 0 {
		args = []string{"./..."}
	}
	argv := append([]string{r.GoBin, "test"}, args...)
	r.echo(argv...)

	c := r.command(ctx, argv[0], argv[1:]...)
	c.Stdout = r.stdout
	c.Stderr = r.stderr
	err := c.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		color.New(color.FgGreen).Fprintln(r.stdout, "all tests passed")
		return nil
	case errors.As(err, &exitErr):
		return &ExitError{Code: exitErr.ExitCode()}
	default:
		return fmt.Errorf("failed to run go test: %w", err)
	}
}
