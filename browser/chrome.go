package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/shirou/gopsutil/v4/process"

	"testbed/domain"
	"testbed/logging"
	"testbed/ports"
)

const resetScript = `(() => {
	try { window.localStorage.clear(); } catch (e) {}
	try { window.sessionStorage.clear(); } catch (e) {}
})()`

// ChromeLauncher starts Chrome or Chromium through the DevTools protocol.
type ChromeLauncher struct {
	// ExecPath overrides the browser binary; empty means search PATH.
	ExecPath string
}

// NewChromeLauncher creates a new ChromeLauncher
func NewChromeLauncher() *ChromeLauncher {
	return &ChromeLauncher{}
}

// Launch implements ports.DriverLauncher. The browser is fully started and
// ready for commands when Launch returns.
func (l *ChromeLauncher) Launch(ctx context.Context, opts ports.LaunchOptions) (ports.Driver, error) {
	switch strings.ToLower(opts.Browser) {
	case "", "chrome", "chromium":
	default:
		return nil, fmt.Errorf("%w: unsupported browser %q", domain.ErrSetup, opts.Browser)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if l.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.ExecPath))
	}

	// The browser outlives the launch context; only readiness is bounded by it
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logging.Logger.Debug("Browser: " + fmt.Sprintf(format, args...))
		}),
	)

	ready := make(chan error, 1)
	go func() { ready <- chromedp.Run(browserCtx) }()

	select {
	case err := <-ready:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("%w: failed to start %s: %w", domain.ErrSetup, opts.Browser, err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %s did not become ready: %w", domain.ErrSetup, opts.Browser, ctx.Err())
	}

	d := &chromeDriver{ctx: browserCtx, cancel: browserCancel, allocCancel: allocCancel}
	if c := chromedp.FromContext(browserCtx); c != nil && c.Browser != nil {
		if p := c.Browser.Process(); p != nil {
			d.pid = int32(p.Pid)
		}
	}

	logging.Logger.Info("Browser started", "browser", opts.Browser, "pid", d.pid, "headless", opts.Headless)
	return d, nil
}

type chromeDriver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	pid         int32
}

// run executes actions in the browser, bounded by ctx as well as the browser's lifetime.
func (d *chromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body"))
}

func (d *chromeDriver) ExecuteScript(ctx context.Context, script string, result any) error {
	return d.run(ctx, chromedp.Evaluate(script, result))
}

func (d *chromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *chromeDriver) ResetState(ctx context.Context) error {
	return d.run(ctx,
		chromedp.Evaluate(resetScript, nil),
		network.ClearBrowserCookies(),
		chromedp.Navigate("about:blank"),
	)
}

// Quit closes the browser and makes sure its process is gone.
func (d *chromeDriver) Quit(ctx context.Context) error {
	closeErr := chromedp.Cancel(d.ctx)
	d.cancel()
	d.allocCancel()

	if d.pid == 0 {
		return closeErr
	}
	if err := reapProcess(ctx, d.pid); err != nil {
		return fmt.Errorf("browser process %d still running: %w", d.pid, err)
	}
	return closeErr
}

// reapProcess waits briefly for pid to exit and kills it if it does not.
func reapProcess(ctx context.Context, pid int32) error {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		exists, err := process.PidExistsWithContext(ctx, pid)
		if err != nil || !exists {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil
	}
	logging.Logger.Warn("Browser process did not exit, killing it", "pid", pid)
	return p.KillWithContext(ctx)
}
