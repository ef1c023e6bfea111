package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"testbed/domain"
	"testbed/logging"
	"testbed/ports"
)

// Session is one browser a test drives.
type Session struct {
	id      string
	cfg     Config
	driver  ports.Driver
	shared  bool
	stopped bool
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Config returns the configuration the session was started with.
func (s *Session) Config() Config { return s.cfg }

// Driver returns the underlying browser driver.
func (s *Session) Driver() ports.Driver { return s.driver }

// Visit navigates to path relative to the configured base URL. Absolute
// URLs are used as is.
func (s *Session) Visit(ctx context.Context, path string) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	return s.driver.Navigate(ctx, target)
}

// Eval runs script in the current page.
func (s *Session) Eval(ctx context.Context, script string, result any) error {
	return s.driver.ExecuteScript(ctx, script, result)
}

func (s *Session) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() || s.cfg.BaseURL == "" {
		return path, nil
	}
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// Manager starts and stops browser sessions.
type Manager struct {
	launcher ports.DriverLauncher
	pkg      string
	out      io.Writer
	now      func() time.Time

	mu        sync.Mutex
	shared    map[string]*Session
	artifacts []Artifact
}

// Option configures a Manager.
type Option func(*Manager)

// WithPackage sets the package name used in screenshot file names.
func WithPackage(pkg string) Option {
	return func(m *Manager) { m.pkg = pkg }
}

// WithOutput sets where notices and base64 screenshots are printed.
func WithOutput(w io.Writer) Option {
	return func(m *Manager) { m.out = w }
}

// WithClock replaces the clock used to timestamp screenshots.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a new Manager
func NewManager(launcher ports.DriverLauncher, opts ...Option) *Manager {
	m := &Manager{
		launcher: launcher,
		pkg:      "testbed",
		out:      os.Stdout,
		now:      time.Now,
		shared:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches a browser, or hands out the shared one in run scope. A
// browser that fails to start is a setup error and is not retried.
func (m *Manager) Start(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Scope == ScopeRun {
		m.mu.Lock()
		s, ok := m.shared[cfg.key()]
		m.mu.Unlock()
		if ok {
			s.cfg.BaseURL = cfg.BaseURL
			return s, nil
		}
	}

	launchCtx := ctx
	if cfg.StartTimeout > 0 {
		var cancel context.CancelFunc
		launchCtx, cancel = context.WithTimeout(ctx, cfg.StartTimeout)
		defer cancel()
	}

	driver, err := m.launcher.Launch(launchCtx, ports.LaunchOptions{
		Browser:      cfg.Browser,
		Headless:     cfg.Headless,
		WindowWidth:  cfg.WindowWidth,
		WindowHeight: cfg.WindowHeight,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSetup) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to launch %s: %w", domain.ErrSetup, cfg.Browser, err)
	}

	s := &Session{id: uuid.NewString(), cfg: cfg, driver: driver, shared: cfg.Scope == ScopeRun}
	if s.shared {
		m.mu.Lock()
		m.shared[cfg.key()] = s
		m.mu.Unlock()
	}
	logging.Logger.Debug("Browser session started", "session", s.id, "browser", cfg.Browser, "scope", cfg.Scope)
	return s, nil
}

// Stop ends the test's use of s. When the test failed, one screenshot is
// kept first; a screenshot that cannot be taken is logged and otherwise
// ignored. Shared sessions are reset instead of quit.
func (m *Manager) Stop(ctx context.Context, s *Session, test string, failed bool) (*Artifact, error) {
	ctx = context.WithoutCancel(ctx)

	if s.stopped {
		return nil, fmt.Errorf("%w: browser session %s stopped twice", domain.ErrIsolationViolation, s.id)
	}

	var artifact *Artifact
	if failed {
		artifact = m.capture(ctx, s, test)
	}

	if s.shared {
		if err := s.driver.ResetState(ctx); err != nil {
			// A browser that cannot be reset must not leak state into the next test
			logging.Logger.Warn("Browser reset failed, restarting", "session", s.id, "error", err)
			m.mu.Lock()
			delete(m.shared, s.cfg.key())
			m.mu.Unlock()
			s.stopped = true
			if qerr := s.driver.Quit(ctx); qerr != nil {
				return artifact, fmt.Errorf("%w: %w", domain.ErrTeardown, qerr)
			}
		}
		return artifact, nil
	}

	s.stopped = true
	if err := s.driver.Quit(ctx); err != nil {
		return artifact, fmt.Errorf("%w: failed to quit browser: %w", domain.ErrTeardown, err)
	}
	logging.Logger.Debug("Browser session stopped", "session", s.id)
	return artifact, nil
}

func (m *Manager) capture(ctx context.Context, s *Session, test string) *Artifact {
	png, err := s.driver.Screenshot(ctx)
	if err != nil {
		logging.Logger.Error("Failed to capture screenshot", "session", s.id, "test", test, "error", err)
		return nil
	}

	name := ArtifactName(m.pkg, test, m.now())
	a := writeArtifact(m.out, s.cfg.ScreenshotDir, s.cfg.Output, name, png)
	a.Test = test

	m.mu.Lock()
	m.artifacts = append(m.artifacts, a)
	m.mu.Unlock()
	return &a
}

// Artifacts returns every screenshot taken so far.
func (m *Manager) Artifacts() []Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Artifact(nil), m.artifacts...)
}

// Shutdown quits every shared browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.shared))
	for _, s := range m.shared {
		sessions = append(sessions, s)
	}
	clear(m.shared)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		s.stopped = true
		if err := s.driver.Quit(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%w: failed to quit %s: %w", domain.ErrTeardown, s.cfg.Browser, err))
		}
	}
	return errors.Join(errs...)
}
