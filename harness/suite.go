package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"testbed/application"
	"testbed/browser"
	"testbed/config"
	"testbed/database"
	"testbed/discovery"
	"testbed/entrypoints"
	"testbed/isolation"
	"testbed/logging"
	"testbed/ports"
	"testbed/users"
)

// Modeler is implemented by applications that know which models their
// database needs.
type Modeler interface {
	Models() []any
}

// Option configures a Suite.
type Option func(*Suite)

// WithName sets the application name.
func WithName(name string) Option {
	return func(s *Suite) { s.appOpts = append(s.appOpts, application.WithName(name)) }
}

// WithSettings uses settings instead of loading them from disk and the
// environment.
func WithSettings(settings *config.Settings) Option {
	return func(s *Suite) { s.settings = settings }
}

// WithConfig adjusts the application configuration before the application
// is built.
func WithConfig(fn func(*application.Config)) Option {
	return func(s *Suite) { s.appOpts = append(s.appOpts, application.WithConfig(fn)) }
}

// WithModels migrates models in addition to the ones the application reports.
func WithModels(models ...any) Option {
	return func(s *Suite) { s.models = append(s.models, models...) }
}

// WithResolver sets the resolver entry point overrides are installed on. It
// must be the one the application resolves through.
func WithResolver(r *discovery.Resolver) Option {
	return func(s *Suite) { s.resolver = r }
}

// WithManifestDiscovery points the resolver at the manifest directories from
// the settings.
func WithManifestDiscovery() Option {
	return func(s *Suite) { s.manifests = true }
}

// WithLauncher replaces the Chrome launcher.
func WithLauncher(l ports.DriverLauncher) Option {
	return func(s *Suite) { s.launcher = l }
}

// WithScreenshotOutput sets where failure screenshot notices are printed.
func WithScreenshotOutput(w io.Writer) Option {
	return func(s *Suite) { s.notices = w }
}

// WithPackage names the test package in screenshot file names.
func WithPackage(pkg string) Option {
	return func(s *Suite) { s.pkg = pkg }
}

// Suite owns the fixtures of one test binary.
type Suite struct {
	factory   application.Factory
	appOpts   []application.Option
	settings  *config.Settings
	models    []any
	resolver  *discovery.Resolver
	manifests bool
	launcher  ports.DriverLauncher
	notices   io.Writer
	pkg       string

	isolation *isolation.Manager
	registry  *entrypoints.Registry

	mu       sync.Mutex
	appCtx   *application.Context
	appErr   error
	migrated []any
	db       *database.DB
	browsers *browser.Manager
	live     *application.LiveServer
	closed   bool

	// Keyed by test name so subtests find the scope of their parent.
	scopes    map[string]*isolation.Scope
	overrides map[string]struct{}
}

// New creates a suite building its application with factory.
func New(factory application.Factory, opts ...Option) *Suite {
	s := &Suite{
		factory:   factory,
		resolver:  discovery.Default,
		notices:   os.Stdout,
		pkg:       "testbed",
		isolation: isolation.NewManager(),
		scopes:    make(map[string]*isolation.Scope),
		overrides: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry = entrypoints.NewRegistry(s.resolver)
	return s
}

// Settings returns the settings the suite runs with, loading them on first use.
func (s *Suite) Settings(tb testing.TB) *config.Settings {
	tb.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, err := s.loadSettingsLocked()
	if err != nil {
		tb.Fatalf("load settings: %v", err)
	}
	return settings
}

func (s *Suite) loadSettingsLocked() (*config.Settings, error) {
	if s.settings != nil {
		return s.settings, nil
	}
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	s.settings = settings
	if s.manifests {
		s.resolver.SetBackend(discovery.NewManifestBackend(settings.Manifests()...))
	}
	return settings, nil
}

// App returns the application, building it on first use. A failed build is
// reported to every test asking for it.
func (s *Suite) App(tb testing.TB) *application.Context {
	tb.Helper()
	appCtx, err := s.app()
	if err != nil {
		tb.Fatalf("build application: %v", err)
	}
	return appCtx
}

func (s *Suite) app() (*application.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("suite is closed")
	}
	if s.appCtx != nil || s.appErr != nil {
		return s.appCtx, s.appErr
	}

	settings, err := s.loadSettingsLocked()
	if err != nil {
		s.appErr = err
		return nil, err
	}
	opts := append([]application.Option{application.WithSettings(settings)}, s.appOpts...)
	s.appCtx, _, s.appErr = application.Build(context.Background(), s.factory, opts...)
	return s.appCtx, s.appErr
}

// InstancePath returns the application's instance directory.
func (s *Suite) InstancePath(tb testing.TB) string {
	tb.Helper()
	return s.App(tb).Config.InstancePath
}

// Database returns the application's database with every model migrated.
// Tables are created once per suite.
func (s *Suite) Database(tb testing.TB) *database.DB {
	tb.Helper()
	appCtx := s.App(tb)
	db := appCtx.DB()
	if db == nil {
		tb.Fatalf("application %s has no database", appCtx.App.Name())
	}
	if err := s.migrate(appCtx, db); err != nil {
		tb.Fatalf("migrate database: %v", err)
	}
	return db
}

func (s *Suite) migrate(appCtx *application.Context, db *database.DB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	models := slices.Clone(s.models)
	if m, ok := appCtx.App.(Modeler); ok {
		models = append(models, m.Models()...)
	}
	if err := db.Migrate(models...); err != nil {
		return err
	}
	s.migrated, s.db = models, db
	logging.Logger.Info("Database migrated", "models", len(models))
	return nil
}

// lookup finds the entry of name or of its closest enclosing test.
func lookup[V any](m map[string]V, name string) (V, bool) {
	for {
		if v, ok := m[name]; ok {
			return v, true
		}
		i := strings.LastIndex(name, "/")
		if i < 0 {
			var zero V
			return zero, false
		}
		name = name[:i]
	}
}

// DB returns the isolation scope of the calling test, opening it on first
// use. A subtest shares the scope of the closest enclosing test that has one.
// Everything written through the application database is rolled back when
// the test owning the scope ends.
func (s *Suite) DB(tb testing.TB) *isolation.Scope {
	tb.Helper()
	name := tb.Name()

	s.mu.Lock()
	scope, ok := lookup(s.scopes, name)
	s.mu.Unlock()
	if ok {
		return scope
	}

	db := s.Database(tb)
	scope, err := s.isolation.Open(context.Background(), db)
	if err != nil {
		tb.Fatalf("open isolation scope: %v", err)
	}

	s.mu.Lock()
	s.scopes[name] = scope
	s.mu.Unlock()

	tb.Cleanup(func() {
		s.mu.Lock()
		delete(s.scopes, name)
		s.mu.Unlock()
		if err := s.isolation.Close(context.Background(), scope); err != nil {
			tb.Errorf("close isolation scope: %v", err)
		}
	})
	return scope
}

// Client returns a fresh in-process client for the application.
func (s *Suite) Client(tb testing.TB, opts ...application.ClientOption) *application.Client {
	tb.Helper()
	return application.NewClient(s.App(tb).App, opts...)
}

// CLIRunner returns a runner for the application's commands. Commands write
// through the application database, so they land in the calling test's
// scope when one is open.
func (s *Suite) CLIRunner(tb testing.TB) *application.CLIRunner {
	tb.Helper()
	runner, err := application.NewCLIRunner(s.App(tb))
	if err != nil {
		tb.Fatalf("cli runner: %v", err)
	}
	return runner
}

// Users returns a user fixture writing inside the calling test's scope.
func (s *Suite) Users(tb testing.TB, opts ...users.Option) *users.Fixture {
	tb.Helper()
	scope := s.DB(tb)
	if store, ok := s.App(tb).App.(ports.UserDatastore); ok {
		opts = append([]users.Option{users.WithDatastore(store)}, opts...)
	}
	return users.NewFixture(scope, opts...)
}

// EntryPoints opens an override scope for the calling test on first use.
// Subtests install into the scope of the closest enclosing test that has one.
// Every override is restored when the test owning the scope ends.
func (s *Suite) EntryPoints(tb testing.TB) *entrypoints.Registry {
	tb.Helper()
	name := tb.Name()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := lookup(s.overrides, name); ok {
		return s.registry
	}
	if err := s.registry.Begin(); err != nil {
		tb.Fatalf("entry point overrides: %v", err)
	}
	s.overrides[name] = struct{}{}

	tb.Cleanup(func() {
		s.mu.Lock()
		delete(s.overrides, name)
		s.mu.Unlock()
		if err := s.registry.End(); err != nil {
			tb.Errorf("restore entry points: %v", err)
		}
	})
	return s.registry
}

// LiveServer returns a server exposing the application on a real port.
func (s *Suite) LiveServer(tb testing.TB) *application.LiveServer {
	tb.Helper()
	app := s.App(tb).App

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		s.live = application.StartLiveServer(app)
		logging.Logger.Info("Live server started", "url", s.live.URL())
	}
	return s.live
}

func (s *Suite) browserManager() *browser.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browsers == nil {
		launcher := s.launcher
		if launcher == nil {
			launcher = browser.NewChromeLauncher()
		}
		s.browsers = browser.NewManager(launcher, browser.WithPackage(s.pkg), browser.WithOutput(s.notices))
	}
	return s.browsers
}

// Browser starts a session on the first configured browser, pointed at the
// live server. The test is skipped unless end-to-end tests are enabled. When
// the test fails a screenshot is captured before the session ends.
func (s *Suite) Browser(tb testing.TB) *browser.Session {
	tb.Helper()
	settings := s.Settings(tb)
	return s.startBrowser(tb, settings, settings.BrowserList()[0])
}

// ForEachBrowser runs fn as a subtest once per configured browser.
func (s *Suite) ForEachBrowser(t *testing.T, fn func(t *testing.T, session *browser.Session)) {
	t.Helper()
	settings := s.Settings(t)
	for _, name := range settings.BrowserList() {
		t.Run(name, func(t *testing.T) {
			fn(t, s.startBrowser(t, settings, name))
		})
	}
}

func (s *Suite) startBrowser(tb testing.TB, settings *config.Settings, name string) *browser.Session {
	tb.Helper()
	if !settings.E2EEnabled() {
		tb.Skip("end-to-end tests are disabled, set E2E=yes to run them")
	}

	cfg := browser.ConfigFromSettings(settings, name)
	cfg.BaseURL = s.LiveServer(tb).URL()

	mgr := s.browserManager()
	session, err := mgr.Start(context.Background(), cfg)
	if err != nil {
		tb.Fatalf("start browser %s: %v", name, err)
	}
	tb.Cleanup(func() {
		if _, err := mgr.Stop(context.Background(), session, tb.Name(), tb.Failed()); err != nil {
			tb.Errorf("stop browser %s: %v", name, err)
		}
	})
	return session
}

// Artifacts returns the screenshots captured so far.
func (s *Suite) Artifacts() []browser.Artifact {
	s.mu.Lock()
	mgr := s.browsers
	s.mu.Unlock()
	if mgr == nil {
		return nil
	}
	return mgr.Artifacts()
}

// Close tears down everything the suite still holds. It is safe to call
// more than once.
func (s *Suite) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	browsers, live, appCtx := s.browsers, s.live, s.appCtx
	db, migrated := s.db, s.migrated
	s.mu.Unlock()

	var errs []error
	if s.registry.Active() {
		if err := s.registry.End(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.isolation.CloseAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if browsers != nil {
		if err := browsers.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if live != nil {
		live.Close()
	}
	if db != nil {
		if err := db.DropAll(migrated...); err != nil {
			errs = append(errs, err)
		} else {
			logging.Logger.Info("Database tables dropped", "models", len(migrated))
		}
	}
	if appCtx != nil {
		if err := appCtx.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("suite teardown: %w", err)
	}
	return nil
}
