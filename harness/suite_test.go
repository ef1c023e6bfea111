package harness_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"testbed/application"
	"testbed/config"
	"testbed/database"
	"testbed/discovery"
	"testbed/domain"
	"testbed/harness"
	"testbed/internal/testapp"
	portsmocks "testbed/ports/mocks"
	"testbed/users"
)

var (
	resolver = discovery.NewResolver(nil)
	suite    = harness.New(testapp.Factory(resolver),
		harness.WithName("harness"),
		harness.WithResolver(resolver),
		harness.WithSettings(&config.Settings{}),
		harness.WithScreenshotOutput(io.Discard),
	)
)

func TestMain(m *testing.M) {
	os.Exit(harness.Main(m, suite))
}

func countUsers(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, suite.Database(t).Gorm().Model(&domain.User{}).Count(&n).Error)
	return n
}

func TestSuite_ScopePerTest(t *testing.T) {
	for _, name := range []string{"first", "second"} {
		t.Run(name, func(t *testing.T) {
			_, err := suite.Users(t).Create(context.Background(), "a@example.org", "pw123")
			require.NoError(t, err)
		})
	}
	assert.Zero(t, countUsers(t))
}

func TestSuite_DBIsSharedWithinTest(t *testing.T) {
	assert.Same(t, suite.DB(t), suite.DB(t))
}

func TestSuite_LoginScenario(t *testing.T) {
	ctx := context.Background()
	client := suite.Client(t)

	u, err := suite.Users(t).Create(ctx, "a@example.org", "pw123")
	require.NoError(t, err)
	require.NoError(t, u.Login(ctx, client))

	res, err := client.Get(ctx, "protected")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	require.NoError(t, u.Logout(ctx, client))
	res, err = client.Get(ctx, "protected")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestSuite_ClientsDoNotShareCookies(t *testing.T) {
	ctx := context.Background()
	first := suite.Client(t)

	u, err := suite.Users(t).Create(ctx, users.UniqueEmail("cookies"), "pw123")
	require.NoError(t, err)
	require.NoError(t, u.Login(ctx, first))

	assert.Empty(t, suite.Client(t).Cookies())
}

func TestSuite_EntryPointsRestoredAfterTest(t *testing.T) {
	const group = "testbed.fixtures"

	t.Run("override", func(t *testing.T) {
		reg := suite.EntryPoints(t)
		_, err := reg.OverrideMap(group, map[string]string{"demo": "testapp:Record"})
		require.NoError(t, err)

		eps, err := resolver.EntryPoints(group)
		require.NoError(t, err)
		require.Len(t, eps, 1)
		assert.Equal(t, "demo", eps[0].Name)
	})

	_, installed := resolver.Installed(group)
	assert.False(t, installed)
}

func TestSuite_EntryPointsIsIdempotent(t *testing.T) {
	const group = "testbed.fixtures"

	reg := suite.EntryPoints(t)
	_, err := reg.OverrideMap(group, map[string]string{"demo": "testapp:Record"})
	require.NoError(t, err)

	assert.Same(t, reg, suite.EntryPoints(t))
	_, err = suite.EntryPoints(t).Extend(group, []domain.EntryPoint{{Name: "extra", Value: "testapp:User"}})
	require.NoError(t, err)

	eps, err := resolver.EntryPoints(group)
	require.NoError(t, err)
	assert.Len(t, eps, 2)
}

func TestSuite_SubtestsShareEntryPointScope(t *testing.T) {
	const group = "testbed.fixtures"

	t.Run("parent", func(t *testing.T) {
		_, err := suite.EntryPoints(t).OverrideMap(group, map[string]string{"demo": "testapp:Record"})
		require.NoError(t, err)

		t.Run("child", func(t *testing.T) {
			_, err := suite.EntryPoints(t).Extend(group, []domain.EntryPoint{{Name: "extra", Value: "testapp:User"}})
			require.NoError(t, err)
		})

		eps, err := resolver.EntryPoints(group)
		require.NoError(t, err)
		assert.Len(t, eps, 2)
	})

	_, installed := resolver.Installed(group)
	assert.False(t, installed)
}

func TestSuite_SubtestsShareDBScope(t *testing.T) {
	ctx := context.Background()
	scope := suite.DB(t)

	t.Run("child", func(t *testing.T) {
		assert.Same(t, scope, suite.DB(t))
		_, err := suite.Users(t).Create(ctx, "child@example.org", "pw123")
		require.NoError(t, err)

		t.Run("grandchild", func(t *testing.T) {
			assert.Same(t, scope, suite.DB(t))
		})
	})

	assert.False(t, scope.Closed())
	var n int64
	require.NoError(t, scope.Handle(ctx).Model(&domain.User{}).Where("email = ?", "child@example.org").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestSuite_CLIRunnerWritesInsideScope(t *testing.T) {
	ctx := context.Background()
	suite.DB(t)
	runner := suite.CLIRunner(t)

	res := runner.InvokeWithInput(ctx, "pw123\n", "users", "create", "cli@example.org")
	require.NoError(t, res.Err, res.Stderr)
	assert.Contains(t, res.Stdout, "Created user cli@example.org")

	res = runner.Invoke(ctx, "users", "create", "cli@example.org", "--password", "pw123")
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Stderr, "already registered")

	res = runner.Invoke(ctx, "users", "list")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "cli@example.org")
}

func TestSuite_CLIRunnerWritesAreRolledBack(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		suite.DB(t)
		res := suite.CLIRunner(t).Invoke(context.Background(), "users", "create", "rollback@example.org", "--password", "pw123")
		require.NoError(t, res.Err, res.Stderr)
	})

	var n int64
	require.NoError(t, suite.Database(t).Gorm().Model(&domain.User{}).Where("email = ?", "rollback@example.org").Count(&n).Error)
	assert.Zero(t, n)
}

func TestSuite_BrowserSkippedWithoutE2E(t *testing.T) {
	reached := false
	t.Run("e2e", func(t *testing.T) {
		suite.Browser(t)
		reached = true
	})
	assert.False(t, reached)
}

func TestSuite_InstancePath(t *testing.T) {
	path := suite.InstancePath(t)
	assert.DirExists(t, path)
	assert.Equal(t, path, os.Getenv(application.InstancePathEnv))
}

func TestSuite_LiveServer(t *testing.T) {
	live := suite.LiveServer(t)
	assert.Same(t, live, suite.LiveServer(t))

	resp, err := live.Client().Get(live.URL() + "api/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// failingTB records failure and cleanups without touching the real test.
type failingTB struct {
	testing.TB
	cleanups []func()
}

func (f *failingTB) Failed() bool      { return true }
func (f *failingTB) Cleanup(fn func()) { f.cleanups = append(f.cleanups, fn) }

func (f *failingTB) runCleanups() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}

func TestSuite_BrowserScreenshotOnFailure(t *testing.T) {
	e2e := true
	dir := t.TempDir()

	driver := portsmocks.NewMockDriver(t)
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(driver, nil).Once()
	driver.EXPECT().Screenshot(mock.Anything).Return([]byte("\x89PNG"), nil).Once()
	driver.EXPECT().Quit(mock.Anything).Return(nil).Once()

	s := harness.New(testapp.Factory(discovery.NewResolver(nil)),
		harness.WithSettings(&config.Settings{E2E: &e2e, ScreenshotDir: dir}),
		harness.WithLauncher(launcher),
		harness.WithScreenshotOutput(io.Discard),
		harness.WithPackage("harness"),
	)
	t.Cleanup(func() { s.Close(context.Background()) })

	tb := &failingTB{TB: t}
	session := s.Browser(tb)
	assert.Equal(t, "Chrome", session.Config().Browser)
	assert.Equal(t, s.LiveServer(t).URL(), session.Config().BaseURL)
	tb.runCleanups()

	artifacts := s.Artifacts()
	require.Len(t, artifacts, 1)
	assert.FileExists(t, artifacts[0].Path)
	assert.Contains(t, artifacts[0].Path, dir)
}

func TestSuite_CloseIsIdempotent(t *testing.T) {
	s := harness.New(testapp.Factory(discovery.NewResolver(nil)), harness.WithSettings(&config.Settings{}))
	s.App(t)

	ctx := context.Background()
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
}

func TestSuite_CloseDropsTables(t *testing.T) {
	uri := database.SQLiteURI(filepath.Join(t.TempDir(), "drop.db"))
	s := harness.New(testapp.Factory(discovery.NewResolver(nil)),
		harness.WithSettings(&config.Settings{DatabaseURI: uri}),
	)

	t.Run("migrate", func(t *testing.T) {
		assert.True(t, s.Database(t).Gorm().Migrator().HasTable(&domain.User{}))
		_, err := s.Users(t).Create(context.Background(), "drop@example.org", "pw123")
		require.NoError(t, err)
	})
	require.NoError(t, s.Close(context.Background()))

	db, err := database.Open(uri)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	assert.False(t, db.Gorm().Migrator().HasTable(&domain.User{}))
}
