package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"testbed/domain"
	"testbed/ports"
	portsmocks "testbed/ports/mocks"
)

var png = []byte("\x89PNG fake image")

var fixedTime = time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.UTC)

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.ScreenshotDir = filepath.Join(t.TempDir(), "shots")
	cfg.BaseURL = "http://127.0.0.1:5000/"
	return cfg
}

func newManager(launcher ports.DriverLauncher, out *bytes.Buffer) *Manager {
	return NewManager(launcher,
		WithPackage("records"),
		WithOutput(out),
		WithClock(func() time.Time { return fixedTime }),
	)
}

func screenshots(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestManager_PassingTestLeavesNoArtifact(t *testing.T) {
	ctx := context.Background()
	driver := portsmocks.NewMockDriver(t)
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(driver, nil)
	driver.EXPECT().Quit(mock.Anything).Return(nil).Once()

	var out bytes.Buffer
	m := newManager(launcher, &out)
	cfg := testConfig(t)

	s, err := m.Start(ctx, cfg)
	require.NoError(t, err)

	artifact, err := m.Stop(ctx, s, "TestOK", false)

	require.NoError(t, err)
	assert.Nil(t, artifact)
	assert.Empty(t, screenshots(t, cfg.ScreenshotDir))
	assert.Empty(t, out.String())
}

func TestManager_FailingTestKeepsOneScreenshot(t *testing.T) {
	ctx := context.Background()
	driver := portsmocks.NewMockDriver(t)
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(driver, nil)
	mock.InOrder(
		driver.EXPECT().Screenshot(mock.Anything).Return(png, nil).Once(),
		driver.EXPECT().Quit(mock.Anything).Return(nil).Once(),
	)

	var out bytes.Buffer
	m := newManager(launcher, &out)
	cfg := testConfig(t)

	s, err := m.Start(ctx, cfg)
	require.NoError(t, err)

	artifact, err := m.Stop(ctx, s, "TestLogin/admin", true)

	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, "TestLogin/admin", artifact.Test)
	assert.False(t, artifact.Base64)
	assert.Equal(t, []string{"records::TestLogin_admin::20240301T123045.123456.png"}, screenshots(t, cfg.ScreenshotDir))

	data, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, png, data)
	assert.Contains(t, out.String(), "Screenshot of failing test:")
	assert.Len(t, m.Artifacts(), 1)
}

func TestManager_Base64Output(t *testing.T) {
	ctx := context.Background()
	driver := portsmocks.NewMockDriver(t)
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(driver, nil)
	driver.EXPECT().Screenshot(mock.Anything).Return(png, nil)
	driver.EXPECT().Quit(mock.Anything).Return(nil)

	var out bytes.Buffer
	m := newManager(launcher, &out)
	cfg := testConfig(t)
	cfg.Output = OutputBase64

	s, err := m.Start(ctx, cfg)
	require.NoError(t, err)
	artifact, err := m.Stop(ctx, s, "TestX", true)

	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.True(t, artifact.Base64)
	assert.NotEmpty(t, artifact.Path)
	assert.Contains(t, out.String(), base64.StdEncoding.EncodeToString(png))
	assert.Len(t, screenshots(t, cfg.ScreenshotDir), 1)
}

func TestManager_UnwritableDirectoryFallsBackToConsole(t *testing.T) {
	ctx := context.Background()
	driver := portsmocks.NewMockDriver(t)
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(driver, nil)
	driver.EXPECT().Screenshot(mock.Anything).Return(png, nil)
	driver.EXPECT().Quit(mock.Anything).Return(nil)

	// A regular file where the directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	var out bytes.Buffer
	m := newManager(launcher, &out)
	cfg := testConfig(t)
	cfg.ScreenshotDir = filepath.Join(blocker, "shots")

	s, err := m.Start(ctx, cfg)
	require.NoError(t, err)
	artifact, err := m.Stop(ctx, s, "TestX", true)

	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.True(t, artifact.Base64)
	assert.Empty(t, artifact.Path)
	assert.Contains(t, out.String(), base64.StdEncoding.EncodeToString(png))
}

func TestManager_CaptureFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	driver := portsmocks.NewMockDriver(t)
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(driver, nil)
	driver.EXPECT().Screenshot(mock.Anything).Return(nil, errors.New("target crashed"))
	driver.EXPECT().Quit(mock.Anything).Return(nil).Once()

	var out bytes.Buffer
	m := newManager(launcher, &out)

	s, err := m.Start(ctx, testConfig(t))
	require.NoError(t, err)
	artifact, err := m.Stop(ctx, s, "TestX", true)

	assert.NoError(t, err)
	assert.Nil(t, artifact)
}

func TestManager_QuitFailureIsTeardownError(t *testing.T) {
	ctx := context.Background()
	driver := portsmocks.NewMockDriver(t)
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(driver, nil)
	driver.EXPECT().Quit(mock.Anything).Return(errors.New("still running"))

	m := newManager(launcher, &bytes.Buffer{})
	s, err := m.Start(ctx, testConfig(t))
	require.NoError(t, err)

	_, err = m.Stop(ctx, s, "TestX", false)
	assert.ErrorIs(t, err, domain.ErrTeardown)

	_, err = m.Stop(ctx, s, "TestX", false)
	assert.ErrorIs(t, err, domain.ErrIsolationViolation)
}

func TestManager_LaunchFailureIsSetupError(t *testing.T) {
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(nil, errors.New("executable file not found in $PATH")).Once()

	m := newManager(launcher, &bytes.Buffer{})
	_, err := m.Start(context.Background(), testConfig(t))

	assert.ErrorIs(t, err, domain.ErrSetup)
}

func TestManager_LaunchOptionsAndTimeout(t *testing.T) {
	driver := portsmocks.NewMockDriver(t)
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, ports.LaunchOptions{
		Browser: "Chromium", Headless: false, WindowWidth: 800, WindowHeight: 600,
	}).RunAndReturn(func(ctx context.Context, _ ports.LaunchOptions) (ports.Driver, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return driver, nil
	})

	cfg := testConfig(t)
	cfg.Browser = "Chromium"
	cfg.Headless = false
	cfg.WindowWidth, cfg.WindowHeight = 800, 600

	m := newManager(launcher, &bytes.Buffer{})
	s, err := m.Start(context.Background(), cfg)

	require.NoError(t, err)
	assert.Same(t, driver, s.Driver())
}

func TestManager_RunScopeSharesAndResets(t *testing.T) {
	ctx := context.Background()
	driver := portsmocks.NewMockDriver(t)
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(driver, nil).Once()
	driver.EXPECT().ResetState(mock.Anything).Return(nil).Twice()
	driver.EXPECT().Quit(mock.Anything).Return(nil).Once()

	m := newManager(launcher, &bytes.Buffer{})
	cfg := testConfig(t)
	cfg.Scope = ScopeRun

	first, err := m.Start(ctx, cfg)
	require.NoError(t, err)
	_, err = m.Stop(ctx, first, "TestA", false)
	require.NoError(t, err)

	second, err := m.Start(ctx, cfg)
	require.NoError(t, err)
	assert.Same(t, first, second)
	_, err = m.Stop(ctx, second, "TestB", false)
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(ctx))
}

func TestManager_RunScopeRelaunchesAfterFailedReset(t *testing.T) {
	ctx := context.Background()
	broken := portsmocks.NewMockDriver(t)
	fresh := portsmocks.NewMockDriver(t)
	launcher := portsmocks.NewMockDriverLauncher(t)
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(broken, nil).Once()
	launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(fresh, nil).Once()
	broken.EXPECT().ResetState(mock.Anything).Return(errors.New("context canceled"))
	broken.EXPECT().Quit(mock.Anything).Return(nil)

	m := newManager(launcher, &bytes.Buffer{})
	cfg := testConfig(t)
	cfg.Scope = ScopeRun

	s, err := m.Start(ctx, cfg)
	require.NoError(t, err)
	_, err = m.Stop(ctx, s, "TestA", false)
	require.NoError(t, err)

	next, err := m.Start(ctx, cfg)
	require.NoError(t, err)
	assert.Same(t, fresh, next.Driver())
}

func TestManager_OneArtifactPerFailedTest(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		outcomes := rapid.SliceOfN(rapid.Bool(), 1, 12).Draw(rt, "failed")

		driver := portsmocks.NewMockDriver(t)
		launcher := portsmocks.NewMockDriverLauncher(t)
		launcher.EXPECT().Launch(mock.Anything, mock.Anything).Return(driver, nil)
		driver.EXPECT().Screenshot(mock.Anything).Return(png, nil).Maybe()
		driver.EXPECT().Quit(mock.Anything).Return(nil)

		dir := filepath.Join(t.TempDir(), "shots")
		tick := 0
		m := NewManager(launcher, WithOutput(&bytes.Buffer{}), WithClock(func() time.Time {
			tick++
			return fixedTime.Add(time.Duration(tick) * time.Second)
		}))

		failures := 0
		for i, failed := range outcomes {
			cfg := DefaultConfig()
			cfg.ScreenshotDir = dir
			s, err := m.Start(ctx, cfg)
			require.NoError(rt, err)

			artifact, err := m.Stop(ctx, s, "TestCase", failed)
			require.NoError(rt, err)
			if failed {
				failures++
				require.NotNil(rt, artifact, "test %d", i)
			} else {
				require.Nil(rt, artifact, "test %d", i)
			}
		}

		entries, err := os.ReadDir(dir)
		if failures == 0 {
			assert.True(rt, errors.Is(err, os.ErrNotExist))
			return
		}
		require.NoError(rt, err)
		assert.Len(rt, entries, failures)
		assert.Len(rt, m.Artifacts(), failures)
	})
}

func TestSession_Visit(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{base: "http://127.0.0.1:5000/", path: "/login", want: "http://127.0.0.1:5000/login"},
		{base: "http://127.0.0.1:5000/app/", path: "records", want: "http://127.0.0.1:5000/app/records"},
		{base: "http://127.0.0.1:5000/", path: "https://example.org/x", want: "https://example.org/x"},
		{base: "", path: "about:blank", want: "about:blank"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			driver := portsmocks.NewMockDriver(t)
			driver.EXPECT().Navigate(mock.Anything, tt.want).Return(nil).Once()

			s := &Session{cfg: Config{BaseURL: tt.base}, driver: driver}
			require.NoError(t, s.Visit(context.Background(), tt.path))
		})
	}
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		pkg  string
		test string
		want string
	}{
		{pkg: "records", test: "TestView", want: "records::TestView::20240301T123045.123456.png"},
		{pkg: "records", test: "TestView/with space", want: "records::TestView_with_space::20240301T123045.123456.png"},
		{pkg: "", test: "Test:colon", want: "_::Test_colon::20240301T123045.123456.png"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ArtifactName(tt.pkg, tt.test, fixedTime))
		})
	}
}
