package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testbed/domain"
	"testbed/ports"
)

func TestChromeLauncher_UnsupportedBrowser(t *testing.T) {
	_, err := NewChromeLauncher().Launch(context.Background(), ports.LaunchOptions{Browser: "Firefox"})

	assert.ErrorIs(t, err, domain.ErrSetup)
}

func TestChromeLauncher_MissingBinary(t *testing.T) {
	l := &ChromeLauncher{ExecPath: "/nonexistent/chrome"}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.Launch(ctx, ports.LaunchOptions{Browser: "Chrome", Headless: true, WindowWidth: 800, WindowHeight: 600})

	assert.ErrorIs(t, err, domain.ErrSetup)
}

func TestChromeLauncher_EndToEnd(t *testing.T) {
	if !strings.EqualFold(os.Getenv("E2E"), "yes") {
		t.Skip("End-to-end tests skipped because E2E environment variable is not set to 'yes'")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "visited", Value: "1"})
		}
		w.Write([]byte(`<html><head><title>testbed</title></head><body>ok</body></html>`))
	}))
	defer srv.Close()

	ctx := context.Background()
	driver, err := NewChromeLauncher().Launch(ctx, ports.LaunchOptions{Browser: "Chrome", Headless: true, WindowWidth: 800, WindowHeight: 600})
	require.NoError(t, err)
	defer driver.Quit(ctx)

	require.NoError(t, driver.Navigate(ctx, srv.URL))

	var title string
	require.NoError(t, driver.ExecuteScript(ctx, "document.title", &title))
	assert.Equal(t, "testbed", title)

	shot, err := driver.Screenshot(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(shot), "\x89PNG"))

	var cookies string
	require.NoError(t, driver.ExecuteScript(ctx, "localStorage.setItem('k', 'v'); document.cookie", &cookies))
	assert.Equal(t, "visited=1", cookies)

	require.NoError(t, driver.ResetState(ctx))
	require.NoError(t, driver.Navigate(ctx, srv.URL+"/other"))

	require.NoError(t, driver.ExecuteScript(ctx, "document.cookie", &cookies))
	assert.Empty(t, cookies)
	var stored any
	require.NoError(t, driver.ExecuteScript(ctx, "localStorage.getItem('k')", &stored))
	assert.Nil(t, stored)

	require.NoError(t, driver.Quit(ctx))
}
