// Package browser runs end-to-end tests against a real browser and keeps a
// screenshot of every test that fails while a browser is open.
package browser

import (
	"strings"
	"time"

	"testbed/config"
)

// Scope controls how long one browser lives.
type Scope string

const (
	// ScopeTest starts a new browser for every test.
	ScopeTest Scope = "test"
	// ScopeRun shares one browser per kind across the whole run.
	ScopeRun Scope = "run"
)

// Output controls where failure screenshots go.
type Output string

const (
	// OutputFile writes screenshots to the screenshot directory.
	OutputFile Output = "file"
	// OutputBase64 also prints them to the console, for CI systems without
	// artifact storage.
	OutputBase64 Output = "base64"
)

// DefaultScreenshotDir is where failure screenshots are written.
const DefaultScreenshotDir = ".e2e_screenshots"

// Config describes the browser sessions to start.
type Config struct {
	Browser       string
	Headless      bool
	WindowWidth   int
	WindowHeight  int
	BaseURL       string
	Scope         Scope
	ScreenshotDir string
	Output        Output
	StartTimeout  time.Duration
}

// DefaultConfig returns a headless Chrome configuration.
func DefaultConfig() Config {
	return Config{
		Browser:       "Chrome",
		Headless:      true,
		WindowWidth:   1280,
		WindowHeight:  1024,
		Scope:         ScopeTest,
		ScreenshotDir: DefaultScreenshotDir,
		Output:        OutputFile,
		StartTimeout:  30 * time.Second,
	}
}

// ConfigFromSettings builds the configuration for browser from settings.
func ConfigFromSettings(s *config.Settings, browser string) Config {
	cfg := DefaultConfig()
	cfg.Browser = browser
	cfg.Headless = s.IsHeadless()
	if Scope(s.BrowserScope) == ScopeRun {
		cfg.Scope = ScopeRun
	}
	if s.ScreenshotDir != "" {
		cfg.ScreenshotDir = s.ScreenshotDir
	}
	if Output(s.E2EOutput) == OutputBase64 {
		cfg.Output = OutputBase64
	}
	return cfg
}

// key identifies browsers that can be shared in run scope.
func (c Config) key() string {
	return strings.ToLower(c.Browser)
}
