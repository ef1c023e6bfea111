package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestEnvironment provides an isolated test environment with its own TESTBED_HOME.
type TestEnvironment struct {
	TestbedHome string
	extraEnv    map[string]string
	tb          testing.TB
}

// NewTestEnvironment creates an isolated test environment with a temp TESTBED_HOME.
// The temp directory is automatically cleaned up when the test completes.
func NewTestEnvironment(tb testing.TB) *TestEnvironment {
	tb.Helper()

	home := tb.TempDir()
	if err := os.MkdirAll(filepath.Join(home, "plugins"), 0755); err != nil {
		tb.Fatalf("Failed to create plugins directory: %v", err)
	}

	return &TestEnvironment{
		TestbedHome: home,
		extraEnv:    make(map[string]string),
		tb:          tb,
	}
}

// isolatedKey reports whether the host value of key must not reach the binary.
func isolatedKey(key string) bool {
	if strings.HasPrefix(key, "TESTBED_") || strings.HasPrefix(key, "E2E") {
		return true
	}
	switch key {
	case "DATABASE_URI", "BROKER_URL", "INSTANCE_PATH":
		return true
	}
	return false
}

// Environ returns environment variables configured for test isolation.
func (e *TestEnvironment) Environ() []string {
	env := make([]string, 0, len(os.Environ())+2+len(e.extraEnv))

	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if isolatedKey(key) {
			continue
		}
		if _, ok := e.extraEnv[key]; ok {
			continue
		}
		env = append(env, kv)
	}

	env = append(env,
		"TESTBED_HOME="+e.TestbedHome,
		"TESTBED_DEBUG=",
	)
	for k, v := range e.extraEnv {
		env = append(env, k+"="+v)
	}
	return env
}

// PluginsPath returns the default manifest directory.
func (e *TestEnvironment) PluginsPath() string {
	return filepath.Join(e.TestbedHome, "plugins")
}

// SettingsPath returns the path to the settings file.
func (e *TestEnvironment) SettingsPath() string {
	return filepath.Join(e.TestbedHome, "settings.json")
}

// WriteSettings writes settings.json.
func (e *TestEnvironment) WriteSettings(content string) {
	e.tb.Helper()
	if err := os.WriteFile(e.SettingsPath(), []byte(content), 0644); err != nil {
		e.tb.Fatalf("Failed to write settings: %v", err)
	}
}

// WriteManifest writes a plugin manifest into the default manifest directory.
func (e *TestEnvironment) WriteManifest(name, content string) string {
	e.tb.Helper()
	path := filepath.Join(e.PluginsPath(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.tb.Fatalf("Failed to write manifest: %v", err)
	}
	return path
}

// SetEnv sets an additional environment variable for this test environment.
func (e *TestEnvironment) SetEnv(key, value string) {
	if e.extraEnv == nil {
		e.extraEnv = make(map[string]string)
	}
	e.extraEnv[key] = value
}
