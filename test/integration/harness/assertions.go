package harness

import (
	"fmt"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// describe renders a result for failure messages.
func (r CommandResult) describe() string {
	return fmt.Sprintf("exit %d after %v\nStdout: %s\nStderr: %s", r.ExitCode, r.Duration, r.Stdout, r.Stderr)
}

// AssertSuccess verifies the command exited 0.
func AssertSuccess(tb testing.TB, result CommandResult) {
	tb.Helper()
	assert.Zero(tb, result.ExitCode, "Expected success. %s", result.describe())
}

// AssertFailure verifies the command exited non-zero.
func AssertFailure(tb testing.TB, result CommandResult) {
	tb.Helper()
	assert.NotZero(tb, result.ExitCode, "Expected failure. %s", result.describe())
}

// AssertExitCode verifies the command exited with a specific code.
func AssertExitCode(tb testing.TB, result CommandResult, expected int) {
	tb.Helper()
	assert.Equal(tb, expected, result.ExitCode, "Unexpected exit code. %s", result.describe())
}

// AssertStdoutContains verifies stdout contains the expected string.
func AssertStdoutContains(tb testing.TB, result CommandResult, expected string) {
	tb.Helper()
	assert.Contains(tb, result.Stdout, expected, "Stdout is missing %q. %s", expected, result.describe())
}

// AssertStdoutNotContains verifies stdout does not contain the string.
func AssertStdoutNotContains(tb testing.TB, result CommandResult, unexpected string) {
	tb.Helper()
	assert.NotContains(tb, result.Stdout, unexpected, "Stdout unexpectedly has %q. %s", unexpected, result.describe())
}

// AssertValidJSON unmarshals stdout into target.
func AssertValidJSON(tb testing.TB, result CommandResult, target any) {
	tb.Helper()
	require.NoError(tb, json.Unmarshal([]byte(result.Stdout), target), "Expected JSON on stdout. %s", result.describe())
}

// AssertJSONContains verifies stdout is a JSON object whose key holds expected.
func AssertJSONContains(tb testing.TB, result CommandResult, key string, expected any) {
	tb.Helper()
	var data map[string]any
	AssertValidJSON(tb, result, &data)
	assert.Equal(tb, expected, data[key], "JSON key %q mismatch", key)
}
