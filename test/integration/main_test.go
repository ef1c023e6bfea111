// Package integration_test provides end-to-end tests for testbed CLI commands.
// Tests compile the binary once via TestMain and run each test with an
// isolated TESTBED_HOME to ensure test independence.
package integration_test

import (
	"log"
	"os"
	"testing"

	"testbed/test/integration/harness"
)

func TestMain(m *testing.M) {
	if _, err := harness.BuildBinary(); err != nil {
		log.Fatalf("Failed to build binary: %v", err)
	}

	code := m.Run()
	harness.CleanupBinary()
	os.Exit(code)
}
