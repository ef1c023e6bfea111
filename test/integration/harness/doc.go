// Package harness provides utilities for integration testing the testbed CLI.
// It handles binary compilation, environment isolation, and command execution.
//
// Environment variables managed:
//   - TESTBED_HOME: Isolated per test (temp directory)
//   - TESTBED_DEBUG: Disabled to reduce noise
//   - E2E and E2E_*: Cleared so the host configuration does not leak in
package harness
