package domain

import "errors"

// Failure categories. Every error returned by the harness wraps exactly one of
// these so callers can tell a broken environment from a broken test.
var (
	// ErrSetup marks a fixture that could not be built: missing driver binary,
	// unreachable database, application factory failure.
	ErrSetup = errors.New("fixture setup failed")

	// ErrIsolationViolation marks a programming error against one of the
	// isolation protocols (escaped commit, double close, override outside a scope).
	ErrIsolationViolation = errors.New("isolation violation")

	// ErrTeardown marks a resource that could not be released cleanly.
	ErrTeardown = errors.New("fixture teardown failed")

	// ErrUsage marks a fixture used out of order, e.g. creating a user without an open scope.
	ErrUsage = errors.New("fixture misuse")

	// ErrFixture marks a fixture helper whose own assertion failed, e.g. a login that did not authenticate.
	ErrFixture = errors.New("fixture error")
)
