package harness

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"testbed/logging"
)

// teardownTimeout bounds the final cleanup.
const teardownTimeout = 30 * time.Second

// Main runs the tests of m and tears the suite down afterwards. An interrupt
// or termination signal tears the suite down before the process exits, so
// no browser, scope or instance directory outlives the run.
func Main(m *testing.M, s *Suite) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Logger.Warn("Interrupted, tearing down", "signal", sig.String())
			teardown(s)
			os.Exit(130)
		case <-done:
		}
	}()

	code := m.Run()
	if err := teardown(s); err != nil && code == 0 {
		code = 1
	}
	return code
}

func teardown(s *Suite) error {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if err := s.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "testbed: %v\n", err)
		logging.Logger.Error("Suite teardown failed", "error", err)
		return err
	}
	return nil
}
