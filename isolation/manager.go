package isolation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"testbed/database"
	"testbed/domain"
	"testbed/logging"
)

// Manager opens and closes isolation scopes. Only one scope may be open per
// database at a time.
type Manager struct {
	mu   sync.Mutex
	open map[Persistence]*Scope
}

// NewManager creates a new Manager
func NewManager() *Manager {
	return &Manager{open: make(map[Persistence]*Scope)}
}

// Open starts a scope on target and installs its session, so every write the
// application makes from now on lands inside the scope.
func (m *Manager) Open(ctx context.Context, target Persistence) (*Scope, error) {
	m.mu.Lock()
	if _, busy := m.open[target]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: an isolation scope is already open on this database", domain.ErrIsolationViolation)
	}
	m.open[target] = nil
	m.mu.Unlock()

	scope, err := open(ctx, target)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.open, target)
		return nil, err
	}
	m.open[target] = scope
	return scope, nil
}

func open(ctx context.Context, target Persistence) (*Scope, error) {
	conn, err := target.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSetup, err)
	}
	if err := conn.Begin(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: failed to begin outer transaction: %w", domain.ErrSetup, err)
	}

	s := &Scope{
		id:      uuid.NewString(),
		target:  target,
		conn:    conn,
		session: database.BindSession(conn),
	}
	if err := s.session.BeginNested(ctx); err != nil {
		conn.Rollback(ctx)
		conn.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrSetup, err)
	}
	s.pushSavepoint(s.session.CurrentSavePoint())
	s.remove = s.session.OnTransactionEnd(s.restartSavepoint)
	s.prev = target.SwapSession(s.session)

	logging.Logger.Debug("Isolation scope opened", "scope", s.id)
	return s, nil
}

// restartSavepoint replaces a savepoint the application just ended. Only the
// savepoint sitting directly on the outer transaction is replaced; deeper ones
// belong to the application's own nesting.
func (s *Scope) restartSavepoint(ctx context.Context, ev database.TxEvent) {
	if !ev.Nested || ev.ParentNested {
		return
	}
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	if closing {
		return
	}

	if err := s.session.BeginNested(context.WithoutCancel(ctx)); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			err = fmt.Errorf("%w: outer transaction ended outside the isolation scope: %w", domain.ErrIsolationViolation, err)
		} else {
			err = fmt.Errorf("%w: failed to reopen savepoint: %w", domain.ErrIsolationViolation, err)
		}
		logging.Logger.Error("Isolation savepoint lost", "scope", s.id, "error", err)
		s.fail(err)
		return
	}
	s.pushSavepoint(s.session.CurrentSavePoint())
}

// Close rolls the scope back and restores the session that was installed
// before it. The scope is closed even when the rollback fails; in that case
// the connection is discarded rather than returned to the pool.
func (m *Manager) Close(ctx context.Context, s *Scope) error {
	s.mu.Lock()
	if s.closed || s.closing {
		s.mu.Unlock()
		return fmt.Errorf("%w: scope %s closed twice", domain.ErrIsolationViolation, s.id)
	}
	s.closing = true
	s.mu.Unlock()

	// Teardown runs even when the test's own context has expired
	ctx = context.WithoutCancel(ctx)

	s.remove()

	// Unwind every savepoint above the outer transaction. Some may already
	// be invalid; the outer rollback below discards their work regardless.
	for s.session.Depth() > 1 {
		if err := s.session.Rollback(ctx); err != nil {
			logging.Logger.Debug("Ignoring savepoint rollback failure", "scope", s.id, "error", err)
		}
	}

	var errs []error
	if err := s.Err(); err != nil {
		errs = append(errs, err)
	}

	if err := s.conn.Rollback(ctx); err != nil {
		switch {
		case errors.Is(err, sql.ErrTxDone):
			// The outer transaction was committed by someone bypassing the session
			if s.Err() == nil {
				errs = append(errs, fmt.Errorf("%w: outer transaction ended outside the isolation scope", domain.ErrIsolationViolation))
			}
		default:
			errs = append(errs, fmt.Errorf("%w: rollback of scope %s failed: %w", domain.ErrTeardown, s.id, err))
		}
		logging.Logger.Error("Isolation rollback failed",
			"scope", s.id,
			"broken_connection", database.IsConnectionBroken(err),
			"error", err)
		if discardErr := s.conn.Discard(); discardErr != nil {
			errs = append(errs, fmt.Errorf("%w: failed to discard connection: %w", domain.ErrTeardown, discardErr))
		}
	} else if err := s.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: failed to release connection: %w", domain.ErrTeardown, err))
	}

	s.target.SwapSession(s.prev)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	m.mu.Lock()
	if m.open[s.target] == s {
		delete(m.open, s.target)
	}
	m.mu.Unlock()

	logging.Logger.Debug("Isolation scope closed", "scope", s.id, "savepoints", len(s.Savepoints()))
	return errors.Join(errs...)
}

// CloseAll closes every scope still open. It is the last line of defence when
// a test run is interrupted before its own cleanups ran.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	scopes := make([]*Scope, 0, len(m.open))
	for _, s := range m.open {
		if s != nil {
			scopes = append(scopes, s)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range scopes {
		if err := m.Close(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenScopes returns the number of scopes currently open.
func (m *Manager) OpenScopes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}
