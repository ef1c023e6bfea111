package database

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"gorm.io/gorm"

	"testbed/domain"
	"testbed/logging"
)

// TxEvent describes a transaction boundary that just ended.
type TxEvent struct {
	// Nested is true when the boundary was a savepoint.
	Nested bool
	// ParentNested is true when the boundary underneath is also a savepoint.
	ParentNested bool
	// Committed is false when the boundary was rolled back.
	Committed bool
	// Depth is the number of boundaries still open.
	Depth int
	// SavePoint names the savepoint that ended, if Nested.
	SavePoint string
}

// TxListener is called after a transaction boundary ends.
type TxListener func(ctx context.Context, ev TxEvent)

type boundary struct {
	savepoint string
	// pinned boundaries belong to whoever bound the session and cannot be
	// ended through it
	pinned bool
}

// Session is the unit of work application code commits through. Boundaries
// nest: Begin inside an open transaction opens a savepoint, and Commit or
// Rollback always ends the innermost boundary.
type Session struct {
	mu        sync.Mutex
	db        *DB
	conn      Conn
	ownsConn  bool
	stack     []boundary
	listeners map[int]TxListener
	nextID    int
	seq       int
}

func newSession(db *DB) *Session {
	return &Session{db: db, listeners: make(map[int]TxListener)}
}

// BindSession returns a session running inside the transaction already open
// on conn. The outer boundary stays owned by the caller: committing or rolling
// it back through the session is an isolation violation.
func BindSession(conn Conn) *Session {
	return &Session{
		conn:      conn,
		stack:     []boundary{{pinned: true}},
		listeners: make(map[int]TxListener),
	}
}

// Handle returns the gorm handle for queries in the session's current
// transaction, or a pool handle when no transaction is open.
func (s *Session) Handle(ctx context.Context) *gorm.DB {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn.Handle().WithContext(ctx)
	}
	return s.db.Gorm().WithContext(ctx)
}

// Depth returns the number of open boundaries, including a pinned outer one.
func (s *Session) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool {
	return s.Depth() > 0
}

// OnTransactionEnd registers a listener fired after every boundary ends.
// The returned function unregisters it.
func (s *Session) OnTransactionEnd(fn TxListener) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Begin opens a transaction, or a nested one when a transaction is already open.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	if len(s.stack) > 0 {
		s.mu.Unlock()
		return s.BeginNested(ctx)
	}
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := s.db.Connect(ctx)
		if err != nil {
			return err
		}
		s.conn = conn
		s.ownsConn = true
	}
	if err := s.conn.Begin(ctx); err != nil {
		s.releaseLocked()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.stack = append(s.stack, boundary{})
	return nil
}

// BeginNested opens a savepoint inside the current transaction.
func (s *Session) BeginNested(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stack) == 0 {
		return ErrNoTransaction
	}
	s.seq++
	name := fmt.Sprintf("sp_%d", s.seq)
	if err := s.conn.SavePoint(ctx, name); err != nil {
		return fmt.Errorf("failed to open savepoint %s: %w", name, err)
	}
	s.stack = append(s.stack, boundary{savepoint: name})
	return nil
}

// CurrentSavePoint returns the innermost savepoint name, or "" if the innermost
// boundary is a plain transaction.
func (s *Session) CurrentSavePoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return ""
	}
	return s.stack[len(s.stack)-1].savepoint
}

// Commit ends the innermost boundary, keeping its changes.
func (s *Session) Commit(ctx context.Context) error {
	return s.end(ctx, true)
}

// Rollback ends the innermost boundary, discarding its changes.
func (s *Session) Rollback(ctx context.Context) error {
	return s.end(ctx, false)
}

func (s *Session) end(ctx context.Context, commit bool) error {
	s.mu.Lock()

	if len(s.stack) == 0 {
		s.mu.Unlock()
		return ErrNoTransaction
	}
	top := s.stack[len(s.stack)-1]
	if top.pinned {
		s.mu.Unlock()
		return fmt.Errorf("%w: the outer transaction is owned by the isolation scope", domain.ErrIsolationViolation)
	}

	var err error
	switch {
	case top.savepoint != "" && commit:
		err = s.conn.ReleaseSavePoint(ctx, top.savepoint)
	case top.savepoint != "":
		err = s.conn.RollbackTo(ctx, top.savepoint)
		if err == nil {
			// ROLLBACK TO keeps the savepoint open; drop it to end the boundary
			err = s.conn.ReleaseSavePoint(ctx, top.savepoint)
		}
	case commit:
		err = s.conn.Commit(ctx)
	default:
		err = s.conn.Rollback(ctx)
	}

	s.stack = s.stack[:len(s.stack)-1]
	ev := TxEvent{
		Nested:    top.savepoint != "",
		Committed: commit && err == nil,
		Depth:     len(s.stack),
		SavePoint: top.savepoint,
	}
	if len(s.stack) > 0 {
		ev.ParentNested = s.stack[len(s.stack)-1].savepoint != ""
	}
	if len(s.stack) == 0 {
		s.releaseLocked()
	}
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	if err != nil {
		logging.Logger.Warn("Transaction boundary ended with error",
			"savepoint", top.savepoint,
			"commit", commit,
			"error", err)
	}

	// Listeners may open new boundaries, so they run without the lock held
	for _, fn := range listeners {
		fn(ctx, ev)
	}

	if err != nil {
		return fmt.Errorf("failed to end transaction: %w", err)
	}
	return nil
}

// Transaction runs fn inside a (possibly nested) boundary, committing it when
// fn returns nil and rolling it back otherwise.
func (s *Session) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	if err := s.Begin(ctx); err != nil {
		return err
	}

	panicked, ended := true, false
	defer func() {
		if !ended && (panicked || err != nil) {
			if rbErr := s.Rollback(ctx); rbErr != nil {
				logging.Logger.Warn("Rollback after failed transaction failed", "error", rbErr)
			}
		}
	}()

	err = fn(s.Handle(ctx))
	panicked = false
	if err != nil {
		return err
	}
	// Commit pops the boundary even when it fails
	ended = true
	return s.Commit(ctx)
}

// Close rolls back whatever the session still has open and releases its
// connection. Pinned boundaries are left to their owner.
func (s *Session) Close(ctx context.Context) error {
	for {
		s.mu.Lock()
		n := len(s.stack)
		pinned := n > 0 && s.stack[n-1].pinned
		s.mu.Unlock()
		if n == 0 || pinned {
			return nil
		}
		if err := s.Rollback(ctx); err != nil {
			return err
		}
	}
}

func (s *Session) releaseLocked() {
	if s.ownsConn && s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logging.Logger.Warn("Failed to release connection", "error", err)
		}
		s.conn = nil
		s.ownsConn = false
	}
}

func (s *Session) snapshotListenersLocked() []TxListener {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]TxListener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}
