// Package isolation runs each test inside a transaction that is always rolled
// back, including work the application under test commits itself.
//
// Opening a scope pins a connection, begins the outer transaction and opens a
// savepoint. Application code only ever sees the savepoint: whenever it ends
// one (its own commit or rollback), a replacement is opened immediately, so
// nothing can reach the outer transaction. Closing the scope rolls the outer
// transaction back.
package isolation

import (
	"context"
	"slices"
	"sync"

	"gorm.io/gorm"

	"testbed/database"
)

// Persistence is what a scope needs from the database handle it isolates.
// *database.DB implements it.
type Persistence interface {
	Connect(ctx context.Context) (database.Conn, error)
	SwapSession(s *database.Session) *database.Session
}

// Scope is one test's database sandbox.
type Scope struct {
	id      string
	target  Persistence
	conn    database.Conn
	session *database.Session
	prev    *database.Session
	remove  func()

	mu         sync.Mutex
	savepoints []string
	closing    bool
	closed     bool
	err        error
}

// ID identifies the scope in logs.
func (s *Scope) ID() string {
	return s.id
}

// Session returns the session installed for the duration of the scope.
func (s *Scope) Session() *database.Session {
	return s.session
}

// Handle returns a gorm handle inside the scope's current savepoint.
func (s *Scope) Handle(ctx context.Context) *gorm.DB {
	return s.session.Handle(ctx)
}

// Savepoints returns the savepoints the scope has opened, oldest first: the
// initial one plus one per application-level commit or rollback.
func (s *Scope) Savepoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.savepoints)
}

// Closed reports whether the scope has been closed.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Err returns the first failure seen while the scope was open, such as a
// savepoint that could not be reopened.
func (s *Scope) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Scope) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Scope) pushSavepoint(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savepoints = append(s.savepoints, name)
}
