package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// DB is the process-wide persistence handle: the gorm connection pool plus
// the Session application code is expected to do its work through.
type DB struct {
	gorm *gorm.DB
	uri  string

	mu      sync.Mutex
	session *Session
}

func newDB(gdb *gorm.DB, uri string) *DB {
	db := &DB{gorm: gdb, uri: uri}
	db.session = newSession(db)
	return db
}

// FromGorm wraps an already opened gorm handle.
func FromGorm(gdb *gorm.DB) *DB {
	return newDB(gdb, "")
}

// Gorm returns the engine-level pool handle. Writes through it bypass any
// isolation scope.
func (d *DB) Gorm() *gorm.DB {
	return d.gorm
}

// URI returns the URI the database was opened with.
func (d *DB) URI() string {
	return d.uri
}

// Session returns the session application code should use right now.
func (d *DB) Session() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// SwapSession installs s as the current session and returns the previous one.
func (d *DB) SwapSession(s *Session) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.session
	d.session = s
	return prev
}

// Connect pins a connection from the pool.
func (d *DB) Connect(ctx context.Context) (Conn, error) {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	raw, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &gormConn{pool: d.gorm, raw: raw}, nil
}

// Migrate creates or updates the tables for models.
func (d *DB) Migrate(models ...any) error {
	if len(models) == 0 {
		return nil
	}
	if err := d.gorm.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DropAll drops the tables for models, in reverse order.
func (d *DB) DropAll(models ...any) error {
	for i := len(models) - 1; i >= 0; i-- {
		if err := d.gorm.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return nil
}

// Close closes the pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsConnectionBroken reports whether err means the connection itself can no
// longer be trusted, as opposed to a failed statement.
func IsConnectionBroken(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrIoErr, sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrCantOpen, sqlite3.ErrMisuse:
			return true
		}
	}
	return false
}
