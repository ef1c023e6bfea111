package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Conn is one pinned connection supporting nested transaction boundaries.
// It is the whole capability set the isolation protocol relies on.
type Conn interface {
	// Handle returns the gorm handle bound to the connection's current
	// transaction, or to the bare connection when none is open.
	Handle() *gorm.DB
	Begin(ctx context.Context) error
	SavePoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	ReleaseSavePoint(ctx context.Context, name string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	// Close returns the connection to its pool.
	Close() error
	// Discard closes the connection and keeps the pool from handing it out again.
	Discard() error
}

// ErrNoTransaction is returned when a boundary operation needs an open transaction.
var ErrNoTransaction = errors.New("no transaction in progress")

type gormConn struct {
	pool *gorm.DB
	raw  *sql.Conn
	tx   *gorm.DB
}

var _ Conn = (*gormConn)(nil)

func (c *gormConn) Handle() *gorm.DB {
	if c.tx != nil {
		return c.tx
	}
	h := c.pool.Session(&gorm.Session{NewDB: true, Context: context.Background()})
	h.Statement.ConnPool = c.raw
	return h
}

func (c *gormConn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return fmt.Errorf("transaction already in progress")
	}
	base := c.pool.Session(&gorm.Session{NewDB: true, Context: ctx})
	base.Statement.ConnPool = c.raw
	tx := base.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	c.tx = tx
	return nil
}

func (c *gormConn) SavePoint(ctx context.Context, name string) error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	return c.tx.WithContext(ctx).SavePoint(name).Error
}

func (c *gormConn) RollbackTo(ctx context.Context, name string) error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	return c.tx.WithContext(ctx).RollbackTo(name).Error
}

func (c *gormConn) ReleaseSavePoint(ctx context.Context, name string) error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	return c.tx.WithContext(ctx).Exec("RELEASE SAVEPOINT " + name).Error
}

func (c *gormConn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	err := c.tx.WithContext(ctx).Commit().Error
	c.tx = nil
	return err
}

func (c *gormConn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	err := c.tx.WithContext(ctx).Rollback().Error
	c.tx = nil
	return err
}

func (c *gormConn) Close() error {
	return c.raw.Close()
}

func (c *gormConn) Discard() error {
	// Returning ErrBadConn from Raw makes database/sql close the driver
	// connection instead of putting it back in the pool.
	err := c.raw.Raw(func(any) error { return driver.ErrBadConn })
	if err != nil && !errors.Is(err, driver.ErrBadConn) {
		return err
	}
	if err := c.raw.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
