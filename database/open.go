package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"testbed/logging"
	"testbed/paths"
)

// gormLogger wraps the harness logger for GORM
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Logger.Error("gorm query error",
			"error", err,
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else {
		logging.Logger.Debug("gorm query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	}
}

func newGormLogger() logger.Interface {
	if os.Getenv("TESTBED_DEBUG") == "1" {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// Open connects to the database named by uri and returns the process-wide handle.
//
// Supported forms:
//   - sqlite:///abs/path/test.db  (file database, WAL, busy timeout, foreign keys)
//   - sqlite:// or sqlite://:memory:  (private in-memory database shared by the pool)
//   - postgres://... or postgresql://...
func Open(uri string) (*DB, error) {
	dialector, err := dialectorFor(uri)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt:    false,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	logging.Logger.Debug("Database opened", "dialect", gdb.Dialector.Name(), "uri", redact(uri))

	return newDB(gdb, uri), nil
}

func dialectorFor(uri string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(uri, "sqlite://"):
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(uri, "sqlite://"))), nil
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return postgres.Open(uri), nil
	default:
		return nil, fmt.Errorf("unsupported database URI %q", redact(uri))
	}
}

func sqliteDSN(path string) string {
	if path == "" || path == ":memory:" {
		// Named so every pooled connection sees the same database
		return fmt.Sprintf("file:testbed-%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	}

	return "file:" + paths.ExpandPath(path) + "?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"
}

// SQLiteURI returns the URI for a sqlite file database at path.
func SQLiteURI(path string) string {
	return "sqlite://" + path
}

// redact hides the password of URIs that carry credentials.
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
