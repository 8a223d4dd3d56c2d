// Package repo implements the data persistence layer for complaints, backed
// by GORM. This file contains database bootstrapping helpers for SQLite (pure
// Go driver, the default and the test store) and MySQL, plus schema
// migrations.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/complaints-backend/internal/domain"
)

// Options selects and tunes the backing store.
type Options struct {
	Driver          string // "sqlite" (default) or "mysql"
	Path            string // SQLite file, or a "file:...?mode=memory" URI
	DSN             string // MySQL DSN
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Tracing         bool // register the OpenTelemetry GORM plugin
	Silent          bool // mute GORM's SQL logger
}

// sqlitePragmas are carried in the DSN so every pooled connection gets them,
// not only the one that happens to run a PRAGMA statement.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

// Open connects to the configured store and applies pool settings.
func Open(opts Options) (*gorm.DB, error) {
	gcfg := &gorm.Config{}
	if opts.Silent {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(opts.Driver) {
	case "", "sqlite":
		db, err = openSQLite(opts.Path, gcfg)
	case "mysql":
		db, err = gorm.Open(mysql.Open(MySQLDSN(opts.DSN)), gcfg)
	default:
		return nil, fmt.Errorf("unknown db driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("gorm tracing: %w", err)
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(orDefault(opts.MaxOpenConns, 10))
		sqlDB.SetMaxIdleConns(orDefault(opts.MaxIdleConns, 10))
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		if opts.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
		} else {
			sqlDB.SetConnMaxLifetime(30 * time.Minute)
		}
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database with the default pool.
func OpenSQLite(path string) (*gorm.DB, error) {
	return Open(Options{Driver: "sqlite", Path: path})
}

func openSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}
	return gorm.Open(sqlite.Open(SQLiteDSN(path)), gcfg)
}

// SQLiteDSN appends the connection pragmas to path.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(path)
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// MySQLDSN makes sure DATETIME columns scan into time.Time.
func MySQLDSN(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// AutoMigrate creates or updates the complaint and idempotency tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Complaint{},
		&domain.Idempotency{},
	)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
