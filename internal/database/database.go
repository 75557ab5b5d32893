package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"notes-api/internal/config"

	"github.com/charmbracelet/log"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Open connects to the database selected by DB_DRIVER and verifies the connection.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		return NewMySQLConnection(ctx, cfg.MySQLDSN())
	case config.DriverSQLite:
		return NewSQLiteConnection(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

func NewMySQLConnection(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint: errcheck
		return nil, fmt.Errorf("failed to ping mysql database: %w", err)
	}

	log.Info("Connected to database", "driver", config.DriverMySQL)
	return db, nil
}

// NewSQLiteConnection opens a SQLite file, or a private in-memory database
// when path is ":memory:".
func NewSQLiteConnection(ctx context.Context, path string) (*sql.DB, error) {
	var dsn string
	if path == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)&_time_format=sqlite"
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// every in-memory connection is its own database, and SQLite has a
	// single writer anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint: errcheck
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	log.Info("Connected to database", "driver", config.DriverSQLite, "path", path)
	return db, nil
}

func newMigrator(db *sql.DB, driver string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	var m *migrate.Migrate
	switch driver {
	case config.DriverMySQL:
		target, err := migratemysql.WithInstance(db, &migratemysql.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to prepare mysql migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, driver, target)
		if err != nil {
			return nil, fmt.Errorf("failed to create migrator: %w", err)
		}
	case config.DriverSQLite:
		target, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to prepare sqlite migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, driver, target)
		if err != nil {
			return nil, fmt.Errorf("failed to create migrator: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return m, nil
}

// Migrate applies every pending up migration. The migrator is not closed
// because that would close db as well.
func Migrate(db *sql.DB, driver string) error {
	m, err := newMigrator(db, driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	log.Info("Database migrations completed", "version", version, "dirty", dirty)
	return nil
}

// Rollback reverts the given number of migrations.
func Rollback(db *sql.DB, driver string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}

	m, err := newMigrator(db, driver)
	if err != nil {
		return err
	}

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	log.Info("Database migrations rolled back", "steps", steps)
	return nil
}
