package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

const busyTimeoutMillis = 5000

// timeLayout is the fixed-width UTC layout every timestamp is bound with.
// Fixed width keeps lexical comparisons in SQL consistent with time order,
// and both drivers parse it back into time.Time for DATETIME columns.
const timeLayout = "2006-01-02 15:04:05.000000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTimestamp tries several common SQLite timestamp formats. Aggregates
// like MIN/MAX lose the DATETIME column type and come back as text.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// DSN builds the data source name for driver. Each driver spells pragmas
// differently.
func DSN(driver, path, journalMode string) (string, error) {
	journal := strings.ToUpper(journalMode)
	if journal == "" {
		journal = "WAL"
	}
	switch driver {
	case DriverMattn:
		return fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=%s&_busy_timeout=%d", path, journal, busyTimeoutMillis), nil
	case DriverModernc:
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)", path, journal, busyTimeoutMillis), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// OpenDB opens the SQLite database at path, creating its directory if needed.
// The pool is capped at one connection: compute passes allocate generations
// by reading MAX(compute_index), which is only safe for a single writer.
func OpenDB(driver, path, journalMode string) (*sqlx.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn, err := DSN(driver, path, journalMode)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Open opens the database, applies pending migrations and returns a store
// that owns the connection.
func Open(driver, path, journalMode string) (*SQLiteStore, error) {
	db, err := OpenDB(driver, path, journalMode)
	if err != nil {
		return nil, err
	}

	runner := NewMigrationRunner(db.DB)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewSQLiteStore(db), nil
}
