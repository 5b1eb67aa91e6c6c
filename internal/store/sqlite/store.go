// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// Compile-time interface checks.
var (
	_ store.Store        = (*Store)(nil)
	_ store.ReadingStore = (*readingStore)(nil)
	_ store.BucketStore  = (*bucketStore)(nil)
	_ store.LeaseStore   = (*leaseStore)(nil)
)

// Timestamps are stored as fixed-width UTC text so that string order
// matches time order.
const (
	tsLayout  = "2006-01-02T15:04:05.000000Z07:00"
	dayLayout = "2006-01-02"
)

// Store implements store.Store backed by a single SQLite database.
type Store struct {
	db       *sql.DB
	path     string
	readings *readingStore
	buckets  *bucketStore
	leases   *leaseStore
}

// Open opens (or creates) the SQLite database at dbPath. The parent
// directory is created when missing.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, strataerr.New(strataerr.CodeStoreInvalidInput, "sqlite: database path is required")
	}

	memory := dbPath == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, strataerr.Wrapf(err, strataerr.CodeStoreConnectionUnavailable, "creating database directory for %s", dbPath)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeStoreConnectionUnavailable, "opening sqlite db %s", dbPath)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, strataerr.Wrapf(err, strataerr.CodeStoreConnectionUnavailable, "pinging sqlite db %s", dbPath)
	}

	return &Store{
		db:       db,
		path:     dbPath,
		readings: &readingStore{db: db},
		buckets:  &bucketStore{db: db},
		leases:   &leaseStore{db: db},
	}, nil
}

// Migrate creates the readings, compressed_buckets and leases tables.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS readings (
	sensor_id INTEGER NOT NULL,
	ts        TEXT    NOT NULL,
	value     REAL    NOT NULL,
	PRIMARY KEY (sensor_id, ts)
);

CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(ts);

CREATE TABLE IF NOT EXISTS compressed_buckets (
	day           TEXT    PRIMARY KEY,
	avg_value     REAL    NOT NULL,
	max_value     REAL    NOT NULL,
	min_value     REAL    NOT NULL,
	sample_count  INTEGER NOT NULL,
	compressed_at TEXT    NOT NULL,
	purged_at     TEXT
);

CREATE TABLE IF NOT EXISTS leases (
	name        TEXT PRIMARY KEY,
	owner       TEXT NOT NULL,
	acquired_at TEXT NOT NULL,
	expires_at  TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return strataerr.Wrapf(err, errCode(err, strataerr.CodeStoreSchemaFailure), "migrating sqlite db %s", s.path)
	}
	return nil
}

// Readings returns the ReadingStore sub-store.
func (s *Store) Readings() store.ReadingStore { return s.readings }

// Buckets returns the BucketStore sub-store.
func (s *Store) Buckets() store.BucketStore { return s.buckets }

// Leases returns the LeaseStore sub-store.
func (s *Store) Leases() store.LeaseStore { return s.leases }

// Path returns the database file the store was opened on.
func (s *Store) Path() string { return s.path }

// Stats counts readings and buckets.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var (
		stats          store.Stats
		oldest, newest sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MIN(ts), MAX(ts) FROM readings`).
		Scan(&stats.Readings, &oldest, &newest)
	if err != nil {
		return store.Stats{}, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure), "counting readings")
	}
	if stats.OldestReading, err = parseTime(oldest.String); err != nil {
		return store.Stats{}, err
	}
	if stats.NewestReading, err = parseTime(newest.String); err != nil {
		return store.Stats{}, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(purged_at) FROM compressed_buckets`).
		Scan(&stats.Buckets, &stats.PurgedBuckets)
	if err != nil {
		return store.Stats{}, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure), "counting buckets")
	}

	return stats, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// errCode maps a driver error onto a store error code, falling back to
// fallback for anything that is not a constraint or availability failure.
func errCode(err error, fallback strataerr.Code) strataerr.Code {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
			return strataerr.CodeStoreReadingInsertConflict
		case sqliteErr.Code == sqlite3.ErrBusy,
			sqliteErr.Code == sqlite3.ErrLocked,
			sqliteErr.Code == sqlite3.ErrCantOpen:
			return strataerr.CodeStoreConnectionUnavailable
		}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return strataerr.CodeStoreConnectionUnavailable
	}
	return fallback
}

// formatTime serialises a time for storage.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(tsLayout)
}

// parseTime deserialises a time string stored in the database. An empty
// string is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, strataerr.Wrapf(err, strataerr.CodeStoreDatabaseFailure, "stored timestamp %q is malformed", s)
	}
	return t.UTC(), nil
}

func formatDay(t time.Time) string {
	return store.DayOf(t).Format(dayLayout)
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, strataerr.Wrapf(err, strataerr.CodeStoreDatabaseFailure, "stored day %q is malformed", s)
	}
	return t, nil
}
