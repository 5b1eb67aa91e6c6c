// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package postgres implements the store interfaces on PostgreSQL through
// lib/pq. Timestamps are stored as timestamptz and bucket days as date.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/lib/pq"

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

// SQLSTATE classes lib/pq reports for availability problems.
const (
	classConnectionException  = "08"
	classInsufficientResource = "53"
	classOperatorIntervention = "57"
)

// Store implements store.Store backed by a PostgreSQL database.
type Store struct {
	db       *sql.DB
	readings *readingStore
	buckets  *bucketStore
	leases   *leaseStore
}

// Open connects to PostgreSQL using a lib/pq connection URL.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, strataerr.Wrap(err, strataerr.CodeStoreConnectionUnavailable, "opening postgres connection",
			strataerr.FieldBackend("postgres"))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, strataerr.Wrap(err, strataerr.CodeStoreConnectionUnavailable, "pinging postgres",
			strataerr.FieldBackend("postgres"))
	}

	return &Store{
		db:       db,
		readings: &readingStore{db: db},
		buckets:  &bucketStore{db: db},
		leases:   &leaseStore{db: db},
	}, nil
}

// Migrate creates the readings, compressed_buckets and leases tables.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS readings (
	sensor_id BIGINT           NOT NULL,
	ts        TIMESTAMPTZ      NOT NULL,
	value     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (sensor_id, ts)
);

CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(ts);

CREATE TABLE IF NOT EXISTS compressed_buckets (
	day           DATE             PRIMARY KEY,
	avg_value     DOUBLE PRECISION NOT NULL,
	max_value     DOUBLE PRECISION NOT NULL,
	min_value     DOUBLE PRECISION NOT NULL,
	sample_count  BIGINT           NOT NULL,
	compressed_at TIMESTAMPTZ      NOT NULL,
	purged_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS leases (
	name        TEXT        PRIMARY KEY,
	owner       TEXT        NOT NULL,
	acquired_at TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return strataerr.Wrap(err, errCode(err, strataerr.CodeStoreSchemaFailure), "migrating postgres schema")
	}
	return nil
}

// Readings returns the ReadingStore sub-store.
func (s *Store) Readings() store.ReadingStore { return s.readings }

// Buckets returns the BucketStore sub-store.
func (s *Store) Buckets() store.BucketStore { return s.buckets }

// Leases returns the LeaseStore sub-store.
func (s *Store) Leases() store.LeaseStore { return s.leases }

// Stats counts readings and buckets.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var (
		stats          store.Stats
		oldest, newest sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MIN(ts), MAX(ts) FROM readings`).
		Scan(&stats.Readings, &oldest, &newest)
	if err != nil {
		return store.Stats{}, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure), "counting readings")
	}
	if oldest.Valid {
		stats.OldestReading = oldest.Time.UTC()
	}
	if newest.Valid {
		stats.NewestReading = newest.Time.UTC()
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(purged_at) FROM compressed_buckets`).
		Scan(&stats.Buckets, &stats.PurgedBuckets)
	if err != nil {
		return store.Stats{}, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure), "counting buckets")
	}

	return stats, nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func errCode(err error, fallback strataerr.Code) strataerr.Code {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505": // unique_violation
			return strataerr.CodeStoreReadingInsertConflict
		case pqErr.Code.Class() == classConnectionException,
			pqErr.Code.Class() == classInsufficientResource,
			pqErr.Code.Class() == classOperatorIntervention:
			return strataerr.CodeStoreConnectionUnavailable
		}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return strataerr.CodeStoreConnectionUnavailable
	}
	return fallback
}

func formatDay(t time.Time) string {
	return store.DayOf(t).Format("2006-01-02")
}
