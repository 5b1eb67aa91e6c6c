// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

type bucketStore struct {
	db *sql.DB
}

func (s *bucketStore) Merge(ctx context.Context, b store.CompressedBucket) (bool, error) {
	if err := b.Validate(); err != nil {
		return false, err
	}

	// A purged bucket no longer has the raw rows its aggregates came from,
	// so the update is skipped for it.
	const q = `INSERT INTO compressed_buckets
	(day, avg_value, max_value, min_value, sample_count, compressed_at, purged_at)
VALUES (?, ?, ?, ?, ?, ?, NULL)
ON CONFLICT(day) DO UPDATE SET
	avg_value     = excluded.avg_value,
	max_value     = excluded.max_value,
	min_value     = excluded.min_value,
	sample_count  = excluded.sample_count,
	compressed_at = excluded.compressed_at
WHERE compressed_buckets.purged_at IS NULL`

	day := formatDay(b.Day)
	res, err := s.db.ExecContext(ctx, q,
		day, b.AvgValue, b.MaxValue, b.MinValue, b.SampleCount, formatTime(b.CompressedAt),
	)
	if err != nil {
		return false, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreBucketMergeFailure),
			"merging bucket", strataerr.FieldDay(day))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, strataerr.Wrap(err, strataerr.CodeStoreBucketMergeFailure,
			"checking merged rows", strataerr.FieldDay(day))
	}
	return n > 0, nil
}

func (s *bucketStore) List(ctx context.Context, r store.DayRange) ([]store.CompressedBucket, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT day, avg_value, max_value, min_value, sample_count, compressed_at, purged_at
FROM compressed_buckets WHERE 1 = 1`)
	if !r.From.IsZero() {
		b.WriteString(` AND day >= ?`)
		args = append(args, formatDay(r.From))
	}
	if !r.To.IsZero() {
		b.WriteString(` AND day <= ?`)
		args = append(args, formatDay(r.To))
	}
	b.WriteString(` ORDER BY day`)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure), "listing buckets")
	}
	defer func() { _ = rows.Close() }()

	var out []store.CompressedBucket
	for rows.Next() {
		var (
			bucket            store.CompressedBucket
			day, compressedAt string
			purgedAt          sql.NullString
		)
		if err := rows.Scan(&day, &bucket.AvgValue, &bucket.MaxValue, &bucket.MinValue,
			&bucket.SampleCount, &compressedAt, &purgedAt); err != nil {
			return nil, strataerr.Wrap(err, strataerr.CodeStoreDatabaseFailure, "scanning bucket")
		}
		if bucket.Day, err = parseDay(day); err != nil {
			return nil, err
		}
		if bucket.CompressedAt, err = parseTime(compressedAt); err != nil {
			return nil, err
		}
		if purgedAt.Valid {
			t, err := parseTime(purgedAt.String)
			if err != nil {
				return nil, err
			}
			bucket.PurgedAt = &t
		}
		out = append(out, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure), "iterating buckets")
	}
	return out, nil
}

func (s *bucketStore) Purge(ctx context.Context, day time.Time, expected int64, now time.Time) (int64, error) {
	dayKey := formatDay(day)
	start := store.DayOf(day)
	end := start.AddDate(0, 0, 1)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure),
			"beginning purge", strataerr.FieldDay(dayKey))
	}
	defer tx.Rollback() //nolint:errcheck

	var purgedAt sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT purged_at FROM compressed_buckets WHERE day = ?`, dayKey).Scan(&purgedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, strataerr.New(strataerr.CodeStoreEntityNotFound, "bucket not found", strataerr.FieldDay(dayKey))
	}
	if err != nil {
		return 0, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure),
			"reading bucket", strataerr.FieldDay(dayKey))
	}
	if purgedAt.Valid {
		return 0, nil
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM readings WHERE ts >= ? AND ts < ?`, formatTime(start), formatTime(end))
	if err != nil {
		return 0, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure),
			"deleting readings", strataerr.FieldDay(dayKey))
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, strataerr.Wrap(err, strataerr.CodeStoreDatabaseFailure,
			"checking deleted rows", strataerr.FieldDay(dayKey))
	}
	if deleted != expected {
		return 0, strataerr.New(strataerr.CodeStoreBucketPurgeStale, "raw reading count does not match bucket",
			strataerr.FieldDay(dayKey), strataerr.Field("expected", expected), strataerr.Field("found", deleted))
	}

	const freeze = `UPDATE compressed_buckets SET purged_at = ?
WHERE day = ? AND purged_at IS NULL AND sample_count = ?`
	res, err = tx.ExecContext(ctx, freeze, formatTime(now), dayKey, expected)
	if err != nil {
		return 0, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure),
			"freezing bucket", strataerr.FieldDay(dayKey))
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return 0, strataerr.New(strataerr.CodeStoreBucketPurgeStale, "bucket changed during purge", strataerr.FieldDay(dayKey))
	}

	if err := tx.Commit(); err != nil {
		return 0, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreDatabaseFailure),
			"committing purge", strataerr.FieldDay(dayKey))
	}
	return deleted, nil
}
