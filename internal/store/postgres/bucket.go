// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

	const q = `INSERT INTO compressed_buckets
	(day, avg_value, max_value, min_value, sample_count, compressed_at, purged_at)
VALUES ($1::date, $2, $3, $4, $5, $6, NULL)
ON CONFLICT (day) DO UPDATE SET
	avg_value     = EXCLUDED.avg_value,
	max_value     = EXCLUDED.max_value,
	min_value     = EXCLUDED.min_value,
	sample_count  = EXCLUDED.sample_count,
	compressed_at = EXCLUDED.compressed_at
WHERE compressed_buckets.purged_at IS NULL`

	day := formatDay(b.Day)
	res, err := s.db.ExecContext(ctx, q,
		day, b.AvgValue, b.MaxValue, b.MinValue, b.SampleCount, b.CompressedAt.UTC(),
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
FROM compressed_buckets WHERE TRUE`)
	if !r.From.IsZero() {
		args = append(args, formatDay(r.From))
		fmt.Fprintf(&b, ` AND day >= $%d::date`, len(args))
	}
	if !r.To.IsZero() {
		args = append(args, formatDay(r.To))
		fmt.Fprintf(&b, ` AND day <= $%d::date`, len(args))
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
			bucket   store.CompressedBucket
			purgedAt sql.NullTime
		)
		if err := rows.Scan(&bucket.Day, &bucket.AvgValue, &bucket.MaxValue, &bucket.MinValue,
			&bucket.SampleCount, &bucket.CompressedAt, &purgedAt); err != nil {
			return nil, strataerr.Wrap(err, strataerr.CodeStoreDatabaseFailure, "scanning bucket")
		}
		bucket.Day = time.Date(bucket.Day.Year(), bucket.Day.Month(), bucket.Day.Day(), 0, 0, 0, 0, time.UTC)
		bucket.CompressedAt = bucket.CompressedAt.UTC()
		if purgedAt.Valid {
			t := purgedAt.Time.UTC()
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

	// The row lock keeps a concurrent merge from changing sample_count
	// between the delete and the freeze.
	var purgedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `SELECT purged_at FROM compressed_buckets WHERE day = $1::date FOR UPDATE`, dayKey).
		Scan(&purgedAt)
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

	res, err := tx.ExecContext(ctx, `DELETE FROM readings WHERE ts >= $1 AND ts < $2`, start, end)
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

	const freeze = `UPDATE compressed_buckets SET purged_at = $1
WHERE day = $2::date AND purged_at IS NULL AND sample_count = $3`
	res, err = tx.ExecContext(ctx, freeze, now.UTC(), dayKey, expected)
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
