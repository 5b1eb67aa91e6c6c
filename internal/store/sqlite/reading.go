// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

type readingStore struct {
	db *sql.DB
}

func (s *readingStore) Insert(ctx context.Context, r store.Reading) error {
	if err := r.Validate(); err != nil {
		return err
	}

	const q = `INSERT INTO readings (sensor_id, ts, value) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, r.SensorID, formatTime(store.NormalizeTimestamp(r.Timestamp)), r.Value); err != nil {
		return strataerr.Wrapf(err, errCode(err, strataerr.CodeStoreDatabaseFailure),
			"inserting reading for sensor %d at %s", r.SensorID, formatTime(r.Timestamp))
	}
	return nil
}

func (s *readingStore) Range(ctx context.Context, q store.RangeQuery) ([]store.Reading, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT sensor_id, ts, value FROM readings WHERE ts >= ? AND ts <= ?`)
	args := []any{
		formatTime(store.NormalizeTimestamp(q.Start)),
		formatTime(store.NormalizeTimestamp(q.End)),
	}
	if q.SensorID != nil {
		b.WriteString(` AND sensor_id = ?`)
		args = append(args, *q.SensorID)
	}
	b.WriteString(` ORDER BY ts, sensor_id`)
	if q.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreReadingQueryFailure), "querying readings")
	}
	defer func() { _ = rows.Close() }()

	var out []store.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Wrap(err, errCode(err, strataerr.CodeStoreReadingQueryFailure), "iterating readings")
	}
	return out, nil
}

func (s *readingStore) ScanBefore(ctx context.Context, cutoff time.Time, fn func(store.Reading) error) error {
	const q = `SELECT sensor_id, ts, value FROM readings WHERE ts < ? ORDER BY ts, sensor_id`

	rows, err := s.db.QueryContext(ctx, q, formatTime(cutoff))
	if err != nil {
		return strataerr.Wrap(err, errCode(err, strataerr.CodeStoreReadingQueryFailure), "scanning aged readings")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return strataerr.Wrap(err, errCode(err, strataerr.CodeStoreReadingQueryFailure), "iterating aged readings")
	}
	return nil
}

func scanReading(rows *sql.Rows) (store.Reading, error) {
	var (
		r  store.Reading
		ts string
	)
	if err := rows.Scan(&r.SensorID, &ts, &r.Value); err != nil {
		return store.Reading{}, strataerr.Wrap(err, strataerr.CodeStoreReadingQueryFailure, "scanning reading")
	}
	t, err := parseTime(ts)
	if err != nil {
		return store.Reading{}, err
	}
	r.Timestamp = t
	return r, nil
}
