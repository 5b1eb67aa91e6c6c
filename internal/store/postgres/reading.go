// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package postgres

import (
	"context"
	"database/sql"
	"fmt"
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

	const q = `INSERT INTO readings (sensor_id, ts, value) VALUES ($1, $2, $3)`
	ts := store.NormalizeTimestamp(r.Timestamp)
	if _, err := s.db.ExecContext(ctx, q, r.SensorID, ts, r.Value); err != nil {
		return strataerr.Wrapf(err, errCode(err, strataerr.CodeStoreDatabaseFailure),
			"inserting reading for sensor %d at %s", r.SensorID, ts.Format(time.RFC3339Nano))
	}
	return nil
}

func (s *readingStore) Range(ctx context.Context, q store.RangeQuery) ([]store.Reading, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT sensor_id, ts, value FROM readings WHERE ts >= $1 AND ts <= $2`)
	args := []any{store.NormalizeTimestamp(q.Start), store.NormalizeTimestamp(q.End)}
	if q.SensorID != nil {
		args = append(args, *q.SensorID)
		fmt.Fprintf(&b, ` AND sensor_id = $%d`, len(args))
	}
	b.WriteString(` ORDER BY ts, sensor_id`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
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
	const q = `SELECT sensor_id, ts, value FROM readings WHERE ts < $1 ORDER BY ts, sensor_id`

	rows, err := s.db.QueryContext(ctx, q, cutoff.UTC())
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
	var r store.Reading
	if err := rows.Scan(&r.SensorID, &r.Timestamp, &r.Value); err != nil {
		return store.Reading{}, strataerr.Wrap(err, strataerr.CodeStoreReadingQueryFailure, "scanning reading")
	}
	r.Timestamp = r.Timestamp.UTC()
	return r, nil
}
