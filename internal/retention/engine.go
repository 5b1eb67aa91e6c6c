// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package retention rolls aged sensor readings up into daily buckets and,
// optionally, deletes the raw readings a bucket already accounts for.
package retention

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/strata-dev/strata/internal/logging"
	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// DefaultWindow is how long raw readings stay outside any bucket.
const DefaultWindow = 30 * 24 * time.Hour

// Result describes one compression run.
type Result struct {
	Cutoff   time.Time
	Days     int   // buckets inserted or updated
	Readings int64 // raw readings aggregated
	Frozen   int   // days skipped because their bucket was already purged
}

// PurgeResult describes one purge run.
type PurgeResult struct {
	Cutoff  time.Time
	Days    int   // buckets frozen by this run
	Rows    int64 // raw readings deleted
	Skipped int   // days whose raw count no longer matched their bucket
}

// Engine runs compression and purge against a store.
type Engine struct {
	readings store.ReadingStore
	buckets  store.BucketStore
	window   time.Duration
	log      *slog.Logger
}

// NewEngine returns an Engine that treats readings older than window as
// aged. window must be positive.
func NewEngine(readings store.ReadingStore, buckets store.BucketStore, window time.Duration) (*Engine, error) {
	if window <= 0 {
		return nil, strataerr.Errorf(strataerr.CodeRetentionInputInvalid,
			"retention window must be positive, got %s", window)
	}
	return &Engine{
		readings: readings,
		buckets:  buckets,
		window:   window,
		log:      logging.Component("retention"),
	}, nil
}

// Cutoff returns the instant before which readings are aged at now.
func (e *Engine) Cutoff(now time.Time) time.Time {
	return now.Add(-e.window).UTC()
}

// Compress aggregates every reading strictly older than now minus the
// window into one bucket per UTC day and merges the buckets one day at a
// time. Raw readings are left in place. A failed run keeps the days merged
// before the failure; running again is safe because each bucket is
// recomputed from all of its day's aged readings.
func (e *Engine) Compress(ctx context.Context, now time.Time) (Result, error) {
	res := Result{Cutoff: e.Cutoff(now)}

	days := map[time.Time]*aggregate{}
	err := e.readings.ScanBefore(ctx, res.Cutoff, func(r store.Reading) error {
		day := store.DayOf(r.Timestamp)
		agg, ok := days[day]
		if !ok {
			agg = newAggregate(day, r.Value)
			days[day] = agg
		}
		agg.add(r.Value)
		res.Readings++
		return nil
	})
	if err != nil {
		return res, strataerr.Wrap(err, strataerr.CodeRetentionCompressFailure, "scanning aged readings")
	}

	order := make([]time.Time, 0, len(days))
	for day := range days {
		order = append(order, day)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	for _, day := range order {
		if err := ctx.Err(); err != nil {
			return res, strataerr.Wrap(err, strataerr.CodeRetentionCompressFailure, "compression cancelled")
		}

		merged, err := e.buckets.Merge(ctx, days[day].bucket(now))
		if err != nil {
			return res, strataerr.Wrap(err, strataerr.CodeRetentionCompressFailure, "merging bucket",
				strataerr.FieldDay(day.Format("2006-01-02")))
		}
		if !merged {
			res.Frozen++
			e.log.Warn("bucket already purged, late readings not merged",
				"day", day.Format("2006-01-02"), "readings", days[day].count)
			continue
		}
		res.Days++
	}

	e.log.Info("compression complete",
		"cutoff", res.Cutoff, "days", res.Days, "readings", res.Readings, "frozen", res.Frozen)
	return res, nil
}

// Purge deletes the raw readings of every unpurged bucket whose whole day
// lies before the cutoff, provided the day still holds exactly the readings
// the bucket was computed from. Days that changed since their last
// compression are skipped until they are compressed again.
func (e *Engine) Purge(ctx context.Context, now time.Time) (PurgeResult, error) {
	res := PurgeResult{Cutoff: e.Cutoff(now)}

	// The last day that ends at or before the cutoff.
	lastDay := store.DayOf(res.Cutoff).AddDate(0, 0, -1)
	buckets, err := e.buckets.List(ctx, store.DayRange{To: lastDay})
	if err != nil {
		return res, strataerr.Wrap(err, strataerr.CodeRetentionPurgeFailure, "listing buckets")
	}

	for _, b := range buckets {
		if b.Frozen() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, strataerr.Wrap(err, strataerr.CodeRetentionPurgeFailure, "purge cancelled")
		}

		day := b.Day.Format("2006-01-02")
		deleted, err := e.buckets.Purge(ctx, b.Day, b.SampleCount, now.UTC())
		if strataerr.HasCode(err, strataerr.CodeStoreBucketPurgeStale) {
			res.Skipped++
			e.log.Warn("bucket out of date, skipping purge", "day", day)
			continue
		}
		if err != nil {
			return res, strataerr.Wrap(err, strataerr.CodeRetentionPurgeFailure, "purging day",
				strataerr.FieldDay(day))
		}
		res.Days++
		res.Rows += deleted
	}

	e.log.Info("purge complete",
		"cutoff", res.Cutoff, "days", res.Days, "rows", res.Rows, "skipped", res.Skipped)
	return res, nil
}

// Buckets lists buckets whose day lies in [from, to]. Zero bounds are open.
func (e *Engine) Buckets(ctx context.Context, from, to time.Time) ([]store.CompressedBucket, error) {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, strataerr.Errorf(strataerr.CodeRetentionInputInvalid,
			"from %s is after to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return e.buckets.List(ctx, store.DayRange{From: from, To: to})
}
