// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import "time"

// TimestampPrecision is the resolution readings are stored at.
const TimestampPrecision = time.Microsecond

// Readings are limited to four-digit years so stored timestamps sort in time
// order. The first calendar day is excluded because its midnight is the zero
// time, which marks an unset bucket day.
var (
	MinTimestamp = time.Date(1, time.January, 2, 0, 0, 0, 0, time.UTC)
	MaxTimestamp = time.Date(9999, time.December, 31, 23, 59, 59, 999999000, time.UTC)
)

// InTimestampRange reports whether t lies in [MinTimestamp, MaxTimestamp].
func InTimestampRange(t time.Time) bool {
	return !t.Before(MinTimestamp) && !t.After(MaxTimestamp)
}

// --- Reading types ---

// Reading is one sensor sample. (SensorID, Timestamp) is unique.
type Reading struct {
	SensorID  int64
	Timestamp time.Time
	Value     float64
}

// RangeQuery selects readings whose timestamp lies in [Start, End].
// A nil SensorID matches every sensor.
type RangeQuery struct {
	Start    time.Time
	End      time.Time
	SensorID *int64
	Limit    int
}

// --- Bucket types ---

// CompressedBucket is the daily rollup of every reading on Day (UTC).
type CompressedBucket struct {
	Day          time.Time
	AvgValue     float64
	MaxValue     float64
	MinValue     float64
	SampleCount  int64
	CompressedAt time.Time
	// PurgedAt is set once the raw readings for Day were deleted. A purged
	// bucket is frozen and later merges leave it untouched.
	PurgedAt *time.Time
}

// Frozen reports whether the bucket's raw readings have been purged.
func (b CompressedBucket) Frozen() bool {
	return b.PurgedAt != nil
}

// DayRange selects buckets with From <= Day <= To. Zero bounds are open.
type DayRange struct {
	From time.Time
	To   time.Time
}

// --- Lease types ---

// Lease records which process currently owns a named background job.
type Lease struct {
	Name       string
	Owner      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the lease is no longer held at now.
func (l Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// --- Stats ---

// Stats summarizes table sizes for the status command.
type Stats struct {
	Readings      int64
	Buckets       int64
	PurgedBuckets int64
	OldestReading time.Time
	NewestReading time.Time
}

// DayOf truncates t to the start of its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeTimestamp converts t to UTC at storage precision.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(TimestampPrecision)
}
