// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import (
	"math"
	"time"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// Validate checks that the Reading can be written.
func (r Reading) Validate() error {
	if r.Timestamp.IsZero() {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "reading: timestamp is required",
			strataerr.FieldSensorID(r.SensorID))
	}
	if !InTimestampRange(r.Timestamp) {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "reading: timestamp %s is outside years 1 to 9999",
			r.Timestamp.UTC().Format(time.RFC3339))
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "reading: value must be finite",
			strataerr.FieldSensorID(r.SensorID))
	}
	return nil
}

// Validate checks that the range is well formed.
func (q RangeQuery) Validate() error {
	if q.Start.IsZero() || q.End.IsZero() {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "range query: start and end are required")
	}
	if !InTimestampRange(q.Start) || !InTimestampRange(q.End) {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "range query: start and end must lie in years 1 to 9999")
	}
	if q.Start.After(q.End) {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput,
			"range query: start %s is after end %s", q.Start.Format("2006-01-02T15:04:05Z07:00"), q.End.Format("2006-01-02T15:04:05Z07:00"))
	}
	if q.Limit < 0 {
		return strataerr.Errorf(strataerr.CodeStoreInvalidInput, "range query: limit must not be negative, got %d", q.Limit)
	}
	return nil
}

// Validate checks that the bucket aggregates are consistent.
func (b CompressedBucket) Validate() error {
	if b.Day.IsZero() {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "bucket: day is required")
	}
	if !b.Day.Equal(DayOf(b.Day)) {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "bucket: day must be midnight UTC",
			strataerr.FieldDay(b.Day.Format("2006-01-02")))
	}
	if b.SampleCount < 1 {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "bucket: sample count must be positive",
			strataerr.FieldDay(b.Day.Format("2006-01-02")))
	}
	if b.MinValue > b.MaxValue || b.AvgValue < b.MinValue || b.AvgValue > b.MaxValue {
		return strataerr.New(strataerr.CodeStoreInvalidInput, "bucket: aggregates must satisfy min <= avg <= max",
			strataerr.FieldDay(b.Day.Format("2006-01-02")))
	}
	return nil
}
