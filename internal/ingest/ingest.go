// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package ingest validates sensor readings at the command boundary and
// writes them to the reading store.
package ingest

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/strata-dev/strata/internal/logging"
	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Manager writes and reads raw readings.
type Manager struct {
	readings store.ReadingStore
}

// NewManager returns a Manager writing to readings.
func NewManager(readings store.ReadingStore) *Manager {
	return &Manager{readings: readings}
}

// ParseReading converts command arguments into a Reading.
func ParseReading(sensorID, timestamp, value string) (store.Reading, error) {
	id, err := ParseSensorID(sensorID)
	if err != nil {
		return store.Reading{}, err
	}

	ts, err := ParseTimestamp(timestamp)
	if err != nil {
		return store.Reading{}, err
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return store.Reading{}, strataerr.Errorf(strataerr.CodeIngestInputInvalid,
			"value must be a finite number, got %q", value)
	}

	return store.Reading{SensorID: id, Timestamp: ts, Value: v}, nil
}

// ParseSensorID parses a base-10 sensor identifier.
func ParseSensorID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, strataerr.Errorf(strataerr.CodeIngestInputInvalid, "sensor_id must be an integer, got %q", s)
	}
	return id, nil
}

// ParseTimestamp accepts RFC 3339, "YYYY-MM-DD HH:MM:SS" with an optional
// zone, a bare date, or unix seconds. Times without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, strataerr.New(strataerr.CodeIngestInputInvalid, "timestamp is required")
	}

	t, ok := parseTimestamp(s)
	if !ok {
		return time.Time{}, strataerr.Errorf(strataerr.CodeIngestInputInvalid,
			"timestamp %q is not RFC 3339, \"YYYY-MM-DD HH:MM:SS\" or unix seconds", s)
	}
	if !store.InTimestampRange(t) {
		return time.Time{}, strataerr.Errorf(strataerr.CodeIngestInputInvalid,
			"timestamp %q is outside years 1 to 9999", s)
	}
	return t, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

// Insert writes one reading and returns the stored record. A reading with
// the same sensor and timestamp fails with a conflict.
func (m *Manager) Insert(ctx context.Context, r store.Reading) (store.Reading, error) {
	if r.Timestamp.IsZero() {
		return store.Reading{}, strataerr.New(strataerr.CodeIngestInputInvalid, "timestamp is required",
			strataerr.FieldSensorID(r.SensorID))
	}
	if !store.InTimestampRange(r.Timestamp) {
		return store.Reading{}, strataerr.New(strataerr.CodeIngestInputInvalid, "timestamp is outside years 1 to 9999",
			strataerr.FieldSensorID(r.SensorID))
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return store.Reading{}, strataerr.New(strataerr.CodeIngestInputInvalid, "value must be finite",
			strataerr.FieldSensorID(r.SensorID))
	}

	r.Timestamp = store.NormalizeTimestamp(r.Timestamp)
	if err := m.readings.Insert(ctx, r); err != nil {
		return store.Reading{}, err
	}

	logging.Component("ingest").Debug("reading inserted",
		"sensor_id", r.SensorID, "timestamp", r.Timestamp, "value", r.Value)
	return r, nil
}

// Query returns readings in [start, end] ordered by timestamp, then sensor.
// A nil sensor matches every sensor. A positive limit keeps only the first
// limit readings; zero returns all of them.
func (m *Manager) Query(ctx context.Context, start, end time.Time, sensor *int64, limit int) ([]store.Reading, error) {
	if start.After(end) {
		return nil, strataerr.Errorf(strataerr.CodeIngestInputInvalid,
			"start %s is after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if limit < 0 {
		return nil, strataerr.Errorf(strataerr.CodeIngestInputInvalid, "limit must not be negative, got %d", limit)
	}
	return m.readings.Range(ctx, store.RangeQuery{Start: start, End: end, SensorID: sensor, Limit: limit})
}
