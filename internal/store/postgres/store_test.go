// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/strata-dev/strata/internal/store"
	"github.com/strata-dev/strata/internal/store/postgres"
	strataerr "github.com/strata-dev/strata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore connects to the database named by STRATA_TEST_POSTGRES_DSN and
// starts from empty tables. The tests are skipped when it is unset.
func testStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("STRATA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STRATA_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Truncate(ctx))
	return s
}

func TestOpen_UnreachableIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := postgres.Open(ctx, "postgres://strata@127.0.0.1:1/strata?sslmode=disable&connect_timeout=1")
	require.Error(t, err)
	assert.True(t, strataerr.IsUnavailable(err), "got %v", err)
}

func TestReadings_DuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	ts := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.Readings().Insert(ctx, store.Reading{SensorID: 1, Timestamp: ts, Value: 1}))

	err := s.Readings().Insert(ctx, store.Reading{SensorID: 1, Timestamp: ts, Value: 2})
	assert.True(t, strataerr.IsConflict(err), "got %v", err)

	got, err := s.Readings().Range(ctx, store.RangeQuery{Start: ts.Add(-time.Second), End: ts.Add(time.Second)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Value)
	assert.True(t, ts.Equal(got[0].Timestamp))
}

func TestBuckets_MergePurgeFreeze(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	d := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	now := d.AddDate(0, 1, 0)

	require.NoError(t, s.Readings().Insert(ctx, store.Reading{SensorID: 1, Timestamp: d.Add(time.Hour), Value: 2}))
	merged, err := s.Buckets().Merge(ctx, store.CompressedBucket{Day: d, AvgValue: 2, MaxValue: 2, MinValue: 2, SampleCount: 1, CompressedAt: now})
	require.NoError(t, err)
	assert.True(t, merged)

	deleted, err := s.Buckets().Purge(ctx, d, 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	merged, err = s.Buckets().Merge(ctx, store.CompressedBucket{Day: d, AvgValue: 5, MaxValue: 5, MinValue: 5, SampleCount: 1, CompressedAt: now})
	require.NoError(t, err)
	assert.False(t, merged)

	buckets, err := s.Buckets().List(ctx, store.DayRange{From: d, To: d})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.True(t, d.Equal(buckets[0].Day))
	assert.Equal(t, 2.0, buckets[0].AvgValue)
	assert.True(t, buckets[0].Frozen())
}

func TestLeases_Exclusive(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	ok, err := s.Leases().Acquire(ctx, "compression", "a", now, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Leases().Acquire(ctx, "compression", "b", now.Add(time.Second), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Leases().Acquire(ctx, "compression", "b", now.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
