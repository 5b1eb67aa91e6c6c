// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import (
	"context"
	"time"
)

// Store is one open connection to the relational backend.
type Store interface {
	Readings() ReadingStore
	Buckets() BucketStore
	Leases() LeaseStore

	// Migrate creates the schema if absent. It is idempotent.
	Migrate(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// ReadingStore holds raw sensor readings.
type ReadingStore interface {
	// Insert writes one reading. A duplicate (sensor, timestamp) fails with
	// a conflict and leaves the existing row unchanged.
	Insert(ctx context.Context, r Reading) error
	// Range returns readings in the inclusive range ordered by timestamp,
	// then sensor id.
	Range(ctx context.Context, q RangeQuery) ([]Reading, error)
	// ScanBefore calls fn for every reading strictly older than cutoff in
	// timestamp order. Iteration stops at the first error fn returns.
	ScanBefore(ctx context.Context, cutoff time.Time, fn func(Reading) error) error
}

// BucketStore holds the daily rollups.
type BucketStore interface {
	// Merge inserts the bucket or replaces the aggregates of an existing
	// bucket for the same day. It reports false when the day is frozen.
	Merge(ctx context.Context, b CompressedBucket) (bool, error)
	List(ctx context.Context, r DayRange) ([]CompressedBucket, error)
	// Purge deletes the raw readings of day and freezes its bucket in one
	// transaction. The delete only happens when the number of raw readings
	// still equals expected; otherwise it fails with a purge conflict.
	Purge(ctx context.Context, day time.Time, expected int64, now time.Time) (int64, error)
}

// LeaseStore coordinates background jobs across processes.
type LeaseStore interface {
	// Acquire takes the named lease for owner unless another owner holds an
	// unexpired lease. It reports whether the lease was taken.
	Acquire(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) (bool, error)
	// Renew extends a lease held by owner. It fails with a lease-lost error
	// when owner no longer holds it.
	Renew(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, name, owner string) error
	Get(ctx context.Context, name string) (*Lease, error)
}
