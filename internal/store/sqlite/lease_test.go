// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite_test

import (
	"context"
	"testing"
	"time"

	strataerr "github.com/strata-dev/strata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseStore_AcquireExclusive(t *testing.T) {
	ctx := context.Background()
	ls := testStore(t).Leases()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	ok, err := ls.Acquire(ctx, "compression", "owner-a", now, 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ls.Acquire(ctx, "compression", "owner-b", now.Add(time.Minute), 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// The holder cannot take it twice either.
	ok, err = ls.Acquire(ctx, "compression", "owner-a", now.Add(time.Minute), 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	l, err := ls.Get(ctx, "compression")
	require.NoError(t, err)
	assert.Equal(t, "owner-a", l.Owner)
	assert.True(t, now.Add(10*time.Minute).Equal(l.ExpiresAt))
}

func TestLeaseStore_ExpiredLeaseCanBeTaken(t *testing.T) {
	ctx := context.Background()
	ls := testStore(t).Leases()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	ok, err := ls.Acquire(ctx, "compression", "owner-a", now, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ls.Acquire(ctx, "compression", "owner-b", now.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	err = ls.Renew(ctx, "compression", "owner-a", now.Add(2*time.Minute), time.Minute)
	require.Error(t, err)
	assert.True(t, strataerr.HasCode(err, strataerr.CodeStoreLeaseLost))
}

func TestLeaseStore_RenewAndRelease(t *testing.T) {
	ctx := context.Background()
	ls := testStore(t).Leases()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	ok, err := ls.Acquire(ctx, "compression", "owner-a", now, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, ls.Renew(ctx, "compression", "owner-a", now.Add(30*time.Second), time.Minute))
	l, err := ls.Get(ctx, "compression")
	require.NoError(t, err)
	assert.True(t, now.Add(90*time.Second).Equal(l.ExpiresAt))

	// Releasing someone else's lease does nothing.
	require.NoError(t, ls.Release(ctx, "compression", "owner-b"))
	_, err = ls.Get(ctx, "compression")
	require.NoError(t, err)

	require.NoError(t, ls.Release(ctx, "compression", "owner-a"))
	_, err = ls.Get(ctx, "compression")
	assert.True(t, strataerr.IsNotFound(err))

	ok, err = ls.Acquire(ctx, "compression", "owner-b", now.Add(time.Second), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseStore_AcquireValidates(t *testing.T) {
	_, err := testStore(t).Leases().Acquire(context.Background(), "compression", "", time.Now(), time.Minute)
	assert.True(t, strataerr.IsInvalidInput(err))
}
