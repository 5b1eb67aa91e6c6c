// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package scheduler_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strata-dev/strata/internal/retention"
	"github.com/strata-dev/strata/internal/scheduler"
	"github.com/strata-dev/strata/internal/store"
	"github.com/strata-dev/strata/internal/store/sqlite"
	strataerr "github.com/strata-dev/strata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner counts runs and optionally blocks until released.
type fakeRunner struct {
	compressCalls atomic.Int32
	purgeCalls    atomic.Int32
	started       chan struct{}
	release       chan struct{}
	waitForCancel bool
	err           error
	result        retention.Result
}

func (r *fakeRunner) Compress(ctx context.Context, now time.Time) (retention.Result, error) {
	r.compressCalls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.waitForCancel {
		<-ctx.Done()
		return retention.Result{}, ctx.Err()
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return retention.Result{}, ctx.Err()
		}
	}
	if r.err != nil {
		return retention.Result{}, r.err
	}
	res := r.result
	res.Cutoff = now
	return res, nil
}

func (r *fakeRunner) Purge(_ context.Context, now time.Time) (retention.PurgeResult, error) {
	r.purgeCalls.Add(1)
	return retention.PurgeResult{Cutoff: now, Days: 1}, nil
}

// renewFailing wraps a lease store and fails every renewal.
type renewFailing struct {
	store.LeaseStore
}

func (renewFailing) Renew(context.Context, string, string, time.Time, time.Duration) error {
	return strataerr.New(strataerr.CodeStoreLeaseLost, "lease taken over")
}

func testLeases(t *testing.T) store.LeaseStore {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "strata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s.Leases()
}

func TestRunOnce_ReleasesLease(t *testing.T) {
	ctx := context.Background()
	leases := testLeases(t)
	runner := &fakeRunner{result: retention.Result{Days: 2, Readings: 10}}
	s := scheduler.New(leases, runner, scheduler.Options{})

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	report, err := s.RunOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Compress.Days)
	assert.Equal(t, now, report.Compress.Cutoff)
	assert.Nil(t, report.Purge)
	assert.Zero(t, runner.purgeCalls.Load())

	_, err = leases.Get(ctx, scheduler.LeaseName)
	assert.True(t, strataerr.IsNotFound(err), "lease should be released, got %v", err)
}

func TestRunOnce_RunsPurgeWhenEnabled(t *testing.T) {
	runner := &fakeRunner{}
	s := scheduler.New(testLeases(t), runner, scheduler.Options{Purge: true})

	report, err := s.RunOnce(context.Background(), time.Now())
	require.NoError(t, err)
	require.NotNil(t, report.Purge)
	assert.Equal(t, 1, report.Purge.Days)
	assert.Equal(t, int32(1), runner.purgeCalls.Load())
}

func TestRunOnce_FailureReleasesLease(t *testing.T) {
	ctx := context.Background()
	leases := testLeases(t)
	boom := strataerr.New(strataerr.CodeStoreBucketMergeFailure, "disk I/O error")
	s := scheduler.New(leases, &fakeRunner{err: boom}, scheduler.Options{})

	_, err := s.RunOnce(ctx, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	acquired, err := leases.Acquire(ctx, scheduler.LeaseName, "other", time.Now(), time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRunOnce_OverlappingRunsFailFast(t *testing.T) {
	ctx := context.Background()
	leases := testLeases(t)
	runner := &fakeRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	first := scheduler.New(leases, runner, scheduler.Options{})
	second := scheduler.New(leases, &fakeRunner{}, scheduler.Options{})

	errCh := make(chan error, 1)
	go func() {
		_, err := first.RunOnce(ctx, time.Now())
		errCh <- err
	}()
	<-runner.started

	// Another process.
	_, err := second.RunOnce(ctx, time.Now())
	require.Error(t, err)
	assert.True(t, strataerr.IsAlreadyRunning(err))
	assert.Equal(t, strataerr.ExitAlreadyRunning, strataerr.ExitCode(err))
	assert.Equal(t, first.Owner(), strataerr.FieldsOf(err)["owner"])

	// The same scheduler.
	_, err = first.RunOnce(ctx, time.Now())
	assert.True(t, strataerr.IsAlreadyRunning(err))

	close(runner.release)
	require.NoError(t, <-errCh)

	_, err = second.RunOnce(ctx, time.Now())
	assert.NoError(t, err)
}

func TestRunOnce_HeartbeatKeepsLease(t *testing.T) {
	ctx := context.Background()
	leases := testLeases(t)
	runner := &fakeRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := scheduler.New(leases, runner, scheduler.Options{LeaseTTL: 300 * time.Millisecond})

	errCh := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(ctx, time.Now())
		errCh <- err
	}()
	<-runner.started

	// Well past the original expiry.
	time.Sleep(600 * time.Millisecond)
	acquired, err := leases.Acquire(ctx, scheduler.LeaseName, "intruder", time.Now(), time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired, "heartbeat should have renewed the lease")

	close(runner.release)
	require.NoError(t, <-errCh)
}

func TestRunOnce_LostLeaseCancelsRun(t *testing.T) {
	runner := &fakeRunner{waitForCancel: true}
	s := scheduler.New(renewFailing{testLeases(t)}, runner, scheduler.Options{LeaseTTL: 90 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background(), time.Now())
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, strataerr.HasCode(err, strataerr.CodeStoreLeaseLost), "got %v", err)
		assert.Equal(t, strataerr.ClassRetryable, strataerr.Classify(err))
	case <-time.After(5 * time.Second):
		t.Fatal("run was not cancelled after losing the lease")
	}
}

func TestStartStop(t *testing.T) {
	runner := &fakeRunner{}
	s := scheduler.New(testLeases(t), runner, scheduler.Options{Interval: 20 * time.Millisecond})

	require.NoError(t, s.Start(context.Background()))

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, strataerr.IsAlreadyRunning(err))

	require.Eventually(t, func() bool { return runner.compressCalls.Load() >= 3 },
		2*time.Second, 10*time.Millisecond)

	s.Stop()
	calls := runner.compressCalls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, calls, runner.compressCalls.Load(), "no runs after Stop")

	assert.Zero(t, s.Monitor().Status().ConsecutiveFailures)
	assert.False(t, s.Monitor().Status().LastSuccess.IsZero())

	// Stop is idempotent and a stopped scheduler starts again.
	s.Stop()
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return runner.compressCalls.Load() > calls },
		2*time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestStop_WaitsForInFlightRun(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := scheduler.New(testLeases(t), runner, scheduler.Options{Interval: time.Hour})
	require.NoError(t, s.Start(context.Background()))
	<-runner.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestStart_FailuresAreRecordedNotReturned(t *testing.T) {
	runner := &fakeRunner{err: errors.New("malformed row")}
	s := scheduler.New(testLeases(t), runner, scheduler.Options{
		Interval: 10 * time.Millisecond,
		Retries:  -1,
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return s.Monitor().Status().ConsecutiveFailures > 3 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "malformed row", s.Monitor().Status().LastError)
	assert.False(t, s.Monitor().Healthy(time.Now(), time.Hour))
}

func TestStart_RetriesRetryableFailures(t *testing.T) {
	var calls atomic.Int32
	runner := &flakyRunner{calls: &calls, failures: 2}
	s := scheduler.New(testLeases(t), runner, scheduler.Options{
		Interval:   time.Hour,
		RetryDelay: 5 * time.Millisecond,
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return !s.Monitor().Status().LastSuccess.IsZero() },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStart_SkipsWhenLeaseHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	leases := testLeases(t)
	acquired, err := leases.Acquire(ctx, scheduler.LeaseName, "other-process", time.Now(), time.Hour)
	require.NoError(t, err)
	require.True(t, acquired)

	runner := &fakeRunner{}
	s := scheduler.New(leases, runner, scheduler.Options{Interval: 10 * time.Millisecond})
	require.NoError(t, s.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Zero(t, runner.compressCalls.Load())
	assert.Zero(t, s.Monitor().Status().ConsecutiveFailures, "a held lease is not a failure")
}

// flakyRunner fails with a retryable error a fixed number of times.
type flakyRunner struct {
	mu       sync.Mutex
	calls    *atomic.Int32
	failures int
}

func (r *flakyRunner) Compress(_ context.Context, now time.Time) (retention.Result, error) {
	r.calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return retention.Result{}, strataerr.New(strataerr.CodeStoreConnectionUnavailable, "database is locked")
	}
	return retention.Result{Cutoff: now}, nil
}

func (r *flakyRunner) Purge(context.Context, time.Time) (retention.PurgeResult, error) {
	return retention.PurgeResult{}, nil
}
