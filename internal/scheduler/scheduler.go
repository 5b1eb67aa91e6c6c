// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package scheduler runs retention in the background. A store lease keeps
// runs from overlapping, both inside one process and across processes.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/strata-dev/strata/internal/logging"
	"github.com/strata-dev/strata/internal/retention"
	"github.com/strata-dev/strata/internal/store"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// LeaseName is the lease every compression run holds.
const LeaseName = "compression"

const (
	DefaultInterval   = time.Hour
	DefaultLeaseTTL   = 10 * time.Minute
	DefaultRetryDelay = 30 * time.Second
	defaultRetries    = 2
	alertThreshold    = 3
)

// Runner is the retention work a run performs.
type Runner interface {
	Compress(ctx context.Context, now time.Time) (retention.Result, error)
	Purge(ctx context.Context, now time.Time) (retention.PurgeResult, error)
}

// Options configures a Scheduler. Zero values take the defaults above.
type Options struct {
	Interval   time.Duration
	LeaseTTL   time.Duration
	RetryDelay time.Duration
	// Retries bounds extra attempts after a retryable failure. Negative
	// disables retrying.
	Retries int
	Purge      bool
	// Clock is used for lease timestamps and scheduled cutoffs.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = DefaultLeaseTTL
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Retries < 0 {
		o.Retries = 0
	} else if o.Retries == 0 {
		o.Retries = defaultRetries
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Report describes one completed run.
type Report struct {
	Compress retention.Result
	Purge    *retention.PurgeResult
	Took     time.Duration
}

// Scheduler owns the background compression worker.
type Scheduler struct {
	leases  store.LeaseStore
	runner  Runner
	owner   string
	opts    Options
	monitor *Monitor
	log     *slog.Logger

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New returns a stopped Scheduler with a fresh lease owner id.
func New(leases store.LeaseStore, runner Runner, opts Options) *Scheduler {
	return &Scheduler{
		leases:  leases,
		runner:  runner,
		owner:   uuid.NewString(),
		opts:    opts.withDefaults(),
		monitor: &Monitor{},
		log:     logging.Component("scheduler"),
	}
}

// Owner returns the lease owner id of this scheduler.
func (s *Scheduler) Owner() string { return s.owner }

// Monitor returns the health record of the background worker.
func (s *Scheduler) Monitor() *Monitor { return s.monitor }

// RunOnce performs one lease-guarded run with cutoffs computed from now.
// It fails with CodeSchedulerAlreadyRunning when another live owner, or
// another run of this scheduler, holds the lease. The lease is released
// whether the run succeeds or not.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (Report, error) {
	start := s.opts.Clock()

	acquired, err := s.leases.Acquire(ctx, LeaseName, s.owner, start, s.opts.LeaseTTL)
	if err != nil {
		return Report{}, strataerr.Wrap(err, strataerr.CodeSchedulerRunFailure, "acquiring compression lease")
	}
	if !acquired {
		return Report{}, s.heldError(ctx)
	}

	runCtx, cancel := context.WithCancel(ctx)
	lost := make(chan error, 1)
	done := make(chan struct{})
	var hb sync.WaitGroup
	hb.Add(1)
	go func() {
		defer hb.Done()
		s.heartbeat(runCtx, done, lost, cancel)
	}()

	defer func() {
		close(done)
		hb.Wait()
		cancel()
		if err := s.leases.Release(context.WithoutCancel(ctx), LeaseName, s.owner); err != nil {
			s.log.Warn("releasing compression lease", "error", err)
		}
	}()

	report, err := s.run(runCtx, now)
	if err != nil {
		select {
		case lostErr := <-lost:
			return Report{}, lostErr
		default:
		}
		return Report{}, err
	}
	report.Took = s.opts.Clock().Sub(start)
	return report, nil
}

func (s *Scheduler) run(ctx context.Context, now time.Time) (Report, error) {
	var report Report

	res, err := s.runner.Compress(ctx, now)
	if err != nil {
		return report, err
	}
	report.Compress = res

	if s.opts.Purge {
		pr, err := s.runner.Purge(ctx, now)
		if err != nil {
			return report, err
		}
		report.Purge = &pr
	}
	return report, nil
}

// heartbeat renews the lease every TTL/3 until done closes. A failed
// renewal cancels the run.
func (s *Scheduler) heartbeat(ctx context.Context, done <-chan struct{}, lost chan<- error, cancel context.CancelFunc) {
	ticker := time.NewTicker(s.opts.LeaseTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.leases.Renew(ctx, LeaseName, s.owner, s.opts.Clock(), s.opts.LeaseTTL)
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.log.Error("compression lease lost, cancelling run", "error", err)
			lost <- strataerr.Wrap(err, strataerr.CodeSchedulerRunFailure, "renewing compression lease")
			cancel()
			return
		}
	}
}

func (s *Scheduler) heldError(ctx context.Context) error {
	lease, err := s.leases.Get(ctx, LeaseName)
	if err != nil || lease == nil {
		return strataerr.New(strataerr.CodeSchedulerAlreadyRunning, "compression is already running")
	}
	return strataerr.New(strataerr.CodeSchedulerAlreadyRunning, "compression is already running",
		strataerr.Field("owner", lease.Owner),
		strataerr.Field("expires_at", lease.ExpiresAt.Format(time.RFC3339)))
}

// Start launches the worker loop: one run immediately, then one per
// interval. Failures are logged and recorded in the Monitor and never
// returned. Starting a running scheduler fails with
// CodeSchedulerAlreadyRunning.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return strataerr.New(strataerr.CodeSchedulerAlreadyRunning, "scheduler already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(loopCtx)

	s.log.Info("scheduler started",
		"interval", s.opts.Interval, "lease_ttl", s.opts.LeaseTTL, "purge", s.opts.Purge, "owner", s.owner)
	return nil
}

// Stop cancels the worker loop and waits for the in-flight run. Stopping
// a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	if !s.running.Load() {
		return
	}

	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	s.wg.Wait()
	s.running.Store(false)
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ticker.C:
			s.cycle(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// cycle runs once, retrying retryable failures with exponential backoff.
func (s *Scheduler) cycle(ctx context.Context) {
	for attempt := 0; attempt <= s.opts.Retries; attempt++ {
		if attempt > 0 {
			delay := s.opts.RetryDelay * time.Duration(1<<(attempt-1))
			s.log.Info("retrying compression", "delay", delay, "attempt", attempt+1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		report, err := s.RunOnce(ctx, s.opts.Clock())
		switch {
		case err == nil:
			s.monitor.RecordSuccess(report)
			s.log.Info("compression completed",
				"days", report.Compress.Days, "readings", report.Compress.Readings,
				"frozen", report.Compress.Frozen, "took", report.Took.Round(time.Millisecond))
			if report.Purge != nil {
				s.log.Info("purge completed",
					"days", report.Purge.Days, "rows", report.Purge.Rows, "skipped", report.Purge.Skipped)
			}
			return
		case strataerr.IsAlreadyRunning(err):
			fields := strataerr.FieldsOf(err)
			s.log.Info("compression skipped, lease held elsewhere",
				"holder", fields["owner"], "expires_at", fields["expires_at"])
			return
		case ctx.Err() != nil:
			return
		}

		s.monitor.RecordFailure(err)
		status := s.monitor.Status()
		s.log.Error("compression failed", "error", err, "attempt", attempt+1, "class", strataerr.Classify(err))
		if status.ConsecutiveFailures > alertThreshold {
			s.log.Error("ALERT: compression keeps failing", "consecutive_failures", status.ConsecutiveFailures)
		}
		if strataerr.Classify(err) != strataerr.ClassRetryable {
			return
		}
	}
}
