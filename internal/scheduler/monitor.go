// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package scheduler

import (
	"sync"
	"time"
)

// Monitor tracks the health of background compression.
type Monitor struct {
	mu                  sync.RWMutex
	lastSuccess         time.Time
	lastAttempt         time.Time
	consecutiveFailures int
	lastError           string
	lastReport          Report
}

// MonitorStatus is a snapshot of a Monitor.
type MonitorStatus struct {
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastAttempt         time.Time `json:"last_attempt,omitzero"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastDays            int       `json:"last_days"`
	LastReadings        int64     `json:"last_readings"`
}

// RecordSuccess records a completed run.
func (m *Monitor) RecordSuccess(r Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.lastSuccess = now
	m.lastAttempt = now
	m.consecutiveFailures = 0
	m.lastError = ""
	m.lastReport = r
}

// RecordFailure records a failed run.
func (m *Monitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = time.Now()
	m.consecutiveFailures++
	if err != nil {
		m.lastError = err.Error()
	}
}

// Healthy reports whether the last success is younger than maxAge and no
// more than three runs in a row have failed.
func (m *Monitor) Healthy(now time.Time, maxAge time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastSuccess.IsZero() {
		return false
	}
	if now.Sub(m.lastSuccess) > maxAge {
		return false
	}
	return m.consecutiveFailures <= alertThreshold
}

// Status returns a snapshot.
func (m *Monitor) Status() MonitorStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MonitorStatus{
		LastSuccess:         m.lastSuccess,
		LastAttempt:         m.lastAttempt,
		ConsecutiveFailures: m.consecutiveFailures,
		LastError:           m.lastError,
		LastDays:            m.lastReport.Compress.Days,
		LastReadings:        m.lastReport.Compress.Readings,
	}
}
