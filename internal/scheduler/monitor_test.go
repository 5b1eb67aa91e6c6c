// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package scheduler_test

import (
	"errors"
	"testing"
	"time"

	"github.com/strata-dev/strata/internal/retention"
	"github.com/strata-dev/strata/internal/scheduler"
	"github.com/stretchr/testify/assert"
)

func TestMonitor_NeverSucceeded(t *testing.T) {
	m := &scheduler.Monitor{}
	assert.False(t, m.Healthy(time.Now(), time.Hour))
	assert.Zero(t, m.Status().ConsecutiveFailures)
}

func TestMonitor_SuccessResetsFailures(t *testing.T) {
	m := &scheduler.Monitor{}
	m.RecordFailure(errors.New("one"))
	m.RecordFailure(errors.New("two"))
	assert.Equal(t, 2, m.Status().ConsecutiveFailures)
	assert.Equal(t, "two", m.Status().LastError)

	m.RecordSuccess(scheduler.Report{Compress: retention.Result{Days: 4, Readings: 96}})
	status := m.Status()
	assert.Zero(t, status.ConsecutiveFailures)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 4, status.LastDays)
	assert.Equal(t, int64(96), status.LastReadings)
	assert.True(t, m.Healthy(time.Now(), time.Hour))
}

func TestMonitor_UnhealthyAfterRepeatedFailures(t *testing.T) {
	m := &scheduler.Monitor{}
	m.RecordSuccess(scheduler.Report{})
	for range 3 {
		m.RecordFailure(errors.New("boom"))
	}
	assert.True(t, m.Healthy(time.Now(), time.Hour))

	m.RecordFailure(errors.New("boom"))
	assert.False(t, m.Healthy(time.Now(), time.Hour))
}

func TestMonitor_UnhealthyWhenStale(t *testing.T) {
	m := &scheduler.Monitor{}
	m.RecordSuccess(scheduler.Report{})
	assert.False(t, m.Healthy(time.Now().Add(2*time.Hour), time.Hour))
}
