// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package retention

import (
	"time"

	"github.com/strata-dev/strata/internal/store"
)

// aggregate accumulates one day of readings. Sum and count are kept rather
// than a running average so the result does not depend on merge order.
type aggregate struct {
	day   time.Time
	sum   float64
	count int64
	min   float64
	max   float64
}

func newAggregate(day time.Time, first float64) *aggregate {
	return &aggregate{day: day, min: first, max: first}
}

func (a *aggregate) add(v float64) {
	a.sum += v
	a.count++
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
}

// bucket converts the aggregate into a CompressedBucket stamped with now.
func (a *aggregate) bucket(now time.Time) store.CompressedBucket {
	avg := a.sum / float64(a.count)
	// Rounding in the sum can push the mean a hair outside [min, max].
	if avg < a.min {
		avg = a.min
	}
	if avg > a.max {
		avg = a.max
	}
	return store.CompressedBucket{
		Day:          a.day,
		AvgValue:     avg,
		MaxValue:     a.max,
		MinValue:     a.min,
		SampleCount:  a.count,
		CompressedAt: now.UTC(),
	}
}
