// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package counter provides a lock-free fixed-point accumulator for spend
// and budget tracking on the bid hot path. Values are stored as integer
// ten-thousandths so concurrent updates stay a single atomic add with no
// floating-point tearing.
package counter

import (
	"math"
	"sync/atomic"
)

// scale preserves 4 decimal digits of currency precision.
const scale = 10_000

// Counter is a thread-safe fixed-point accumulator. The zero value is
// ready to use.
type Counter struct {
	v atomic.Int64
}

func toFixed(f float64) int64 {
	return int64(math.Round(f * scale))
}

func toFloat(fixed int64) float64 {
	return float64(fixed) / scale
}

// Increment atomically adds delta and returns the new total.
func (c *Counter) Increment(delta float64) float64 {
	return toFloat(c.v.Add(toFixed(delta)))
}

// Read returns the current total without mutation.
func (c *Counter) Read() float64 {
	return toFloat(c.v.Load())
}

// Reset atomically zeroes the counter and returns the pre-reset value.
// Used when flushing locally accumulated spend to the authoritative ledger.
func (c *Counter) Reset() float64 {
	return toFloat(c.v.Swap(0))
}

// Sync atomically overwrites the counter with an authoritative value and
// returns the previous total. Increments racing with Sync land either
// before the swap (and are replaced) or after it (and are kept); the loss
// is bounded by one reconciliation window.
func (c *Counter) Sync(value float64) float64 {
	return toFloat(c.v.Swap(toFixed(value)))
}
