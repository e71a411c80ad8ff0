// Package util holds small helpers shared by the run loop and the command line.
package util

import (
	"time"
)

// SkipThrottler lets an event through at most once per period, skipping the ones in between.
// The first event always goes through.
type SkipThrottler struct {
	d       time.Duration
	last    time.Time
	skipped int
	now     func() time.Time
}

func NewSkipThrottler(d time.Duration) *SkipThrottler {
	tt := &SkipThrottler{d: d, now: time.Now}
	return tt
}

// Ok reports whether the current event should go through.
func (tt *SkipThrottler) Ok() bool {
	now := tt.now()
	if !tt.last.IsZero() && now.Before(tt.last.Add(tt.d)) {
		tt.skipped++
		return false
	}

	tt.last = now
	tt.skipped = 0
	return true
}

// Skipped returns the number of events skipped since the last one that went through.
func (tt *SkipThrottler) Skipped() int { return tt.skipped }
