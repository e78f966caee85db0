package framework

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock is a monotonic time source measured from an epoch.
type Clock interface {
	// Now returns the elapsed time since the epoch.
	Now() time.Duration
	// SleepUntil blocks until Now reaches deadline or ctx is done.
	// It returns immediately if deadline has already passed.
	SleepUntil(ctx context.Context, deadline time.Duration) error
}

// SystemClock is the Clock backed by the monotonic reading of time.Now.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock creates a SystemClock whose epoch is now.
func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

// Now implements Clock.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.epoch)
}

// SleepUntil implements Clock.
func (c *SystemClock) SleepUntil(ctx context.Context, deadline time.Duration) error {
	d := deadline - c.Now()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// VirtualClock is a Clock which never blocks: sleeping jumps the
// clock forward to the deadline. Time only moves forward.
type VirtualClock struct {
	now int64
}

// Now implements Clock.
func (c *VirtualClock) Now() time.Duration {
	return time.Duration(atomic.LoadInt64(&c.now))
}

// Advance moves the clock forward by d.
func (c *VirtualClock) Advance(d time.Duration) time.Duration {
	return time.Duration(atomic.AddInt64(&c.now, int64(d)))
}

// SleepUntil implements Clock.
func (c *VirtualClock) SleepUntil(ctx context.Context, deadline time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for {
		now := atomic.LoadInt64(&c.now)
		if int64(deadline) <= now || atomic.CompareAndSwapInt64(&c.now, now, int64(deadline)) {
			return nil
		}
	}
}

// Schedule accumulates absolute deadlines on a fixed period grid:
// the next deadline is always the previous deadline plus the period,
// never "now plus period", so execution jitter does not drift the grid.
type Schedule struct {
	Period time.Duration
	// MaxLag bounds catch-up. When the caller falls further than MaxLag
	// behind, the missed deadlines are dropped. Zero means unbounded.
	MaxLag time.Duration

	deadline time.Duration
}

// NewSchedule creates a Schedule whose first deadline is start.
func NewSchedule(start, period, maxLag time.Duration) *Schedule {
	return &Schedule{Period: period, MaxLag: maxLag, deadline: start}
}

// Deadline returns the current deadline.
func (s *Schedule) Deadline() time.Duration {
	return s.deadline
}

// Advance moves to the next deadline given the current time and
// returns it together with the number of deadlines dropped.
func (s *Schedule) Advance(now time.Duration) (deadline time.Duration, skipped uint64) {
	s.deadline += s.Period
	if lag := now - s.deadline; s.MaxLag > 0 && lag > s.MaxLag {
		missed := lag / s.Period
		s.deadline += missed * s.Period
		skipped = uint64(missed)
	}
	return s.deadline, skipped
}
