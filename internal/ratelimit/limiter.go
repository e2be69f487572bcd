// Package ratelimit bounds outbound engine calls on two independent budgets:
// a rolling one-minute admission window and a fixed number of in-flight calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const window = time.Minute

// Limiter admits calls under a rolling-window rate budget and a concurrency
// budget. Every Acquire must be paired with a Release once the call finishes;
// Release frees the concurrency slot only — admission into the rate window is
// permanent for the remainder of that window. A Limiter is an explicit
// instance, shared process-wide by construction rather than via globals, so
// tests can run independent limiters with synthetic clocks.
type Limiter struct {
	rpm   int
	slots chan struct{}

	mu     sync.Mutex
	stamps []time.Time

	clock func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a limiter admitting at most rpm calls per rolling minute with at
// most maxConcurrent calls in flight.
func New(rpm, maxConcurrent int) *Limiter {
	if rpm < 1 {
		rpm = 1
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{
		rpm:   rpm,
		slots: make(chan struct{}, maxConcurrent),
		clock: time.Now,
		sleep: sleepWithContext,
	}
}

// NewWithClock is New with an injected clock and sleep function for tests.
// sleep must return ctx.Err() when the context ends before the duration.
func NewWithClock(rpm, maxConcurrent int, clock func() time.Time, sleep func(context.Context, time.Duration) error) *Limiter {
	l := New(rpm, maxConcurrent)
	l.clock = clock
	l.sleep = sleep
	return l
}

// Acquire blocks until the call may start under both budgets. The admission
// timestamp is committed before waiting for a concurrency slot, so the window
// reflects admission order rather than call start time. Both budget checks are
// re-evaluated after every wake-up; a wait never implies admission because
// concurrent acquirers may have raced in. The only failure is ctx ending.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, admitted := l.tryAdmit()
		if admitted {
			break
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryAdmit performs read-expire-decide-append as one atomic step.
func (l *Limiter) tryAdmit() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	l.stamps = l.stamps[i:]

	if len(l.stamps) < l.rpm {
		l.stamps = append(l.stamps, now)
		return 0, true
	}
	return l.stamps[0].Add(window).Sub(now), false
}

// Release returns the concurrency slot. It never touches the window record.
func (l *Limiter) Release() {
	<-l.slots
}

// InFlight reports the number of currently held concurrency slots.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
