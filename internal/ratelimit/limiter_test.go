package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when a waiter sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func TestRateWindowBound(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := NewWithClock(3, 10, clock.Now, clock.Sleep)
	ctx := context.Background()

	var admissions []time.Time
	for i := 0; i < 7; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		admissions = append(admissions, clock.Now())
		l.Release()
	}

	// No sliding minute may contain more than 3 admissions.
	for i := range admissions {
		count := 0
		for j := i; j < len(admissions); j++ {
			if admissions[j].Sub(admissions[i]) < time.Minute {
				count++
			}
		}
		if count > 3 {
			t.Fatalf("window starting at admission %d holds %d admissions", i, count)
		}
	}

	// The fourth admission must have waited for the first to leave the window.
	if got := admissions[3].Sub(admissions[0]); got < time.Minute {
		t.Fatalf("admission 3 only %v after admission 0", got)
	}
}

func TestReleaseDoesNotRefundWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := NewWithClock(1, 10, clock.Now, clock.Sleep)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	l.Release()

	start := clock.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	l.Release()
	if waited := clock.Now().Sub(start); waited < time.Minute {
		t.Fatalf("expected a full-window wait despite fast release, waited %v", waited)
	}
}

func TestConcurrencyBound(t *testing.T) {
	l := New(1000, 2)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if got := l.InFlight(); got != 2 {
		t.Fatalf("expected 2 in flight, got %d", got)
	}

	third := make(chan struct{})
	go func() {
		if err := l.Acquire(ctx); err != nil {
			t.Errorf("acquire 3: %v", err)
		}
		close(third)
	}()

	select {
	case <-third:
		t.Fatal("third acquire should block while both slots are held")
	case <-time.After(50 * time.Millisecond):
	}

	l.Release()
	select {
	case <-third:
	case <-time.After(time.Second):
		t.Fatal("third acquire did not proceed after a release")
	}
	if got := l.InFlight(); got != 2 {
		t.Fatalf("expected 2 in flight after handoff, got %d", got)
	}
	l.Release()
	l.Release()
}

func TestAcquireHonorsContext(t *testing.T) {
	l := New(1000, 1)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Acquire(cancelled) }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error from blocked acquire")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked acquire ignored cancellation")
	}
	l.Release()
}
