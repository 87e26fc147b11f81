package session

import (
	"sync/atomic"
	"testing"
	"time"
)

const testTick = 5 * time.Millisecond

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestClockExpiresExactlyOnce(t *testing.T) {
	var expirations int32
	var negativeSeen int32

	c := NewClock(5, testTick,
		func(remaining int) {
			if remaining < 0 {
				atomic.StoreInt32(&negativeSeen, 1)
			}
		},
		func() { atomic.AddInt32(&expirations, 1) },
	)
	c.Start()

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&expirations) > 0 })
	// Let any spurious second expiry surface.
	time.Sleep(10 * testTick)

	if n := atomic.LoadInt32(&expirations); n != 1 {
		t.Errorf("expired %d times, want exactly 1", n)
	}
	if atomic.LoadInt32(&negativeSeen) == 1 {
		t.Error("remaining went negative")
	}
	if got := c.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d after expiry, want 0", got)
	}
	if !c.Expired() {
		t.Error("Expired() = false after natural expiry")
	}
}

func TestClockStartIsIdempotent(t *testing.T) {
	var ticks int32
	var done int32
	c := NewClock(4, testTick,
		func(int) { atomic.AddInt32(&ticks, 1) },
		func() { atomic.StoreInt32(&done, 1) },
	)
	c.Start()
	c.Start() // must not launch a second countdown goroutine

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&done) == 1 })
	time.Sleep(5 * testTick)

	if n := atomic.LoadInt32(&ticks); n != 4 {
		t.Errorf("observed %d decrements for a 4-second clock, want 4: a repeated Start must not double the countdown rate", n)
	}
}

func TestClockStopPreventsExpiry(t *testing.T) {
	var expirations int32
	c := NewClock(3, testTick, nil, func() { atomic.AddInt32(&expirations, 1) })
	c.Start()
	c.Stop()

	time.Sleep(10 * testTick)
	if n := atomic.LoadInt32(&expirations); n != 0 {
		t.Errorf("expired %d times after Stop, want 0", n)
	}
	if c.Expired() {
		t.Error("Expired() = true for a stopped clock")
	}
}

func TestClockStopIsIdempotent(t *testing.T) {
	c := NewClock(3, testTick, nil, nil)
	c.Start()

	// Stopping twice must not panic or error.
	c.Stop()
	c.Stop()
}

func TestClockStopAfterExpiryIsNoop(t *testing.T) {
	var expirations int32
	c := NewClock(1, testTick, nil, func() { atomic.AddInt32(&expirations, 1) })
	c.Start()

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&expirations) > 0 })

	c.Stop() // after natural expiry
	time.Sleep(5 * testTick)
	if n := atomic.LoadInt32(&expirations); n != 1 {
		t.Errorf("expired %d times, want 1", n)
	}
}

func TestClockRemainingIsMonotonic(t *testing.T) {
	var done int32
	var last int64 = 1 << 30
	var violated int32

	c := NewClock(10, testTick, func(remaining int) {
		prev := atomic.SwapInt64(&last, int64(remaining))
		if int64(remaining) > prev {
			atomic.StoreInt32(&violated, 1)
		}
	}, func() { atomic.StoreInt32(&done, 1) })
	c.Start()

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&done) == 1 })
	if atomic.LoadInt32(&violated) == 1 {
		t.Error("remaining increased between ticks")
	}
}

func TestZeroDurationClockExpiresImmediately(t *testing.T) {
	var expirations int32
	c := NewClock(0, testTick, nil, func() { atomic.AddInt32(&expirations, 1) })
	c.Start()

	if n := atomic.LoadInt32(&expirations); n != 1 {
		t.Errorf("expired %d times, want 1", n)
	}
	if got := c.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{60, "00:01:00"},
		{3599, "00:59:59"},
		{3600, "01:00:00"},
		{7200, "02:00:00"},
		{7325, "02:02:05"},
		{-5, "00:00:00"},
	}
	for _, tc := range cases {
		if got := FormatRemaining(tc.seconds); got != tc.want {
			t.Errorf("FormatRemaining(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
