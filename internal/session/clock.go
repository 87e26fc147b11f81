package session

import (
	"fmt"
	"sync"
	"time"
)

// Clock is the countdown for one session. It owns remaining time: nothing
// else mutates it, and it runs independently of any transport or view.
//
// The tick cadence is fixed at construction (one second in production,
// shorter in tests) and every tick decrements remaining time by exactly one
// logical second, so the countdown cannot drift relative to its own ticks.
type Clock struct {
	mu        sync.Mutex
	remaining int
	started   bool
	stopped   bool
	expired   bool
	stopCh    chan struct{}

	interval time.Duration
	onTick   func(remaining int)
	onExpire func()
}

// NewClock creates a stopped clock holding durationSeconds. interval is the
// real-time cadence of one logical second; pass time.Second outside tests.
// onTick (optional) observes each decrement; onExpire fires exactly once
// when remaining reaches zero.
func NewClock(durationSeconds int, interval time.Duration, onTick func(int), onExpire func()) *Clock {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return &Clock{
		remaining: durationSeconds,
		interval:  interval,
		onTick:    onTick,
		onExpire:  onExpire,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the countdown goroutine. Calling Start on an already
// started or stopped clock is a no-op.
func (c *Clock) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	if c.stopped || c.remaining == 0 {
		// A zero-duration clock expires immediately rather than ticking.
		alreadyStopped := c.stopped
		c.stopped = true
		fireExpire := !alreadyStopped && !c.expired
		if fireExpire {
			c.expired = true
			close(c.stopCh)
		}
		c.mu.Unlock()
		if fireExpire && c.onExpire != nil {
			c.onExpire()
		}
		return
	}
	c.mu.Unlock()

	go c.run()
}

func (c *Clock) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if c.tick() {
				return
			}
		}
	}
}

// tick decrements remaining time once. Returns true when the clock is done.
func (c *Clock) tick() bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return true
	}

	c.remaining--
	remaining := c.remaining
	if remaining > 0 {
		onTick := c.onTick
		c.mu.Unlock()
		if onTick != nil {
			onTick(remaining)
		}
		return false
	}

	// Reached zero: never negative, expire exactly once, then stop.
	c.remaining = 0
	c.stopped = true
	c.expired = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(0)
	}
	if c.onExpire != nil {
		c.onExpire()
	}
	return true
}

// Remaining returns the current remaining seconds. Monotonically
// non-increasing over the clock's lifetime.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop cancels further ticks. Idempotent: stopping twice, or after natural
// expiry, is a no-op. A stopped clock never fires expiry afterwards.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}

// Expired reports whether the clock reached zero on its own.
func (c *Clock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// FormatRemaining renders seconds as HH:MM:SS. Display transform only; the
// clock itself never deals in strings.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
