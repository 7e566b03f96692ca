// Package timeutil provides a testable abstraction over time operations.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration

	// Until returns the duration until t.
	Until(t time.Time) time.Duration

	// NewTimer creates a new Timer that will send the current time
	// on its channel after at least duration d.
	NewTimer(d time.Duration) Timer
}

// Timer represents a single event timer.
type Timer interface {
	// C returns the channel on which the time is delivered.
	C() <-chan time.Time

	// Stop prevents the Timer from firing.
	Stop() bool

	// Reset changes the timer to expire after duration d.
	Reset(d time.Duration) bool
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Until returns the duration until t.
func (RealClock) Until(t time.Time) time.Duration {
	return time.Until(t)
}

// NewTimer creates a new Timer.
func (RealClock) NewTimer(d time.Duration) Timer {
	return &realTimer{timer: time.NewTimer(d)}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time { return t.timer.C }
func (t *realTimer) Stop() bool          { return t.timer.Stop() }
func (t *realTimer) Reset(d time.Duration) bool {
	return t.timer.Reset(d)
}

// MockClock is a manually controlled clock for testing.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*MockTimer
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by the given duration
// and fires any expired timers.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	timers := c.timers
	c.mu.Unlock()

	for _, t := range timers {
		t.checkAndFire(now)
	}
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Until returns the duration until t.
func (c *MockClock) Until(t time.Time) time.Duration {
	return t.Sub(c.Now())
}

// NewTimer creates a new MockTimer.
func (c *MockClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &MockTimer{
		clock:    c,
		ch:       make(chan time.Time, 1),
		deadline: c.now.Add(d),
	}
	c.timers = append(c.timers, t)
	return t
}

// MockTimer is a manually controlled timer for testing.
type MockTimer struct {
	mu       sync.Mutex
	clock    *MockClock
	ch       chan time.Time
	deadline time.Time
	stopped  bool
	fired    bool
}

// C returns the timer channel.
func (t *MockTimer) C() <-chan time.Time {
	return t.ch
}

// Stop prevents the timer from firing.
func (t *MockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// Reset re-arms the timer to expire after duration d from the mock now.
func (t *MockTimer) Reset(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = false
	t.fired = false
	t.deadline = t.clock.Now().Add(d)
	return wasActive
}

func (t *MockTimer) checkAndFire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.fired {
		return
	}

	if now.After(t.deadline) || now.Equal(t.deadline) {
		t.fired = true
		select {
		case t.ch <- now:
		default:
		}
	}
}
