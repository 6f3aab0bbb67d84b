package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock pinned to a settable instant.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

// NewFakeClockOn pins the clock to 09:00 UTC on the given calendar day.
func NewFakeClockOn(year int, month time.Month, day int) *FakeClock {
	return NewFakeClock(time.Date(year, month, day, 9, 0, 0, 0, time.UTC))
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
