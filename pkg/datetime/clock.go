package datetime

import (
	"sync"
	"time"
)

// Timestamp is an instant with picosecond precision beyond the tick.
// Picoseconds is always below PicosecondsPerTick.
type Timestamp struct {
	Time        time.Time
	Picoseconds uint32
}

// After reports whether ts is strictly later than other.
func (ts Timestamp) After(other Timestamp) bool {
	if !ts.Time.Equal(other.Time) {
		return ts.Time.After(other.Time)
	}
	return ts.Picoseconds > other.Picoseconds
}

// Clock supplies the current time for server timestamps.
type Clock interface {
	// Now returns the current time.
	Now() Timestamp
}

// SystemClock reads the wall clock. When two calls land in the same tick,
// the second is advanced by 10 picoseconds so that server timestamps stay
// strictly increasing. SystemClock is safe for concurrent use.
type SystemClock struct {
	mu   sync.Mutex
	last Timestamp
	now  func() time.Time
}

// NewSystemClock creates a clock backed by time.Now.
func NewSystemClock() *SystemClock {
	return &SystemClock{now: time.Now}
}

// Now returns the current tick-aligned time and its sub-tick picoseconds.
func (c *SystemClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := c.now().UTC()
	ts := Timestamp{
		Time:        Truncate(wall),
		Picoseconds: uint32(wall.Nanosecond()%100) * 1000,
	}
	if !ts.After(c.last) {
		ts = c.last
		ts.Picoseconds += 10
		if ts.Picoseconds >= PicosecondsPerTick {
			ts.Picoseconds -= PicosecondsPerTick
			ts.Time = ts.Time.Add(TickDuration)
		}
	}
	c.last = ts
	return ts
}

var defaultClock Clock = NewSystemClock()

// Now returns the current time from the process-wide system clock.
func Now() Timestamp {
	return defaultClock.Now()
}

// Default returns the process-wide system clock.
func Default() Clock {
	return defaultClock
}

// FakeClock is a manually driven Clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now Timestamp
}

// NewFakeClock creates a FakeClock starting at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: Timestamp{Time: Truncate(t)}}
}

// Now returns the current fake time without advancing it.
func (c *FakeClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to ts.
func (c *FakeClock) Set(ts Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = ts
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now.Time = c.now.Time.Add(d)
}
