package device

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic millisecond counter the firmware reads once per tick.
type Clock interface {
	Millis() uint64
}

// SystemClock counts milliseconds since it was created, on the monotonic clock.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Millis() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// ManualClock only moves when told to. Used by simulations and tests.
type ManualClock struct {
	now atomic.Uint64
}

func (c *ManualClock) Millis() uint64 {
	return c.now.Load()
}

// Advance moves the clock forward by ms and returns the new reading.
func (c *ManualClock) Advance(ms uint64) uint64 {
	return c.now.Add(ms)
}

// Set jumps the clock to ms.
func (c *ManualClock) Set(ms uint64) {
	c.now.Store(ms)
}
