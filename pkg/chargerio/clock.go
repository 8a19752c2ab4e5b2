package chargerio

import "time"

// SystemClock counts milliseconds since it was created. The counter wraps
// after about 49.7 days.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// ManualClock is advanced explicitly. Useful for tests and simulations.
type ManualClock struct {
	Now uint32
}

func (c *ManualClock) Millis() uint32 {
	return c.Now
}

func (c *ManualClock) Advance(ms uint32) {
	c.Now += ms
}
