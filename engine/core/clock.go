package core

import "time"

// Clock measures wall-clock time in nanoseconds since Start.
type Clock struct {
	startTime int64
	elapsed   int64
}

func NewClock() *Clock {
	return &Clock{}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.startTime != 0 {
		c.elapsed = time.Now().UnixNano() - c.startTime
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = time.Now().UnixNano()
	c.elapsed = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.startTime = 0
}

func (c *Clock) Elapsed() int64 {
	return c.elapsed
}

// TickDelta converts the difference between two Elapsed readings into
// seconds at millisecond resolution, the granularity the frame update uses.
func TickDelta(previous, current int64) float32 {
	ms := (current - previous) / int64(time.Millisecond)
	return float32(ms) * 0.001
}
