package core

import "time"

// Clock measures elapsed wall time in seconds. The zero value is stopped;
// Update is inert until Start is called.
type Clock struct {
	started time.Time
	elapsed time.Duration
}

func NewClock() *Clock {
	return &Clock{}
}

// Start resets the elapsed reading and begins measuring.
func (c *Clock) Start() {
	c.started = time.Now()
	c.elapsed = 0
}

// Update refreshes the elapsed reading. Call just before reading Elapsed.
func (c *Clock) Update() {
	if !c.started.IsZero() {
		c.elapsed = time.Since(c.started)
	}
}

// Stop freezes the clock; Elapsed keeps returning the last reading.
func (c *Clock) Stop() {
	c.started = time.Time{}
}

// Elapsed returns the seconds between Start and the last Update.
func (c *Clock) Elapsed() float64 {
	return c.elapsed.Seconds()
}
