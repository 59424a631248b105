package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockReportsSeconds(t *testing.T) {
	c := NewClock()
	assert.Zero(t, c.Elapsed())

	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Update()

	got := c.Elapsed()
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 1.0)
}

func TestClockUpdateBeforeStartIsInert(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Zero(t, c.Elapsed())
}

func TestStoppedClockHoldsItsReading(t *testing.T) {
	c := NewClock()
	c.Start()
	time.Sleep(time.Millisecond)
	c.Update()
	c.Stop()

	held := c.Elapsed()
	time.Sleep(time.Millisecond)
	c.Update()
	assert.Equal(t, held, c.Elapsed())
}

func TestClockStartResetsElapsed(t *testing.T) {
	c := NewClock()
	c.Start()
	time.Sleep(time.Millisecond)
	c.Update()
	assert.Greater(t, c.Elapsed(), 0.0)

	c.Start()
	assert.Zero(t, c.Elapsed())
}
