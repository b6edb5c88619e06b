// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"time"

	"github.com/loov/hrtime"
)

// NewFrameClock creates a clock whose first lap starts now.
func NewFrameClock() *FrameClock {
	return newFrameClock(hrtime.Now)
}

func newFrameClock(now func() time.Duration) *FrameClock {
	return &FrameClock{
		now:  now,
		last: now(),
	}
}

// FrameClock measures the time between frames on the high resolution
// monotonic clock. It is not safe for concurrent use.
type FrameClock struct {
	now   func() time.Duration
	last  time.Duration
	laps  uint64
	total time.Duration
}

// Lap returns the time since the previous lap and starts a new one.
func (c *FrameClock) Lap() time.Duration {
	now := c.now()
	lap := now - c.last
	c.last = now
	c.laps++
	c.total += lap
	return lap
}

// Average returns the mean lap time.
func (c *FrameClock) Average() time.Duration {
	if c.laps == 0 {
		return 0
	}
	return c.total / time.Duration(c.laps)
}

// FramesPerSecond derives a frame rate from the mean lap time.
func (c *FrameClock) FramesPerSecond() float64 {
	avg := c.Average()
	if avg <= 0 {
		return 0
	}
	return float64(time.Second) / float64(avg)
}
