// Package clock drives the animation frames of the simulation.
package clock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dronelab/tellosim/internal/bus"
)

// DefaultFrameRate matches a typical display refresh rate.
const DefaultFrameRate = 60

// Publisher is the part of the bus the clock needs.
type Publisher interface {
	Publish(topic bus.Topic, payload any)
}

// Poster queues work onto the simulation loop.
type Poster interface {
	Post(fn func()) error
}

// Clock publishes a bus.Tick once per frame with the elapsed time since the
// previous frame.
type Clock struct {
	publisher Publisher
	poster    Poster
	interval  time.Duration

	last    time.Time
	started bool

	pending atomic.Bool
	frames  atomic.Uint64
}

// New creates a clock ticking at frameRate frames per second.
func New(publisher Publisher, poster Poster, frameRate int) *Clock {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &Clock{
		publisher: publisher,
		poster:    poster,
		interval:  time.Second / time.Duration(frameRate),
	}
}

// Interval returns the time between frames.
func (c *Clock) Interval() time.Duration {
	return c.interval
}

// Frames returns the number of ticks published so far.
func (c *Clock) Frames() uint64 {
	return c.frames.Load()
}

// Tick publishes one frame stamped at now. The first frame carries a zero
// delta. Must be called from the loop goroutine.
func (c *Clock) Tick(now time.Time) {
	var delta float64
	if c.started {
		delta = now.Sub(c.last).Seconds()
		if delta < 0 {
			delta = 0
		}
	}
	c.last = now
	c.started = true
	c.frames.Add(1)

	c.publisher.Publish(bus.TopicTick, bus.Tick{DeltaSeconds: delta})
}

// Run posts a frame onto the loop every interval until ctx is cancelled.
// A frame is skipped while the previous one is still waiting to run.
func (c *Clock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if !c.pending.CompareAndSwap(false, true) {
				continue
			}
			err := c.poster.Post(func() {
				c.pending.Store(false)
				c.Tick(now)
			})
			if err != nil {
				return err
			}
		}
	}
}
