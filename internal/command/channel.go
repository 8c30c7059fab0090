package command

import (
	"time"

	"github.com/dronelab/tellosim/internal/bus"
)

// Callback receives the reply to a command. A nil Callback is valid.
type Callback func(result string)

// Invoke calls cb if it is set.
func (cb Callback) Invoke(result string) {
	if cb != nil {
		cb(result)
	}
}

// Request is the payload of bus.TopicSendCommand.
type Request struct {
	Command  string
	Callback Callback
}

// Publisher is the part of the bus the channel needs.
type Publisher interface {
	Publish(topic bus.Topic, payload any)
}

// Poster queues work onto the simulation loop.
type Poster interface {
	Post(fn func()) error
}

// Channel is the entry point for command sources. It may be used from any
// goroutine; publishing happens on the loop.
type Channel struct {
	publisher Publisher
	poster    Poster
	now       func() time.Time
}

// NewChannel creates a command channel publishing through publisher on poster's loop.
func NewChannel(publisher Publisher, poster Poster) *Channel {
	return &Channel{
		publisher: publisher,
		poster:    poster,
		now:       time.Now,
	}
}

// Send submits raw for execution. cb, if not nil, is called on the loop with
// the reply. Commands that never reply (emergency) never call cb.
func (c *Channel) Send(raw string, cb Callback) error {
	sent := c.now()
	return c.poster.Post(func() {
		c.publisher.Publish(bus.TopicSendCommand, Request{
			Command:  raw,
			Callback: c.completion(raw, sent, cb),
		})
	})
}

func (c *Channel) completion(raw string, sent time.Time, cb Callback) Callback {
	return func(result string) {
		c.publisher.Publish(bus.TopicCommandCompleted, bus.CommandCompleted{
			Command: raw,
			Result:  result,
			Sent:    sent,
			Latency: c.now().Sub(sent),
		})
		cb.Invoke(result)
	}
}
