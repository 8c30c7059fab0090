package bus

import (
	"fmt"
	"time"
)

// Topic identifies a channel on the bus.
type Topic int

const (
	// TopicSendCommand carries a command.Request to the simulator.
	TopicSendCommand Topic = iota
	// TopicTick carries a Tick once per animation frame.
	TopicTick
	// TopicCommandCompleted carries a CommandCompleted when a reply is delivered.
	TopicCommandCompleted
	// TopicStateChanged carries the simulator's latest snapshot.
	TopicStateChanged
)

func (t Topic) String() string {
	switch t {
	case TopicSendCommand:
		return "sendCommand"
	case TopicTick:
		return "tick"
	case TopicCommandCompleted:
		return "commandCompleted"
	case TopicStateChanged:
		return "stateChanged"
	default:
		return fmt.Sprintf("topic(%d)", int(t))
	}
}

// Empty is delivered to listeners when Publish is called without a payload.
type Empty struct{}

// Tick is published by the clock once per frame.
type Tick struct {
	DeltaSeconds float64
}

// CommandCompleted is published when a command's reply has been delivered.
type CommandCompleted struct {
	Command string
	Result  string
	Sent    time.Time
	Latency time.Duration
}
