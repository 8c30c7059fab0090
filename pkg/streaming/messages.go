// Package streaming defines the JSON envelopes exchanged over WebSocket,
// both by the live view hub and by the remote flight log backend.
package streaming

import (
	"encoding/json"

	"github.com/dronelab/tellosim/pkg/core"
)

// Message types sent to a remote flight log collector.
const (
	TypeStartFlight = "start_flight"
	TypeEndFlight   = "end_flight"
	TypeCommand     = "command"
	TypeStateSample = "state_sample"
)

// Message types pushed to live view clients.
const (
	TypeHello            = "hello"
	TypeSnapshot         = "snapshot"
	TypeTelemetry        = "telemetry"
	TypeCommandCompleted = "command_completed"
)

// Message types live view clients may send.
const (
	TypeSendCommand = "send_command"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartFlightPayload announces a new flight.
type StartFlightPayload struct {
	Flight *core.Flight `json:"flight"`
}

// EndFlightPayload closes a flight.
type EndFlightPayload struct {
	Summary core.FlightSummary `json:"summary"`
}

// HelloPayload greets a live view client.
type HelloPayload struct {
	Version   string  `json:"version"`
	FrameRate int     `json:"frameRate"`
	HomeLat   float64 `json:"homeLat"`
	HomeLon   float64 `json:"homeLon"`
}

// SendCommandPayload is a command typed into a live view.
type SendCommandPayload struct {
	Command string `json:"command"`
}

// CommandCompletedPayload reports a reply to every live view.
type CommandCompletedPayload struct {
	Command   string  `json:"command"`
	Result    string  `json:"result"`
	LatencyMs float64 `json:"latencyMs"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
