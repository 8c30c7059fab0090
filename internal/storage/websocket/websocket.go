// Package websocket streams flight records to a remote collector.
package websocket

import (
	"log/slog"

	"github.com/dronelab/tellosim/pkg/core"
	"github.com/dronelab/tellosim/pkg/streaming"
)

// Config holds collector connection settings.
type Config struct {
	URL    string
	Secret string
}

// Backend implements storage.Backend by sending every record as an
// Envelope. Flight boundaries wait for the collector's ack.
type Backend struct {
	link *link
	cfg  Config
}

// New creates a collector backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		link: newLink(logger.With("component", "collector")),
		cfg:  cfg,
	}
}

// Init connects to the collector.
func (b *Backend) Init() error {
	return b.link.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the collector.
func (b *Backend) Close() error {
	return b.link.close()
}

func (b *Backend) fireAndForget(msgType string, payload any) error {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	b.link.send(data)
	return nil
}

// StartFlight announces the flight and waits for the ack. The collector
// assigns no IDs so the flight keeps the one it was given.
func (b *Backend) StartFlight(f *core.Flight) error {
	data, err := streaming.Marshal(streaming.TypeStartFlight, streaming.StartFlightPayload{Flight: f})
	if err != nil {
		return err
	}

	b.link.mu.Lock()
	b.link.startMsg = data
	b.link.mu.Unlock()

	return b.link.sendAndWait(data, streaming.TypeStartFlight, ackTimeout)
}

// EndFlight sends the summary and waits for the ack.
func (b *Backend) EndFlight(summary core.FlightSummary) error {
	data, err := streaming.Marshal(streaming.TypeEndFlight, streaming.EndFlightPayload{Summary: summary})
	if err != nil {
		return err
	}
	err = b.link.sendAndWait(data, streaming.TypeEndFlight, ackTimeout)

	b.link.mu.Lock()
	b.link.startMsg = nil
	b.link.mu.Unlock()

	return err
}

func (b *Backend) RecordCommand(c *core.CommandRecord) error {
	return b.fireAndForget(streaming.TypeCommand, c)
}

func (b *Backend) RecordState(s *core.StateSample) error {
	return b.fireAndForget(streaming.TypeStateSample, s)
}
